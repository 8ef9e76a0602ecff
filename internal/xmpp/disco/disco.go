package disco

import (
	"strings"
	"sync"

	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

// Identity represents a disco identity
type Identity struct {
	Category string
	Type     string
	Name     string
}

// Feature represents a disco feature
type Feature string

// Common features
const (
	FeatureDisco      Feature = stanza.NSDiscoInfo
	FeatureDiscoItems Feature = stanza.NSDiscoItems
	FeatureMUC        Feature = stanza.NSMUC
	FeatureChatStates Feature = stanza.NSChatStates
	FeatureCarbons    Feature = stanza.NSCarbons
	FeatureXHTMLIM    Feature = stanza.NSXHTMLIM
	FeatureVersion    Feature = stanza.NSVersion
	FeatureConference Feature = stanza.NSConference
	FeaturePrivacy    Feature = stanza.NSPrivacy
)

// ClientFeatures is what the client announces to disco#info queries.
var ClientFeatures = []Feature{
	FeatureDisco,
	FeatureMUC,
	FeatureChatStates,
	FeatureXHTMLIM,
	FeatureVersion,
	FeatureConference,
}

// Info represents disco info response
type Info struct {
	Identities []Identity
	Features   []Feature
}

// FromQuery converts a disco#info result.
func FromQuery(q *stanza.DiscoInfoQuery) *Info {
	info := &Info{}
	if q == nil {
		return info
	}
	for _, id := range q.Identities {
		info.Identities = append(info.Identities, Identity{Category: id.Category, Type: id.Type, Name: id.Name})
	}
	for _, f := range q.Features {
		info.Features = append(info.Features, Feature(f.Var))
	}
	return info
}

// Query renders Info as a disco#info payload.
func (i *Info) Query() *stanza.DiscoInfoQuery {
	q := &stanza.DiscoInfoQuery{}
	for _, id := range i.Identities {
		q.Identities = append(q.Identities, stanza.DiscoIdentity{Category: id.Category, Type: id.Type, Name: id.Name})
	}
	for _, f := range i.Features {
		q.Features = append(q.Features, stanza.DiscoFeature{Var: string(f)})
	}
	return q
}

// Name returns the name of the first identity, "" if there is none.
func (i *Info) Name() string {
	for _, id := range i.Identities {
		if id.Name != "" {
			return id.Name
		}
	}
	return ""
}

// IsConference reports a conference/text identity.
func (i *Info) IsConference() bool {
	for _, id := range i.Identities {
		if id.Category == "conference" {
			return true
		}
	}
	return false
}

// HasFeature checks a single feature.
func (i *Info) HasFeature(feature Feature) bool {
	for _, f := range i.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// Item represents a disco item
type Item struct {
	JID  string
	Name string
	Node string
}

// ItemsFromQuery converts a disco#items result.
func ItemsFromQuery(q *stanza.DiscoItemsQuery) []Item {
	if q == nil {
		return nil
	}
	items := make([]Item, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, Item{JID: it.JID, Name: it.Name, Node: it.Node})
	}
	return items
}

// Cache caches disco information
type Cache struct {
	mu    sync.RWMutex
	info  map[string]*Info
	items map[string][]Item
}

// NewCache creates a new disco cache
func NewCache() *Cache {
	return &Cache{
		info:  make(map[string]*Info),
		items: make(map[string][]Item),
	}
}

func key(j string) string {
	return strings.ToLower(j)
}

// SetInfo sets disco info for a JID
func (c *Cache) SetInfo(j string, info *Info) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info[key(j)] = info
}

// GetInfo gets disco info for a JID
func (c *Cache) GetInfo(j string) *Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info[key(j)]
}

// SetItems sets disco items for a JID
func (c *Cache) SetItems(j string, items []Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key(j)] = items
}

// GetItems gets disco items for a JID
func (c *Cache) GetItems(j string) []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items[key(j)]
}

// HasFeature checks if a JID supports a feature
func (c *Cache) HasFeature(j string, feature Feature) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := c.info[key(j)]
	if info == nil {
		return false
	}
	return info.HasFeature(feature)
}

// Clear clears the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = make(map[string]*Info)
	c.items = make(map[string][]Item)
}

// Remove removes entries for a JID
func (c *Cache) Remove(j string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.info, key(j))
	delete(c.items, key(j))
}
