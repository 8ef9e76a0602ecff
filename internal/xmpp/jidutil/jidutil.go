// Package jidutil provides string level helpers for XMPP addresses.
//
// Room and occupant addresses travel through the engine in their display
// form (node unescaped). The helpers here split, compare and convert between
// the display form and the escaped wire form.
package jidutil

import (
	"errors"
	"strings"

	"mellium.im/xmpp/jid"
)

// ErrMalformedJID is matched by every MalformedJIDError.
var ErrMalformedJID = errors.New("malformed JID")

// MalformedJIDError reports an address that is not node@domain[/resource].
type MalformedJIDError struct {
	JID string
	Err error
}

func (e *MalformedJIDError) Error() string {
	if e.Err != nil {
		return "malformed JID " + quote(e.JID) + ": " + e.Err.Error()
	}
	return "malformed JID " + quote(e.JID)
}

func (e *MalformedJIDError) Unwrap() error { return e.Err }

// Is reports ErrMalformedJID as a match.
func (e *MalformedJIDError) Is(target error) bool { return target == ErrMalformedJID }

func quote(s string) string { return "\"" + s + "\"" }

// Parts holds the three parts of an address.
type Parts struct {
	Node     string
	Domain   string
	Resource string
}

// Bare returns node@domain.
func (p Parts) Bare() string {
	if p.Node == "" {
		return p.Domain
	}
	return p.Node + "@" + p.Domain
}

// String returns the full address.
func (p Parts) String() string {
	if p.Resource == "" {
		return p.Bare()
	}
	return p.Bare() + "/" + p.Resource
}

// Decompose splits s into its parts. A node and a domain are required.
// The node may hold an unescaped '@'.
func Decompose(s string) (Parts, error) {
	at := nodeEnd(s)
	if at <= 0 {
		return Parts{}, &MalformedJIDError{JID: s}
	}
	p := Parts{Node: s[:at], Domain: Bare(s)[at+1:], Resource: Resource(s)}
	if p.Domain == "" {
		return Parts{}, &MalformedJIDError{JID: s}
	}
	return p, nil
}

// nodeEnd returns the index of the '@' ending the node of s, -1 without a
// node. A domain never contains '@', so it is the last one before the
// resource.
func nodeEnd(s string) int {
	return strings.LastIndex(Bare(s), "@")
}

// Bare strips the resource from s.
func Bare(s string) string {
	if slash := strings.Index(s, "/"); slash >= 0 {
		return s[:slash]
	}
	return s
}

// Node returns the node part of s or "" when there is none.
func Node(s string) string {
	if at := nodeEnd(s); at >= 0 {
		return s[:at]
	}
	return ""
}

// Domain returns the domain part of s.
func Domain(s string) string {
	bare := Bare(s)
	if at := nodeEnd(s); at >= 0 {
		return bare[at+1:]
	}
	return bare
}

// Resource returns the resource part of s or "" when there is none.
func Resource(s string) string {
	if slash := strings.Index(s, "/"); slash >= 0 {
		return s[slash+1:]
	}
	return ""
}

// IsDomain reports whether s is a bare domain such as a server address.
func IsDomain(s string) bool {
	return s != "" && s == Domain(s) && !strings.Contains(s, "@")
}

// Equal compares the bare forms of a and b. Node and domain are case
// insensitive.
func Equal(a, b string) bool {
	return strings.EqualFold(Bare(a), Bare(b))
}

var (
	nodeEscaper = strings.NewReplacer(
		`\`, `\5c`,
		` `, `\20`,
		`"`, `\22`,
		`&`, `\26`,
		`'`, `\27`,
		`/`, `\2f`,
		`:`, `\3a`,
		`<`, `\3c`,
		`>`, `\3e`,
		`@`, `\40`,
	)
	nodeUnescaper = strings.NewReplacer(
		`\20`, ` `,
		`\22`, `"`,
		`\26`, `&`,
		`\27`, `'`,
		`\2f`, `/`,
		`\3a`, `:`,
		`\3c`, `<`,
		`\3e`, `>`,
		`\40`, `@`,
		`\5c`, `\`,
	)
)

// EscapeNode escapes the characters that may not appear in a node.
// Whitespace is kept so that UnescapeNode(EscapeNode(n)) == n.
func EscapeNode(node string) string {
	return nodeEscaper.Replace(node)
}

// UnescapeNode reverses EscapeNode.
func UnescapeNode(node string) string {
	return nodeUnescaper.Replace(node)
}

// EscapeJID escapes the node part of s and leaves domain and resource alone.
func EscapeJID(s string) string {
	return mapNode(s, EscapeNode)
}

// UnescapeJID unescapes the node part of s and leaves domain and resource alone.
func UnescapeJID(s string) string {
	return mapNode(s, UnescapeNode)
}

func mapNode(s string, fn func(string) string) string {
	at := nodeEnd(s)
	if at < 0 {
		return s
	}
	node, rest := s[:at], s[at+1:]
	return fn(node) + "@" + rest
}

// Parse validates s as a wire address. The node is escaped first so display
// form input is accepted.
func Parse(s string) (jid.JID, error) {
	if s == "" {
		return jid.JID{}, &MalformedJIDError{JID: s}
	}
	j, err := jid.Parse(EscapeJID(s))
	if err != nil {
		return jid.JID{}, &MalformedJIDError{JID: s, Err: err}
	}
	return j, nil
}
