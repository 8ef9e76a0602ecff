package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/meszmate/chatcore/pkg/plugin"
)

var (
	urlRegex   = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
	titleRegex = regexp.MustCompile(`(?is)<title[^>]*>([^<]+)</title>`)
)

// URLPreviewPlugin records links posted in rooms together with the
// page title.
type URLPreviewPlugin struct {
	mu      sync.Mutex
	running bool
	client  *http.Client
	out     io.Writer
	file    *os.File
	wg      sync.WaitGroup
}

// Name returns the plugin name
func (p *URLPreviewPlugin) Name() string {
	return "urlpreview"
}

// Version returns the plugin version
func (p *URLPreviewPlugin) Version() string {
	return "1.1.0"
}

// Description returns a short description
func (p *URLPreviewPlugin) Description() string {
	return "Log links from room messages with their page titles"
}

// Init opens the link log. Option "file" names it; without it links go
// to stderr, which the host forwards to its log.
func (p *URLPreviewPlugin) Init(cfg plugin.Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		p.client = &http.Client{Timeout: 5 * time.Second}
	}
	if p.out == nil {
		p.out = os.Stderr
		if path := cfg.Options["file"]; path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
			if err != nil {
				return fmt.Errorf("failed to open link log: %w", err)
			}
			p.file = f
			p.out = f
		}
	}
	p.running = true
	return nil
}

// Deliver looks up every link of a live message in the background.
func (p *URLPreviewPlugin) Deliver(e plugin.Event) (plugin.Reply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || e.Type != "message" || e.Extra["delay"] == "true" {
		return plugin.Reply{}, nil
	}
	for _, url := range extractURLs(e.Body) {
		p.wg.Add(1)
		go p.preview(e, url)
	}
	return plugin.Reply{}, nil
}

func (p *URLPreviewPlugin) preview(e plugin.Event, url string) {
	defer p.wg.Done()
	title := fetchTitle(p.client, url)
	if title == "" {
		title = "-"
	}
	where := e.RoomName
	if where == "" {
		where = e.RoomJID
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp, where, e.Nick, url, title)
}

// Stop waits for pending lookups and closes the link log.
func (p *URLPreviewPlugin) Stop() error {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// extractURLs extracts URLs from text
func extractURLs(text string) []string {
	return urlRegex.FindAllString(text, -1)
}

// fetchTitle fetches the page title of url, "" when unavailable.
func fetchTitle(client *http.Client, url string) string {
	resp, err := client.Get(url)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 100*1024))
	if err != nil {
		return ""
	}

	html := string(body)
	if title := extractMetaTag(html, "og:title"); title != "" {
		return title
	}
	return extractHTMLTitle(html)
}

// extractMetaTag extracts a meta tag value
func extractMetaTag(html, name string) string {
	patterns := []string{
		`<meta[^>]+property=["']` + name + `["'][^>]+content=["']([^"']+)["']`,
		`<meta[^>]+content=["']([^"']+)["'][^>]+property=["']` + name + `["']`,
	}
	for _, pattern := range patterns {
		re := regexp.MustCompile(pattern)
		if matches := re.FindStringSubmatch(html); len(matches) > 1 {
			return strings.TrimSpace(matches[1])
		}
	}
	return ""
}

// extractHTMLTitle extracts the <title> tag
func extractHTMLTitle(html string) string {
	if matches := titleRegex.FindStringSubmatch(html); len(matches) > 1 {
		return strings.Join(strings.Fields(matches[1]), " ")
	}
	return ""
}

func main() {
	plugin.Serve(&URLPreviewPlugin{})
}
