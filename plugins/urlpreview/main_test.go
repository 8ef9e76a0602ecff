package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/meszmate/chatcore/pkg/plugin"
)

func TestExtractURLs(t *testing.T) {
	got := extractURLs("see https://example.com/a?b=1 and http://x.org, not ftp://y")
	want := []string{"https://example.com/a?b=1", "http://x.org,"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("urls = %q", got)
	}
}

func TestExtractTitles(t *testing.T) {
	html := `<html><head><meta property="og:title" content=" Graph Title "><title>
	Plain
	Title </title></head></html>`
	if got := extractMetaTag(html, "og:title"); got != "Graph Title" {
		t.Fatalf("og:title = %q", got)
	}
	if got := extractHTMLTitle(html); got != "Plain Title" {
		t.Fatalf("title = %q", got)
	}
}

func TestDeliverLogsLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			_, _ = w.Write([]byte("<title>Example Page</title>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var buf bytes.Buffer
	p := &URLPreviewPlugin{client: srv.Client(), out: &buf}
	if err := p.Init(plugin.Config{}); err != nil {
		t.Fatalf("Init: %v", err)
	}

	events := []plugin.Event{
		{Type: "message", RoomName: "lobby", Nick: "alice", Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), Body: "look " + srv.URL + "/page and " + srv.URL + "/missing"},
		{Type: "message", RoomName: "lobby", Nick: "bob", Body: srv.URL + "/page", Extra: map[string]string{"delay": "true"}},
		{Type: "room.presence", Body: srv.URL + "/page"},
	}
	for _, e := range events {
		if reply, err := p.Deliver(e); err != nil || reply.Veto {
			t.Fatalf("reply = %+v err = %v", reply, err)
		}
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	sort.Strings(lines)
	want := []string{
		"2024-03-01T12:00:00Z\tlobby\talice\t" + srv.URL + "/missing\t-",
		"2024-03-01T12:00:00Z\tlobby\talice\t" + srv.URL + "/page\tExample Page",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("lines = %q", lines)
	}

	if _, err := p.Deliver(events[0]); err != nil || buf.Len() == 0 {
		t.Fatal("stopped plugin failed")
	}
}
