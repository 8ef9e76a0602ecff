package plugin

import (
	"errors"
	"net"
	"net/rpc"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

type recordingSink struct {
	name    string
	veto    bool
	fail    bool
	cfg     Config
	got     []Event
	stopped bool
}

func (s *recordingSink) Name() string        { return s.name }
func (s *recordingSink) Version() string     { return "0.1.0" }
func (s *recordingSink) Description() string { return "records events" }

func (s *recordingSink) Init(cfg Config) error {
	s.cfg = cfg
	return nil
}

func (s *recordingSink) Deliver(e Event) (Reply, error) {
	s.got = append(s.got, e)
	if s.fail {
		return Reply{}, errors.New("boom")
	}
	return Reply{Veto: s.veto}, nil
}

func (s *recordingSink) Stop() error {
	s.stopped = true
	return nil
}

func TestHostDeliverInOrder(t *testing.T) {
	h := NewHost("", zerolog.Nop())
	first := &recordingSink{name: "first", fail: true}
	second := &recordingSink{name: "second"}
	if err := h.AddLocal(first, Config{Enabled: true}); err != nil {
		t.Fatalf("AddLocal: %v", err)
	}
	if err := h.AddLocal(second, Config{}); err != nil {
		t.Fatalf("AddLocal: %v", err)
	}
	if err := h.AddLocal(&recordingSink{name: "second"}, Config{}); err == nil {
		t.Fatal("duplicate plugin accepted")
	}

	if !h.Deliver(Event{Type: "chat.message"}) {
		t.Fatal("event vetoed")
	}
	if len(first.got) != 1 || len(second.got) != 1 || !first.cfg.Enabled {
		t.Fatalf("first = %+v second = %+v", first.got, second.got)
	}
	if names := h.Names(); !reflect.DeepEqual(names, []string{"first", "second"}) {
		t.Fatalf("names = %v", names)
	}
}

func TestHostVeto(t *testing.T) {
	h := NewHost("", zerolog.Nop())
	vetoer := &recordingSink{name: "vetoer", veto: true}
	after := &recordingSink{name: "after"}
	_ = h.AddLocal(vetoer, Config{})
	_ = h.AddLocal(after, Config{})

	if h.Deliver(Event{Type: "private-room.before-open", Vetoable: true}) {
		t.Fatal("veto ignored")
	}
	if len(after.got) != 0 {
		t.Fatal("event delivered after veto")
	}
	if !h.Deliver(Event{Type: "chat.message"}) || len(after.got) != 1 {
		t.Fatal("veto applied to non-vetoable event")
	}

	h.UnloadAll()
	if !vetoer.stopped || !after.stopped || len(h.List()) != 0 {
		t.Fatal("plugins not stopped")
	}
}

func TestSinkRPCRoundTrip(t *testing.T) {
	impl := &recordingSink{name: "remote", veto: true}
	server := rpc.NewServer()
	if err := server.RegisterName("Plugin", &SinkRPCServer{Impl: impl}); err != nil {
		t.Fatalf("RegisterName: %v", err)
	}
	srvConn, cliConn := net.Pipe()
	go server.ServeConn(srvConn)
	client := rpc.NewClient(cliConn)
	defer client.Close()

	sink := &SinkRPC{client: client}
	if sink.Name() != "remote" || sink.Version() != "0.1.0" {
		t.Fatalf("name = %q version = %q", sink.Name(), sink.Version())
	}
	if err := sink.Init(Config{Enabled: true, Options: map[string]string{"k": "v"}}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	reply, err := sink.Deliver(Event{Type: "room.presence", RoomJID: "room@conf.example.com", Extra: map[string]string{"role": "moderator"}})
	if err != nil || !reply.Veto {
		t.Fatalf("reply = %+v err = %v", reply, err)
	}
	if len(impl.got) != 1 || impl.got[0].Extra["role"] != "moderator" || impl.cfg.Options["k"] != "v" {
		t.Fatalf("remote saw %+v cfg %+v", impl.got, impl.cfg)
	}
	if err := sink.Stop(); err != nil || !impl.stopped {
		t.Fatalf("Stop: %v", err)
	}
}
