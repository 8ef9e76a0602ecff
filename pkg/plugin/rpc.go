package plugin

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// SinkPlugin adapts a Sink to go-plugin's net/rpc protocol.
type SinkPlugin struct {
	Impl Sink
}

// Server returns the RPC server
func (p *SinkPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &SinkRPCServer{Impl: p.Impl}, nil
}

// Client returns the RPC client
func (p *SinkPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &SinkRPC{client: c}, nil
}

// SinkRPC is the host side of a sink.
type SinkRPC struct {
	client *rpc.Client
}

func (s *SinkRPC) Name() string {
	var resp string
	if err := s.client.Call("Plugin.Name", new(interface{}), &resp); err != nil {
		return ""
	}
	return resp
}

func (s *SinkRPC) Version() string {
	var resp string
	if err := s.client.Call("Plugin.Version", new(interface{}), &resp); err != nil {
		return ""
	}
	return resp
}

func (s *SinkRPC) Description() string {
	var resp string
	if err := s.client.Call("Plugin.Description", new(interface{}), &resp); err != nil {
		return ""
	}
	return resp
}

func (s *SinkRPC) Init(cfg Config) error {
	return s.client.Call("Plugin.Init", cfg, new(interface{}))
}

func (s *SinkRPC) Deliver(e Event) (Reply, error) {
	var resp Reply
	err := s.client.Call("Plugin.Deliver", e, &resp)
	return resp, err
}

func (s *SinkRPC) Stop() error {
	return s.client.Call("Plugin.Stop", new(interface{}), new(interface{}))
}

// SinkRPCServer is the plugin side of a sink.
type SinkRPCServer struct {
	Impl Sink
}

func (s *SinkRPCServer) Name(_ interface{}, resp *string) error {
	*resp = s.Impl.Name()
	return nil
}

func (s *SinkRPCServer) Version(_ interface{}, resp *string) error {
	*resp = s.Impl.Version()
	return nil
}

func (s *SinkRPCServer) Description(_ interface{}, resp *string) error {
	*resp = s.Impl.Description()
	return nil
}

func (s *SinkRPCServer) Init(cfg Config, _ *interface{}) error {
	return s.Impl.Init(cfg)
}

func (s *SinkRPCServer) Deliver(e Event, resp *Reply) error {
	reply, err := s.Impl.Deliver(e)
	*resp = reply
	return err
}

func (s *SinkRPCServer) Stop(_ interface{}, _ *interface{}) error {
	return s.Impl.Stop()
}

// Serve runs impl as a plugin binary. It does not return.
func Serve(impl Sink) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			pluginKey: &SinkPlugin{Impl: impl},
		},
	})
}
