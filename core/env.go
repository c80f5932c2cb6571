package core

import (
	"context"
	"log/slog"

	"github.com/encodeous/sift/network"
	"github.com/encodeous/sift/state"
	"github.com/encodeous/sift/stats"
)

// Env carries the node-wide context shared by every component. It can be read
// from any goroutine.
type Env struct {
	Context context.Context
	Cancel  context.CancelCauseFunc
	Log     *slog.Logger
	NetCfg  state.NetworkCfg
	NodeCfg state.NodeCfg
	Stats   *stats.Registry

	// Resolver overrides peer endpoint resolution; nil uses the network
	// config. Tests bind port zero and inject the actual addresses here.
	Resolver network.Resolver
}

func (e *Env) resolve(node network.NodeId) (string, error) {
	if e.Resolver != nil {
		return e.Resolver(node)
	}
	peer, err := e.NetCfg.FindNode(node)
	if err != nil {
		return "", err
	}
	return peer.Endpoint.String(), nil
}

// bind returns the local protocol listen address.
func (e *Env) bind() string {
	if e.NodeCfg.Bind != "" {
		return e.NodeCfg.Bind
	}
	if peer, err := e.NetCfg.FindNode(e.NodeCfg.Id); err == nil {
		return peer.Endpoint.String()
	}
	return ":0"
}
