package core

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/encodeous/tint"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"

	"github.com/encodeous/sift/httpapi"
	"github.com/encodeous/sift/state"
	"github.com/encodeous/sift/stats"
)

func readNetworkConfig(networkPath string) (*state.NetworkCfg, error) {
	var netCfg state.NetworkCfg
	file, err := os.ReadFile(networkPath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &netCfg)
	if err != nil {
		return nil, err
	}
	return &netCfg, nil
}

func readNodeConfig(nodePath string) (*state.NodeCfg, error) {
	var nodeCfg state.NodeCfg
	file, err := os.ReadFile(nodePath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &nodeCfg)
	if err != nil {
		return nil, err
	}
	return &nodeCfg, nil
}

// Bootstrap reads and validates the configs, then runs the node until a
// shutdown signal arrives. It is called once, from the CLI.
func Bootstrap(networkPath, nodePath, logPath string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	netCfg, err := readNetworkConfig(networkPath)
	if err != nil {
		return err
	}
	nodeCfg, err := readNodeConfig(nodePath)
	if err != nil {
		return err
	}
	if logPath != "" {
		nodeCfg.LogPath = logPath
	}

	if err := state.NetworkConfigValidator(netCfg); err != nil {
		return err
	}
	if err := state.NodeConfigValidator(nodeCfg); err != nil {
		return err
	}
	return Start(*netCfg, *nodeCfg, level)
}

func Start(netCfg state.NetworkCfg, nodeCfg state.NodeCfg, logLevel slog.Level) error {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(context.Canceled)

	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: string(nodeCfg.Id),
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if nodeCfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(nodeCfg.LogPath), 0700)
		if err != nil {
			return err
		}
		f, err := os.OpenFile(nodeCfg.LogPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0700)
		if err != nil {
			return err
		}
		defer f.Close()
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel}))
	}

	logger := slog.New(
		slogmulti.Fanout(handlers...))

	env := &Env{
		Context: ctx,
		Cancel:  cancel,
		Log:     logger,
		NetCfg:  netCfg,
		NodeCfg: nodeCfg,
		Stats:   stats.NewRegistry(stats.DefaultRegistrySize),
	}

	node, err := NewNode(env)
	if err != nil {
		return err
	}
	if err := node.Start(); err != nil {
		return err
	}
	defer node.Stop()
	logger.Info("node started", "addr", node.Dispatcher().Addr())

	var api *httpapi.Server
	if nodeCfg.HttpBind != "" {
		api = httpapi.NewServer(node, nodeCfg.HttpBind, logger)
		go func() {
			if err := api.Serve(); err != nil {
				cancel(err)
			}
		}()
		logger.Info("http api started", "addr", nodeCfg.HttpBind)
	}

	logger.Info("sift is running. To gracefully exit, send SIGINT or Ctrl+C.")

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
			cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
		}
	}()

	<-ctx.Done()
	logger.Info("stopping", "reason", context.Cause(ctx).Error())
	if api != nil {
		api.Close()
	}
	return nil
}
