/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

// Command mcpproxy starts the MCP proxy: it loads the bootstrap document,
// constructs the resource store, starts the dynamic configuration
// subsystem (xDS client or static seed), and serves the admin and metrics
// HTTP surfaces until told to shut down.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mcpproxy-dev/proxy/internal/admin"
	"github.com/mcpproxy-dev/proxy/internal/config"
	"github.com/mcpproxy-dev/proxy/internal/listener"
	"github.com/mcpproxy-dev/proxy/internal/metrics"
	"github.com/mcpproxy-dev/proxy/internal/outbound"
	"github.com/mcpproxy-dev/proxy/internal/session"
	"github.com/mcpproxy-dev/proxy/internal/store"
	"github.com/mcpproxy-dev/proxy/internal/xdsclient"
)

func main() {
	bootstrapSource := flag.String("bootstrap", "", "path or http(s) URL of the bootstrap document")
	bootstrapInline := flag.String("bootstrap-inline", "", "bootstrap document passed inline as JSON")
	configPath := flag.String("config", "", "path to the process configuration file (optional)")
	flag.Parse()

	if (*bootstrapSource == "") == (*bootstrapInline == "") {
		slog.Error("exactly one of -bootstrap and -bootstrap-inline must be provided")
		os.Exit(1)
	}

	if err := run(*bootstrapSource, *bootstrapInline, *configPath); err != nil {
		slog.Error("mcpproxy exited with error", "error", err)
		os.Exit(1)
	}
}

func run(bootstrapSource, bootstrapInline, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load process config: %w", err)
	}
	initLogging(cfg.Logging)

	var bootstrap *config.Bootstrap
	if bootstrapInline != "" {
		bootstrap, err = config.ParseBootstrap([]byte(bootstrapInline))
	} else {
		bootstrap, err = config.LoadBootstrap(bootstrapSource)
	}
	if err != nil {
		return fmt.Errorf("load bootstrap document: %w", err)
	}

	s := store.NewStore(cfg.Store.BroadcastDepth)

	switch bootstrap.Type {
	case config.BootstrapStatic:
		if err := seedStatic(s, bootstrap); err != nil {
			return fmt.Errorf("seed static bootstrap: %w", err)
		}
	case config.BootstrapXDS:
		// handled in the errgroup below
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	var client *xdsclient.Client
	if bootstrap.Type == config.BootstrapXDS {
		client = xdsclient.NewClient(xdsclient.Config{
			ServerAddress:         bootstrap.ServerAddress,
			NodeID:                bootstrap.Node.ID,
			Cluster:               bootstrap.Node.Cluster,
			ConnectTimeout:        cfg.XDS.ConnectTimeout,
			RequestTimeout:        cfg.XDS.RequestTimeout,
			InitialReconnectDelay: cfg.XDS.InitialReconnectDelay,
			MaxReconnectDelay:     cfg.XDS.MaxReconnectDelay,
			Insecure:              bootstrap.Insecure,
		}, s)
		g.Go(func() error { return client.Run(gctx) })
	}

	router := session.NewRouter(s, outbound.NewDispatcher())
	lis, err := listener.Listen(bootstrap.Listener.Address, nil)
	if err != nil {
		stop()
		return err
	}
	g.Go(func() error {
		// gate inbound traffic on the initial xDS snapshot
		if client != nil {
			select {
			case <-client.Ready():
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return session.Serve(gctx, lis, router)
	})
	g.Go(func() error {
		<-gctx.Done()
		_ = lis.Close()
		return nil
	})

	if cfg.Admin.Enabled {
		adminServer := admin.NewServer(&cfg.Admin, s)
		g.Go(func() error { return adminServer.Start(gctx) })
		g.Go(func() error {
			<-gctx.Done()
			return adminServer.Stop(context.Background())
		})
	}

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(&cfg.Metrics)
		metrics.StartMemoryMetricsUpdater(gctx, cfg.XDS.RequestTimeout*6)
		g.Go(func() error { return metricsServer.Start(gctx) })
		g.Go(func() error {
			<-gctx.Done()
			return metricsServer.Stop(context.Background())
		})
	}

	slog.InfoContext(gctx, "mcpproxy started", "bootstrap_type", bootstrap.Type, "listener", bootstrap.Listener.Address)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func seedStatic(s *store.Store, b *config.Bootstrap) error {
	s.Lock()
	defer s.Unlock()

	for _, raw := range b.Targets {
		wrapped, err := config.ToAny(raw)
		if err != nil {
			return fmt.Errorf("decode static target: %w", err)
		}
		if err := s.InsertTarget(wrapped, "static"); err != nil {
			return fmt.Errorf("insert static target: %w", err)
		}
	}
	for _, raw := range b.Policies {
		wrapped, err := config.ToAny(raw)
		if err != nil {
			return fmt.Errorf("decode static policy: %w", err)
		}
		if err := s.InsertPolicy(wrapped, "static"); err != nil {
			return fmt.Errorf("insert static policy: %w", err)
		}
	}
	return nil
}

func initLogging(cfg config.LoggingConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
