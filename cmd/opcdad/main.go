// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command opcdad runs the data-access core: an address space, a group
// directory, an optional NATS device ingestion bridge, and a debug/status
// HTTP facade.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"golang.org/x/sync/errgroup"

	"github.com/opcdaserver/core/internal/addrspace"
	"github.com/opcdaserver/core/internal/config"
	"github.com/opcdaserver/core/internal/debugapi"
	"github.com/opcdaserver/core/internal/devicebridge"
	"github.com/opcdaserver/core/internal/group"
	"github.com/opcdaserver/core/internal/server"
	cclog "github.com/opcdaserver/core/log"
)

func main() {
	var flagGops bool
	var flagConfigFile string
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Path to the JSON configuration file")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			cclog.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		cclog.Fatalf("loading config %q failed: %s", flagConfigFile, err.Error())
	}

	var delimiter byte = '.'
	if cfg.Delimiter != "" {
		delimiter = cfg.Delimiter[0]
	}
	space := addrspace.New(delimiter)
	srv := server.New(space)

	if err := startConfiguredGroups(srv, cfg.Groups); err != nil {
		cclog.Fatalf("starting configured groups failed: %s", err.Error())
	}

	var bridge *devicebridge.Bridge
	bridgeCtx, cancelBridge := context.WithCancel(context.Background())
	defer cancelBridge()
	if cfg.Nats != nil {
		bridge = devicebridge.New(space, *cfg.Nats)
		if err := bridge.Start(bridgeCtx); err != nil {
			// Running without live device data is preferable to not
			// running at all; tags keep their BAD quality until a
			// writer shows up.
			cclog.Errorf("device bridge did not start: %s", err.Error())
		}
	}

	debugAddr := cfg.DebugAddr
	if debugAddr == "" {
		debugAddr = ":8084"
	}
	httpServer := &http.Server{
		Addr:         debugAddr,
		Handler:      debugapi.New(srv, space).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cclog.Infof("debug HTTP facade listening at %s", debugAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			cclog.Errorf("debug HTTP facade failed: %s", err.Error())
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-sigs
		cclog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			cclog.Warnf("debug HTTP facade shutdown: %s", err.Error())
		}

		cancelBridge()
		if bridge != nil {
			bridge.Stop()
		}
		srv.Shutdown()
	}()

	wg.Wait()
	cclog.Info("graceful shutdown completed")
}

// startConfiguredGroups creates every group named in the config file and
// adds its items, fanning the independent group creations out concurrently
// and propagating the first failure.
func startConfiguredGroups(srv *server.Server, defs []config.GroupDef) error {
	var eg errgroup.Group
	for _, def := range defs {
		def := def
		eg.Go(func() error {
			g, err := srv.AddGroup(def.Name, group.State{
				Active:          def.Active,
				Enabled:         true,
				UpdateRateMs:    def.UpdateRateMs,
				DeadbandPercent: def.DeadbandPercent,
			})
			if err != nil {
				return fmt.Errorf("group %q: %w", def.Name, err)
			}

			items := make([]group.ItemDef, len(def.Items))
			for i, id := range def.Items {
				items[i] = group.ItemDef{ItemID: id, Active: true}
			}
			for _, res := range g.AddItems(items) {
				if res.Err != nil {
					cclog.Warnf("group %q: add item failed: %s", def.Name, res.Err.Error())
				}
			}
			return nil
		})
	}
	return eg.Wait()
}
