// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package debugapi exposes a read-only HTTP facade for operators: health,
// address-space and group introspection, and Prometheus metrics. This is a
// side-channel operational surface, not the client-facing data-access
// transport.
package debugapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opcdaserver/core/internal/addrspace"
	"github.com/opcdaserver/core/internal/server"
	cclog "github.com/opcdaserver/core/log"
)

var (
	groupCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opcda_groups_total",
		Help: "Number of groups currently registered with the server.",
	})
	tagCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "opcda_tags_total",
		Help: "Number of tags currently in the address space.",
	})
)

// API wires the debug routes against a running Server/AddressSpace pair.
type API struct {
	srv   *server.Server
	space *addrspace.AddressSpace
}

// New constructs an API facade. Callers build the http.Server around
// Handler themselves.
func New(srv *server.Server, space *addrspace.AddressSpace) *API {
	return &API{srv: srv, space: space}
}

// Handler returns the compressed, CORS-enabled, access-logged router.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/debug/status", a.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/debug/addrspace", a.handleAddrspace).Methods(http.MethodGet)
	r.HandleFunc("/debug/groups", a.handleGroups).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.Use(handlers.CompressHandler)
	r.Use(handlers.RecoveryHandler(handlers.PrintRecoveryStack(true)))
	r.Use(handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet}),
		handlers.AllowedOrigins([]string{"*"})))

	return handlers.CustomLoggingHandler(io.Discard, r, func(_ io.Writer, params handlers.LogFormatterParams) {
		cclog.Debugf("%s %s (%d, %dms)", params.Request.Method, params.URL.RequestURI(),
			params.StatusCode, time.Since(params.TimeStamp).Milliseconds())
	})
}

func (a *API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := a.srv.GetStatus()
	groupCount.Set(float64(status.GroupCount))
	tagCount.Set(float64(status.TagCount))

	writeJSON(w, map[string]any{
		"groups":     status.GroupCount,
		"tags":       status.TagCount,
		"started_at": status.StartTime,
		"uptime_s":   time.Since(status.StartTime).Seconds(),
	})
}

func (a *API) handleAddrspace(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	crawler := a.space.NewCrawler()
	if path != "" {
		if err := crawler.GoTo(path); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}
	entries, err := crawler.Browse(addrspace.BrowseAll, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

func (a *API) handleGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.srv.GetStatus())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		cclog.Errorf("debugapi: encode response: %v", err)
	}
}
