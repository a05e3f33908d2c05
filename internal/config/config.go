// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the server's JSON configuration
// file: the raw bytes are checked against an embedded JSON Schema before
// being unmarshalled, and a .env file is loaded into the environment
// first if present.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"

	"github.com/joho/godotenv"
	"github.com/santhosh-tekuri/jsonschema/v5"

	cclog "github.com/opcdaserver/core/log"
)

// NatsSubscription is one subject the device bridge listens on.
type NatsSubscription struct {
	SubscribeTo string `json:"subscribe-to"`
	PathPrefix  string `json:"path-prefix"`
}

// NatsConfig configures the optional device ingestion bridge.
// MessageRateLimit bounds how many NATS messages per second the bridge
// accepts across all subscriptions, whatever number of samples each
// message carries (0 disables throttling); MessageRateBurst is the burst
// size, defaulting to 1 when a limit is set.
type NatsConfig struct {
	Address          string             `json:"address"`
	Username         string             `json:"username"`
	Password         string             `json:"password"`
	CredsFilePath    string             `json:"creds-file-path"`
	MessageRateLimit float64            `json:"message-rate-limit"`
	MessageRateBurst int                `json:"message-rate-burst"`
	Subscriptions    []NatsSubscription `json:"subscriptions"`
}

// GroupDef describes one group to create at startup.
type GroupDef struct {
	Name            string   `json:"name"`
	UpdateRateMs    uint32   `json:"update-rate-ms"`
	DeadbandPercent float64  `json:"deadband-percent"`
	Active          bool     `json:"active"`
	Items           []string `json:"items"`
}

// Config is the top-level program configuration.
type Config struct {
	Delimiter string      `json:"delimiter"`
	DebugAddr string      `json:"debug-addr"`
	Nats      *NatsConfig `json:"nats"`
	Groups    []GroupDef  `json:"groups"`
}

// Default is overridden field by field by whatever the config file
// supplies.
var Default = Config{
	Delimiter: ".",
	DebugAddr: ":8084",
}

//go:embed schema.json
var schemaJSON string

// Load reads .env (if present; a missing file is not an error), then reads
// and validates path against the embedded JSON Schema, returning Default
// merged with whatever the file overrides. A missing config file yields
// the defaults.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		cclog.Warnf("config: could not load .env: %v", err)
	}

	cfg := Default
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := Validate(raw); err != nil {
		return cfg, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks raw against the embedded configuration schema.
func Validate(raw []byte) error {
	sch, err := jsonschema.CompileString("config.schema.json", schemaJSON)
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return sch.Validate(v)
}
