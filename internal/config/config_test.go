// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	require.Equal(t, Default, cfg)
}

func TestLoadValidatesAndDecodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"delimiter": "/",
		"nats": {"address": "nats://localhost:4222", "message-rate-limit": 100, "message-rate-burst": 10},
		"groups": [{"name": "g1", "update-rate-ms": 250, "items": ["a.b"]}]
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/", cfg.Delimiter)
	require.Len(t, cfg.Groups, 1)
	require.Equal(t, "g1", cfg.Groups[0].Name)
	require.Equal(t, uint32(250), cfg.Groups[0].UpdateRateMs)
	require.Equal(t, float64(100), cfg.Nats.MessageRateLimit)
	require.Equal(t, 10, cfg.Nats.MessageRateBurst)
}

func TestLoadRejectsInvalidSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"groups": [{"update-rate-ms": 5}]}`), 0o644))

	_, err := Load(path)
	require.Error(t, err, "groups entries require a name per schema")
}
