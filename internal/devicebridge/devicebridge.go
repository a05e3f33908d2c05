// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package devicebridge feeds device samples into the address space: a
// NATS subscriber decodes InfluxDB line-protocol batches and writes each
// sample into the matching tag. The server side never polls devices;
// whatever pushes to the configured subjects drives the data.
//
// A connection failure is a recoverable error returned from Start, never
// a process abort; the caller decides whether running without live device
// data is acceptable.
package devicebridge

import (
	"context"
	"fmt"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"
	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/opcdaserver/core/internal/addrspace"
	"github.com/opcdaserver/core/internal/config"
	"github.com/opcdaserver/core/internal/quality"
	"github.com/opcdaserver/core/internal/variant"
	cclog "github.com/opcdaserver/core/log"
)

// Bridge subscribes to one or more NATS subjects carrying line-protocol
// samples and writes each decoded sample into the matching Tag.
type Bridge struct {
	space   *addrspace.AddressSpace
	cfg     config.NatsConfig
	limiter *rate.Limiter

	conn *nats.Conn
	subs []*nats.Subscription
}

// New constructs a Bridge over space using cfg. cfg.MessageRateLimit
// bounds how many NATS messages per second the bridge decodes (each
// message may carry several samples), so one noisy device cannot starve
// group callback delivery; a zero limit disables throttling.
func New(space *addrspace.AddressSpace, cfg config.NatsConfig) *Bridge {
	var limiter *rate.Limiter
	if cfg.MessageRateLimit > 0 {
		burst := cfg.MessageRateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.MessageRateLimit), burst)
	}
	return &Bridge{space: space, cfg: cfg, limiter: limiter}
}

// Start connects to the configured NATS server and subscribes to every
// configured subject. It returns a recoverable error on connection
// failure rather than aborting the process.
func (b *Bridge) Start(ctx context.Context) error {
	if b.cfg.Address == "" {
		return fmt.Errorf("devicebridge: no NATS address configured")
	}

	var opts []nats.Option
	if b.cfg.Username != "" && b.cfg.Password != "" {
		opts = append(opts, nats.UserInfo(b.cfg.Username, b.cfg.Password))
	}
	if b.cfg.CredsFilePath != "" {
		opts = append(opts, nats.UserCredentials(b.cfg.CredsFilePath))
	}
	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			cclog.Warnf("devicebridge: disconnected: %v", err)
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		cclog.Infof("devicebridge: reconnected to %s", nc.ConnectedUrl())
	}))

	nc, err := nats.Connect(b.cfg.Address, opts...)
	if err != nil {
		return fmt.Errorf("devicebridge: connect failed: %w", err)
	}
	b.conn = nc

	for _, sub := range b.cfg.Subscriptions {
		prefix := sub.PathPrefix
		s, err := nc.Subscribe(sub.SubscribeTo, func(msg *nats.Msg) {
			b.handleMessage(prefix, msg.Subject, msg.Data)
		})
		if err != nil {
			nc.Close()
			return fmt.Errorf("devicebridge: subscribe to %q failed: %w", sub.SubscribeTo, err)
		}
		b.subs = append(b.subs, s)
		cclog.Infof("devicebridge: subscribed to %s", sub.SubscribeTo)
	}

	go func() {
		<-ctx.Done()
		b.Stop()
	}()
	return nil
}

// Stop unsubscribes and closes the NATS connection. Safe to call more than
// once.
func (b *Bridge) Stop() {
	for _, s := range b.subs {
		_ = s.Unsubscribe()
	}
	b.subs = nil
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// handleMessage applies the rate limit and decodes one incoming batch.
// A message arriving over the limit is dropped whole with all its samples,
// not queued.
func (b *Bridge) handleMessage(prefix, subject string, data []byte) {
	if b.limiter != nil && !b.limiter.Allow() {
		cclog.Warnf("devicebridge: dropped sample on %s (rate limited)", subject)
		return
	}
	if err := b.decodeAndWrite(prefix, data); err != nil {
		cclog.Errorf("devicebridge: %v", err)
	}
}

// decodeAndWrite decodes one line-protocol batch and writes each sample to
// its tag, resolved by joining prefix with the measurement name or the
// "path" line tag. A "quality" line tag of "bad" marks the sample bad.
func (b *Bridge) decodeAndWrite(prefix string, data []byte) error {
	dec := lineprotocol.NewDecoderWithBytes(data)
	now := time.Now()

	for dec.Next() {
		measurement, err := dec.Measurement()
		if err != nil {
			return err
		}
		name := string(measurement)

		path := name
		var q *quality.Quality
		for {
			key, val, err := dec.NextTag()
			if err != nil {
				return err
			}
			if key == nil {
				break
			}
			if string(key) == "path" {
				path = string(val)
			}
			if string(key) == "quality" && string(val) == "bad" {
				bad := quality.Bad
				q = &bad
			}
		}
		if prefix != "" {
			path = prefix + path
		}

		var value variant.Value
		haveValue := false
		ts := now
		for {
			key, val, err := dec.NextField()
			if err != nil {
				return err
			}
			if key == nil {
				break
			}
			if string(key) != "value" {
				continue
			}
			switch val.Kind() {
			case lineprotocol.Float:
				value = variant.Float64(val.FloatV())
			case lineprotocol.Int:
				value = variant.Int64(val.IntV())
			case lineprotocol.Uint:
				value = variant.Uint64(val.UintV())
			case lineprotocol.String:
				value = variant.String(val.StringV())
			case lineprotocol.Bool:
				value = variant.Bool(val.BoolV())
			default:
				return fmt.Errorf("path %s: unsupported line-protocol value kind %s", path, val.Kind())
			}
			haveValue = true
		}
		if !haveValue {
			continue
		}

		if t, err := dec.Time(lineprotocol.Nanosecond, now); err == nil {
			ts = t
		}

		tag, err := b.space.GetTag(path)
		if err != nil {
			cclog.Warnf("devicebridge: unknown tag path %q", path)
			continue
		}
		if err := tag.Write(value, q, ts); err != nil {
			cclog.Warnf("devicebridge: write to %q rejected: %v", path, err)
		}
	}
	return nil
}
