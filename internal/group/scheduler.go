// Copyright (C) 2026 The opcdaserver authors.
// All rights reserved. This file is part of opcdaserver.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package group

import (
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	cclog "github.com/opcdaserver/core/log"
)

// scheduler multiplexes the group's four logical timers (read, write,
// refresh, update) onto one gocron scheduler. Every drain takes the same
// group lock, so the jobs can run on gocron's own goroutines without
// racing each other; they simply serialize, and callbacks are never
// delivered concurrently for the same group.
type scheduler struct {
	mu  sync.Mutex
	g   *Group
	s   gocron.Scheduler
	upd gocron.Job

	started bool
}

func newScheduler(g *Group) *scheduler {
	return &scheduler{g: g}
}

func (sc *scheduler) start() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.started {
		return nil
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	if _, err := s.NewJob(gocron.DurationJob(tickInterval), gocron.NewTask(sc.g.drainReadQueue)); err != nil {
		return err
	}
	if _, err := s.NewJob(gocron.DurationJob(tickInterval), gocron.NewTask(sc.g.drainWriteQueue)); err != nil {
		return err
	}
	if _, err := s.NewJob(gocron.DurationJob(tickInterval), gocron.NewTask(sc.g.drainRefreshQueue)); err != nil {
		return err
	}

	rate := time.Duration(sc.g.GetState().UpdateRateMs) * time.Millisecond
	updJob, err := s.NewJob(gocron.DurationJob(rate), gocron.NewTask(sc.g.scanUpdate))
	if err != nil {
		return err
	}
	sc.upd = updJob

	sc.s = s
	sc.s.Start()
	sc.started = true
	return nil
}

func (sc *scheduler) stop() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if !sc.started {
		return nil
	}
	sc.started = false
	return sc.s.Shutdown()
}

// setUpdateRate re-registers the update job at the new period. A no-op
// before start.
func (sc *scheduler) setUpdateRate(d time.Duration) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if !sc.started {
		return
	}
	if _, err := sc.s.Update(sc.upd.ID(), gocron.DurationJob(d), gocron.NewTask(sc.g.scanUpdate)); err != nil {
		// sc.g.mu is already held by the SetState call that reaches here;
		// read the name field directly rather than through Name().
		cclog.Warnf("group %s: could not update scheduler rate: %v", sc.g.name, err)
	}
}
