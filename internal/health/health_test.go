/*
 * Copyright (C) 2026 Mustafa Naseer (Mustafa Gaeed)
 *
 * This file is part of ployer.
 *
 * ployer is free software: you can redistribute it and/or modify
 * it under the terms of the MIT License as described in the
 * LICENSE file distributed with this project.
 *
 * ployer is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * MIT License for more details.
 *
 * You should have received a copy of the MIT License
 * along with ployer. If not, see the LICENSE file in the project root.
 */

package health

import (
	"context"
	"sync"
	"testing"

	"github.com/nusendra/ployer/internal/eventbus"
	"github.com/nusendra/ployer/internal/models"
)

type fakeRestarter struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRestarter) Restart(ctx context.Context, appID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, appID)
	return nil
}

func (f *fakeRestarter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestMonitor(fr *fakeRestarter) *Monitor {
	return New(nil, nil, fr, eventbus.New())
}

func TestApplyTransitionHealthyAfterThreshold(t *testing.T) {
	fr := &fakeRestarter{}
	m := newTestMonitor(fr)
	hc := models.HealthCheck{HealthyThreshold: 2, UnhealthyThreshold: 2}

	m.applyTransition(context.Background(), "app1", hc, true)
	if got := m.counters["app1"].status; got != models.HealthUnknown {
		t.Fatalf("after 1 success expected still unknown, got %s", got)
	}

	m.applyTransition(context.Background(), "app1", hc, true)
	if got := m.counters["app1"].status; got != models.HealthHealthy {
		t.Fatalf("after 2 successes expected healthy, got %s", got)
	}
}

func TestApplyTransitionUnhealthyTriggersRestart(t *testing.T) {
	fr := &fakeRestarter{}
	m := newTestMonitor(fr)
	hc := models.HealthCheck{HealthyThreshold: 1, UnhealthyThreshold: 2}

	m.applyTransition(context.Background(), "app1", hc, true)
	if fr.count() != 0 {
		t.Fatalf("restart should not fire while healthy")
	}

	m.applyTransition(context.Background(), "app1", hc, false)
	m.applyTransition(context.Background(), "app1", hc, false)

	if got := m.counters["app1"].status; got != models.HealthUnhealthy {
		t.Fatalf("expected unhealthy after 2 consecutive failures, got %s", got)
	}
	if fr.count() != 1 {
		t.Fatalf("expected exactly one restart call, got %d", fr.count())
	}
}

func TestApplyTransitionDoesNotRestartRepeatedly(t *testing.T) {
	fr := &fakeRestarter{}
	m := newTestMonitor(fr)
	hc := models.HealthCheck{HealthyThreshold: 1, UnhealthyThreshold: 1}

	m.applyTransition(context.Background(), "app1", hc, false)
	m.applyTransition(context.Background(), "app1", hc, false)
	m.applyTransition(context.Background(), "app1", hc, false)

	if fr.count() != 1 {
		t.Fatalf("expected restart only on the transition edge, got %d calls", fr.count())
	}
}

func TestApplyTransitionResetsCountersOnMixedResults(t *testing.T) {
	fr := &fakeRestarter{}
	m := newTestMonitor(fr)
	hc := models.HealthCheck{HealthyThreshold: 2, UnhealthyThreshold: 2}

	m.applyTransition(context.Background(), "app1", hc, false)
	m.applyTransition(context.Background(), "app1", hc, true)

	c := m.counters["app1"]
	if c.consecFail != 0 || c.consecOK != 1 {
		t.Fatalf("expected a success to reset the failure streak, got consecFail=%d consecOK=%d", c.consecFail, c.consecOK)
	}
}
