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

// Package health is the Health & Stats Monitor (component I): periodically
// probes each running application's HTTP health endpoint, maintains
// consecutive-success/consecutive-failure counters, triggers auto-restart
// through the Fleet Controller, and samples container stats with retention.
//
// Concrete tick intervals (15s health probes, 60s stats samples, hourly
// retention sweep) come from the original Rust implementation's
// app_health_monitor.rs / stats_aggregator.rs, which the distilled spec
// left as tunable defaults (see SPEC_FULL.md §4.7).
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nusendra/ployer/internal/eventbus"
	"github.com/nusendra/ployer/internal/models"
	"github.com/nusendra/ployer/internal/runtime"
	"github.com/nusendra/ployer/internal/storage"
	"github.com/nusendra/ployer/pkg/logger"
)

const (
	ProbeInterval    = 15 * time.Second
	StatsInterval    = 60 * time.Second
	RetentionSweep   = time.Hour
	StatsRetainHours = 24
)

// Restarter is the slice of the Fleet Controller the monitor drives.
type Restarter interface {
	Restart(ctx context.Context, appID string) error
}

type Monitor struct {
	store   storage.Store
	rt      *runtime.Runtime
	fleet   Restarter
	bus     *eventbus.Bus
	client  *http.Client

	mu       sync.Mutex
	counters map[string]*counter

	log *logger.Logger
}

type counter struct {
	consecOK   int
	consecFail int
	status     models.HealthStatus
}

func New(store storage.Store, rt *runtime.Runtime, fl Restarter, bus *eventbus.Bus) *Monitor {
	return &Monitor{
		store:    store,
		rt:       rt,
		fleet:    fl,
		bus:      bus,
		client:   &http.Client{},
		counters: make(map[string]*counter),
		log:      logger.With("health"),
	}
}

// Run blocks until ctx is cancelled, driving the three independent tickers
// spec §4.7 describes: health probes, stats sampling, and retention sweep.
func (m *Monitor) Run(ctx context.Context) {
	probeTicker := time.NewTicker(ProbeInterval)
	statsTicker := time.NewTicker(StatsInterval)
	sweepTicker := time.NewTicker(RetentionSweep)
	defer probeTicker.Stop()
	defer statsTicker.Stop()
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-probeTicker.C:
			m.probeAll(ctx)
		case <-statsTicker.C:
			m.sampleAll(ctx)
		case <-sweepTicker.C:
			m.sweep()
		}
	}
}

func (m *Monitor) probeAll(ctx context.Context) {
	apps, err := m.store.GetAllApplications()
	if err != nil {
		m.log.Error("probeAll: list applications: %v", err)
		return
	}
	for _, app := range apps {
		if app.Status != models.AppRunning {
			continue
		}
		hc, err := m.store.GetHealthCheck(app.ID)
		if err != nil || hc == nil {
			continue
		}
		dep, err := m.store.GetLatestRunningDeployment(app.ID)
		if err != nil || dep == nil || dep.HostPort == 0 {
			continue
		}
		m.probeOne(ctx, app, *hc, dep)
	}
}

func (m *Monitor) probeOne(ctx context.Context, app models.Application, hc models.HealthCheck, dep *models.Deployment) {
	url := fmt.Sprintf("http://127.0.0.1:%d%s", dep.HostPort, hc.Path)
	pctx, cancel := context.WithTimeout(ctx, time.Duration(hc.TimeoutSeconds)*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(pctx, http.MethodGet, url, nil)
	start := time.Now()
	resp, err := m.client.Do(req)
	elapsedMs := int(time.Since(start).Milliseconds())

	result := &models.HealthCheckResult{
		ApplicationID:  app.ID,
		ContainerID:    dep.ContainerID,
		ResponseTimeMs: elapsedMs,
	}

	ok := false
	if err != nil {
		result.Status = models.HealthUnhealthy
		result.ErrorMessage = err.Error()
	} else {
		defer resp.Body.Close()
		result.StatusCode = resp.StatusCode
		ok = resp.StatusCode >= 200 && resp.StatusCode < 300
		if ok {
			result.Status = models.HealthHealthy
		} else {
			result.Status = models.HealthUnhealthy
			result.ErrorMessage = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
	}

	if rerr := m.store.RecordHealthCheckResult(result); rerr != nil {
		m.log.Error("probeOne: record result for %s: %v", app.ID, rerr)
	}

	m.applyTransition(ctx, app.ID, hc, ok)
}

// applyTransition implements spec §4.7's threshold state machine:
// unknown/unhealthy -> healthy at consec_ok >= healthy_threshold,
// unknown/healthy -> unhealthy at consec_fail >= unhealthy_threshold,
// restarting through the Fleet Controller whenever the status changes to
// unhealthy (not on further failures while it stays unhealthy).
func (m *Monitor) applyTransition(ctx context.Context, appID string, hc models.HealthCheck, ok bool) {
	m.mu.Lock()
	c, exists := m.counters[appID]
	if !exists {
		c = &counter{status: models.HealthUnknown}
		m.counters[appID] = c
	}

	if ok {
		c.consecOK++
		c.consecFail = 0
	} else {
		c.consecFail++
		c.consecOK = 0
	}

	prev := c.status
	next := prev
	switch prev {
	case models.HealthHealthy:
		if c.consecFail >= hc.UnhealthyThreshold {
			next = models.HealthUnhealthy
		}
	default:
		if c.consecOK >= hc.HealthyThreshold {
			next = models.HealthHealthy
		} else if c.consecFail >= hc.UnhealthyThreshold {
			next = models.HealthUnhealthy
		}
	}
	c.status = next
	m.mu.Unlock()

	if next == prev {
		return
	}

	m.bus.Publish(fmt.Sprintf("app:%s", appID), map[string]string{"from": string(prev), "to": string(next)})

	if next == models.HealthUnhealthy {
		m.log.Warn("application %s transitioned to unhealthy, restarting", appID)
		if err := m.fleet.Restart(ctx, appID); err != nil {
			m.log.Error("restart of %s failed: %v", appID, err)
		}
	}
}

func (m *Monitor) sampleAll(ctx context.Context) {
	apps, err := m.store.GetAllApplications()
	if err != nil {
		m.log.Error("sampleAll: list applications: %v", err)
		return
	}
	for _, app := range apps {
		dep, err := m.store.GetLatestRunningDeployment(app.ID)
		if err != nil || dep == nil || dep.ContainerID == "" {
			continue
		}
		stats, err := m.rt.SampleStats(ctx, dep.ContainerID)
		if err != nil || stats == nil {
			continue
		}
		cs := &models.ContainerStats{
			ContainerID:   dep.ContainerID,
			ApplicationID: app.ID,
			CPUPercent:    stats.CPUPercent,
			MemoryMB:      stats.MemoryMB,
			MemoryLimitMB: stats.MemoryLimitMB,
			NetworkRxMB:   stats.NetworkRxMB,
			NetworkTxMB:   stats.NetworkTxMB,
		}
		if err := m.store.RecordContainerStats(cs); err != nil {
			m.log.Error("sampleAll: record stats for %s: %v", app.ID, err)
		}
		m.bus.Publish(fmt.Sprintf("container:%s:stats", dep.ContainerID), cs)
	}
}

// sweep enforces the 24-hour ContainerStats retention window (spec §4.7,
// invariant 10): rows older than the window are gone within one sweep
// interval of their expiry.
func (m *Monitor) sweep() {
	deleted, err := m.store.DeleteStatsOlderThan(StatsRetainHours)
	if err != nil {
		m.log.Error("sweep: %v", err)
		return
	}
	if deleted > 0 {
		m.log.Debug("retention sweep removed %d stale container_stats rows", deleted)
	}
}
