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

// Package reconciler is the Reconciler (component K): on boot it checks that
// each running application's container still exists (looked up by its
// deterministic name), reaps containers whose ployer.app_id label names no
// known application, and converges the reverse proxy's route
// table with the Domains table. A lightweight periodic pass repeats the
// route convergence so route drift caused by a failed proxy call heals
// itself, matching spec §9's design note that individual roll operations
// need not update the proxy reliably as long as convergence eventually
// happens.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/nusendra/ployer/internal/eventbus"
	"github.com/nusendra/ployer/internal/models"
	"github.com/nusendra/ployer/internal/proxyadapter"
	"github.com/nusendra/ployer/internal/runtime"
	"github.com/nusendra/ployer/internal/storage"
	"github.com/nusendra/ployer/pkg/logger"
)

const RouteSweepInterval = 60 * time.Second

type Reconciler struct {
	store storage.Store
	rt    *runtime.Runtime
	proxy *proxyadapter.Adapter
	bus   *eventbus.Bus
	log   *logger.Logger
}

func New(store storage.Store, rt *runtime.Runtime, proxy *proxyadapter.Adapter, bus *eventbus.Bus) *Reconciler {
	return &Reconciler{store: store, rt: rt, proxy: proxy, bus: bus, log: logger.With("reconciler")}
}

// Boot performs the one-shot startup reconciliation spec §4.8 describes: for
// every application whose most recent deployment claims to be running,
// confirm the backing container actually exists; if it doesn't, demote the
// application to stopped rather than silently redeploying it. It then reaps
// any managed container that no longer maps to a known application, and
// finally converges the proxy's route table.
func (r *Reconciler) Boot(ctx context.Context) error {
	if err := r.reconcileApplications(ctx); err != nil {
		return fmt.Errorf("reconcile applications: %w", err)
	}
	if err := r.reapOrphans(ctx); err != nil {
		return fmt.Errorf("reap orphaned containers: %w", err)
	}
	if err := r.reconcileRoutes(ctx); err != nil {
		return fmt.Errorf("reconcile routes: %w", err)
	}
	return nil
}

// Run drives the periodic route-only reconciliation pass until ctx is
// cancelled. Application/container ownership is only re-derived at boot;
// steady-state drift there is instead handled by the Fleet Controller and
// Health Monitor as it happens.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(RouteSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.reconcileRoutes(ctx); err != nil {
				r.log.Error("periodic route reconciliation: %v", err)
			}
		}
	}
}

func (r *Reconciler) reconcileApplications(ctx context.Context) error {
	apps, err := r.store.GetAllApplications()
	if err != nil {
		return err
	}

	for _, app := range apps {
		if app.Status != models.AppRunning {
			continue
		}

		dep, err := r.store.GetLatestRunningDeployment(app.ID)
		if err != nil {
			r.log.Error("boot: lookup latest deployment for %s: %v", app.ID, err)
			continue
		}
		if dep == nil {
			r.demote(app.ID, "no running deployment record")
			continue
		}

		name := runtime.ContainerName(app.Name, dep.ID)
		id, running, err := r.rt.FindByName(ctx, name)
		if err != nil {
			r.log.Error("boot: find container %s: %v", name, err)
			continue
		}
		if id == "" || !running {
			r.demote(app.ID, fmt.Sprintf("container %s not found or not running", name))
			continue
		}

		r.log.Info("application %s confirmed running as container %s", app.Name, id)
	}

	return nil
}

func (r *Reconciler) demote(appID, reason string) {
	r.log.Warn("demoting application %s to stopped: %s", appID, reason)
	if err := r.store.UpdateApplicationStatus(appID, models.AppStopped); err != nil {
		r.log.Error("demote %s: %v", appID, err)
		return
	}
	r.bus.Publish(fmt.Sprintf("app:%s", appID), map[string]string{"status": string(models.AppStopped), "reason": reason})
}

// reapOrphans removes managed containers whose ployer.app_id label points at
// an application that no longer exists, e.g. one deleted while the daemon
// was down.
func (r *Reconciler) reapOrphans(ctx context.Context) error {
	managed, err := r.rt.ListManaged(ctx)
	if err != nil {
		return err
	}

	for containerID, appID := range managed {
		app, err := r.store.GetApplication(appID)
		if err != nil {
			r.log.Error("reapOrphans: lookup %s: %v", appID, err)
			continue
		}
		if app != nil {
			continue
		}

		r.log.Warn("removing orphaned container %s (owner application %s no longer exists)", containerID, appID)
		if err := r.rt.Remove(ctx, containerID); err != nil {
			r.log.Error("reapOrphans: remove %s: %v", containerID, err)
		}
	}

	return nil
}

// reconcileRoutes rebuilds the reverse proxy's desired route set from the
// Domains table, installs anything missing, and prunes routes for hostnames
// Domains no longer backs with a running application (spec §4.3/§4.8: "K
// periodically reconciles the desired route set... against list_routes(),
// adding missing routes and removing orphaned ones"). A route whose hostname
// has no Domain row at all is left alone rather than deleted, since that
// could be a certificate the proxy is mid-provisioning for a domain not yet
// persisted; only hostnames Domains does know about, but that no longer map
// to a running application, count as orphaned.
func (r *Reconciler) reconcileRoutes(ctx context.Context) error {
	domains, err := r.store.GetAllDomains()
	if err != nil {
		return err
	}

	desired := make(map[string]bool, len(domains))

	for _, d := range domains {
		app, err := r.store.GetApplication(d.ApplicationID)
		if err != nil || app == nil || app.Status != models.AppRunning {
			continue
		}
		dep, err := r.store.GetLatestRunningDeployment(app.ID)
		if err != nil || dep == nil || dep.HostPort == 0 {
			continue
		}
		if err := r.proxy.SetRoute(ctx, d.Hostname, "127.0.0.1", dep.HostPort); err != nil {
			r.log.Error("reconcileRoutes: %s: %v", d.Hostname, err)
			continue
		}
		desired[d.Hostname] = true
	}

	known := make(map[string]bool, len(domains))
	for _, d := range domains {
		known[d.Hostname] = true
	}

	routes, err := r.proxy.ListRoutes(ctx)
	if err != nil {
		r.log.Error("reconcileRoutes: list routes: %v", err)
		return nil
	}

	for _, route := range routes {
		if desired[route.Hostname] || !known[route.Hostname] {
			continue
		}
		r.log.Warn("removing orphaned proxy route %s (no running application owns it)", route.Hostname)
		if err := r.proxy.RemoveRoute(ctx, route.Hostname); err != nil {
			r.log.Error("reconcileRoutes: remove orphaned route %s: %v", route.Hostname, err)
		}
	}

	return nil
}
