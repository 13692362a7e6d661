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

// Package server wires every component together in the boot order SPEC_FULL.md
// §2.1 lays out and owns the process lifetime: the webhook HTTP listener, the
// Health & Stats Monitor loop, and the Reconciler's periodic loop. Modeled on
// the teacher's internal/api.Server (construct-in-NewServer, Start/Shutdown).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/nusendra/ployer/internal/config"
	"github.com/nusendra/ployer/internal/coreapi"
	"github.com/nusendra/ployer/internal/eventbus"
	"github.com/nusendra/ployer/internal/fleet"
	"github.com/nusendra/ployer/internal/gitadapter"
	"github.com/nusendra/ployer/internal/health"
	"github.com/nusendra/ployer/internal/orchestrator"
	"github.com/nusendra/ployer/internal/proxyadapter"
	"github.com/nusendra/ployer/internal/reconciler"
	"github.com/nusendra/ployer/internal/runtime"
	"github.com/nusendra/ployer/internal/secretbox"
	"github.com/nusendra/ployer/internal/storage"
	"github.com/nusendra/ployer/internal/webhookingress"
	"github.com/nusendra/ployer/pkg/logger"
)

// Services groups the plain-method-call service layer an external transport
// would bind HTTP paths to. Exported so cmd/ployerd (or a future transport
// package) can reach it without touching wiring internals.
type Services struct {
	Applications *coreapi.ApplicationService
	Deployments  *coreapi.DeploymentService
	Domains      *coreapi.DomainService
	Webhooks     *coreapi.WebhookConfigService
	HealthChecks *coreapi.HealthCheckService
	Stats        *coreapi.StatsService
}

type Server struct {
	cfg   *config.Config
	store storage.Store
	bus   *eventbus.Bus

	rt    *runtime.Runtime
	proxy *proxyadapter.Adapter
	fleet *fleet.Controller
	orch  *orchestrator.Orchestrator

	monitor     *health.Monitor
	reconciler  *reconciler.Reconciler
	webhookHTTP *http.Server

	Services *Services

	cancel context.CancelFunc
}

func New(cfg *config.Config, store storage.Store) (*Server, error) {
	bus := eventbus.New()
	box := secretbox.New(cfg.Auth.JWTSecret)
	git := gitadapter.New()

	rt, err := runtime.New(cfg.Docker.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("container runtime adapter: %w", err)
	}

	proxy := proxyadapter.New(cfg.Proxy.AdminURL)

	fl := fleet.New(rt, store, proxy, bus, cfg.Server.BaseDomain)
	orch := orchestrator.New(store, box, bus, git, rt, fl, proxy, cfg.Server.WorkDir, cfg.Server.BaseDomain)

	monitor := health.New(store, rt, fl, bus)
	recon := reconciler.New(store, rt, proxy, bus)

	ingress := webhookingress.New(store, orch)
	handler := webhookingress.NewHandler(ingress)
	router := mux.NewRouter()
	handler.Register(router)

	s := &Server{
		cfg:        cfg,
		store:      store,
		bus:        bus,
		rt:         rt,
		proxy:      proxy,
		fleet:      fl,
		orch:       orch,
		monitor:    monitor,
		reconciler: recon,
		webhookHTTP: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Services: &Services{
			Applications: coreapi.NewApplicationService(store, box, orch, fl, proxy),
			Deployments:  coreapi.NewDeploymentService(store, orch),
			Domains:      coreapi.NewDomainService(store, proxy),
			Webhooks:     coreapi.NewWebhookConfigService(store),
			HealthChecks: coreapi.NewHealthCheckService(store),
			Stats:        coreapi.NewStatsService(store),
		},
	}
	return s, nil
}

// Start runs the Reconciler's one-shot boot pass, then launches the
// long-running loops and the webhook listener. Matches step 8-10 of
// SPEC_FULL.md's startup order.
func (s *Server) Start(ctx context.Context) error {
	log := logger.With("server")

	if err := s.reconciler.Boot(ctx); err != nil {
		log.Error("boot reconciliation: %v", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go s.monitor.Run(loopCtx)
	go s.reconciler.Run(loopCtx)

	log.Info("webhook listener on %s", s.webhookHTTP.Addr)
	go func() {
		if err := s.webhookHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("webhook listener: %v", err)
		}
	}()

	return nil
}

// Shutdown stops accepting webhooks and tears down the periodic loops. It
// does not cancel in-flight deployments; the process exiting leaves their
// last known state for the next boot's Reconciler pass to pick up, per
// SPEC_FULL.md §2.1.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.webhookHTTP.Shutdown(ctx); err != nil {
		return fmt.Errorf("webhook listener shutdown: %w", err)
	}
	if s.rt != nil {
		_ = s.rt.Close()
	}
	return s.store.Close()
}
