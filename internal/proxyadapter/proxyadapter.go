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

// Package proxyadapter is the Reverse-Proxy Route Manager (F): declarative
// route CRUD against an external proxy admin HTTP endpoint. Ployer never
// terminates TLS itself; it only tells the proxy daemon what to do, the way
// the teacher's docker.Service talks to an external daemon over a thin REST
// client rather than embedding the daemon.
package proxyadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nusendra/ployer/internal/ployererr"
	"github.com/nusendra/ployer/pkg/logger"
)

type CertStatus string

const (
	CertActive  CertStatus = "active"
	CertPending CertStatus = "pending"
	CertNone    CertStatus = "none"
)

type Route struct {
	Hostname    string `json:"hostname"`
	BackendHost string `json:"backend_host"`
	BackendPort int    `json:"backend_port"`
}

type Adapter struct {
	adminURL string
	client   *http.Client
	log      *logger.Logger
}

// New configures a Reverse-Proxy Route Manager against the admin endpoint
// spec §6.3 describes: "F issues POST/DELETE on a routes resource and GET
// on a certificates resource."
func New(adminURL string) *Adapter {
	return &Adapter{
		adminURL: adminURL,
		client:   &http.Client{Timeout: 10 * time.Second}, // spec §5 proxy-apply default timeout
		log:      logger.With("proxyadapter"),
	}
}

func (a *Adapter) SetRoute(ctx context.Context, hostname, backendHost string, backendPort int) error {
	route := Route{Hostname: hostname, BackendHost: backendHost, BackendPort: backendPort}
	body, err := json.Marshal(route)
	if err != nil {
		return ployererr.New(ployererr.Internal, "proxyadapter.SetRoute", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.adminURL+"/routes", bytes.NewReader(body))
	if err != nil {
		return ployererr.New(ployererr.Internal, "proxyadapter.SetRoute", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return a.do(req, "proxyadapter.SetRoute")
}

func (a *Adapter) RemoveRoute(ctx context.Context, hostname string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.adminURL+"/routes/"+hostname, nil)
	if err != nil {
		return ployererr.New(ployererr.Internal, "proxyadapter.RemoveRoute", err)
	}
	return a.do(req, "proxyadapter.RemoveRoute")
}

func (a *Adapter) ListRoutes(ctx context.Context) ([]Route, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.adminURL+"/routes", nil)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "proxyadapter.ListRoutes", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, ployererr.Upstreamf("proxyadapter.ListRoutes", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, ployererr.Upstreamf("proxyadapter.ListRoutes", fmt.Errorf("proxy admin returned %d", resp.StatusCode))
	}

	var routes []Route
	if err := json.NewDecoder(resp.Body).Decode(&routes); err != nil {
		return nil, ployererr.Upstreamf("proxyadapter.ListRoutes", err)
	}
	return routes, nil
}

func (a *Adapter) CertStatus(ctx context.Context, hostname string) (CertStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.adminURL+"/certificates/"+hostname, nil)
	if err != nil {
		return CertNone, ployererr.New(ployererr.Internal, "proxyadapter.CertStatus", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return CertNone, ployererr.Upstreamf("proxyadapter.CertStatus", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return CertNone, nil
	}
	if resp.StatusCode >= 300 {
		return CertNone, ployererr.Upstreamf("proxyadapter.CertStatus", fmt.Errorf("proxy admin returned %d", resp.StatusCode))
	}

	var payload struct {
		Status CertStatus `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return CertNone, ployererr.Upstreamf("proxyadapter.CertStatus", err)
	}
	return payload.Status, nil
}

func (a *Adapter) do(req *http.Request, op string) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return ployererr.Upstreamf(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return ployererr.Upstreamf(op, fmt.Errorf("proxy admin returned %d: %s", resp.StatusCode, string(body)))
	}
	return nil
}
