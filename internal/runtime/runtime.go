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

// Package runtime is the Container Runtime Adapter (component D): a thin
// wrapper over the Docker Engine API used for image builds, container
// lifecycle, log tailing and stat sampling. It never touches the store or
// the event bus directly; callers (the orchestrator, fleet controller and
// health monitor) push what it returns onto those.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/go-connections/nat"

	"github.com/nusendra/ployer/internal/ployererr"
	"github.com/nusendra/ployer/pkg/logger"
)

// ManagedLabel tags every container ployer creates, carrying the owning
// application id so the reconciler (K) can recover ownership after a
// process restart (spec §4.2).
const ManagedLabel = "ployer.app_id"

type Runtime struct {
	cli *client.Client
	log *logger.Logger
}

// New connects to the Docker daemon over the configured socket path.
func New(socketPath string) (*Runtime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if socketPath != "" {
		opts = append(opts, client.WithHost("unix://"+socketPath))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, ployererr.Upstreamf("runtime.New", fmt.Errorf("create docker client: %w", err))
	}
	return &Runtime{cli: cli, log: logger.With("runtime")}, nil
}

func (r *Runtime) Close() error {
	if r.cli == nil {
		return nil
	}
	return r.cli.Close()
}

func (r *Runtime) Ping(ctx context.Context) error {
	if _, err := r.cli.Ping(ctx); err != nil {
		return ployererr.Upstreamf("runtime.Ping", err)
	}
	return nil
}

// BuildResult is the outcome of a successful image build.
type BuildResult struct {
	ImageTag string
}

// BuildImage tars contextDir (respecting dockerfilePath when set) and streams
// the build log to onLine, matching the discipline spec §4.1 "building"
// requires: log lines pushed to the event bus as they arrive.
func (r *Runtime) BuildImage(ctx context.Context, contextDir, dockerfilePath, tag string, onLine func(string)) error {
	buildCtx, err := r.tarContext(contextDir)
	if err != nil {
		return ployererr.Upstreamf("runtime.BuildImage", err)
	}
	defer buildCtx.Close()

	opts := types.ImageBuildOptions{
		Tags:        []string{tag},
		Remove:      true,
		ForceRemove: true,
	}
	if dockerfilePath != "" {
		opts.Dockerfile = dockerfilePath
	}

	resp, err := r.cli.ImageBuild(ctx, buildCtx, opts)
	if err != nil {
		return ployererr.Upstreamf("runtime.BuildImage", fmt.Errorf("image build: %w", err))
	}
	defer resp.Body.Close()

	decoder := json.NewDecoder(resp.Body)
	for {
		var msg buildMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return ployererr.Upstreamf("runtime.BuildImage", fmt.Errorf("decode build output: %w", err))
		}
		if e := msg.errorMessage(); e != "" {
			return ployererr.Upstreamf("runtime.BuildImage", fmt.Errorf("build failed: %s", e))
		}
		if line := msg.render(); line != "" && onLine != nil {
			onLine(line)
		}
	}
	return nil
}

func (r *Runtime) tarContext(dir string) (io.ReadCloser, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, err
	}
	return archive.TarWithOptions(dir, &archive.TarOptions{})
}

type buildMessage struct {
	Stream         string                `json:"stream"`
	Status         string                `json:"status"`
	ID             string                `json:"id"`
	Progress       string                `json:"progress"`
	ProgressDetail struct{ Current, Total int64 } `json:"progressDetail"`
	Error          string                `json:"error"`
	ErrorDetail    struct{ Message string } `json:"errorDetail"`
}

func (m buildMessage) errorMessage() string {
	if strings.TrimSpace(m.Error) != "" {
		return strings.TrimSpace(m.Error)
	}
	if strings.TrimSpace(m.ErrorDetail.Message) != "" {
		return strings.TrimSpace(m.ErrorDetail.Message)
	}
	return ""
}

func (m buildMessage) render() string {
	if m.Stream != "" {
		return strings.TrimRight(m.Stream, "\n")
	}
	if m.Status != "" {
		parts := []string{}
		if strings.TrimSpace(m.ID) != "" {
			parts = append(parts, m.ID)
		}
		parts = append(parts, m.Status)
		if m.Progress != "" {
			parts = append(parts, m.Progress)
		}
		return strings.Join(parts, " ")
	}
	return ""
}

// CreateOptions describes a container to create.
type CreateOptions struct {
	Name      string
	Image     string
	Env       []string
	Port      int // container port to expose, 0 = none
	AppID     string
}

// CreateAndStart creates and starts a container, letting Docker pick an
// ephemeral host port when Port is set, and returns the container id plus
// the chosen host port.
func (r *Runtime) CreateAndStart(ctx context.Context, opts CreateOptions) (containerID string, hostPort int, err error) {
	cfg := &container.Config{
		Image:  opts.Image,
		Env:    opts.Env,
		Labels: map[string]string{ManagedLabel: opts.AppID},
	}
	hostCfg := &container.HostConfig{
		RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
	}

	if opts.Port > 0 {
		containerPort, perr := nat.NewPort("tcp", fmt.Sprintf("%d", opts.Port))
		if perr != nil {
			return "", 0, ployererr.Validationf("runtime.CreateAndStart", "bad port %d: %v", opts.Port, perr)
		}
		cfg.ExposedPorts = nat.PortSet{containerPort: struct{}{}}
		hostCfg.PortBindings = nat.PortMap{containerPort: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: ""}}}
	}

	created, cerr := r.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, opts.Name)
	if cerr != nil {
		return "", 0, ployererr.Upstreamf("runtime.CreateAndStart", fmt.Errorf("container create: %w", cerr))
	}

	if serr := r.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); serr != nil {
		return created.ID, 0, ployererr.Upstreamf("runtime.CreateAndStart", fmt.Errorf("container start: %w", serr))
	}

	if opts.Port == 0 {
		return created.ID, 0, nil
	}

	var inspect types.ContainerJSON
	for attempt := 0; attempt < 20; attempt++ {
		inspect, err = r.cli.ContainerInspect(ctx, created.ID)
		if err != nil {
			return created.ID, 0, ployererr.Upstreamf("runtime.CreateAndStart", err)
		}
		if p := hostPortOf(inspect, opts.Port); p != 0 {
			return created.ID, p, nil
		}
		select {
		case <-ctx.Done():
			return created.ID, 0, ployererr.New(ployererr.Timeout, "runtime.CreateAndStart", ctx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}
	return created.ID, 0, ployererr.Upstreamf("runtime.CreateAndStart", fmt.Errorf("timed out waiting for host port"))
}

func hostPortOf(inspect types.ContainerJSON, containerPort int) int {
	if inspect.NetworkSettings == nil {
		return 0
	}
	port, err := nat.NewPort("tcp", fmt.Sprintf("%d", containerPort))
	if err != nil {
		return 0
	}
	bindings, ok := inspect.NetworkSettings.Ports[port]
	if !ok || len(bindings) == 0 {
		return 0
	}
	var p int
	fmt.Sscanf(bindings[0].HostPort, "%d", &p)
	return p
}

func (r *Runtime) Stop(ctx context.Context, containerID string) error {
	timeout := 10
	if err := r.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return ployererr.Upstreamf("runtime.Stop", err)
	}
	return nil
}

// Start starts an existing, stopped container. Used to bring a container
// back up after an explicit Stop, since containers stopped through the API
// are not restarted by RestartPolicy "unless-stopped" (that policy only
// covers the daemon restarting or the container's own process exiting).
func (r *Runtime) Start(ctx context.Context, containerID string) error {
	if err := r.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		if client.IsErrNotFound(err) {
			return ployererr.NotFoundf("runtime.Start", "container %s not found", containerID)
		}
		return ployererr.Upstreamf("runtime.Start", err)
	}
	return nil
}

func (r *Runtime) Remove(ctx context.Context, containerID string) error {
	if err := r.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return ployererr.Upstreamf("runtime.Remove", err)
	}
	return nil
}

// Inspect reports whether the named container exists and is running.
func (r *Runtime) Inspect(ctx context.Context, containerID string) (exists, running bool, err error) {
	info, ierr := r.cli.ContainerInspect(ctx, containerID)
	if ierr != nil {
		if client.IsErrNotFound(ierr) {
			return false, false, nil
		}
		return false, false, ployererr.Upstreamf("runtime.Inspect", ierr)
	}
	return true, info.State != nil && info.State.Running, nil
}

// FindByName returns the container id for a container with the given name,
// or "" if none exists. Used by the reconciler to recover ownership.
func (r *Runtime) FindByName(ctx context.Context, name string) (id string, running bool, err error) {
	containers, lerr := r.cli.ContainerList(ctx, container.ListOptions{All: true})
	if lerr != nil {
		return "", false, ployererr.Upstreamf("runtime.FindByName", lerr)
	}
	for _, c := range containers {
		for _, n := range c.Names {
			if strings.TrimPrefix(n, "/") == name {
				return c.ID, c.State == "running", nil
			}
		}
	}
	return "", false, nil
}

// ListManaged returns id -> app_id for every container carrying ManagedLabel.
func (r *Runtime) ListManaged(ctx context.Context) (map[string]string, error) {
	containers, err := r.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, ployererr.Upstreamf("runtime.ListManaged", err)
	}
	out := make(map[string]string)
	for _, c := range containers {
		if appID, ok := c.Labels[ManagedLabel]; ok {
			out[c.ID] = appID
		}
	}
	return out, nil
}

// Stats is one sampled resource-usage snapshot.
type Stats struct {
	CPUPercent  float64
	MemoryMB    float64
	MemoryLimitMB float64
	NetworkRxMB float64
	NetworkTxMB float64
}

func (r *Runtime) SampleStats(ctx context.Context, containerID string) (*Stats, error) {
	resp, err := r.cli.ContainerStats(ctx, containerID, false)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, nil
		}
		return nil, ployererr.Upstreamf("runtime.SampleStats", err)
	}
	defer resp.Body.Close()

	var raw struct {
		CPUStats struct {
			CPUUsage    struct{ TotalUsage uint64 `json:"total_usage"` } `json:"cpu_usage"`
			SystemUsage uint64 `json:"system_cpu_usage"`
			OnlineCPUs  int    `json:"online_cpus"`
		} `json:"cpu_stats"`
		PreCPUStats struct {
			CPUUsage    struct{ TotalUsage uint64 `json:"total_usage"` } `json:"cpu_usage"`
			SystemUsage uint64 `json:"system_cpu_usage"`
		} `json:"precpu_stats"`
		MemoryStats struct {
			Usage uint64 `json:"usage"`
			Limit uint64 `json:"limit"`
		} `json:"memory_stats"`
		Networks map[string]struct {
			RxBytes uint64 `json:"rx_bytes"`
			TxBytes uint64 `json:"tx_bytes"`
		} `json:"networks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, ployererr.Upstreamf("runtime.SampleStats", err)
	}

	cpuDelta := float64(raw.CPUStats.CPUUsage.TotalUsage) - float64(raw.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(raw.CPUStats.SystemUsage) - float64(raw.PreCPUStats.SystemUsage)
	cpuPercent := 0.0
	if sysDelta > 0 && cpuDelta > 0 {
		cpuPercent = (cpuDelta / sysDelta) * float64(raw.CPUStats.OnlineCPUs) * 100.0
	}

	var rx, tx uint64
	for _, n := range raw.Networks {
		rx += n.RxBytes
		tx += n.TxBytes
	}

	const mib = 1024 * 1024
	return &Stats{
		CPUPercent:    cpuPercent,
		MemoryMB:      float64(raw.MemoryStats.Usage) / mib,
		MemoryLimitMB: float64(raw.MemoryStats.Limit) / mib,
		NetworkRxMB:   float64(rx) / mib,
		NetworkTxMB:   float64(tx) / mib,
	}, nil
}

// TailLogs returns the last tail lines of combined stdout/stderr, matching
// the tail semantics D.logs(tail + follow) needs for the non-streaming case.
func (r *Runtime) TailLogs(ctx context.Context, containerID string, tail int) ([]string, error) {
	out, err := r.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true, ShowStderr: true, Tail: fmt.Sprintf("%d", tail),
	})
	if err != nil {
		return nil, ployererr.Upstreamf("runtime.TailLogs", err)
	}
	defer out.Close()

	data, err := io.ReadAll(out)
	if err != nil {
		return nil, ployererr.Upstreamf("runtime.TailLogs", err)
	}
	lines := []string{}
	for _, l := range strings.Split(string(data), "\n") {
		l = strings.TrimSpace(stripDockerLogHeader(l))
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

// stripDockerLogHeader drops the 8-byte multiplexing header Docker prefixes
// to each frame when the container has no TTY attached.
func stripDockerLogHeader(line string) string {
	if len(line) >= 8 && (line[0] == 1 || line[0] == 2) {
		return line[8:]
	}
	return line
}

// ContainerName derives the deterministic container name spec §4.2 requires:
// {app-name}-{deployment-id}.
func ContainerName(appName, deploymentID string) string {
	return fmt.Sprintf("%s-%s", appName, deploymentID)
}

// ImageTag derives the required image tag spec §3 requires:
// ployer-{app-name}:{deployment-id}.
func ImageTag(appName, deploymentID string) string {
	return fmt.Sprintf("ployer-%s:%s", appName, deploymentID)
}
