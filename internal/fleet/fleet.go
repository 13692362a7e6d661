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

// Package fleet is the Fleet Controller (component H): owns the mapping
// application -> running container, performs rolling replacement on
// successful build and removes stale containers. Startup reconciliation is
// done by internal/reconciler, not by this package.
package fleet

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/nusendra/ployer/internal/eventbus"
	"github.com/nusendra/ployer/internal/ployererr"
	"github.com/nusendra/ployer/internal/runtime"
	"github.com/nusendra/ployer/internal/storage"
	"github.com/nusendra/ployer/pkg/logger"
)

// StartupGrace bounds Roll's liveness check on a new container: Roll dials
// the container's host port straight away and retries every 200ms until a
// dial succeeds or StartupGrace has elapsed. It does not wait out the grace
// before the first dial.
const StartupGrace = 5 * time.Second

// ContainerRuntime is the piece of internal/runtime the fleet controller
// needs. Declared locally so tests can swap in a fake instead of a real
// docker daemon; *runtime.Runtime satisfies it as-is.
type ContainerRuntime interface {
	CreateAndStart(ctx context.Context, opts runtime.CreateOptions) (containerID string, hostPort int, err error)
	Stop(ctx context.Context, containerID string) error
	Start(ctx context.Context, containerID string) error
	Remove(ctx context.Context, containerID string) error
	Inspect(ctx context.Context, containerID string) (exists, running bool, err error)
}

// RouteSetter is the piece of internal/proxyadapter the fleet controller
// needs. *proxyadapter.Adapter satisfies it as-is.
type RouteSetter interface {
	SetRoute(ctx context.Context, hostname, backendHost string, backendPort int) error
}

type Controller struct {
	rt    ContainerRuntime
	store storage.Store
	proxy RouteSetter
	bus   *eventbus.Bus

	baseDomain string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	log *logger.Logger
}

func New(rt ContainerRuntime, store storage.Store, proxy RouteSetter, bus *eventbus.Bus, baseDomain string) *Controller {
	return &Controller{
		rt:         rt,
		store:      store,
		proxy:      proxy,
		bus:        bus,
		baseDomain: baseDomain,
		locks:      make(map[string]*sync.Mutex),
		log:        logger.With("fleet"),
	}
}

// lockFor serializes roll/rollback/stop/remove per application: spec §5
// "it is an error for two roll operations to overlap for the same app."
func (c *Controller) lockFor(appID string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l, ok := c.locks[appID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[appID] = l
	}
	return l
}

// RollResult carries what the orchestrator persists onto the Deployment.
type RollResult struct {
	ContainerID string
	HostPort    int
}

// Roll creates a container for imageTag, checks that it accepts TCP
// connections on its host port within StartupGrace (healthPath is not used
// by that check), then switches the app's proxy route to it and retires the
// previous container. When containerPort is 0 there is no check and no route
// switch. On any failure it removes only the new container, leaving the
// previous one serving (spec §4.2).
func (c *Controller) Roll(ctx context.Context, appID, deploymentID, imageTag string, env []string, containerPort int, healthPath string) (*RollResult, error) {
	lock := c.lockFor(appID)
	lock.Lock()
	defer lock.Unlock()

	app, err := c.store.GetApplication(appID)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "fleet.Roll", err)
	}
	if app == nil {
		return nil, ployererr.NotFoundf("fleet.Roll", "application %s not found", appID)
	}

	prevContainerID, _ := c.currentContainerID(appID)

	name := runtime.ContainerName(app.Name, deploymentID)
	containerID, hostPort, err := c.rt.CreateAndStart(ctx, runtime.CreateOptions{
		Name:  name,
		Image: imageTag,
		Env:   env,
		Port:  containerPort,
		AppID: appID,
	})
	if err != nil {
		if containerID != "" {
			_ = c.rt.Remove(context.Background(), containerID)
		}
		return nil, err
	}

	if containerPort > 0 {
		if err := c.waitHealthy(ctx, hostPort, healthPath); err != nil {
			c.log.Warn("roll: health gate failed for %s: %v", app.Name, err)
			_ = c.rt.Remove(context.Background(), containerID)
			return nil, ployererr.Upstreamf("fleet.Roll", fmt.Errorf("new container failed health gate: %w", err))
		}

		domain, derr := c.store.GetPrimaryDomain(appID)
		if derr != nil {
			_ = c.rt.Remove(context.Background(), containerID)
			return nil, ployererr.New(ployererr.Internal, "fleet.Roll", derr)
		}
		if domain != nil {
			if err := c.proxy.SetRoute(ctx, domain.Hostname, "127.0.0.1", hostPort); err != nil {
				c.log.Warn("roll: proxy route update failed, will be retried by reconciler: %v", err)
			}
		}
	}

	if prevContainerID != "" && prevContainerID != containerID {
		_ = c.rt.Stop(ctx, prevContainerID)
		_ = c.rt.Remove(ctx, prevContainerID)
	}

	return &RollResult{ContainerID: containerID, HostPort: hostPort}, nil
}

func (c *Controller) waitHealthy(ctx context.Context, hostPort int, path string) error {
	deadline := time.Now().Add(StartupGrace)
	addr := fmt.Sprintf("127.0.0.1:%d", hostPort)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			conn.Close()
			return nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return lastErr
}

// Rollback removes the container recorded on the app's most recent
// non-terminal deployment, leaving whatever was running before untouched.
// The orchestrator calls it after every failed deployment, once the failure
// is persisted; that deployment is then terminal and is not the one
// GetActiveDeployment returns, so on that path Rollback removes nothing. A
// failed Roll has already removed its own new container.
func (c *Controller) Rollback(ctx context.Context, appID string) error {
	lock := c.lockFor(appID)
	lock.Lock()
	defer lock.Unlock()

	dep, err := c.store.GetActiveDeployment(appID)
	if err != nil {
		return ployererr.New(ployererr.Internal, "fleet.Rollback", err)
	}
	if dep == nil || dep.ContainerID == "" {
		return nil
	}
	return c.rt.Remove(ctx, dep.ContainerID)
}

func (c *Controller) Stop(ctx context.Context, appID string) error {
	lock := c.lockFor(appID)
	lock.Lock()
	defer lock.Unlock()

	id, ok := c.currentContainerID(appID)
	if !ok {
		return nil
	}
	return c.rt.Stop(ctx, id)
}

func (c *Controller) Remove(ctx context.Context, appID string) error {
	lock := c.lockFor(appID)
	lock.Lock()
	defer lock.Unlock()

	id, ok := c.currentContainerID(appID)
	if !ok {
		return nil
	}
	if err := c.rt.Stop(ctx, id); err != nil {
		c.log.Warn("remove: stop failed for %s: %v", appID, err)
	}
	return c.rt.Remove(ctx, id)
}

// Restart is used by the Health & Stats Monitor (I) to bounce an unhealthy
// container in place, without changing the image tag. A container stopped
// through the API is not brought back by RestartPolicy "unless-stopped" (that
// policy only covers the daemon restarting or the process exiting on its
// own), so Restart must explicitly start it back up and confirm it is
// running before returning.
func (c *Controller) Restart(ctx context.Context, appID string) error {
	lock := c.lockFor(appID)
	lock.Lock()
	defer lock.Unlock()

	id, ok := c.currentContainerID(appID)
	if !ok {
		return ployererr.NotFoundf("fleet.Restart", "no current container for %s", appID)
	}
	if err := c.rt.Stop(ctx, id); err != nil {
		return err
	}
	if err := c.rt.Start(ctx, id); err != nil {
		return err
	}
	exists, running, err := c.rt.Inspect(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ployererr.NotFoundf("fleet.Restart", "container %s vanished", id)
	}
	if !running {
		return ployererr.Upstreamf("fleet.Restart", fmt.Errorf("container %s did not come back up", id))
	}
	return nil
}

// Current returns the container id currently serving appID, if any.
func (c *Controller) Current(appID string) (string, bool) {
	return c.currentContainerID(appID)
}

func (c *Controller) currentContainerID(appID string) (string, bool) {
	dep, err := c.store.GetLatestRunningDeployment(appID)
	if err != nil || dep == nil || dep.ContainerID == "" {
		return "", false
	}
	return dep.ContainerID, true
}
