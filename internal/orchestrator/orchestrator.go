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

// Package orchestrator is the Deployment Orchestrator (component G): the
// pipeline state machine described in spec §4.1. A dispatcher owns one
// worker per application; each worker drains a one-slot mailbox that
// collapses adjacent queued deployments down to the newest, making
// "at most one active deployment per application" a structural property
// (see spec §9's design note) rather than an opportunistic check.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nusendra/ployer/internal/eventbus"
	"github.com/nusendra/ployer/internal/fleet"
	"github.com/nusendra/ployer/internal/gitadapter"
	"github.com/nusendra/ployer/internal/models"
	"github.com/nusendra/ployer/internal/ployererr"
	"github.com/nusendra/ployer/internal/runtime"
	"github.com/nusendra/ployer/internal/secretbox"
	"github.com/nusendra/ployer/internal/storage"
	"github.com/nusendra/ployer/pkg/logger"
)

// MaxBuildLogBytes bounds Deployment.build_log per spec §4.1's
// "cap ≈ 1 MiB — oldest lines dropped with a redaction marker".
const MaxBuildLogBytes = 1 << 20

const (
	cloneTimeout  = 5 * time.Minute
	buildTimeout  = 30 * time.Minute
	deployTimeout = 60 * time.Second
	proxyTimeout  = 10 * time.Second
)

// Cloner is the piece of internal/gitadapter the pipeline's clone stage
// needs. Declared locally so tests can swap in a fake instead of shelling
// out to a real git binary; *gitadapter.Adapter satisfies it as-is.
type Cloner interface {
	Clone(ctx context.Context, url, branch, dir, privateKeyPEM string, onLine func(string)) (*gitadapter.CommitInfo, error)
}

// ImageBuilder is the piece of internal/runtime the build stage needs.
// *runtime.Runtime satisfies it as-is.
type ImageBuilder interface {
	BuildImage(ctx context.Context, contextDir, dockerfilePath, tag string, onLine func(string)) error
}

// Roller is the piece of internal/fleet the deploy stage needs.
// *fleet.Controller satisfies it as-is.
type Roller interface {
	Roll(ctx context.Context, appID, deploymentID, imageTag string, env []string, containerPort int, healthPath string) (*fleet.RollResult, error)
	Rollback(ctx context.Context, appID string) error
}

// RouteSetter is the piece of internal/proxyadapter the running stage needs.
// *proxyadapter.Adapter satisfies it as-is.
type RouteSetter interface {
	SetRoute(ctx context.Context, hostname, backendHost string, backendPort int) error
}

type Orchestrator struct {
	store      storage.Store
	box        *secretbox.Box
	bus        *eventbus.Bus
	git        Cloner
	rt         ImageBuilder
	fleet      Roller
	proxy      RouteSetter
	workDir    string
	baseDomain string

	mu      sync.Mutex
	workers map[string]*appWorker

	log *logger.Logger
}

func New(store storage.Store, box *secretbox.Box, bus *eventbus.Bus, git Cloner,
	rt ImageBuilder, fl Roller, proxy RouteSetter, workDir, baseDomain string) *Orchestrator {
	return &Orchestrator{
		store:      store,
		box:        box,
		bus:        bus,
		git:        git,
		rt:         rt,
		fleet:      fl,
		proxy:      proxy,
		workDir:    workDir,
		baseDomain: baseDomain,
		workers:    make(map[string]*appWorker),
		log:        logger.With("orchestrator"),
	}
}

// appWorker serializes deployments for a single application.
type appWorker struct {
	wake chan struct{}

	mu             sync.Mutex
	pendingID      string
	pendingTrigger string

	cancelsMu sync.Mutex
	cancels   map[string]context.CancelFunc

	once sync.Once
}

func (o *Orchestrator) workerFor(appID string) *appWorker {
	o.mu.Lock()
	defer o.mu.Unlock()

	w, ok := o.workers[appID]
	if !ok {
		w = &appWorker{
			wake:    make(chan struct{}, 1),
			cancels: make(map[string]context.CancelFunc),
		}
		o.workers[appID] = w
	}
	w.once.Do(func() { go o.runWorker(appID, w) })
	return w
}

func (o *Orchestrator) runWorker(appID string, w *appWorker) {
	for range w.wake {
		w.mu.Lock()
		depID := w.pendingID
		w.pendingID = ""
		w.pendingTrigger = ""
		w.mu.Unlock()

		if depID == "" {
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		w.cancelsMu.Lock()
		w.cancels[depID] = cancel
		w.cancelsMu.Unlock()

		o.run(ctx, appID, depID)

		w.cancelsMu.Lock()
		delete(w.cancels, depID)
		w.cancelsMu.Unlock()
		cancel()
	}
}

// Enqueue creates a new Deployment in state queued for appID and schedules
// it on that application's worker. If a deployment is already queued (but
// not yet started) for the same app with the same trigger id, the existing
// one is returned unchanged (spec §4.1 idempotency). If a different queued
// deployment is pending, it is superseded (marked cancelled) since only the
// newest needs to run.
func (o *Orchestrator) Enqueue(appID, trigger string) (*models.Deployment, error) {
	app, err := o.store.GetApplication(appID)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "orchestrator.Enqueue", err)
	}
	if app == nil {
		return nil, ployererr.NotFoundf("orchestrator.Enqueue", "application %s not found", appID)
	}

	w := o.workerFor(appID)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pendingID != "" && w.pendingTrigger == trigger {
		existing, err := o.store.GetDeployment(w.pendingID)
		if err == nil && existing != nil {
			return existing, nil
		}
	}

	if w.pendingID != "" {
		if superseded, err := o.store.GetDeployment(w.pendingID); err == nil && superseded != nil && !superseded.Status.Terminal() {
			superseded.Status = models.DeployCancelled
			now := time.Now()
			superseded.FinishedAt = &now
			_ = o.store.UpdateDeployment(superseded)
			o.publish(fmt.Sprintf("deployment:%s", superseded.ID), "superseded")
		}
	}

	dep := &models.Deployment{
		ID:            uuid.NewString(),
		ApplicationID: appID,
		ServerID:      app.ServerID,
		Trigger:       trigger,
		Status:        models.DeployQueued,
		StartedAt:     time.Now(),
	}
	if err := o.store.CreateDeployment(dep); err != nil {
		return nil, ployererr.New(ployererr.Internal, "orchestrator.Enqueue", err)
	}

	w.pendingID = dep.ID
	w.pendingTrigger = trigger

	select {
	case w.wake <- struct{}{}:
	default:
	}

	return dep, nil
}

// Cancel transitions a deployment to cancelled if its current state is one
// of {queued, cloning, building, deploying}; otherwise it fails with
// Conflict (spec §4.1, scenario S5: a second cancel returns 409).
func (o *Orchestrator) Cancel(deploymentID string) error {
	dep, err := o.store.GetDeployment(deploymentID)
	if err != nil {
		return ployererr.New(ployererr.Internal, "orchestrator.Cancel", err)
	}
	if dep == nil {
		return ployererr.NotFoundf("orchestrator.Cancel", "deployment %s not found", deploymentID)
	}
	if dep.Status.Terminal() {
		return ployererr.Conflictf("orchestrator.Cancel", "deployment %s is already %s", deploymentID, dep.Status)
	}

	w := o.workerFor(dep.ApplicationID)

	w.mu.Lock()
	if w.pendingID == deploymentID {
		w.pendingID = ""
		w.pendingTrigger = ""
		w.mu.Unlock()

		now := time.Now()
		dep.Status = models.DeployCancelled
		dep.FinishedAt = &now
		if err := o.store.UpdateDeployment(dep); err != nil {
			return ployererr.New(ployererr.Internal, "orchestrator.Cancel", err)
		}
		o.publish(fmt.Sprintf("deployment:%s", deploymentID), "cancelled")
		return nil
	}
	w.mu.Unlock()

	w.cancelsMu.Lock()
	cancel, ok := w.cancels[deploymentID]
	w.cancelsMu.Unlock()
	if !ok {
		return ployererr.Conflictf("orchestrator.Cancel", "deployment %s is not active", deploymentID)
	}
	cancel()
	return nil
}

func (o *Orchestrator) publish(topic, kind string) {
	o.bus.Publish(topic, kind)
}

func (o *Orchestrator) run(ctx context.Context, appID, deploymentID string) {
	dep, err := o.store.GetDeployment(deploymentID)
	if err != nil || dep == nil {
		o.log.Error("run: deployment %s vanished before start: %v", deploymentID, err)
		return
	}
	app, err := o.store.GetApplication(appID)
	if err != nil || app == nil {
		o.failDeployment(dep, fmt.Errorf("application %s vanished", appID))
		return
	}

	workDir := filepath.Join(o.workDir, deploymentID)
	defer os.RemoveAll(workDir)

	commit, err := o.stageClone(ctx, app, dep, workDir)
	if err != nil {
		o.terminateOnError(ctx, dep, err)
		return
	}
	if commit != nil {
		dep.CommitSHA = commit.SHA
		dep.CommitMessage = commit.Message
	}

	imageTag := runtime.ImageTag(app.Name, dep.ID)
	if err := o.stageBuild(ctx, app, dep, workDir, imageTag); err != nil {
		o.terminateOnError(ctx, dep, err)
		return
	}

	if err := o.stageDeploy(ctx, app, dep, imageTag); err != nil {
		o.terminateOnError(ctx, dep, err)
		return
	}

	o.stageRunning(ctx, app, dep)
}

func (o *Orchestrator) stageClone(ctx context.Context, app *models.Application, dep *models.Deployment, workDir string) (*gitadapter.CommitInfo, error) {
	if err := o.transition(dep, models.DeployCloning); err != nil {
		return nil, err
	}

	if app.GitURL == "" {
		return nil, ployererr.Validationf("orchestrator.stageClone", "application %s has no git url configured", app.ID)
	}

	cctx, cancel := context.WithTimeout(ctx, cloneTimeout)
	defer cancel()

	var privateKey string
	key, err := o.store.GetDeployKey(app.ID)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "orchestrator.stageClone", err)
	}
	if key != nil {
		pk, derr := o.box.Decrypt(key.EncryptedPrivateKey)
		if derr != nil {
			return nil, ployererr.Cryptof("orchestrator.stageClone", derr)
		}
		privateKey = pk
	}

	onLine := func(line string) { o.appendLog(dep, line) }
	commit, err := o.git.Clone(cctx, app.GitURL, app.Branch, workDir, privateKey, onLine)
	if err != nil {
		return nil, err
	}
	return commit, nil
}

func (o *Orchestrator) stageBuild(ctx context.Context, app *models.Application, dep *models.Deployment, workDir, imageTag string) error {
	if err := o.transition(dep, models.DeployBuilding); err != nil {
		return err
	}

	bctx, cancel := context.WithTimeout(ctx, buildTimeout)
	defer cancel()

	onLine := func(line string) { o.appendLog(dep, line) }

	switch app.BuildStrategy {
	case models.BuildDockerfile:
		return o.rt.BuildImage(bctx, workDir, app.DockerfilePath, imageTag, onLine)
	case models.BuildNixpacks:
		return buildWithNixpacks(bctx, workDir, imageTag, onLine)
	case models.BuildDockerCompose:
		service, err := selectComposeService(workDir)
		if err != nil {
			return ployererr.Validationf("orchestrator.stageBuild", "docker_compose: %v", err)
		}
		buildDir := filepath.Join(workDir, service.buildContext)
		return o.rt.BuildImage(bctx, buildDir, service.dockerfile, imageTag, onLine)
	default:
		return ployererr.Validationf("orchestrator.stageBuild", "unknown build strategy %q", app.BuildStrategy)
	}
}

func (o *Orchestrator) stageDeploy(ctx context.Context, app *models.Application, dep *models.Deployment, imageTag string) error {
	if err := o.transition(dep, models.DeployDeploying); err != nil {
		return err
	}

	dctx, cancel := context.WithTimeout(ctx, deployTimeout)
	defer cancel()

	env, err := o.decryptedEnv(app.ID)
	if err != nil {
		return err
	}

	healthPath := "/"
	if hc, herr := o.store.GetHealthCheck(app.ID); herr == nil && hc != nil {
		healthPath = hc.Path
	}

	result, err := o.fleet.Roll(dctx, app.ID, dep.ID, imageTag, env, app.Port, healthPath)
	if err != nil {
		return err
	}

	dep.ContainerID = result.ContainerID
	dep.ImageTag = imageTag
	dep.HostPort = result.HostPort
	if err := o.store.UpdateDeployment(dep); err != nil {
		return ployererr.New(ployererr.Internal, "orchestrator.stageDeploy", err)
	}
	return nil
}

func (o *Orchestrator) decryptedEnv(appID string) ([]string, error) {
	vars, err := o.store.GetEnvVars(appID)
	if err != nil {
		return nil, ployererr.New(ployererr.Internal, "orchestrator.decryptedEnv", err)
	}
	env := make([]string, 0, len(vars))
	for _, v := range vars {
		plain, derr := o.box.Decrypt(v.EncryptedValue)
		if derr != nil {
			return nil, ployererr.Cryptof("orchestrator.decryptedEnv", derr)
		}
		env = append(env, fmt.Sprintf("%s=%s", v.Key, plain))
	}
	return env, nil
}

// stageRunning finalizes a successful deployment: ensures an auto-subdomain
// exists, refreshes the proxy route, and marks the deployment and
// application running (spec §4.1 state "running").
func (o *Orchestrator) stageRunning(ctx context.Context, app *models.Application, dep *models.Deployment) {
	domains, err := o.store.GetDomainsByApp(app.ID)
	if err != nil {
		o.log.Error("stageRunning: get domains for %s: %v", app.ID, err)
	}
	if len(domains) == 0 {
		auto := &models.Domain{
			ApplicationID: app.ID,
			Hostname:      fmt.Sprintf("%s.%s", app.Name, o.baseDomain),
			IsPrimary:     true,
		}
		if err := o.store.CreateDomain(auto); err != nil {
			o.log.Error("stageRunning: auto-subdomain create failed for %s: %v", app.ID, err)
		} else {
			domains = append(domains, *auto)
		}
	}

	if primary, err := o.store.GetPrimaryDomain(app.ID); err == nil && primary != nil && dep.HostPort > 0 {
		pctx, cancel := context.WithTimeout(ctx, proxyTimeout)
		if err := o.proxy.SetRoute(pctx, primary.Hostname, "127.0.0.1", dep.HostPort); err != nil {
			o.log.Warn("stageRunning: proxy route refresh failed for %s, reconciler will retry: %v", primary.Hostname, err)
		}
		cancel()
	}

	now := time.Now()
	dep.Status = models.DeployRunning
	dep.FinishedAt = &now
	if err := o.store.UpdateDeployment(dep); err != nil {
		o.log.Error("stageRunning: update deployment %s: %v", dep.ID, err)
	}
	if err := o.store.UpdateApplicationStatus(app.ID, models.AppRunning); err != nil {
		o.log.Error("stageRunning: update application %s: %v", app.ID, err)
	}
	o.publish(fmt.Sprintf("deployment:%s", dep.ID), "running")
	o.publish(fmt.Sprintf("app:%s", app.ID), "running")
}

// transition persists a state advance and publishes it. It does not look at
// the pipeline context: a cancellation is only noticed through the
// context-aware calls the stages make (clone, build, roll) and is then
// classified by terminateOnError.
func (o *Orchestrator) transition(dep *models.Deployment, status models.DeployStatus) error {
	dep.Status = status
	if err := o.store.UpdateDeployment(dep); err != nil {
		return ployererr.New(ployererr.Internal, "orchestrator.transition", err)
	}
	o.publish(fmt.Sprintf("deployment:%s", dep.ID), string(status))
	return nil
}

func (o *Orchestrator) appendLog(dep *models.Deployment, line string) {
	_ = o.store.AppendBuildLog(dep.ID, line+"\n", MaxBuildLogBytes)
	o.publish(fmt.Sprintf("deployment:%s", dep.ID), "log:"+line)
}

// terminateOnError distinguishes a cooperative cancellation (spec §4.1
// "cancel sets an atomic flag the state runner observes... the running
// external process is signalled to stop") from a genuine pipeline failure.
// A stage's own error isn't always context.Canceled itself: shelling out to
// git surfaces a cancelled clone as "signal: killed" from exec, not
// context.Canceled, so ctx.Err() is checked as well as the error chain.
func (o *Orchestrator) terminateOnError(ctx context.Context, dep *models.Deployment, err error) {
	if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
		now := time.Now()
		dep.Status = models.DeployCancelled
		dep.FinishedAt = &now
		_ = o.store.UpdateDeployment(dep)
		o.publish(fmt.Sprintf("deployment:%s", dep.ID), "cancelled")
		return
	}
	o.failDeployment(dep, err)
}

func (o *Orchestrator) failDeployment(dep *models.Deployment, err error) {
	o.log.Error("deployment %s failed: %v", dep.ID, err)
	now := time.Now()
	dep.Status = models.DeployFailed
	dep.FinishedAt = &now
	_ = o.store.AppendBuildLog(dep.ID, fmt.Sprintf("ERR: %v\n", err), MaxBuildLogBytes)
	_ = o.store.UpdateDeployment(dep)
	o.publish(fmt.Sprintf("deployment:%s", dep.ID), "failed")
	_ = o.fleet.Rollback(context.Background(), dep.ApplicationID)
}
