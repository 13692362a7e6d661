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

package webhookingress

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nusendra/ployer/pkg/helper"
	"github.com/nusendra/ployer/pkg/logger"
)

// maxBodyBytes bounds the request body the same way the teacher's webhook
// listener does, ahead of any signature check.
const maxBodyBytes = 1024 * 1024

// Handler is the one HTTP surface the core owns (spec §6.1's redesign note):
// signature verification needs the exact request bytes, so it can't be
// pushed behind the out-of-scope transport layer the rest of the API uses.
type Handler struct {
	ingress *Ingress
	log     *logger.Logger
}

func NewHandler(ingress *Ingress) *Handler {
	return &Handler{ingress: ingress, log: logger.With("webhookingress.http")}
}

// Register wires POST /webhooks/{provider}/{app_id} onto r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/webhooks/github/{app_id}", h.handleGitHub).Methods(http.MethodPost)
	r.HandleFunc("/webhooks/gitlab/{app_id}", h.handleGitLab).Methods(http.MethodPost)
}

func (h *Handler) handleGitHub(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["app_id"]

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		helper.WriteError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if event := r.Header.Get("X-GitHub-Event"); event != "" && event != "push" {
		helper.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "event type '" + event + "' not supported"})
		return
	}

	result, err := h.ingress.HandleGitHub(appID, body, r.Header.Get("X-Hub-Signature-256"))
	h.respond(w, r, result, err)
}

func (h *Handler) handleGitLab(w http.ResponseWriter, r *http.Request) {
	appID := mux.Vars(r)["app_id"]

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		helper.WriteError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if event := r.Header.Get("X-Gitlab-Event"); event != "" && event != "Push Hook" {
		helper.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": "event type '" + event + "' not supported"})
		return
	}

	result, err := h.ingress.HandleGitLab(appID, body, r.Header.Get("X-Gitlab-Token"))
	h.respond(w, r, result, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, result *Result, err error) {
	if err != nil {
		h.log.Error("webhook from %s: %v", r.RemoteAddr, err)
		helper.WriteJSON(w, http.StatusOK, map[string]string{"status": "failed", "error": err.Error()})
		return
	}

	status := result.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	helper.WriteJSON(w, status, map[string]interface{}{
		"status":        result.Status,
		"deployment_id": result.DeploymentID,
		"message":       result.Message,
	})
}
