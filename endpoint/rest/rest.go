/*
 * Copyright 2024 The GridFlow Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package rest exposes the automation registry over HTTP: CRUD on
// automations per table, enable/disable, and the run log. Payloads are
// JSON; validation failures surface as 400 with the configuration error.
package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/gridflow/gridflow/api/types"
	"github.com/gridflow/gridflow/engine"
	"github.com/gridflow/gridflow/utils/json"
)

// Rest serves the automation registry API.
type Rest struct {
	registry *engine.Registry
	runs     types.RunLog
	logger   types.Logger
	router   *httprouter.Router
	server   *http.Server
}

// New creates the API over a registry and run log.
func New(registry *engine.Registry, runs types.RunLog, logger types.Logger) *Rest {
	r := &Rest{
		registry: registry,
		runs:     runs,
		logger:   types.NewLogger(logger),
		router:   httprouter.New(),
	}
	r.router.POST("/api/v1/tables/:tableId/automations", r.create)
	r.router.GET("/api/v1/tables/:tableId/automations", r.listForTable)
	r.router.GET("/api/v1/automations/:id", r.get)
	r.router.PUT("/api/v1/automations/:id", r.update)
	r.router.DELETE("/api/v1/automations/:id", r.delete)
	r.router.POST("/api/v1/automations/:id/enable", r.setEnabled(true))
	r.router.POST("/api/v1/automations/:id/disable", r.setEnabled(false))
	r.router.GET("/api/v1/automations/:id/runs", r.listRuns)
	return r
}

// Router exposes the underlying router so embedders can mount it.
func (r *Rest) Router() *httprouter.Router {
	return r.router
}

// Start listens on addr and serves until Shutdown.
func (r *Rest) Start(addr string) error {
	r.server = &http.Server{Addr: addr, Handler: r.router}
	r.logger.Printf("gridflow: automation API listening on %s", addr)
	err := r.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (r *Rest) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}

func (r *Rest) create(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		r.writeError(w, err)
		return
	}
	var a types.Automation
	if err := json.Unmarshal(body, &a); err != nil {
		r.writeError(w, types.NewConfigurationError("invalid automation payload: %v", err))
		return
	}
	a.TableId = params.ByName("tableId")
	if err := r.registry.Create(req.Context(), &a); err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusCreated, &a)
}

func (r *Rest) listForTable(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
	tableId := params.ByName("tableId")
	var (
		automations []*types.Automation
		err         error
	)
	if req.URL.Query().Get("enabled") == "true" {
		automations, err = r.registry.ListEnabledForTable(req.Context(), tableId)
	} else {
		automations, err = r.registry.ListForTable(req.Context(), tableId)
	}
	if err != nil {
		r.writeError(w, err)
		return
	}
	if automations == nil {
		automations = []*types.Automation{}
	}
	r.writeJSON(w, http.StatusOK, automations)
}

func (r *Rest) get(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
	a, err := r.registry.Get(req.Context(), params.ByName("id"))
	if err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, a)
}

func (r *Rest) update(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		r.writeError(w, err)
		return
	}
	var a types.Automation
	if err := json.Unmarshal(body, &a); err != nil {
		r.writeError(w, types.NewConfigurationError("invalid automation payload: %v", err))
		return
	}
	a.Id = params.ByName("id")
	if err := r.registry.Update(req.Context(), &a); err != nil {
		r.writeError(w, err)
		return
	}
	r.writeJSON(w, http.StatusOK, &a)
}

func (r *Rest) delete(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
	if err := r.registry.Delete(req.Context(), params.ByName("id")); err != nil {
		r.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Rest) setEnabled(enabled bool) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		a, err := r.registry.SetEnabled(req.Context(), params.ByName("id"), enabled)
		if err != nil {
			r.writeError(w, err)
			return
		}
		r.writeJSON(w, http.StatusOK, a)
	}
}

func (r *Rest) listRuns(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
	limit := 50
	if raw := req.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	runs, err := r.runs.ListRuns(req.Context(), params.ByName("id"), limit)
	if err != nil {
		r.writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*types.AutomationRun{}
	}
	r.writeJSON(w, http.StatusOK, runs)
}

func (r *Rest) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		r.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (r *Rest) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case types.IsConfigurationError(err):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrAutomationNotFound),
		errors.Is(err, types.ErrTableNotFound),
		errors.Is(err, types.ErrRecordNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		r.logger.Printf("gridflow: api error: %v", err)
	}
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
