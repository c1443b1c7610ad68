// Copyright (c) 2026 google-sheets authors
// google-sheets - service and deployment tooling
// This source code is licensed under the MIT license found in the LICENSE file.

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gsheets-app/google-sheets/internal/logging"
	"github.com/gsheets-app/google-sheets/internal/processing"
)

// maxBody bounds request bodies. Sheets are a few thousand rows at most.
const maxBody = 32 << 20

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warnf("write response: %v", err)
	}
}

// writeError maps input errors to 400 and everything else to 500. Internal
// error text is logged, not returned.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, processing.ErrInvalidInput) {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: err.Error()})
		return
	}
	logging.Errorf("request failed: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "Internal server error"})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return &processing.InputError{Msg: fmt.Sprintf("Invalid request body: %v", err)}
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.opts.Version})
}

// audit records a processed request. Failures are logged only.
func (s *Server) audit(r *http.Request, action string, sv processing.SheetValues) {
	if s.opts.Audit == nil {
		return
	}
	rows := len(sv.Values) - 1
	if rows < 0 {
		rows = 0
	}
	details := fmt.Sprintf("rows=%d issues=%t", rows, sv.IssuesPresent)
	if err := s.opts.Audit.LogCorrelated(r.Context(), RequestIDFrom(r.Context()), action, details); err != nil {
		logging.Warnf("audit %s: %v", action, err)
	}
}

func (s *Server) processCampaignData(w http.ResponseWriter, r *http.Request) {
	var req processing.CampaignRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	out, err := processing.ProcessCampaignRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.audit(r, "PROCESS_CAMPAIGN_DATA", out)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) processData(w http.ResponseWriter, r *http.Request) {
	var req processing.DataRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if q := r.URL.Query().Get("target_resource"); q != "" {
		req.Resource = q
	}
	out, err := processing.ProcessDataRequest(req)
	if err != nil {
		writeError(w, err)
		return
	}
	s.audit(r, "PROCESS_DATA_"+strings.ToUpper(req.Resource), out)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) validateOutput(w http.ResponseWriter, r *http.Request) {
	var req processing.ValidateRequest
	if err := decode(w, r, &req.Values); err != nil {
		writeError(w, err)
		return
	}
	req.Resource = r.URL.Query().Get("target_resource")
	out, err := processing.ValidateValues(req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
