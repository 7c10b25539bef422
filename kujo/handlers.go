package kujo

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"nyiyui.ca/hato/senro/tal"
	"nyiyui.ca/hato/senro/tal/layout"
)

type errorResponse struct {
	Error string `json:"error"`
}

type switchResponse struct {
	ID     string       `json:"id"`
	Active layout.Route `json:"activeRoute"`
}

type signalResponse struct {
	ID     string     `json:"id"`
	Aspect tal.Aspect `json:"aspect"`
}

type speedRequest struct {
	Multiplier *float64 `json:"multiplier"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorw("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tal.ErrUnknownTrain),
		errors.Is(err, tal.ErrUnknownSwitch),
		errors.Is(err, tal.ErrUnknownSignal):
		status = http.StatusNotFound
	case errors.Is(err, tal.ErrInvalidMultiplier):
		status = http.StatusBadRequest
	default:
		zap.S().Errorw("request failed", "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.c.Snapshot())
}

func (s *Server) getTrain(w http.ResponseWriter, r *http.Request) {
	ts, err := s.c.Train(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.c.History(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) toggleSwitch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	route, err := s.c.ToggleSwitch(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, switchResponse{ID: id, Active: route})
}

func (s *Server) toggleSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	aspect, err := s.c.ToggleSignal(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signalResponse{ID: id, Aspect: aspect})
}

func (s *Server) trainCommand(f func(id string) (tal.TrainSnapshot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ts, err := f(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ts)
	}
}

func (s *Server) setSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request: " + err.Error()})
		return
	}
	if req.Multiplier == nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad request: multiplier missing"})
		return
	}
	ts, err := s.c.SetSpeedMultiplier(chi.URLParam(r, "id"), *req.Multiplier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}
