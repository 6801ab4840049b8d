// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/camsync/internal/history"
	xglog "github.com/ManuGH/camsync/internal/log"
	"github.com/ManuGH/camsync/internal/recordings"
)

const maxHistoryLimit = 500

// libraryResult is shared by the HTTP and websocket library queries.
type libraryResult struct {
	Videos []recordings.EntryView `json:"videos"`
}

type historyResponse struct {
	Events []history.Event `json:"events"`
	Totals map[string]int  `json:"totals"`
}

type refreshResponse struct {
	Queued bool `json:"queued"`
	Busy   bool `json:"busy"`
}

type motionRequest struct {
	Enabled *bool `json:"enabled"`
}

type motionResponse struct {
	Enabled       bool `json:"enabled"`
	RefreshQueued bool `json:"refresh_queued"`
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Snapshots.Latest())
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	atMost, err := positiveParam(r, "at_most", 0)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, libraryResult{Videos: s.deps.Snapshots.Latest().Library(atMost)})
}

// handleRecordingFile serves a cached recording or thumbnail by catalog
// index. Indexes refer to the latest snapshot.
func (s *Server) handleRecordingFile(thumbnail bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil || index < 0 {
			writeBadRequest(w, "index must be a non-negative integer")
			return
		}
		entry, ok := s.deps.Snapshots.Latest().Catalog.At(index)
		if !ok {
			writeNotFound(w, "no recording at index "+strconv.Itoa(index))
			return
		}

		path, mime, cached := entry.LocalRecordingPath, recordings.VideoMIME, entry.Cached()
		if thumbnail {
			path, mime, cached = entry.LocalThumbnailPath, recordings.ImageMIME, entry.ThumbnailCached()
		}
		if !cached {
			writeNotFound(w, "not cached yet")
			return
		}
		w.Header().Set("Content-Type", mime)
		http.ServeFile(w, r, path)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "history_disabled"})
		return
	}
	limit, err := positiveParam(r, "limit", history.DefaultLimit)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	limit = min(limit, maxHistoryLimit)

	events, err := s.deps.History.Recent(r.Context(), limit)
	var totals map[string]int
	if err == nil {
		totals, err = s.deps.History.CountByOutcome(r.Context())
	}
	if err != nil {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).
			Str(xglog.FieldEvent, "history.read.failed").
			Msg("read sync history")
		writeInternalError(w, r)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Events: events, Totals: totals})
}

func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	resp := refreshResponse{Busy: s.deps.Snapshots.Busy()}
	resp.Queued = s.deps.Snapshots.Trigger()
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) handleMotion(w http.ResponseWriter, r *http.Request) {
	if s.deps.Device == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "device_unavailable"})
		return
	}

	var req motionRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Enabled == nil {
		writeBadRequest(w, `"enabled" is required`)
		return
	}

	logger := xglog.WithComponentFromContext(r.Context(), "api")
	if err := s.deps.Device.SetMotionDetection(r.Context(), *req.Enabled); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "motion.toggle.failed").Msg("set motion detection")
		writeDeviceError(w, err)
		return
	}
	logger.Info().Str(xglog.FieldEvent, "motion.toggled").Bool("enabled", *req.Enabled).Msg("motion detection updated")

	writeJSON(w, http.StatusOK, motionResponse{
		Enabled:       *req.Enabled,
		RefreshQueued: s.deps.Snapshots.Trigger(),
	})
}

func (s *Server) handleLiveImage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Device == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "device_unavailable"})
		return
	}
	img, err := s.deps.Device.SnapPicture(r.Context())
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	w.Header().Set("Content-Type", recordings.ImageMIME)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	_, _ = w.Write(img)
}

var errNotPositive = errors.New("must be a positive integer")

// positiveParam parses an optional positive integer query parameter.
func positiveParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s %w", name, errNotPositive)
	}
	return n, nil
}
