package server

import (
	"encoding/json"
	"log"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/psyche/internal/store"
)

func queryLimit(r *http.Request, def int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func decodePAD(w http.ResponseWriter, r *http.Request) (store.PAD, bool) {
	var pad store.PAD
	if err := json.NewDecoder(r.Body).Decode(&pad); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return pad, false
	}
	for _, v := range []float64{pad.P, pad.A, pad.D} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			writeError(w, http.StatusBadRequest, "p, a and d must be finite")
			return pad, false
		}
	}
	return pad, true
}

func (s *Server) handleGetMood(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "characterID")
	m, err := s.engine.CurrentMood(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "no mood recorded for "+id)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleRecordMood(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "characterID")
	pad, ok := decodePAD(w, r)
	if !ok {
		return
	}
	m, err := s.engine.RecordMood(r.Context(), id, pad)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListFrames(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "characterID")
	frames, err := s.engine.History(r.Context(), id, queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if frames == nil {
		frames = []store.MoodFrame{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"character_id": id,
		"count":        len(frames),
		"frames":       frames,
	})
}

func (s *Server) handleRecordFrame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "characterID")
	pad, ok := decodePAD(w, r)
	if !ok {
		return
	}
	f, err := s.engine.RecordFrame(r.Context(), id, pad)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetInfluence(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "characterID")
	oi, err := s.engine.Influence(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if oi == nil {
		writeError(w, http.StatusNotFound, "no object influence for "+id)
		return
	}
	writeJSON(w, http.StatusOK, oi)
}

func (s *Server) handleComputeInfluence(w http.ResponseWriter, r *http.Request) {
	s.recompute(w, r, chi.URLParam(r, "characterID"), http.StatusOK)
}

// recompute runs ComputeObjectInfluence and writes the result. A nil
// influence (empty inventory) is reported as {"influence": null}.
func (s *Server) recompute(w http.ResponseWriter, r *http.Request, id string, status int) {
	oi, err := s.engine.ComputeObjectInfluence(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, status, map[string]any{
		"character_id": id,
		"influence":    oi,
	})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "characterID")
	events, err := s.db.ListEvents(r.Context(), id, queryLimit(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []store.EmotionalEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"character_id": id,
		"count":        len(events),
		"events":       events,
	})
}

func (s *Server) handleSpread(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.SpreadEmotion(r.Context(), chi.URLParam(r, "characterID"))
	if err != nil && res == nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err != nil {
		log.Printf("spread: partial failure: %v", err)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListInventory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "characterID")
	items, err := s.db.GetInventory(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []store.InventoryItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"character_id": id,
		"count":        len(items),
		"items":        items,
	})
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "characterID")

	var req struct {
		ObjectID          string `json:"object_id"`
		AcquiredAt        int64  `json:"acquired_at"`
		AcquisitionMethod string `json:"acquisition_method"`
		InteractionCount  int    `json:"interaction_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ObjectID == "" {
		writeError(w, http.StatusBadRequest, "object_id required")
		return
	}
	def, err := s.db.GetObjectDef(r.Context(), req.ObjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if def == nil {
		writeError(w, http.StatusNotFound, "unknown object "+req.ObjectID)
		return
	}

	item := &store.InventoryItem{
		CharacterID:       id,
		ObjectID:          req.ObjectID,
		AcquiredAt:        req.AcquiredAt,
		AcquisitionMethod: req.AcquisitionMethod,
		InteractionCount:  max(0, req.InteractionCount),
	}
	if err := s.db.AddInventoryItem(r.Context(), item); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.recompute(w, r, id, http.StatusCreated)
}

func (s *Server) itemChange(w http.ResponseWriter, r *http.Request, change func(id string, itemID int64) (bool, error)) {
	id := chi.URLParam(r, "characterID")
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	ok, err := change(id, itemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "item not owned by "+id)
		return
	}
	s.recompute(w, r, id, http.StatusOK)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s.itemChange(w, r, func(id string, itemID int64) (bool, error) {
		return s.db.RemoveInventoryItem(r.Context(), id, itemID)
	})
}

func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	s.itemChange(w, r, func(id string, itemID int64) (bool, error) {
		return s.db.TouchInventoryItem(r.Context(), id, itemID)
	})
}

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	var def store.ObjectDef
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	def.ObjectID = chi.URLParam(r, "objectID")
	for _, v := range []float64{def.P, def.A, def.D} {
		if math.IsNaN(v) || v < -1 || v > 1 {
			writeError(w, http.StatusBadRequest, "p, a and d must be in [-1,1]")
			return
		}
	}
	if err := s.db.PutObjectDef(r.Context(), def); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (s *Server) handlePutEdge(w http.ResponseWriter, r *http.Request) {
	var e store.ProximityEdge
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if e.PsychologicalDistance < 0 || e.PsychologicalDistance > 1 ||
		e.EmotionalResonance < 0 || e.EmotionalResonance > 1 {
		writeError(w, http.StatusBadRequest, "distance and resonance must be in [0,1]")
		return
	}
	if err := s.db.PutEdge(r.Context(), e); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePropagate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source    string  `json:"source"`
		EventType string  `json:"event_type"`
		Intensity float64 `json:"intensity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source required")
		return
	}
	if req.Intensity < 0 || math.IsNaN(req.Intensity) || math.IsInf(req.Intensity, 0) {
		writeError(w, http.StatusBadRequest, "intensity must be a non-negative number")
		return
	}

	res, err := s.engine.PropagateEmotion(r.Context(), req.Source, req.EventType, req.Intensity)
	if err != nil && res == nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err != nil {
		// Some neighbors updated, some did not. Report what landed.
		log.Printf("propagate: partial failure: %v", err)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGetInterval(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"interval_ms": s.scheduler.Interval().Milliseconds(),
		"running":     s.scheduler.Running(),
	})
}

func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	var req struct {
		IntervalMS int64 `json:"interval_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.IntervalMS <= 0 {
		writeError(w, http.StatusBadRequest, "interval_ms must be positive")
		return
	}
	if err := s.scheduler.SetUpdateInterval(r.Context(), time.Duration(req.IntervalMS)*time.Millisecond); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interval_ms": req.IntervalMS})
}

func (s *Server) handleRunPass(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	ran, err := s.scheduler.RunNow(r.Context())
	if !ran {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "busy"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "completed with errors", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}
