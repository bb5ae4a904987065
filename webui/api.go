package webui

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"zexplorer/modelcfg"
)

// History listing bounds.
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// handleHealth reports liveness. It requires no session so external probes
// keep working when the UI is password protected.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGPU returns a one-shot nvidia-smi reading.
func (s *Server) handleGPU(w http.ResponseWriter, r *http.Request) {
	if s.deps.GPU == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "GPU metrics not configured")
		return
	}

	info, err := s.deps.GPU.ReadGPU(r.Context())
	if err != nil {
		s.logger.Debug("gpu read failed", zap.Error(err))
		writeJSONError(w, http.StatusServiceUnavailable, "GPU metrics unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":            info.Name,
		"utilization":     info.Utilization,
		"temperature":     info.Temperature,
		"memory_used_mb":  info.MemoryUsedMB,
		"memory_total_mb": info.MemoryTotalMB,
		"memory_free_mb":  info.MemoryFreeMB(),
	})
}

// variableSummary is the listing shape for one prompt variable. Values are
// capped to a sample so huge lists do not bloat the response.
type variableSummary struct {
	ID          string   `json:"id"`
	Description string   `json:"description,omitempty"`
	ValueCount  int      `json:"value_count"`
	Sample      []string `json:"sample"`
}

const variableSampleSize = 5

func (s *Server) handleVariables(w http.ResponseWriter, r *http.Request) {
	if s.deps.Variables == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "variable store not configured")
		return
	}

	vars, err := s.deps.Variables.LoadAll()
	if err != nil {
		s.logger.Error("variable listing failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "failed to load variables")
		return
	}

	summaries := make([]variableSummary, 0, len(vars))
	for _, v := range vars {
		sample := v.Values
		if len(sample) > variableSampleSize {
			sample = sample[:variableSampleSize]
		}
		summaries = append(summaries, variableSummary{
			ID:          v.ID,
			Description: v.Description,
			ValueCount:  len(v.Values),
			Sample:      sample,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })

	writeJSON(w, http.StatusOK, map[string]any{"variables": summaries})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "history not configured")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := s.deps.History.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("history listing failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

// handleModels lists the configured model presets.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	presets := s.deps.Presets
	if presets == nil {
		presets = &modelcfg.Presets{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": presets.Models})
}

// handleUnload frees both engine slots. Used to release GPU memory without
// stopping the server.
func (s *Server) handleUnload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if s.deps.Engines == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "engines not configured")
		return
	}

	if err := s.deps.Engines.UnloadAll(); err != nil {
		s.logger.Error("engine unload failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "unload failed")
		return
	}

	s.broadcaster.BroadcastEngineStatus(EngineStatus{Resident: "none"})
	writeJSON(w, http.StatusOK, map[string]string{"status": "unloaded"})
}

// handleIndex serves the embedded dashboard for the root path only.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		serveStatic(w, r)
		return
	}
	serveIndex(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
