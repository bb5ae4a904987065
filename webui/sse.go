package webui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"zexplorer/core"
	"zexplorer/stream"
)

// handleGenerateStream runs one generation batch and streams its progress as
// Server-Sent Events. Each workflow event becomes one `data:` frame; silent
// stretches produce `: keepalive` comment frames; a terminal frame carrying
// the batch result always closes the stream.
//
// POST takes a JSON core.GenerationRequest body; GET takes the same fields as
// query parameters (for EventSource clients, which cannot POST).
//
// Client disconnect stops event delivery only. The batch runs to completion
// in the background and its history records are still written.
func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	req, err := parseGenerateRequest(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The worker gets a detached context: cancelling the request must not
	// abort synthesis mid-batch, only stop delivery.
	relay := stream.Run(func(emit core.ProgressFunc) core.GenerationResult {
		return s.deps.Generate(context.WithoutCancel(r.Context()), req, emit)
	}, stream.WithLogger(s.logger))

	result, delivered, err := relay.Forward(r.Context(), s.config.Keepalive,
		func(ev core.ProgressEvent) error {
			return writeSSEEvent(w, flusher, ev)
		},
		func() error {
			return writeSSEComment(w, flusher)
		},
	)
	if !delivered {
		s.logger.Info("sse client disconnected, batch continues",
			zap.Error(err),
		)
		return
	}

	if werr := writeSSEEvent(w, flusher, terminalEvent(result)); werr != nil {
		s.logger.Debug("sse terminal frame not delivered", zap.Error(werr))
		return
	}

	s.broadcaster.BroadcastGeneration(GenerationUpdate{
		Success: result.Success,
		Images:  len(result.Images),
		Errors:  len(result.Errors),
	})
}

// terminalEvent converts the batch result into the closing SSE frame.
func terminalEvent(result core.GenerationResult) core.ProgressEvent {
	done := 100
	data := map[string]any{
		"success":       result.Success,
		"images":        result.Images,
		"final_prompts": result.FinalPrompts,
		"seeds_used":    result.SeedsUsed,
		"errors":        result.Errors,
	}

	if !result.Success {
		message := "Unknown error"
		if len(result.Errors) > 0 {
			message = result.Errors[len(result.Errors)-1]
		}
		return core.ProgressEvent{
			Stage:    core.StageError,
			Message:  message,
			Progress: &done,
			Data:     data,
		}
	}

	return core.ProgressEvent{
		Stage:    core.StageComplete,
		Message:  fmt.Sprintf("Generated %d image(s)", len(result.Images)),
		Progress: &done,
		Data:     data,
	}
}

func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, ev core.ProgressEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("webui: encoding event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func writeSSEComment(w http.ResponseWriter, flusher http.Flusher) error {
	if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// parseGenerateRequest builds a validated request from either a JSON body
// (POST) or query parameters (GET).
func parseGenerateRequest(r *http.Request) (core.GenerationRequest, error) {
	req := core.DefaultRequest()

	switch r.Method {
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid JSON body: %v", err)
		}
	case http.MethodGet:
		if err := requestFromQuery(r, &req); err != nil {
			return req, err
		}
	default:
		return req, fmt.Errorf("method %s not allowed", r.Method)
	}

	// Zero values from a sparse body fall back to defaults before
	// validation, matching the console's behavior.
	if req.Count == 0 {
		req.Count = 1
	}
	if req.Width == 0 {
		req.Width = core.DefaultWidth
	}
	if req.Height == 0 {
		req.Height = core.DefaultHeight
	}

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

func requestFromQuery(r *http.Request, req *core.GenerationRequest) error {
	q := r.URL.Query()
	req.Prompt = q.Get("prompt")
	req.EnhancementInstruction = q.Get("instruction")
	req.Enhance = strings.EqualFold(q.Get("enhance"), "true") || q.Get("enhance") == "1"

	for _, field := range []struct {
		name string
		dst  *int
	}{
		{"count", &req.Count},
		{"width", &req.Width},
		{"height", &req.Height},
	} {
		raw := q.Get(field.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q", field.name, raw)
		}
		*field.dst = v
	}

	if raw := q.Get("seed"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed %q", raw)
		}
		req.Seed = &seed
	}
	return nil
}
