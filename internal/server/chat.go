package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/library-assistant/server/internal/agent/model"
	errx "github.com/library-assistant/server/internal/core/error"
)

// Stream event types and stage statuses. The result frame carries the bare
// chat output and has no type.
const (
	EventStageUpdate = "stage_update"
	EventError       = "error"

	StageBegin    = "update_begin"
	StageComplete = "update_complete"
)

type chatRequest struct {
	Prompt         string   `json:"prompt"`
	Temperature    *float32 `json:"temperature,omitempty"`
	MaxTokens      *int     `json:"maxTokens,omitempty"`
	SystemPrompt   string   `json:"systemPrompt,omitempty"`
	ConversationID string   `json:"conversationId,omitempty"`
	// Context is the client's current library state, any JSON value.
	Context json.RawMessage `json:"context,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// streamEvent is a stage or error SSE payload.
type streamEvent struct {
	Type    string `json:"type"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func decodeChatRequest(r *http.Request) (model.ChatInput, error) {
	var req chatRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return model.ChatInput{}, errx.BadRequest(fmt.Errorf("decode body: %w", err))
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return model.ChatInput{}, errx.BadRequest(errors.New("prompt is required"))
	}
	if req.MaxTokens != nil && *req.MaxTokens <= 0 {
		return model.ChatInput{}, errx.BadRequest(errors.New("maxTokens must be positive"))
	}
	clientState, err := compactContext(req.Context)
	if err != nil {
		return model.ChatInput{}, errx.BadRequest(fmt.Errorf("context: %w", err))
	}
	return model.ChatInput{
		Prompt:         req.Prompt,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		SystemPrompt:   req.SystemPrompt,
		ConversationID: req.ConversationID,
		Context:        clientState,
	}, nil
}

// compactContext flattens the client state to one line. A JSON string is
// taken as already rendered text.
func compactContext(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", err
		}
		return text, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errx.Status(err)
	hlog.FromRequest(r).Error().Err(err).Int("status", status).Msg("chat request failed")
	writeJSON(w, status, errorResponse{Error: errx.PublicMessage(err)})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	in, err := decodeChatRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := s.runner.Invoke(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	in, err := decodeChatRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(ev any) {
		payload, _ := json.Marshal(ev)
		_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	send(streamEvent{Type: EventStageUpdate, Status: StageBegin, Message: "Generating response..."})

	out, err := s.runner.Invoke(r.Context(), in)
	if r.Context().Err() != nil {
		// client went away; nothing partial is reported
		hlog.FromRequest(r).Debug().Msg("chat stream abandoned by client")
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("chat stream failed")
		send(streamEvent{Type: EventError, Error: errx.PublicMessage(err)})
		return
	}

	send(out)
	send(streamEvent{Type: EventStageUpdate, Status: StageComplete, Message: "Response generated"})
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("conversationId"))
	if id == "" {
		s.writeError(w, r, errx.BadRequest(errors.New("conversationId is required")))
		return
	}
	if s.history == nil {
		s.writeError(w, r, errx.New(errors.New("conversation history disabled"), http.StatusNotFound, "conversation history is disabled"))
		return
	}
	if err := s.history.ClearHistory(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	hlog.FromRequest(r).Info().Str("conversation_id", id).Msg("conversation cleared")
	w.WriteHeader(http.StatusNoContent)
}
