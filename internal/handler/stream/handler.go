// Package stream 通过 Server-Sent Events 推送角色发言。
// 发言只有在生成完整结束后才会追加进会话，因此这里按整条消息推送。
package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/ctwww/cword/internal/model/conversation"
	"github.com/ctwww/cword/internal/service/agent"
	conversationService "github.com/ctwww/cword/internal/service/conversation"
	"github.com/ctwww/cword/internal/service/orchestrator"
	"github.com/ctwww/cword/pkg/utils"
)

// Handler manages SSE persona turns.
type Handler struct {
	sessions    *conversationService.Service
	coordinator *orchestrator.Coordinator
}

// New creates a stream handler.
func New(sessions *conversationService.Service, coordinator *orchestrator.Coordinator) *Handler {
	return &Handler{sessions: sessions, coordinator: coordinator}
}

// StreamResponse represents one SSE payload.
type StreamResponse struct {
	Event     string `json:"event"`
	Persona   string `json:"persona,omitempty"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest 追加用户消息（如有）、选定发言角色并推送其回复。
// persona 为空时依次取发言建议与主动请求发言的角色。
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, personaName, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	if userMessage != "" {
		if _, err := h.sessions.AppendUserMessage(ctx, sessionID, userMessage); err != nil {
			h.sendError(w, flusher, sessionID, fmt.Sprintf("failed to save user message: %v", err))
			return err
		}
	}

	session, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		h.sendError(w, flusher, sessionID, err.Error())
		return err
	}

	if personaName == "" {
		personaName = h.pickSpeaker(session)
	}
	if personaName == "" {
		err := errors.New("no persona available to speak")
		h.sendError(w, flusher, sessionID, err.Error())
		return err
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "start",
		SessionID: sessionID,
		Persona:   personaName,
	})

	var response string
	_, err = h.sessions.Update(ctx, sessionID, func(s *conversation.Session) error {
		var speakErr error
		response, speakErr = h.coordinator.LetPersonaSpeak(ctx, personaName, s)
		return speakErr
	})
	if err != nil {
		h.sendError(w, flusher, sessionID, fmt.Sprintf("generation failed: %v", err))
		return err
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Persona:   personaName,
		Content:   response,
	})
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})

	log.Printf("[stream] completed turn for session=%s, persona=%s", sessionID, personaName)
	return nil
}

// pickSpeaker 在未指定角色时挑选发言者：优先建议名单，其次主动请求
// 发言的角色，最后回落到注册顺序的第一位。
func (h *Handler) pickSpeaker(session *conversation.Session) string {
	if suggestions := h.coordinator.SuggestPersonas(session); len(suggestions) > 0 {
		return suggestions[0]
	}

	history := session.Messages()
	for _, name := range h.coordinator.ListAgents() {
		a, ok := h.coordinator.Agent(name)
		if !ok {
			continue
		}
		if a.ShouldPreempt(history, turnContext(session)) {
			return name
		}
	}

	if names := h.coordinator.ListAgents(); len(names) > 0 {
		return names[0]
	}
	return ""
}

func turnContext(s *conversation.Session) agent.TurnContext {
	return agent.TurnContext{
		Stage:       s.Stage(),
		Decisions:   s.Decisions(),
		ProductName: s.ProductName(),
	}
}

func (h *Handler) sendError(w http.ResponseWriter, flusher http.Flusher, sessionID, message string) {
	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "error",
		SessionID: sessionID,
		Error:     message,
		Finished:  true,
	})
}
