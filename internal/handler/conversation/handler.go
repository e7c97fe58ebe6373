// Package conversation 暴露会话编排的HTTP接口。
package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ctwww/cword/internal/model/conversation"
	conversationService "github.com/ctwww/cword/internal/service/conversation"
	"github.com/ctwww/cword/internal/service/orchestrator"
	"github.com/ctwww/cword/pkg/utils"
)

// Handler 会话服务的HTTP处理器
type Handler struct {
	sessions    *conversationService.Service
	coordinator *orchestrator.Coordinator
}

// New 创建会话处理器
func New(sessions *conversationService.Service, coordinator *orchestrator.Coordinator) *Handler {
	return &Handler{sessions: sessions, coordinator: coordinator}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions", h.handleListSessions)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Post("/sessions/{sessionID}/messages", h.handleUserMessage)
	r.Post("/sessions/{sessionID}/stage", h.handleSetStage)
	r.Post("/sessions/{sessionID}/product", h.handleSetProduct)
	r.Post("/sessions/{sessionID}/speak", h.handleSpeak)
	r.Post("/sessions/{sessionID}/speak-all", h.handleSpeakAll)
	r.Get("/sessions/{sessionID}/suggestions", h.handleSuggestions)
	r.Post("/sessions/{sessionID}/decisions", h.handleRecordDecision)
	r.Get("/decisions", h.handleListDecisions)
	r.Get("/decisions/export", h.handleExportDecisions)
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProductName string `json:"product_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.sessions.Create(r.Context(), payload.ProductName)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session.Portable())
}

// handleListSessions 列出所有会话
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	records := make([]conversation.Record, 0, len(sessions))
	for _, s := range sessions {
		records = append(records, s.Portable())
	}
	utils.RespondJSON(w, http.StatusOK, records)
}

// handleGetSession 查询单个会话
func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Portable())
}

// handleUserMessage 追加一条用户消息，并返回发言建议与确认提示。
func (h *Handler) handleUserMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}

	session, err := h.sessions.AppendUserMessage(r.Context(), chi.URLParam(r, "sessionID"), payload.Content)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]any{
		"session_id":     session.ID(),
		"message_count":  session.MessageCount(),
		"suggestions":    h.coordinator.SuggestPersonas(session),
		"should_confirm": h.coordinator.ShouldConfirmDecision(session),
	})
}

// handleSetStage 切换会话阶段。阶段策略由调用方决定。
func (h *Handler) handleSetStage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Stage string `json:"stage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	stage, err := conversation.ParseStage(payload.Stage)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.sessions.SetStage(r.Context(), chi.URLParam(r, "sessionID"), stage)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Portable())
}

// handleSetProduct 设置产品名称
func (h *Handler) handleSetProduct(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProductName string `json:"product_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.sessions.SetProductName(r.Context(), chi.URLParam(r, "sessionID"), payload.ProductName)
	if err != nil {
		h.respondSessionError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session.Portable())
}

// handleSpeak 让指定角色发言一次
func (h *Handler) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Persona string `json:"persona"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Persona == "" {
		utils.RespondError(w, http.StatusBadRequest, "persona is required")
		return
	}

	var response string
	_, err := h.sessions.Update(r.Context(), chi.URLParam(r, "sessionID"), func(s *conversation.Session) error {
		var speakErr error
		response, speakErr = h.coordinator.LetPersonaSpeak(r.Context(), payload.Persona, s)
		return speakErr
	})
	if err != nil {
		switch {
		case errors.Is(err, conversationService.ErrSessionNotFound):
			utils.RespondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, orchestrator.ErrUnknownPersona):
			utils.RespondError(w, http.StatusNotFound, err.Error())
		default:
			utils.RespondError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"persona":  payload.Persona,
		"response": response,
	})
}

// handleSpeakAll 让全部角色按注册顺序依次发言；中途失败保留已有发言。
func (h *Handler) handleSpeakAll(w http.ResponseWriter, r *http.Request) {
	var responses []string
	_, err := h.sessions.Update(r.Context(), chi.URLParam(r, "sessionID"), func(s *conversation.Session) error {
		var speakErr error
		responses, speakErr = h.coordinator.LetAllSpeak(r.Context(), s)
		return speakErr
	})
	if err != nil {
		if errors.Is(err, conversationService.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		// 部分进展已经落盘，一并带回。
		utils.RespondJSON(w, http.StatusBadGateway, map[string]any{
			"error":     err.Error(),
			"responses": responses,
		})
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"responses": responses})
}

// handleSuggestions 返回建议的下一批发言角色
func (h *Handler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"suggestions":    h.coordinator.SuggestPersonas(session),
		"should_confirm": h.coordinator.ShouldConfirmDecision(session),
	})
}

// handleRecordDecision 登记一条决策
func (h *Handler) handleRecordDecision(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Topic        string   `json:"topic"`
		Decision     string   `json:"decision"`
		Participants []string `json:"participants"`
		Reasoning    string   `json:"reasoning"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Topic == "" || payload.Decision == "" {
		utils.RespondError(w, http.StatusBadRequest, "topic and decision are required")
		return
	}

	var recorded conversation.Decision
	_, err := h.sessions.Update(r.Context(), chi.URLParam(r, "sessionID"), func(s *conversation.Session) error {
		recorded = h.coordinator.RecordDecision(r.Context(), s, payload.Topic, payload.Decision, payload.Participants, payload.Reasoning)
		return nil
	})
	if err != nil {
		h.respondSessionError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"id":           recorded.ID,
		"topic":        recorded.Topic,
		"decision":     recorded.Decision,
		"participants": recorded.Participants,
		"reasoning":    recorded.Reasoning,
		"timestamp":    recorded.CreatedAt,
	})
}

// handleListDecisions 查询决策索引，支持 topic/participant 过滤。
func (h *Handler) handleListDecisions(w http.ResponseWriter, r *http.Request) {
	ledger := h.coordinator.Ledger()

	var decisions []conversation.Decision
	switch {
	case r.URL.Query().Get("topic") != "":
		decisions = ledger.ByTopic(r.URL.Query().Get("topic"))
	case r.URL.Query().Get("participant") != "":
		decisions = ledger.ByParticipant(r.URL.Query().Get("participant"))
	default:
		decisions = ledger.All()
	}

	records := make([]conversation.DecisionRecord, 0, len(decisions))
	for _, d := range decisions {
		records = append(records, conversation.DecisionRecord{
			ID:           d.ID,
			Topic:        d.Topic,
			Decision:     d.Decision,
			Participants: d.Participants,
			Reasoning:    d.Reasoning,
			Timestamp:    d.CreatedAt,
		})
	}
	utils.RespondJSON(w, http.StatusOK, records)
}

// handleExportDecisions 导出决策历史
func (h *Handler) handleExportDecisions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(h.coordinator.Ledger().ExportMarkdown()))
}

func (h *Handler) respondSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, conversationService.ErrSessionNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
