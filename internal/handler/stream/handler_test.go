package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ctwww/cword/internal/event"
	model "github.com/ctwww/cword/internal/model/conversation"
	"github.com/ctwww/cword/internal/model/persona"
	"github.com/ctwww/cword/internal/service/agent"
	conversationService "github.com/ctwww/cword/internal/service/conversation"
	"github.com/ctwww/cword/internal/service/orchestrator"
)

type fakeAgent struct {
	name    string
	role    persona.Role
	reply   string
	err     error
	preempt bool
}

func (f *fakeAgent) Name() string       { return f.name }
func (f *fakeAgent) Role() persona.Role { return f.role }

func (f *fakeAgent) BuildPrompt([]model.Message, agent.TurnContext) string { return "" }

func (f *fakeAgent) GenerateResponse(context.Context, []model.Message, agent.TurnContext) (string, error) {
	return f.reply, f.err
}

func (f *fakeAgent) ShouldPreempt([]model.Message, agent.TurnContext) bool { return f.preempt }

func newStreamHandler(agents ...agent.Agent) (*Handler, *conversationService.Service) {
	sessions := conversationService.NewService(nil)
	coordinator := orchestrator.NewCoordinator(event.NewBus(), agents)
	return New(sessions, coordinator), sessions
}

// decodeFrames parses the recorded SSE body into its payloads.
func decodeFrames(t *testing.T, body string) []StreamResponse {
	t.Helper()

	var frames []StreamResponse
	for _, chunk := range strings.Split(body, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		var frame StreamResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(chunk, "data: ")), &frame); err != nil {
			t.Fatalf("decode frame %q: %v", chunk, err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestHandleStreamRequestFrameSequence(t *testing.T) {
	h, sessions := newStreamHandler(
		&fakeAgent{name: "产品经理", role: persona.RoleProductManager, reply: "目标用户是谁？"},
	)
	s, _ := sessions.Create(context.Background(), "记账助手")

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, s.ID(), "产品经理", "我想做个记账 App"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("wrong content type: %s", ct)
	}

	frames := decodeFrames(t, rec.Body.String())
	if len(frames) != 3 {
		t.Fatalf("expected start/message/end, got %d frames: %+v", len(frames), frames)
	}
	if frames[0].Event != "start" || frames[0].Persona != "产品经理" || frames[0].SessionID != s.ID() {
		t.Fatalf("bad start frame: %+v", frames[0])
	}
	if frames[1].Event != "message" || frames[1].Content != "目标用户是谁？" {
		t.Fatalf("bad message frame: %+v", frames[1])
	}
	if frames[2].Event != "end" || !frames[2].Finished {
		t.Fatalf("bad end frame: %+v", frames[2])
	}

	// The user turn and the persona turn both landed in the session.
	if s.MessageCount() != 2 {
		t.Fatalf("expected 2 messages in session, got %d", s.MessageCount())
	}
	last, _ := s.LastMessage()
	if last.Speaker != "产品经理" || last.Content != "目标用户是谁？" {
		t.Fatalf("persona turn not appended: %+v", last)
	}
}

func TestHandleStreamRequestGenerationFailure(t *testing.T) {
	h, sessions := newStreamHandler(
		&fakeAgent{name: "技术专家", role: persona.RoleTechLead, err: errors.New("rate limited")},
	)
	s, _ := sessions.Create(context.Background(), "")
	sessions.AppendUserMessage(context.Background(), s.ID(), "hello")

	rec := httptest.NewRecorder()
	err := h.HandleStreamRequest(context.Background(), rec, s.ID(), "技术专家", "")
	if err == nil {
		t.Fatal("expected generation failure to surface")
	}

	frames := decodeFrames(t, rec.Body.String())
	if len(frames) != 2 {
		t.Fatalf("expected start then error, got %+v", frames)
	}
	if frames[1].Event != "error" || frames[1].Error == "" || !frames[1].Finished {
		t.Fatalf("bad error frame: %+v", frames[1])
	}
	if s.MessageCount() != 1 {
		t.Fatal("failed turn must not append a message")
	}
}

func TestHandleStreamRequestUnknownSession(t *testing.T) {
	h, _ := newStreamHandler()

	rec := httptest.NewRecorder()
	if err := h.HandleStreamRequest(context.Background(), rec, "missing1", "", ""); err == nil {
		t.Fatal("expected error for unknown session")
	}

	frames := decodeFrames(t, rec.Body.String())
	if len(frames) != 1 || frames[0].Event != "error" {
		t.Fatalf("expected a single error frame, got %+v", frames)
	}
}

func TestPickSpeakerPrefersSuggestions(t *testing.T) {
	h, sessions := newStreamHandler(
		&fakeAgent{name: "产品经理", role: persona.RoleProductManager, reply: "好"},
		&fakeAgent{name: "技术专家", role: persona.RoleTechLead, reply: "好"},
	)
	s, _ := sessions.Create(context.Background(), "")
	s.SetStage(model.StageDesign)
	s.AppendMessage(model.UserMessage("数据库怎么选"))

	if got := h.pickSpeaker(s); got != "技术专家" {
		t.Fatalf("expected suggested persona, got %q", got)
	}
}

func TestPickSpeakerFallsBackToPreempting(t *testing.T) {
	h, sessions := newStreamHandler(
		&fakeAgent{name: "产品经理", role: persona.RoleProductManager, reply: "好"},
		&fakeAgent{name: "安全专家", role: persona.RoleSecurityExpert, reply: "好", preempt: true},
	)
	s, _ := sessions.Create(context.Background(), "")
	s.SetStage(model.StageRequirements)
	s.AppendMessage(model.UserMessage("今天天气不错"))

	if got := h.pickSpeaker(s); got != "安全专家" {
		t.Fatalf("expected preempting persona, got %q", got)
	}
}

func TestPickSpeakerFallsBackToFirstRegistered(t *testing.T) {
	h, sessions := newStreamHandler(
		&fakeAgent{name: "业务顾问", role: persona.RoleBusinessConsultant, reply: "好"},
		&fakeAgent{name: "技术专家", role: persona.RoleTechLead, reply: "好"},
	)
	s, _ := sessions.Create(context.Background(), "")
	s.SetStage(model.StageRequirements)
	s.AppendMessage(model.UserMessage("今天天气不错"))

	if got := h.pickSpeaker(s); got != "业务顾问" {
		t.Fatalf("expected first registered persona, got %q", got)
	}
}

func TestPickSpeakerEmptyPanel(t *testing.T) {
	h, sessions := newStreamHandler()
	s, _ := sessions.Create(context.Background(), "")

	if got := h.pickSpeaker(s); got != "" {
		t.Fatalf("expected no speaker, got %q", got)
	}
}
