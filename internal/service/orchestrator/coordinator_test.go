package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ctwww/cword/internal/event"
	"github.com/ctwww/cword/internal/model/conversation"
	"github.com/ctwww/cword/internal/model/persona"
	"github.com/ctwww/cword/internal/service/agent"
	"github.com/ctwww/cword/internal/service/orchestrator"
)

// fakeAgent implements agent.Agent with canned behaviour.
type fakeAgent struct {
	name    string
	role    persona.Role
	reply   string
	err     error
	preempt bool
}

func (f *fakeAgent) Name() string       { return f.name }
func (f *fakeAgent) Role() persona.Role { return f.role }

func (f *fakeAgent) BuildPrompt([]conversation.Message, agent.TurnContext) string {
	return "prompt for " + f.name
}

func (f *fakeAgent) GenerateResponse(context.Context, []conversation.Message, agent.TurnContext) (string, error) {
	return f.reply, f.err
}

func (f *fakeAgent) ShouldPreempt([]conversation.Message, agent.TurnContext) bool {
	return f.preempt
}

func panel() []agent.Agent {
	return []agent.Agent{
		&fakeAgent{name: "产品经理", role: persona.RoleProductManager, reply: "目标用户是谁？"},
		&fakeAgent{name: "技术专家", role: persona.RoleTechLead, reply: "建议先用 SQLite"},
		&fakeAgent{name: "安全专家", role: persona.RoleSecurityExpert, reply: "注意数据隐私"},
	}
}

func TestLetPersonaSpeakAppendsAndPublishes(t *testing.T) {
	bus := event.NewBus()
	var events []event.Event
	bus.Subscribe(orchestrator.EventAgentSpoke, func(e event.Event) { events = append(events, e) })

	c := orchestrator.NewCoordinator(bus, panel())
	s := conversation.New("记账助手")
	s.AppendMessage(conversation.UserMessage("我想做个记账 App"))

	got, err := c.LetPersonaSpeak(context.Background(), "产品经理", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "目标用户是谁？" {
		t.Fatalf("unexpected response %q", got)
	}

	last, _ := s.LastMessage()
	if last.Role != conversation.RolePersona || last.Speaker != "产品经理" || last.Content != got {
		t.Fatalf("response not appended: %+v", last)
	}

	if len(events) != 1 {
		t.Fatalf("expected one agent_spoke event, got %d", len(events))
	}
	e := events[0]
	if e.Data["persona"] != "产品经理" || e.Data["response"] != got {
		t.Fatalf("event payload wrong: %+v", e.Data)
	}
	if ts, ok := e.Data["timestamp"].(string); !ok || ts == "" {
		t.Fatalf("missing timestamp in payload: %+v", e.Data)
	}
}

func TestLetPersonaSpeakUnknownPersona(t *testing.T) {
	c := orchestrator.NewCoordinator(event.NewBus(), panel())
	s := conversation.New("")

	_, err := c.LetPersonaSpeak(context.Background(), "路人甲", s)
	if !errors.Is(err, orchestrator.ErrUnknownPersona) {
		t.Fatalf("expected ErrUnknownPersona, got %v", err)
	}
	if s.MessageCount() != 0 {
		t.Fatal("failed turn must not touch the session")
	}
}

func TestLetPersonaSpeakProviderFailure(t *testing.T) {
	bus := event.NewBus()
	var events int
	bus.Subscribe(orchestrator.EventAgentSpoke, func(event.Event) { events++ })

	wantErr := errors.New("rate limited")
	broken := &fakeAgent{name: "技术专家", role: persona.RoleTechLead, err: wantErr}
	c := orchestrator.NewCoordinator(bus, []agent.Agent{broken})

	s := conversation.New("")
	s.AppendMessage(conversation.UserMessage("hello"))

	_, err := c.LetPersonaSpeak(context.Background(), "技术专家", s)
	if !errors.Is(err, wantErr) {
		t.Fatalf("provider error should propagate unchanged, got %v", err)
	}
	if s.MessageCount() != 1 {
		t.Fatal("failed generation must not append a message")
	}
	if events != 0 {
		t.Fatal("failed generation must not publish an event")
	}
}

func TestLetAllSpeakRegistrationOrder(t *testing.T) {
	c := orchestrator.NewCoordinator(event.NewBus(), panel())
	s := conversation.New("")

	responses, err := c.LetAllSpeak(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"目标用户是谁？", "建议先用 SQLite", "注意数据隐私"}
	if len(responses) != len(want) {
		t.Fatalf("expected %d responses, got %v", len(want), responses)
	}
	for i := range want {
		if responses[i] != want[i] {
			t.Fatalf("speaking order wrong: %v", responses)
		}
	}

	msgs := s.Messages()
	if msgs[0].Speaker != "产品经理" || msgs[2].Speaker != "安全专家" {
		t.Fatalf("messages out of registration order: %+v", msgs)
	}
}

func TestLetAllSpeakStopsOnFailure(t *testing.T) {
	agents := []agent.Agent{
		&fakeAgent{name: "产品经理", role: persona.RoleProductManager, reply: "第一轮"},
		&fakeAgent{name: "技术专家", role: persona.RoleTechLead, err: errors.New("boom")},
		&fakeAgent{name: "安全专家", role: persona.RoleSecurityExpert, reply: "不应说话"},
	}
	c := orchestrator.NewCoordinator(event.NewBus(), agents)
	s := conversation.New("")

	responses, err := c.LetAllSpeak(context.Background(), s)
	if err == nil {
		t.Fatal("expected mid-round failure to surface")
	}
	if len(responses) != 1 || responses[0] != "第一轮" {
		t.Fatalf("partial responses wrong: %v", responses)
	}
	// The first speaker's message stays; nothing after the failure.
	if s.MessageCount() != 1 {
		t.Fatalf("expected 1 retained message, got %d", s.MessageCount())
	}
}

func TestShouldConfirmDecision(t *testing.T) {
	c := orchestrator.NewCoordinator(event.NewBus(), nil)

	s := conversation.New("")
	if c.ShouldConfirmDecision(s) {
		t.Fatal("empty session should not prompt confirmation")
	}

	for i := 0; i < 4; i++ {
		s.AppendMessage(conversation.UserMessage(fmt.Sprintf("普通消息 %d", i)))
	}
	if c.ShouldConfirmDecision(s) {
		t.Fatal("4 plain messages should not prompt confirmation")
	}

	s.AppendMessage(conversation.UserMessage("第五条普通消息"))
	if !c.ShouldConfirmDecision(s) {
		t.Fatal("every fifth message should prompt confirmation")
	}

	s.AppendMessage(conversation.UserMessage("那就决定用 Go 了"))
	if !c.ShouldConfirmDecision(s) {
		t.Fatal("decision language should prompt confirmation")
	}
}

func TestRecordDecisionSequence(t *testing.T) {
	bus := event.NewBus()
	var events []event.Event
	bus.Subscribe(orchestrator.EventDecisionMade, func(e event.Event) { events = append(events, e) })

	c := orchestrator.NewCoordinator(bus, nil)
	s := conversation.New("记账助手")

	for i, topic := range []string{"数据库", "支付", "部署"} {
		d := c.RecordDecision(context.Background(), s, topic, "结论"+topic, []string{"技术专家"}, "")
		want := fmt.Sprintf("decision_%03d", i+1)
		if d.ID != want {
			t.Fatalf("expected id %s, got %s", want, d.ID)
		}
	}

	if s.DecisionCount() != 3 {
		t.Fatalf("decisions not appended to session: %d", s.DecisionCount())
	}
	if d, ok := c.Ledger().Get("decision_002"); !ok || d.Topic != "支付" {
		t.Fatalf("ledger lookup failed: %+v ok=%v", d, ok)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 decision_made events, got %d", len(events))
	}
	if events[2].Data["decision_id"] != "decision_003" || events[2].Data["topic"] != "部署" {
		t.Fatalf("event payload wrong: %+v", events[2].Data)
	}
}

func TestDecisionCounterIsPerCoordinator(t *testing.T) {
	bus := event.NewBus()
	a := orchestrator.NewCoordinator(bus, nil)
	b := orchestrator.NewCoordinator(bus, nil)

	s := conversation.New("")
	d1 := a.RecordDecision(context.Background(), s, "t", "d", nil, "")
	d2 := b.RecordDecision(context.Background(), s, "t", "d", nil, "")

	if d1.ID != "decision_001" || d2.ID != "decision_001" {
		t.Fatalf("counters must be independent per coordinator: %s vs %s", d1.ID, d2.ID)
	}
}

func TestAgentRegistry(t *testing.T) {
	c := orchestrator.NewCoordinator(event.NewBus(), panel())

	names := c.ListAgents()
	if len(names) != 3 || names[0] != "产品经理" {
		t.Fatalf("registration order wrong: %v", names)
	}

	// Re-adding replaces without reordering.
	c.AddAgent(&fakeAgent{name: "技术专家", role: persona.RoleTechLead, reply: "改口"})
	names = c.ListAgents()
	if len(names) != 3 || names[1] != "技术专家" {
		t.Fatalf("re-add changed order: %v", names)
	}
	if a, _ := c.Agent("技术专家"); a.(*fakeAgent).reply != "改口" {
		t.Fatal("re-add did not replace the agent")
	}

	c.RemoveAgent("产品经理")
	if _, ok := c.Agent("产品经理"); ok {
		t.Fatal("removed agent still registered")
	}
	if names := c.ListAgents(); len(names) != 2 || names[0] != "技术专家" {
		t.Fatalf("order after removal wrong: %v", names)
	}

	c.RemoveAgent("不存在的人")
	if len(c.ListAgents()) != 2 {
		t.Fatal("removing an unknown name must be a no-op")
	}
}
