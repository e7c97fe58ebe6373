// Package orchestrator ties the panel agents, the session, the context
// compressor and the event bus together.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ctwww/cword/internal/analysis/markers"
	"github.com/ctwww/cword/internal/event"
	"github.com/ctwww/cword/internal/model/conversation"
	"github.com/ctwww/cword/internal/service/agent"
	"github.com/ctwww/cword/internal/service/decision"
	"github.com/ctwww/cword/internal/service/history"
)

// 事件类型。观察者按类型字符串订阅。
const (
	EventAgentSpoke   = "agent_spoke"
	EventDecisionMade = "decision_made"
)

// ErrUnknownPersona 表示指定的角色未注册。
var ErrUnknownPersona = errors.New("persona is not registered")

// Coordinator 驱动一次面板对话：分发发言、压缩上下文、登记决策、
// 发布事件。一个会话同一时刻由一个协调器实例独占驱动。
type Coordinator struct {
	mu            sync.RWMutex
	agents        map[string]agent.Agent
	order         []string
	decisionCount int

	bus        *event.Bus
	ledger     *decision.Ledger
	compressor *history.Compressor
}

// NewCoordinator wires a coordinator over the given bus and agents.
// Registration order is the speaking order for LetAllSpeak.
func NewCoordinator(bus *event.Bus, agents []agent.Agent) *Coordinator {
	c := &Coordinator{
		agents:     make(map[string]agent.Agent),
		bus:        bus,
		ledger:     decision.NewLedger(),
		compressor: history.NewCompressor(),
	}
	for _, a := range agents {
		c.AddAgent(a)
	}
	return c
}

// Ledger exposes the decision index for queries and export.
func (c *Coordinator) Ledger() *decision.Ledger { return c.ledger }

// LetPersonaSpeak asks the named persona for one turn. The compressed
// session context is built first; the message is appended and the
// agent_spoke event published only after generation fully succeeded. A
// provider failure propagates unchanged and leaves the session untouched.
func (c *Coordinator) LetPersonaSpeak(ctx context.Context, name string, s *conversation.Session) (string, error) {
	a, ok := c.Agent(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPersona, name)
	}

	tc := agent.TurnContext{
		Stage:       s.Stage(),
		Decisions:   s.Decisions(),
		ProductName: s.ProductName(),
	}
	bounded := c.compressor.Prepare(s)

	response, err := a.GenerateResponse(ctx, bounded, tc)
	if err != nil {
		return "", err
	}

	s.AppendMessage(conversation.PersonaMessage(name, response))

	c.bus.Publish(ctx, event.New(EventAgentSpoke, map[string]any{
		"persona":   name,
		"response":  response,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}))

	return response, nil
}

// LetAllSpeak 按注册顺序依次让每个角色发言。任何一次失败立即中止，
// 已追加的发言保留：每个角色的发言各自独立有效，不做回滚。
func (c *Coordinator) LetAllSpeak(ctx context.Context, s *conversation.Session) ([]string, error) {
	names := c.ListAgents()

	responses := make([]string, 0, len(names))
	for _, name := range names {
		response, err := c.LetPersonaSpeak(ctx, name, s)
		if err != nil {
			return responses, err
		}
		responses = append(responses, response)
	}
	return responses, nil
}

// ShouldConfirmDecision reports whether the caller should prompt the user to
// confirm a decision: every fifth message, or when the latest message
// carries decision language. Pure predicate.
func (c *Coordinator) ShouldConfirmDecision(s *conversation.Session) bool {
	n := s.MessageCount()
	if n > 0 && n%5 == 0 {
		return true
	}

	last, ok := s.LastMessage()
	if !ok {
		return false
	}
	return markers.Match(last.Content, markers.DecisionLanguage)
}

// RecordDecision assigns the next sequential identifier, appends the
// decision to the session, indexes it in the ledger and publishes the
// decision_made event. The counter is owned by this coordinator instance.
func (c *Coordinator) RecordDecision(ctx context.Context, s *conversation.Session, topic, decided string, participants []string, reasoning string) conversation.Decision {
	c.mu.Lock()
	c.decisionCount++
	id := fmt.Sprintf("decision_%03d", c.decisionCount)
	c.mu.Unlock()

	d := conversation.Decision{
		ID:           id,
		Topic:        topic,
		Decision:     decided,
		Participants: append([]string(nil), participants...),
		Reasoning:    reasoning,
		CreatedAt:    time.Now().UTC(),
	}

	s.AppendDecision(d)
	c.ledger.Add(d)

	c.bus.Publish(ctx, event.New(EventDecisionMade, map[string]any{
		"decision_id": d.ID,
		"topic":       d.Topic,
		"decision":    d.Decision,
	}))

	return d
}

// Agent returns the named agent, if registered.
func (c *Coordinator) Agent(name string) (agent.Agent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.agents[name]
	return a, ok
}

// ListAgents returns the registered agent names in registration order.
func (c *Coordinator) ListAgents() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// AddAgent registers an agent under its name, keeping registration order.
// Re-adding a name replaces the agent without changing its position.
func (c *Coordinator) AddAgent(a agent.Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := a.Name()
	if _, exists := c.agents[name]; !exists {
		c.order = append(c.order, name)
	}
	c.agents[name] = a
}

// RemoveAgent drops an agent from the registry. Messages already attributed
// to it remain valid.
func (c *Coordinator) RemoveAgent(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.agents[name]; !exists {
		return
	}
	delete(c.agents, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// registered returns the agents in registration order.
func (c *Coordinator) registered() []agent.Agent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]agent.Agent, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.agents[name])
	}
	return out
}
