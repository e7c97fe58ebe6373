package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Stage 表示对话所处的阶段，影响角色的提示词与发言建议。
type Stage string

const (
	StageInitial      Stage = "initial"
	StageRequirements Stage = "requirements"
	StageDesign       Stage = "design"
	StageComplete     Stage = "complete"
)

// ParseStage validates a wire stage string. Empty input falls back to initial.
func ParseStage(s string) (Stage, error) {
	switch Stage(s) {
	case StageInitial, StageRequirements, StageDesign, StageComplete:
		return Stage(s), nil
	case "":
		return StageInitial, nil
	default:
		return StageInitial, fmt.Errorf("unknown conversation stage %q", s)
	}
}

// Session is the aggregate root for one panel conversation: the ordered
// message log, the decision log, the current stage and the product identity.
// Message and decision sequences are append-only; nothing is ever edited or
// removed in place. The session itself performs no locking; callers must
// serialize mutating calls (see service/conversation).
type Session struct {
	id          string
	productName string
	stage       Stage
	messages    []Message
	decisions   []Decision
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates an empty session. The short id mirrors what the CLI surfaces
// to users, so the full UUID is truncated.
func New(productName string) *Session {
	now := time.Now().UTC()
	return &Session{
		id:          uuid.NewString()[:8],
		productName: productName,
		stage:       StageInitial,
		createdAt:   now,
		updatedAt:   now,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// ProductName returns the (possibly still empty) product name.
func (s *Session) ProductName() string { return s.productName }

// SetProductName updates the product identity once it has been determined.
func (s *Session) SetProductName(name string) {
	s.productName = name
	s.touch()
}

// Stage returns the current conversation stage.
func (s *Session) Stage() Stage { return s.stage }

// SetStage moves the conversation to another stage. Stage transitions are a
// caller policy; the coordinator never calls this itself.
func (s *Session) SetStage(stage Stage) {
	s.stage = stage
	s.touch()
}

// CreatedAt returns the immutable creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns the time of the most recent mutation.
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }

// Messages returns a copy of the ordered message log.
func (s *Session) Messages() []Message {
	return append([]Message(nil), s.messages...)
}

// MessageCount returns the number of appended messages.
func (s *Session) MessageCount() int { return len(s.messages) }

// LastMessage returns the most recent message, if any.
func (s *Session) LastMessage() (Message, bool) {
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Decisions returns a copy of the ordered decision log.
func (s *Session) Decisions() []Decision {
	return append([]Decision(nil), s.decisions...)
}

// DecisionCount returns the number of recorded decisions.
func (s *Session) DecisionCount() int { return len(s.decisions) }

// AppendMessage appends one message and refreshes the update time.
func (s *Session) AppendMessage(m Message) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.messages = append(s.messages, m)
	s.touch()
}

// AppendDecision appends one decision and refreshes the update time.
func (s *Session) AppendDecision(d Decision) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	s.decisions = append(s.decisions, d)
	s.touch()
}

// SummarizeRecent 渲染最近 limit 条消息；limit<=0 或超过总数时渲染全部。
// 纯函数，不产生副作用。
func (s *Session) SummarizeRecent(limit int) string {
	msgs := s.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return FormatMessages(msgs)
}

// FormatMessages renders messages into the plain transcript form used for
// prompts and summaries.
func FormatMessages(msgs []Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleUser:
			lines = append(lines, "User: "+m.Content)
		case RoleSystem:
			lines = append(lines, "System: "+m.Content)
		default:
			speaker := m.Speaker
			if speaker == "" {
				speaker = "Agent"
			}
			lines = append(lines, speaker+": "+m.Content)
		}
	}
	return strings.Join(lines, "\n")
}

// touch refreshes updatedAt while keeping it monotonic.
func (s *Session) touch() {
	now := time.Now().UTC()
	if now.Before(s.updatedAt) {
		now = s.updatedAt
	}
	s.updatedAt = now
}
