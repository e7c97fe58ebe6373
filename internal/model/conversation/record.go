package conversation

import (
	"fmt"
	"time"
)

// Record 是会话的可移植形式，字段布局与持久化层共享。
// 具体的文件/字节编码由持久化层决定，这里只约定字段。
type Record struct {
	SessionID    string           `json:"session_id"`
	ProductName  string           `json:"product_name"`
	Messages     []MessageRecord  `json:"messages"`
	Decisions    []DecisionRecord `json:"decisions"`
	CurrentStage string           `json:"current_stage"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// MessageRecord is the portable form of one message.
type MessageRecord struct {
	Role      string    `json:"role"`
	AgentName string    `json:"agent_name,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// DecisionRecord is the portable form of one decision.
type DecisionRecord struct {
	ID           string    `json:"id"`
	Topic        string    `json:"topic"`
	Decision     string    `json:"decision"`
	Participants []string  `json:"participants"`
	Reasoning    string    `json:"reasoning"`
	Timestamp    time.Time `json:"timestamp"`
}

// Portable converts the session into its portable record.
func (s *Session) Portable() Record {
	msgs := make([]MessageRecord, 0, len(s.messages))
	for _, m := range s.messages {
		msgs = append(msgs, MessageRecord{
			Role:      m.Role.String(),
			AgentName: m.Speaker,
			Content:   m.Content,
			Timestamp: m.CreatedAt,
		})
	}

	decs := make([]DecisionRecord, 0, len(s.decisions))
	for _, d := range s.decisions {
		decs = append(decs, DecisionRecord{
			ID:           d.ID,
			Topic:        d.Topic,
			Decision:     d.Decision,
			Participants: append([]string(nil), d.Participants...),
			Reasoning:    d.Reasoning,
			Timestamp:    d.CreatedAt,
		})
	}

	return Record{
		SessionID:    s.id,
		ProductName:  s.productName,
		Messages:     msgs,
		Decisions:    decs,
		CurrentStage: string(s.stage),
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
	}
}

// FromRecord rebuilds a session from its portable record.
func FromRecord(r Record) (*Session, error) {
	stage, err := ParseStage(r.CurrentStage)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:          r.SessionID,
		productName: r.ProductName,
		stage:       stage,
		createdAt:   r.CreatedAt,
		updatedAt:   r.UpdatedAt,
	}
	if s.updatedAt.Before(s.createdAt) {
		s.updatedAt = s.createdAt
	}

	s.messages = make([]Message, 0, len(r.Messages))
	for i, m := range r.Messages {
		role, err := ParseRole(m.Role)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		s.messages = append(s.messages, Message{
			Role:      role,
			Speaker:   m.AgentName,
			Content:   m.Content,
			CreatedAt: m.Timestamp,
		})
	}

	s.decisions = make([]Decision, 0, len(r.Decisions))
	for _, d := range r.Decisions {
		s.decisions = append(s.decisions, Decision{
			ID:           d.ID,
			Topic:        d.Topic,
			Decision:     d.Decision,
			Participants: append([]string(nil), d.Participants...),
			Reasoning:    d.Reasoning,
			CreatedAt:    d.Timestamp,
		})
	}

	return s, nil
}
