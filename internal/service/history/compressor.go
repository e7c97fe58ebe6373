// Package history bounds the conversation material handed to a generation
// request as the message log grows.
package history

import (
	"fmt"
	"strings"

	"github.com/ctwww/cword/internal/analysis/markers"
	"github.com/ctwww/cword/internal/model/conversation"
)

const (
	// fullHistoryLimit 以内的会话原样返回。
	fullHistoryLimit = 10
	// summaryThreshold 超过该条数后改用摘要加过滤。
	summaryThreshold = 20
	// summaryDecisionCount 摘要中最多携带的近期决策条数。
	summaryDecisionCount = 3
)

// Compressor 按消息条数三档压缩会话上下文。压缩永不失败；
// 空会话返回空序列。
type Compressor struct{}

// NewCompressor returns a compressor with the default thresholds.
func NewCompressor() *Compressor {
	return &Compressor{}
}

// Prepare returns a bounded view of the session's messages:
//   - up to 10 messages: the full log, unmodified
//   - more than 20: a synthetic summary message followed by the importance
//     filter applied to the most recent 10
//   - in between: the importance filter applied to the full log
func (c *Compressor) Prepare(s *conversation.Session) []conversation.Message {
	msgs := s.Messages()

	if len(msgs) <= fullHistoryLimit {
		return msgs
	}

	if len(msgs) > summaryThreshold {
		recent := filterImportant(msgs[len(msgs)-fullHistoryLimit:])
		out := make([]conversation.Message, 0, len(recent)+1)
		out = append(out, c.summarize(s))
		return append(out, recent...)
	}

	return filterImportant(msgs)
}

// summarize 生成一条 system 角色的合成摘要消息。
func (c *Compressor) summarize(s *conversation.Session) conversation.Message {
	product := s.ProductName()
	if product == "" {
		product = "Untitled"
	}

	var b strings.Builder
	b.WriteString("[Conversation Summary]\n")
	fmt.Fprintf(&b, "Product: %s\n", product)
	fmt.Fprintf(&b, "Stage: %s\n", s.Stage())
	fmt.Fprintf(&b, "Messages: %d\n", s.MessageCount())
	fmt.Fprintf(&b, "Decisions: %d\n", s.DecisionCount())

	decisions := s.Decisions()
	if len(decisions) > 0 {
		b.WriteString("\nKey points:\n")
		start := 0
		if len(decisions) > summaryDecisionCount {
			start = len(decisions) - summaryDecisionCount
		}
		for _, d := range decisions[start:] {
			fmt.Fprintf(&b, "- %s: %s\n", d.Topic, d.Decision)
		}
	}

	return conversation.SystemMessage(b.String())
}

// filterImportant keeps every user message and only those persona messages
// that carry a confirmation/question/decision marker. Lossy but
// order-preserving.
func filterImportant(msgs []conversation.Message) []conversation.Message {
	important := make([]conversation.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == conversation.RoleUser {
			important = append(important, m)
			continue
		}
		if markers.Match(m.Content, markers.Important) {
			important = append(important, m)
		}
	}
	return important
}
