// Package decision 维护一次会话期间做出的决策索引。
// Session 自身为序列化保留一份副本；Ledger 是运行期的查询索引。
package decision

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ctwww/cword/internal/model/conversation"
)

// Ledger stores decisions by id and keeps insertion order for export.
type Ledger struct {
	mu    sync.RWMutex
	byID  map[string]conversation.Decision
	order []string
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{byID: make(map[string]conversation.Decision)}
}

// Add stores a decision. Identifiers are caller-assigned and assumed unique;
// re-adding the same id overwrites in place without duplicating the order.
func (l *Ledger) Add(d conversation.Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byID[d.ID]; !exists {
		l.order = append(l.order, d.ID)
	}
	l.byID[d.ID] = d
}

// Get looks up a decision by identifier.
func (l *Ledger) Get(id string) (conversation.Decision, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	d, ok := l.byID[id]
	return d, ok
}

// All returns every decision in insertion order.
func (l *Ledger) All() []conversation.Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(func(conversation.Decision) bool { return true })
}

// ByTopic returns decisions whose topic contains the substring,
// case-insensitively, preserving insertion order.
func (l *Ledger) ByTopic(topic string) []conversation.Decision {
	needle := strings.ToLower(topic)

	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(func(d conversation.Decision) bool {
		return strings.Contains(strings.ToLower(d.Topic), needle)
	})
}

// ByParticipant returns decisions one participant took part in (exact match),
// preserving insertion order.
func (l *Ledger) ByParticipant(name string) []conversation.Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(func(d conversation.Decision) bool {
		for _, p := range d.Participants {
			if p == name {
				return true
			}
		}
		return false
	})
}

// ExportMarkdown 以插入顺序导出所有决策，每条一个可读区块。
func (l *Ledger) ExportMarkdown() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	lines := []string{"# Decision History\n"}
	for _, id := range l.order {
		d := l.byID[id]
		lines = append(lines,
			fmt.Sprintf("\n## %s: %s", d.ID, d.Topic),
			fmt.Sprintf("**Time**: %s", d.CreatedAt.Format("2006-01-02 15:04")),
			fmt.Sprintf("**Decision**: %s", d.Decision),
			fmt.Sprintf("**Participants**: %s", strings.Join(d.Participants, ", ")),
			fmt.Sprintf("**Reasoning**: %s", d.Reasoning),
		)
	}
	return strings.Join(lines, "\n")
}

// collect 按插入顺序过滤，调用方需持有读锁。
func (l *Ledger) collect(keep func(conversation.Decision) bool) []conversation.Decision {
	out := make([]conversation.Decision, 0, len(l.order))
	for _, id := range l.order {
		if d := l.byID[id]; keep(d) {
			out = append(out, d)
		}
	}
	return out
}
