package orchestrator

import (
	"github.com/ctwww/cword/internal/analysis/markers"
	"github.com/ctwww/cword/internal/model/conversation"
	"github.com/ctwww/cword/internal/model/persona"
	"github.com/ctwww/cword/internal/service/agent"
)

// earlyStageMessageLimit 以内且处于 initial 阶段时，建议产品经理开场。
const earlyStageMessageLimit = 5

// SuggestPersonas 根据最近一条消息与会话阶段，提出可能想要发言的
// 角色名单。仅作建议，最终由调用方决定谁发言；结果只包含当前已
// 注册的角色，顺序为规则求值顺序，去重。
func (c *Coordinator) SuggestPersonas(s *conversation.Session) []string {
	return suggestSpeakers(s, c.registered())
}

// suggestSpeakers 依次求值四条触发规则。规则彼此独立，均可命中。
func suggestSpeakers(s *conversation.Session, registered []agent.Agent) []string {
	suggestions := []string{}

	last, ok := s.LastMessage()
	if !ok {
		return suggestions
	}

	seen := make(map[string]struct{})
	propose := func(role persona.Role) {
		for _, a := range registered {
			if a.Role() != role {
				continue
			}
			if _, dup := seen[a.Name()]; dup {
				continue
			}
			seen[a.Name()] = struct{}{}
			suggestions = append(suggestions, a.Name())
		}
	}

	// 规则一：涉及敏感数据，建议安全专家。
	if markers.Match(last.Content, markers.Sensitive) {
		propose(persona.RoleSecurityExpert)
	}

	// 规则二：对话早期，建议产品经理。
	if s.Stage() == conversation.StageInitial && s.MessageCount() < earlyStageMessageLimit {
		propose(persona.RoleProductManager)
	}

	// 规则三：讨论技术，建议技术专家。
	if markers.Match(last.Content, markers.Technical) {
		propose(persona.RoleTechLead)
	}

	// 规则四：讨论商业，建议业务顾问。
	if markers.Match(last.Content, markers.Business) {
		propose(persona.RoleBusinessConsultant)
	}

	return suggestions
}
