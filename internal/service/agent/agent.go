// Package agent 定义面板成员的生成能力接口与统一实现。
// 角色差异体现在按职能/语言索引的提示词数据上，而不是类型层级上。
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ctwww/cword/internal/analysis/markers"
	"github.com/ctwww/cword/internal/model/conversation"
	"github.com/ctwww/cword/internal/model/persona"
)

const (
	defaultMaxTokens   = 2000
	defaultTemperature = 0.7
)

// Generator 是外部生成能力：给定提示词产出文本，失败时返回提供方错误。
// 超时与中断由生成方自身负责，这里只透传 context。
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error)
}

// TurnContext carries the session-derived context handed to one turn.
type TurnContext struct {
	Stage       conversation.Stage
	Decisions   []conversation.Decision
	ProductName string
}

// Agent is the capability surface the coordinator drives.
type Agent interface {
	Name() string
	Role() persona.Role
	BuildPrompt(history []conversation.Message, tc TurnContext) string
	GenerateResponse(ctx context.Context, history []conversation.Message, tc TurnContext) (string, error)
	ShouldPreempt(history []conversation.Message, tc TurnContext) bool
}

// PanelAgent is the single Agent implementation; per-role behaviour comes
// from the prompt tables in prompts.go.
type PanelAgent struct {
	spec        persona.Persona
	llm         Generator
	maxTokens   int
	temperature float32
}

// New 构造一个面板成员。maxTokens/temperature 传零值时使用默认预算。
func New(spec persona.Persona, llm Generator, maxTokens int, temperature float32) *PanelAgent {
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	return &PanelAgent{spec: spec, llm: llm, maxTokens: maxTokens, temperature: temperature}
}

// Name returns the persona's display name, which is also its registry key.
func (a *PanelAgent) Name() string { return a.spec.Name }

// Role returns the persona's panel role.
func (a *PanelAgent) Role() persona.Role { return a.spec.Role }

// BuildPrompt 拼装身份、职能提示词、会话历史与阶段指令。
// 历史应当已经由上下文压缩器裁剪。
func (a *PanelAgent) BuildPrompt(history []conversation.Message, tc TurnContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s, %s\n\n", a.spec.Name, a.spec.Description)
	b.WriteString(SystemPrompt(a.spec.Role, a.spec.Language))

	if tc.ProductName != "" {
		fmt.Fprintf(&b, "\nProduct under discussion: %s\n", tc.ProductName)
	}

	b.WriteString("\nConversation history:\n")
	b.WriteString(conversation.FormatMessages(history))
	b.WriteString("\n")

	if instruction := StageInstruction(a.spec.Role, a.spec.Language, tc.Stage); instruction != "" {
		b.WriteString(instruction)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nPlease respond as %s:", a.spec.Name)
	return b.String()
}

// GenerateResponse invokes the generation capability with the built prompt.
// Errors from the provider propagate unchanged.
func (a *PanelAgent) GenerateResponse(ctx context.Context, history []conversation.Message, tc TurnContext) (string, error) {
	prompt := a.BuildPrompt(history, tc)
	return a.llm.Generate(ctx, prompt, a.maxTokens, a.temperature)
}

// ShouldPreempt 判断该成员是否主动想要发言：最近一条消息命中
// 本职能的关键词桶即认为想发言。
func (a *PanelAgent) ShouldPreempt(history []conversation.Message, tc TurnContext) bool {
	if len(history) == 0 {
		return false
	}
	last := history[len(history)-1]

	switch a.spec.Role {
	case persona.RoleSecurityExpert:
		return markers.Match(last.Content, markers.Sensitive)
	case persona.RoleTechLead:
		return markers.Match(last.Content, markers.Technical)
	case persona.RoleBusinessConsultant:
		return markers.Match(last.Content, markers.Business)
	case persona.RoleProductManager:
		return tc.Stage == conversation.StageInitial
	default:
		return false
	}
}
