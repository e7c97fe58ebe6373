package conversation

import (
	"fmt"
	"time"
)

// Role 标识消息的发言方。闭合枚举，非法取值无法被构造。
type Role uint8

const (
	// RoleUser 表示终端用户的发言。
	RoleUser Role = iota
	// RolePersona 表示某个角色（专家面板成员）的发言。
	RolePersona
	// RoleSystem marks synthetic messages such as compression summaries.
	RoleSystem
)

// String returns the wire representation used by the portable record.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RolePersona:
		return "agent"
	case RoleSystem:
		return "system"
	default:
		return "unknown"
	}
}

// ParseRole maps a wire role string back to the closed enum.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "agent":
		return RolePersona, nil
	case "system":
		return RoleSystem, nil
	default:
		return RoleUser, fmt.Errorf("unknown message role %q", s)
	}
}

// Message 是对话中的一条不可变记录。顺序以追加顺序为准，时间戳仅作展示。
type Message struct {
	Role      Role
	Speaker   string // persona 名称，仅在 Role == RolePersona 时有意义
	Content   string
	CreatedAt time.Time
}

// UserMessage builds a user-authored message stamped with the current time.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: time.Now().UTC()}
}

// PersonaMessage builds a message attributed to the named persona.
func PersonaMessage(speaker, content string) Message {
	return Message{Role: RolePersona, Speaker: speaker, Content: content, CreatedAt: time.Now().UTC()}
}

// SystemMessage builds a synthetic system message (e.g. a context summary).
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, CreatedAt: time.Now().UTC()}
}

// Decision 是一次已经落定的选择，追加后不再变更。
type Decision struct {
	ID           string
	Topic        string
	Decision     string
	Participants []string
	Reasoning    string
	CreatedAt    time.Time
}
