// Package markers 提供对话文本的双语关键词检测。
// 这是一个粗粒度的子串匹配启发式，不是 NLP。
package markers

import "strings"

// Category 表示一类关键词桶。
type Category string

const (
	// Sensitive 命中身份、支付、隐私等敏感信息词。
	Sensitive Category = "sensitive"
	// Technical 命中架构、数据库等技术讨论词。
	Technical Category = "technical"
	// Business 命中市场、收入等商业讨论词。
	Business Category = "business"
	// DecisionLanguage 命中"就用/决定"等拍板用语。
	DecisionLanguage Category = "decision"
	// Important 标记压缩时需要保留的确认/提问/决策消息。
	Important Category = "important"
)

// 关键词桶为中英双语的字面集合，保持与上游一致，便于对照测试。
var buckets = map[Category][]string{
	Sensitive: {
		"id card", "password", "bank card", "privacy",
		"身份证", "密码", "银行卡", "隐私",
	},
	Technical: {
		"architecture", "database", "api", "framework", "technical",
		"架构", "数据库", "技术",
	},
	Business: {
		"business", "market", "customer", "revenue",
		"商业", "市场", "用户", "收入",
	},
	DecisionLanguage: {
		"just use", "choose", "determine", "decide",
		"就用", "选择", "确定", "决定",
	},
	Important: {
		"?", "？", "confirm", "确认", "decide", "决定", "choose", "选择",
	},
}

// Match reports whether text contains any keyword of the category.
// Matching is case-insensitive substring containment.
func Match(text string, category Category) bool {
	normalized := strings.ToLower(text)
	for _, word := range buckets[category] {
		if strings.Contains(normalized, word) {
			return true
		}
	}
	return false
}
