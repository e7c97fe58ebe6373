package persona

// Role 标识角色在专家面板中的职能，发言建议规则按职能匹配。
type Role string

const (
	RoleProductManager     Role = "product_manager"
	RoleTechLead           Role = "tech_lead"
	RoleBusinessConsultant Role = "business_consultant"
	RoleSecurityExpert     Role = "security_expert"
)

// Persona captures the attributes of one panelist exposed to clients.
// Prompt text lives in the agent layer, keyed by Role and Language.
type Persona struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Emoji       string `json:"emoji,omitempty"`
	Description string `json:"description,omitempty"`
	Language    string `json:"language"` // "en" 或 "zh"
}

// Seed 返回四位内置的面板成员，名称随语言切换。
func Seed(language string) []Persona {
	if language != "zh" && language != "en" {
		language = "zh"
	}

	if language == "zh" {
		return []Persona{
			{
				ID:          "product-manager",
				Role:        RoleProductManager,
				Name:        "产品经理",
				Title:       "需求挖掘者",
				Emoji:       "🎯",
				Description: "经验丰富的产品经理，擅长需求挖掘与整理确认。",
				Language:    "zh",
			},
			{
				ID:          "tech-lead",
				Role:        RoleTechLead,
				Name:        "技术专家",
				Title:       "架构顾问",
				Emoji:       "⚙️",
				Description: "资深技术专家，评估可行性并给出多个方案的权衡。",
				Language:    "zh",
			},
			{
				ID:          "business-consultant",
				Role:        RoleBusinessConsultant,
				Name:        "业务顾问",
				Title:       "商业分析师",
				Emoji:       "📈",
				Description: "关注商业价值、市场潜力与变现模式的业务顾问。",
				Language:    "zh",
			},
			{
				ID:          "security-expert",
				Role:        RoleSecurityExpert,
				Name:        "安全专家",
				Title:       "风险识别者",
				Emoji:       "🛡️",
				Description: "主动识别风险与合规问题的安全专家，提供可落地的缓解方案。",
				Language:    "zh",
			},
		}
	}

	return []Persona{
		{
			ID:          "product-manager",
			Role:        RoleProductManager,
			Name:        "Product Manager",
			Title:       "Requirements gatherer",
			Emoji:       "🎯",
			Description: "Experienced product manager, skilled in requirement mining.",
			Language:    "en",
		},
		{
			ID:          "tech-lead",
			Role:        RoleTechLead,
			Name:        "Tech Lead",
			Title:       "Architecture consultant",
			Emoji:       "⚙️",
			Description: "Senior technical expert weighing feasibility and trade-offs.",
			Language:    "en",
		},
		{
			ID:          "business-consultant",
			Role:        RoleBusinessConsultant,
			Name:        "Business Consultant",
			Title:       "Market analyst",
			Emoji:       "📈",
			Description: "Consultant focused on business value, market potential and revenue.",
			Language:    "en",
		},
		{
			ID:          "security-expert",
			Role:        RoleSecurityExpert,
			Name:        "Security Expert",
			Title:       "Risk identifier",
			Emoji:       "🛡️",
			Description: "Devil's advocate flagging risks and compliance issues with concrete mitigations.",
			Language:    "en",
		},
	}
}
