package model

// Contact is the key person at a lead company.
type Contact struct {
	Name     string `json:"name" yaml:"name"`
	Role     string `json:"role" yaml:"role"`
	Email    string `json:"email" yaml:"email"`
	Phone    string `json:"phone" yaml:"phone"`
	LinkedIn string `json:"linkedin" yaml:"linkedin"`
}

// Lead is a prospective customer returned by a lead search.
type Lead struct {
	Name            string   `json:"name" yaml:"name"`
	Employees       int      `json:"employees" yaml:"employees"`
	RevenueMillions float64  `json:"revenue_millions" yaml:"revenue_millions"`
	GrowthPercent   float64  `json:"growth_percent" yaml:"growth_percent"`
	IndustryDetail  string   `json:"industry_detail" yaml:"industry_detail"`
	Contact         Contact  `json:"contact" yaml:"contact"`
	Opportunities   []string `json:"opportunities" yaml:"opportunities"`
	Approach        string   `json:"approach" yaml:"approach"`
	AttackPlan      string   `json:"attack_plan" yaml:"attack_plan"`
	Score           int      `json:"score" yaml:"score"`
}

// LeadSearchParams echoes the search parameters of a lead request.
type LeadSearchParams struct {
	Industry string `json:"industry"`
	Region   string `json:"region"`
	Size     string `json:"size"`
	Criteria string `json:"criteria"`
}
