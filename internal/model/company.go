package model

// CompanyBasics holds registry-level facts about a company.
type CompanyBasics struct {
	Name            string  `json:"name"`
	OrgNr           string  `json:"orgnr"`
	Country         string  `json:"country"`
	Founded         int     `json:"founded"`
	Employees       int     `json:"employees"`
	RevenueMillions float64 `json:"revenue_millions"`
	Industry        string  `json:"industry,omitempty"`
}

// CompanyFinancials holds key ratios in percent.
type CompanyFinancials struct {
	ProfitMargin float64 `json:"profit_margin"`
	EquityRatio  float64 `json:"equity_ratio"`
	Solidity     float64 `json:"solidity"`
}

// CompanyTech describes technological maturity in percent.
type CompanyTech struct {
	Digitalization float64 `json:"digitalization"`
	AIMaturity     float64 `json:"ai_maturity"`
	TechStack      string  `json:"tech_stack"`
}

// CompanyAttributes is the structured bundle returned by the external-data collaborator.
type CompanyAttributes struct {
	Basics     CompanyBasics     `json:"basics"`
	Financials CompanyFinancials `json:"financials"`
	Tech       CompanyTech       `json:"tech"`
	// Estimated is set when the attributes are fallback estimates rather than looked-up data.
	Estimated bool `json:"estimated,omitempty"`
}

// Section is a titled narrative block of a company report.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CompanyScores are the four sub-scores of a company analysis, each in [0,10].
type CompanyScores struct {
	Credit int `json:"credit"`
	Growth int `json:"growth"`
	Tech   int `json:"tech"`
	Sales  int `json:"sales"`
}

// CompanyAnalysis is the assembled analysis of one company.
type CompanyAnalysis struct {
	Basics          CompanyBasics     `json:"basics"`
	Financials      CompanyFinancials `json:"financials"`
	Tech            CompanyTech       `json:"tech"`
	AnalysisType    string            `json:"analysis_type"`
	Sections        []Section         `json:"sections"`
	Summary         string            `json:"summary"`
	Opportunities   []string          `json:"opportunities"`
	Risks           []string          `json:"risks"`
	Recommendations []string          `json:"recommendations"`
	Scores          CompanyScores     `json:"scores"`
	TotalScore      int               `json:"total_score"`
	Estimated       bool              `json:"estimated,omitempty"`
}
