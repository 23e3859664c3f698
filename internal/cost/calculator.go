// Package cost is the internal pricing calculator. An engagement is priced
// as a success fee on the customer's annual result and weighed against the
// value of the working hours automation saves.
package cost

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/aiki-no/aiki-cli/internal/config"
)

// Assumptions holds the success-fee band and the time-savings model.
type Assumptions struct {
	DefaultPercent float64 `yaml:"default_percent" mapstructure:"default_percent"`
	MinPercent     float64 `yaml:"min_percent" mapstructure:"min_percent"`
	MaxPercent     float64 `yaml:"max_percent" mapstructure:"max_percent"`

	HoursSavedPerDay   float64 `yaml:"hours_saved_per_day" mapstructure:"hours_saved_per_day"`
	WorkDaysPerYear    float64 `yaml:"work_days_per_year" mapstructure:"work_days_per_year"`
	WorkHoursPerWeek   float64 `yaml:"work_hours_per_week" mapstructure:"work_hours_per_week"`
	MonthlySalary      float64 `yaml:"monthly_salary" mapstructure:"monthly_salary"`
	MaintenancePercent float64 `yaml:"maintenance_percent" mapstructure:"maintenance_percent"`
}

// DefaultAssumptions returns the standard pricing model: 1.5% success fee
// within [0.5, 3.0], two hours saved per day over 250 working days, a
// 37.5 hour week, 65 000 NOK monthly salary and 10% yearly maintenance.
func DefaultAssumptions() Assumptions {
	return Assumptions{
		DefaultPercent:     1.5,
		MinPercent:         0.5,
		MaxPercent:         3.0,
		HoursSavedPerDay:   2,
		WorkDaysPerYear:    250,
		WorkHoursPerWeek:   37.5,
		MonthlySalary:      65000,
		MaintenancePercent: 0.1,
	}
}

// FromConfig builds Assumptions from the pricing section. Non-positive
// values take the defaults.
func FromConfig(c config.PricingConfig) Assumptions {
	def := DefaultAssumptions()
	pick := func(v, d float64) float64 {
		if v > 0 && !math.IsInf(v, 0) {
			return v
		}
		return d
	}
	a := Assumptions{
		DefaultPercent:     pick(c.DefaultPercent, def.DefaultPercent),
		MinPercent:         pick(c.MinPercent, def.MinPercent),
		MaxPercent:         pick(c.MaxPercent, def.MaxPercent),
		HoursSavedPerDay:   pick(c.Defaults.HoursSavedPerDay, def.HoursSavedPerDay),
		WorkDaysPerYear:    pick(c.Defaults.WorkDaysPerYear, def.WorkDaysPerYear),
		WorkHoursPerWeek:   pick(c.Defaults.WorkHoursPerWeek, def.WorkHoursPerWeek),
		MonthlySalary:      pick(c.Defaults.MonthlySalary, def.MonthlySalary),
		MaintenancePercent: pick(c.Defaults.MaintenancePercent, def.MaintenancePercent),
	}
	if a.MinPercent > a.MaxPercent {
		a.MinPercent, a.MaxPercent = a.MaxPercent, a.MinPercent
	}
	return a
}

// Calculator prices engagements.
type Calculator struct {
	a Assumptions
}

// NewCalculator creates a Calculator with the given assumptions.
func NewCalculator(a Assumptions) *Calculator {
	return &Calculator{a: a}
}

// Assumptions returns the model the calculator prices with.
func (c *Calculator) Assumptions() Assumptions { return c.a }

// ClampPercent returns p limited to the allowed band. Zero, negative and
// NaN select the default percent.
func (c *Calculator) ClampPercent(p float64) float64 {
	if p <= 0 || math.IsNaN(p) {
		p = c.a.DefaultPercent
	}
	return math.Min(math.Max(p, c.a.MinPercent), c.a.MaxPercent)
}

// SuccessFee returns the yearly fee for an annual result at percent. A loss
// yields no fee.
func (c *Calculator) SuccessFee(annualResult, percent float64) float64 {
	if annualResult <= 0 || math.IsNaN(annualResult) {
		return 0
	}
	return annualResult * c.ClampPercent(percent) / 100
}

// HourlyCost is the employer's cost of one working hour.
func (c *Calculator) HourlyCost() float64 {
	hoursPerYear := c.a.WorkHoursPerWeek * 52
	if hoursPerYear <= 0 {
		return 0
	}
	return c.a.MonthlySalary * 12 / hoursPerYear
}

// TimeSavings returns the hours and the value saved per year when each of
// employees saves hoursPerDay. A non-positive hoursPerDay uses the default.
func (c *Calculator) TimeSavings(employees int, hoursPerDay float64) (hours, value float64) {
	if employees <= 0 {
		return 0, 0
	}
	if hoursPerDay <= 0 || math.IsNaN(hoursPerDay) {
		hoursPerDay = c.a.HoursSavedPerDay
	}
	hours = hoursPerDay * c.a.WorkDaysPerYear * float64(employees)
	return hours, hours * c.HourlyCost()
}

// QuoteInput describes the engagement to price.
type QuoteInput struct {
	Company          string  `json:"company"`
	AnnualResult     float64 `json:"annual_result"`
	Employees        int     `json:"employees"`
	HoursSavedPerDay float64 `json:"hours_saved_per_day,omitempty"`
	Percent          float64 `json:"percent,omitempty"`
	Investment       float64 `json:"investment,omitempty"`
}

// Quote is a priced engagement. Amounts are NOK per year unless named
// otherwise.
type Quote struct {
	Company           string  `json:"company"`
	Percent           float64 `json:"percent"`
	SuccessFee        float64 `json:"success_fee"`
	HoursSaved        float64 `json:"hours_saved"`
	SavingsValue      float64 `json:"savings_value"`
	Maintenance       float64 `json:"maintenance"`
	NetBenefit        float64 `json:"net_benefit"`
	ROIPercent        float64 `json:"roi_percent"`
	PaybackMonths     float64 `json:"payback_months"`
	MonthlySuccessFee float64 `json:"monthly_success_fee"`
}

// Quote prices in. The investment defaults to one year of success fee.
// PaybackMonths is 0 when the engagement never pays back.
func (c *Calculator) Quote(in QuoteInput) (Quote, error) {
	if in.Employees < 0 {
		return Quote{}, eris.Errorf("cost: employees must not be negative, got %d", in.Employees)
	}
	if in.Investment < 0 {
		return Quote{}, eris.New("cost: investment must not be negative")
	}

	q := Quote{Company: in.Company, Percent: c.ClampPercent(in.Percent)}
	q.SuccessFee = round(c.SuccessFee(in.AnnualResult, q.Percent))
	q.MonthlySuccessFee = round(q.SuccessFee / 12)

	hours, value := c.TimeSavings(in.Employees, in.HoursSavedPerDay)
	q.HoursSaved = round(hours)
	q.SavingsValue = round(value)

	investment := in.Investment
	if investment == 0 {
		investment = q.SuccessFee
	}
	q.Maintenance = round(investment * c.a.MaintenancePercent)
	q.NetBenefit = round(q.SavingsValue - q.SuccessFee - q.Maintenance)

	if cost := q.SuccessFee + q.Maintenance; cost > 0 {
		q.ROIPercent = math.Round((q.SavingsValue-cost)/cost*1000) / 10
	}
	if monthly := (q.SavingsValue - q.Maintenance) / 12; monthly > 0 && investment > 0 {
		q.PaybackMonths = math.Round(investment/monthly*10) / 10
	}
	return q, nil
}

// QuoteKnown prices a company from the known-company table, looked up by
// its short key such as "equinor".
func (c *Calculator) QuoteKnown(known map[string]config.MockCompany, key string, in QuoteInput) (Quote, error) {
	mc, ok := known[key]
	if !ok {
		return Quote{}, eris.Errorf("cost: unknown company %q", key)
	}
	in.Company = mc.Name
	in.AnnualResult = float64(mc.Result)
	if in.Employees == 0 {
		in.Employees = mc.Employees
	}
	return c.Quote(in)
}

func round(v float64) float64 {
	return math.Round(v)
}
