package salesforce

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aiki-no/aiki-cli/internal/model"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// LeadSource is written to every pushed Lead.
const LeadSource = "AIKI Lead Hunter"

// SFLead is the subset of the Lead sObject read back for matching.
type SFLead struct {
	ID      string `json:"Id" salesforce:"Id"`
	Email   string `json:"Email" salesforce:"Email"`
	Company string `json:"Company" salesforce:"Company"`
}

// PushResult summarises a lead push.
type PushResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// Rating maps a lead score to the Salesforce Rating picklist.
func Rating(score int) string {
	switch {
	case score >= 95:
		return "Hot"
	case score >= 88:
		return "Warm"
	default:
		return "Cold"
	}
}

// LeadRecord converts a ranked lead to Lead sObject fields.
func LeadRecord(l model.Lead) map[string]any {
	first, last := splitName(l.Contact.Name)
	rec := map[string]any{
		"Company":           l.Name,
		"FirstName":         first,
		"LastName":          last,
		"NumberOfEmployees": l.Employees,
		"AnnualRevenue":     math.Round(l.RevenueMillions * 1e6),
		"Industry":          l.IndustryDetail,
		"LeadSource":        LeadSource,
		"Rating":            Rating(l.Score),
		"Description":       leadDescription(l),
	}
	if l.Contact.Role != "" {
		rec["Title"] = l.Contact.Role
	}
	if l.Contact.Email != "" {
		rec["Email"] = l.Contact.Email
	}
	if l.Contact.Phone != "" {
		rec["Phone"] = l.Contact.Phone
	}
	return rec
}

// splitName splits a contact name at its last space. LastName is required
// by Salesforce, so an empty name becomes "Ukjent".
func splitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "Ukjent"
	}
	i := strings.LastIndex(name, " ")
	if i < 0 {
		return "", name
	}
	return strings.TrimSpace(name[:i]), name[i+1:]
}

func leadDescription(l model.Lead) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Lead-score: %d/100\n", l.Score)
	if l.GrowthPercent != 0 {
		fmt.Fprintf(&sb, "Vekst: %.0f%%\n", l.GrowthPercent)
	}
	for _, o := range l.Opportunities {
		sb.WriteString("- ")
		sb.WriteString(o)
		sb.WriteByte('\n')
	}
	if l.Approach != "" {
		fmt.Fprintf(&sb, "Tilnærming: %s\n", l.Approach)
	}
	if l.AttackPlan != "" {
		fmt.Fprintf(&sb, "Plan: %s\n", l.AttackPlan)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FindLeadsByEmail returns existing Leads keyed by lower-cased email.
func FindLeadsByEmail(ctx context.Context, c Client, emails []string) (map[string]SFLead, error) {
	out := make(map[string]SFLead)
	if len(emails) == 0 {
		return out, nil
	}

	quoted := make([]string, len(emails))
	for i, e := range emails {
		quoted[i] = "'" + escapeSOQL(e) + "'"
	}
	soql := fmt.Sprintf("SELECT Id, Email, Company FROM Lead WHERE Email IN (%s)", strings.Join(quoted, ", "))

	var leads []SFLead
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrap(err, "sf: find leads by email")
	}
	for _, l := range leads {
		if l.Email == "" {
			continue
		}
		out[strings.ToLower(l.Email)] = l
	}
	return out, nil
}

func escapeSOQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// PushLeads upserts leads by contact email. Leads whose email already exists
// are updated; the rest are inserted. Leads with an empty name are skipped.
// Per-record failures are counted in the result; only transport errors are
// returned.
func PushLeads(ctx context.Context, c Client, leads []model.Lead) (*PushResult, error) {
	res := &PushResult{}

	var emails []string
	seen := make(map[string]bool)
	for _, l := range leads {
		e := strings.ToLower(strings.TrimSpace(l.Contact.Email))
		if e != "" && !seen[e] {
			seen[e] = true
			emails = append(emails, e)
		}
	}

	existing := make(map[string]SFLead)
	for start := 0; start < len(emails); start += maxBatchSize {
		end := min(start+maxBatchSize, len(emails))
		found, err := FindLeadsByEmail(ctx, c, emails[start:end])
		if err != nil {
			return nil, err
		}
		for k, v := range found {
			existing[k] = v
		}
	}

	var inserts []map[string]any
	var updates []CollectionRecord
	for _, l := range leads {
		if strings.TrimSpace(l.Name) == "" {
			continue
		}
		rec := LeadRecord(l)
		if hit, ok := existing[strings.ToLower(strings.TrimSpace(l.Contact.Email))]; ok {
			updates = append(updates, CollectionRecord{ID: hit.ID, Fields: rec})
			continue
		}
		inserts = append(inserts, rec)
	}

	for start := 0; start < len(inserts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(inserts))
		results, err := c.InsertCollection(ctx, "Lead", inserts[start:end])
		if err != nil {
			return res, err
		}
		tally(res, results, &res.Created)
	}
	for start := 0; start < len(updates); start += maxBatchSize {
		end := min(start+maxBatchSize, len(updates))
		results, err := c.UpdateCollection(ctx, "Lead", updates[start:end])
		if err != nil {
			return res, err
		}
		tally(res, results, &res.Updated)
	}

	zap.L().Info("sf: leads pushed",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func tally(res *PushResult, results []CollectionResult, ok *int) {
	for _, r := range results {
		if r.Success {
			*ok++
			continue
		}
		res.Failed++
		res.Errors = append(res.Errors, strings.Join(r.Errors, "; "))
	}
}
