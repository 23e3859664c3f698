// Package export writes ranked lead lists to spreadsheets and reads them
// back, so a sales team can work a lead search outside the tool.
package export

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/aiki-no/aiki-cli/internal/model"
)

// LeadSheet is the name of the sheet holding leads.
const LeadSheet = "Leads"

// LeadHeader is the first row of an exported lead sheet.
var LeadHeader = []string{
	"Rang", "Bedrift", "Score", "Ansatte", "Omsetning (MNOK)", "Vekst (%)", "Bransje",
	"Kontaktperson", "Rolle", "E-post", "Telefon", "LinkedIn",
	"Muligheter", "Tilnærming", "Angrepsplan",
}

const opportunitySep = "; "

// LeadsFile builds a workbook with one row per lead in rank order.
func LeadsFile(leads []model.Lead) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(LeadSheet)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range LeadHeader {
		header.AddCell().SetString(h)
	}

	for i, l := range leads {
		row := sheet.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(l.Name)
		row.AddCell().SetInt(l.Score)
		row.AddCell().SetInt(l.Employees)
		row.AddCell().SetFloat(l.RevenueMillions)
		row.AddCell().SetFloat(l.GrowthPercent)
		row.AddCell().SetString(l.IndustryDetail)
		row.AddCell().SetString(l.Contact.Name)
		row.AddCell().SetString(l.Contact.Role)
		row.AddCell().SetString(l.Contact.Email)
		row.AddCell().SetString(l.Contact.Phone)
		row.AddCell().SetString(l.Contact.LinkedIn)
		row.AddCell().SetString(strings.Join(l.Opportunities, opportunitySep))
		row.AddCell().SetString(l.Approach)
		row.AddCell().SetString(l.AttackPlan)
	}
	return f, nil
}

// WriteLeads writes the lead workbook to w.
func WriteLeads(w io.Writer, leads []model.Lead) error {
	f, err := LeadsFile(leads)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "xlsx: write leads")
}

// SaveLeads writes the lead workbook to path.
func SaveLeads(path string, leads []model.Lead) error {
	f, err := LeadsFile(leads)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

// ReadLeads reads a workbook written by SaveLeads. Rows with a blank
// company name are skipped; unparsable numbers read as zero.
func ReadLeads(ctx context.Context, path string) ([]model.Lead, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	sheet, ok := f.Sheet[LeadSheet]
	if !ok {
		if len(f.Sheets) == 0 {
			return nil, eris.Errorf("xlsx: %s has no sheets", path)
		}
		sheet = f.Sheets[0]
	}

	var leads []model.Lead
	for i, row := range sheet.Rows {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "xlsx: context cancelled")
		}
		if i == 0 || row == nil {
			continue
		}
		cells := rowToStrings(row, len(LeadHeader))
		if strings.TrimSpace(cells[1]) == "" {
			continue
		}
		l := model.Lead{
			Name:            strings.TrimSpace(cells[1]),
			Score:           atoi(cells[2]),
			Employees:       atoi(cells[3]),
			RevenueMillions: atof(cells[4]),
			GrowthPercent:   atof(cells[5]),
			IndustryDetail:  cells[6],
			Contact: model.Contact{
				Name:     cells[7],
				Role:     cells[8],
				Email:    cells[9],
				Phone:    cells[10],
				LinkedIn: cells[11],
			},
			Approach:   cells[13],
			AttackPlan: cells[14],
		}
		for _, o := range strings.Split(cells[12], opportunitySep) {
			if o = strings.TrimSpace(o); o != "" {
				l.Opportunities = append(l.Opportunities, o)
			}
		}
		leads = append(leads, l)
	}
	return leads, nil
}

// rowToStrings returns the row's cells padded to at least n entries.
func rowToStrings(row *xlsx.Row, n int) []string {
	cells := make([]string, max(n, len(row.Cells)))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return n
}

func atof(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
