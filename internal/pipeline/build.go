package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aiki-no/aiki-cli/internal/format"
	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/render"
	"github.com/aiki-no/aiki-cli/internal/scoring"
	"github.com/aiki-no/aiki-cli/internal/source"
)

// leadsUnavailableNote is printed on a lead report when the source failed.
const leadsUnavailableNote = "Leadkilden var utilgjengelig. Ingen kandidater ble analysert."

// job carries one request through the kind-specific stages.
type job interface {
	// acquire fetches collaborator data. It fails only when ctx is done.
	acquire(ctx context.Context) (note string, err error)
	score()
	bundle() render.Bundle
	// finish copies structured results onto the rendered document.
	finish(doc *model.RenderedDocument)
}

func (p *Pipeline) newJob(req model.DocumentRequest, f *format.Formatter) job {
	id := p.ids[req.Kind]
	base := jobBase{p: p, req: req, f: f, issued: f.Now(), id: f.GenerateDocumentID(id.prefix, id.length)}
	switch req.Kind {
	case model.KindOffer:
		return &offerJob{jobBase: base}
	case model.KindContract:
		return &contractJob{jobBase: base}
	case model.KindLeadSearch:
		return &leadJob{jobBase: base}
	default:
		return &companyJob{jobBase: base}
	}
}

type jobBase struct {
	p      *Pipeline
	req    model.DocumentRequest
	f      *format.Formatter
	issued time.Time
	id     string
}

func (b jobBase) finish(doc *model.RenderedDocument) {
	doc.ID = b.id
	doc.IssuedAt = b.issued
}

func (jobBase) acquire(ctx context.Context) (string, error) { return "", ctx.Err() }

func (jobBase) score() {}

type offerJob struct {
	jobBase
	budget model.BudgetEstimate
	footer string
}

func (j *offerJob) score() {
	text := j.req.Field("budsjett")
	if text == "" {
		text = j.req.Field("pris_eks_mva")
	}
	j.budget = scoring.EstimateBudget(text)
	if n := len(j.p.footers); n > 0 {
		j.footer = j.p.footers[j.p.rand.IntN(n)]
	}
}

func (j *offerJob) bundle() render.Bundle {
	return render.OfferBundle{
		ID:             j.id,
		IssuedAt:       j.issued,
		ValidUntil:     j.issued.AddDate(0, 0, j.p.validityDays),
		RespondBy:      j.issued.AddDate(0, 0, j.p.responseDays),
		Customer:       j.req.Field("kunde"),
		Services:       j.req.Field("tjenester"),
		Package:        model.ParsePackage(j.req.Field("pakke")),
		Budget:         j.budget,
		Requirements:   j.req.Field("krav"),
		AutomationNote: j.req.Field("automasjon_beskrivelse"),
		Comment:        j.req.Field("annen_kommentar"),
		Footer:         j.footer,
	}
}

type contractJob struct {
	jobBase
}

func (j *contractJob) bundle() render.Bundle {
	return render.ContractBundle{
		ID:           j.id,
		IssuedAt:     j.issued,
		Type:         model.ContractType(j.req.Field("type")),
		Parties:      j.req.Fields["parter"],
		Deliverables: j.req.Fields["leveranser"],
		Terms:        j.req.Field("betingelser"),
	}
}

type leadJob struct {
	jobBase
	params     model.LeadSearchParams
	candidates []model.Lead
	top        []model.Lead
	stats      scoring.MarketStats
	note       string
}

func (j *leadJob) acquire(ctx context.Context) (string, error) {
	region := j.req.Field("omrade")
	if region == "" {
		region = "Norge"
		if len(j.p.regions) > 0 {
			region = j.p.regions[0]
		}
	}
	size := j.req.Field("storrelse")
	if size == "" {
		size = "Alle"
	}
	j.params = model.LeadSearchParams{
		Industry: j.req.Field("bransje"),
		Region:   region,
		Size:     size,
		Criteria: j.req.Field("kriterier"),
	}

	if j.p.source == nil {
		j.note = leadsUnavailableNote
		return "no lead source", nil
	}
	leads, err := j.p.source.FetchLeadCandidates(ctx, source.LeadQuery{
		Industry: j.params.Industry,
		Region:   j.params.Region,
		Size:     j.params.Size,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		zap.L().Warn("pipeline: lead source unavailable", zap.Error(err))
		j.note = leadsUnavailableNote
		return "lead source unavailable", nil
	}
	j.candidates = leads
	return "", nil
}

func (j *leadJob) score() {
	ranked := scoring.RankLeads(j.p.rand, j.candidates, j.params.Criteria)
	j.top = scoring.TopLeads(ranked, j.p.maxLeads)
	j.stats = scoring.ComputeMarketStats(j.top, j.params.Industry, j.p.conversionRates, j.p.defaultRate)
}

func (j *leadJob) bundle() render.Bundle {
	return render.LeadBundle{
		ID:       j.id,
		IssuedAt: j.issued,
		Params:   j.params,
		Analysed: len(j.candidates),
		Leads:    j.top,
		Stats:    j.stats,
		Note:     j.note,
	}
}

func (j *leadJob) finish(doc *model.RenderedDocument) {
	j.jobBase.finish(doc)
	doc.Leads = j.top
}

type companyJob struct {
	jobBase
	query    source.CompanyQuery
	attrs    *model.CompanyAttributes
	analysis model.CompanyAnalysis
}

func (j *companyJob) acquire(ctx context.Context) (string, error) {
	country := j.req.Field("land")
	if country == "" {
		country = "Norge"
	}
	j.query = source.CompanyQuery{
		Name:    j.req.Field("bedrift_navn"),
		OrgNr:   j.req.Field("orgnr"),
		Country: country,
	}

	var err error
	if j.p.source == nil {
		err = source.ErrDataUnavailable
	} else {
		j.attrs, err = j.p.source.FetchCompanyData(ctx, j.query)
	}
	if err == nil && j.attrs != nil {
		return "", nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	zap.L().Warn("pipeline: company data unavailable, using estimates",
		zap.String("company", j.query.Name), zap.Error(err))
	j.attrs = source.Estimate(j.p.rand, j.query)
	return "estimated", nil
}

func (j *companyJob) score() {
	j.analysis = scoring.Analyze(j.p.rand, j.f, *j.attrs, j.req.Field("analyse_type"))
}

func (j *companyJob) bundle() render.Bundle {
	return render.CompanyBundle{
		ID:       j.id,
		IssuedAt: j.issued,
		OrgNr:    j.req.Field("orgnr"),
		Analysis: j.analysis,
	}
}

func (j *companyJob) finish(doc *model.RenderedDocument) {
	j.jobBase.finish(doc)
	a := j.analysis
	doc.Analysis = &a
}
