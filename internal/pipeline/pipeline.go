// Package pipeline turns a document request into a rendered document. A run
// moves through received, validating, data_acquisition, scoring, assembling
// and done; only validation can end it in failed.
package pipeline

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aiki-no/aiki-cli/internal/config"
	"github.com/aiki-no/aiki-cli/internal/format"
	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/render"
	"github.com/aiki-no/aiki-cli/internal/rng"
	"github.com/aiki-no/aiki-cli/internal/source"
)

// idSpec is the document number format of one kind.
type idSpec struct {
	prefix string
	length int
}

// Pipeline generates documents. It holds only configuration and
// collaborators, so one Pipeline serves concurrent requests.
type Pipeline struct {
	cfg    config.Provider
	source source.DataSource
	clock  clockwork.Clock
	rand   rng.Source
	sink   Sink
	delays map[model.Kind]time.Duration

	ids      map[model.Kind]idSpec
	features map[model.Kind]bool
	locale   format.Locale
	provider render.Provider

	validityDays    int
	responseDays    int
	footers         []string
	regions         []string
	maxLeads        int
	conversionRates map[string]int
	defaultRate     int
}

// New creates a Pipeline reading its settings from cfg. Missing keys take
// the built-in defaults, so an empty provider yields a working pipeline.
func New(cfg config.Provider, src source.DataSource, opts ...Option) *Pipeline {
	if cfg == nil {
		cfg = config.NewProvider(nil)
	}
	p := &Pipeline{
		cfg:    cfg,
		source: src,
		clock:  clockwork.NewRealClock(),
		rand:   rng.Default(),
		delays: map[model.Kind]time.Duration{
			model.KindOffer:         config.Duration(cfg, "ai.delays.offer", 2*time.Second),
			model.KindContract:      config.Duration(cfg, "ai.delays.contract", 2500*time.Millisecond),
			model.KindLeadSearch:    config.Duration(cfg, "ai.delays.leads", 3*time.Second),
			model.KindCompanyReport: config.Duration(cfg, "ai.delays.company", 2500*time.Millisecond),
		},
		ids: map[model.Kind]idSpec{
			model.KindOffer:         {config.String(cfg, "ai.offer.id_prefix", "AIKI"), config.Int(cfg, "ai.offer.id_length", 6)},
			model.KindContract:      {config.String(cfg, "ai.contract.id_prefix", "KONTRAKT"), config.Int(cfg, "ai.contract.id_length", 8)},
			model.KindLeadSearch:    {config.String(cfg, "ai.leads.id_prefix", "LEADS"), config.Int(cfg, "ai.leads.id_length", 6)},
			model.KindCompanyReport: {config.String(cfg, "ai.report.id_prefix", "ANALYSE"), config.Int(cfg, "ai.report.id_length", 6)},
		},
		features: map[model.Kind]bool{
			model.KindOffer:         config.Bool(cfg, "features.offers", true),
			model.KindContract:      config.Bool(cfg, "features.contracts", true),
			model.KindLeadSearch:    config.Bool(cfg, "features.lead_hunter", true),
			model.KindCompanyReport: config.Bool(cfg, "features.company_reports", true),
		},
		locale: format.Locale{
			Tag:        config.String(cfg, "i18n.locale", "nb-NO"),
			Currency:   config.String(cfg, "i18n.currency", "NOK"),
			DateFormat: config.String(cfg, "i18n.date_format", "dd.mm.yyyy"),
		},
		provider: render.Provider{
			Name:    config.String(cfg, "company.name", ""),
			Team:    config.String(cfg, "company.team", ""),
			Contact: config.String(cfg, "company.contact", ""),
		},
		validityDays:    config.Int(cfg, "ai.offer.validity_days", 30),
		responseDays:    config.Int(cfg, "ai.offer.response_days", 7),
		footers:         config.Strings(cfg, "ai.offer.footers", nil),
		regions:         config.Strings(cfg, "ai.leads.regions", []string{"Norge"}),
		maxLeads:        config.Int(cfg, "ai.leads.max_results", 5),
		conversionRates: config.IntMap(cfg, "ai.leads.conversion_rates", nil),
		defaultRate:     config.Int(cfg, "ai.leads.default_conversion_rate", 20),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enabled reports whether documents of kind k may be generated.
func (p *Pipeline) Enabled(k model.Kind) bool {
	return p.features[k]
}

// Run generates one document. Validation problems return a
// *ValidationError; a canceled ctx returns ctx.Err(). Collaborator failures
// do not fail the run: the document is built from estimates instead.
func (p *Pipeline) Run(ctx context.Context, req model.DocumentRequest) (*model.RenderedDocument, error) {
	req = req.Clone()
	log := zap.L().With(zap.String("kind", req.Kind.String()))

	var stages []model.StageResult
	trackStage := func(stage model.Stage, fn func() (string, error)) error {
		start := p.clock.Now()
		note, err := fn()
		duration := p.clock.Since(start).Milliseconds()

		if err != nil {
			log.Warn("pipeline: stage failed",
				zap.String("stage", string(stage)),
				zap.Int64("duration_ms", duration),
				zap.Error(err),
			)
			stages = append(stages, model.StageResult{Stage: model.StageFailed, Duration: duration, Note: err.Error()})
			return err
		}
		log.Info("pipeline: stage complete",
			zap.String("stage", string(stage)),
			zap.Int64("duration_ms", duration),
		)
		stages = append(stages, model.StageResult{Stage: stage, Duration: duration, Note: note})
		return nil
	}

	stages = append(stages, model.StageResult{Stage: model.StageReceived})

	if req.Kind.Valid() && !p.Enabled(req.Kind) {
		return nil, eris.Wrapf(ErrFeatureDisabled, "pipeline: %s", req.Kind)
	}

	if err := trackStage(model.StageValidating, func() (string, error) {
		if err := Validate(req); err != nil {
			return "", err
		}
		if orgNrWarning(req) {
			log.Warn("pipeline: invalid org.nr", zap.String("orgnr", req.Field("orgnr")))
			return "invalid org.nr", nil
		}
		return "", nil
	}); err != nil {
		return nil, err
	}

	f := format.New(p.locale, p.clock, p.rand)
	j := p.newJob(req, f)

	if err := trackStage(model.StageDataAcquisition, func() (string, error) {
		if err := p.wait(ctx, req.Kind); err != nil {
			return "", err
		}
		return j.acquire(ctx)
	}); err != nil {
		// Only a canceled context reaches here.
		return nil, err
	}

	_ = trackStage(model.StageScoring, func() (string, error) {
		j.score()
		return "", nil
	})

	var doc *model.RenderedDocument
	_ = trackStage(model.StageAssembling, func() (string, error) {
		b := j.bundle()
		doc = &model.RenderedDocument{
			Kind: req.Kind,
			Body: render.New(f, p.provider).Render(b),
		}
		j.finish(doc)
		return "", nil
	})

	stages = append(stages, model.StageResult{Stage: model.StageDone})
	doc.Stages = stages

	log.Info("pipeline: document generated", zap.String("id", doc.ID))

	if p.sink != nil {
		if err := p.sink.SaveDocument(ctx, doc); err != nil {
			log.Error("pipeline: failed to save document", zap.String("id", doc.ID), zap.Error(err))
		}
	}
	return doc, nil
}

// wait applies the configured processing delay for kind.
func (p *Pipeline) wait(ctx context.Context, kind model.Kind) error {
	d := p.delays[kind]
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(d):
		return nil
	}
}
