package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/pipeline"
	"github.com/aiki-no/aiki-cli/internal/resilience"
	"github.com/aiki-no/aiki-cli/internal/store"
)

var (
	batchFile       string
	batchLimit      int
	batchRetryLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Generate documents from a YAML request file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		reqs, err := loadRequests(batchFile)
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(reqs) > batchLimit {
			reqs = reqs[:batchLimit]
		}

		env, err := initApp(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		_, err = processBatch(ctx, reqs, batchOptions{
			Concurrency: cfg.Batch.MaxConcurrentRequests,
			MaxRetries:  cfg.Batch.MaxRetries,
		}, env.Pipeline.Run, env.Store, clockwork.NewRealClock())
		return err
	},
}

var batchRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Replay failed requests from the dead-letter queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		_, err = retryDLQ(ctx, env.Store, env.Pipeline.Run, clockwork.NewRealClock(), batchRetryLimit)
		return err
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "YAML file with document requests (required)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of requests to process")
	_ = batchCmd.MarkFlagRequired("file")

	batchRetryCmd.Flags().IntVar(&batchRetryLimit, "limit", 50, "max number of entries to replay")

	batchCmd.AddCommand(batchRetryCmd)
	rootCmd.AddCommand(batchCmd)
}

// generateFunc runs one request through the pipeline.
type generateFunc func(ctx context.Context, req model.DocumentRequest) (*model.RenderedDocument, error)

// batchSink receives batch output.
type batchSink interface {
	SaveDocuments(ctx context.Context, docs []*model.RenderedDocument) error
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
}

// dlqStore is the dead-letter surface used by retry.
type dlqStore interface {
	SaveDocument(ctx context.Context, doc *model.RenderedDocument) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
}

type batchOptions struct {
	Concurrency int
	MaxRetries  int
}

type batchSummary struct {
	Succeeded int
	Failed    int
}

// requestFile is the batch input. A bare list of requests is accepted too.
type requestFile struct {
	Requests []model.DocumentRequest `yaml:"requests"`
}

func loadRequests(path string) ([]model.DocumentRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: read request file")
	}
	return parseRequests(data)
}

func parseRequests(data []byte) ([]model.DocumentRequest, error) {
	var list []model.DocumentRequest
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var file requestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "batch: parse request file")
	}
	return file.Requests, nil
}

// processBatch generates every request with bounded concurrency. Successful
// documents are saved in one bulk write; failures go to the dead-letter
// queue. Individual failures never abort the batch.
func processBatch(ctx context.Context, reqs []model.DocumentRequest, opts batchOptions, generate generateFunc, sink batchSink, clock clockwork.Clock) (batchSummary, error) {
	if len(reqs) == 0 {
		zap.L().Info("no requests to process")
		return batchSummary{}, nil
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("requests", len(reqs)),
		zap.Int("concurrency", opts.Concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	docs := make([]*model.RenderedDocument, len(reqs))
	var failed atomic.Int64

	for i, req := range reqs {
		g.Go(func() error {
			log := zap.L().With(zap.Int("index", i), zap.Stringer("kind", req.Kind))

			doc, err := generate(gctx, req)
			if err != nil {
				failed.Add(1)
				log.Error("generation failed", zap.Error(err))
				if errors.Is(err, context.Canceled) {
					return nil
				}
				if qErr := sink.EnqueueDLQ(gctx, newDLQEntry(req, err, opts.MaxRetries, clock)); qErr != nil {
					log.Warn("failed to enqueue dead letter", zap.Error(qErr))
				}
				return nil
			}
			docs[i] = doc
			log.Info("document generated", zap.String("id", doc.ID))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return batchSummary{}, eris.Wrap(err, "batch processing")
	}

	var ok []*model.RenderedDocument
	for _, d := range docs {
		if d != nil {
			ok = append(ok, d)
		}
	}
	if len(ok) > 0 {
		if err := sink.SaveDocuments(ctx, ok); err != nil {
			return batchSummary{}, eris.Wrap(err, "batch: save documents")
		}
	}

	summary := batchSummary{Succeeded: len(ok), Failed: int(failed.Load())}
	zap.L().Info("batch complete",
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// newDLQEntry records a failed request. Validation failures and disabled
// features are permanent and get no retries.
func newDLQEntry(req model.DocumentRequest, err error, maxRetries int, clock clockwork.Clock) resilience.DLQEntry {
	now := clock.Now()
	entry := resilience.DLQEntry{
		ID:           uuid.NewString(),
		Request:      req,
		Error:        err.Error(),
		ErrorType:    resilience.ClassifyError(err),
		MaxRetries:   maxRetries,
		CreatedAt:    now,
		LastFailedAt: now,
	}

	var verr *pipeline.ValidationError
	if errors.As(err, &verr) || errors.Is(err, pipeline.ErrFeatureDisabled) {
		entry.ErrorType = resilience.ErrorPermanent
		entry.FailedStage = model.StageValidating
		entry.MaxRetries = 0
	}
	entry.NextRetryAt = entry.NextBackoff(now)
	return entry
}

type retrySummary struct {
	Attempted int
	Recovered int
}

// retryDLQ replays due dead-letter entries. Recovered requests are saved and
// removed from the queue; the rest are rescheduled with backoff.
func retryDLQ(ctx context.Context, q dlqStore, generate generateFunc, clock clockwork.Clock, limit int) (retrySummary, error) {
	entries, err := q.DequeueDLQ(ctx, resilience.DLQFilter{Limit: limit})
	if err != nil {
		return retrySummary{}, eris.Wrap(err, "batch: dequeue dlq")
	}

	var s retrySummary
	for _, e := range entries {
		if !e.CanRetry() {
			continue
		}
		s.Attempted++
		log := zap.L().With(zap.String("dlq_id", e.ID), zap.Stringer("kind", e.Request.Kind))

		doc, genErr := generate(ctx, e.Request)
		if genErr != nil {
			if errors.Is(genErr, context.Canceled) {
				return s, genErr
			}
			log.Warn("retry failed", zap.Error(genErr))
			if err := q.IncrementDLQRetry(ctx, e.ID, e.NextBackoff(clock.Now()), genErr.Error()); err != nil {
				return s, eris.Wrap(err, "batch: reschedule dlq entry")
			}
			continue
		}

		if err := q.SaveDocument(ctx, doc); err != nil {
			if !errors.Is(err, store.ErrDuplicateID) {
				return s, eris.Wrap(err, "batch: save recovered document")
			}
			// An id collision; the next attempt draws a fresh id.
			log.Warn("recovered document id taken", zap.String("id", doc.ID))
			if err := q.IncrementDLQRetry(ctx, e.ID, e.NextBackoff(clock.Now()), err.Error()); err != nil {
				return s, eris.Wrap(err, "batch: reschedule dlq entry")
			}
			continue
		}
		if err := q.RemoveDLQ(ctx, e.ID); err != nil {
			return s, eris.Wrap(err, "batch: remove dlq entry")
		}
		s.Recovered++
		log.Info("retry recovered", zap.String("id", doc.ID))
	}

	zap.L().Info("dlq retry complete",
		zap.Int("attempted", s.Attempted),
		zap.Int("recovered", s.Recovered),
	)
	return s, nil
}
