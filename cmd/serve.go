package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aiki-no/aiki-cli/internal/config"
	"github.com/aiki-no/aiki-cli/internal/cost"
	"github.com/aiki-no/aiki-cli/internal/model"
	"github.com/aiki-no/aiki-cli/internal/pipeline"
	"github.com/aiki-no/aiki-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the document API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initApp(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{generator: env.Pipeline, docs: env.Store}
		if cfg.Features.PricingCalc {
			api.calc = cost.NewCalculator(cost.FromConfig(cfg.Pricing))
			api.known = cfg.Pricing.MockCompanies
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(api, cfg.Security, clockwork.NewRealClock()),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// generator runs document requests.
type generator interface {
	Run(ctx context.Context, req model.DocumentRequest) (*model.RenderedDocument, error)
	Enabled(k model.Kind) bool
}

// documentGetter loads stored documents.
type documentGetter interface {
	GetDocument(ctx context.Context, id string) (*model.RenderedDocument, error)
}

// apiServer holds the handler dependencies. docs and calc may be nil.
type apiServer struct {
	generator generator
	docs      documentGetter
	calc      *cost.Calculator
	known     map[string]config.MockCompany
}

// buildRouter mounts the API routes behind CORS and optional per-client
// rate limiting.
func buildRouter(s *apiServer, sec config.SecurityConfig, clock clockwork.Clock) http.Handler {
	r := chi.NewRouter()
	if sec.TrustedProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: sec.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	if sec.RateLimiting.Enabled {
		r.Use(newClientLimiter(sec.RateLimiting, clock).middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/ai", func(r chi.Router) {
		r.Post("/tilbud", s.handleGenerate(model.KindOffer))
		r.Post("/kontrakter", s.handleGenerate(model.KindContract))
		r.Post("/leads", s.handleGenerate(model.KindLeadSearch))
		r.Post("/bedriftinfo", s.handleGenerate(model.KindCompanyReport))
		r.Post("/kalkulator", s.handlePricing)
	})
	r.Get("/api/documents/{id}", s.handleGetDocument)

	return r
}

type errorResponse struct {
	Success bool     `json:"success"`
	Error   string   `json:"error"`
	Missing []string `json:"missing,omitempty"`
}

type documentResponse struct {
	Success  bool                    `json:"success"`
	Document *model.RenderedDocument `json:"document"`
}

func (s *apiServer) handleGenerate(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.generator.Enabled(kind) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: kind.String() + " is disabled"})
			return
		}

		fields, err := decodeFields(w, r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		doc, err := s.generator.Run(r.Context(), model.DocumentRequest{Kind: kind, Fields: fields})
		if err != nil {
			writeGenerateError(w, kind, err)
			return
		}
		writeJSON(w, http.StatusOK, documentResponse{Success: true, Document: doc})
	}
}

func writeGenerateError(w http.ResponseWriter, kind model.Kind, err error) {
	var verr *pipeline.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Missing: verr.Fields})
	case errors.Is(err, pipeline.ErrFeatureDisabled):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: kind.String() + " is disabled"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "request canceled"})
	default:
		zap.L().Error("generate failed", zap.Stringer("kind", kind), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// decodeFields reads a flat JSON object of form fields. Non-string values
// such as numbers are converted to their string form.
func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	var raw map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&raw); err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		str, err := cast.ToStringE(v)
		if err != nil {
			return nil, eris.Wrapf(err, "field %s", k)
		}
		fields[k] = str
	}
	return fields, nil
}

func (s *apiServer) handlePricing(w http.ResponseWriter, r *http.Request) {
	if s.calc == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "pricing calculator is disabled"})
		return
	}

	var body struct {
		cost.QuoteInput
		Known string `json:"known"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	var (
		q   cost.Quote
		err error
	)
	if body.Known != "" {
		q, err = s.calc.QuoteKnown(s.known, body.Known, body.QuoteInput)
	} else {
		q, err = s.calc.Quote(body.QuoteInput)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "quote": q})
}

func (s *apiServer) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "document store unavailable"})
		return
	}
	doc, err := s.docs.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "document not found"})
			return
		}
		zap.L().Error("get document failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, documentResponse{Success: true, Document: doc})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// clientLimiter allows MaxRequests per Window for each client address.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	limit   rate.Limit
	burst   int
	window  time.Duration
	clock   clockwork.Clock
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(c config.RateLimitingConfig, clock clockwork.Clock) *clientLimiter {
	window := c.Window
	if window <= 0 {
		window = 15 * time.Minute
	}
	burst := max(c.MaxRequests, 1)
	return &clientLimiter{
		clients: make(map[string]*clientEntry),
		limit:   rate.Every(window / time.Duration(burst)),
		burst:   burst,
		window:  window,
		clock:   clock,
	}
}

func (l *clientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if len(l.clients) > 10000 {
		for k, e := range l.clients {
			if now.Sub(e.lastSeen) > l.window {
				delete(l.clients, k)
			}
		}
	}

	e, ok := l.clients[key]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientKey(r)) {
			w.Header().Set("Retry-After", fmt.Sprintf("%.0f", l.window.Seconds()))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
