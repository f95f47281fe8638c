// Package query runs the retrieval and answer-gating pipeline.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/rag-gatekeeper/internal/gate"
	"github.com/upb/rag-gatekeeper/internal/observability"
	"github.com/upb/rag-gatekeeper/internal/policy"
	"github.com/upb/rag-gatekeeper/internal/rag"
	"github.com/upb/rag-gatekeeper/internal/similarity"
	"github.com/upb/rag-gatekeeper/models"
	"github.com/upb/rag-gatekeeper/services"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Service orchestrates embed, retrieve, decide, generate and audit
type Service struct {
	embedder   rag.Embedder
	index      rag.Index
	normalizer similarity.Normalizer
	gate       *gate.Engine
	generator  rag.Generator
	recorder   AuditRecorder
	metrics    observability.Metrics
	tracer     trace.Tracer
	cfg        Config
	logger     *zap.Logger
}

// NewService creates a query service. The similarity normalizer is chosen
// from the index metric.
func NewService(
	embedder rag.Embedder,
	index rag.Index,
	generator rag.Generator,
	recorder AuditRecorder,
	engine *gate.Engine,
	metrics observability.Metrics,
	cfg Config,
	logger *zap.Logger,
) (*Service, error) {
	normalizer, err := similarity.For(index.Metric())
	if err != nil {
		return nil, fmt.Errorf("index metric: %w", err)
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultConfig().TopK
	}
	if cfg.MaxEvidence <= 0 {
		cfg.MaxEvidence = gate.DefaultMaxDocs
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}

	return &Service{
		embedder:   embedder,
		index:      index,
		normalizer: normalizer,
		gate:       engine,
		generator:  generator,
		recorder:   recorder,
		metrics:    metrics,
		tracer:     otel.Tracer(observability.ServiceName),
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Ask answers a query from the documents the user may see, or reports
// that there is not enough relevant information. Every accepted query
// produces exactly one audit record, whatever the outcome.
func (s *Service) Ask(ctx context.Context, req Request) (result *Result, err error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, services.ErrEmptyQuery
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "query.ask", trace.WithAttributes(
		attribute.String("request_id", req.RequestID),
		attribute.String("user.department", req.User.Department),
	))
	defer span.End()

	log := s.logger.With(
		zap.String("request_id", req.RequestID),
		zap.String("username", req.User.Username))

	event := models.NewAuditEvent(req.RequestID, req.User, req.Query)
	result = &Result{RequestID: req.RequestID, Sources: []models.SourceRef{}}

	defer func() {
		elapsed := time.Since(start)
		event.WithLatency(elapsed)

		outcome := event.Mode()
		if err != nil {
			result = nil
			outcome = "error"
			event.WithError(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.metrics.RecordLatency(ctx, float64(elapsed.Milliseconds()), outcome)

		// The caller may have gone away; the record is written regardless.
		if auditErr := s.recorder.Record(context.WithoutCancel(ctx), event); auditErr != nil && result != nil {
			result.AuditErr = auditErr
		}

		log.Info("query completed",
			zap.String("outcome", outcome),
			zap.Bool("llm_called", event.LLMCalled),
			zap.Int("sources", len(event.Sources)),
			zap.Duration("latency", elapsed))
	}()

	// Step 1: Embed the query
	log.Debug("step 1: embedding query")
	embedding, err := s.embed(ctx, req.Query)
	if err != nil {
		log.Error("embedding failed", zap.Error(err))
		return nil, err
	}

	// Step 2: Build the retrieval filter
	filter := policy.BuildFilter(req.User)
	log.Debug("step 2: built retrieval filter",
		zap.Stringer("filter", filter),
		zap.Any("where", filter.ToWhere()))

	// Step 3: Filtered nearest-neighbour search
	log.Debug("step 3: querying index", zap.Int("top_k", s.cfg.TopK))
	candidates, err := s.retrieve(ctx, embedding, filter)
	if err != nil {
		log.Error("index query failed", zap.Error(err))
		return nil, err
	}

	// Step 4: Drop anything the filter should have excluded
	candidates = s.guard(log, filter, candidates)

	// Step 5: Decide
	decision := s.gate.Decide(candidates)
	event.WithDecision(decision.Mode, decision.MaxSimilarity)
	result.Mode = decision.Mode
	result.MaxSimilarity = decision.MaxSimilarity
	s.metrics.RecordDecision(ctx, string(decision.Mode))
	span.SetAttributes(attribute.String("decision.mode", string(decision.Mode)))

	log.Debug("step 5: gate decided",
		zap.String("mode", string(decision.Mode)),
		zap.Int("candidates", len(candidates)),
		zap.Int("strong", decision.StrongCount),
		zap.Float64s("top_scores", decision.TopScores))

	if !decision.Mode.AllowsAnswer() {
		return result, nil
	}

	// Step 6: Select evidence
	evidence := gate.SelectEvidence(candidates, s.cfg.MaxEvidence, s.cfg.MinSimilarity)
	sources := models.SourcesOf(evidence)
	event.WithSources(sources)
	log.Debug("step 6: selected evidence", zap.Int("documents", len(evidence)))

	// Step 7: Generate
	log.Debug("step 7: generating answer", zap.Bool("soft", decision.Mode.IsSoft()))
	event.WithLLMCalled(true)
	answer, err := s.generate(ctx, req.Query, evidence, decision.Mode.IsSoft())
	if err != nil {
		log.Error("generation failed", zap.Error(err))
		return nil, err
	}

	result.Answer = answer
	result.Sources = sources
	return result, nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, span := s.tracer.Start(ctx, "query.embed")
	defer span.End()

	embedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		span.RecordError(err)
		if services.GetErrorType(err) == "" {
			err = services.Wrap(services.ErrEmbeddingFailed, err)
		}
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, services.Wrap(services.ErrEmbeddingFailed, errors.New("empty embedding"))
	}
	return embedding, nil
}

func (s *Service) retrieve(ctx context.Context, embedding []float32, filter policy.Predicate) ([]models.RetrievedCandidate, error) {
	ctx, span := s.tracer.Start(ctx, "query.retrieve", trace.WithAttributes(
		attribute.Int("top_k", s.cfg.TopK),
		attribute.String("metric", string(s.normalizer.Metric())),
	))
	defer span.End()

	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}

	hits, err := s.index.Query(ctx, embedding, s.cfg.TopK, filter)
	if err != nil {
		span.RecordError(err)
		return nil, services.Wrap(services.ErrIndexUnavailable, err)
	}
	span.SetAttributes(attribute.Int("hits", len(hits)))

	return rag.ToCandidates(hits, s.normalizer), nil
}

// guard re-applies the filter to what the index returned
func (s *Service) guard(log *zap.Logger, filter policy.Predicate, candidates []models.RetrievedCandidate) []models.RetrievedCandidate {
	kept := candidates[:0:0]
	for _, c := range candidates {
		if !filter.Match(c.Metadata) {
			log.Error("index returned a document outside the filter, dropping it",
				zap.String("source", c.Metadata.Source),
				zap.String("owner_department", c.Metadata.OwnerDepartment))
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func (s *Service) generate(ctx context.Context, query string, evidence []models.RetrievedCandidate, soft bool) (string, error) {
	ctx, span := s.tracer.Start(ctx, "query.generate", trace.WithAttributes(
		attribute.Bool("soft", soft),
		attribute.Int("evidence", len(evidence)),
	))
	defer span.End()

	answer, err := s.generator.Generate(ctx, query, evidence, soft)
	if err != nil {
		span.RecordError(err)
		if services.GetErrorType(err) == "" {
			err = services.Wrap(services.ErrGenerationFailed, err)
		}
		return "", err
	}
	return answer, nil
}
