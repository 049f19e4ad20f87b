package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Capeo/SupplAI/internal/extractor"
	"github.com/Capeo/SupplAI/internal/metrics"
	"github.com/Capeo/SupplAI/internal/models"
	"github.com/Capeo/SupplAI/internal/registry"
	"github.com/Capeo/SupplAI/internal/utils"
)

// ErrCancelled is returned instead of a result when the caller's context is
// cancelled or its deadline passes.
var ErrCancelled = errors.New("analysis cancelled")

// State is a step of the qualification pipeline.
type State string

const (
	StateExtracted             State = "Extracted"
	StateClassified            State = "Classified"
	StateStatusChecked         State = "StatusChecked"
	StateStatusSkipped         State = "StatusSkipped"
	StateRequirementsExtracted State = "RequirementsExtracted"
	StateEvaluated             State = "Evaluated"
	StateAssembled             State = "Assembled"
	StateFailed                State = "Failed"
)

// Stage labels for metrics, spans and logs.
const (
	stageExtract      = "extract"
	stageClassify     = "classify"
	stageStatusLookup = "status_lookup"
	stageRequirements = "requirements"
	stageEvaluate     = "evaluate"
)

const tracerName = "github.com/Capeo/SupplAI/internal/services"

type ApprovalClassifier interface {
	Classify(ctx context.Context, tenderText string) (models.ApprovalRequirement, error)
}

type RequirementExtractor interface {
	Extract(ctx context.Context, tenderText string) (*models.RequirementSet, error)
}

type QualificationEvaluator interface {
	Evaluate(ctx context.Context, company string, reqs *models.RequirementSet, responseText string, approval *models.ApprovalStatus) (*models.QualificationAnalysis, error)
}

// DocumentExtractor turns a raw document into text.
type DocumentExtractor func(doc models.Document) (*models.ExtractedText, error)

// QualificationService runs the tender qualification pipeline. It holds no
// per-request state and is safe for concurrent use.
type QualificationService struct {
	extract      DocumentExtractor
	classifier   ApprovalClassifier
	requirements RequirementExtractor
	evaluator    QualificationEvaluator
	lookup       registry.StatusLookup
	logger       *utils.Logger
	tracer       trace.Tracer
	newID        func() string
}

type Option func(*QualificationService)

// WithIDFunc replaces the analysis ID generator.
func WithIDFunc(fn func() string) Option {
	return func(s *QualificationService) { s.newID = fn }
}

func WithDocumentExtractor(fn DocumentExtractor) Option {
	return func(s *QualificationService) { s.extract = fn }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *QualificationService) { s.tracer = tracer }
}

func NewQualificationService(
	classifier ApprovalClassifier,
	requirements RequirementExtractor,
	evaluator QualificationEvaluator,
	lookup registry.StatusLookup,
	logger *utils.Logger,
	opts ...Option,
) *QualificationService {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	s := &QualificationService{
		extract:      extractor.Extract,
		classifier:   classifier,
		requirements: requirements,
		evaluator:    evaluator,
		lookup:       lookup,
		logger:       logger,
		tracer:       otel.Tracer(tracerName),
		newID:        utils.GenerateID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs one qualification analysis. Stage failures yield the degraded
// result with a nil error; the error is non-nil only for ErrCancelled.
func (s *QualificationService) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, error) {
	result, _, err := s.Run(ctx, req)
	return result, err
}

// Run is Analyze that also returns the sequence of states the invocation
// passed through.
func (s *QualificationService) Run(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResult, []State, error) {
	analysisID := s.newID()
	logger := s.logger.With(
		zap.String("analysis_id", analysisID),
		zap.String("company", req.CompanyName),
	)

	ctx, span := s.tracer.Start(ctx, "qualification.analyze",
		trace.WithAttributes(attribute.String("analysis.id", analysisID)))
	defer span.End()

	states := make([]State, 0, 7)
	start := time.Now()

	fail := func(stage string, err error) (*models.AnalysisResult, []State, error) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.AnalysesTotal.WithLabelValues(metrics.OutcomeCancelled).Inc()
			span.SetStatus(codes.Error, "cancelled")
			logger.Info("analysis cancelled", zap.String("stage", stage), zap.Error(ctxErr))
			return nil, states, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
		}

		metrics.AnalysesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		span.SetStatus(codes.Error, stage+" failed")
		logger.Error("analysis failed",
			zap.String("stage", stage),
			zap.Strings("trace", stateNames(states)),
			zap.Error(err),
		)
		return models.FailedResult(analysisID), append(states, StateFailed), nil
	}

	logger.Info("analysis started",
		zap.String("tender", req.Tender.Filename),
		zap.String("response", req.Response.Filename),
	)

	// 1. Both documents are extracted concurrently.
	var tender, response *models.ExtractedText
	err := s.stage(ctx, stageExtract, func(ctx context.Context) error {
		var g errgroup.Group
		g.Go(func() error {
			var err error
			tender, err = s.extract(req.Tender)
			return err
		})
		g.Go(func() error {
			var err error
			response, err = s.extract(req.Response)
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return fail(stageExtract, err)
	}
	states = append(states, StateExtracted)
	tenderText := tender.FullText()

	// 2. Does the tender require an approved staffing company?
	var approval models.ApprovalRequirement
	err = s.stage(ctx, stageClassify, func(ctx context.Context) error {
		var err error
		approval, err = s.classifier.Classify(ctx, tenderText)
		return err
	})
	if err != nil {
		return fail(stageClassify, err)
	}
	states = append(states, StateClassified)

	// 3. The registry is only consulted when approval is required.
	var status *models.ApprovalStatus
	if approval == models.ApprovalRequired {
		err = s.stage(ctx, stageStatusLookup, func(ctx context.Context) error {
			approved, err := s.lookup.Lookup(ctx, req.CompanyName)
			if err != nil {
				var lookupErr *registry.LookupError
				if !errors.As(err, &lookupErr) {
					err = &registry.LookupError{Company: req.CompanyName, Err: err}
				}
				return err
			}
			status = &models.ApprovalStatus{CompanyName: req.CompanyName, Approved: approved}
			return nil
		})
		if err != nil {
			return fail(stageStatusLookup, err)
		}
		states = append(states, StateStatusChecked)
	} else {
		states = append(states, StateStatusSkipped)
	}

	// 4. Requirements.
	var reqs *models.RequirementSet
	err = s.stage(ctx, stageRequirements, func(ctx context.Context) error {
		var err error
		reqs, err = s.requirements.Extract(ctx, tenderText)
		return err
	})
	if err != nil {
		return fail(stageRequirements, err)
	}
	states = append(states, StateRequirementsExtracted)

	// 5. Evaluation runs even when no requirements were found.
	var analysis *models.QualificationAnalysis
	err = s.stage(ctx, stageEvaluate, func(ctx context.Context) error {
		var err error
		analysis, err = s.evaluator.Evaluate(ctx, req.CompanyName, reqs, response.FullText(), status)
		return err
	})
	if err != nil {
		return fail(stageEvaluate, err)
	}
	states = append(states, StateEvaluated)

	// 6. Assemble.
	if err := ctx.Err(); err != nil {
		return fail("assemble", err)
	}
	if reqs == nil {
		reqs = &models.RequirementSet{}
	}
	if analysis == nil {
		analysis = &models.QualificationAnalysis{}
	}
	result := assemble(analysisID, reqs, analysis, status)
	states = append(states, StateAssembled)

	metrics.AnalysesTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	span.SetAttributes(
		attribute.Bool("analysis.requires_approval", status != nil),
		attribute.Int("analysis.requirements", reqs.Len()),
	)
	logger.Info("analysis completed",
		zap.Bool("requires_approval", status != nil),
		zap.Int("requirements", reqs.Len()),
		zap.Int("verdicts", len(analysis.Verdicts)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return result, states, nil
}

// stage runs fn inside its own span and records its duration.
func (s *QualificationService) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "qualification."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.StageFailures.WithLabelValues(name).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// assemble builds the success result. companyStatus is set exactly when the
// approval branch ran.
func assemble(analysisID string, reqs *models.RequirementSet, analysis *models.QualificationAnalysis, status *models.ApprovalStatus) *models.AnalysisResult {
	requiresApproval := status != nil
	result := &models.AnalysisResult{
		AnalysisID:            analysisID,
		TenderRequirements:    reqs.String(),
		QualificationAnalysis: analysis.String(),
		Requirements:          reqs.Requirements,
		Verdicts:              analysis.Verdicts,
		RequiresApproval:      &requiresApproval,
		Success:               true,
	}
	if status != nil {
		approved := status.Approved
		result.CompanyStatus = &approved
	}
	return result
}

func stateNames(states []State) []string {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = string(st)
	}
	return names
}
