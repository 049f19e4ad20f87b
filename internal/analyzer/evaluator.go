package analyzer

import (
	"context"

	"go.uber.org/zap"

	"github.com/Capeo/SupplAI/internal/models"
	"github.com/Capeo/SupplAI/internal/utils"
)

// Evaluator scores a tender response against a requirement set.
type Evaluator struct {
	generator Generator
	logger    *utils.Logger
}

func NewEvaluator(generator Generator, logger *utils.Logger) *Evaluator {
	return &Evaluator{generator: generator, logger: logger}
}

// Evaluate runs even when reqs is empty. approval is nil when the approval
// branch was skipped.
func (e *Evaluator) Evaluate(ctx context.Context, company string, reqs *models.RequirementSet, responseText string, approval *models.ApprovalStatus) (*models.QualificationAnalysis, error) {
	raw, err := invoke(ctx, e.generator, e.logger, StageEvaluate, []Message{
		{Role: RoleSystem, Content: buildEvaluatePrompt(company, reqs, approval)},
		{Role: RoleUser, Content: responseText},
	})
	if err != nil {
		return nil, err
	}

	analysis, err := parseVerdicts(raw, reqs)
	if err != nil {
		e.logger.Warn("qualification analysis did not parse",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, defaultMaxLogLength)),
		)
		return nil, err
	}

	counts := make(map[models.Verdict]int, len(models.Verdicts))
	for _, v := range analysis.Verdicts {
		counts[v.Verdict]++
	}
	e.logger.Debug("response evaluated",
		zap.Int("verdicts", len(analysis.Verdicts)),
		zap.Int("fully_met", counts[models.FullyMet]),
		zap.Int("partially_met", counts[models.PartiallyMet]),
		zap.Int("not_met", counts[models.NotMet]),
		zap.Int("not_addressed", counts[models.NotAddressed]),
	)

	return analysis, nil
}
