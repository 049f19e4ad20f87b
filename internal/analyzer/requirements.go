package analyzer

import (
	"context"

	"go.uber.org/zap"

	"github.com/Capeo/SupplAI/internal/models"
	"github.com/Capeo/SupplAI/internal/utils"
)

// RequirementExtractor lists the qualification requirements of a tender.
type RequirementExtractor struct {
	generator Generator
	logger    *utils.Logger
}

func NewRequirementExtractor(generator Generator, logger *utils.Logger) *RequirementExtractor {
	return &RequirementExtractor{generator: generator, logger: logger}
}

func (e *RequirementExtractor) Extract(ctx context.Context, tenderText string) (*models.RequirementSet, error) {
	raw, err := invoke(ctx, e.generator, e.logger, StageRequirements, []Message{
		{Role: RoleSystem, Content: requirementsPrompt},
		{Role: RoleUser, Content: tenderText},
	})
	if err != nil {
		return nil, err
	}

	set, err := parseRequirements(raw)
	if err != nil {
		e.logger.Warn("requirement list did not parse",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, defaultMaxLogLength)),
		)
		return nil, err
	}

	mandatory := 0
	for _, r := range set.Requirements {
		if r.Mandatory {
			mandatory++
		}
	}
	e.logger.Debug("requirements extracted",
		zap.Int("count", set.Len()),
		zap.Int("mandatory", mandatory),
	)

	return set, nil
}
