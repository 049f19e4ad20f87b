package analyzer

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/Capeo/SupplAI/internal/models"
	"github.com/Capeo/SupplAI/internal/utils"
)

// affirmativeToken is the only answer that marks approval as required.
const affirmativeToken = "JA"

// Classifier decides whether a tender requires the vendor to be an approved
// staffing company. It owns the fragile JA/NEI token matching.
type Classifier struct {
	generator Generator
	logger    *utils.Logger
}

func NewClassifier(generator Generator, logger *utils.Logger) *Classifier {
	return &Classifier{generator: generator, logger: logger}
}

// Classify returns ApprovalRequired only when the model answer contains the
// exact, case-sensitive token "JA". Any other answer, including an empty or
// evasive one, is ApprovalNotRequired.
func (c *Classifier) Classify(ctx context.Context, tenderText string) (models.ApprovalRequirement, error) {
	raw, err := invoke(ctx, c.generator, c.logger, StageClassify, []Message{
		{Role: RoleSystem, Content: classifyPrompt},
		{Role: RoleUser, Content: tenderText},
	})
	if err != nil {
		return models.ApprovalNotRequired, err
	}

	result := parseApproval(raw)
	c.logger.Debug("approval requirement classified",
		zap.String("answer", utils.TruncateForLog(raw, 20)),
		zap.Stringer("result", result),
	)

	return result, nil
}

func parseApproval(raw string) models.ApprovalRequirement {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, token := range tokens {
		if token == affirmativeToken {
			return models.ApprovalRequired
		}
	}
	return models.ApprovalNotRequired
}
