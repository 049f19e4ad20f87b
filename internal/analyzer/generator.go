package analyzer

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Capeo/SupplAI/internal/utils"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options tune a single generation call.
type Options struct {
	Temperature float32
}

// Generator is the text-generation collaborator. Implementations return the
// generated text of the first candidate.
type Generator interface {
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)
	Model() string
}

// Pipeline stage names, shared by errors, logs and metrics.
const (
	StageClassify     = "classify"
	StageRequirements = "requirements"
	StageEvaluate     = "evaluate"
)

// GenerationError wraps any failure of the underlying generation call.
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: generation failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// SchemaParseError reports model output that does not fit the expected schema.
type SchemaParseError struct {
	Stage  string
	Reason string
	Raw    string
}

func (e *SchemaParseError) Error() string {
	return fmt.Sprintf("%s: unexpected model output: %s", e.Stage, e.Reason)
}

const defaultMaxLogLength = 200

// deterministic is the configuration used by every stage.
var deterministic = Options{Temperature: 0}

// invoke runs one generation call with request/response debug logging.
func invoke(ctx context.Context, g Generator, logger *utils.Logger, stage string, messages []Message) (string, error) {
	promptLength := 0
	for _, m := range messages {
		promptLength += utf8.RuneCountInString(m.Content)
	}

	logger.Debug("generate request",
		zap.String("stage", stage),
		zap.String("model", g.Model()),
		zap.Int("messages", len(messages)),
		zap.Int("prompt_length", promptLength),
	)

	start := time.Now()
	raw, err := g.Generate(ctx, messages, deterministic)
	if err != nil {
		return "", &GenerationError{Stage: stage, Err: err}
	}

	logger.Debug("generate response",
		zap.String("stage", stage),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, defaultMaxLogLength)),
	)

	return raw, nil
}
