package analyzer

import (
	_ "embed"
	"strings"

	"github.com/Capeo/SupplAI/internal/models"
)

//go:embed prompts/classify.md
var classifyPrompt string

//go:embed prompts/requirements.md
var requirementsPrompt string

//go:embed prompts/evaluate.md
var evaluatePrompt string

const noRequirementsPlaceholder = "(ingen krav ble identifisert i anbudsdokumentet)"

func buildEvaluatePrompt(company string, reqs *models.RequirementSet, approval *models.ApprovalStatus) string {
	requirements := reqs.String()
	if requirements == "" {
		requirements = noRequirementsPlaceholder
	}

	company = strings.TrimSpace(company)
	if company == "" {
		company = "leverandøren"
	}

	note := ""
	if approval != nil {
		status := "ikke godkjent"
		if approval.Approved {
			status = "godkjent"
		}
		note = "4. Merk: Selskapet er " + status + " som bemanningsforetak. Ta hensyn til dette ved vurdering av krav om godkjenning.\n"
	}

	prompt := strings.ReplaceAll(evaluatePrompt, "{{COMPANY}}", company)
	prompt = strings.ReplaceAll(prompt, "{{REQUIREMENTS}}", requirements)
	prompt = strings.ReplaceAll(prompt, "{{APPROVAL_NOTE}}", note)
	return prompt
}
