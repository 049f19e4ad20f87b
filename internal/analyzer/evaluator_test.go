package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capeo/SupplAI/internal/models"
	"github.com/Capeo/SupplAI/internal/utils"
)

var testRequirements = &models.RequirementSet{Requirements: []models.Requirement{
	{ID: 1, Text: "Godkjent bemanningsforetak", Mandatory: true},
	{ID: 2, Text: "Referanser fra tilsvarende oppdrag"},
}}

func TestEvaluatorEvaluate(t *testing.T) {
	response := `{
  "verdicts": [
    {"requirement_id": 1, "requirement": "Godkjent bemanningsforetak", "verdict": "FullyMet", "justification": " Registrert ", "evidence": ["Vi er godkjent"]},
    {"requirement_id": 2, "verdict": "NotAddressed", "justification": "Ingen referanser"}
  ],
  "summary": "Delvis kvalifisert"
}`
	stub := &stubGenerator{responses: []string{response}}
	evaluator := NewEvaluator(stub, utils.NewNopLogger())

	analysis, err := evaluator.Evaluate(context.Background(), "Qwert AS", testRequirements, "tilbudstekst", nil)
	require.NoError(t, err)

	require.Len(t, analysis.Verdicts, 2)
	assert.Equal(t, models.VerdictRecord{
		RequirementID: 1,
		Requirement:   "Godkjent bemanningsforetak",
		Verdict:       models.FullyMet,
		Justification: "Registrert",
		Evidence:      []string{"Vi er godkjent"},
	}, analysis.Verdicts[0])
	assert.Equal(t, "Referanser fra tilsvarende oppdrag", analysis.Verdicts[1].Requirement, "requirement text filled from id")
	assert.Equal(t, "Delvis kvalifisert", analysis.Summary)
	assert.Equal(t, response, analysis.Raw)

	messages := stub.calls[0]
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].Content, "1. Godkjent bemanningsforetak (MÅ)")
	assert.Contains(t, messages[0].Content, "tilbudet fra Qwert AS")
	assert.NotContains(t, messages[0].Content, "som bemanningsforetak. Ta hensyn")
	assert.NotContains(t, messages[0].Content, "{{")
	assert.Equal(t, Message{Role: RoleUser, Content: "tilbudstekst"}, messages[1])
}

func TestEvaluatorApprovalNote(t *testing.T) {
	tests := []struct {
		name     string
		approval *models.ApprovalStatus
		expect   string
	}{
		{name: "approved", approval: &models.ApprovalStatus{CompanyName: "Qwert AS", Approved: true}, expect: "Selskapet er godkjent som bemanningsforetak"},
		{name: "not approved", approval: &models.ApprovalStatus{CompanyName: "Asdf AS"}, expect: "Selskapet er ikke godkjent som bemanningsforetak"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubGenerator{responses: []string{`{"verdicts":[]}`}}
			_, err := NewEvaluator(stub, utils.NewNopLogger()).Evaluate(context.Background(), tt.approval.CompanyName, testRequirements, "tilbud", tt.approval)
			require.NoError(t, err)
			assert.Contains(t, stub.calls[0][0].Content, tt.expect)
		})
	}
}

func TestEvaluatorEmptyRequirementsKeepsRawOutput(t *testing.T) {
	stub := &stubGenerator{responses: []string{"Ingen krav å vurdere."}}
	empty := &models.RequirementSet{}

	analysis, err := NewEvaluator(stub, utils.NewNopLogger()).Evaluate(context.Background(), "Qwert AS", empty, "tilbud", nil)
	require.NoError(t, err)
	assert.Empty(t, analysis.Verdicts)
	assert.Equal(t, "Ingen krav å vurdere.", analysis.String())
	assert.Contains(t, stub.calls[0][0].Content, noRequirementsPlaceholder)
}

func TestEvaluatorEmptyRequirementsKeepsAnyShape(t *testing.T) {
	for _, response := range []string{"[]", `{"analyse":"Tilbudet er komplett."}`, `{"verdicts":[{"requirement_id":1,"verdict":"FullyMet"}]}`} {
		stub := &stubGenerator{responses: []string{response}}

		analysis, err := NewEvaluator(stub, utils.NewNopLogger()).Evaluate(context.Background(), "Qwert AS", &models.RequirementSet{}, "tilbud", nil)
		require.NoError(t, err, "response %q", response)
		assert.Empty(t, analysis.Verdicts)
		assert.Equal(t, response, analysis.String())
	}
}

func TestEvaluatorFillsMissingVerdicts(t *testing.T) {
	reqs := &models.RequirementSet{Requirements: []models.Requirement{
		{ID: 1, Text: "Godkjent bemanningsforetak", Mandatory: true},
		{ID: 2, Text: "Referanser fra tilsvarende oppdrag"},
		{ID: 3, Text: "Skatteattest", Mandatory: true},
	}}
	response := `{"verdicts":[
  {"requirement_id":3,"verdict":"NotMet","justification":"Mangler"},
  {"requirement":"godkjent bemanningsforetak","verdict":"FullyMet"}
]}`
	stub := &stubGenerator{responses: []string{response}}

	analysis, err := NewEvaluator(stub, utils.NewNopLogger()).Evaluate(context.Background(), "Qwert AS", reqs, "tilbud", nil)
	require.NoError(t, err)

	assert.Equal(t, []models.VerdictRecord{
		{RequirementID: 1, Requirement: "Godkjent bemanningsforetak", Verdict: models.FullyMet},
		{RequirementID: 2, Requirement: "Referanser fra tilsvarende oppdrag", Verdict: models.NotAddressed, Justification: notAddressedJustification},
		{RequirementID: 3, Requirement: "Skatteattest", Verdict: models.NotMet, Justification: "Mangler"},
	}, analysis.Verdicts)
}

func TestEvaluatorJSONAfterPreamble(t *testing.T) {
	response := "Her er vurderingen:\n```json\n{\"verdicts\":[{\"requirement_id\":1,\"verdict\":\"FullyMet\"},{\"requirement_id\":2,\"verdict\":\"PartiallyMet\"}]}\n```\nTa kontakt ved spørsmål."
	stub := &stubGenerator{responses: []string{response}}

	analysis, err := NewEvaluator(stub, utils.NewNopLogger()).Evaluate(context.Background(), "Qwert AS", testRequirements, "tilbud", nil)
	require.NoError(t, err)
	require.Len(t, analysis.Verdicts, 2)
	assert.Equal(t, models.FullyMet, analysis.Verdicts[0].Verdict)
	assert.Equal(t, models.PartiallyMet, analysis.Verdicts[1].Verdict)
}

func TestEvaluatorSchemaErrors(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "prose with requirements present", response: "Tilbudet ser bra ut."},
		{name: "unknown verdict", response: `{"verdicts":[{"requirement_id":1,"verdict":"Oppfylt"}]}`},
		{name: "missing verdicts", response: `{"summary":"ok"}`},
		{name: "unknown requirement id", response: `{"verdicts":[{"requirement_id":9,"verdict":"NotMet"}]}`},
		{name: "unknown requirement text", response: `{"verdicts":[{"requirement":"ISO 14001","verdict":"NotMet"}]}`},
		{name: "repeated requirement id", response: `{"verdicts":[{"requirement_id":1,"verdict":"FullyMet"},{"requirement_id":1,"verdict":"NotMet"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubGenerator{responses: []string{tt.response}}
			analysis, err := NewEvaluator(stub, utils.NewNopLogger()).Evaluate(context.Background(), "Qwert AS", testRequirements, "tilbud", nil)
			assert.Nil(t, analysis)

			var schemaErr *SchemaParseError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, StageEvaluate, schemaErr.Stage)
		})
	}
}

func TestEvaluatorGenerationError(t *testing.T) {
	stub := &stubGenerator{err: errors.New("connection reset")}
	_, err := NewEvaluator(stub, utils.NewNopLogger()).Evaluate(context.Background(), "Qwert AS", testRequirements, "tilbud", nil)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, StageEvaluate, genErr.Stage)
}
