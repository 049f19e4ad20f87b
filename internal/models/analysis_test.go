package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractedText_FullText(t *testing.T) {
	var nilText *ExtractedText
	assert.Equal(t, "", nilText.FullText())

	text := &ExtractedText{Pages: []string{"Side 1", "", "Side 3"}}
	assert.Equal(t, "Side 1\n\n\n\nSide 3", text.FullText())
}

func TestRequirementSet_String(t *testing.T) {
	var nilSet *RequirementSet
	assert.Equal(t, 0, nilSet.Len())
	assert.Equal(t, "", nilSet.String())

	set := &RequirementSet{Requirements: []Requirement{
		{ID: 1, Text: "Skatteattest", Mandatory: true},
		{ID: 2, Text: "Referanseprosjekter"},
	}}
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, "1. Skatteattest (MÅ)\n2. Referanseprosjekter", set.String())
}

func TestVerdict(t *testing.T) {
	tests := []struct {
		verdict Verdict
		valid   bool
		label   string
	}{
		{FullyMet, true, "Fullt oppfylt"},
		{PartiallyMet, true, "Delvis oppfylt"},
		{NotMet, true, "Ikke oppfylt"},
		{NotAddressed, true, "Ikke adressert"},
		{Verdict("Maybe"), false, "Maybe"},
	}
	for _, tt := range tests {
		t.Run(string(tt.verdict), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.verdict.Valid())
			assert.Equal(t, tt.label, tt.verdict.Label())
		})
	}
}

func TestApprovalRequirement_String(t *testing.T) {
	assert.Equal(t, "required", ApprovalRequired.String())
	assert.Equal(t, "not_required", ApprovalNotRequired.String())
}

func TestQualificationAnalysis_String(t *testing.T) {
	t.Run("raw fallback", func(t *testing.T) {
		q := &QualificationAnalysis{Raw: "Ingen krav å vurdere."}
		assert.Equal(t, "Ingen krav å vurdere.", q.String())
	})

	t.Run("report", func(t *testing.T) {
		q := &QualificationAnalysis{
			Verdicts: []VerdictRecord{
				{RequirementID: 1, Requirement: "Skatteattest", Verdict: FullyMet, Justification: "Vedlagt", Evidence: []string{"Skatteattest er vedlagt."}},
				{RequirementID: 2, Requirement: "Referanser", Verdict: NotAddressed},
			},
			Summary: "Ett krav mangler.",
		}
		want := "1. Skatteattest\n   Vurdering: Fullt oppfylt\n   Begrunnelse: Vedlagt\n   - \"Skatteattest er vedlagt.\"" +
			"\n\n2. Referanser\n   Vurdering: Ikke adressert" +
			"\n\nOppsummering: Ett krav mangler."
		assert.Equal(t, want, q.String())
	})

	t.Run("nil", func(t *testing.T) {
		var q *QualificationAnalysis
		assert.Equal(t, "", q.String())
	})
}

func TestAnalysisResult_JSON(t *testing.T) {
	t.Run("degraded omits approval fields", func(t *testing.T) {
		body, err := FailedResult("a-1").JSON()
		require.NoError(t, err)
		assert.JSONEq(t, `{"analysisId":"a-1","tenderRequirements":"","qualificationAnalysis":"","success":false}`, string(body))
	})

	t.Run("approval not required keeps requiresApproval false", func(t *testing.T) {
		notRequired := false
		r := &AnalysisResult{TenderRequirements: "1. Krav", QualificationAnalysis: "ok", RequiresApproval: &notRequired, Success: true}
		body, err := r.JSON()
		require.NoError(t, err)

		var fields map[string]any
		require.NoError(t, json.Unmarshal(body, &fields))
		assert.Equal(t, false, fields["requiresApproval"])
		assert.NotContains(t, fields, "companyStatus")
	})

	t.Run("approval required carries companyStatus", func(t *testing.T) {
		required, approved := true, false
		r := &AnalysisResult{RequiresApproval: &required, CompanyStatus: &approved, Success: true}
		body, err := r.JSON()
		require.NoError(t, err)

		var fields map[string]any
		require.NoError(t, json.Unmarshal(body, &fields))
		assert.Equal(t, true, fields["requiresApproval"])
		assert.Equal(t, false, fields["companyStatus"])
	})
}
