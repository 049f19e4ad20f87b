package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is a raw uploaded or fetched file. It is consumed once by the
// extractor and never stored.
type Document struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ExtractedText holds page texts in document order.
type ExtractedText struct {
	Pages []string
}

// FullText joins the pages with a blank line between them.
func (t *ExtractedText) FullText() string {
	if t == nil {
		return ""
	}
	return strings.Join(t.Pages, "\n\n")
}

// AnalysisRequest is the input of a single qualification analysis.
type AnalysisRequest struct {
	Tender      Document
	Response    Document
	CompanyName string
}

// ApprovalRequirement is the classifier's answer to whether the tender
// requires the vendor to be an approved staffing company.
type ApprovalRequirement int

const (
	ApprovalNotRequired ApprovalRequirement = iota
	ApprovalRequired
)

func (a ApprovalRequirement) String() string {
	if a == ApprovalRequired {
		return "required"
	}
	return "not_required"
}

// ApprovalStatus is the outcome of the status lookup branch.
type ApprovalStatus struct {
	CompanyName string
	Approved    bool
}

type Requirement struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Mandatory bool   `json:"mandatory"`
}

// RequirementSet is the ordered list of tender requirements.
type RequirementSet struct {
	Requirements []Requirement `json:"requirements"`
}

func (s *RequirementSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Requirements)
}

// String renders the set as a numbered list. Mandatory requirements are
// marked with "(MÅ)".
func (s *RequirementSet) String() string {
	if s.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for i, r := range s.Requirements {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", r.ID, r.Text)
		if r.Mandatory {
			b.WriteString(" (MÅ)")
		}
	}
	return b.String()
}

// Verdict is the per-requirement classification produced by the evaluator.
type Verdict string

const (
	FullyMet     Verdict = "FullyMet"
	PartiallyMet Verdict = "PartiallyMet"
	NotMet       Verdict = "NotMet"
	NotAddressed Verdict = "NotAddressed"
)

// Verdicts lists every valid verdict in report order.
var Verdicts = []Verdict{FullyMet, PartiallyMet, NotMet, NotAddressed}

func (v Verdict) Valid() bool {
	for _, known := range Verdicts {
		if v == known {
			return true
		}
	}
	return false
}

// Label returns the Norwegian label used in rendered reports.
func (v Verdict) Label() string {
	switch v {
	case FullyMet:
		return "Fullt oppfylt"
	case PartiallyMet:
		return "Delvis oppfylt"
	case NotMet:
		return "Ikke oppfylt"
	case NotAddressed:
		return "Ikke adressert"
	default:
		return string(v)
	}
}

type VerdictRecord struct {
	RequirementID int      `json:"requirement_id"`
	Requirement   string   `json:"requirement"`
	Verdict       Verdict  `json:"verdict"`
	Justification string   `json:"justification"`
	Evidence      []string `json:"evidence,omitempty"`
}

// QualificationAnalysis is the evaluator output. Raw always holds the model
// text; Verdicts is empty when the output could not be parsed.
type QualificationAnalysis struct {
	Verdicts []VerdictRecord `json:"verdicts"`
	Summary  string          `json:"summary,omitempty"`
	Raw      string          `json:"-"`
}

func (q *QualificationAnalysis) String() string {
	if q == nil {
		return ""
	}
	if len(q.Verdicts) == 0 {
		return q.Raw
	}

	var b strings.Builder
	for i, v := range q.Verdicts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s\n   Vurdering: %s", v.RequirementID, v.Requirement, v.Verdict.Label())
		if v.Justification != "" {
			fmt.Fprintf(&b, "\n   Begrunnelse: %s", v.Justification)
		}
		for _, e := range v.Evidence {
			fmt.Fprintf(&b, "\n   - \"%s\"", e)
		}
	}
	if q.Summary != "" {
		b.WriteString("\n\nOppsummering: ")
		b.WriteString(q.Summary)
	}
	return b.String()
}

// AnalysisResult is the terminal artifact of the pipeline. Callers must check
// Success before trusting any other field.
type AnalysisResult struct {
	AnalysisID            string          `json:"analysisId,omitempty"`
	TenderRequirements    string          `json:"tenderRequirements"`
	QualificationAnalysis string          `json:"qualificationAnalysis"`
	Requirements          []Requirement   `json:"requirements,omitempty"`
	Verdicts              []VerdictRecord `json:"verdicts,omitempty"`
	RequiresApproval      *bool           `json:"requiresApproval,omitempty"`
	CompanyStatus         *bool           `json:"companyStatus,omitempty"`
	Success               bool            `json:"success"`
}

// FailedResult returns the degraded result used for any stage failure.
func FailedResult(analysisID string) *AnalysisResult {
	return &AnalysisResult{AnalysisID: analysisID, Success: false}
}

// JSON returns the serialized result as sent at the request boundary.
func (r *AnalysisResult) JSON() ([]byte, error) {
	return json.Marshal(r)
}
