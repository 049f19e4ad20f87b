package analyzer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Capeo/SupplAI/internal/models"
)

var requirementsSchema = mustSchema(`{
  "type": "object",
  "required": ["requirements"],
  "properties": {
    "requirements": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text"],
        "properties": {
          "text": {"type": "string", "minLength": 1},
          "mandatory": {"type": "boolean"}
        }
      }
    }
  }
}`)

var verdictsSchema = mustSchema(`{
  "type": "object",
  "required": ["verdicts"],
  "properties": {
    "verdicts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["verdict"],
        "properties": {
          "requirement_id": {"type": "integer"},
          "requirement": {"type": "string"},
          "verdict": {"enum": ["FullyMet", "PartiallyMet", "NotMet", "NotAddressed"]},
          "justification": {"type": "string"},
          "evidence": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "summary": {"type": "string"}
  }
}`)

func mustSchema(source string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(source))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return schema
}

var listItemPattern = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+?)\s*$`)

// extractJSON returns the JSON payload of a model reply. A fenced block is
// preferred anywhere in the reply; otherwise the outermost object or array
// is cut out of surrounding prose when it parses on its own.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if start := strings.Index(raw, "```"); start != -1 {
		body := strings.TrimPrefix(raw[start+3:], "json")
		if end := strings.Index(body, "```"); end != -1 {
			body = body[:end]
		}
		body = strings.TrimSpace(body)
		if start == 0 || json.Valid([]byte(body)) {
			return body
		}
	}

	if raw == "" || raw[0] == '{' || raw[0] == '[' {
		return raw
	}
	start := strings.IndexAny(raw, "{[")
	if start == -1 {
		return raw
	}
	closer := "}"
	if raw[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(raw, closer); end > start {
		if candidate := raw[start : end+1]; json.Valid([]byte(candidate)) {
			return candidate
		}
	}
	return raw
}

func validateSchema(stage string, schema *gojsonschema.Schema, payload, raw string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return &SchemaParseError{Stage: stage, Reason: err.Error(), Raw: raw}
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return &SchemaParseError{Stage: stage, Reason: strings.Join(errs, "; "), Raw: raw}
	}

	return nil
}

// parseRequirements accepts the JSON schema output, a bare JSON array, or a
// markdown list. Empty output is an empty set.
func parseRequirements(raw string) (*models.RequirementSet, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return &models.RequirementSet{Requirements: []models.Requirement{}}, nil
	}

	if strings.HasPrefix(cleaned, "[") {
		cleaned = `{"requirements":` + cleaned + `}`
	}

	if !json.Valid([]byte(cleaned)) {
		items := parseListItems(raw)
		if len(items) == 0 {
			return nil, &SchemaParseError{Stage: StageRequirements, Reason: "output is neither JSON nor a list", Raw: raw}
		}
		return &models.RequirementSet{Requirements: items}, nil
	}

	if err := validateSchema(StageRequirements, requirementsSchema, cleaned, raw); err != nil {
		// A bracketed fragment inside a plain list, e.g. "- Krav [1]".
		if items := parseListItems(raw); len(items) > 0 {
			return &models.RequirementSet{Requirements: items}, nil
		}
		return nil, err
	}

	var payload struct {
		Requirements []struct {
			Text      string `json:"text"`
			Mandatory bool   `json:"mandatory"`
		} `json:"requirements"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, &SchemaParseError{Stage: StageRequirements, Reason: err.Error(), Raw: raw}
	}

	set := &models.RequirementSet{Requirements: make([]models.Requirement, 0, len(payload.Requirements))}
	for _, r := range payload.Requirements {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		set.Requirements = append(set.Requirements, models.Requirement{
			ID:        len(set.Requirements) + 1,
			Text:      text,
			Mandatory: r.Mandatory,
		})
	}

	return set, nil
}

func parseListItems(raw string) []models.Requirement {
	var items []models.Requirement
	for _, line := range strings.Split(raw, "\n") {
		m := listItemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		items = append(items, models.Requirement{
			ID:        len(items) + 1,
			Text:      strings.TrimSuffix(m[1], " (MÅ)"),
			Mandatory: looksMandatory(m[1]),
		})
	}
	return items
}

func looksMandatory(text string) bool {
	if strings.HasSuffix(text, "(MÅ)") {
		return true
	}
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) }) {
		if word == "må" || word == "skal" {
			return true
		}
	}
	return false
}

// notAddressedJustification is recorded for requirements the model skipped.
const notAddressedJustification = "Ikke vurdert i svaret fra modellen."

// parseVerdicts validates the evaluator output. With an empty requirement set
// the raw text is kept as the analysis whatever its shape. Otherwise every
// verdict must reference a known requirement at most once, and requirements
// without a verdict are recorded as NotAddressed. Verdicts follow the
// requirement order.
func parseVerdicts(raw string, reqs *models.RequirementSet) (*models.QualificationAnalysis, error) {
	if reqs.Len() == 0 {
		return &models.QualificationAnalysis{Verdicts: []models.VerdictRecord{}, Raw: raw}, nil
	}

	cleaned := extractJSON(raw)
	if !json.Valid([]byte(cleaned)) {
		return nil, &SchemaParseError{Stage: StageEvaluate, Reason: "output is not valid JSON", Raw: raw}
	}

	if err := validateSchema(StageEvaluate, verdictsSchema, cleaned, raw); err != nil {
		return nil, err
	}

	var analysis models.QualificationAnalysis
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, &SchemaParseError{Stage: StageEvaluate, Reason: err.Error(), Raw: raw}
	}

	byID := make(map[int]models.Requirement, reqs.Len())
	for _, r := range reqs.Requirements {
		byID[r.ID] = r
	}

	seen := make(map[int]models.VerdictRecord, len(analysis.Verdicts))
	for i, v := range analysis.Verdicts {
		req, ok := byID[v.RequirementID]
		if !ok && v.RequirementID == 0 {
			req, ok = requirementByText(reqs, v.Requirement)
		}
		if !ok {
			return nil, &SchemaParseError{
				Stage:  StageEvaluate,
				Reason: fmt.Sprintf("verdict %d references unknown requirement %d", i, v.RequirementID),
				Raw:    raw,
			}
		}
		if _, dup := seen[req.ID]; dup {
			return nil, &SchemaParseError{
				Stage:  StageEvaluate,
				Reason: fmt.Sprintf("verdict %d repeats requirement %d", i, req.ID),
				Raw:    raw,
			}
		}

		v.RequirementID = req.ID
		v.Requirement = req.Text
		v.Justification = strings.TrimSpace(v.Justification)
		seen[req.ID] = v
	}

	verdicts := make([]models.VerdictRecord, 0, reqs.Len())
	for _, r := range reqs.Requirements {
		v, ok := seen[r.ID]
		if !ok {
			v = models.VerdictRecord{
				RequirementID: r.ID,
				Requirement:   r.Text,
				Verdict:       models.NotAddressed,
				Justification: notAddressedJustification,
			}
		}
		verdicts = append(verdicts, v)
	}

	analysis.Verdicts = verdicts
	analysis.Summary = strings.TrimSpace(analysis.Summary)
	analysis.Raw = raw

	return &analysis, nil
}

func requirementByText(reqs *models.RequirementSet, text string) (models.Requirement, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Requirement{}, false
	}
	for _, r := range reqs.Requirements {
		if strings.EqualFold(r.Text, text) {
			return r, true
		}
	}
	return models.Requirement{}, false
}
