package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// requiredResultKeys is the structural contract for an extracted report.
// Extraction fails when any of these is absent from the model output.
var requiredResultKeys = []string{
	"projectName",
	"projectLocation",
	"projectSector",
	"executiveSummary",
	"overallScore",
	"recommendation",
	"financialAnalysis",
	"riskAssessment",
	"mdonerComplianceScoring",
}

// AnalysisResult holds the structured report extracted from one document.
// Fields beyond the required keys are preserved as-is; only compliance
// rescoring mutates the payload, and only its score-bearing fields.
type AnalysisResult struct {
	fields map[string]any
}

// ParseAnalysisResult validates model output against the required key set.
func ParseAnalysisResult(raw []byte) (*AnalysisResult, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, WrapError(ErrExtractionParse, "parse analysis result", err)
	}
	var missing []string
	for _, key := range requiredResultKeys {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, WrapError(ErrExtractionParse, "parse analysis result",
			fmt.Errorf("missing required keys: %s", strings.Join(missing, ", ")))
	}
	return &AnalysisResult{fields: fields}, nil
}

func (r *AnalysisResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.fields)
}

// UnmarshalJSON loads a persisted result without re-validating required
// keys; stored payloads were validated at extraction time.
func (r *AnalysisResult) UnmarshalJSON(raw []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	r.fields = fields
	return nil
}

func (r *AnalysisResult) ProjectName() string {
	s, _ := r.fields["projectName"].(string)
	return s
}

// State returns the declared state from projectLocation, if present.
func (r *AnalysisResult) State() string {
	loc, ok := r.fields["projectLocation"].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := loc["state"].(string)
	return s
}

func (r *AnalysisResult) Sector() string {
	s, _ := r.fields["projectSector"].(string)
	return s
}

func (r *AnalysisResult) OverallScore() (float64, bool) {
	v, ok := r.fields["overallScore"].(float64)
	return v, ok
}

// RescoreCompliance rewrites the per-criterion weights inside the
// compliance section and recomputes the weighted composite. Criteria
// absent from the breakdown contribute nothing and are reported back as
// missing; every other field of the result is left untouched. The
// composite is rounded to two decimal places.
func (r *AnalysisResult) RescoreCompliance(weights map[string]float64) (float64, []string) {
	compliance, ok := r.fields["mdonerComplianceScoring"].(map[string]any)
	if !ok {
		return 0, criterionNames(weights)
	}
	breakdown, ok := compliance["scoringBreakdown"].(map[string]any)
	if !ok {
		return 0, criterionNames(weights)
	}

	var composite float64
	var missing []string
	for _, criterion := range criterionNames(weights) {
		weight := weights[criterion]
		entry, ok := breakdown[criterion].(map[string]any)
		if !ok {
			missing = append(missing, criterion)
			continue
		}
		score, ok := entry["score"].(float64)
		if !ok {
			missing = append(missing, criterion)
			continue
		}
		entry["weight"] = weight
		composite += score * weight
	}

	composite = math.Round(composite*100) / 100
	compliance["overallComplianceScore"] = composite
	return composite, missing
}

func criterionNames(weights map[string]float64) []string {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
