package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ComplianceCriteria is the fixed criterion set for compliance scoring.
// Weight maps must cover exactly these keys.
var ComplianceCriteria = []string{
	"beneficiaryAlignment",
	"documentationQuality",
	"environmentalCompliance",
	"financialViability",
	"landAcquisition",
	"northEasternFocus",
}

// weightSumTolerance absorbs float drift when checking that weights sum to 1.
const weightSumTolerance = 0.001

type Project struct {
	ID                    string             `json:"id"`
	Name                  string             `json:"name"`
	State                 string             `json:"state,omitempty"`
	Scheme                string             `json:"scheme,omitempty"`
	Sector                string             `json:"sector,omitempty"`
	Weights               map[string]float64 `json:"weights,omitempty"`
	ComparisonResult      json.RawMessage    `json:"comparison_result,omitempty"`
	ComparisonGeneratedAt *time.Time         `json:"comparison_generated_at,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
}

// EffectiveWeights returns the project's custom weights, or the defaults
// when none were ever saved.
func (p *Project) EffectiveWeights() map[string]float64 {
	if len(p.Weights) == 0 {
		return DefaultWeights()
	}
	out := make(map[string]float64, len(p.Weights))
	for k, v := range p.Weights {
		out[k] = v
	}
	return out
}

func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"northEasternFocus":       0.25,
		"beneficiaryAlignment":    0.20,
		"environmentalCompliance": 0.20,
		"landAcquisition":         0.15,
		"documentationQuality":    0.10,
		"financialViability":      0.10,
	}
}

// ValidateWeights checks a weight map against the fixed criterion set:
// exactly the known keys, no negative values, sum within tolerance of 1.
func ValidateWeights(weights map[string]float64) error {
	var missing, extra []string
	for _, criterion := range ComplianceCriteria {
		if _, ok := weights[criterion]; !ok {
			missing = append(missing, criterion)
		}
	}
	known := make(map[string]bool, len(ComplianceCriteria))
	for _, criterion := range ComplianceCriteria {
		known[criterion] = true
	}
	for key := range weights {
		if !known[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	if len(missing) > 0 || len(extra) > 0 {
		return WrapError(ErrWeightValidation, "validate weights",
			fmt.Errorf("missing criteria [%s], unknown criteria [%s]",
				strings.Join(missing, ", "), strings.Join(extra, ", ")))
	}

	var sum float64
	for key, value := range weights {
		if value < 0 {
			return WrapError(ErrWeightValidation, "validate weights",
				fmt.Errorf("criterion %q has negative weight %v", key, value))
		}
		sum += value
	}
	if math.Abs(sum-1.0) > weightSumTolerance {
		return WrapError(ErrWeightValidation, "validate weights",
			fmt.Errorf("weights sum to %v, expected 1.0", sum))
	}
	return nil
}

// ValidateAgainstProject compares a document's extracted location and
// sector against the project it was filed under. Comparisons are
// case-insensitive; blank values on either side are not flagged.
func ValidateAgainstProject(result *AnalysisResult, project *Project) []ValidationFlag {
	var flags []ValidationFlag
	if result == nil || project == nil {
		return flags
	}
	if mismatch(result.State(), project.State) {
		flags = append(flags, ValidationFlag{
			Type:     "state_mismatch",
			Message:  fmt.Sprintf("document declares state %q, project expects %q", result.State(), project.State),
			Severity: "warning",
		})
	}
	if mismatch(result.Sector(), project.Sector) {
		flags = append(flags, ValidationFlag{
			Type:     "sector_mismatch",
			Message:  fmt.Sprintf("document declares sector %q, project expects %q", result.Sector(), project.Sector),
			Severity: "warning",
		})
	}
	return flags
}

func mismatch(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	return !strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want))
}

// RecalcReport summarizes one recalculation sweep over a project.
type RecalcReport struct {
	Updated   int      `json:"updated"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// WeightsUpdate reports a weight change and, when requested, the
// recalculation that followed it.
type WeightsUpdate struct {
	Weights      map[string]float64 `json:"weights"`
	Recalculated bool               `json:"recalculated"`
	Report       *RecalcReport      `json:"report,omitempty"`
}
