package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/dpr-analyzer/internal/core/domain"
)

const extractionSystemPrompt = `You are an expert appraiser of Detailed Project Reports (DPRs) submitted to the Ministry of Development of North Eastern Region.`

const extractionPrompt = `Analyze the attached DPR and return a strict JSON object with exactly these keys:
projectName (string), projectLocation (object with state and district),
projectSector (string), executiveSummary (string), overallScore (number 0-100),
recommendation (string), financialAnalysis (object), riskAssessment (object),
mdonerComplianceScoring (object with overallComplianceScore and scoringBreakdown,
where scoringBreakdown maps northEasternFocus, beneficiaryAlignment,
environmentalCompliance, landAcquisition, documentationQuality and
financialViability each to an object with score, weight and justification).
No markdown, no commentary outside the JSON object.`

const chatSystemPrompt = `You answer questions about the attached DPR documents.
Ground every answer in the document content and say so when the documents do not cover the question.`

const comparisonSystemPrompt = `You compare Detailed Project Reports that were already analyzed.
Return strict JSON only.`

func buildComparisonPrompt(entries []domain.ComparisonEntry) (string, error) {
	var sb strings.Builder
	sb.WriteString(`Compare the following analyzed DPRs.
Return a strict JSON object with keys:
bestDocumentId (string), ranking (array of document ids, best first),
summary (string), perDocument (object keyed by document id with strengths and weaknesses arrays).

Documents:
`)
	for idx, entry := range entries {
		raw, err := json.Marshal(entry.Result)
		if err != nil {
			return "", fmt.Errorf("marshal comparison entry %s: %w", entry.DocumentID, err)
		}
		sb.WriteString(fmt.Sprintf("[%d] id=%s file=%s\n%s\n\n", idx+1, entry.DocumentID, entry.Filename, raw))
	}
	return sb.String(), nil
}
