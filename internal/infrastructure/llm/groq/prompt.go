package groq

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docflow/docflow/internal/core/domain"
)

func buildClassificationPrompt(docType domain.DocumentType, excerpt string) string {
	return fmt.Sprintf(`You are a document classification AI. Analyze the following %[1]s document and extract key information.

Document Content:
%[2]s

Extract the following in JSON format:
- confidence: (float 0-1) Confidence this is a valid %[1]s
- key_entities: List of important entities (names, dates, amounts, locations)
- document_category: Specific subcategory (e.g., "personal_loan", "business_loan", "mortgage")
- requires_review: (boolean) Does this need human review?
- completeness_score: (float 0-1) How complete is the information?

Return ONLY valid JSON, no markdown formatting.`, docType, excerpt)
}

func buildSummaryPrompt(docType domain.DocumentType, excerpt string, keyEntities []string) string {
	var entities strings.Builder
	for _, entity := range keyEntities {
		entities.WriteString("- ")
		entities.WriteString(entity)
		entities.WriteString("\n")
	}

	return fmt.Sprintf(`You are a financial document analyst. Create a concise, professional summary of this %s.

Document Content:
%s

Key Entities Already Identified:
%s
Provide a structured summary with:
1. **Overview** (2-3 sentences): What is this document about?
2. **Key Details**: Most important information (amounts, dates, parties involved)
3. **Action Items**: What decisions need to be made?
4. **Red Flags**: Any concerns or unusual items?

Keep the summary under 300 words. Use bullet points for clarity. Be professional and concise.`, docType, excerpt, entities.String())
}

func buildRiskPrompt(docType domain.DocumentType, summary string, cls domain.Classification) string {
	clsJSON, err := json.MarshalIndent(cls, "", "  ")
	if err != nil {
		clsJSON = []byte("{}")
	}

	const maxSummary = 1000
	if runes := []rune(summary); len(runes) > maxSummary {
		summary = string(runes[:maxSummary])
	}

	return fmt.Sprintf(`You are a risk assessment AI for %s documents. Analyze the following and assign a risk score.

Document Summary:
%s

Classification Info:
%s

Evaluate risk factors:
1. **Completeness**: Is all required information present? (0-25 points)
2. **Compliance**: Does it meet regulatory standards? (0-25 points)
3. **Financial Viability**: Are amounts/terms reasonable? (0-25 points)
4. **Red Flags**: Any suspicious or concerning items? (0-25 points)

Return ONLY a JSON object with this exact structure:
{
  "total_score": <0-100>,
  "risk_level": "low|medium|high|critical",
  "factors": {
    "completeness": <0-25>,
    "compliance": <0-25>,
    "financial_viability": <0-25>,
    "red_flags": <0-25>
  },
  "concerns": ["list of specific concerns"],
  "recommendations": ["list of recommendations"]
}

Higher score = HIGHER risk (0 = safe, 100 = dangerous). Return ONLY valid JSON.`, docType, summary, clsJSON)
}
