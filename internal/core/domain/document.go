package domain

import (
	"fmt"
	"strings"
	"time"
)

type DocumentType string

const (
	TypeLoanApplication  DocumentType = "loan_application"
	TypeLegalContract    DocumentType = "legal_contract"
	TypeGrantApplication DocumentType = "grant_application"
	TypeInsuranceClaim   DocumentType = "insurance_claim"
)

// ParseDocumentType accepts labels case-insensitively and round-trips the
// canonical lowercase form.
func ParseDocumentType(raw string) (DocumentType, error) {
	switch DocumentType(strings.ToLower(strings.TrimSpace(raw))) {
	case TypeLoanApplication:
		return TypeLoanApplication, nil
	case TypeLegalContract:
		return TypeLegalContract, nil
	case TypeGrantApplication:
		return TypeGrantApplication, nil
	case TypeInsuranceClaim:
		return TypeInsuranceClaim, nil
	default:
		return "", WrapError(ErrInvalidDocumentType, "parse document type", fmt.Errorf("unknown document type %q", raw))
	}
}

func (t DocumentType) String() string { return string(t) }

type DocumentStatus string

const (
	StatusUploaded      DocumentStatus = "uploaded"
	StatusProcessing    DocumentStatus = "processing"
	StatusPendingReview DocumentStatus = "pending_review"
	StatusApproved      DocumentStatus = "approved"
	StatusRejected      DocumentStatus = "rejected"
	StatusFailed        DocumentStatus = "failed"
)

func ParseDocumentStatus(raw string) (DocumentStatus, error) {
	switch DocumentStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusUploaded:
		return StatusUploaded, nil
	case StatusProcessing:
		return StatusProcessing, nil
	case StatusPendingReview:
		return StatusPendingReview, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	case StatusFailed:
		return StatusFailed, nil
	default:
		return "", WrapError(ErrInvalidDocumentStatus, "parse document status", fmt.Errorf("unknown status %q", raw))
	}
}

func (s DocumentStatus) String() string { return string(s) }

// Rank orders statuses along the lifecycle. Stage writes never move a
// document to a lower rank.
func (s DocumentStatus) Rank() int {
	switch s {
	case StatusUploaded:
		return 1
	case StatusProcessing:
		return 2
	case StatusPendingReview:
		return 3
	case StatusApproved, StatusRejected:
		return 4
	case StatusFailed:
		return 5
	default:
		return 0
	}
}

type Document struct {
	DocumentID   string         `json:"document_id"`
	Filename     string         `json:"filename"`
	DocumentType DocumentType   `json:"document_type"`
	Status       DocumentStatus `json:"status"`
	FilePath     string         `json:"file_path"`
	FileSize     int64          `json:"file_size,omitempty"`
	FileType     string         `json:"file_type,omitempty"`

	ExtractedText  string   `json:"extracted_text,omitempty"`
	AISummary      string   `json:"ai_summary,omitempty"`
	RiskScore      *float64 `json:"risk_score,omitempty"`
	Classification string   `json:"classification,omitempty"`

	ReviewerID       string `json:"reviewer_id,omitempty"`
	ReviewerComments string `json:"reviewer_comments,omitempty"`

	UploadedAt  time.Time  `json:"uploaded_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
}

// DocumentSummary is the public listing projection. Internal artifacts
// (extracted text, raw classification) are deliberately absent.
type DocumentSummary struct {
	DocumentID   string         `json:"document_id"`
	Filename     string         `json:"filename"`
	DocumentType DocumentType   `json:"document_type"`
	Status       DocumentStatus `json:"status"`
	RiskScore    *float64       `json:"risk_score"`
	UploadedAt   time.Time      `json:"uploaded_at"`
}

type Classification struct {
	Confidence        float64  `json:"confidence"`
	KeyEntities       []string `json:"key_entities"`
	DocumentCategory  string   `json:"document_category"`
	RequiresReview    bool     `json:"requires_review"`
	CompletenessScore float64  `json:"completeness_score"`
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type RiskFactors struct {
	Completeness       float64 `json:"completeness"`
	Compliance         float64 `json:"compliance"`
	FinancialViability float64 `json:"financial_viability"`
	RedFlags           float64 `json:"red_flags"`
}

type RiskAssessment struct {
	TotalScore      float64     `json:"total_score"`
	RiskLevel       RiskLevel   `json:"risk_level"`
	Factors         RiskFactors `json:"factors"`
	Concerns        []string    `json:"concerns"`
	Recommendations []string    `json:"recommendations"`
}

// NeutralRiskAssessment is the terminal-stage fallback used when automated
// scoring fails, so every document still reaches a routing decision.
func NeutralRiskAssessment() RiskAssessment {
	return RiskAssessment{
		TotalScore: 50,
		RiskLevel:  RiskMedium,
		Factors: RiskFactors{
			Completeness:       12,
			Compliance:         12,
			FinancialViability: 13,
			RedFlags:           13,
		},
		Concerns:        []string{"Automated scoring failed"},
		Recommendations: []string{"Manual review required"},
	}
}
