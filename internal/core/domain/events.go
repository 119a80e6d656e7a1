package domain

// Event topics. The router builds its dispatch table over these at startup.
const (
	TopicDocumentUploaded   = "document.uploaded"
	TopicDocumentClassified = "document.classified"
	TopicDocumentSummarized = "document.summarized"
	TopicDocumentReviewed   = "document.reviewed"
)

// DocumentUploaded is the root event. DocumentType is carried as the raw
// string: the Save stage owns validation against the enumerated set.
type DocumentUploaded struct {
	DocumentID   string `json:"document_id"`
	Filename     string `json:"filename"`
	DocumentType string `json:"document_type"`
	FilePath     string `json:"file_path,omitempty"`
	Content      string `json:"content,omitempty"`
	FileSize     int64  `json:"file_size,omitempty"`
	FileType     string `json:"file_type,omitempty"`
}

type DocumentClassified struct {
	DocumentID     string         `json:"document_id"`
	DocumentType   string         `json:"document_type"`
	Content        string         `json:"content,omitempty"`
	Classification Classification `json:"classification"`
}

type DocumentSummarized struct {
	DocumentID     string         `json:"document_id"`
	DocumentType   string         `json:"document_type"`
	Content        string         `json:"content,omitempty"`
	Classification Classification `json:"classification"`
	Summary        string         `json:"summary"`
}

// DocumentReviewed originates outside the pipeline, from a human review
// action.
type DocumentReviewed struct {
	DocumentID   string `json:"document_id"`
	Decision     string `json:"decision"`
	ReviewerName string `json:"reviewer_name,omitempty"`
	Comments     string `json:"comments,omitempty"`
	Status       string `json:"status"`
}
