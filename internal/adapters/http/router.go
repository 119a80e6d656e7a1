package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/docflow/docflow/internal/core/domain"
	"github.com/docflow/docflow/internal/core/ports"
)

const textPreviewLimit = 200

type Router struct {
	uploadUC     ports.DocumentUploader
	reviewUC     ports.DocumentReviewer
	repo         ports.DocumentRepository
	logger       *slog.Logger
	defaultLimit int
}

func NewRouter(
	uploadUC ports.DocumentUploader,
	reviewUC ports.DocumentReviewer,
	repo ports.DocumentRepository,
	logger *slog.Logger,
	defaultLimit int,
) *Router {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &Router{
		uploadUC:     uploadUC,
		reviewUC:     reviewUC,
		repo:         repo,
		logger:       logger,
		defaultLimit: defaultLimit,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/api/v1/documents/upload", rt.uploadDocument)
	mux.HandleFunc("/api/v1/documents/pending-review", rt.pendingReviews)
	mux.HandleFunc("/api/v1/documents", rt.listDocuments)
	mux.HandleFunc("/api/v1/documents/", rt.documentByID)
	return rt.loggingMiddleware(mux)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	req, err := rt.parseUploadRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	doc, err := rt.uploadUC.Upload(r.Context(), req)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidDocumentType) || domain.IsKind(err, domain.ErrUnsupportedFileType) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"document_id": doc.DocumentID,
		"filename":    doc.Filename,
		"status":      doc.Status.String(),
		"message":     "Document uploaded successfully. Processing started.",
	})
}

func (rt *Router) parseUploadRequest(r *http.Request) (ports.UploadRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		file, fileHeader, err := r.FormFile("file")
		if err != nil {
			return ports.UploadRequest{}, errors.New(`multipart field "file" is required`)
		}
		docType := r.FormValue("document_type")
		if docType == "" {
			return ports.UploadRequest{}, errors.New("document_type is required")
		}
		fileType := r.FormValue("file_type")
		if fileType == "" {
			fileType = strings.TrimPrefix(strings.ToLower(pathExt(fileHeader.Filename)), ".")
		}
		return ports.UploadRequest{
			Filename:     fileHeader.Filename,
			DocumentType: docType,
			Payload:      file,
			FileSize:     fileHeader.Size,
			FileType:     fileType,
		}, nil
	}

	var body struct {
		Filename     string `json:"filename"`
		DocumentType string `json:"document_type"`
		Content      string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ports.UploadRequest{}, errors.New("invalid json")
	}
	if body.Filename == "" || body.DocumentType == "" {
		return ports.UploadRequest{}, errors.New("missing filename or document_type")
	}
	return ports.UploadRequest{
		Filename:     body.Filename,
		DocumentType: body.DocumentType,
		Content:      body.Content,
	}, nil
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	filter := ports.ListFilter{Limit: rt.defaultLimit}
	filtersApplied := map[string]string{}

	if rawStatus := r.URL.Query().Get("status"); rawStatus != "" {
		// Invalid status values drop the filter rather than failing the
		// request.
		if status, err := domain.ParseDocumentStatus(rawStatus); err == nil {
			filter.Status = &status
			filtersApplied["status"] = status.String()
		}
	}
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		if limit, err := strconv.Atoi(rawLimit); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}

	documents, err := rt.repo.List(r.Context(), filter)
	if err != nil {
		rt.logger.Error("list_documents_failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list documents"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents":       documents,
		"total":           len(documents),
		"filters_applied": filtersApplied,
	})
}

func (rt *Router) pendingReviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	docs, err := rt.repo.ListPendingReview(r.Context())
	if err != nil {
		rt.logger.Error("list_pending_failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get pending reviews"})
		return
	}

	views := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		views = append(views, map[string]any{
			"document_id":       doc.DocumentID,
			"filename":          doc.Filename,
			"document_type":     doc.DocumentType.String(),
			"risk_score":        doc.RiskScore,
			"ai_summary":        doc.AISummary,
			"reviewer_comments": doc.ReviewerComments,
			"uploaded_at":       doc.UploadedAt,
			"processed_at":      doc.ProcessedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": views,
		"total":     len(views),
	})
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/documents/")
	if rest == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	if id, ok := strings.CutSuffix(rest, "/review"); ok {
		rt.reviewDocument(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rt.getDocument(w, r, rest)
	case http.MethodDelete:
		rt.deleteDocument(w, r, rest)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := rt.repo.GetByID(r.Context(), id)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to retrieve document"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":       doc.DocumentID,
		"filename":          doc.Filename,
		"document_type":     doc.DocumentType.String(),
		"status":            doc.Status.String(),
		"extracted_text":    previewText(doc.ExtractedText),
		"ai_summary":        doc.AISummary,
		"risk_score":        doc.RiskScore,
		"uploaded_at":       doc.UploadedAt,
		"processed_at":      doc.ProcessedAt,
		"reviewer_comments": doc.ReviewerComments,
	})
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request, id string) {
	if err := rt.repo.Delete(r.Context(), id); err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete document"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "Document deleted successfully",
		"document_id": id,
	})
}

func (rt *Router) reviewDocument(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body struct {
		Decision     string `json:"decision"`
		ReviewerName string `json:"reviewer_name"`
		Comments     string `json:"comments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	doc, err := rt.reviewUC.Review(r.Context(), ports.ReviewRequest{
		DocumentID:   id,
		Decision:     body.Decision,
		ReviewerName: body.ReviewerName,
		Comments:     body.Comments,
	})
	if err != nil {
		switch {
		case domain.IsKind(err, domain.ErrDocumentNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found"})
		case domain.IsKind(err, domain.ErrInvalidDocumentStatus):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": `decision must be "approve" or "reject"`})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to review document"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"document_id": doc.DocumentID,
		"decision":    strings.ToLower(body.Decision),
		"message":     "Review recorded successfully",
	})
}

func previewText(text string) string {
	runes := []rune(text)
	if len(runes) <= textPreviewLimit {
		return text
	}
	return string(runes[:textPreviewLimit]) + "..."
}

func pathExt(name string) string {
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx:]
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (rt *Router) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt.logger.Info("http_request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
