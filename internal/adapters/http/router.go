package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/document-qa/internal/config"
	"github.com/kirillkom/document-qa/internal/core/domain"
	"github.com/kirillkom/document-qa/internal/core/ports"
	"github.com/kirillkom/document-qa/internal/observability/metrics"
)

const (
	serviceName      = "api"
	defaultMaxUpload = 64 << 20
	multipartMemory  = 8 << 20
)

type Router struct {
	cfg        config.Config
	ingest     ports.DocumentIngestor
	documents  ports.DocumentManager
	summarizer ports.DocumentSummarizer
	query      ports.DocumentQueryService
	metrics    *metrics.HTTPServerMetrics
	spec       []byte
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	documents ports.DocumentManager,
	summarizer ports.DocumentSummarizer,
	query ports.DocumentQueryService,
) *Router {
	return &Router{
		cfg:        cfg,
		ingest:     ingest,
		documents:  documents,
		summarizer: summarizer,
		query:      query,
		spec:       openAPISpec,
	}
}

// WithMetrics enables Prometheus instrumentation and the /metrics endpoint.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.welcome)
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", rt.openAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /upload", rt.upload)
	mux.HandleFunc("POST /documents", rt.createDocument)
	mux.HandleFunc("GET /documents", rt.listDocuments)
	mux.HandleFunc("GET /documents/{id}", rt.getDocument)
	mux.HandleFunc("DELETE /documents/{id}", rt.deleteDocument)
	mux.HandleFunc("POST /documents/{id}/search", rt.searchDocument)
	mux.HandleFunc("POST /summarize", rt.summarize)
	mux.HandleFunc("GET /summary/{id}", rt.getSummary)
	mux.HandleFunc("POST /query", rt.queryDocument)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlightRequests, 100*time.Millisecond, rt.onBackpressure)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst, rt.onRateLimited)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return handler
}

func (rt *Router) welcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Document Summary API"})
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.spec)
}

type uploadResponse struct {
	DocumentID string                `json:"document_id"`
	Filename   string                `json:"filename"`
	Status     domain.DocumentStatus `json:"status"`
	Message    string                `json:"message"`
}

func (rt *Router) upload(w http.ResponseWriter, r *http.Request) {
	doc, ok := rt.receiveUpload(w, r)
	if !ok {
		return
	}

	switch doc.Status {
	case domain.StatusFailed:
		// The upload itself was accepted; any pipeline failure is a 500.
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			ErrorKind: kindOrInternal(doc.ErrorKind),
			Message:   "Error processing document: " + doc.Error,
		})
	case domain.StatusCompleted:
		writeJSON(w, http.StatusOK, uploadResponse{
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			Status:     doc.Status,
			Message:    "Document uploaded and processed successfully",
		})
	default:
		writeJSON(w, http.StatusAccepted, uploadResponse{
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			Status:     doc.Status,
			Message:    "Document uploaded; processing started",
		})
	}
}

func (rt *Router) createDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := rt.receiveUpload(w, r)
	if !ok {
		return
	}
	status := http.StatusAccepted
	if doc.Status.Terminal() {
		status = http.StatusOK
	}
	writeJSON(w, status, doc)
}

func (rt *Router) receiveUpload(w http.ResponseWriter, r *http.Request) (*domain.Document, bool) {
	maxBytes := rt.cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				ErrorKind: "invalid_input",
				Message:   "upload exceeds " + strconv.FormatInt(maxBytes, 10) + " bytes",
			})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorKind: "invalid_input", Message: "multipart field 'file' is required"})
		return nil, false
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorKind: "invalid_input", Message: "multipart field 'file' is required"})
		return nil, false
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(r.Context(), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return doc, true
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	filter := domain.ListFilter{
		Status: domain.DocumentStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{ErrorKind: "invalid_input", Message: "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}

	docs, err := rt.documents.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.documents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := rt.documents.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type searchResult struct {
	Text           string  `json:"text"`
	RelevanceScore float64 `json:"relevance_score"`
	PageNumber     *int    `json:"page_number,omitempty"`
	Position       string  `json:"position,omitempty"`
	ChunkIndex     int     `json:"chunk_index"`
}

func toSearchResults(chunks []domain.ScoredChunk) []searchResult {
	out := make([]searchResult, 0, len(chunks))
	for _, sc := range chunks {
		res := searchResult{
			Text:           sc.Chunk.Text,
			RelevanceScore: sc.Score,
			Position:       sc.Chunk.Position.Label(),
			ChunkIndex:     sc.Chunk.Index,
		}
		if page := sc.Chunk.Position.Page; page > 0 {
			res.PageNumber = &page
		}
		out = append(out, res)
	}
	return out
}

func (rt *Router) searchDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	started := time.Now()
	results, err := rt.query.Search(r.Context(), id, req.Query, req.TopK)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordRAG("search", len(results), time.Since(started))

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": id,
		"query":       req.Query,
		"results":     toSearchResults(results),
	})
}

func (rt *Router) summarize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID string `json:"document_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	rt.writeSummary(w, r, req.DocumentID)
}

func (rt *Router) getSummary(w http.ResponseWriter, r *http.Request) {
	rt.writeSummary(w, r, r.PathValue("id"))
}

func (rt *Router) writeSummary(w http.ResponseWriter, r *http.Request, documentID string) {
	if strings.TrimSpace(documentID) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorKind: "invalid_input", Message: "document_id is required"})
		return
	}

	started := time.Now()
	summary, err := rt.summarizer.Summarize(r.Context(), documentID)
	if rt.metrics != nil {
		rt.metrics.RecordSummary(serviceName, time.Since(started), err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"document_id": documentID,
		"summary":     summary,
	})
}

func (rt *Router) queryDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocumentID string `json:"document_id"`
		Query      string `json:"query"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.DocumentID) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorKind: "invalid_input", Message: "document_id is required"})
		return
	}

	started := time.Now()
	answer, err := rt.query.Answer(r.Context(), req.DocumentID, req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	rt.recordRAG("query", len(answer.Sources), time.Since(started))

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": req.DocumentID,
		"query":       req.Query,
		"answer":      answer.Text,
		"sources":     toSearchResults(answer.Sources),
	})
}

func (rt *Router) recordRAG(endpoint string, sources int, duration time.Duration) {
	if rt.metrics != nil {
		rt.metrics.RecordRAGObservation(serviceName, endpoint, sources, duration)
	}
}

func (rt *Router) onRateLimited() {
	if rt.metrics != nil {
		rt.metrics.RecordRateLimited(serviceName)
	}
}

func (rt *Router) onBackpressure() {
	if rt.metrics != nil {
		rt.metrics.RecordBackpressureRejected(serviceName)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{ErrorKind: "invalid_input", Message: "invalid json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
