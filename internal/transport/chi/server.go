// Package chi serves the search API over HTTP with a chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/domain"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/logger"
	"github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/match/rank"
	healthuc "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/usecase/health"
	ingestuc "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/usecase/ingest"
	searchuc "github.com/Supernova-PulsarAIGeorgia/semantic-search/internal/usecase/search"
)

const defaultMaxBodyBytes = 32 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// ImageReader serves stored image bytes.
type ImageReader interface {
	Get(ctx context.Context, id int64) (domain.StoredImage, error)
}

// Server holds the HTTP handlers.
type Server struct {
	search        *searchuc.Service
	ingest        *ingestuc.Service
	images        ImageReader
	health        *healthuc.Service
	logger        *zap.Logger
	maxBodyBytes  int64
	textThreshold float64
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. images may be nil when image
// storage is disabled.
func NewServer(
	search *searchuc.Service,
	ingest *ingestuc.Service,
	images ImageReader,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:       search,
		ingest:       ingest,
		images:       images,
		health:       health,
		logger:       logger,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrEncoding, http.StatusBadRequest, ErrorCodeEncodingFailed),
		sentinelHandler(domain.ErrFetch, http.StatusFailedDependency, ErrorCodeFetchFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
		sentinelHandler(domain.ErrOverloaded, http.StatusServiceUnavailable, ErrorCodeOverloaded),
	}
	return s
}

// WithMaxBodyBytes caps request bodies.
func (s *Server) WithMaxBodyBytes(n int64) *Server {
	if n > 0 {
		s.maxBodyBytes = n
	}
	return s
}

// WithTextThreshold sets the lexical threshold used when a search-text
// request does not send one.
func (s *Server) WithTextThreshold(t float64) *Server {
	s.textThreshold = t
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.Root)
	r.Post("/search-text", s.SearchText)
	r.Post("/add-text", s.AddText)
	r.Post("/images", s.AddImages)
	r.Get("/images/{id}", s.GetImage)
	r.Post("/search-image", s.SearchImage)
	r.Post("/encode-posts", s.EncodePosts)
	r.Post("/search-post", s.SearchPost)
	r.Get("/jobs/{id}", s.GetJob)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello World"})
}

// SearchText handles POST /search-text.
func (s *Server) SearchText(w http.ResponseWriter, r *http.Request) {
	params, err := bindSearchTextParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}
	req := SearchTextRequest{Threshold: s.textThreshold}
	if !s.decode(w, r, &req) {
		return
	}
	mode, err := searchuc.ParseMode(req.Mode)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	items, err := s.search.SearchText(ctx, searchuc.TextQuery{
		Query:     req.Text,
		TopK:      topK(params.TopK, req.TopK),
		Threshold: req.Threshold,
		Mode:      mode,
	})
	setEmbeddingHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := make([]TextResult, len(items))
	for i, it := range items {
		occ := make([]Occurrence, len(it.Payload.Occurrences))
		for j, span := range it.Payload.Occurrences {
			occ[j] = Occurrence{Similarity: span.Similarity, Start: span.Start, End: span.End, Word: span.Text}
		}
		out[i] = TextResult{ID: it.Payload.ID, Similarity: it.Similarity, Text: it.Payload.Text, Occurrences: occ}
	}
	writeJSON(w, http.StatusOK, out)
}

// AddText handles POST /add-text.
func (s *Server) AddText(w http.ResponseWriter, r *http.Request) {
	var req AddTextRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.ingest.SubmitTexts(r.Context(), req.Text)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.accepted(w, job, len(req.Text))
}

// AddImages handles POST /images. The body is either raw image bytes or
// a JSON object with image URLs.
func (s *Server) AddImages(w http.ResponseWriter, r *http.Request) {
	var sources []ingestuc.ImageSource

	if isJSON(r) {
		var req AddImagesRequest
		if !s.decode(w, r, &req) {
			return
		}
		for _, u := range req.URLs {
			sources = append(sources, ingestuc.ImageSource{URL: u})
		}
	} else {
		data, ok := s.readBody(w, r)
		if !ok {
			return
		}
		sources = []ingestuc.ImageSource{{Data: data, ContentType: r.Header.Get("Content-Type")}}
	}

	job, err := s.ingest.SubmitImages(r.Context(), sources)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.accepted(w, job, len(sources))
}

// GetImage handles GET /images/{id}.
func (s *Server) GetImage(w http.ResponseWriter, r *http.Request) {
	id, err := bindInt64Path(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}
	if s.images == nil {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, domain.ErrNotFound.Error())
		return
	}

	img, err := s.images.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Image)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Image)
}

// SearchImage handles POST /search-image. A JSON body names the query by
// url or stored id; any other body is the query image itself.
func (s *Server) SearchImage(w http.ResponseWriter, r *http.Request) {
	params, err := bindSearchImageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	q := searchuc.ImageQuery{TopK: topK(params.TopK, nil)}
	if params.Threshold != nil {
		q.Threshold = *params.Threshold
	}

	if isJSON(r) {
		var req SearchImageRequest
		if !s.decode(w, r, &req) {
			return
		}
		q.URL, q.ID = req.URL, req.ID
		q.TopK = topK(params.TopK, req.TopK)
		if params.Threshold == nil {
			q.Threshold = req.Threshold
		}
	} else {
		data, ok := s.readBody(w, r)
		if !ok {
			return
		}
		q.Image = data
	}

	items, err := s.search.SearchImage(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := make([]ImageResult, len(items))
	for i, it := range items {
		out[i] = ImageResult{
			ID:          it.Payload.ID,
			Similarity:  it.Similarity,
			ContentType: it.Payload.ContentType,
			Source:      it.Payload.Source,
			URL:         "/images/" + strconv.FormatInt(it.Payload.ID, 10),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// EncodePosts handles POST /encode-posts.
func (s *Server) EncodePosts(w http.ResponseWriter, r *http.Request) {
	var posts PostList
	if !s.decode(w, r, &posts) {
		return
	}

	inputs := make([]ingestuc.PostInput, len(posts))
	for i, p := range posts {
		inputs[i] = ingestuc.PostInput{PostID: p.PostID, PageID: p.PageID, Message: p.Message}
		if p.Attachment != nil {
			inputs[i].ImageURL = p.Attachment.Thumbnail
		}
	}

	job, err := s.ingest.SubmitPosts(r.Context(), inputs)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.accepted(w, job, len(inputs))
}

// SearchPost handles POST /search-post.
func (s *Server) SearchPost(w http.ResponseWriter, r *http.Request) {
	var req SearchPostRequest
	if !s.decode(w, r, &req) {
		return
	}

	items, err := s.search.SearchPost(r.Context(), searchuc.PostQuery{
		PostID:    req.Post.PostID,
		PageIDs:   req.PageIDs,
		TopK:      topK(nil, req.TopK),
		Threshold: req.Threshold,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := make([]PostResult, len(items))
	for i, it := range items {
		out[i] = PostResult{
			Similarity:        it.Similarity,
			MessageSimilarity: it.Payload.Scores.Message,
			ImageSimilarity:   it.Payload.Scores.Image,
			Message:           it.Payload.Message,
			PostID:            it.Payload.PostID,
			PageID:            it.Payload.PageID,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetJob handles GET /jobs/{id}.
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := bindStringPath(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}
	job, err := s.ingest.Job(id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobToResponse(job.Report()))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) accepted(w http.ResponseWriter, job *ingestuc.Job, n int) {
	w.Header().Set("Location", "/jobs/"+job.ID())
	writeJSON(w, http.StatusAccepted, JobAccepted{JobID: job.ID(), Items: n})
}

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodeBadRequest, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodeBadRequest, "request body too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "failed to read request body")
		return nil, false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "empty request body")
		return nil, false
	}
	return data, true
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}

// topK prefers the query parameter, then the body field, then Unbounded.
func topK(param, body *int) int {
	if param != nil {
		return *param
	}
	if body != nil {
		return *body
	}
	return rank.Unbounded
}

func jobToResponse(r ingestuc.Report) JobResponse {
	resp := JobResponse{
		JobID:       r.JobID,
		Kind:        string(r.Kind),
		State:       string(r.State),
		SubmittedAt: r.Submitted,
		Stored:      r.Count(ingestuc.StatusStored),
		Skipped:     r.Count(ingestuc.StatusSkipped),
		Failed:      r.Count(ingestuc.StatusFailed),
		Items:       make([]JobItem, len(r.Items)),
	}
	if !r.Finished.IsZero() {
		finished := r.Finished
		resp.FinishedAt = &finished
	}
	for i, it := range r.Items {
		item := JobItem{Index: it.Index, Key: it.Key, Status: string(it.Status)}
		if it.Status == ingestuc.StatusStored {
			id := it.ID
			item.ID = &id
		}
		if it.Err != nil {
			item.Error = safeDomainMessage(it.Err)
		}
		resp.Items[i] = item
	}
	return resp
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Calls > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrInvalidRequest,
		domain.ErrEncoding,
		domain.ErrFetch,
		domain.ErrComparatorMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrOverloaded,
		domain.ErrDuplicate,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func invalidParam(name string, err error) error {
	return fmt.Errorf("invalid format for parameter %s: %w", name, err)
}
