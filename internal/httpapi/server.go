package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/arawak/tagsmith/internal/config"
	"github.com/arawak/tagsmith/internal/icons"
	"github.com/arawak/tagsmith/internal/metrics"
	"github.com/arawak/tagsmith/internal/store"
	"github.com/arawak/tagsmith/internal/swaggerui"
	"github.com/arawak/tagsmith/internal/tag"
)

const defaultPageSize = 100

// TagStore is the persistence the handlers need. *store.Store satisfies it.
type TagStore interface {
	Ping(ctx context.Context) error
	CreateTag(ctx context.Context, in store.TagCreate) (*store.Tag, error)
	GetTag(ctx context.Context, id int64) (*store.Tag, error)
	ListTags(ctx context.Context, prefix string, page, pageSize int) ([]store.Tag, int, error)
	SetTagIcon(ctx context.Context, id int64, iconPath string) (*store.Tag, error)
	SetTagStatus(ctx context.Context, id int64, status int) (*store.Tag, error)
}

// Invalidator drops cached icon tags after a tag changes.
type Invalidator interface {
	Invalidate()
}

type Deps struct {
	Store     TagStore
	Formatter *tag.Formatter
	Cache     Invalidator
	Icons     *icons.Manager
	APIKeys   *APIKeyStore
	Logger    *slog.Logger
}

type Server struct {
	cfg       *config.Config
	store     TagStore
	formatter *tag.Formatter
	cache     Invalidator
	icons     *icons.Manager
	apiKeys   *APIKeyStore
	logger    *slog.Logger
}

var (
	openapiOnce sync.Once
	openapiData []byte
	openapiErr  error
)

func loadOpenAPI() ([]byte, error) {
	openapiOnce.Do(func() {
		path := filepath.Clean("openapi.yaml")
		openapiData, openapiErr = os.ReadFile(path)
	})
	return openapiData, openapiErr
}

func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
	s := &Server{
		cfg:       cfg,
		store:     deps.Store,
		formatter: deps.Formatter,
		cache:     deps.Cache,
		icons:     deps.Icons,
		apiKeys:   deps.APIKeys,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(loggingMiddleware(logger))

	if len(cfg.CORSAllowedOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders:   []string{apiKeyHeader, "Content-Type", "Accept"},
			AllowCredentials: true,
		})
		r.Use(c.Handler)
	}

	r.Get("/healthz", s.GetHealthz)
	r.Get("/readyz", s.GetReadyz)
	if cfg.OpenAPIPath != "" {
		r.Get(cfg.OpenAPIPath, s.serveOpenAPI)
		if cfg.SwaggerUIPath != "" {
			r.Mount(cfg.SwaggerUIPath, swaggerui.Handler(cfg.SwaggerUIPath, cfg.OpenAPIPath))
		}
	}
	if cfg.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.MetricsPath, metrics.Handler())
	}

	wrapper := ServerInterfaceWrapper{Handler: s, ErrorHandlerFunc: func(w http.ResponseWriter, r *http.Request, err error) {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
	}}

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware())

		r.Group(func(r chi.Router) {
			r.Use(s.requirePermissions(PermCanFormat))
			r.Post("/api/tags/format", wrapper.FormatTags)
			r.Get("/api/tags/head", wrapper.HeadTags)
			r.Get("/api/tags/check", wrapper.CheckTags)
			r.Get("/api/tags", wrapper.ListTags)
			r.Get("/api/tags/{id}", wrapper.GetTag)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requirePermissions(PermCanManage))
			r.Post("/api/tags", wrapper.CreateTag)
			r.Patch("/api/tags/{id}", wrapper.UpdateTag)
			r.Put("/api/tags/{id}/icon", wrapper.UploadTagIcon)
		})
	})

	r.Get("/icons/{id}", wrapper.GetTagIcon)

	return r
}

func (s *Server) serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	data, err := loadOpenAPI()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "unable to load openapi.yaml", map[string]any{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) GetHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Health{Status: Ok})
}

func (s *Server) GetReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "database unreachable", map[string]any{"error": err.Error()})
		return
	}
	if err := s.icons.IsWritable(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "icon storage not writable", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, Health{Status: Ok})
}

func (s *Server) FormatTags(w http.ResponseWriter, r *http.Request) {
	var payload FormatRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}

	// Reserved words refuse the whole submission rather than a single tag.
	if s.formatter.ContainsReservedTags(payload.Tags) {
		metrics.FormatRequests.WithLabelValues(metrics.OutcomeReserved).Inc()
		writeError(w, http.StatusUnprocessableEntity, "reserved_tag", "tags contain a reserved word", nil)
		return
	}

	res, err := s.formatter.FormatDetailed(r.Context(), payload.Tags)
	if err != nil {
		metrics.FormatRequests.WithLabelValues(metrics.OutcomeError).Inc()
		s.writeFormatError(w, err)
		return
	}
	metrics.ObserveResult(res)
	s.logger.Debug("format", "input", payload.Tags, "tags", res.String(), "rejected", len(res.Rejected))

	writeJSON(w, http.StatusOK, toFormatResponse(res))
}

func (s *Server) HeadTags(w http.ResponseWriter, _ *http.Request, params HeadTagsParams) {
	writeJSON(w, http.StatusOK, HeadResponse{Tags: tag.UseHead(params.Tags, params.N)})
}

func (s *Server) CheckTags(w http.ResponseWriter, _ *http.Request, params CheckTagsParams) {
	writeJSON(w, http.StatusOK, CheckResponse{
		Reserved:    s.formatter.ContainsReservedTags(params.Text),
		Whitelisted: s.formatter.ContainsWhiteListTags(params.Text),
	})
}

func (s *Server) ListTags(w http.ResponseWriter, r *http.Request, params ListTagsParams) {
	page := derefInt(params.Page, 1)
	size := derefInt(params.PageSize, defaultPageSize)
	if page <= 0 || size <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "page and pageSize must be positive", nil)
		return
	}
	tags, total, err := s.store.ListTags(r.Context(), getStringPtr(params.Prefix), page, size)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to list tags", map[string]any{"error": err.Error()})
		return
	}
	resp := TagListResponse{Items: make([]Tag, 0, len(tags)), Page: page, PageSize: size, Total: total}
	for i := range tags {
		resp.Items = append(resp.Items, toAPITag(&tags[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateTag stores the canonical form of a title. The title has to survive
// formatting as exactly one tag.
func (s *Server) CreateTag(w http.ResponseWriter, r *http.Request) {
	var payload TagCreate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	if s.formatter.ContainsReservedTags(payload.Title) {
		writeError(w, http.StatusUnprocessableEntity, "reserved_tag", "title contains a reserved word", nil)
		return
	}
	res, err := s.formatter.FormatDetailed(r.Context(), payload.Title)
	if err != nil {
		s.writeFormatError(w, err)
		return
	}
	if len(res.Tags) != 1 {
		writeError(w, http.StatusUnprocessableEntity, "invalid_title", "title must format to exactly one tag",
			map[string]any{"tags": res.Tags, "rejected": toAPIRejections(res.Rejected)})
		return
	}

	created, err := s.store.CreateTag(r.Context(), store.TagCreate{
		Title:       res.Tags[0],
		Description: getStringPtr(payload.Description),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) && created != nil {
			writeJSON(w, http.StatusConflict, toAPITag(created))
			return
		}
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "duplicate", "tag already exists", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", "failed to persist tag", map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, toAPITag(created))
}

func (s *Server) GetTag(w http.ResponseWriter, r *http.Request, id TagId) {
	t, err := s.store.GetTag(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "tag not found")
		return
	}
	writeJSON(w, http.StatusOK, toAPITag(t))
}

func (s *Server) UpdateTag(w http.ResponseWriter, r *http.Request, id TagId) {
	var payload TagUpdate
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	if payload.Status == nil {
		writeError(w, http.StatusBadRequest, "bad_request", "status is required", nil)
		return
	}
	if *payload.Status != store.TagStatusValid && *payload.Status != store.TagStatusInvalid {
		writeError(w, http.StatusBadRequest, "bad_request", "unknown status", map[string]any{"status": *payload.Status})
		return
	}
	t, err := s.store.SetTagStatus(r.Context(), id, *payload.Status)
	if err != nil {
		writeStoreError(w, err, "tag not found")
		return
	}
	s.invalidate()
	writeJSON(w, http.StatusOK, toAPITag(t))
}

func (s *Server) UploadTagIcon(w http.ResponseWriter, r *http.Request, id TagId) {
	if _, err := s.store.GetTag(r.Context(), id); err != nil {
		writeStoreError(w, err, "tag not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxIconBytes+1024)
	if err := r.ParseMultipartForm(s.cfg.MaxIconBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to parse multipart", map[string]any{"error": err.Error()})
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "file is required", nil)
		return
	}
	defer file.Close()

	saved, err := s.icons.Save(r.Context(), file, s.cfg.MaxIconBytes, s.cfg.MaxIconPixels)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, icons.ErrTooLarge) || errors.Is(err, icons.ErrInvalidImage) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "upload_failed", err.Error(), nil)
		return
	}

	t, err := s.store.SetTagIcon(r.Context(), id, saved.Path)
	if err != nil {
		writeStoreError(w, err, "tag not found")
		return
	}
	s.invalidate()
	s.logger.Info("tag icon stored", "tag", t.Title, "sha256", saved.SHA256, "bytes", saved.Bytes)
	writeJSON(w, http.StatusOK, toAPITag(t))
}

func (s *Server) GetTagIcon(w http.ResponseWriter, r *http.Request, id TagId) {
	t, err := s.store.GetTag(r.Context(), id)
	if err != nil {
		writeStoreError(w, err, "tag not found")
		return
	}
	if !t.IsIconTag() {
		writeError(w, http.StatusNotFound, "not_found", "tag has no icon", nil)
		return
	}

	ext := filepath.Ext(t.IconPath)
	etag := "\"" + strings.TrimSuffix(filepath.Base(t.IconPath), ext) + "\""
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	file, err := s.icons.Open(t.IconPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "icon not found", nil)
		return
	}
	defer file.Close()

	mimeType := mime.TypeByExtension(strings.ToLower(ext))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if info, err := file.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, file)
}

func (s *Server) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

func (s *Server) writeFormatError(w http.ResponseWriter, err error) {
	if errors.Is(err, tag.ErrDictionaryUnavailable) {
		s.logger.Warn("icon tag dictionary unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "dictionary_unavailable", "icon tag dictionary unavailable", nil)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", "failed to format tags", map[string]any{"error": err.Error()})
}

func toFormatResponse(res tag.Result) FormatResponse {
	items := res.Tags
	if items == nil {
		items = []string{}
	}
	return FormatResponse{Tags: res.String(), Items: items, Rejected: toAPIRejections(res.Rejected)}
}

func toAPIRejections(in []tag.Rejection) []Rejection {
	out := make([]Rejection, 0, len(in))
	for _, r := range in {
		out = append(out, Rejection{Title: r.Title, Reason: string(r.Reason)})
	}
	return out
}

func toAPITag(t *store.Tag) Tag {
	out := Tag{
		Id:             t.ID,
		Title:          t.Title,
		Uri:            t.URI,
		Description:    t.Description,
		ReferenceCount: t.ReferenceCount,
		Status:         t.Status,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	if t.IsIconTag() {
		u := "/icons/" + strconv.FormatInt(t.ID, 10)
		out.IconUrl = &u
	}
	return out
}

func writeStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", notFound, nil)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", "storage error", map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	e := Error{Code: code, Message: message}
	if details != nil {
		e.Details = &details
	}
	writeJSON(w, status, e)
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start).String())
		})
	}
}

func getStringPtr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
