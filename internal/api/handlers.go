package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"burn.note/config"
	"burn.note/internal/models"
	"burn.note/internal/service"
	"burn.note/web"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	msgContentRequired = "Content is required"
	msgInvalidBody     = "Invalid request body"
	msgNotFound        = "Secret not found or already viewed"
	msgInternal        = "Internal Server Error"

	// files above this get a hint about saving the link manually
	largeFileHint = 500_000
)

// SecretService is the part of service.Secrets the handlers use.
type SecretService interface {
	Create(ctx context.Context, content string, kind models.Kind, ttlSeconds int64) (string, error)
	Retrieve(ctx context.Context, id string) (*models.Secret, error)
}

type Handler struct {
	secrets SecretService
	config  *config.Config
	log     *zap.Logger
	pages   *template.Template
}

func NewHandler(s SecretService, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		secrets: s,
		config:  cfg,
		log:     log,
		pages:   web.Templates(),
	}
}

type CreateRequest struct {
	Content string      `json:"content"`
	Type    models.Kind `json:"type"`
	Expiry  int64       `json:"expiry,omitempty"`
}

type CreateResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type SecretResponse struct {
	ID      string      `json:"id"`
	Content string      `json:"content"`
	Type    models.Kind `json:"type"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateSecret(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize())

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// only an oversized file can reach the body cap
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.error(w, http.StatusRequestEntityTooLarge, h.fileTooLargeMessage())
			return
		}
		h.error(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	id, err := h.secrets.Create(r.Context(), req.Content, req.Type, req.Expiry)
	if err != nil {
		h.handleCreateError(w, r, err)
		return
	}

	h.json(w, http.StatusOK, CreateResponse{
		ID:  id,
		URL: h.viewURL(id),
	})
}

func (h *Handler) GetSecret(w http.ResponseWriter, r *http.Request) {
	secret, err := h.secrets.Retrieve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.error(w, http.StatusNotFound, msgNotFound)
			return
		}
		h.internalError(w, r, "retrieve secret failed", err)
		return
	}

	h.json(w, http.StatusOK, SecretResponse{
		ID:      secret.ID,
		Content: secret.Content,
		Type:    secret.Kind,
	})
}

type viewPage struct {
	Found    bool
	Kind     models.Kind
	Content  string
	File     *models.DataURI
	Preview  template.URL
	Download template.URL
	Large    bool
}

func (h *Handler) ViewSecret(w http.ResponseWriter, r *http.Request) {
	secret, err := h.secrets.Retrieve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			h.render(w, r, http.StatusNotFound, viewPage{})
			return
		}
		h.log.Error("view secret failed", zap.Error(err),
			zap.String("request_id", GetRequestID(r.Context())))
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}

	page := viewPage{Found: true, Kind: secret.Kind, Content: secret.Content}
	if secret.Kind == models.KindFile {
		if file, err := models.ParseDataURI(secret.Content); err == nil {
			page.File = file
			page.Large = len(secret.Content) > largeFileHint
			// only our own re-encoding reaches the page as a URL
			page.Download = template.URL(downloadURL(file))
			if file.IsImage() && file.MIMEType != "image/svg+xml" {
				page.Preview = template.URL((&models.DataURI{MIMEType: file.MIMEType, Data: file.Data}).String())
			}
		}
	}
	h.render(w, r, http.StatusOK, page)
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, "index.html")
}

func (h *Handler) serveFile(w http.ResponseWriter, filename string) {
	content, err := web.GetFile(filename)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	contentType := "text/html; charset=utf-8"
	w.Header().Set("Content-Type", contentType)
	w.Write(content)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page viewPage) {
	var buf strings.Builder
	if err := h.pages.ExecuteTemplate(&buf, "view", page); err != nil {
		h.log.Error("render view page failed", zap.Error(err),
			zap.String("request_id", GetRequestID(r.Context())))
		http.Error(w, msgInternal, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, ErrorResponse{Error: message})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.log.Error(msg, zap.Error(err), zap.String("request_id", GetRequestID(r.Context())))
	h.error(w, http.StatusInternalServerError, msgInternal)
}

func (h *Handler) handleCreateError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.Is(err, service.ErrContentRequired):
		h.error(w, http.StatusBadRequest, msgContentRequired)
	case errors.Is(err, service.ErrPayloadTooLarge):
		h.error(w, http.StatusRequestEntityTooLarge, h.fileTooLargeMessage())
	case errors.As(err, &verr):
		h.error(w, http.StatusBadRequest, capitalize(verr.Reason))
	default:
		h.internalError(w, r, "create secret failed", err)
	}
}

func (h *Handler) fileTooLargeMessage() string {
	return fmt.Sprintf("File too large (Max %s)", humanSize(h.config.Secrets.MaxFileSize))
}

func (h *Handler) viewURL(id string) string {
	return strings.TrimRight(h.config.Server.BaseURL, "/") + "/view/" + id
}

// maxBodySize leaves room for JSON escaping around the largest file.
func (h *Handler) maxBodySize() int64 {
	return int64(h.config.Secrets.MaxFileSize)*2 + 64<<10
}

// downloadURL strips the declared type so the browser saves rather than renders.
func downloadURL(file *models.DataURI) string {
	return (&models.DataURI{MIMEType: "application/octet-stream", Data: file.Data}).String()
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
