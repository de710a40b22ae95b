package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"deepsite_server/internal/deploy"
	"deepsite_server/internal/project"
	"deepsite_server/internal/session"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Generator is the AI client as seen by the handlers.
type Generator interface {
	session.Generator
	Ping(ctx context.Context, apiKey string) (int, error)
}

// ProjectStore is the project persistence used by the handlers.
type ProjectStore interface {
	session.Store
	Delete(id string) (bool, error)
	List() ([]project.Record, error)
}

// APIHandler holds dependencies for API endpoints.
type APIHandler struct {
	generator  Generator
	store      ProjectStore
	sessions   *session.Manager
	deployers  *deploy.Registry
	broker     *Broker
	defaultKey string
	timeout    time.Duration
	logger     *slog.Logger
}

// Deps groups the handler dependencies.
type Deps struct {
	Generator         Generator
	Store             ProjectStore
	Sessions          *session.Manager
	Deployers         *deploy.Registry
	Broker            *Broker
	DefaultAPIKey     string        // used by /health/upstream without a session
	GenerationTimeout time.Duration // zero means no limit
	Logger            *slog.Logger
}

// NewAPIHandler initializes a new API handler with its dependencies.
func NewAPIHandler(d Deps) *APIHandler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Broker == nil {
		d.Broker = NewBroker()
	}
	return &APIHandler{
		generator:  d.Generator,
		store:      d.Store,
		sessions:   d.Sessions,
		deployers:  d.Deployers,
		broker:     d.Broker,
		defaultKey: d.DefaultAPIKey,
		timeout:    d.GenerationTimeout,
		logger:     d.Logger,
	}
}

// --- Structs for API Requests/Responses ---

type GenerateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

type GenerateResponse struct {
	HTML string `json:"html"`
}

type MarkupRequest struct {
	HTML *string `json:"html" binding:"required"`
}

type LoadRequest struct {
	ProjectID string `json:"projectId" binding:"required"`
}

type SaveRequest struct {
	Name string `json:"name"` // empty saves over the current project
}

type SaveResponse struct {
	ProjectID string `json:"projectId"`
}

type DeployRequest struct {
	Target      string `json:"target" binding:"required"`
	ProjectName string `json:"projectName" binding:"required"`
	Credential  string `json:"credential"`
	Destination string `json:"destination"`
}

type CreateProjectRequest struct {
	Name          string   `json:"name" binding:"required"`
	HTML          string   `json:"html"`
	PromptHistory []string `json:"promptHistory"`
}

type UpdateProjectRequest struct {
	HTML          *string   `json:"html"`
	PromptHistory *[]string `json:"promptHistory"`
}

// --- Error mapping ---

func statusFor(err error) int {
	var verr validation.Errors
	switch {
	case errors.As(err, &verr),
		errors.Is(err, session.ErrEmptyPrompt),
		errors.Is(err, session.ErrMissingAPIKey),
		errors.Is(err, session.ErrEmptyName),
		errors.Is(err, session.ErrNoCurrentProject),
		errors.Is(err, deploy.ErrUnknownTarget),
		errors.Is(err, deploy.ErrMissingCredential):
		return http.StatusBadRequest
	case errors.Is(err, project.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrGenerationInProgress):
		return http.StatusConflict
	case errors.Is(err, session.ErrNoResult):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *APIHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *APIHandler) generationContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// --- Health ---

func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.sessions.Len()})
}

// UpstreamHealth pings the model provider with the key of ?session= or the
// configured default key.
func (h *APIHandler) UpstreamHealth(c *gin.Context) {
	key := h.defaultKey
	if sid := c.Query("session"); sid != "" {
		s, ok := h.sessions.Get(sid)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		key = s.APIKey()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()
	n, err := h.generator.Ping(ctx, key)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "models": n})
}
