// Package session holds the per-editor working state: the markup buffer,
// prompt history, credentials and preferences that every generation,
// project and deploy operation acts on.
package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"deepsite_server/internal/ai"
	"deepsite_server/internal/deploy"
	"deepsite_server/internal/metrics"
	"deepsite_server/internal/project"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

var (
	ErrEmptyPrompt          = errors.New("session: prompt is empty")
	ErrMissingAPIKey        = errors.New("session: " + ai.MsgMissingAPIKey)
	ErrGenerationInProgress = errors.New("session: a generation is already running")
	ErrNoResult             = errors.New("session: generation produced no result")
	ErrNoCurrentProject     = errors.New("session: no project is loaded")
	ErrEmptyName            = errors.New("session: project name is empty")
)

// MsgGenerationFailed is recorded when a generation fails without a more
// specific message.
const MsgGenerationFailed = "Failed to generate HTML with AI. Please check your API key and try again."

// Generator produces markup from a prompt.
type Generator interface {
	GenerateHTML(ctx context.Context, apiKey, userPrompt string, report ai.Reporter) (string, bool)
	StreamHTML(ctx context.Context, apiKey, userPrompt string, report ai.Reporter) iter.Seq[string]
}

// Store persists projects.
type Store interface {
	Save(name, html string, history []string) (string, error)
	Load(id string) (*project.Record, error)
	Update(id string, opts ...project.UpdateOption) (bool, error)
}

var Themes = []any{"vs-dark", "vs-light", "dark", "light"}

// Defaults seed a new session.
type Defaults struct {
	APIKey   string
	Theme    string
	FontSize int
	HTML     string
}

// Settings is a partial update of the session preferences. Nil fields are
// left untouched.
type Settings struct {
	APIKey   *string `json:"apiKey"`
	Theme    *string `json:"theme"`
	FontSize *int    `json:"fontSize"`
}

func (s Settings) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Theme, validation.NilOrNotEmpty, validation.In(Themes...)),
		validation.Field(&s.FontSize, validation.NilOrNotEmpty, validation.Min(10), validation.Max(20)),
	)
}

// State is a point-in-time view of a session. The API key itself is never
// included.
type State struct {
	ID             string   `json:"id"`
	HasAPIKey      bool     `json:"hasApiKey"`
	HTML           string   `json:"html"`
	PromptHistory  []string `json:"promptHistory"`
	Generating     bool     `json:"generating"`
	CurrentProject string   `json:"currentProject,omitempty"`
	Theme          string   `json:"theme"`
	FontSize       int      `json:"fontSize"`
	LastError      string   `json:"lastError,omitempty"`
}

// Session is safe for concurrent use. At most one generation runs at a time.
type Session struct {
	id     string
	logger *slog.Logger

	mu             sync.Mutex
	apiKey         string
	html           string
	history        []string
	generating     bool
	currentProject string
	theme          string
	fontSize       int
	lastError      string
}

// New creates a session, filling unset defaults with the built-in ones.
func New(d Defaults) *Session {
	if d.Theme == "" {
		d.Theme = "vs-dark"
	}
	if d.FontSize == 0 {
		d.FontSize = 14
	}
	if d.HTML == "" {
		d.HTML = WelcomeHTML
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		logger:   slog.Default().With(slog.String("session", id)),
		apiKey:   d.APIKey,
		html:     d.HTML,
		history:  []string{},
		theme:    d.Theme,
		fontSize: d.FontSize,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		ID:             s.id,
		HasAPIKey:      s.apiKey != "",
		HTML:           s.html,
		PromptHistory:  slices.Clone(s.history),
		Generating:     s.generating,
		CurrentProject: s.currentProject,
		Theme:          s.theme,
		FontSize:       s.fontSize,
		LastError:      s.lastError,
	}
}

// APIKey returns the key generations run with.
func (s *Session) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey
}

// HTML returns the current markup buffer.
func (s *Session) HTML() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.html
}

func (s *Session) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = strings.TrimSpace(key)
}

func (s *Session) UpdateSettings(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.APIKey != nil {
		s.apiKey = strings.TrimSpace(*settings.APIKey)
	}
	if settings.Theme != nil {
		s.theme = *settings.Theme
	}
	if settings.FontSize != nil {
		s.fontSize = *settings.FontSize
	}
	return nil
}

// SetMarkup replaces the buffer with a manual edit.
func (s *Session) SetMarkup(html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = html
}

// begin checks the generation preconditions, records the prompt and marks
// the session busy. It returns the key to generate with.
func (s *Session) begin(prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.apiKey == "" {
		return "", ErrMissingAPIKey
	}
	if s.generating {
		return "", ErrGenerationInProgress
	}
	s.history = append(s.history, prompt)
	s.generating = true
	s.lastError = ""
	return s.apiKey, nil
}

// finish clears the busy flag and applies the outcome.
func (s *Session) finish(html string, ok bool, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = false
	if ok {
		s.html = html
		return
	}
	if msg == "" {
		msg = MsgGenerationFailed
	}
	s.lastError = msg
}

// Generate runs one synchronous generation and replaces the buffer on
// success. A failure keeps the previous markup and returns ErrNoResult
// wrapped with the reported message.
func (s *Session) Generate(ctx context.Context, gen Generator, prompt string) (string, error) {
	key, err := s.begin(prompt)
	if err != nil {
		return "", err
	}

	var msg string
	html, ok := gen.GenerateHTML(ctx, key, prompt, ai.ReporterFunc(func(m string) { msg = m }))
	s.finish(html, ok, msg)
	if !ok {
		s.logger.Warn("generation failed", slog.String("error", msg))
		return "", fmt.Errorf("%w: %s", ErrNoResult, s.Snapshot().LastError)
	}
	s.logger.Info("generation completed", slog.Int("html_bytes", len(html)))
	return html, nil
}

// Stream starts a streamed generation. The returned sequence must be ranged
// over exactly once; the session stays busy until it ends. When the stream
// runs to completion with at least one fragment and nothing reported, the
// accumulated text becomes the new buffer. Otherwise the old buffer stays.
func (s *Session) Stream(ctx context.Context, gen Generator, prompt string) (iter.Seq[string], error) {
	key, err := s.begin(prompt)
	if err != nil {
		return nil, err
	}

	var msg string
	fragments := gen.StreamHTML(ctx, key, prompt, ai.ReporterFunc(func(m string) { msg = m }))

	var once sync.Once
	return func(yield func(string) bool) {
		var buf strings.Builder
		received, completed := false, false
		defer func() {
			once.Do(func() {
				switch {
				case received && completed && msg == "":
					s.finish(buf.String(), true, "")
				case received:
					s.finish("", false, ai.MsgInterrupted)
				default:
					s.finish("", false, msg)
				}
			})
		}()

		for fragment := range fragments {
			received = true
			buf.WriteString(fragment)
			if !yield(fragment) {
				return
			}
		}
		completed = true
	}, nil
}

// Load replaces the buffer and history with a stored project and makes it
// the current project.
func (s *Session) Load(store Store, id string) (*project.Record, error) {
	rec, err := store.Load(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = rec.HTMLContent
	s.history = slices.Clone(rec.PromptHistory)
	s.currentProject = rec.ID
	s.logger.Info("project loaded", slog.String("project", rec.ID))
	return rec, nil
}

// SaveAs stores the buffer as a new project which becomes current.
func (s *Session) SaveAs(store Store, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := store.Save(name, s.html, s.history)
	if err != nil {
		return "", err
	}
	s.currentProject = id
	return id, nil
}

// Save writes the buffer and history back to the current project.
func (s *Session) Save(store Store) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentProject == "" {
		return "", ErrNoCurrentProject
	}
	ok, err := store.Update(s.currentProject,
		project.WithHTML(s.html),
		project.WithPromptHistory(s.history))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", project.ErrNotFound, s.currentProject)
	}
	return s.currentProject, nil
}

// Deployment is the outcome of Deploy.
type Deployment struct {
	deploy.Result
	ProjectID string `json:"projectId"`
}

// Deploy publishes the buffer through target and, once that succeeds, saves
// it locally as a new project.
func (s *Session) Deploy(ctx context.Context, store Store, target deploy.Target, req deploy.Request) (Deployment, error) {
	state := s.Snapshot()
	req.HTML = state.HTML
	req.PromptHistory = state.PromptHistory

	res, err := target.Deploy(ctx, req)
	metrics.DeploymentsTotal.WithLabelValues(target.Name(), metrics.Status(err == nil)).Inc()
	if err != nil {
		s.logger.Warn("deployment failed", slog.String("target", target.Name()), slog.String("error", err.Error()))
		return Deployment{}, err
	}

	id, err := s.SaveAs(store, req.ProjectName)
	if err != nil {
		return Deployment{Result: res}, fmt.Errorf("deployed but local save failed: %w", err)
	}
	s.logger.Info("deployment completed",
		slog.String("target", target.Name()),
		slog.String("url", res.URL),
		slog.Bool("simulated", res.Simulated),
		slog.String("project", id))
	return Deployment{Result: res, ProjectID: id}, nil
}
