package api

import (
	"errors"
	"log/slog"
	"net/http"

	"deepsite_server/internal/deploy"
	"deepsite_server/internal/session"

	"github.com/gin-gonic/gin"
)

// session resolves :sid or writes a 404.
func (h *APIHandler) session(c *gin.Context) (*session.Session, bool) {
	s, ok := h.sessions.Get(c.Param("sid"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return s, true
}

func (h *APIHandler) CreateSession(c *gin.Context) {
	s := h.sessions.Create()
	h.logger.Info("session created", slog.String("session", s.ID()))
	c.JSON(http.StatusCreated, s.Snapshot())
}

func (h *APIHandler) GetSession(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *APIHandler) DeleteSession(c *gin.Context) {
	if !h.sessions.Delete(c.Param("sid")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) UpdateSettings(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req session.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.UpdateSettings(req); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

func (h *APIHandler) SetMarkup(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req MarkupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.SetMarkup(*req.HTML)
	c.JSON(http.StatusOK, s.Snapshot())
}

// Preview serves the current buffer as a page.
func (h *APIHandler) Preview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(s.HTML()))
}

func (h *APIHandler) Generate(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.generationContext(c)
	defer cancel()
	html, err := s.Generate(ctx, h.generator, req.Prompt)
	if errors.Is(err, session.ErrNoResult) {
		c.JSON(http.StatusBadGateway, gin.H{"error": s.Snapshot().LastError})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenerateResponse{HTML: html})
}

// GenerateStream relays fragments as "chunk" events and finishes with a
// "done" event carrying the full page, or an "error" event.
func (h *APIHandler) GenerateStream(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.generationContext(c)
	defer cancel()
	fragments, err := s.Stream(ctx, h.generator, req.Prompt)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for fragment := range fragments {
		c.SSEvent("chunk", gin.H{"content": fragment})
		c.Writer.Flush()
		if ctx.Err() != nil {
			break
		}
	}

	if st := s.Snapshot(); st.LastError != "" {
		c.SSEvent("error", gin.H{"error": st.LastError})
	} else {
		c.SSEvent("done", gin.H{"html": st.HTML})
	}
	c.Writer.Flush()
}

func (h *APIHandler) LoadProject(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := s.Load(h.store, req.ProjectID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// SaveProject stores the buffer as a new project when a name is given and
// otherwise writes it back to the current project.
func (h *APIHandler) SaveProject(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != "" {
		id, err := s.SaveAs(h.store, req.Name)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, SaveResponse{ProjectID: id})
		return
	}

	id, err := s.Save(h.store)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, SaveResponse{ProjectID: id})
}

func (h *APIHandler) Deploy(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var req DeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target, err := h.deployers.Get(req.Target)
	if err != nil {
		h.fail(c, err)
		return
	}

	dep, err := s.Deploy(c.Request.Context(), h.store, target, deploy.Request{
		ProjectName: req.ProjectName,
		Credential:  req.Credential,
		Destination: req.Destination,
	})
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dep)
}
