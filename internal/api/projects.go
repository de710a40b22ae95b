package api

import (
	"net/http"

	"deepsite_server/internal/project"

	"github.com/gin-gonic/gin"
)

func (h *APIHandler) ListProjects(c *gin.Context) {
	records, err := h.store.List()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *APIHandler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.store.Save(req.Name, req.HTML, req.PromptHistory)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.respondRecord(c, http.StatusCreated, id)
}

func (h *APIHandler) GetProject(c *gin.Context) {
	h.respondRecord(c, http.StatusOK, c.Param("id"))
}

func (h *APIHandler) UpdateProject(c *gin.Context) {
	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var opts []project.UpdateOption
	if req.HTML != nil {
		opts = append(opts, project.WithHTML(*req.HTML))
	}
	if req.PromptHistory != nil {
		opts = append(opts, project.WithPromptHistory(*req.PromptHistory))
	}

	id := c.Param("id")
	ok, err := h.store.Update(id, opts...)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		h.fail(c, project.ErrNotFound)
		return
	}
	h.respondRecord(c, http.StatusOK, id)
}

func (h *APIHandler) DeleteProject(c *gin.Context) {
	ok, err := h.store.Delete(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if !ok {
		h.fail(c, project.ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *APIHandler) respondRecord(c *gin.Context, status int, id string) {
	rec, err := h.store.Load(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(status, rec)
}
