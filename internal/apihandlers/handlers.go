package apihandlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"scribe/internal/app"
	"scribe/internal/models"
	"scribe/internal/store"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type APIHandler struct {
	App *app.App
}

func NewAPIHandler(app *app.App) *APIHandler {
	return &APIHandler{App: app}
}

// GenerateArticleRequest represents the JSON body to submit a generation job
type GenerateArticleRequest struct {
	Title    string   `json:"title"`
	Outline  []string `json:"outline"`
	Keywords []string `json:"keywords"`
	Category string   `json:"category"`
}

// GenerateArticleResponse represents the JSON response after submission
type GenerateArticleResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// GenerateArticleHandler handles POST requests that submit a new
// generation job. The job and the article placeholder are created
// together; if the placeholder cannot be written the job is removed again
// so nothing half-submitted stays queued.
func (h *APIHandler) GenerateArticleHandler(c *gin.Context) {
	req, err := parseGenerateArticleRequest(c)
	if err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	data := models.JobData{
		Title:    req.Title,
		Outline:  req.Outline,
		Keywords: req.Keywords,
		Category: req.Category,
	}

	job, err := h.App.JobStore.Create(c.Request.Context(), "generate-article", data)
	if err != nil {
		Internal(c, fmt.Sprintf("GenerateArticleHandler: failed to enqueue job: %v", err))
		return
	}

	if err := h.App.ArticleStore.CreatePlaceholder(c.Request.Context(), job.ID, data); err != nil {
		if rerr := h.App.JobStore.Remove(c.Request.Context(), job.ID); rerr != nil {
			log.WithFields(log.Fields{"job_id": job.ID}).WithError(rerr).
				Error("failed to remove job after placeholder write failed")
		}
		Internal(c, fmt.Sprintf("GenerateArticleHandler: failed to create article record: %v", err))
		return
	}

	log.WithFields(log.Fields{"job_id": job.ID, "title": req.Title}).Info("generation job submitted")
	c.JSON(http.StatusCreated, GenerateArticleResponse{JobID: job.ID, Status: job.Status})
}

// parseGenerateArticleRequest parses and validates the submission body.
func parseGenerateArticleRequest(c *gin.Context) (GenerateArticleRequest, error) {
	var req GenerateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return req, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return req, fmt.Errorf("missing required field: title")
	}
	hasKeyword := false
	for _, k := range req.Keywords {
		if strings.TrimSpace(k) != "" {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return req, fmt.Errorf("at least one keyword is required")
	}
	return req, nil
}

// GetJobHandler handles GET requests for a single job's status view.
func (h *APIHandler) GetJobHandler(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		BadRequest(c, "Missing job ID")
		return
	}

	job, err := h.App.JobStore.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, fmt.Sprintf("Job not found with ID: %s", id))
		} else {
			Internal(c, fmt.Sprintf("GetJobHandler: failed to retrieve job: %v", err))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": job.StatusView()})
}

// UpdateJobRequest represents the JSON body for a partial job update.
// Absent fields keep their stored values.
type UpdateJobRequest struct {
	Status   *string           `json:"status"`
	Progress *int              `json:"progress"`
	Result   *models.JobResult `json:"result"`
	Error    *string           `json:"error"`
}

// UpdateJobHandler handles PATCH requests that merge updates into a job
// record. Legacy clients may still send status "error"; it is stored as
// "failed".
func (h *APIHandler) UpdateJobHandler(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		BadRequest(c, "Missing job ID")
		return
	}

	var req UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	current, err := h.App.JobStore.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, fmt.Sprintf("Job not found with ID: %s", id))
		} else {
			Internal(c, fmt.Sprintf("UpdateJobHandler: failed to retrieve job: %v", err))
		}
		return
	}

	status := current.Status
	if req.Status != nil {
		status = *req.Status
		if !models.ValidStatus(status) {
			BadRequest(c, fmt.Sprintf("Invalid status: %s", status))
			return
		}
	}
	progress := current.Progress
	if req.Progress != nil {
		if *req.Progress < 0 || *req.Progress > 100 {
			BadRequest(c, fmt.Sprintf("Invalid progress: %d", *req.Progress))
			return
		}
		progress = *req.Progress
	}
	// Fields the request does not mention are passed through as zero
	// values; the store's per-field merge preserves their stored state, so
	// a concurrent writer's result or error is never clobbered here.
	var result *models.JobResult
	if req.Result != nil {
		result = req.Result
	}
	var errMsg string
	if req.Error != nil {
		errMsg = *req.Error
	}

	updated, err := h.App.JobStore.UpdateStatus(c.Request.Context(), id, status, progress, result, errMsg)
	if err != nil {
		Internal(c, fmt.Sprintf("UpdateJobHandler: failed to update job: %v", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": updated.StatusView()})
}

// JobStatsHandler handles GET requests for queue-level counters.
func (h *APIHandler) JobStatsHandler(c *gin.Context) {
	ctx := c.Request.Context()

	pending, err := h.App.JobStore.PendingCount(ctx)
	if err != nil {
		Internal(c, fmt.Sprintf("JobStatsHandler: failed to count pending jobs: %v", err))
		return
	}
	completed, err := h.App.JobStore.CompletedCount(ctx)
	if err != nil {
		Internal(c, fmt.Sprintf("JobStatsHandler: failed to count completed jobs: %v", err))
		return
	}
	failed, err := h.App.JobStore.FailedCount(ctx)
	if err != nil {
		Internal(c, fmt.Sprintf("JobStatsHandler: failed to count failed jobs: %v", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pending":   pending,
		"completed": completed,
		"failed":    failed,
	})
}

// GetArticleHandler handles GET requests for a stored article record.
func (h *APIHandler) GetArticleHandler(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		BadRequest(c, "Missing article ID")
		return
	}

	article, err := h.App.ArticleStore.GetArticle(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, fmt.Sprintf("Article not found with ID: %s", id))
		} else {
			Internal(c, fmt.Sprintf("GetArticleHandler: failed to retrieve article: %v", err))
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": article})
}

// HealthHandler reports backing-store reachability.
func (h *APIHandler) HealthHandler(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.App.JobStore.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "redis": err.Error()})
		return
	}
	if h.App.ArticleStore != nil {
		if err := h.App.ArticleStore.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// RegisterRoutes mounts all API routes on the router.
func (h *APIHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.HealthHandler)

	api := r.Group("/api")
	{
		api.POST("/articles/generate", h.GenerateArticleHandler)
		api.GET("/articles/:id", h.GetArticleHandler)
		api.GET("/jobs", h.JobStatsHandler)
		api.GET("/jobs/:id", h.GetJobHandler)
		api.PATCH("/jobs/:id", h.UpdateJobHandler)
	}
}
