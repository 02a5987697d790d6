package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
	"github.com/wenwu/saas-platform/trialapp-service/internal/service"
	"github.com/wenwu/saas-platform/trialapp-service/internal/tree"
)

const (
	defaultViewDepth = 1
	maxViewDepth     = 3

	defaultLogLimit = 100
	maxLogLimit     = 1000
)

type Handler struct {
	trialService *service.TrialService
}

func NewHandler(trialService *service.TrialService) *Handler {
	return &Handler{trialService: trialService}
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidPath):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnsupportedOperation):
		return http.StatusNotImplemented
	case errors.Is(err, models.ErrProvisioningIncomplete), errors.Is(err, models.ErrMetadataUnavailable):
		return http.StatusConflict
	case errors.Is(err, models.ErrTransport), errors.Is(err, models.ErrParse):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

// currentTrial resolves the caller's trial app node, writing the error response if there is none
func (h *Handler) currentTrial(c *gin.Context) (*tree.TrialAppNode, bool) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return nil, false
	}

	node, err := h.trialService.Get(userID)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return node, true
}

func trialResponse(ctx context.Context, node *tree.TrialAppNode, depth int) models.TrialAppResponse {
	view, _ := tree.View(ctx, node, depth)
	meta := node.Metadata()

	resp := models.TrialAppResponse{
		Node:        view,
		State:       node.State(),
		SiteName:    meta.SiteName,
		MinutesLeft: meta.MinutesLeft(),
	}
	if sc := node.Session(); sc != nil {
		resp.DefaultHostURL = sc.DefaultHostURL()
		resp.ManagementURL, _ = sc.ManagementURL()
	}
	if err := node.LastRefreshError(); err != nil {
		resp.LastRefreshError = err.Error()
	}
	return resp
}

func viewDepth(c *gin.Context) int {
	depth, err := strconv.Atoi(c.DefaultQuery("depth", strconv.Itoa(defaultViewDepth)))
	if err != nil || depth < 0 {
		return defaultViewDepth
	}
	if depth > maxViewDepth {
		return maxViewDepth
	}
	return depth
}

func logLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLogLimit)))
	if err != nil || limit <= 0 {
		return defaultLogLimit
	}
	if limit > maxLogLimit {
		return maxLogLimit
	}
	return limit
}

// ==================== Trial App ====================

// AttachTrial attaches a trial session token to the current user
func (h *Handler) AttachTrial(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req models.AttachTrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	node, err := h.trialService.Attach(c.Request.Context(), userID, req.SessionToken)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, trialResponse(c.Request.Context(), node, viewDepth(c)))
}

// GetMyTrial renders the current user's trial app tree
func (h *Handler) GetMyTrial(c *gin.Context) {
	node, ok := h.currentTrial(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, trialResponse(c.Request.Context(), node, viewDepth(c)))
}

// DetachTrial forgets the current user's trial session
func (h *Handler) DetachTrial(c *gin.Context) {
	if err := h.trialService.Detach(c.GetString("userID")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RefreshTrial refetches the trial metadata. On failure the last known
// state is returned next to the error.
func (h *Handler) RefreshTrial(c *gin.Context) {
	node, err := h.trialService.Refresh(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		_ = c.Error(err)
		body := gin.H{"error": err.Error()}
		if node != nil {
			body["trial"] = trialResponse(c.Request.Context(), node, viewDepth(c))
		}
		c.JSON(statusFor(err), body)
		return
	}
	c.JSON(http.StatusOK, trialResponse(c.Request.Context(), node, viewDepth(c)))
}

// BrowseTrial redirects to the public URL of the trial app
func (h *Handler) BrowseTrial(c *gin.Context) {
	node, ok := h.currentTrial(c)
	if !ok {
		return
	}
	err := node.BrowseWith(c.Request.Context(), tree.URLOpenerFunc(func(ctx context.Context, url string) error {
		c.Redirect(http.StatusFound, url)
		return nil
	}))
	if err != nil {
		abortWithError(c, err)
	}
}

// ==================== Management endpoint ====================

// GetSettings lists application settings
func (h *Handler) GetSettings(c *gin.Context) {
	node, ok := h.currentTrial(c)
	if !ok {
		return
	}
	settings, err := node.SettingsNode().List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SettingsResponse{Settings: settings})
}

// UpdateSettings replaces application settings, deleting missing keys
func (h *Handler) UpdateSettings(c *gin.Context) {
	node, ok := h.currentTrial(c)
	if !ok {
		return
	}

	var req models.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Settings == nil {
		req.Settings = map[string]string{}
	}

	settings, err := node.SettingsNode().Update(c.Request.Context(), req.Settings)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SettingsResponse{Settings: settings})
}

// ListDeployments lists deployments of the trial app
func (h *Handler) ListDeployments(c *gin.Context) {
	node, ok := h.currentTrial(c)
	if !ok {
		return
	}
	deployments, err := node.DeploymentsNode().List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deployments": deployments})
}

// GetDeploymentLog returns the log of one deployment
func (h *Handler) GetDeploymentLog(c *gin.Context) {
	node, ok := h.currentTrial(c)
	if !ok {
		return
	}
	entries, err := node.DeploymentsNode().Log(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// ListFiles lists a directory of the site, or returns a file's content with ?raw=true
func (h *Handler) ListFiles(c *gin.Context) {
	node, ok := h.currentTrial(c)
	if !ok {
		return
	}
	rel := strings.Trim(c.Param("path"), "/")
	files := node.FilesNode()

	p, err := files.Resolve(rel)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if c.Query("raw") == "true" {
		if p == files.Path() {
			abortWithError(c, fmt.Errorf("read file: %w", models.ErrInvalidPath))
			return
		}
		data, err := files.Read(c.Request.Context(), p)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/octet-stream", data)
		return
	}

	entries, err := files.List(c.Request.Context(), p)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": rel, "entries": entries})
}

// GetRecentLogs returns recent application log entries
func (h *Handler) GetRecentLogs(c *gin.Context) {
	node, ok := h.currentTrial(c)
	if !ok {
		return
	}
	limit := logLimit(c)

	entries, err := node.LogsNode().Recent(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
