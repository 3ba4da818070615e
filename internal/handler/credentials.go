package handler

import (
	"net/http"

	"volumedeck/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type credentialRequest struct {
	Platform        string `json:"platform" binding:"required"`
	APIKey          string `json:"api_key"`
	APISecret       string `json:"api_secret"`
	StarkAccount    string `json:"stark_account"`
	StarkPrivateKey string `json:"stark_private_key"`
}

// PutCredential godoc
// @Summary      Store exchange credentials
// @Description  Seals and stores API credentials for a platform. Key material is encrypted at rest and never returned by any endpoint.
// @Tags         credentials
// @Accept       json
// @Produce      json
// @Param        request  body  credentialRequest  true  "Credential fields"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/keys [post]
func (h *Handler) PutCredential(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.put-credential")
	defer span.End()

	if h.creds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credential storage is not configured"})
		return
	}

	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	platform := domain.PlatformID(req.Platform)
	if !platform.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":               "unsupported platform: " + req.Platform,
			"supported_platforms": domain.SupportedPlatforms,
		})
		return
	}
	span.SetAttributes(attribute.String("platform", req.Platform))

	if req.APIKey == "" && req.APISecret == "" && req.StarkAccount == "" && req.StarkPrivateKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one credential field is required"})
		return
	}

	err := h.creds.Put(ctx, domain.Credential{
		Platform:        platform,
		APIKey:          req.APIKey,
		APISecret:       req.APISecret,
		StarkAccount:    req.StarkAccount,
		StarkPrivateKey: req.StarkPrivateKey,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListCredentials godoc
// @Summary      List platforms with stored credentials
// @Description  Returns only platform names; stored key material is never exposed.
// @Tags         credentials
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Security     ApiKeyAuth
// @Router       /api/keys [get]
func (h *Handler) ListCredentials(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-credentials")
	defer span.End()

	if h.creds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credential storage is not configured"})
		return
	}

	platforms, err := h.creds.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if platforms == nil {
		platforms = []domain.PlatformID{}
	}

	c.JSON(http.StatusOK, gin.H{"platforms": platforms})
}

// DeleteCredential godoc
// @Summary      Delete stored credentials for a platform
// @Tags         credentials
// @Produce      json
// @Param        platform  path  string  true  "Platform name"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/keys/{platform} [delete]
func (h *Handler) DeleteCredential(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.delete-credential")
	defer span.End()

	if h.creds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "credential storage is not configured"})
		return
	}

	platform := domain.PlatformID(c.Param("platform"))
	if !platform.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":               "unsupported platform: " + c.Param("platform"),
			"supported_platforms": domain.SupportedPlatforms,
		})
		return
	}
	span.SetAttributes(attribute.String("platform", string(platform)))

	if err := h.creds.Delete(ctx, platform); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
