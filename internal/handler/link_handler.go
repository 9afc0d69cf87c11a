package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/SergeiKhy/clicktrail/internal/models"
	"github.com/SergeiKhy/clicktrail/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LinkHandler struct {
	service service.LinkService
	logger  *zap.Logger
}

func NewLinkHandler(service service.LinkService, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{service: service, logger: logger}
}

type CreateLinkRequest struct {
	URL       string `json:"url" binding:"required"`
	Slug      string `json:"slug,omitempty"`
	ExpiresIn *int   `json:"expires_in,omitempty"` // минуты
}

type CreateLinkResponse struct {
	Slug      string     `json:"slug"`
	ShortURL  string     `json:"short_url"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateLink godoc
// @Summary Map a slug to a destination
// @Tags links
// @Accept json
// @Produce json
// @Param request body CreateLinkRequest true "Link to create"
// @Success 201 {object} CreateLinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
		return
	}

	input := &models.CreateLinkInput{
		DestinationURL: req.URL,
		ExpiresIn:      req.ExpiresIn,
	}
	if req.Slug != "" {
		input.Slug = &req.Slug
	}

	link, err := h.service.CreateLink(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_url",
				Message: "URL must be an absolute http or https address",
			})
		case errors.Is(err, service.ErrInvalidSlug):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_slug",
				Message: "Slug must be 3-32 letters, digits, '-' or '_' and not a reserved path",
			})
		case errors.Is(err, service.ErrSlugTaken):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "slug_taken",
				Message: "Slug is already in use",
			})
		default:
			h.logger.Error("Failed to create link", zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to create link",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, CreateLinkResponse{
		Slug:      link.Slug,
		ShortURL:  shortURL(c, link.Slug),
		URL:       link.DestinationURL,
		ExpiresAt: link.ExpiresAt,
		CreatedAt: link.CreatedAt,
	})
}

// DeleteLink godoc
// @Summary Remove a slug
// @Tags links
// @Produce json
// @Param slug path string true "Slug"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/links/{slug} [delete]
func (h *LinkHandler) DeleteLink(c *gin.Context) {
	slug := c.Param("slug")

	if err := h.service.DeleteLink(c.Request.Context(), slug); err != nil {
		if !errors.Is(err, service.ErrNotFound) {
			h.logger.Error("Failed to delete link", zap.String("slug", slug), zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "internal_error",
				Message: "Failed to delete link",
			})
			return
		}
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Link not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Link deleted"})
}

func shortURL(c *gin.Context, slug string) string {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + "/" + slug
}
