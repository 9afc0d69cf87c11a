package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/SergeiKhy/clicktrail/internal/middleware"
	"github.com/SergeiKhy/clicktrail/internal/models"
	"github.com/SergeiKhy/clicktrail/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const NotFoundBody = "Shortlink not found!"

// ClickRecorder часть service.Recorder, нужная редиректу
type ClickRecorder interface {
	Record(ctx context.Context, v service.Visit) models.ClickEvent
}

// EdgeHeaders имена заголовков, которые заполняет edge
type EdgeHeaders struct {
	IP      string
	Country string
	City    string
}

var DefaultEdgeHeaders = EdgeHeaders{
	IP:      middleware.DefaultIPHeader,
	Country: "CF-IPCountry",
	City:    "CF-Visitor",
}

type RedirectHandler struct {
	links    service.LinkService
	recorder ClickRecorder
	headers  EdgeHeaders
	identity func(*gin.Context) string
	logger   *zap.Logger
}

func NewRedirectHandler(links service.LinkService, recorder ClickRecorder, headers EdgeHeaders, logger *zap.Logger) *RedirectHandler {
	if headers.IP == "" {
		headers.IP = DefaultEdgeHeaders.IP
	}
	if headers.Country == "" {
		headers.Country = DefaultEdgeHeaders.Country
	}
	if headers.City == "" {
		headers.City = DefaultEdgeHeaders.City
	}
	return &RedirectHandler{
		links:    links,
		recorder: recorder,
		headers:  headers,
		identity: middleware.ClientIdentity(headers.IP),
		logger:   logger,
	}
}

// Redirect godoc
// @Summary Follow a short link
// @Description Records the click and answers with a permanent redirect
// @Tags links
// @Produce plain
// @Param slug path string true "Slug"
// @Success 301
// @Failure 404 {string} string "Shortlink not found!"
// @Failure 429 {string} string "Rate limit exceeded"
// @Router /{slug} [get]
func (h *RedirectHandler) Redirect(c *gin.Context) {
	start := middleware.StartedAt(c)
	slug := c.Param("slug")

	link, err := h.links.GetLink(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, service.ErrLookupFailed) {
			h.logger.Warn("Link lookup failed", zap.String("slug", slug), zap.Error(err))
		}
		c.String(http.StatusNotFound, NotFoundBody)
		return
	}

	ip, ok := middleware.Identity(c)
	if !ok {
		ip = h.identity(c)
	}

	h.recorder.Record(c.Request.Context(), service.Visit{
		Slug:           slug,
		DestinationURL: link.DestinationURL,
		Referrer:       c.Request.Referer(),
		UserAgent:      c.Request.UserAgent(),
		IP:             ip,
		Country:        c.GetHeader(h.headers.Country),
		City:           c.GetHeader(h.headers.City),
		QueryParams:    c.Request.URL.RawQuery,
		RateCount:      middleware.RateCount(c),
		StartedAt:      start,
	})

	c.Redirect(http.StatusMovedPermanently, link.DestinationURL)
}
