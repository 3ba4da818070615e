package handler

import (
	"net/http"
	"time"

	"volumedeck/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const dateLayout = "2006-01-02"

// GetCurrentVolume godoc
// @Summary      Get aggregated 24h trading volume
// @Description  Returns the summed 24h USD volume across all connected exchanges. Platforms that failed to respond are listed with their error and contribute zero.
// @Tags         volume
// @Produce      json
// @Success      200  {object}  domain.AggregatedVolume
// @Failure      500  {object}  map[string]string
// @Router       /api/volume/current [get]
func (h *Handler) GetCurrentVolume(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.current-volume")
	defer span.End()

	agg, err := h.volumes.CurrentAggregate(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, agg)
}

// GetHistoricalVolume godoc
// @Summary      Get aggregated historical daily volume
// @Description  Returns per-day USD volume summed across all platforms for the requested range. Defaults to the trailing 30 days.
// @Tags         volume
// @Produce      json
// @Param        start     query  string  false  "Range start (YYYY-MM-DD, inclusive)"
// @Param        end       query  string  false  "Range end (YYYY-MM-DD, inclusive)"
// @Param        platform  query  string  false  "Restrict to one platform"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/volume/historical [get]
func (h *Handler) GetHistoricalVolume(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.historical-volume")
	defer span.End()

	platform := domain.PlatformID(c.Query("platform"))
	if platform != "" && !platform.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":               "unsupported platform: " + c.Query("platform"),
			"supported_platforms": domain.SupportedPlatforms,
		})
		return
	}

	start, end, err := parseRange(c.Query("start"), c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(
		attribute.String("start", start.Format(dateLayout)),
		attribute.String("end", end.Format(dateLayout)),
	)

	points, err := h.volumes.HistoricalAggregate(ctx, platform, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"start":  start.Format(dateLayout),
		"end":    end.Format(dateLayout),
		"points": points,
	})
}

type backfillRequest struct {
	Platform string `json:"platform"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// Backfill godoc
// @Summary      Trigger a historical volume backfill
// @Description  Fetches and stores daily volume records for one platform, or all platforms when none is given. Requires the admin API key.
// @Tags         volume
// @Accept       json
// @Produce      json
// @Param        request  body  backfillRequest  false  "Backfill parameters"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Security     ApiKeyAuth
// @Router       /api/volume/backfill [post]
func (h *Handler) Backfill(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.backfill")
	defer span.End()

	var req backfillRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}

	platform := domain.PlatformID(req.Platform)
	if platform != "" && !platform.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":               "unsupported platform: " + req.Platform,
			"supported_platforms": domain.SupportedPlatforms,
		})
		return
	}
	span.SetAttributes(attribute.String("platform", string(platform)))

	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.volumes.FetchAndStoreHistorical(ctx, platform, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// parseRange applies the trailing-30-day default and normalizes both bounds
// to UTC day starts. The end bound is inclusive.
func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	end := domain.DayOf(time.Now())
	if endStr != "" {
		parsed, err := time.Parse(dateLayout, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, &rangeError{"end", endStr}
		}
		end = parsed
	}

	start := end.AddDate(0, 0, -30)
	if startStr != "" {
		parsed, err := time.Parse(dateLayout, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, &rangeError{"start", startStr}
		}
		start = parsed
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, &rangeError{"start", "after end"}
	}
	return start, end, nil
}

type rangeError struct {
	field string
	value string
}

func (e *rangeError) Error() string {
	return "invalid " + e.field + " date: " + e.value + " (want YYYY-MM-DD)"
}
