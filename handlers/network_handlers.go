package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vit0-9/hostinfo/models"
	"github.com/vit0-9/hostinfo/pkg/utils"
)

// NetworkIntelligenceHandlers serves host resolution and geolocation reports.
type NetworkIntelligenceHandlers struct {
	Resolver *utils.Resolver
	Reporter *utils.Reporter
}

func NewNetworkIntelligenceHandlers(resolver *utils.Resolver, reporter *utils.Reporter) *NetworkIntelligenceHandlers {
	return &NetworkIntelligenceHandlers{
		Resolver: resolver,
		Reporter: reporter,
	}
}

// hostQuery returns the trimmed host parameter, writing a 400 response when it is missing.
func hostQuery(c *gin.Context) (string, bool) {
	host := strings.TrimSpace(c.Query("host"))
	if host == "" {
		c.JSON(http.StatusBadRequest, models.APIErrorResponse{
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "missing_host",
			Message:    "host query parameter is required",
		})
		return "", false
	}
	return host, true
}

// ResolveHandler returns every (domain, ip) pair reachable from host.
// GET /api/v1/net/resolve?host=www.example.com
func (h *NetworkIntelligenceHandlers) ResolveHandler(c *gin.Context) {
	host, ok := hostQuery(c)
	if !ok {
		return
	}

	records, err := h.Resolver.ResolveAll(c.Request.Context(), host)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, models.APIErrorResponse{
			StatusCode: http.StatusServiceUnavailable,
			ErrorCode:  "resolve_aborted",
			Message:    "resolution did not complete",
			Details:    err.Error(),
		})
		return
	}
	if records == nil {
		records = []utils.HostRecord{}
	}
	c.JSON(http.StatusOK, models.ResolveResponse{
		Host:    host,
		Records: records,
	})
}

// HostInfoHandler streams the CSV report for host, one flushed line per record.
// GET /api/v1/net/hostinfo?host=www.example.com
func (h *NetworkIntelligenceHandlers) HostInfoHandler(c *gin.Context) {
	host, ok := hostQuery(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	records, err := h.Resolver.ResolveAll(ctx, host)
	if err != nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	sum, err := h.Reporter.Report(ctx, c.Writer, records)
	if err != nil {
		h.Reporter.Log.Warnf("Report for %s aborted: %v", host, err)
		return
	}
	h.Reporter.Log.Infof("Wrote %d records for %s (%d failed)", sum.Written, host, sum.Failed)
}
