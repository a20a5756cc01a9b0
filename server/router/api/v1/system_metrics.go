package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/agenda/server/internal/observability"
)

// MetricsOverviewResponse represents the overview response of request metrics
type MetricsOverviewResponse struct {
	TotalRequests int64                         `json:"total_requests"`
	SuccessRate   float64                       `json:"success_rate"`
	ErrorCount    int64                         `json:"error_count"`
	Routes        []observability.RouteSnapshot `json:"routes"`
}

// GetMetricsOverview returns request counters since start.
// GET /api/v1/system/metrics/overview
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	if s.Metrics == nil {
		return c.JSON(http.StatusOK, MetricsOverviewResponse{SuccessRate: 100, Routes: []observability.RouteSnapshot{}})
	}
	snapshot := s.Metrics.Snapshot()
	return c.JSON(http.StatusOK, MetricsOverviewResponse{
		TotalRequests: snapshot.RequestTotal,
		SuccessRate:   snapshot.SuccessRate(),
		ErrorCount:    snapshot.RequestFailed,
		Routes:        snapshot.Routes,
	})
}
