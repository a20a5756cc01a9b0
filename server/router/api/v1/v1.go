package v1

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/agenda/internal/profile"
	apperrors "github.com/hrygo/agenda/server/internal/errors"
	"github.com/hrygo/agenda/server/internal/observability"
	"github.com/hrygo/agenda/server/service/schedule"
	"github.com/hrygo/agenda/store"
)

// isoLocal is the wall-clock format of times in responses, e.g. "2025-03-10T09:00:00".
const isoLocal = "2006-01-02T15:04:05"

type APIV1Service struct {
	Profile         *profile.Profile
	Metrics         *observability.Metrics
	ScheduleService *ScheduleService
}

func NewAPIV1Service(profile *profile.Profile, svc schedule.Service, metrics *observability.Metrics) *APIV1Service {
	return &APIV1Service{
		Profile:         profile,
		Metrics:         metrics,
		ScheduleService: &ScheduleService{Schedule: svc, loc: svc.Location()},
	}
}

// RegisterRoutes registers the JSON API and the legacy routes with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	h := s.ScheduleService

	api := echoServer.Group("/api/v1")
	api.GET("/availability", h.CheckAvailability)
	api.GET("/slots", h.FindFreeSlots)
	api.GET("/events", h.ListEvents)
	api.POST("/events", h.CreateEvent)
	api.PUT("/events", h.UpdateEvent)
	api.DELETE("/events", h.DeleteEvent)
	api.GET("/events/at", h.ListEventsAt)
	api.GET("/events/feed", h.Feed)
	api.GET("/events/export.ics", h.ExportICS)
	api.PUT("/events/:id", h.UpdateEvent)
	api.DELETE("/events/:id", h.DeleteEvent)
	api.GET("/system/metrics/overview", s.GetMetricsOverview)

	// Legacy form-style routes.
	echoServer.GET("/available-slots", h.FindFreeSlots)
	echoServer.POST("/add", h.CreateEvent)
	echoServer.DELETE("/delete", h.DeleteEvent)
	echoServer.GET("/get-events-by-date", h.ListEvents)
	echoServer.GET("/get-events-by-datetime", h.ListEventsAt)
	echoServer.GET("/check-specific-availability", h.CheckAvailability)
	echoServer.PUT("/update-event", h.UpdateEvent)
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success  bool                `json:"success"`
	Error    string              `json:"error"`
	Code     apperrors.ErrorCode `json:"code"`
	Conflict *eventJSON          `json:"conflict,omitempty"`
}

// eventJSON is an event as rendered by the API, in the deployment timezone.
type eventJSON struct {
	ID          string `json:"id"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Description string `json:"description"`
}

func toEventJSON(e *store.Event, loc *time.Location) *eventJSON {
	if e == nil {
		return nil
	}
	return &eventJSON{
		ID:          e.ID,
		StartTime:   e.Start.In(loc).Format(isoLocal),
		EndTime:     e.End.In(loc).Format(isoLocal),
		Description: e.Description,
	}
}

func toEventList(events []*store.Event, loc *time.Location) []*eventJSON {
	list := make([]*eventJSON, 0, len(events))
	for _, e := range events {
		list = append(list, toEventJSON(e, loc))
	}
	return list
}

var kindCodes = map[schedule.FailureKind]apperrors.ErrorCode{
	schedule.KindValidation:      apperrors.ErrCodeInvalidArgument,
	schedule.KindPolicyViolation: apperrors.ErrCodePolicyViolation,
	schedule.KindConflict:        apperrors.ErrCodeConflict,
	schedule.KindNotFound:        apperrors.ErrCodeNotFound,
}

func codeForKind(kind schedule.FailureKind) apperrors.ErrorCode {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return apperrors.ErrCodeInternal
}

// failure writes a failed core result.
func failure(c echo.Context, kind schedule.FailureKind, message string, conflict *store.Event, loc *time.Location) error {
	code := codeForKind(kind)
	return c.JSON(code.HTTPStatus(), errorResponse{
		Error:    message,
		Code:     code,
		Conflict: toEventJSON(conflict, loc),
	})
}

// writeError writes err, which is either an *APIError or a store failure.
func writeError(c echo.Context, err error) error {
	var apiErr *apperrors.APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, schedule.ErrStoreFailure) {
			apiErr = apperrors.StoreUnavailable(err)
		} else {
			apiErr = apperrors.Wrap(err, apperrors.ErrCodeInternal, "internal error")
		}
	}
	logger := observability.LoggerFromContext(c.Request().Context())
	if apiErr.Code == apperrors.ErrCodeStoreUnavailable || apiErr.Code == apperrors.ErrCodeInternal {
		logger.Error("request failed", slog.String(observability.LogFieldErrorCode, string(apiErr.Code)), slog.String("error", err.Error()))
	} else {
		logger.Debug("request rejected", slog.String(observability.LogFieldErrorCode, string(apiErr.Code)), slog.String("error", apiErr.Message))
	}
	return c.JSON(apiErr.Code.HTTPStatus(), errorResponse{Error: apiErr.Message, Code: apiErr.Code})
}

func ok(c echo.Context, body map[string]any) error {
	body["success"] = true
	return c.JSON(http.StatusOK, body)
}
