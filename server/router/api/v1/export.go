package v1

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/emersion/go-ical"
	"github.com/labstack/echo/v4"

	apperrors "github.com/hrygo/agenda/server/internal/errors"
	"github.com/hrygo/agenda/server/timezone"
	caldavstore "github.com/hrygo/agenda/store/db/caldav"
)

// ExportICS renders the events of a date as an iCalendar file.
// GET /api/v1/events/export.ics?date=YYYY-MM-DD
func (s *ScheduleService) ExportICS(c echo.Context) error {
	date, err := timezone.ParseDate(c.QueryParam("date"), s.loc)
	if err != nil {
		return writeError(c, apperrors.InvalidArgument(err.Error()))
	}
	day, err := s.Schedule.ListEventsForDate(c.Request().Context(), date)
	if err != nil {
		return writeError(c, err)
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(caldavstore.NewCalendar(day.Events...)); err != nil {
		return writeError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "agenda-"+date.Format(timezone.DateLayout)+".ics"))
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}
