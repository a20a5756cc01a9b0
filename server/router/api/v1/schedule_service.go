package v1

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/agenda/plugin/filter"
	apperrors "github.com/hrygo/agenda/server/internal/errors"
	"github.com/hrygo/agenda/server/service/schedule"
	"github.com/hrygo/agenda/server/timezone"
	"github.com/hrygo/agenda/store"
)

// ScheduleService provides the calendar HTTP handlers.
type ScheduleService struct {
	Schedule schedule.Service

	loc *time.Location
}

// minutes accepts a JSON number or a string such as "60 minutes".
type minutes struct {
	raw string
	set bool
}

func (m *minutes) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		m.raw = strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		m.raw = x
	default:
		return fmt.Errorf("invalid duration format")
	}
	m.set = true
	return nil
}

func (m minutes) value() (int, error) {
	return timezone.ParseDurationMinutes(m.raw)
}

type createEventRequest struct {
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Duration    minutes `json:"duration"`
	Description string  `json:"description"`
}

type deleteEventRequest struct {
	ID          string  `json:"id"`
	StartTime   string  `json:"start_time"`
	EndTime     string  `json:"end_time"`
	Duration    minutes `json:"duration"`
	Description *string `json:"description"`
}

type updateEventRequest struct {
	ID           string  `json:"id"`
	OldStartTime string  `json:"old_start_time"`
	NewStartTime string  `json:"new_start_time"`
	NewEndTime   string  `json:"new_end_time"`
	Duration     minutes `json:"duration"`
	Description  *string `json:"description"`
}

func (s *ScheduleService) parseDateTime(field, value string) (time.Time, error) {
	t, err := timezone.ParseDateTime(value, s.loc)
	if err != nil {
		return time.Time{}, apperrors.InvalidArgumentf("%s: %v", field, err)
	}
	return t, nil
}

// resolveEnd returns the end time from an explicit end or a duration in minutes.
func (s *ScheduleService) resolveEnd(start time.Time, endField, end string, duration minutes) (time.Time, error) {
	if end != "" {
		return s.parseDateTime(endField, end)
	}
	if !duration.set {
		return time.Time{}, apperrors.InvalidArgumentf("%s or duration is required", endField)
	}
	n, err := duration.value()
	if err != nil {
		return time.Time{}, apperrors.InvalidArgument(err.Error())
	}
	return start.Add(time.Duration(n) * time.Minute), nil
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperrors.InvalidArgument("invalid request body")
	}
	return nil
}

// CheckAvailability reports whether a span can be booked.
// GET /api/v1/availability?datetime=&duration=|end_time=[&suggest=true]
func (s *ScheduleService) CheckAvailability(c echo.Context) error {
	start, err := s.parseDateTime("datetime", c.QueryParam("datetime"))
	if err != nil {
		return writeError(c, err)
	}
	duration := minutes{raw: c.QueryParam("duration"), set: c.QueryParam("duration") != ""}
	end, err := s.resolveEnd(start, "end_time", c.QueryParam("end_time"), duration)
	if err != nil {
		return writeError(c, err)
	}

	ctx := c.Request().Context()
	availability, err := s.Schedule.CheckAvailability(ctx, start, end)
	if err != nil {
		return writeError(c, err)
	}
	if availability.Kind == schedule.KindValidation {
		return failure(c, availability.Kind, availability.Reason, nil, s.loc)
	}

	body := map[string]any{
		"available": availability.Available,
		"reason":    availability.Reason,
	}
	if availability.Conflict != nil {
		body["conflict"] = toEventJSON(availability.Conflict, s.loc)
	}
	if !availability.Available && c.QueryParam("suggest") == "true" {
		alternatives, err := s.Schedule.SuggestAlternatives(ctx, start, end)
		if err != nil {
			return writeError(c, err)
		}
		body["alternatives"] = toAlternatives(alternatives, s.loc)
	}
	return ok(c, body)
}

type alternativeJSON struct {
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason"`
	Score  int    `json:"score"`
}

func toAlternatives(slots []schedule.TimeSlot, loc *time.Location) []alternativeJSON {
	list := make([]alternativeJSON, 0, len(slots))
	for _, slot := range slots {
		list = append(list, alternativeJSON{
			Start:  slot.Start.In(loc).Format(isoLocal),
			End:    slot.End.In(loc).Format(isoLocal),
			Reason: slot.Reason,
			Score:  slot.Score,
		})
	}
	return list
}

type slotJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// FindFreeSlots lists the free slots of a day.
// GET /api/v1/slots?date=YYYY-MM-DD&duration=60
func (s *ScheduleService) FindFreeSlots(c echo.Context) error {
	date, err := timezone.ParseDate(c.QueryParam("date"), s.loc)
	if err != nil {
		return writeError(c, apperrors.InvalidArgument(err.Error()))
	}
	n, err := timezone.ParseDurationMinutes(c.QueryParam("duration"))
	if err != nil {
		return writeError(c, apperrors.InvalidArgument(err.Error()))
	}

	list, err := s.Schedule.FindFreeSlots(c.Request().Context(), date, n)
	if err != nil {
		return writeError(c, err)
	}
	if !list.Success {
		return failure(c, list.Kind, list.Message, nil, s.loc)
	}
	slots := make([]slotJSON, 0, len(list.Slots))
	for _, slot := range list.Slots {
		slots = append(slots, slotJSON{Start: slot.Start.Format(isoLocal), End: slot.End.Format(isoLocal)})
	}
	return ok(c, map[string]any{
		"date":            date.Format(timezone.DateLayout),
		"available_slots": slots,
		"count":           list.Count,
	})
}

// CreateEvent books a new event.
// POST /api/v1/events {start_time, end_time | duration, description}
func (s *ScheduleService) CreateEvent(c echo.Context) error {
	var req createEventRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	start, err := s.parseDateTime("start_time", req.StartTime)
	if err != nil {
		return writeError(c, err)
	}
	end, err := s.resolveEnd(start, "end_time", req.EndTime, req.Duration)
	if err != nil {
		return writeError(c, err)
	}

	result, err := s.Schedule.CreateEvent(c.Request().Context(), start, end, strings.TrimSpace(req.Description))
	if err != nil {
		return writeError(c, err)
	}
	if !result.Success {
		return failure(c, result.Kind, result.Message, result.Conflict, s.loc)
	}
	return ok(c, map[string]any{
		"message": result.Message,
		"event":   toEventJSON(result.Event, s.loc),
	})
}

// DeleteEvent removes an event by id or by its span.
// DELETE /api/v1/events/:id
// DELETE /api/v1/events {start_time, end_time | duration, description?}
func (s *ScheduleService) DeleteEvent(c echo.Context) error {
	var req deleteEventRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	match := store.Match{ID: c.Param("id")}
	if match.ID == "" {
		match.ID = req.ID
	}
	if match.ID == "" {
		start, err := s.parseDateTime("start_time", req.StartTime)
		if err != nil {
			return writeError(c, err)
		}
		match.Start = start
		if req.EndTime != "" || req.Duration.set {
			if match.End, err = s.resolveEnd(start, "end_time", req.EndTime, req.Duration); err != nil {
				return writeError(c, err)
			}
		}
		match.Description = req.Description
	}

	result, err := s.Schedule.DeleteEvent(c.Request().Context(), match)
	if err != nil {
		return writeError(c, err)
	}
	if !result.Success {
		return failure(c, result.Kind, result.Message, nil, s.loc)
	}
	return ok(c, map[string]any{
		"message": result.Message,
		"event":   toEventJSON(result.Event, s.loc),
	})
}

// UpdateEvent moves an event to a new span.
// PUT /api/v1/events {id | old_start_time, new_start_time, new_end_time | duration, description?}
func (s *ScheduleService) UpdateEvent(c echo.Context) error {
	var req updateEventRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	update := &schedule.UpdateEventRequest{Description: req.Description}
	update.Match.ID = c.Param("id")
	if update.Match.ID == "" {
		update.Match.ID = req.ID
	}
	if update.Match.ID == "" {
		oldStart, err := s.parseDateTime("old_start_time", req.OldStartTime)
		if err != nil {
			return writeError(c, err)
		}
		update.Match.Start = oldStart
	}
	start, err := s.parseDateTime("new_start_time", req.NewStartTime)
	if err != nil {
		return writeError(c, err)
	}
	end, err := s.resolveEnd(start, "new_end_time", req.NewEndTime, req.Duration)
	if err != nil {
		return writeError(c, err)
	}
	update.Start, update.End = start, end

	result, err := s.Schedule.UpdateEvent(c.Request().Context(), update)
	if err != nil {
		return writeError(c, err)
	}
	if !result.Success {
		return failure(c, result.Kind, result.Message, result.Conflict, s.loc)
	}
	return ok(c, map[string]any{
		"message":   result.Message,
		"old_start": result.OldStart.In(s.loc).Format(isoLocal),
		"new_start": result.NewStart.In(s.loc).Format(isoLocal),
		"new_end":   result.NewEnd.In(s.loc).Format(isoLocal),
		"event":     toEventJSON(result.Event, s.loc),
	})
}

type overlapJSON struct {
	First  *eventJSON `json:"first"`
	Second *eventJSON `json:"second"`
}

// ListEvents lists the events starting on a date, optionally filtered by a CEL expression.
// GET /api/v1/events?date=YYYY-MM-DD[&filter=]
func (s *ScheduleService) ListEvents(c echo.Context) error {
	date, err := timezone.ParseDate(c.QueryParam("date"), s.loc)
	if err != nil {
		return writeError(c, apperrors.InvalidArgument(err.Error()))
	}
	var eventFilter *filter.Filter
	if expr := c.QueryParam("filter"); expr != "" {
		if eventFilter, err = filter.Compile(expr); err != nil {
			return writeError(c, apperrors.InvalidArgument(err.Error()))
		}
	}

	day, err := s.Schedule.ListEventsForDate(c.Request().Context(), date)
	if err != nil {
		return writeError(c, err)
	}
	events := day.Events
	if eventFilter != nil {
		if events, err = eventFilter.Apply(events); err != nil {
			return writeError(c, apperrors.InvalidArgument(err.Error()))
		}
	}
	overlaps := make([]overlapJSON, 0, len(day.Overlaps))
	for _, o := range day.Overlaps {
		overlaps = append(overlaps, overlapJSON{First: toEventJSON(o.First, s.loc), Second: toEventJSON(o.Second, s.loc)})
	}
	return ok(c, map[string]any{
		"date":     date.Format(timezone.DateLayout),
		"events":   toEventList(events, s.loc),
		"count":    len(events),
		"overlaps": overlaps,
	})
}

// ListEventsAt lists the events in progress at an instant.
// GET /api/v1/events/at?datetime=
func (s *ScheduleService) ListEventsAt(c echo.Context) error {
	instant, err := s.parseDateTime("datetime", c.QueryParam("datetime"))
	if err != nil {
		return writeError(c, err)
	}
	events, err := s.Schedule.ListEventsAt(c.Request().Context(), instant)
	if err != nil {
		return writeError(c, err)
	}
	return ok(c, map[string]any{
		"events": toEventList(events, s.loc),
		"count":  len(events),
	})
}
