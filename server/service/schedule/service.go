// Package schedule implements the scheduling engine of a single calendar:
// conflict detection, the working-hours policy, free-slot enumeration and
// conflict-safe create, update and delete.
//
// Key rules:
//   - Spans are half-open [start, end); touching spans do not conflict
//   - Every operation re-reads the full event set; nothing is cached
//   - Mutations hold the store lock across their read-check-write sequence
//   - A failed update leaves the store unmodified
//
// Expected failures (validation, policy, conflict, not found) are reported in
// results. The only returned error wraps ErrStoreFailure.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/hrygo/agenda/store"
)

type service struct {
	store    Store
	window   WorkingHours
	loc      *time.Location
	step     time.Duration
	notifier Notifier
	now      func() time.Time
}

// Option configures the service.
type Option func(*service)

// WithWorkingHours sets the working-hours window.
func WithWorkingHours(window WorkingHours) Option {
	return func(s *service) { s.window = window }
}

// WithLocation sets the deployment timezone.
func WithLocation(loc *time.Location) Option {
	return func(s *service) { s.loc = loc }
}

// WithNotifier sets the receiver of change notifications.
func WithNotifier(n Notifier) Option {
	return func(s *service) { s.notifier = n }
}

// NewService creates a new schedule service.
func NewService(st Store, opts ...Option) (Service, error) {
	s := &service{
		store:  st,
		window: DefaultWorkingHours(),
		step:   SlotStep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loc == nil {
		loc, err := time.LoadLocation(DefaultTimezone)
		if err != nil {
			return nil, fmt.Errorf("failed to load default timezone: %w", err)
		}
		s.loc = loc
	}
	if s.window.Precision == "" {
		s.window.Precision = PrecisionHour
	}
	if err := s.window.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *service) Location() *time.Location {
	return s.loc
}

// snapshot reads every event, in the deployment timezone, ordered by start.
func (s *service) snapshot(ctx context.Context) ([]*store.Event, error) {
	list, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, storeFailure("failed to list events", err)
	}
	events := make([]*store.Event, 0, len(list))
	for _, e := range list {
		if e == nil {
			return nil, storeFailure("failed to list events", store.ErrMalformedEvent)
		}
		events = append(events, e.In(s.loc))
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	return events, nil
}

func (s *service) CheckAvailability(ctx context.Context, start, end time.Time) (*Availability, error) {
	span := Span{Start: start, End: end}.In(s.loc)
	if !span.IsValid() {
		return &Availability{Span: span, Kind: KindValidation, Reason: "End time must be after start time"}, nil
	}
	events, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	availability := checkAvailability(span, events, s.window, "")
	if availability.Conflict != nil {
		slog.Info("availability conflict",
			"start", span.Start,
			"end", span.End,
			"conflict_id", availability.Conflict.ID,
		)
	}
	return availability, nil
}

func (s *service) FindFreeSlots(ctx context.Context, date time.Time, durationMinutes int) (*SlotList, error) {
	day := date.In(s.loc)
	if durationMinutes <= 0 {
		return &SlotList{Date: day, Kind: KindValidation, Message: "Duration must be a positive number of minutes", Slots: []Span{}}, nil
	}
	// Nothing longer than the window fits; checked before the conversion can overflow.
	if durationMinutes > s.window.Minutes() {
		return &SlotList{Success: true, Date: day, Slots: []Span{}}, nil
	}
	duration := time.Duration(durationMinutes) * time.Minute
	events, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	slots := enumerateSlots(day, duration, events, s.window, s.step)
	return &SlotList{
		Success:  true,
		Date:     day,
		Duration: duration,
		Slots:    slots,
		Count:    len(slots),
	}, nil
}

func (s *service) CreateEvent(ctx context.Context, start, end time.Time, description string) (*Result, error) {
	begin := time.Now()
	defer func() {
		slog.Debug("event create operation",
			"start", start,
			"description", description,
			"duration_ms", time.Since(begin).Milliseconds(),
		)
	}()

	span := Span{Start: start, End: end}.In(s.loc)
	if !span.IsValid() {
		return failed(KindValidation, "End time must be after start time"), nil
	}

	var result *Result
	err := s.withLock(ctx, func(ctx context.Context) error {
		events, err := s.snapshot(ctx)
		if err != nil {
			return err
		}
		availability := checkAvailability(span, events, s.window, "")
		if !availability.Available {
			result = &Result{Kind: availability.Kind, Message: availability.Reason, Conflict: availability.Conflict}
			return nil
		}

		create := &store.Event{Start: span.Start, End: span.End, Description: description}
		id, err := s.store.InsertEvent(ctx, create)
		if err != nil {
			if isConstraintConflict(err) {
				result = failed(KindConflict, "Time slot overlaps an existing event")
				return nil
			}
			return storeFailure("failed to insert event", err)
		}
		create.ID = id
		result = &Result{Success: true, Message: "Event created successfully", Event: create}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Success {
		s.notify(ctx, ChangeCreated, result.Event, nil)
	} else if result.Kind == KindConflict {
		slog.Info("event create rejected", "reason", result.Message)
	}
	return result, nil
}

func (s *service) DeleteEvent(ctx context.Context, match store.Match) (*Result, error) {
	if match.ID == "" && match.Start.IsZero() {
		return failed(KindValidation, "Event id or start time is required"), nil
	}
	match.Start = match.Start.In(s.loc)

	var result *Result
	err := s.withLock(ctx, func(ctx context.Context) error {
		events, err := s.snapshot(ctx)
		if err != nil {
			return err
		}
		target := findMatch(events, &match)
		if target == nil {
			result = failed(KindNotFound, "Event not found")
			return nil
		}
		removed, err := s.store.RemoveEvent(ctx, target.ID)
		if err != nil {
			return storeFailure("failed to remove event", err)
		}
		if !removed {
			result = failed(KindNotFound, "Event not found")
			return nil
		}
		result = &Result{Success: true, Message: "Event deleted successfully", Event: target}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Success {
		s.notify(ctx, ChangeDeleted, result.Event, nil)
	}
	return result, nil
}

func (s *service) UpdateEvent(ctx context.Context, update *UpdateEventRequest) (*UpdateResult, error) {
	if update == nil {
		return &UpdateResult{Result: *failed(KindValidation, "Update request is required")}, nil
	}
	match := update.Match
	if match.ID == "" && match.Start.IsZero() {
		return &UpdateResult{Result: *failed(KindValidation, "Event id or old start time is required")}, nil
	}
	match.Start = match.Start.In(s.loc)

	span := Span{Start: update.Start, End: update.End}.In(s.loc)
	if !span.IsValid() {
		return &UpdateResult{Result: *failed(KindValidation, "End time must be after start time")}, nil
	}
	if ok, reason := ValidateWorkingHours(span.Start, span.End, s.window); !ok {
		return &UpdateResult{Result: *failed(KindPolicyViolation, reason)}, nil
	}

	var result *UpdateResult
	err := s.withLock(ctx, func(ctx context.Context) error {
		events, err := s.snapshot(ctx)
		if err != nil {
			return err
		}
		existing := findMatch(events, &match)
		if existing == nil {
			result = &UpdateResult{Result: *failed(KindNotFound, "Event not found")}
			return nil
		}
		// Conflict check runs against every other event before anything is written.
		if conflict := findConflict(span, events, existing.ID); conflict != nil {
			result = &UpdateResult{Result: Result{Kind: KindConflict, Message: conflictMessage(conflict), Conflict: conflict}}
			return nil
		}

		next := &store.Event{Start: span.Start, End: span.End, Description: existing.Description}
		if update.Description != nil {
			next.Description = *update.Description
		}
		replaced, err := s.store.ReplaceEvent(ctx, existing.ID, next)
		if err != nil {
			if isConstraintConflict(err) {
				result = &UpdateResult{Result: *failed(KindConflict, "Time slot overlaps an existing event")}
				return nil
			}
			return storeFailure("failed to replace event", err)
		}
		if !replaced {
			result = &UpdateResult{Result: *failed(KindNotFound, "Event not found")}
			return nil
		}
		next.ID = existing.ID
		if s.store.IdentityScheme() == store.IdentityContent {
			next.ID = store.ContentKey(next.Start, next.End, next.Description)
		}
		result = &UpdateResult{
			Result:   Result{Success: true, Message: "Event updated successfully", Event: next},
			Previous: existing,
			OldStart: existing.Start,
			OldEnd:   existing.End,
			NewStart: next.Start,
			NewEnd:   next.End,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Success {
		s.notify(ctx, ChangeUpdated, result.Event, result.Previous)
	}
	return result, nil
}

func (s *service) ListEventsForDate(ctx context.Context, date time.Time) (*DaySchedule, error) {
	day := date.In(s.loc)
	events, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	list := []*store.Event{}
	for _, e := range events {
		if sameDate(e.Start, day) {
			list = append(list, e)
		}
	}
	overlaps := findOverlaps(list)
	if len(overlaps) > 0 {
		slog.Warn("stored events overlap", "date", day.Format(time.DateOnly), "count", len(overlaps))
	}
	return &DaySchedule{Date: day, Events: list, Overlaps: overlaps}, nil
}

func (s *service) ListEventsAt(ctx context.Context, instant time.Time) ([]*store.Event, error) {
	events, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	list := []*store.Event{}
	for _, e := range events {
		if e.IsActiveAt(instant) {
			list = append(list, e)
		}
	}
	return list, nil
}

func (s *service) ListEventsBetween(ctx context.Context, from, to time.Time) ([]*store.Event, error) {
	window := Span{Start: from, End: to}.In(s.loc)
	events, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	list := []*store.Event{}
	if !window.IsValid() {
		return list, nil
	}
	for _, e := range events {
		if Overlaps(window, SpanOf(e)) {
			list = append(list, e)
		}
	}
	return list, nil
}

func (s *service) withLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.store.WithLock(ctx, fn); err != nil {
		return storeFailure("failed to lock calendar", err)
	}
	return nil
}

func (s *service) notify(ctx context.Context, changeType ChangeType, event, previous *store.Event) {
	if s.notifier == nil {
		return
	}
	change := &Change{Type: changeType, Event: event, Previous: previous, OccurredAt: s.now().In(s.loc)}
	if err := s.notifier.Notify(ctx, change); err != nil {
		slog.Warn("failed to publish change", "type", changeType, "event_id", event.ID, "error", err)
	}
}

// findMatch returns the first event, in start order, selected by match.
func findMatch(events []*store.Event, match *store.Match) *store.Event {
	for _, e := range events {
		if match.Matches(e) {
			return e
		}
	}
	return nil
}

func isConstraintConflict(err error) bool {
	return errors.Is(err, store.ErrSpanConflict)
}
