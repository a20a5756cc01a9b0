// Package caldav stores events as VEVENT objects in a CalDAV calendar collection.
// The VEVENT UID is the event id; SUMMARY carries the description.
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/pkg/errors"

	"github.com/hrygo/agenda/internal/profile"
	"github.com/hrygo/agenda/internal/util"
	"github.com/hrygo/agenda/store"
)

const productID = "-//agenda//EN"

// calendarClient is the subset of *caldav.Client the driver uses.
type calendarClient interface {
	QueryCalendar(ctx context.Context, calendar string, query *caldav.CalendarQuery) ([]caldav.CalendarObject, error)
	PutCalendarObject(ctx context.Context, path string, cal *ical.Calendar) (*caldav.CalendarObject, error)
	RemoveAll(ctx context.Context, name string) error
}

type DB struct {
	client   calendarClient
	calendar string
	loc      *time.Location
}

// NewDB connects to the CalDAV server and verifies the calendar collection exists.
func NewDB(ctx context.Context, profile *profile.Profile) (*DB, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.CalDAVURL == "" || profile.CalDAVCalendar == "" {
		return nil, errors.New("caldav driver requires AGENDA_CALDAV_URL and AGENDA_CALDAV_CALENDAR")
	}

	var httpClient webdav.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	if profile.CalDAVUsername != "" {
		httpClient = webdav.HTTPClientWithBasicAuth(httpClient, profile.CalDAVUsername, profile.CalDAVPassword)
	}
	client, err := caldav.NewClient(httpClient, profile.CalDAVURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create caldav client")
	}

	calendarPath := "/" + strings.Trim(profile.CalDAVCalendar, "/") + "/"
	homeSet := path.Dir(strings.TrimSuffix(calendarPath, "/"))
	if homeSet != "/" {
		homeSet += "/"
	}
	calendars, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find calendars")
	}
	found := false
	for _, cal := range calendars {
		if strings.TrimSuffix(cal.Path, "/") == strings.TrimSuffix(calendarPath, "/") {
			found = true
			break
		}
	}
	if !found {
		return nil, errors.Errorf("calendar not found at path: %s", calendarPath)
	}
	slog.Info("CalDAV calendar connected", "url", profile.CalDAVURL, "calendar", calendarPath)

	return newDB(client, calendarPath, profile.Location()), nil
}

func newDB(client calendarClient, calendarPath string, loc *time.Location) *DB {
	return &DB{client: client, calendar: calendarPath, loc: loc}
}

func (*DB) Close() error {
	return nil
}

func (*DB) IdentityScheme() store.IdentityScheme {
	return store.IdentityOpaque
}

func (d *DB) ListEvents(ctx context.Context) ([]*store.Event, error) {
	objects, err := d.query(ctx)
	if err != nil {
		return nil, err
	}
	list := []*store.Event{}
	for _, object := range objects {
		events, err := eventsFromCalendar(object.Data, d.loc)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode %s", object.Path)
		}
		list = append(list, events...)
	}
	return list, nil
}

func (d *DB) InsertEvent(ctx context.Context, create *store.Event) (string, error) {
	uid := util.GenUUID()
	objectPath := path.Join(d.calendar, uid+".ics")
	if _, err := d.client.PutCalendarObject(ctx, objectPath, toCalendar(uid, create)); err != nil {
		return "", errors.Wrap(err, "failed to create event")
	}
	return uid, nil
}

func (d *DB) RemoveEvent(ctx context.Context, id string) (bool, error) {
	objectPath, err := d.findObject(ctx, id)
	if err != nil || objectPath == "" {
		return false, err
	}
	if err := d.client.RemoveAll(ctx, objectPath); err != nil {
		return false, errors.Wrap(err, "failed to delete event")
	}
	return true, nil
}

func (d *DB) ReplaceEvent(ctx context.Context, id string, replace *store.Event) (bool, error) {
	objectPath, err := d.findObject(ctx, id)
	if err != nil || objectPath == "" {
		return false, err
	}
	if _, err := d.client.PutCalendarObject(ctx, objectPath, toCalendar(id, replace)); err != nil {
		return false, errors.Wrap(err, "failed to update event")
	}
	return true, nil
}

func (d *DB) query(ctx context.Context) ([]caldav.CalendarObject, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{{Name: ical.CompEvent}},
		},
	}
	objects, err := d.client.QueryCalendar(ctx, d.calendar, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}
	return objects, nil
}

// findObject returns the object path holding the VEVENT with uid, or "" when absent.
// Objects written by other clients need not be named <uid>.ics.
func (d *DB) findObject(ctx context.Context, uid string) (string, error) {
	objects, err := d.query(ctx)
	if err != nil {
		return "", err
	}
	for _, object := range objects {
		if object.Data == nil {
			continue
		}
		for _, comp := range object.Data.Children {
			if comp.Name == ical.CompEvent && textProp(comp.Props, ical.PropUID) == uid {
				return object.Path, nil
			}
		}
	}
	return "", nil
}

func toCalendar(uid string, e *store.Event) *ical.Calendar {
	cal := newCalendar()
	cal.Children = append(cal.Children, eventComponent(uid, e, time.Now()))
	return cal
}

// NewCalendar returns a VCALENDAR with one VEVENT per event, using event ids as UIDs.
func NewCalendar(events ...*store.Event) *ical.Calendar {
	cal := newCalendar()
	stamp := time.Now()
	for _, e := range events {
		cal.Children = append(cal.Children, eventComponent(e.ID, e, stamp))
	}
	return cal
}

func newCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	return cal
}

func eventComponent(uid string, e *store.Event, stamp time.Time) *ical.Component {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, e.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, e.End.UTC())
	event.Props.SetText(ical.PropSummary, e.Description)
	event.Props.SetText(ical.PropStatus, "CONFIRMED")
	return event.Component
}

// EventsFromCalendar decodes the VEVENTs of cal in loc.
func EventsFromCalendar(cal *ical.Calendar, loc *time.Location) ([]*store.Event, error) {
	return eventsFromCalendar(cal, loc)
}

// eventsFromCalendar decodes every VEVENT of an object. Recurrence rules are not expanded.
func eventsFromCalendar(cal *ical.Calendar, loc *time.Location) ([]*store.Event, error) {
	if cal == nil {
		return nil, nil
	}
	list := []*store.Event{}
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		// Overridden instances of a recurring event share its UID.
		if comp.Props.Get(ical.PropRecurrenceID) != nil {
			continue
		}
		event := ical.Event{Component: comp}
		start, err := event.DateTimeStart(loc)
		if err != nil {
			return nil, fmt.Errorf("invalid DTSTART: %w", err)
		}
		end, err := event.DateTimeEnd(loc)
		if err != nil {
			return nil, fmt.Errorf("invalid DTEND: %w", err)
		}
		description := textProp(comp.Props, ical.PropSummary)
		if description == "" {
			description = textProp(comp.Props, ical.PropDescription)
		}
		list = append(list, &store.Event{
			ID:          textProp(comp.Props, ical.PropUID),
			Start:       start.In(loc),
			End:         end.In(loc),
			Description: description,
		})
	}
	return list, nil
}

func textProp(props ical.Props, name string) string {
	prop := props.Get(name)
	if prop == nil {
		return ""
	}
	return prop.Value
}
