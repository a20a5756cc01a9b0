// Package google stores events in a Google Calendar. The Google event id is the
// event id and the summary carries the description.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hrygo/agenda/internal/profile"
	"github.com/hrygo/agenda/store"
)

// eventsAPI is the subset of calendar.EventsService the driver uses.
type eventsAPI interface {
	List(ctx context.Context, pageToken string) (*calendar.Events, error)
	Insert(ctx context.Context, event *calendar.Event) (*calendar.Event, error)
	Patch(ctx context.Context, id string, event *calendar.Event) (*calendar.Event, error)
	Delete(ctx context.Context, id string) error
}

type serviceAPI struct {
	events     *calendar.EventsService
	calendarID string
}

func (s *serviceAPI) List(ctx context.Context, pageToken string) (*calendar.Events, error) {
	call := s.events.List(s.calendarID).
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(2500)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

func (s *serviceAPI) Insert(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	return s.events.Insert(s.calendarID, event).Context(ctx).Do()
}

func (s *serviceAPI) Patch(ctx context.Context, id string, event *calendar.Event) (*calendar.Event, error) {
	return s.events.Patch(s.calendarID, id, event).Context(ctx).Do()
}

func (s *serviceAPI) Delete(ctx context.Context, id string) error {
	return s.events.Delete(s.calendarID, id).Context(ctx).Do()
}

type DB struct {
	api eventsAPI
	loc *time.Location
}

// NewDB builds an authenticated calendar client from the OAuth client
// credentials file and a previously obtained token file.
func NewDB(ctx context.Context, profile *profile.Profile) (*DB, error) {
	if profile == nil {
		return nil, pkgerrors.New("profile is nil")
	}
	if profile.GoogleCredentials == "" || profile.GoogleToken == "" {
		return nil, pkgerrors.New("google driver requires AGENDA_GOOGLE_CREDENTIALS and AGENDA_GOOGLE_TOKEN")
	}

	b, err := os.ReadFile(profile.GoogleCredentials)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "unable to read client secret file")
	}
	config, err := google.ConfigFromJSON(b, calendar.CalendarEventsScope)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "unable to parse client secret file to config")
	}
	token, err := tokenFromFile(profile.GoogleToken)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "could not load token from %s", profile.GoogleToken)
	}

	service, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to create calendar service")
	}
	return newDB(&serviceAPI{events: service.Events, calendarID: profile.GoogleCalendarID}, profile.Location()), nil
}

func newDB(api eventsAPI, loc *time.Location) *DB {
	return &DB{api: api, loc: loc}
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func (*DB) Close() error {
	return nil
}

func (*DB) IdentityScheme() store.IdentityScheme {
	return store.IdentityOpaque
}

// ListEvents pages through every timed event. All-day events carry no
// wall-clock span and are skipped.
func (d *DB) ListEvents(ctx context.Context) ([]*store.Event, error) {
	list := []*store.Event{}
	pageToken := ""
	for {
		page, err := d.api.List(ctx, pageToken)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to retrieve events")
		}
		for _, item := range page.Items {
			e, err := fromGoogle(item, d.loc)
			if err != nil {
				return nil, err
			}
			if e != nil {
				list = append(list, e)
			}
		}
		if page.NextPageToken == "" {
			return list, nil
		}
		pageToken = page.NextPageToken
	}
}

func (d *DB) InsertEvent(ctx context.Context, create *store.Event) (string, error) {
	created, err := d.api.Insert(ctx, toGoogle(create))
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to insert event")
	}
	return created.Id, nil
}

func (d *DB) RemoveEvent(ctx context.Context, id string) (bool, error) {
	if err := d.api.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, pkgerrors.Wrap(err, "failed to delete event")
	}
	return true, nil
}

func (d *DB) ReplaceEvent(ctx context.Context, id string, replace *store.Event) (bool, error) {
	if _, err := d.api.Patch(ctx, id, toGoogle(replace)); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, pkgerrors.Wrap(err, "failed to update event")
	}
	return true, nil
}

func toGoogle(e *store.Event) *calendar.Event {
	return &calendar.Event{
		Summary: e.Description,
		Start:   &calendar.EventDateTime{DateTime: e.Start.Format(time.RFC3339), TimeZone: e.Start.Location().String()},
		End:     &calendar.EventDateTime{DateTime: e.End.Format(time.RFC3339), TimeZone: e.End.Location().String()},
	}
}

// fromGoogle returns nil for events without a timed span.
func fromGoogle(item *calendar.Event, loc *time.Location) (*store.Event, error) {
	if item.Start == nil || item.End == nil || item.Start.DateTime == "" || item.End.DateTime == "" {
		return nil, nil
	}
	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "event %s: invalid start", item.Id)
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "event %s: invalid end", item.Id)
	}
	return &store.Event{
		ID:          item.Id,
		Start:       start.In(loc),
		End:         end.In(loc),
		Description: item.Summary,
	}, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
