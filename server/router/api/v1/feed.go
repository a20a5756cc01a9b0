package v1

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"

	apperrors "github.com/hrygo/agenda/server/internal/errors"
	"github.com/hrygo/agenda/server/timezone"
	"github.com/hrygo/agenda/store"
)

const (
	defaultFeedDays = 7
	maxFeedDays     = 31
)

// Feed renders the upcoming agenda as Atom or RSS.
// GET /api/v1/events/feed?days=7&format=atom|rss[&from=YYYY-MM-DD]
func (s *ScheduleService) Feed(c echo.Context) error {
	days := defaultFeedDays
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxFeedDays {
			return writeError(c, apperrors.InvalidArgumentf("days must be between 1 and %d", maxFeedDays))
		}
		days = n
	}
	from := timezone.StartOfDay(timezone.NowInTimezone(s.loc), s.loc)
	if raw := c.QueryParam("from"); raw != "" {
		date, err := timezone.ParseDate(raw, s.loc)
		if err != nil {
			return writeError(c, apperrors.InvalidArgument(err.Error()))
		}
		from = date
	}
	to := from.AddDate(0, 0, days)

	events, err := s.Schedule.ListEventsBetween(c.Request().Context(), from, to)
	if err != nil {
		return writeError(c, err)
	}
	feed := s.buildFeed(c, events, from, days)

	switch format := c.QueryParam("format"); format {
	case "", "atom":
		body, err := feed.ToAtom()
		if err != nil {
			return writeError(c, err)
		}
		return c.Blob(http.StatusOK, "application/atom+xml; charset=utf-8", []byte(body))
	case "rss":
		body, err := feed.ToRss()
		if err != nil {
			return writeError(c, err)
		}
		return c.Blob(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(body))
	default:
		return writeError(c, apperrors.InvalidArgumentf("unknown feed format %q", format))
	}
}

func (s *ScheduleService) buildFeed(c echo.Context, events []*store.Event, from time.Time, days int) *feeds.Feed {
	base := fmt.Sprintf("%s://%s", c.Scheme(), c.Request().Host)
	feed := &feeds.Feed{
		Title:       "Agenda",
		Link:        &feeds.Link{Href: base + "/api/v1/events/feed"},
		Description: fmt.Sprintf("Events from %s for %d days", from.Format(timezone.DateLayout), days),
		Created:     from,
	}
	for _, e := range events {
		title := e.Description
		if title == "" {
			title = "(no description)"
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          e.ID,
			Title:       title,
			Link:        &feeds.Link{Href: fmt.Sprintf("%s/api/v1/events?date=%s", base, e.Start.In(s.loc).Format(timezone.DateLayout))},
			Description: timezone.FormatEventTime(e.Start, e.End, s.loc),
			Created:     e.Start,
		})
	}
	return feed
}
