package db

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/agenda/internal/profile"
	"github.com/hrygo/agenda/store"
	"github.com/hrygo/agenda/store/db/caldav"
	"github.com/hrygo/agenda/store/db/csv"
	"github.com/hrygo/agenda/store/db/google"
	"github.com/hrygo/agenda/store/db/memory"
	"github.com/hrygo/agenda/store/db/postgres"
	"github.com/hrygo/agenda/store/db/sqlite"
)

// NewDBDriver creates new event store driver based on profile.
//
// memory:   process-local, lost on restart.
// csv:      flat file, content-derived ids.
// sqlite:   single-node default.
// postgres: multi-instance, with an exclusion constraint against overlaps.
// caldav:   remote CalDAV collection.
// google:   remote Google Calendar.
func NewDBDriver(ctx context.Context, profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "memory":
		driver = memory.NewDB()
	case "csv":
		driver, err = csv.NewDB(profile)
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	case "caldav":
		driver, err = caldav.NewDB(ctx, profile)
	case "google":
		driver, err = google.NewDB(ctx, profile)
	default:
		return nil, errors.Errorf("unknown db driver: %s", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
