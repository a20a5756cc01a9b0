// Package csv stores events in a flat CSV file with the columns
// start_time,end_time,description. Event ids are derived from content.
package csv

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/agenda/internal/profile"
	"github.com/hrygo/agenda/store"
)

// TimeLayout is the layout used when writing timestamps.
const TimeLayout = "2006-01-02 15:04:05"

var header = []string{"start_time", "end_time", "description"}

// readLayouts are accepted when reading, interpreted in the deployment timezone.
var readLayouts = []string{
	TimeLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

type DB struct {
	mu   sync.Mutex
	path string
	loc  *time.Location
}

// NewDB opens the CSV file at profile.DSN, creating it with a header when missing.
func NewDB(profile *profile.Profile) (*DB, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}
	if profile.DSN == "" {
		return nil, errors.New("csv driver requires a file path")
	}
	d := &DB{path: profile.DSN, loc: profile.Location()}
	if err := d.initialize(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DB) initialize() error {
	info, err := os.Stat(d.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to stat %s", d.path)
	}
	return d.write(nil)
}

func (*DB) Close() error {
	return nil
}

func (*DB) IdentityScheme() store.IdentityScheme {
	return store.IdentityContent
}

func (d *DB) ListEvents(_ context.Context) ([]*store.Event, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.read()
}

func (d *DB) InsertEvent(_ context.Context, create *store.Event) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list, err := d.read()
	if err != nil {
		return "", err
	}
	e := create.Clone()
	e.ID = store.ContentKey(e.Start, e.End, e.Description)
	if err := d.write(append(list, e)); err != nil {
		return "", err
	}
	return e.ID, nil
}

func (d *DB) RemoveEvent(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list, err := d.read()
	if err != nil {
		return false, err
	}
	for i, e := range list {
		if e.ID == id {
			return true, d.write(append(list[:i], list[i+1:]...))
		}
	}
	return false, nil
}

func (d *DB) ReplaceEvent(_ context.Context, id string, replace *store.Event) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list, err := d.read()
	if err != nil {
		return false, err
	}
	for i, e := range list {
		if e.ID == id {
			next := replace.Clone()
			next.ID = store.ContentKey(next.Start, next.End, next.Description)
			list[i] = next
			return true, d.write(list)
		}
	}
	return false, nil
}

func (d *DB) read() ([]*store.Event, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", d.path)
	}
	defer f.Close()
	return decode(f, d.loc)
}

// write replaces the file atomically.
func (d *DB) write(list []*store.Event) error {
	tmp, err := os.CreateTemp(filepath.Dir(d.path), "."+filepath.Base(d.path)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, list, d.loc); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", d.path)
	}
	return nil
}

func decode(r io.Reader, loc *time.Location) ([]*store.Event, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse csv")
	}

	list := []*store.Event{}
	for i, record := range records {
		if i == 0 && isHeader(record) {
			continue
		}
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) < 2 {
			return nil, errors.Errorf("row %d: expected at least 2 columns, got %d", i+1, len(record))
		}
		start, err := parseTime(record[0], loc)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: start_time", i+1)
		}
		end, err := parseTime(record[1], loc)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d: end_time", i+1)
		}
		description := ""
		if len(record) > 2 {
			description = record[2]
		}
		list = append(list, &store.Event{
			ID:          store.ContentKey(start, end, description),
			Start:       start,
			End:         end,
			Description: description,
		})
	}
	return list, nil
}

func encode(w io.Writer, list []*store.Event, loc *time.Location) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, e := range list {
		if err := writer.Write([]string{
			e.Start.In(loc).Format(TimeLayout),
			e.End.In(loc).Format(TimeLayout),
			e.Description,
		}); err != nil {
			return errors.Wrap(err, "failed to write row")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "failed to flush csv")
}

func isHeader(record []string) bool {
	return len(record) >= 2 && strings.EqualFold(strings.TrimSpace(record[0]), header[0])
}

func parseTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range readLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized timestamp %q", value)
}
