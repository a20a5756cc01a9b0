package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/agenda/internal/version"
)

// Migration files:
// - store/migration/{driver}/LATEST.sql is the full schema for new installations.
// - store/migration/{driver}/{major.minor}/NN__description.sql are incremental
//   patches, applied in lexicographic order when their version lies between the
//   recorded schema version and the current one.
// The schema version is recorded in system_setting under schemaVersionKey.

//go:embed migration
var migrationFS embed.FS

//go:embed seed
var seedFS embed.FS

const (
	// MigrateFileNameSplit is the split character between the patch version and the description in the migration file name.
	// For example, "1__create_table.sql".
	MigrateFileNameSplit = "__"
	// LatestSchemaFileName is the name of the latest schema file.
	LatestSchemaFileName = "LATEST.sql"

	defaultSchemaVersion = "0.0.0"
	schemaVersionKey     = "schema_version"

	modeDemo = "demo"
)

func getSchemaVersionOrDefault(schemaVersion string) string {
	if schemaVersion == "" {
		return defaultSchemaVersion
	}
	return schemaVersion
}

// shouldApplyMigration determines if a migration file should be applied.
// It checks if the file's version is between the current DB version and target version.
func shouldApplyMigration(fileVersion, currentDBVersion, targetVersion string) bool {
	return version.IsVersionGreaterThan(fileVersion, getSchemaVersionOrDefault(currentDBVersion)) &&
		version.IsVersionGreaterOrEqualThan(targetVersion, fileVersion)
}

// validateMigrationFileName checks if a migration file follows the expected naming convention.
func validateMigrationFileName(filename string) error {
	parts := strings.Split(filename, MigrateFileNameSplit)
	if len(parts) < 2 {
		return errors.Errorf("invalid migration filename format (missing %s): %s", MigrateFileNameSplit, filename)
	}
	if _, err := strconv.Atoi(parts[0]); err != nil {
		return errors.Errorf("migration filename must start with a number: %s", filename)
	}
	return nil
}

// schemaVersionOfMigrateScript returns "major.minor.patch" for a path like
// "migration/sqlite/0.3/01__add_index.sql", i.e. "0.3.2".
func schemaVersionOfMigrateScript(filePath string) (string, error) {
	elements := strings.Split(filepath.ToSlash(filePath), "/")
	if len(elements) < 2 {
		return "", errors.Errorf("invalid file path: %s", filePath)
	}
	minorVersion := elements[len(elements)-2]
	rawPatchVersion := strings.Split(elements[len(elements)-1], MigrateFileNameSplit)[0]
	patchVersion, err := strconv.Atoi(rawPatchVersion)
	if err != nil {
		return "", errors.Wrapf(err, "failed to convert patch version to int: %s", rawPatchVersion)
	}
	return fmt.Sprintf("%s.%d", minorVersion, patchVersion+1), nil
}

// Migrate brings the schema of SQL-backed drivers up to version.SchemaVersion.
// Drivers without a schema are left untouched.
func (s *Store) Migrate(ctx context.Context) error {
	driver, ok := s.driver.(SQLDriver)
	if !ok {
		slog.Debug("driver has no schema, skipping migration", slog.String("identity", string(s.driver.IdentityScheme())))
		return nil
	}

	initialized, err := driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}
	if !initialized {
		if err := s.applyLatestSchema(ctx, driver); err != nil {
			return err
		}
	} else {
		current, err := s.getSchemaVersion(ctx, driver)
		if err != nil {
			return errors.Wrap(err, "failed to get schema version")
		}
		if version.IsVersionGreaterThan(getSchemaVersionOrDefault(current), version.SchemaVersion) {
			slog.Error("cannot downgrade schema version",
				slog.String("databaseVersion", current),
				slog.String("currentVersion", version.SchemaVersion),
			)
			return errors.Errorf("cannot downgrade schema version from %s to %s", current, version.SchemaVersion)
		}
		if version.IsVersionGreaterThan(version.SchemaVersion, getSchemaVersionOrDefault(current)) {
			if err := s.applyMigrations(ctx, driver, current, version.SchemaVersion); err != nil {
				return errors.Wrap(err, "failed to apply migrations")
			}
		}
	}

	if s.profile != nil && s.profile.Mode == modeDemo {
		if err := s.seed(ctx, driver); err != nil {
			return errors.Wrap(err, "failed to seed")
		}
	}
	return nil
}

func (s *Store) applyLatestSchema(ctx context.Context, driver SQLDriver) error {
	filePath := fmt.Sprintf("migration/%s/%s", driver.Type(), LatestSchemaFileName)
	bytes, err := migrationFS.ReadFile(filePath)
	if err != nil {
		return errors.Errorf("failed to read latest schema file: %s", err)
	}
	tx, err := driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()
	slog.Info("initializing new database with latest schema", slog.String("file", filePath))
	if _, err := tx.ExecContext(ctx, string(bytes)); err != nil {
		return errors.Errorf("failed to execute SQL file %s, err %s", filePath, err)
	}
	if err := upsertSchemaVersion(ctx, tx, driver.Type(), version.SchemaVersion); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	slog.Info("database initialized successfully", slog.String("schemaVersion", version.SchemaVersion))
	return nil
}

// applyMigrations applies all migration files between current and target versions in one transaction.
func (s *Store) applyMigrations(ctx context.Context, driver SQLDriver, currentSchemaVersion, targetSchemaVersion string) error {
	filePaths, err := fs.Glob(migrationFS, fmt.Sprintf("migration/%s/*/*.sql", driver.Type()))
	if err != nil {
		return errors.Wrap(err, "failed to read migration files")
	}
	sort.Strings(filePaths)

	tx, err := driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	slog.Info("start migration",
		slog.String("currentSchemaVersion", getSchemaVersionOrDefault(currentSchemaVersion)),
		slog.String("targetSchemaVersion", targetSchemaVersion))

	migrationsApplied := 0
	for _, filePath := range filePaths {
		fileSchemaVersion, err := schemaVersionOfMigrateScript(filePath)
		if err != nil {
			return errors.Wrap(err, "failed to get schema version of migrate script")
		}
		if !shouldApplyMigration(fileSchemaVersion, currentSchemaVersion, targetSchemaVersion) {
			continue
		}
		if err := validateMigrationFileName(filepath.Base(filePath)); err != nil {
			slog.Warn("migration file has invalid name but will be applied", slog.String("file", filePath), slog.String("error", err.Error()))
		}
		slog.Info("applying migration", slog.String("file", filePath), slog.String("version", fileSchemaVersion))
		bytes, err := migrationFS.ReadFile(filePath)
		if err != nil {
			return errors.Wrapf(err, "failed to read migration file: %s", filePath)
		}
		if _, err := tx.ExecContext(ctx, string(bytes)); err != nil {
			return errors.Wrapf(err, "failed to execute migration %s", filePath)
		}
		migrationsApplied++
	}

	if err := upsertSchemaVersion(ctx, tx, driver.Type(), targetSchemaVersion); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit migration transaction")
	}
	slog.Info("migration completed", slog.Int("migrationsApplied", migrationsApplied))
	return nil
}

// seed inserts demo events. Seed files must be idempotent.
func (s *Store) seed(ctx context.Context, driver SQLDriver) error {
	filenames, err := fs.Glob(seedFS, fmt.Sprintf("seed/%s/*.sql", driver.Type()))
	if err != nil {
		return errors.Wrap(err, "failed to read seed files")
	}
	if len(filenames) == 0 {
		slog.Warn("no seed files for driver, skipping", slog.String("driver", driver.Type()))
		return nil
	}
	sort.Strings(filenames)
	tx, err := driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()
	for _, filename := range filenames {
		bytes, err := seedFS.ReadFile(filename)
		if err != nil {
			return errors.Wrapf(err, "failed to read seed file, filename=%s", filename)
		}
		if _, err := tx.ExecContext(ctx, string(bytes)); err != nil {
			return errors.Wrapf(err, "seed error: %s", filename)
		}
	}
	return tx.Commit()
}

func (s *Store) getSchemaVersion(ctx context.Context, driver SQLDriver) (string, error) {
	query := "SELECT value FROM system_setting WHERE name = " + placeholder(driver.Type(), 1)
	var value string
	if err := driver.GetDB().QueryRowContext(ctx, query, schemaVersionKey).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func upsertSchemaVersion(ctx context.Context, tx *sql.Tx, driverType, schemaVersion string) error {
	stmt := fmt.Sprintf(
		"INSERT INTO system_setting (name, value) VALUES (%s, %s) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
		placeholder(driverType, 1), placeholder(driverType, 2),
	)
	if _, err := tx.ExecContext(ctx, stmt, schemaVersionKey, schemaVersion); err != nil {
		return errors.Wrap(err, "failed to update current schema version")
	}
	return nil
}

func placeholder(driverType string, n int) string {
	if driverType == "postgres" {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}
