package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/agenda/internal/profile"
	"github.com/hrygo/agenda/internal/version"
	"github.com/hrygo/agenda/plugin/kafka"
	"github.com/hrygo/agenda/server"
	"github.com/hrygo/agenda/server/service/schedule"
	"github.com/hrygo/agenda/store"
	"github.com/hrygo/agenda/store/db"
	"github.com/hrygo/agenda/store/lock"
)

var (
	rootCmd = &cobra.Command{
		Use:   "agenda",
		Short: "A single-calendar scheduling service with working hours and conflict detection.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (the default command).",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context())
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version.",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.GetCurrentVersion(viper.GetString("mode")))
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)
	viper.SetDefault("timezone", profile.DefaultTimezone)
	viper.SetDefault("open-hour", profile.DefaultOpenHour)
	viper.SetDefault("close-hour", profile.DefaultCloseHour)
	viper.SetDefault("slot-step", profile.DefaultSlotStep)

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8081, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "event store driver: memory, csv, sqlite, postgres, caldav, google")
	flags.String("dsn", "", "driver DSN (file path, postgres URL)")
	flags.String("timezone", profile.DefaultTimezone, "IANA name of the deployment timezone")
	flags.Int("open-hour", profile.DefaultOpenHour, "first working hour")
	flags.Int("close-hour", profile.DefaultCloseHour, "hour at which working hours end")
	flags.Int("slot-step", profile.DefaultSlotStep, "slot step in minutes")
	flags.String("config", "", "optional config file (yaml, toml or json)")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "timezone", "open-hour", "close-hour", "slot-step", "config"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("agenda")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, migrateCmd, versionCmd)
}

// loadProfile reads .env, the optional config file, flags and AGENDA_* variables.
func loadProfile() (*profile.Profile, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	p := &profile.Profile{
		Mode:      viper.GetString("mode"),
		Addr:      viper.GetString("addr"),
		Port:      viper.GetInt("port"),
		Data:      viper.GetString("data"),
		Driver:    viper.GetString("driver"),
		DSN:       viper.GetString("dsn"),
		Timezone:  viper.GetString("timezone"),
		OpenHour:  viper.GetInt("open-hour"),
		CloseHour: viper.GetInt("close-hour"),
		SlotStep:  viper.GetInt("slot-step"),
	}
	p.FromEnv()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Version = version.GetCurrentVersion(p.Mode)
	return p, nil
}

func newLogger(p *profile.Profile, w io.Writer) *slog.Logger {
	if p.IsDev() {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func newLocker(ctx context.Context, p *profile.Profile) (store.Locker, func() error, error) {
	if !p.IsRedisEnabled() {
		return lock.NewLocal(), func() error { return nil }, nil
	}
	cfg := lock.DefaultRedisConfig()
	cfg.Addr = p.RedisAddr
	cfg.Password = p.RedisPassword
	cfg.DB = p.RedisDB
	cfg.Key = p.RedisLockKey
	locker, err := lock.NewRedis(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return locker, locker.Close, nil
}

// openStore builds the driver and the locker and migrates the schema.
func openStore(ctx context.Context, p *profile.Profile) (*store.Store, func(), error) {
	driver, err := db.NewDBDriver(ctx, p)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create db driver: %w", err)
	}
	locker, closeLocker, err := newLocker(ctx, p)
	if err != nil {
		driver.Close()
		return nil, nil, fmt.Errorf("failed to create calendar lock: %w", err)
	}
	st := store.New(driver, p, locker)
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		closeLocker()
		return nil, nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return st, func() {
		if err := closeLocker(); err != nil {
			slog.Warn("failed to close calendar lock", slog.String("error", err.Error()))
		}
	}, nil
}

func newScheduleService(p *profile.Profile, st *store.Store) (schedule.Service, func(), error) {
	opts := []schedule.Option{
		schedule.WithLocation(p.Location()),
		schedule.WithWorkingHours(schedule.WorkingHours{
			Open:      p.OpenHour,
			Close:     p.CloseHour,
			Precision: schedule.Precision(p.WorkingHoursPrecision),
		}),
	}
	cleanup := func() {}
	if p.IsKafkaEnabled() {
		publisher, err := kafka.NewPublisher(kafka.PublisherConfig{Brokers: p.KafkaBrokers, Topic: p.KafkaTopic})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, schedule.WithNotifier(publisher))
		cleanup = func() {
			if err := publisher.Close(); err != nil {
				slog.Warn("failed to close kafka publisher", slog.String("error", err.Error()))
			}
		}
	}
	svc, err := schedule.NewService(st, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

func serve(ctx context.Context) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	logger := newLogger(p, os.Stderr)
	slog.SetDefault(logger)

	st, closeStore, err := openStore(ctx, p)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, closeService, err := newScheduleService(p, st)
	if err != nil {
		st.Close()
		return err
	}
	defer closeService()

	printGreetings(p)
	return server.NewServer(p, st, svc, logger).Start(ctx)
}

func migrate(ctx context.Context) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	slog.SetDefault(newLogger(p, os.Stderr))

	st, closeStore, err := openStore(ctx, p)
	if err != nil {
		return err
	}
	defer closeStore()
	defer st.Close()
	slog.Info("schema is up to date", slog.String("driver", p.Driver), slog.String("schemaVersion", version.SchemaVersion))
	return nil
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("Agenda %s started successfully!\n", p.Version)
	fmt.Printf("Driver %s, timezone %s, working hours %02d:00-%02d:00 (%s precision)\n",
		p.Driver, p.Timezone, p.OpenHour, p.CloseHour, p.WorkingHoursPrecision)
	if p.Addr == "" {
		fmt.Printf("Listening on port %d\n", p.Port)
	} else {
		fmt.Printf("Listening on %s:%d\n", p.Addr, p.Port)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("agenda exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
