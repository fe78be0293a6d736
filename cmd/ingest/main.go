package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresuchdata/storeresults/backend-go/internal/cache"
	"github.com/andresuchdata/storeresults/backend-go/internal/config"
	"github.com/andresuchdata/storeresults/backend-go/internal/domain"
	"github.com/andresuchdata/storeresults/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/storeresults/backend-go/internal/service"
	"github.com/andresuchdata/storeresults/backend-go/internal/storage"
	"github.com/andresuchdata/storeresults/backend-go/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

type envKey struct{}

// env is what every command needs once the database is open.
type env struct {
	db       *postgres.DB
	services *service.Container
}

func fromContext(c *cli.Context) *env {
	e, _ := c.Context.Value(envKey{}).(*env)
	return e
}

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func periodFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "month", Usage: "Month of the data (1-12)", Required: true},
		&cli.IntFlag{Name: "year", Usage: "Year of the data", Required: true},
	}
}

func periodFrom(c *cli.Context) (domain.Period, error) {
	return domain.NewPeriod(c.Int("month"), c.Int("year"))
}

func openEnv(c *cli.Context) error {
	logger.SetLevel(c.String("log-level"))

	db, err := postgres.Open(c.String("driver"), c.String("db-url"))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(c.Context); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	cfg := config.Load()
	analyticsCache, err := cache.NewAnalyticsCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("redis unavailable, cache invalidation skipped")
		analyticsCache = cache.NewNoopAnalyticsCache()
	}
	archive, err := storage.NewArchive(c.Context, cfg.Storage, cfg.App.UploadDir)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("upload archive unavailable")
	}

	e := &env{
		db: db,
		services: service.NewContainer(db, service.Options{
			Cache:            analyticsCache,
			Archive:          archive,
			Workers:          c.Int("workers"),
			DefaultThreshold: cfg.Alerts.DefaultThresholdPercent,
		}),
	}
	c.Context = context.WithValue(c.Context, envKey{}, e)
	return nil
}

func closeEnv(c *cli.Context) error {
	if e := fromContext(c); e != nil && e.db != nil {
		return e.db.Close()
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		logger.Log.Warn().Err(err).Msg("could not load .env file")
	}

	app := &cli.App{
		Name:  "ingest",
		Usage: "Import store results spreadsheets and manage alerts",
		Flags: []cli.Flag{
			newDBURLFlag(),
			&cli.StringFlag{
				Name:    "driver",
				Usage:   "database/sql driver (pgx, postgres or sqlite3)",
				Value:   "pgx",
				EnvVars: []string{"DB_DRIVER"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Parallel row resolution workers",
				Value:   4,
				EnvVars: []string{"INGEST_WORKERS"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: openEnv,
		After:  closeEnv,
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Apply the database schema",
				Action: runMigrate,
			},
			{
				Name:  "import",
				Usage: "Import one spreadsheet export",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Path to the .xlsx export", Required: true},
					&cli.StringFlag{Name: "dataset", Aliases: []string{"d"}, Usage: "results, complementary or satisfaction", Required: true},
					&cli.StringFlag{Name: "uploaded-by", Value: "cli", EnvVars: []string{"USER"}},
				}, periodFlags()...),
				Action: runImport,
			},
			{
				Name:  "stores",
				Usage: "Store registry commands",
				Subcommands: []*cli.Command{
					{
						Name:  "import",
						Usage: "Load the registry from a spreadsheet (name, zone, email columns)",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true},
						},
						Action: runStoresImport,
					},
					{
						Name:   "list",
						Usage:  "Print the registry",
						Action: runStoresList,
					},
				},
			},
			{
				Name:  "alerts",
				Usage: "Low-performance alerts",
				Subcommands: []*cli.Command{
					{
						Name:  "scan",
						Usage: "Raise alerts for stores below the threshold",
						Flags: append([]cli.Flag{
							&cli.Float64Flag{Name: "threshold", Usage: "Deviation threshold in percent (e.g. -10)"},
						}, periodFlags()...),
						Action: runAlertsScan,
					},
					{
						Name:  "list",
						Usage: "List alerts",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "status", Usage: "pending or resolved"},
							&cli.IntFlag{Name: "limit", Value: 50},
						},
						Action: runAlertsList,
					},
					{
						Name:  "resolve",
						Usage: "Close a pending alert",
						Flags: []cli.Flag{
							&cli.Int64Flag{Name: "id", Required: true},
							&cli.StringFlag{Name: "notes"},
						},
						Action: runAlertsResolve,
					},
				},
			},
			{
				Name:  "archive",
				Usage: "Archived uploads",
				Subcommands: []*cli.Command{
					{
						Name:  "replay",
						Usage: "Re-import archived uploads under a key prefix (e.g. imports/results/2025/)",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "prefix", Value: "imports/"},
						},
						Action: runArchiveReplay,
					},
				},
			},
			{
				Name:      "resolve",
				Usage:     "Show which store each label would approximately match (diagnostic only)",
				ArgsUsage: "<label>...",
				Action:    runResolve,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("ingest failed")
	}
}

func runMigrate(c *cli.Context) error {
	if err := fromContext(c).db.Migrate(c.Context); err != nil {
		return err
	}
	logger.Log.Info().Msg("schema applied")
	return nil
}

func runImport(c *cli.Context) error {
	dataset, err := domain.ParseDatasetType(c.String("dataset"))
	if err != nil {
		return err
	}
	period, err := periodFrom(c)
	if err != nil {
		return err
	}
	path := c.String("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	outcome, err := fromContext(c).services.Imports.Import(c.Context, domain.ImportRequest{
		Dataset:    dataset,
		Period:     period,
		UploadedBy: c.String("uploaded-by"),
		Filename:   filepath.Base(path),
		Data:       data,
	})
	if err != nil {
		return err
	}
	logger.Log.Info().Str("import_id", outcome.ImportID).Msg(outcome.String())
	return printJSON(outcome)
}

func runStoresImport(c *cli.Context) error {
	path := c.String("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	results, err := fromContext(c).services.Imports.ImportStores(c.Context, data)
	if err != nil {
		return err
	}
	return printJSON(results)
}

func runStoresList(c *cli.Context) error {
	stores, err := fromContext(c).services.Stores.List(c.Context)
	if err != nil {
		return err
	}
	return printJSON(stores)
}

func runAlertsScan(c *cli.Context) error {
	period, err := periodFrom(c)
	if err != nil {
		return err
	}
	var threshold *float64
	if c.IsSet("threshold") {
		v := c.Float64("threshold")
		threshold = &v
	}
	result, err := fromContext(c).services.Alerts.Scan(c.Context, threshold, period)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func runAlertsList(c *cli.Context) error {
	filter := domain.AlertFilter{Limit: c.Int("limit")}
	if raw := c.String("status"); raw != "" {
		status, ok := domain.ParseAlertStatus(raw)
		if !ok {
			return fmt.Errorf("unknown alert status %q", raw)
		}
		filter.Status = status
	}
	alerts, err := fromContext(c).services.Alerts.List(c.Context, filter)
	if err != nil {
		return err
	}
	return printJSON(alerts)
}

func runAlertsResolve(c *cli.Context) error {
	alert, err := fromContext(c).services.Alerts.Resolve(c.Context, c.Int64("id"), c.String("notes"))
	if err != nil {
		return err
	}
	return printJSON(alert)
}

func runArchiveReplay(c *cli.Context) error {
	results, err := fromContext(c).services.Imports.ReplayArchive(c.Context, c.String("prefix"))
	if err != nil {
		return err
	}
	return printJSON(results)
}

func runResolve(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one label is required")
	}
	results, err := fromContext(c).services.Stores.ResolveApproximate(c.Context, c.Args().Slice())
	if err != nil {
		return err
	}
	return printJSON(results)
}
