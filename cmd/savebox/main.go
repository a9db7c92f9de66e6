package main

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/savebox/internal/api"
	"github.com/mtlprog/savebox/internal/box"
	"github.com/mtlprog/savebox/internal/config"
	"github.com/mtlprog/savebox/internal/database"
	"github.com/mtlprog/savebox/internal/export"
	"github.com/mtlprog/savebox/internal/rate"
	"github.com/mtlprog/savebox/internal/worker"
	"github.com/mtlprog/savebox/internal/yield"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	// Load .env file for local development (ignore errors in production)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:   "savebox",
		Usage:  "family savings boxes with benchmark-indexed yield",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and background workers",
				Action: serve,
			},
			{
				Name:  "rate",
				Usage: "print the current benchmark rate",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "refresh", Usage: "bypass the cache"},
				},
				Action: showRate,
			},
			{
				Name:   "accrue",
				Usage:  "accrue yield on every box once",
				Action: accrueOnce,
			},
			{
				Name:  "export",
				Usage: "export boxes",
				Subcommands: []*cli.Command{
					{
						Name:  "statement",
						Usage: "write a box statement as xlsx",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "family", Required: true},
							&cli.StringFlag{Name: "box", Required: true},
							&cli.StringFlag{Name: "out", Value: "statement.xlsx"},
						},
						Action: exportStatement,
					},
					{
						Name:   "sheets",
						Usage:  "write all boxes to the configured Google spreadsheet",
						Action: exportSheets,
					},
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatalf("savebox: %v", err)
	}
}

// app holds the wired services shared by the commands.
type app struct {
	cfg   config.Config
	pool  *pgxpool.Pool
	rates *rate.Cache
	boxes *box.Service
}

func newRates(cfg config.Config) *rate.Cache {
	client := rate.NewBCBClient(cfg.BCBURL, cfg.CDISeriesCode, cfg.CDIRequestTimeout)
	return rate.NewCache(client, rate.CacheConfig{
		TTL:                cfg.CDICacheTTL,
		Timeout:            cfg.CDIRequestTimeout,
		FallbackAnnualRate: cfg.CDIFallbackRate,
		SeriesCode:         cfg.CDISeriesCode,
	})
}

// setup connects to the database, applies migrations and wires services.
func setup(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	migrationsSub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating migrations sub-fs: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrationsSub); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	rates := newRates(cfg)
	engine := yield.NewEngine(rates, cfg.Location())
	boxes := box.NewService(box.NewPgRepository(pool), engine)

	return &app{cfg: cfg, pool: pool, rates: rates, boxes: boxes}, nil
}

func (a *app) sheetsExport(ctx context.Context) (*export.Service, error) {
	if !a.cfg.SheetsEnabled() {
		return nil, nil
	}
	writer, err := export.NewSheetsWriter(ctx, a.cfg.GoogleSheetsID, a.cfg.GoogleCredentialsJSON)
	if err != nil {
		return nil, err
	}
	return export.NewService(a.boxes, writer), nil
}

func serve(c *cli.Context) error {
	ctx := c.Context
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.pool.Close()

	exporter, err := a.sheetsExport(ctx)
	if err != nil {
		return err
	}
	var hook worker.AfterAccrualHook
	if exporter != nil {
		hook = exporter
	} else {
		slog.Info("Google Sheets export disabled - GOOGLE_SHEETS_ID or GOOGLE_CREDENTIALS_JSON not set")
	}

	// Start workers
	go worker.NewRateWorker(a.rates, a.cfg.RateWorkerInterval).Run(ctx)
	go worker.NewAccrualWorker(a.boxes, a.cfg.AccrualWorkerInterval, hook).Run(ctx)

	if a.cfg.APIKey == "" {
		slog.Warn("API_KEY not set, API is unprotected")
	}

	srv := api.NewServer(a.cfg.HTTPPort, a.boxes, a.rates, a.cfg.APIKey, a.cfg.Location())

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s", a.cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("HTTP server: %w", err)
	}
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

func showRate(c *cli.Context) error {
	cfg := config.Load()
	snap, err := newRates(cfg).Resolve(c.Context, rate.ResolveOptions{ForceRefresh: c.Bool("refresh"), AllowStale: true})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func accrueOnce(c *cli.Context) error {
	a, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer a.pool.Close()

	n, err := a.boxes.AccrueAll(c.Context)
	fmt.Fprintf(c.App.Writer, "accrued %d boxes\n", n)
	return err
}

func exportStatement(c *cli.Context) error {
	id, err := uuid.Parse(c.String("box"))
	if err != nil {
		return fmt.Errorf("invalid --box: %w", err)
	}

	a, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer a.pool.Close()

	st, err := a.boxes.Statement(c.Context, c.String("family"), id)
	if err != nil {
		return err
	}

	f, err := os.Create(c.String("out"))
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := export.WriteStatement(f, st); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "statement of %q written to %s\n", st.Box.Name, c.String("out"))
	return nil
}

func exportSheets(c *cli.Context) error {
	a, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer a.pool.Close()

	exporter, err := a.sheetsExport(c.Context)
	if err != nil {
		return err
	}
	if exporter == nil {
		return fmt.Errorf("GOOGLE_SHEETS_ID and GOOGLE_CREDENTIALS_JSON are required")
	}
	return exporter.Export(c.Context)
}
