package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	crawshawpool "github.com/caasmo/crawshaw-pool"
	"github.com/caasmo/crawshaw-pool/crawshaw"
)

func main() {
	dbPath := flag.String("db", "", "Path to the SQLite database file (required)")
	configPath := flag.String("config", "", "Path to a TOML pool configuration file")
	conns := flag.Int("conns", 4, "Number of connections to check out concurrently")
	verbose := flag.Bool("v", false, "Enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -db <database-path> [-config <file>] [-conns n]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Open a connection pool, probe it concurrently and record its configuration.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *dbPath == "" || *conns < 1 {
		flag.Usage()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := crawshawpool.DefaultConfig(*dbPath)
	if *configPath != "" {
		loaded, err := crawshawpool.LoadConfig(*configPath)
		if err != nil {
			slog.Error("failed to load configuration", "error", err)
			os.Exit(1)
		}
		loaded.Path = *dbPath
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *conns, logger); err != nil {
		slog.Error("example failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg crawshawpool.Config, conns int, logger *slog.Logger) error {
	p, err := crawshawpool.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	// Close blocks until every connection is back, so it runs last.
	defer func() {
		slog.Info("Closing database pool...")
		p.Close()
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := range conns {
		g.Go(func() error {
			c, err := p.Get(gctx)
			if err != nil {
				return fmt.Errorf("checkout %d: %w", i, err)
			}
			defer p.Put(c)

			var version string
			err = sqlitex.Exec(c.Value(), "SELECT sqlite_version();", func(stmt *sqlite.Stmt) error {
				version = stmt.ColumnText(0)
				return nil
			})
			if err != nil {
				return fmt.Errorf("checkout %d: %w", i, err)
			}
			slog.Debug("connection ready", "checkout", i, "sqlite_version", version)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	db, err := crawshaw.New(p)
	if err != nil {
		return err
	}
	if err := db.InitSchema(ctx); err != nil {
		return err
	}
	content, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := db.SaveConfig(ctx, content); err != nil {
		return err
	}

	st := p.Stat()
	attrs := []any{
		"pool", p.ID(),
		"total", st.Total,
		"idle", st.Idle,
		"max", st.Max,
		"acquires", st.AcquireCount,
		"validation_failures", st.ValidationFailures,
	}
	if fi, err := os.Stat(cfg.Path); err == nil {
		attrs = append(attrs, "db_size", humanize.Bytes(uint64(fi.Size())))
	}
	slog.Info("pool checked", attrs...)
	return nil
}
