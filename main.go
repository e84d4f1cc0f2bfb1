package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Zachkp/folio/internal/config"
	"github.com/Zachkp/folio/internal/content"
	"github.com/Zachkp/folio/internal/logger"
	"github.com/Zachkp/folio/internal/store"
)

var (
	app        = kingpin.New("folio", "Personal portfolio site")
	configPath = app.Flag("config", "Path to config file").Default("config.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()

	serveCmd   = app.Command("serve", "Serve the site (default)").Default()
	migrateCmd = app.Command("migrate", "Apply database migrations and exit")
	migrateDn  = migrateCmd.Flag("down", "Roll back every migration").Bool()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.Config{Output: cfg.Log.Output, Level: cfg.Log.Level}
	if *verbose {
		logCfg.Level = "debug"
	}
	if err := logger.Init(logCfg); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	switch command {
	case migrateCmd.FullCommand():
		err = migrate(cfg)
	case serveCmd.FullCommand():
		err = run(cfg)
	}
	if err != nil {
		zlog.Error().Err(err).Msg("Exiting")
		os.Exit(1)
	}
}

func migrate(cfg *config.Config) error {
	db, err := store.Open(context.Background(), cfg.Store.Path, false)
	if err != nil {
		return err
	}
	defer db.Close()

	action := store.MigrateUp
	if *migrateDn {
		action = store.MigrateDown
	}
	if err := store.Migrate(db.DB(), action); err != nil {
		return err
	}
	zlog.Info().Str("path", cfg.Store.Path).Msg("Migrations applied")
	return nil
}

// run serves until SIGINT/SIGTERM, then shuts the server and its
// background workers down together.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.Server.Mode)

	db, err := store.Open(ctx, cfg.Store.Path, true)
	if err != nil {
		return err
	}
	defer db.Close()

	profile, err := content.Load(cfg.Site.Content)
	if err != nil {
		return err
	}

	s := newSite(cfg, profile, db)
	router := newRouter(s)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zlog.Info().
			Str("addr", cfg.Server.Addr).
			Str("relay", s.relayName).
			Bool("relay_configured", cfg.RelayConfigured()).
			Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return s.views.Run(gctx)
	})

	g.Go(func() error {
		runRetention(gctx, db, cfg.Store.Retention)
		return nil
	})

	if cfg.Site.Content != "" {
		g.Go(func() error {
			return content.Watch(gctx, cfg.Site.Content, s.setProfile)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		zlog.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
