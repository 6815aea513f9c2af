package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"listingpilot/backend/internal/api/handlers"
	"listingpilot/backend/internal/api/routes"
	"listingpilot/backend/internal/config"
	"listingpilot/backend/internal/dispatch"
	"listingpilot/backend/internal/fillers"
	"listingpilot/backend/internal/history"
	"listingpilot/backend/internal/orchestrator"
	"listingpilot/backend/internal/page"
	"listingpilot/backend/internal/recorder"
	"listingpilot/backend/internal/services"
	"listingpilot/backend/internal/tasks"
	"listingpilot/backend/internal/transport"
	"listingpilot/backend/pkg/auth"
	"listingpilot/backend/pkg/chrome"
	"listingpilot/backend/pkg/database"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the engine behind HTTP, NATS and SQS",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "override SERVER_PORT"},
			&cli.StringFlag{Name: "chrome-debug-url", Usage: "attach to a running Chrome instead of launching one"},
			&cli.StringFlag{Name: "selectors", Usage: "YAML selector catalog overriding the built-in lists"},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if v := c.String("port"); v != "" {
		cfg.Server.Port = v
	}
	if v := c.String("chrome-debug-url"); v != "" {
		cfg.Chrome.DebugURL = v
	}
	if v := c.String("selectors"); v != "" {
		cfg.SelectorsFile = v
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	auth.InitJWT(cfg.JWT.Secret)

	if err := database.InitDatabase(cfg); err != nil {
		return err
	}
	defer database.Close()

	catalog, err := fillers.LoadCatalog(cfg.SelectorsFile)
	if err != nil {
		return err
	}

	store, closeStore, err := openMappingStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	browser := chrome.NewBrowser(cfg.Chrome, cfg.Marketplace.CreatePath)
	if err := browser.Start(ctx); err != nil {
		return err
	}
	defer browser.Close()
	tab := page.NewChromePage(browser.Attach)
	defer tab.Close()

	queue := tasks.NewQueue(cfg.Queue.Workers, cfg.Queue.Buffer, 30*time.Second)
	queue.Start()

	api := &handlers.API{StartedAt: time.Now(), Mappings: store}

	var sink orchestrator.AttemptSink
	var scheduler *services.SchedulerService
	if database.DB != nil {
		repo := history.NewRepository(database.DB)
		sink = history.NewAsyncWriter(queue, repo)
		api.Attempts = repo

		scheduler = services.NewScheduler(repo, cfg.History.RetentionDays)
		if err := scheduler.Start(cfg.History.PurgeCron); err != nil {
			return err
		}
	}

	engine := newEngine(cfg, catalog, tab, store, sink)
	dispatcher := dispatch.New(engine, dispatch.WithLifetime(ctx))
	manager := recorder.NewManager(tab, store, engine, recorder.DefaultPacing())

	api.Engine = engine
	api.Messages = dispatcher
	api.Recordings = manager

	if cfg.Queue.NATSURL != "" {
		responder, err := transport.NewNATSResponder(cfg.Queue.NATSURL, cfg.Queue.NATSSubject, dispatcher)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		defer responder.Close()
		if err := responder.Start(ctx); err != nil {
			return err
		}
	}

	if cfg.Queue.SQSQueueURL != "" {
		client, err := transport.NewDefaultSQSClient(ctx)
		if err != nil {
			return err
		}
		consumer := transport.NewSQSConsumer(client, cfg.Queue.SQSQueueURL, cfg.Queue.SQSWaitSeconds, dispatcher)
		go consumer.Run(ctx)
	}

	gin.SetMode(cfg.Server.Mode)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      routes.SetupRoutes(api),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("🚀 Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	manager.Shutdown()
	if scheduler != nil {
		scheduler.Stop()
	}
	if err := queue.Stop(shutdownCtx); err != nil {
		log.Printf("⚠️ Task queue: %v", err)
	}
	log.Println("Server shutdown complete")
	return nil
}
