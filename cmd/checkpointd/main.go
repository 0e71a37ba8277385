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

	"fleet-checkpoint/config"
	"fleet-checkpoint/internal/api"
	"fleet-checkpoint/internal/db"
	"fleet-checkpoint/internal/fleetapi"
	"fleet-checkpoint/internal/frame"
	"fleet-checkpoint/internal/journal"
	"fleet-checkpoint/internal/metrics"
	"fleet-checkpoint/internal/mw"
	"fleet-checkpoint/internal/notification"
	"fleet-checkpoint/internal/roster"
	"fleet-checkpoint/internal/scan"
	"fleet-checkpoint/internal/store"
	"fleet-checkpoint/internal/turn"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	logger := log.New(os.Stdout, "checkpointd ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	var webpushOptions *webpush.Options
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
	} else {
		logger.Println("VAPID keys not configured; push notifications disabled")
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	appStore := store.NewGormStore(gormDB)
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	client, err := fleetapi.NewClient(cfg.API)
	if err != nil {
		logger.Fatalf("failed to create fleet API client: %v", err)
	}
	if client.Session() == nil && cfg.API.Username != "" {
		loginCtx, loginCancel := context.WithTimeout(ctx, cfg.API.Timeout)
		session, err := client.Login(loginCtx, cfg.API.Username, cfg.API.Password)
		loginCancel()
		if err != nil {
			logger.Fatalf("fleet API login failed: %s", fleetapi.ErrorMessage(err, err.Error()))
		}
		client = client.WithSession(session)
		defer session.Close()
		logger.Printf("logged in to fleet API as %s", cfg.API.Username)
	}

	drivers := roster.New(client)
	drivers.SetObserver(m)
	go drivers.Run(ctx, cfg.Roster.Refresh)

	executor := turn.NewExecutor(client, drivers)
	pipeline := scan.NewPipeline(drivers, executor, roster.ResolveOptions{AllowNameMatch: cfg.Scanner.AllowNameMatch})
	controller := scan.NewController(pipeline, executor, scan.TimingFromConfig(cfg.Scanner))

	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
	workerPool.SetObserver(m)

	responses := mw.NewResponseCache(time.Duration(cfg.Server.CacheTTLSeconds) * time.Second)
	journalOpts := journal.Options{
		Observer:   m,
		OnRecorded: responses.Purge,
	}
	if webpushOptions != nil {
		workerPool.Start(ctx)
		journalOpts.Notifier = workerPool
	}

	alerts, err := notification.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		logger.Printf("Telegram alerts disabled: %v", err)
	} else if alerts != nil {
		alerts.SetObserver(m)
		journalOpts.Alerter = alerts
	}

	recorder := journal.NewRecorder(appStore, journalOpts)
	go recorder.Run(ctx)
	controller.OnReport(recorder.Record)

	var frames <-chan frame.Event
	opener, err := frame.OpenerFromConfig(cfg.Camera)
	if err != nil {
		logger.Printf("camera disabled: %v", err)
	} else {
		loop := frame.NewLoop(opener, frame.NewQRDecoder(), cfg.Camera.FrameRate)
		loop.SetObserver(m)
		frames, err = loop.Start(ctx)
		if err != nil {
			logger.Printf("camera unavailable, accepting submitted payloads only: %v", err)
		}
	}

	controllerDone := make(chan struct{})
	go func() {
		defer close(controllerDone)
		if err := controller.Run(ctx, frames); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("scan controller stopped: %v", err)
		}
	}()

	handler := api.NewHandler(api.Deps{
		Store:    appStore,
		Webpush:  webpushOptions,
		Scanner:  controller,
		Roster:   drivers,
		Upstream: client,
	})
	router := api.NewRouter(handler, cfg.Server, responses, registry)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server Shutdown: %v", err)
	}
	cancel()
	<-controllerDone

	logger.Println("Server gracefully stopped")
}
