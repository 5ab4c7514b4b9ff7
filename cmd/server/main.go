package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	medaiwebui "github.com/medgrove/medai-web-ui"
	"github.com/medgrove/medai-web-ui/internal/backend"
	"github.com/medgrove/medai-web-ui/internal/chat"
	"github.com/medgrove/medai-web-ui/internal/handlers"
	"github.com/medgrove/medai-web-ui/internal/models"
	"github.com/medgrove/medai-web-ui/internal/safety"
	"github.com/medgrove/medai-web-ui/internal/services"
)

const defaultGreeting = "Hello! I'm your MedAI assistant. How can I help you today?"

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, "medai-web-ui")
	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfgFile, err := os.Open(filepath.Join(cfgPath, "config.yaml"))
	if err != nil {
		log.Fatal(fmt.Errorf("error opening config file: %w", err))
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		log.Fatal(fmt.Errorf("error decoding config file: %w", err))
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Backend.URL == "" {
		log.Fatal("backend url is required")
	}
	if cfg.Greeting == "" {
		cfg.Greeting = defaultGreeting
	}
	if cfg.StatsRefreshSeconds <= 0 {
		cfg.StatsRefreshSeconds = 60
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	apiKey := cfg.Backend.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("MEDAI_API_KEY")
	}
	client := backend.NewClient(cfg.Backend.URL, apiKey, logger)

	assistant, err := cfg.Assistant.assistant(cfg.SystemPrompt, client)
	if err != nil {
		log.Fatal(fmt.Errorf("error building assistant: %w", err))
	}

	boltDB, err := services.NewBoltDB(filepath.Join(cfgPath, "store.db"))
	if err != nil {
		log.Fatal(fmt.Errorf("error opening session store: %w", err))
	}
	defer boltDB.Close()

	m, err := handlers.NewMain(
		models.NewSession(),
		assistant,
		safety.NewGate(cfg.EmergencyKeywords, cfg.HighRiskSymptoms),
		boltDB,
		client,
		logger,
		chat.Options{
			Greeting:         cfg.Greeting,
			KeepFlaggedInput: cfg.KeepFlaggedInput,
		},
	)
	if err != nil {
		log.Fatal(fmt.Errorf("error building handlers: %w", err))
	}

	statsCtx, statsCancel := context.WithCancel(context.Background())
	go m.Stats().Run(statsCtx, time.Duration(cfg.StatsRefreshSeconds)*time.Second)

	// Serve static files
	staticFS, err := fs.Sub(medaiwebui.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/dashboard", m.HandleDashboard)
	mux.HandleFunc("/chat", m.HandleChat)
	mux.HandleFunc("/chat/clear", m.HandleClear)
	mux.HandleFunc("/chat/save", m.HandleSave)
	mux.HandleFunc("/upload", m.HandleUpload)
	mux.HandleFunc("/history", m.HandleHistory)
	mux.HandleFunc("/history/download", m.HandleDownload)
	mux.HandleFunc("/history/clear", m.HandleHistoryClear)
	mux.HandleFunc("/history/delete", m.HandleHistoryDelete)
	mux.HandleFunc("GET /history/{id}", m.HandleConversation)
	mux.HandleFunc("/sse", m.HandleSSE)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		statsCancel()
		if err := m.Shutdown(context.Background()); err != nil {
			log.Printf("Failed to shutdown sse server: %v", err)
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		log.Println("Server starting on :" + cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)

		// The listener is already gone, so srv.Shutdown never runs the
		// registered hooks; wind down the background work directly.
		statsCancel()
		if err := m.Shutdown(context.Background()); err != nil {
			log.Printf("Failed to shutdown sse server: %v", err)
		}

	case sig := <-shutdown:
		log.Printf("Start shutdown, signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("Forcing server close: %v", err)
			}
		}
	}
}
