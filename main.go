package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/punkyapp/diabetes-cockpit/internal/bus"
	"github.com/punkyapp/diabetes-cockpit/internal/cache"
	"github.com/punkyapp/diabetes-cockpit/internal/cockpit"
	"github.com/punkyapp/diabetes-cockpit/internal/config"
	"github.com/punkyapp/diabetes-cockpit/internal/database"
	"github.com/punkyapp/diabetes-cockpit/internal/domain"
	"github.com/punkyapp/diabetes-cockpit/internal/logger"
	"github.com/punkyapp/diabetes-cockpit/internal/nightscout"
	"github.com/punkyapp/diabetes-cockpit/internal/notify"
	"github.com/punkyapp/diabetes-cockpit/internal/pin"
	"github.com/punkyapp/diabetes-cockpit/internal/repository"
	"github.com/punkyapp/diabetes-cockpit/internal/services"
	"github.com/punkyapp/diabetes-cockpit/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting Caregiver Cockpit...")

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.InitWithConfig(logger.Config{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	}); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	slogger := logger.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional archive: the history log survives sessions when a
	// database is configured.
	var archive domain.BatchArchive
	var seed []domain.RecommendationBatch
	if cfg.Archive.Enabled {
		db, err := database.NewPostgresDB(cfg.Archive)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		hist := repository.NewHistoryArchive(db)
		archive = hist
		if seed, err = hist.LoadBatches(ctx); err != nil {
			slogger.Warn("failed to warm-load recommendation history", "error", err)
			seed = nil
		}
		slogger.Info("recommendation archive ready", "batches", len(seed))
	}

	entries := store.NewEntryStore()
	history := store.NewHistoryLog(seed...)
	eventBus := bus.New()

	monitor := nightscout.NewClient(cfg.Nightscout.URL, cfg.Nightscout.APISecret,
		cfg.Nightscout.Token, cfg.Nightscout.UseToken)
	if err := monitor.TestConnection(ctx); err != nil {
		slogger.Warn("Nightscout not reachable at startup", "error", err)
	}

	advice, err := services.NewAdviceService(cfg.Advice.GeminiAPIKey, cfg.Advice.OpenAIAPIKey,
		services.Provider(cfg.Advice.Provider))
	if err != nil {
		log.Fatalf("Failed to create advice service: %v", err)
	}

	confirmer, err := pin.NewVerifier(cfg.PINHash, terminalPrompt)
	if err != nil {
		log.Fatalf("Failed to create PIN verifier: %v", err)
	}

	cp := cockpit.New(entries, history, eventBus, monitor, advice, confirmer, archive, slogger)

	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		notifier, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID,
			cfg.Alerts, slogger)
		if err != nil {
			log.Fatalf("Failed to create Telegram notifier: %v", err)
		}
		notifier.Attach(eventBus)
		defer notifier.Detach()
	}

	if cfg.Redis.Enabled {
		readingCache, err := cache.NewCurrentReadingCache(cfg.Redis.Host, cfg.Redis.Port, slogger)
		if err != nil {
			slogger.Warn("Redis not reachable, reading cache disabled", "error", err)
		} else {
			readingCache.Attach(eventBus)
			defer func() {
				readingCache.Detach()
				_ = readingCache.Close()
			}()
		}
	}

	if _, err := cp.Refresh(ctx); err != nil {
		slogger.Warn("initial refresh failed", "error", err)
	}

	slogger.Info("cockpit running", "refresh_interval_min", cfg.RefreshIntervalMinutes)

	ticker := time.NewTicker(time.Duration(cfg.RefreshIntervalMinutes) * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slogger.Info("shutting down")
			return
		case <-ticker.C:
			if _, err := cp.Refresh(ctx); err != nil {
				slogger.Warn("refresh failed", "error", err)
			}
		}
	}
}

// terminalPrompt reads the caregiver PIN from stdin. Any richer PIN
// dialog belongs to the presentation layer.
func terminalPrompt(ctx context.Context) (string, error) {
	fmt.Print("PIN: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
