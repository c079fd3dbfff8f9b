package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentum-hq/scribe/internal/config"
	"github.com/momentum-hq/scribe/internal/events"
	"github.com/momentum-hq/scribe/internal/ingest"
	"github.com/momentum-hq/scribe/internal/llm"
	"github.com/momentum-hq/scribe/internal/recall"
	"github.com/momentum-hq/scribe/internal/server"
	"github.com/momentum-hq/scribe/internal/session"
	"github.com/momentum-hq/scribe/internal/storage"
	"github.com/momentum-hq/scribe/internal/summary"
)

// sweepInterval paces the inactivity checks across all live sessions.
const sweepInterval = 30 * time.Second

// disabledProvider stands in when no provider API token is configured,
// so the rest of the service still serves queries and webhooks.
type disabledProvider struct{}

func (disabledProvider) CreateBot(context.Context, string) (string, error) {
	return "", errors.New("bot provisioning disabled: no provider API token configured")
}

func (disabledProvider) LeaveCall(context.Context, string) error {
	return errors.New("bot provisioning disabled: no provider API token configured")
}

func (disabledProvider) BotStatus(context.Context, string) (string, error) {
	return "", errors.New("bot provisioning disabled: no provider API token configured")
}

func main() {
	log.Println("scribe: starting")

	configPath := os.Getenv(config.EnvPrefix + "CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	archiver := storage.NewTranscriptArchiver(cfg.ArchiveDir)
	hub := server.NewHub()
	registry := session.NewRegistry()

	var sessionBus session.Publisher
	var ingestBus ingest.Publisher
	if cfg.NATSURL != "" {
		bus, busErr := events.Connect(cfg.NATSURL)
		if busErr != nil {
			log.Printf("warning: event bus disabled: %v", busErr)
		} else {
			defer bus.Close()
			sessionBus = bus
			ingestBus = bus
		}
	}

	var provider session.BotProvider = disabledProvider{}
	if cfg.RecallAPIToken != "" {
		var opts []recall.Option
		if cfg.RecallBaseURL != "" {
			opts = append(opts, recall.WithBaseURL(cfg.RecallBaseURL))
		}
		client, clientErr := recall.NewClient(cfg.RecallAPIToken, cfg.RecallBotName, cfg.WebhookURL, cfg.WebhookSecret, opts...)
		if clientErr != nil {
			log.Fatalf("provider client init failed: %v", clientErr)
		}
		provider = client
	}

	manager := session.NewManager(registry, store, provider, hub, sessionBus, cfg.WebhookSecret)
	manager.SetArchiver(archiver)

	pipeline := ingest.NewPipeline(registry, cfg.WebhookSecret, store, hub, ingestBus, cfg.ParsedInactivityTimeout())
	pipeline.SetArchiver(archiver)

	dispatcher := summary.NewDispatcher(registry, store, func(providerName, model string) (llm.Client, error) {
		key := cfg.APIKeyFor(providerName)
		if key == "" {
			return nil, errors.New("no API key configured for provider " + providerName)
		}
		return llm.NewClient(providerName, key, model)
	}, cfg.SummaryModel)

	srv := server.New(manager, pipeline, dispatcher, store, hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if expired := pipeline.Sweep(now); expired > 0 {
					log.Printf("expired %d idle sessions", expired)
				}
			}
		}
	}()

	if err := srv.Serve(ctx, cfg.HTTPAddr); err != nil {
		log.Fatalf("http server failed: %v", err)
	}

	log.Println("scribe: shut down")
}
