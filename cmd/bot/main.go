package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YaeIsTired/Bot-TG/internal/api"
	"github.com/YaeIsTired/Bot-TG/internal/bot"
	"github.com/YaeIsTired/Bot-TG/internal/config"
	"github.com/YaeIsTired/Bot-TG/internal/gateway"
	"github.com/YaeIsTired/Bot-TG/internal/ledger"
	"github.com/YaeIsTired/Bot-TG/internal/notify"
	"github.com/YaeIsTired/Bot-TG/internal/recon"
	"github.com/YaeIsTired/Bot-TG/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	merchantSettings, err := settings.NewProvider(cfg.SettingsFile)
	if err != nil {
		log.Fatalf("Unable to load settings: %v", err)
	}

	store, err := ledger.NewStore(cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(context.Background()); err != nil {
		log.Fatalf("Unable to migrate: %v", err)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("Unable to reach Telegram: %v", err)
	}
	log.Printf("Authorized on Telegram account %s", botAPI.Self.UserName)

	// Initialize Layers
	gw := gateway.NewClient(cfg.GatewayBaseURL, 15*time.Second)
	sink := notify.NewTelegramSink(botAPI)
	engine := recon.New(gw, store, sink, merchantSettings, recon.Options{
		PollInterval: cfg.PollInterval,
		Expiry:       cfg.TopupExpiry,
	})
	defer engine.Stop()

	handler := api.NewHandler(store, engine)

	// Router
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", handler.HealthCheckHandler)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/balances/{id}", handler.GetBalanceHandler).Methods("GET")
	apiV1.HandleFunc("/ledger/{id}", handler.ListEntriesHandler).Methods("GET")

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
			log.Fatal(err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Bot starting env=%s", cfg.Env)
	bot.New(botAPI, engine, store).Run(ctx)
	log.Print("Shutting down")
}
