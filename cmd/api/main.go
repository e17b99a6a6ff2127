package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/briangreenhill/runcoach/cache"
	"github.com/briangreenhill/runcoach/internal/auth"
	"github.com/briangreenhill/runcoach/internal/capability"
	"github.com/briangreenhill/runcoach/internal/config"
	"github.com/briangreenhill/runcoach/internal/contextbuilder"
	"github.com/briangreenhill/runcoach/internal/decision"
	"github.com/briangreenhill/runcoach/internal/http/routes"
	"github.com/briangreenhill/runcoach/internal/prompt"
	"github.com/briangreenhill/runcoach/internal/store"
	"github.com/briangreenhill/runcoach/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if !cfg.HasCapability() {
		log.Fatal("CAPABILITY_URL and CAPABILITY_API_KEY are required")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	log.Printf("starting api on :%s", cfg.Port)

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()
	st := store.New(pool)

	var wp contextbuilder.WeatherProvider
	if cfg.HasWeather() {
		fc, err := cache.NewFileCache(filepath.Join(os.TempDir(), "runcoach-weather"))
		if err != nil {
			log.Fatalf("weather cache: %v", err)
		}
		wc, err := weather.New(cfg.Weather.URL,
			weather.WithHTTPClient(&http.Client{Timeout: cfg.Weather.Timeout}),
			weather.WithCache(fc, cfg.Weather.CacheTTL),
		)
		if err != nil {
			log.Fatalf("weather client: %v", err)
		}
		wp = wc
	}

	capab, err := capability.New(
		cfg.Capability.URL,
		cfg.Capability.APIKey,
		cfg.Capability.Model,
		prompt.Load(cfg.Capability.PromptPath),
		cfg.Capability.Timeout,
	)
	if err != nil {
		log.Fatalf("capability client: %v", err)
	}

	builder := contextbuilder.New(st, wp, cfg.Policy, logger)
	orch := decision.New(st, builder, capab, cfg.Capability.Timeout, logger)

	s := routes.New(routes.ServerOptions{
		Store:  st,
		Orch:   orch,
		Tokens: auth.Tokens{Secret: []byte(cfg.TokenSecret)},
		Cfg:    cfg,
		Log:    logger,
	})
	h := hlog.NewHandler(logger)(s.Router)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: h}
	log.Fatal(srv.ListenAndServe())
}
