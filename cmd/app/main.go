package main

import (
    "context"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"

    "github.com/local/tableminer/internal/ai"
    cfgpkg "github.com/local/tableminer/internal/config"
    "github.com/local/tableminer/internal/controller"
    "github.com/local/tableminer/internal/docstore"
    "github.com/local/tableminer/internal/extract"
    "github.com/local/tableminer/internal/limiter"
    logpkg "github.com/local/tableminer/internal/logger"
    "github.com/local/tableminer/internal/metrics"
    "github.com/local/tableminer/internal/quota"
    "github.com/local/tableminer/internal/registry"
    "github.com/local/tableminer/internal/statuscheck"
    "github.com/local/tableminer/internal/store"
)

func main() {
    _ = godotenv.Load()
    cfg := cfgpkg.FromEnv()

    // Init logging
    _ = logpkg.Init(logpkg.Options{
        Level:        cfg.Logging.Level,
        Pretty:       cfg.Logging.Pretty,
        File:         cfg.Logging.File,
        MaxSizeMB:    cfg.Logging.MaxSizeMB,
        MaxBackups:   cfg.Logging.MaxBackups,
        MaxAgeDays:   cfg.Logging.MaxAgeDays,
        Compress:     cfg.Logging.Compress,
        SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
        AxiomAPIKey:  cfg.Axiom.APIKey,
        AxiomOrgID:   cfg.Axiom.OrgID,
        AxiomDataset: cfg.Axiom.Dataset,
        AxiomFlush:   cfg.Axiom.FlushInterval,
    })
    defer logpkg.Close()

    metrics.Init()

    // Quota ledger
    ledger, err := store.NewRedisLedger(cfg.Quota.RedisURL, cfg.Quota.DefaultPageLimit)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to connect to redis")
    }
    defer ledger.Close()

    // Promotion store
    promos, err := store.NewRedisPromotions(cfg.Quota.RedisURL)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init promotion store")
    }
    defer promos.Close()

    // Upload store
    docs, err := docstore.NewLocal(cfg.Extractor.UploadDir)
    if err != nil {
        log.Fatal().Err(err).Msg("failed to init upload store")
    }
    if err := os.MkdirAll(cfg.Extractor.OutputDir, 0o755); err != nil {
        log.Fatal().Err(err).Msg("failed to init output dir")
    }

    health := statuscheck.New(statuscheck.Options{
        Redis:        ledger,
        S3Bucket:     cfg.Extractor.S3Bucket,
        OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
        AnthropicKey: os.Getenv("ANTHROPIC_API_KEY"),
    })

    ctrl := controller.New(cfg, controller.Dependencies{
        Ledger:       ledger,
        Promos:       promos,
        Registry:     registry.New(),
        Engine:       extract.NewFitzEngine(),
        Docs:         docs,
        Runs:         limiter.NewRuns(cfg.Extractor.MaxConcurrent),
        AskPrimary:   askClient(cfg.AI.PrimaryEngine),
        AskSecondary: askClient(cfg.AI.SecondaryEngine),
        Health:       health,
    })
    mux := http.NewServeMux()
    ctrl.RegisterRoutes(mux)
    mux.Handle("/metrics", metrics.Handler())

    // Periodic quota reset sweep
    reset := quota.NewResetLoop(ledger, cfg.Quota.ResetPeriod)
    reset.Start()
    defer reset.Stop()

    srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}

    go func() {
        log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatal().Err(err).Msg("http server error")
        }
    }()

    // Graceful shutdown
    stop := make(chan os.Signal, 1)
    signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
    <-stop
    ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
    defer cancel()
    _ = srv.Shutdown(ctx)
    fmt.Println("shutdown complete")
}

func askClient(engine string) ai.Client {
    switch engine {
    case "openai":
        return ai.NewOpenAIClient()
    case "anthropic":
        return ai.NewAnthropicClient()
    default:
        return nil
    }
}
