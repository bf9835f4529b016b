package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ragserver/internal/config"
	"ragserver/internal/embedding"
	"ragserver/internal/llmservice"
	"ragserver/internal/rag"
	"ragserver/internal/server"
	"ragserver/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	initLogger(*debug)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func initLogger(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Caller().Logger()
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := vectorstore.New(ctx, &cfg.Store)
	if err != nil {
		return fmt.Errorf("init vector store: %w", err)
	}
	defer store.Close()
	log.Info().Str("backend", cfg.Store.Backend).Msg("vector store ready")

	embedder, err := embedding.NewGateway(&cfg.Embedding)
	if err != nil {
		return fmt.Errorf("init embedding gateway: %w", err)
	}
	generator, err := llmservice.NewClient(&cfg.Generation)
	if err != nil {
		return fmt.Errorf("init generation client: %w", err)
	}

	svc := rag.New(embedder, generator, store, cfg.RAG.ChunkWords)
	srv := server.New(svc, store, cfg.Server.UploadDir, cfg.Store.Backend)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(fmt.Sprintf(":%d", cfg.Server.Port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
