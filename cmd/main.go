package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/surgewhisper/api/internal/models"
	"github.com/surgewhisper/api/pkg/config"
	"github.com/surgewhisper/api/pkg/extract"
	"github.com/surgewhisper/api/pkg/ingest"
	"github.com/surgewhisper/api/pkg/llm"
	"github.com/surgewhisper/api/pkg/qa"
	"github.com/surgewhisper/api/pkg/store"
	"github.com/surgewhisper/api/server"
)

func main() {
	// .env is optional; real deployments use the environment directly
	_ = godotenv.Load()

	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config error: %v", e)
		}
		os.Exit(1)
	}

	if err := run(cfg, flag.Args()); err != nil {
		log.Fatal(err)
	}
}

func usage() error {
	return fmt.Errorf("usage: surgewhisper [-config path] <serve | ingest <zip-file> | ask <question>>")
}

func run(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return usage()
	}

	ctx := context.Background()

	vectorStore, err := store.NewWithConfig(ctx, store.StoreConfig{
		ConnString:  cfg.Database.URL,
		VectorDim:   cfg.Database.VectorDim,
		SearchLimit: cfg.Database.SearchLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer vectorStore.Close()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.EmbeddingModel,
		BaseURL:   cfg.LLM.BaseURL,
		VectorDim: cfg.Database.VectorDim,
		RateLimit: cfg.LLM.RateLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	drafter, err := llm.NewDrafterWithConfig(llm.DrafterConfig{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.ChatModel,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize drafter: %w", err)
	}

	qaService, err := qa.NewService(qa.ServiceConfig{
		TopK:           cfg.QA.TopK,
		ContextBudget:  cfg.QA.ContextBudget,
		PreviewMax:     cfg.QA.PreviewMax,
		AnswerTTL:      cfg.AnswerTTL(),
		EmptyAnswerTTL: cfg.EmptyAnswerTTL(),
	}, embedder, vectorStore, vectorStore, drafter)
	if err != nil {
		return fmt.Errorf("failed to initialize qa service: %w", err)
	}

	switch args[0] {
	case "serve":
		return runServe(cfg, qaService, embedder, vectorStore)
	case "ingest":
		if len(args) < 2 {
			return usage()
		}
		return runIngest(ctx, cfg, embedder, vectorStore, args[1])
	case "ask":
		if len(args) < 2 {
			return usage()
		}
		return runAsk(ctx, qaService, args[1])
	default:
		return usage()
	}
}

func newIngestor(cfg *config.Config, embedder *llm.Embedder, vectorStore *store.Store, onEntry func(models.EntryResult)) (*ingest.Ingestor, error) {
	return ingest.NewWithConfig(ingest.IngestorConfig{
		ChunkMaxTokens:     cfg.Chunker.MaxTokens,
		ChunkOverlapTokens: cfg.Chunker.OverlapTokens,
		Concurrency:        cfg.Ingest.Concurrency,
		ContinueOnError:    !cfg.Ingest.AbortOnError,
		OnEntry:            onEntry,
	}, extract.New(), embedder, vectorStore)
}

func runServe(cfg *config.Config, qaService *qa.Service, embedder *llm.Embedder, vectorStore *store.Store) error {
	ingestor, err := newIngestor(cfg, embedder, vectorStore, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize ingestor: %w", err)
	}

	srv := server.New(server.Config{
		Port:       cfg.Server.Port,
		AdminToken: cfg.Server.AdminToken,
	}, qaService, ingestor)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runIngest(ctx context.Context, cfg *config.Config, embedder *llm.Embedder, vectorStore *store.Store, zipPath string) error {
	raw, err := os.ReadFile(zipPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", zipPath, err)
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.BlueString("Ingesting documents")),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)

	ingestor, err := newIngestor(cfg, embedder, vectorStore, func(models.EntryResult) {
		_ = bar.Add(1)
	})
	if err != nil {
		return fmt.Errorf("failed to initialize ingestor: %w", err)
	}

	results, err := ingestor.IngestZip(ctx, raw)
	_ = bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	for _, r := range results {
		if r.Err != "" {
			color.Red("✗ %s: %s", r.Title, r.Err)
			continue
		}
		color.Green("✓ %s (%d chunks)", r.Title, r.Chunks)
	}
	return nil
}

func runAsk(ctx context.Context, qaService *qa.Service, question string) error {
	res, err := qaService.Ask(ctx, question, 0)
	if err != nil {
		return err
	}

	color.Cyan("%s", res.AnswerPreview)
	if res.IsTruncated {
		full, err := qaService.GetAnswer(ctx, res.AnswerID)
		if err != nil {
			return err
		}
		fmt.Println()
		color.Yellow("Full answer (%s):", res.AnswerID)
		fmt.Println(full)
	}
	return nil
}
