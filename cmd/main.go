package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/kvant/advisor/internal/models"
	"github.com/kvant/advisor/internal/types"
	cfgPkg "github.com/kvant/advisor/pkg/config"
	"github.com/kvant/advisor/pkg/llm"
	"github.com/kvant/advisor/pkg/loader"
	"github.com/kvant/advisor/pkg/processor"
	"github.com/kvant/advisor/pkg/rag"
	"github.com/kvant/advisor/pkg/retriever"
	"github.com/kvant/advisor/pkg/store"
	"github.com/kvant/advisor/server"
)

func main() {
	var configPath string
	var corpusDir string
	var interactive bool

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&corpusDir, "corpus", "", "Corpus directory (overrides config)")
	flag.BoolVar(&interactive, "chat", false, "Interactive chat instead of HTTP server")
	flag.Parse()

	cfg, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}
	if corpusDir != "" {
		cfg.Corpus.Dir = corpusDir
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		os.Exit(1)
	}

	if err := run(cfg, interactive); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *cfgPkg.Config, interactive bool) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Model:     cfg.LLM.EmbedModel,
		BaseURL:   cfg.LLM.BaseURL,
		Dimension: cfg.Retrieval.EmbeddingDim,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	completer, err := llm.NewCompleter(llm.CompleterConfig{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		APIToken:    cfg.LLM.APIToken,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize completer: %v", err)
	}

	client := llm.NewClient(llm.ClientConfig{
		MaxAttempts:     cfg.Generation.MaxAttempts,
		BaseBackoff:     time.Duration(cfg.Generation.BaseBackoffMs) * time.Millisecond,
		MaxBackoff:      time.Duration(cfg.Generation.MaxBackoffMs) * time.Millisecond,
		Jitter:          time.Duration(cfg.Generation.JitterMs) * time.Millisecond,
		OverallDeadline: time.Duration(cfg.Generation.OverallDeadlineMs) * time.Millisecond,
		RateLimit:       cfg.Generation.RateLimit,
	}, completer, logger)

	index, err := buildIndex(cfg, embedder)
	if err != nil {
		// Bad corpus or dimension mismatch is fatal to startup; serving
		// queries over a broken index is worse than not starting.
		return err
	}

	ret := retriever.New(retriever.Config{
		TopK:     cfg.Retrieval.TopK,
		MinScore: cfg.Retrieval.MinScore,
	}, embedder, index, logger)

	builder := llm.NewBuilder(llm.BuilderConfig{
		MaxChars: cfg.Prompt.MaxChars,
	})

	orchestrator := rag.New(rag.Config{
		Model:        cfg.LLM.Model,
		Provider:     cfg.LLM.Provider,
		EmbeddingDim: cfg.Retrieval.EmbeddingDim,
	}, ret, builder, client, index, logger)

	if interactive {
		return chatLoop(orchestrator)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return server.New(orchestrator, logger).ListenAndServe(addr)
}

// buildIndex loads the corpus, embeds every chunk and builds the index. This
// is the one-time initialization; queries are served only after it finishes.
func buildIndex(cfg *cfgPkg.Config, embedder types.Embedder) (types.SearchIndex, error) {
	proc := processor.NewWithConfig(processor.Config{
		ChunkSize:      cfg.Corpus.ChunkSize,
		ChunkOverlap:   cfg.Corpus.ChunkOverlap,
		MinChunkLength: cfg.Corpus.MinChunkLength,
	})

	var chunks []models.Chunk
	if cfg.Corpus.Dir != "" {
		loaded, err := loader.New(proc).Load(cfg.Corpus.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to load corpus: %v", err)
		}
		chunks = loaded

		color.Blue("\nEmbedding %d chunks from %s\n", len(chunks), cfg.Corpus.Dir)
		bar := progressbar.NewOptions(len(chunks),
			progressbar.OptionSetDescription(color.BlueString("Embedding corpus...")),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowElapsedTimeOnFinish(),
		)

		err = loader.EmbedAll(context.Background(), embedder, chunks, 4, func() {
			bar.Add(1)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed corpus: %v", err)
		}
		color.Green("\n✓ Embedded %d chunks\n", len(chunks))
	}

	var index types.SearchIndex
	if cfg.Database.URL != "" {
		pg, err := store.NewPgIndex(store.PgIndexConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Retrieval.EmbeddingDim,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize pgvector index: %v", err)
		}
		index = pg
	} else {
		index = store.NewFlatIndex(cfg.Retrieval.EmbeddingDim)
	}

	if err := index.Build(chunks); err != nil {
		return nil, fmt.Errorf("failed to build index: %v", err)
	}
	color.Green("✓ Indexed %d chunks\n", index.Size())

	return index, nil
}

func chatLoop(orchestrator *rag.Orchestrator) error {
	color.Cyan("\nЗадайте вопрос об инвестиционных продуктах (exit для выхода)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nВы: ")
		if !scanner.Scan() {
			break
		}

		query := scanner.Text()
		if strings.ToLower(strings.TrimSpace(query)) == "exit" {
			break
		}

		result, err := orchestrator.Answer(context.Background(), query)
		if err != nil {
			color.Red("Ошибка: %v\n", err)
			continue
		}

		assistantPrompt("Консультант: %s\n", result.Response)
		if result.ContextFound {
			fmt.Printf("(контекст найден, %.3fс)\n", result.ProcessingTime)
		} else {
			fmt.Printf("(контекст не найден, %.3fс)\n", result.ProcessingTime)
		}
	}

	return scanner.Err()
}
