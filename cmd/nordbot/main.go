package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"nordbot/internal/chunker"
	"nordbot/internal/config"
	"nordbot/internal/domain"
	"nordbot/internal/embedding/openai"
	"nordbot/internal/gemini"
	"nordbot/internal/logger"
	"nordbot/internal/metrics"
	"nordbot/internal/service"
	"nordbot/internal/session"
	"nordbot/internal/tui"
	"nordbot/internal/vectorindex/pinecone"
	"nordbot/internal/vectorindex/qdrant"
	"nordbot/internal/web"
)

const (
	sessionTTL   = 24 * time.Hour
	sweepEvery   = 10 * time.Minute
	shutdownWait = 10 * time.Second
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath string
		serve   string
		ingest  bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/nordbot/config.yaml)")
	flag.StringVar(&serve, "serve", "", "Serve the web UI on this address instead of running the terminal UI")
	flag.BoolVar(&ingest, "ingest", false, "Chunk, embed and upsert the given .txt files into the vector index, then exit")
	flag.Parse()

	if ingest && flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: nordbot --ingest [--config=config.yaml] file1.txt [file2.txt ...]")
		os.Exit(2)
	}

	var (
		cfg *config.AppConfig
		err error
	)
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// The terminal UI owns stdout, so logs go to a file there.
	var outputs []string
	if !ingest && serve == "" {
		outputs = []string{cfg.Logging.File}
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, outputs...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case ingest:
		err = runIngest(ctx, cfg, log, flag.Args())
	case serve != "":
		cfg.Server.Addr = serve
		err = runServer(ctx, cfg, log)
	default:
		err = runTUI(ctx, cfg, log)
	}
	if err != nil {
		log.Error("nordbot exited with error", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runTUI(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) error {
	orch, err := buildOrchestrator(cfg, log, nil)
	if err != nil {
		return err
	}
	sess := session.New()
	log.Info("terminal chat started", zap.String("session", sess.ID), zap.String("variant", string(orch.Variant())))
	m := tui.New(ctx, orch, sess)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func runServer(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orch, err := buildOrchestrator(cfg, log, metrics.NewPipeline(reg))
	if err != nil {
		return err
	}

	store := session.NewStore()
	go web.SweepSessions(ctx, store, sessionTTL, sweepEvery, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           web.NewServer(orch, store, reg, log).Routes(),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadHeaderTimeoutSecs) * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("web chat listening", zap.String("addr", srv.Addr), zap.String("variant", string(orch.Variant())))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down web chat")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runIngest(ctx context.Context, cfg *config.AppConfig, log *zap.Logger, paths []string) error {
	emb, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	idx, err := buildIndex(cfg)
	if err != nil {
		return err
	}
	var ch domain.Chunker
	switch cfg.Chunker.Type {
	case "sentence", "":
		ch = chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences)
	default:
		return fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}

	report, err := service.NewIngestor(ch, emb, idx, log).IngestDocuments(ctx, paths)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	fmt.Printf("Indexed %d chunks from %d documents into %s (dimension %d)\n",
		report.Chunks, report.Documents, idx.Name(), report.Dimension)
	return nil
}

func buildOrchestrator(cfg *config.AppConfig, log *zap.Logger, m *metrics.Pipeline) (*service.Orchestrator, error) {
	emb, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	idx, err := buildIndex(cfg)
	if err != nil {
		return nil, err
	}
	g := cfg.Generation
	gen, err := gemini.NewClient(gemini.Config{
		BaseURL:   g.BaseURL,
		APIKeyEnv: g.APIKeyEnv,
		Model:     g.Model,
		Timeout:   time.Duration(g.TimeoutSecs) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generator init failed: %w", err)
	}

	if os.Getenv(cfg.Search.APIKeyEnv) != "" {
		log.Info("web search key present; answers still come from the manuals only", zap.String("env", cfg.Search.APIKeyEnv))
	} else {
		log.Debug("web search key not set", zap.String("env", cfg.Search.APIKeyEnv))
	}

	stages := service.Stages{
		Answer:    g.Stage(g.Temperature.Answer),
		Grounding: g.Stage(g.Temperature.Grounding),
		RAG:       g.Stage(g.Temperature.RAG),
		Synthesis: g.Stage(g.Temperature.Synthesis),
	}
	log.Info("pipeline ready",
		zap.String("embedder", emb.Name()),
		zap.String("index", idx.Name()),
		zap.String("model", gen.Model()),
		zap.String("variant", cfg.Pipeline.Variant),
		zap.Int("top_k", cfg.Pipeline.TopK),
	)
	return service.NewOrchestrator(emb, idx, gen, stages,
		service.WithVariant(service.Variant(cfg.Pipeline.Variant)),
		service.WithTopK(cfg.Pipeline.TopK),
		service.WithLogger(log),
		service.WithMetrics(m),
	), nil
}

func buildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "gemini", "":
		c := cfg.Embedder.Gemini
		client, err := gemini.NewClient(gemini.Config{
			BaseURL:   c.BaseURL,
			APIKeyEnv: c.APIKeyEnv,
			Model:     c.Model,
			Timeout:   time.Duration(c.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embedder init failed: %w", err)
		}
		return client, nil
	case "openai":
		c := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:   c.BaseURL,
			APIKeyEnv: c.APIKeyEnv,
			Model:     c.Model,
			Timeout:   time.Duration(c.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func buildIndex(cfg *config.AppConfig) (domain.VectorIndex, error) {
	switch cfg.VectorIndex.Type {
	case "pinecone", "":
		p := cfg.VectorIndex.Pinecone
		idx, err := pinecone.NewIndex(pinecone.Config{
			Index:         p.Index,
			APIKeyEnv:     p.APIKeyEnv,
			ControllerURL: p.ControllerURL,
			Host:          p.Host,
			Dimension:     p.Dimension,
			Metric:        p.Metric,
			Cloud:         p.Cloud,
			Region:        p.Region,
			Timeout:       time.Duration(p.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("pinecone index init failed: %w", err)
		}
		return idx, nil
	case "qdrant":
		q := cfg.VectorIndex.Qdrant
		return qdrant.NewStorage(qdrant.Config{
			URL:        q.URL,
			APIKeyEnv:  q.APIKeyEnv,
			Collection: q.Collection,
			Distance:   q.Distance,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector index: %s", cfg.VectorIndex.Type)
	}
}
