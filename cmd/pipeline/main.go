// Command pipeline runs the corpus enrichment pipeline end to end: for
// every document in a data directory it extracts document context, chunks
// the body, extracts entities and relationships via an LLM, standardizes
// and synonym-resolves them against medical ontologies, embeds them, and
// commits the result to Neo4j, checkpointing after every batch.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	doccontext "github.com/BiographAI/biograph/engine/context"
	"github.com/BiographAI/biograph/engine/checkpoint"
	"github.com/BiographAI/biograph/engine/driver"
	"github.com/BiographAI/biograph/engine/embed"
	"github.com/BiographAI/biograph/engine/enrich"
	"github.com/BiographAI/biograph/engine/graph"
	"github.com/BiographAI/biograph/engine/llmextract"
	"github.com/BiographAI/biograph/engine/sink"
	"github.com/BiographAI/biograph/engine/standardize"
	"github.com/BiographAI/biograph/engine/synonym"
	"github.com/BiographAI/biograph/pkg/medner"
	"github.com/BiographAI/biograph/pkg/metrics"
	"github.com/BiographAI/biograph/pkg/resilience"
	"github.com/BiographAI/biograph/pkg/umls"
)

var met = metrics.New()

var (
	mRunErrors   = met.Counter("biograph_pipeline_run_errors_total", "Pipeline runs that exited with an error")
	mRunDuration = met.Histogram("biograph_pipeline_run_duration_seconds", "Total wall time of one driver run", nil)
)

func main() {
	var (
		dataDirectory       = flag.String("data-directory", "data_corpus", "directory of source documents to process")
		singleDocument      = flag.String("single-document", "", "process only this document path, ignoring --data-directory")
		batchSize           = flag.Int("batch-size", driver.DefaultBatchSize, "number of chunks committed per batch")
		testMode            = flag.Bool("test-mode", true, "cap each document to a small chunk count for a quick smoke run")
		fullRun             = flag.Bool("full-run", false, "process every chunk of every document, overriding --test-mode")
		resume              = flag.Bool("resume", false, "resume from the last saved checkpoint")
		startChunk          = flag.Int("start-chunk", 0, "override the resume point: start the first document processed in this run at this chunk index")
		checkpointPath      = flag.String("checkpoint", "pipeline_checkpoint.json", "checkpoint file path")
		outputDir           = flag.String("output-dir", "output", "directory for batch artifacts and pipeline metadata")
		useLMStudio         = flag.Bool("use-lm-studio", false, "use a local OpenAI-compatible backend instead of the hosted Anthropic API")
		lmStudioURL         = flag.String("lm-studio-url", "http://localhost:1234/v1", "base URL for the local OpenAI-compatible backend")
		lmStudioModel       = flag.String("lm-studio-model", "local-model", "model name for the local OpenAI-compatible backend")
		anthropicModel      = flag.String("anthropic-model", "claude-sonnet-4-5", "model name for the hosted Anthropic backend")
		standardizerWorkers = flag.Int("standardizer-workers", standardize.DefaultWorkers, "bounded worker pool size for standardization fan-out")
		minConfidence       = flag.Float64("min-confidence", standardize.DefaultMinConfidence, "minimum medical-NER concept score accepted before falling back")
		embedderKind        = flag.String("embedder", "deterministic", "embedding backend: deterministic|ollama")
		ollamaURL           = flag.String("ollama-url", "http://localhost:11434", "Ollama base URL when --embedder=ollama")
		ollamaModel         = flag.String("ollama-model", "nomic-embed-text", "Ollama embedding model when --embedder=ollama")
		embedDims           = flag.Int("embed-dims", 768, "embedding vector dimensionality")
	)
	flag.Parse()

	log := slog.Default()
	if !*resume {
		if _, err := os.Stat(*checkpointPath); err == nil {
			log.Info("overwriting existing checkpoint, pass --resume to continue from it", "path", *checkpointPath)
			os.Remove(*checkpointPath)
		}
	}

	met.ServeAsync(9092)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	neo4jURI := requireEnv(log, "NEO4J_URI")
	neo4jUser := requireEnv(log, "NEO4J_USERNAME")
	neo4jPass := requireEnv(log, "NEO4J_PASSWORD")

	neoDriver, err := neo4j.NewDriverWithContext(neo4jURI, neo4j.BasicAuth(neo4jUser, neo4jPass, ""))
	if err != nil {
		log.Error("neo4j connect failed", "error", err)
		os.Exit(1)
	}
	defer neoDriver.Close(ctx)
	if err := neoDriver.VerifyConnectivity(ctx); err != nil {
		log.Error("neo4j verify failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Neo4j")

	gs := graph.New(neoDriver)
	if err := gs.EnsureSchema(ctx); err != nil {
		log.Error("neo4j schema setup failed", "error", err)
		os.Exit(1)
	}

	umlsDSN := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		requireEnv(log, "UMLS_DB_USER"),
		requireEnv(log, "UMLS_DB_PASSWORD"),
		requireEnv(log, "UMLS_DB_HOST"),
		envOrDefault("UMLS_DB_PORT", "5432"),
		requireEnv(log, "UMLS_DB_NAME"),
	)
	pgPool, err := pgxpool.New(ctx, umlsDSN)
	if err != nil {
		log.Error("umls pool connect failed", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()
	log.Info("connected to UMLS mirror")

	awsRegion := requireEnv(log, "AWS_REGION")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsRegion))
	if err != nil {
		log.Error("aws config load failed", "error", err)
		os.Exit(1)
	}

	var extractBackend llmextract.Backend
	if *useLMStudio {
		extractBackend = llmextract.NewLocalBackend(*lmStudioURL, *lmStudioModel)
		log.Info("using local LLM backend", "url", *lmStudioURL, "model", *lmStudioModel)
	} else {
		apiKey := requireEnv(log, "ANTHROPIC_API_KEY")
		extractBackend = llmextract.NewHostedBackend(apiKey, *anthropicModel)
		log.Info("using hosted Anthropic backend", "model", *anthropicModel)
	}
	extractBackend = llmextract.NewBreakerBackend(extractBackend, resilience.DefaultBreakerOpts)

	var embedder embed.Embedder
	switch *embedderKind {
	case "ollama":
		embedder = embed.NewOllamaEmbedder(envOrDefault("OLLAMA_URL", *ollamaURL), *ollamaModel, *embedDims)
		log.Info("using Ollama embeddings", "model", *ollamaModel)
	default:
		embedder = embed.NewDeterministicEmbedder(*embedDims)
		log.Info("using deterministic embeddings")
	}

	medClient := medner.New(awsCfg)
	standardizer := standardize.New(
		medClient,
		standardize.WithWorkers(*standardizerWorkers),
		standardize.WithMinConfidence(*minConfidence),
	)

	umlsStore := umls.New(pgPool)
	synonymResolver := synonym.New(umlsStore, log)

	contextExtractor := doccontext.New(extractBackend)
	chunkExtractor := llmextract.New(extractBackend)

	orchestrator := enrich.New(enrich.Deps{
		Extractor:    chunkExtractor,
		Standardizer: standardizer,
		Synonyms:     synonymResolver,
		Embedder:     embedder,
		Log:          log,
	})

	sk := sink.New(*outputDir, log)
	cpStore := checkpoint.New(*checkpointPath)

	d := driver.New(driver.Deps{
		Context:      contextExtractor,
		Graph:        gs,
		Orchestrator: orchestrator,
		Sink:         sk,
		Checkpoint:   cpStore,
		Log:          log,
	}, driver.Config{
		DataDirectory:    *dataDirectory,
		SingleDocument:   *singleDocument,
		BatchSize:        *batchSize,
		TestMode:         *testMode && !*fullRun,
		TestModeChunkCap: driver.DefaultTestModeChunkCap,
		StartChunk:       *startChunk,
	})

	start := time.Now()
	runErr := instrumentedRun(ctx, d, log)
	log.Info("pipeline run finished", "elapsed", time.Since(start), "output_dir", filepath.Clean(*outputDir))
	if runErr != nil {
		log.Error("pipeline run failed", "error", runErr)
		os.Exit(1)
	}
}

// instrumentedRun drives the pipeline and folds its outcome into the
// process metrics registered above.
func instrumentedRun(ctx context.Context, d *driver.Driver, log *slog.Logger) error {
	start := time.Now()
	err := d.Run(ctx)
	mRunDuration.Since(start)
	if err != nil {
		mRunErrors.Inc()
	}
	return err
}

func requireEnv(log *slog.Logger, key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Error("missing required environment variable", "key", key)
		os.Exit(1)
	}
	return v
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
