// Package main provides the k9 CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"k9/internal/articulation"
	"k9/internal/config"
	"k9/internal/dataset"
	"k9/internal/graphstore"
	"k9/internal/logging"
	"k9/internal/perception"
	"k9/internal/pipeline"
	"k9/internal/server"
	"k9/internal/store"
)

const version = "0.1.0"

var (
	// Global flags
	configPath string
	verbose    bool
	apiKey     string
	mockMode   bool

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "k9",
	Short: "K9 - mining-safety risk question answering",
	Long: `K9 answers natural-language questions about operational mining-safety
risk data: weekly criticality trajectories, observation and audit evidence,
proactive-model comparisons, and the risk ontology.

Interpretation and final wording go through a language model; every number,
ranking, and decision in between is computed deterministically and traced.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question session",
	RunE:  runChat,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("k9 %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "k9.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "LLM API key (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&mockMode, "mock", false, "use the scripted mock LLM client")

	rootCmd.AddCommand(askCmd, serveCmd, chatCmd, versionCmd)
}

// runtime bundles everything a command needs for a turn.
type runtime struct {
	cfg      *config.Config
	orch     *pipeline.Orchestrator
	sessions *store.SessionStore
	graphDB  *graphstore.Client
}

func (r *runtime) close() {
	if r.sessions != nil {
		r.sessions.Close()
	}
	r.graphDB.Close(context.Background())
	logging.Close()
}

func buildRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logging.Initialize(cfg.Logging.Dir, cfg.Logging.Debug || verbose); err != nil {
		return nil, err
	}

	llm, err := buildLLMClient(cfg)
	if err != nil {
		return nil, err
	}

	sessions, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	graph := pipeline.NewGraph(dataset.Open(cfg.Data.Dir), cfg.Data.OntologyDir, cfg.Data.Scenario)
	clarifications := logging.NewClarificationLog(cfg.Logging.ClarificationLog)
	orch := pipeline.NewOrchestrator(llm, articulation.DefaultBundle(), graph, clarifications, sessions)

	graphDB := graphstore.Connect(context.Background(), cfg.Graph.URI, cfg.Graph.User, cfg.Graph.Password)
	orch.WithRecommendations(graphDB)

	return &runtime{cfg: cfg, orch: orch, sessions: sessions, graphDB: graphDB}, nil
}

func buildLLMClient(cfg *config.Config) (perception.LLMClient, error) {
	if mockMode || cfg.LLM.Provider == "mock" {
		return perception.NewMockClient(
			`{"type": "CLARIFICATION_REQUEST", "reason": "mock mode has no model", "options": []}`,
		), nil
	}

	key := apiKey
	if key == "" {
		key = cfg.LLM.APIKey
	}
	if key == "" {
		key = os.Getenv("GEMINI_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("no LLM API key: set llm.api_key, --api-key, or GEMINI_API_KEY")
	}

	geminiConfig := perception.DefaultGeminiConfig(key)
	if cfg.LLM.Model != "" {
		geminiConfig.Model = cfg.LLM.Model
	}
	if cfg.LLM.BaseURL != "" {
		geminiConfig.BaseURL = cfg.LLM.BaseURL
	}
	geminiConfig.Timeout = cfg.LLMTimeout()
	return perception.NewGeminiClientWithConfig(geminiConfig), nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	question := strings.Join(args, " ")
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	res, err := rt.orch.Answer(ctx, "", question, nil)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(renderAnswer(res.Answer))
	if verbose && res.State != nil {
		for _, line := range res.State.Reasoning {
			fmt.Fprintf(os.Stderr, "  %s\n", line)
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	srv := server.New(rt.orch, logger, version, nil)
	return srv.Run(rt.cfg.Server.Addr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
