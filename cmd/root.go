// Package cmd implements the command line interface
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adityatiwari12/chat-with-sql/internal/config"
	"github.com/adityatiwari12/chat-with-sql/internal/errors"
	"github.com/adityatiwari12/chat-with-sql/internal/executor"
	"github.com/adityatiwari12/chat-with-sql/internal/logging"
	"github.com/adityatiwari12/chat-with-sql/internal/ollama"
	"github.com/adityatiwari12/chat-with-sql/internal/store"
)

var (
	cfg *config.Config

	flagDSN       string
	flagStorePath string
	flagOllamaURL string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "chat-with-sql",
	Short: "Ask questions about a PostgreSQL database in plain language",
	Long: `chat-with-sql answers natural language questions about a PostgreSQL
database. It retrieves the relevant part of your schema, asks a local
Ollama model to write a SQL query, validates the query against a strict
read-only policy, runs it, and phrases the result as an answer.

Index your schema first with 'chat-with-sql index', then ask away.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initializeApp,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDSN, "dsn", "", "PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVar(&flagStorePath, "store-path", "", "path to the schema store file")
	rootCmd.PersistentFlags().StringVar(&flagOllamaURL, "ollama-url", "", "base URL of the Ollama instance")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(configCmd)
}

func initializeApp(_ *cobra.Command, _ []string) error {
	overrides := map[string]interface{}{
		"dsn":        flagDSN,
		"store-path": flagStorePath,
		"ollama-url": flagOllamaURL,
		"log-level":  flagLogLevel,
		"addr":       flagAddr,
	}

	var err error

	cfg, err = config.LoadConfigWithOverrides(overrides)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "failed to load configuration")
	}

	cfg.ExpandAllPaths()

	if err := cfg.EnsureDirectories(); err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "failed to create directories")
	}

	if err := logging.InitializeLogger(cfg.Logging); err != nil {
		logging.SetupFallbackLogger()
		logging.WithField("error", err.Error()).Warn("failed to initialize logger, using fallback")
	}

	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func newOllamaClient() *ollama.Client {
	return ollama.NewClient(ollama.Config{
		BaseURL:    cfg.Ollama.BaseURL,
		LLMModel:   cfg.Ollama.LLMModel,
		EmbedModel: cfg.Ollama.EmbedModel,
		Timeout:    cfg.OllamaTimeoutDuration(),
	})
}

func openStore(client *ollama.Client) (*store.Store, error) {
	s, err := store.Open(cfg.Store.Path, client)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to open schema store").
			WithSuggestion("Check that the store path is writable")
	}

	return s, nil
}

func newExecutor() (*executor.Executor, error) {
	exec, err := executor.New(cfg.Database.DSN, cfg.Database.MaxRows, cfg.QueryTimeoutDuration())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTypeDatabase, "failed to open database").
			WithSuggestion("Check the connection string passed via --dsn or CHATSQL_DB_DSN")
	}

	return exec, nil
}
