package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adityatiwari12/chat-with-sql/internal/errors"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that Ollama, the schema store, and the database are ready",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	failures := 0

	client := newOllamaClient()

	models, err := client.ListModels(ctx)
	switch {
	case err != nil:
		failures++

		fmt.Printf("✗ ollama: unreachable at %s (%v)\n", cfg.Ollama.BaseURL, err)
	default:
		fmt.Printf("✓ ollama: reachable, %d models available\n", len(models))

		for _, want := range []string{cfg.Ollama.LLMModel, cfg.Ollama.EmbedModel} {
			if !hasModel(models, want) {
				failures++

				fmt.Printf("✗ model %q not found; run: ollama pull %s\n", want, want)
			}
		}
	}

	st, err := openStore(client)
	if err != nil {
		failures++

		fmt.Printf("✗ schema store: %v\n", err)
	} else {
		defer st.Close()

		if st.Len() == 0 {
			failures++

			fmt.Printf("✗ schema store: empty; run: chat-with-sql index --example\n")
		} else {
			fmt.Printf("✓ schema store: %d tables indexed\n", st.Len())
		}
	}

	exec, err := newExecutor()
	if err != nil {
		failures++

		fmt.Printf("✗ database: %v\n", err)
	} else {
		defer exec.Close()

		if err := exec.Ping(ctx); err != nil {
			failures++

			fmt.Printf("✗ database: unreachable (%v)\n", err)
		} else {
			fmt.Println("✓ database: reachable")
		}
	}

	if failures > 0 {
		return errors.Newf(errors.ErrTypeConfig, "%d health check(s) failed", failures)
	}

	fmt.Println("\nAll checks passed.")

	return nil
}

// hasModel matches names with or without the Ollama tag suffix
func hasModel(models []string, want string) bool {
	for _, m := range models {
		if m == want || strings.HasPrefix(m, want+":") {
			return true
		}
	}

	return false
}
