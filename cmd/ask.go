package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/adityatiwari12/chat-with-sql/internal/answer"
	"github.com/adityatiwari12/chat-with-sql/internal/pipeline"
	"github.com/adityatiwari12/chat-with-sql/internal/sqlgen"
	"github.com/adityatiwari12/chat-with-sql/internal/sqlval"
)

var askExplain bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question about the database",
	Long: `Ask converts a natural language question into SQL, validates it,
runs it against the configured database, and prints the result with a
short answer.

Examples:
  chat-with-sql ask "How many orders were placed last month?"
  chat-with-sql ask --explain "Which customer spent the most?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askExplain, "explain", false, "also print a plain language explanation of the query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	client := newOllamaClient()

	st, err := openStore(client)
	if err != nil {
		return err
	}
	defer st.Close()

	exec, err := newExecutor()
	if err != nil {
		return err
	}
	defer exec.Close()

	generator := sqlgen.NewGenerator(client)

	p := pipeline.New(st, generator, sqlval.NewValidator(), exec,
		answer.NewAnswerer(client), cfg.Pipeline.TopK)

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	spin.Suffix = " thinking..."
	spin.Start()

	outcome, err := p.Process(cmd.Context(), question)

	spin.Stop()

	if outcome.ClarificationNeeded != "" {
		fmt.Printf("Your question needs a little more detail:\n  %s\n", outcome.ClarificationNeeded)

		return nil
	}

	if outcome.SQL != "" {
		fmt.Printf("SQL: %s\n\n", outcome.SQL)
	}

	if err != nil {
		return err
	}

	fmt.Println(answer.FormatResultTable(outcome.Query))
	fmt.Printf("\n%s\n", outcome.Answer)

	if askExplain {
		explanation, explainErr := generator.Explain(cmd.Context(), outcome.SQL)
		if explainErr == nil {
			fmt.Printf("\nHow this query works:\n%s\n", explanation)
		}
	}

	fmt.Printf("\n(%d row(s) in %.0f ms)\n", outcome.Query.RowCount, outcome.TotalTimeMs)

	return nil
}
