package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/adityatiwari12/chat-with-sql/internal/errors"
	"github.com/adityatiwari12/chat-with-sql/internal/logging"
	"github.com/adityatiwari12/chat-with-sql/internal/schema"
)

var indexExample bool

var indexCmd = &cobra.Command{
	Use:   "index [descriptor-file]",
	Short: "Index table descriptors into the schema store",
	Long: `Index reads a YAML file of table descriptors, renders one schema
document per table, embeds each document, and stores it for retrieval.
Re-indexing a table replaces its previous document.

Use --example to index a small built-in retail schema for trying the
tool out.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexExample, "example", false, "index the built-in example schema")
}

func runIndex(cmd *cobra.Command, args []string) error {
	var (
		tables []schema.TableSchema
		err    error
		source string
	)

	switch {
	case indexExample:
		tables, err = schema.LoadDescriptors(strings.NewReader(schema.ExampleDescriptors))
		source = "built-in example schema"
	case len(args) == 1:
		tables, err = schema.LoadDescriptorsFile(args[0])
		source = args[0]
	default:
		return errors.New(errors.ErrTypeValidation, "a descriptor file is required").
			WithSuggestion("Pass a YAML file, or use --example for the built-in schema")
	}

	if err != nil {
		return errors.Wrap(err, errors.ErrTypeValidation, "failed to load table descriptors")
	}

	client := newOllamaClient()

	st, err := openStore(client)
	if err != nil {
		return err
	}
	defer st.Close()

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	spin.Suffix = fmt.Sprintf(" embedding %d tables...", len(tables))
	spin.Start()

	err = st.Upsert(cmd.Context(), tables)

	spin.Stop()

	if err != nil {
		return err
	}

	logging.Infof("indexed %d tables from %s", len(tables), source)
	fmt.Printf("Indexed %d tables from %s into %s\n", len(tables), source, cfg.Store.Path)

	return nil
}
