package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/adityatiwari12/chat-with-sql/cmd"
	"github.com/adityatiwari12/chat-with-sql/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		var appErr *errors.Error
		if stderrors.As(err, &appErr) && len(appErr.Suggestions) > 0 {
			fmt.Fprintln(os.Stderr, "\nSuggestions:")

			for _, suggestion := range appErr.Suggestions {
				fmt.Fprintf(os.Stderr, "  - %s\n", suggestion)
			}
		}

		os.Exit(1)
	}
}
