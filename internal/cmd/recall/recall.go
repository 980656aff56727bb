// Package recall implements the "recall" one-shot CLI subcommand.
package recall

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/chirino/agent-memory/internal/cmd/cliutil"
	"github.com/chirino/agent-memory/internal/engine"
	"github.com/chirino/agent-memory/internal/model"
)

// Command returns the recall sub-command.
func Command(rootDir func() string) *cli.Command {
	var (
		namespace            string
		keywords             []string
		start, end, query    string
		limit                int
		includeDiary         bool
		pretty, textOut      bool
	)

	return &cli.Command{
		Name:  "recall",
		Usage: "Query a namespace's memories by keyword, time range, and free text",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "namespace",
				Sources:     cli.EnvVars("MEMORY_STORE_NAMESPACE"),
				Destination: &namespace,
				Required:    true,
				Usage:       "Namespace to query, as {userId}/{projectId}",
			},
			&cli.StringSliceFlag{
				Name:        "keyword",
				Aliases:     []string{"k"},
				Destination: &keywords,
				Usage:       "Require at least one of these keywords (repeatable; omit to recall by recency)",
			},
			&cli.StringFlag{
				Name:        "start",
				Destination: &start,
				Usage:       "Only include memories at or after this time",
			},
			&cli.StringFlag{
				Name:        "end",
				Destination: &end,
				Usage:       "Only include memories at or before this time",
			},
			&cli.StringFlag{
				Name:        "query",
				Destination: &query,
				Usage:       "Free text to substring-match, plus an embedded time mini-language",
			},
			&cli.IntFlag{
				Name:        "limit",
				Destination: &limit,
				Value:       20,
				Usage:       "Maximum number of results to return",
			},
			&cli.BoolFlag{
				Name:        "include-diary",
				Destination: &includeDiary,
				Usage:       "Include the full diary text of each hit",
			},
			&cli.BoolFlag{
				Name:        "pretty",
				Destination: &pretty,
				Usage:       "Pretty-print JSON output",
			},
			&cli.BoolFlag{
				Name:        "text",
				Destination: &textOut,
				Usage:       "Print the text summary instead of JSON (wins over --pretty)",
			},
		},
		Action: func(_ context.Context, _ *cli.Command) error {
			resolvedLimit := limit
			if resolvedLimit == 0 {
				resolvedLimit = 20
			}
			if resolvedLimit > 100 {
				resolvedLimit = 100
			}
			if resolvedLimit < 0 {
				return fmt.Errorf("limit must not be negative")
			}

			args := model.RecallArgs{
				Namespace:    namespace,
				Keywords:     keywords,
				Start:        start,
				End:          end,
				Query:        query,
				Limit:        resolvedLimit,
				IncludeDiary: includeDiary,
			}

			eng := engine.New(rootDir())
			result, err := eng.Recall(args)
			if err != nil {
				return err
			}

			out, err := cliutil.FormatToolResult(result, textOut, pretty && !textOut)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}
