// Package keywords implements the "keywords list" / "keywords
// list-global" one-shot CLI subcommands.
package keywords

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/chirino/agent-memory/internal/cmd/cliutil"
	"github.com/chirino/agent-memory/internal/engine"
)

// Command returns the keywords sub-command, grouping list and list-global.
func Command(rootDir func() string) *cli.Command {
	return &cli.Command{
		Name:  "keywords",
		Usage: "Inspect recorded keywords",
		Commands: []*cli.Command{
			listCommand(rootDir),
			listGlobalCommand(rootDir),
		},
	}
}

func listCommand(rootDir func() string) *cli.Command {
	var namespace string
	var pretty, textOut bool

	return &cli.Command{
		Name:  "list",
		Usage: "List every keyword recorded in one namespace",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "namespace",
				Sources:     cli.EnvVars("MEMORY_STORE_NAMESPACE"),
				Destination: &namespace,
				Required:    true,
				Usage:       "Namespace to list keywords for, as {userId}/{projectId}",
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
			eng := engine.New(rootDir())
			result, err := eng.KeywordsList(namespace)
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

func listGlobalCommand(rootDir func() string) *cli.Command {
	var pretty, textOut bool

	return &cli.Command{
		Name:  "list-global",
		Usage: "List every keyword recorded across all namespaces",
		Flags: []cli.Flag{
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
			eng := engine.New(rootDir())
			result, err := eng.KeywordsListGlobal()
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
