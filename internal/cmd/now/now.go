// Package now implements the "now" one-shot CLI subcommand.
package now

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/chirino/agent-memory/internal/cmd/cliutil"
	"github.com/chirino/agent-memory/internal/engine"
)

// Command returns the now sub-command.
func Command(rootDir func() string) *cli.Command {
	var pretty, text bool
	return &cli.Command{
		Name:  "now",
		Usage: "Report the current time, local and UTC",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "pretty",
				Destination: &pretty,
				Usage:       "Pretty-print JSON output",
			},
			&cli.BoolFlag{
				Name:        "text",
				Destination: &text,
				Usage:       "Print the text summary instead of JSON (wins over --pretty)",
			},
		},
		Action: func(_ context.Context, _ *cli.Command) error {
			eng := engine.New(rootDir())
			result, err := eng.Now()
			if err != nil {
				return err
			}
			out, err := cliutil.FormatToolResult(result, text, pretty && !text)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
}
