// Package remember implements the "remember" one-shot CLI subcommand.
package remember

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/chirino/agent-memory/internal/cmd/cliutil"
	"github.com/chirino/agent-memory/internal/engine"
	"github.com/chirino/agent-memory/internal/memerr"
	"github.com/chirino/agent-memory/internal/model"
)

// Command returns the remember sub-command.
func Command(rootDir func() string) *cli.Command {
	var (
		namespace         string
		keywords          []string
		slice, sliceFile  string
		diary, diaryFile  string
		occurredAt        string
		importance        int
		source            string
		pretty, textOut   bool
	)

	return &cli.Command{
		Name:  "remember",
		Usage: "Record one long-term memory: keywords, a searchable slice, and a diary entry",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "namespace",
				Sources:     cli.EnvVars("MEMORY_STORE_NAMESPACE"),
				Destination: &namespace,
				Required:    true,
				Usage:       "Namespace to record into, as {userId}/{projectId}",
			},
			&cli.StringSliceFlag{
				Name:        "keyword",
				Aliases:     []string{"k"},
				Destination: &keywords,
				Usage:       "Keyword to index this memory under (repeatable, at least one)",
			},
			&cli.StringFlag{
				Name:        "slice",
				Destination: &slice,
				Usage:       "Short searchable summary (mutually exclusive with --slice-file)",
			},
			&cli.StringFlag{
				Name:        "slice-file",
				Destination: &sliceFile,
				TakesFile:   true,
				Usage:       "Read the slice from this file instead of --slice",
			},
			&cli.StringFlag{
				Name:        "diary",
				Destination: &diary,
				Usage:       "Longer free-form memory text (mutually exclusive with --diary-file)",
			},
			&cli.StringFlag{
				Name:        "diary-file",
				Destination: &diaryFile,
				TakesFile:   true,
				Usage:       "Read the diary text from this file instead of --diary",
			},
			&cli.StringFlag{
				Name:        "occurred-at",
				Destination: &occurredAt,
				Usage:       "When the memory happened, RFC3339 or YYYY-MM-DD (when omitted, recall uses the recording time)",
			},
			&cli.IntFlag{
				Name:        "importance",
				Sources:     cli.EnvVars("MEMORY_STORE_IMPORTANCE"),
				Destination: &importance,
				Usage:       "Subjective importance, 1 (low) to 5 (high)",
			},
			&cli.StringFlag{
				Name:        "source",
				Sources:     cli.EnvVars("MEMORY_STORE_SOURCE"),
				Destination: &source,
				Usage:       "Where this memory came from",
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
			if slice != "" && sliceFile != "" {
				return fmt.Errorf("--slice and --slice-file are mutually exclusive")
			}
			if diary != "" && diaryFile != "" {
				return fmt.Errorf("--diary and --diary-file are mutually exclusive")
			}

			resolvedSlice, err := cliutil.ResolveInlineOrFile("slice", slice, sliceFile)
			if err != nil {
				return err
			}
			resolvedDiary, err := cliutil.ResolveInlineOrFile("diary", diary, diaryFile)
			if err != nil {
				return err
			}

			var importancePtr *int
			if importance != 0 {
				if importance < 1 || importance > 5 {
					return &memerr.InvalidImportanceError{Value: importance}
				}
				v := importance
				importancePtr = &v
			}

			args := model.RememberArgs{
				Namespace:  namespace,
				Keywords:   keywords,
				Slice:      resolvedSlice,
				Diary:      resolvedDiary,
				OccurredAt: occurredAt,
				Importance: importancePtr,
				Source:     source,
			}

			eng := engine.New(rootDir())
			result, err := eng.Remember(args)
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
