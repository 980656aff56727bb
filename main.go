package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/chirino/agent-memory/internal/cmd/keywords"
	"github.com/chirino/agent-memory/internal/cmd/now"
	"github.com/chirino/agent-memory/internal/cmd/recall"
	"github.com/chirino/agent-memory/internal/cmd/remember"
	"github.com/chirino/agent-memory/internal/engine"
	"github.com/chirino/agent-memory/internal/rootdir"
	"github.com/chirino/agent-memory/internal/rpc"
)

const logLevelEnvVar = "MEMORY_STORE_LOG_LEVEL"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	configureLogLevel()

	args, runCLI := splitCLIFlag(os.Args)
	if runCLI {
		if err := runOneShot(ctx, args); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := runServer(); err != nil {
		log.Fatal(err)
	}
}

// configureLogLevel sets the charmbracelet/log level from
// MEMORY_STORE_LOG_LEVEL (debug/info/warn/error), defaulting to info
// and warning once on an unrecognized value rather than failing.
func configureLogLevel() {
	v := strings.TrimSpace(os.Getenv(logLevelEnvVar))
	if v == "" {
		return
	}
	level, err := log.ParseLevel(v)
	if err != nil {
		log.Warn("ignoring unrecognized log level", "value", v, "env", logLevelEnvVar)
		return
	}
	log.SetLevel(level)
}

// splitCLIFlag reports whether --cli is present anywhere in argv and
// returns argv with it removed. Per the server-mode switch, --cli
// selects the one-shot CLI tree; its absence selects the stdio server.
func splitCLIFlag(argv []string) ([]string, bool) {
	out := make([]string, 0, len(argv))
	found := false
	for _, a := range argv {
		if a == "--cli" {
			found = true
			continue
		}
		out = append(out, a)
	}
	return out, found
}

func runOneShot(ctx context.Context, args []string) error {
	app := &cli.Command{
		Name:  "memory",
		Usage: "Long-term memory store for AI agents (stdio JSON-RPC server by default; pass --cli for one-shot use)",
		Commands: []*cli.Command{
			remember.Command(rootdir.Resolve),
			recall.Command(rootdir.Resolve),
			now.Command(rootdir.Resolve),
			keywords.Command(rootdir.Resolve),
		},
	}
	return app.Run(ctx, args)
}

func runServer() error {
	eng := engine.New(rootdir.Resolve())
	dispatcher := rpc.New(eng)
	log.Info("memory store serving stdio JSON-RPC", "root", rootdir.Resolve())
	return dispatcher.Run(os.Stdin, os.Stdout)
}
