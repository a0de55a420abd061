package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"postvote/app/config"
	"postvote/service"
)

const CliVersion = "1.0.0"

var exit = os.Exit

func main() {
	RealMain()
}

// RealMain runs the command named by os.Args and exits with its status.
func RealMain() {
	exit(run(os.Args, os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	if len(args) < 2 {
		printHelp(stdout)
		return 1
	}

	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		printHelp(stdout)
		return 0
	case "version":
		fmt.Fprintf(stdout, "postvote version %s\n", CliVersion)
		return 0
	case "serve":
		return serve(stdout)
	case "db":
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(stdout, "Error: %v\n", err)
			return 1
		}
		commands := service.NewCommands(cfg, cfg.Logger(os.Stderr))
		commands.Out = stdout
		return commands.HandleCommand(args[2:])
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n\n", args[1])
		printHelp(stdout)
		return 1
	}
}

func printHelp(w io.Writer) {
	helpText := `Usage: postvote <command> [options]
Commands:
  help                 Display this help message.
  version              Show version information.
  serve                Run the blog API server.
  db <command>         Manage the database (init, clean, backup, restore <file>).

Configuration is read from the environment and an optional .env file
(POSTVOTE_ADDR, STORE_DRIVER, BADGER_PATH, DATABASE_URL, JWT_SECRET, ...).
`
	fmt.Fprintln(w, helpText)
}

// serve runs the API server until SIGINT or SIGTERM.
func serve(stdout io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return 1
	}
	log := cfg.Logger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := service.RunAppServer(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		return 1
	}
	return 0
}
