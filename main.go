// ABOUTME: Entry point for the crmbridge CLI, trigger server, and MCP server
// ABOUTME: Routes to sync, partner, config, serve, and mcp commands based on arguments
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/harperreed/crmbridge/charm"
	"github.com/harperreed/crmbridge/cli"
	"github.com/harperreed/crmbridge/sync"
)

const version = "0.1.0"

func main() {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/crmbridge/crmbridge.db)")
	configPath := flag.String("config", "", "Sync config path (default: ~/.config/crmbridge/sync.yaml)")
	debug := flag.Bool("debug", false, "Human-readable debug logging")

	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("crmbridge version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(0)
	}

	opts := cli.Options{DBPath: *dbPath, ConfigPath: *configPath, Debug: *debug}
	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "sync":
		if len(commandArgs) == 0 {
			fmt.Println("Error: sync requires a subcommand")
			printUsage()
			os.Exit(1)
		}
		syncCommand := commandArgs[0]
		syncArgs := commandArgs[1:]

		var run func(*cli.Bridge, []string) error
		switch syncCommand {
		case "push":
			run = cli.SyncPushCommand
		case "pull":
			run = cli.SyncPullCommand
		case "status":
			run = cli.SyncStatusCommand
		case "daemon":
			run = cli.SyncDaemonCommand
		case "graph":
			run = cli.SyncGraphCommand
		default:
			fmt.Printf("Unknown sync command: %s\n\n", syncCommand)
			printUsage()
			os.Exit(1)
		}
		withBridge(opts, func(b *cli.Bridge) error { return run(b, syncArgs) })

	case "partner":
		if len(commandArgs) == 0 {
			fmt.Println("Error: partner requires a subcommand")
			printUsage()
			os.Exit(1)
		}
		partnerArgs := commandArgs[1:]

		var err error
		switch commandArgs[0] {
		case "link":
			err = charm.PartnerLinkCommand(partnerArgs)
		case "status":
			err = charm.PartnerStatusCommand(partnerArgs)
		case "flush":
			err = charm.PartnerFlushCommand(partnerArgs)
		case "wipe":
			err = charm.PartnerWipeCommand(partnerArgs)
		case "auto":
			err = charm.SetAutoSyncCommand(partnerArgs)
		default:
			fmt.Printf("Unknown partner command: %s\n\n", commandArgs[0])
			printUsage()
			os.Exit(1)
		}
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

	case "config":
		if len(commandArgs) == 0 {
			fmt.Println("Error: config requires a subcommand")
			printUsage()
			os.Exit(1)
		}
		var err error
		switch commandArgs[0] {
		case "init":
			err = cli.ConfigInitCommand(opts, commandArgs[1:])
		case "show":
			err = cli.ConfigShowCommand(opts, commandArgs[1:])
		default:
			fmt.Printf("Unknown config command: %s\n\n", commandArgs[0])
			printUsage()
			os.Exit(1)
		}
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

	case "serve":
		withBridge(opts, func(b *cli.Bridge) error { return cli.ServeCommand(b, commandArgs) })

	case "mcp":
		withBridge(opts, func(b *cli.Bridge) error { return cli.MCPCommand(b, version) })

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// withBridge opens both stores, runs fn, and drains the queue before exiting.
func withBridge(opts cli.Options, fn func(*cli.Bridge) error) {
	b, err := cli.OpenBridge(opts)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	runErr := fn(b)
	if err := b.Close(); err != nil {
		log.Printf("Warning: failed to close database: %v", err)
	}
	if runErr != nil {
		log.Fatalf("Error: %v", runErr)
	}
}

func printUsage() {
	fmt.Printf(`crmbridge v%s - Nonprofit CRM and partner platform sync

USAGE:
  crmbridge [global flags] <command> [subcommand] [flags]

GLOBAL FLAGS:
  --version              Show version and exit
  --db-path <path>       Database path (default: %s)
  --config <path>        Sync config path (default: %s)
  --debug                Human-readable debug logging

COMMANDS:
  sync                   Run and inspect syncs
  partner                Manage the partner store connection
  config                 Manage sync configuration
  serve                  Start the HTTP trigger server
  mcp                    Start the MCP server on stdio

SYNC COMMANDS:
  crmbridge sync push       Replay CRM records onto the partner store
    --dry-run                 Report what would change without writing
    --json                    Print the report as JSON
  crmbridge sync pull       Replay partner records onto the CRM
    --dry-run                 Report what would change without writing
    --json                    Print the report as JSON
  crmbridge sync status     Show sync state and recent runs
    --limit <n>               Number of runs to show (default: 10)
    --json                    Print the latest report as JSON
  crmbridge sync daemon     Run syncs on an interval
    --interval <duration>     Time between runs (minimum: 5m)
    --direction <list>        push, pull, or all (default: all)
  crmbridge sync graph      Print the collection dependency graph as DOT
    --side <side>             primary or partner collection names
    --last                    Annotate with the latest run's counters
    --output <file>           Write to a file instead of stdout

PARTNER COMMANDS:
  crmbridge partner link    Link this device to the partner's Charm account
  crmbridge partner status  Show connection and row counts per collection
  crmbridge partner flush   Push pending local writes to the server
  crmbridge partner wipe    Delete the local partner replica (--confirm)
  crmbridge partner auto    Toggle auto-sync (--enable|--disable)

CONFIG COMMANDS:
  crmbridge config init     Write the default sync config (--force to overwrite)
  crmbridge config show     Print the effective config

SERVER COMMANDS:
  crmbridge serve           Serve POST /sync/{direction}, GET /sync/runs, GET /sync/status
    --port <port>             Port to listen on (default: 8080)
    --schedule <duration>     Also run push and pull on this interval
  crmbridge mcp             Expose sync_run and sync_status over MCP

ENVIRONMENT:
  CRMBRIDGE_DB_PATH, CRMBRIDGE_PARTNER_HOST, CRMBRIDGE_BATCH_SIZE, CRMBRIDGE_WORKERS,
  CRMBRIDGE_RUN_TIMEOUT, CRMBRIDGE_MAX_RETRIES (a .env file in the working directory is loaded first)
`, version, sync.DefaultDBPath(), sync.ConfigPath())
}
