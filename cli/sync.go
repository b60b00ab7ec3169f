// ABOUTME: Sync CLI commands
// ABOUTME: Handles push, pull, dry runs, status, the scheduling daemon, and dependency graph output
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/harperreed/crmbridge/db"
	"github.com/harperreed/crmbridge/models"
	"github.com/harperreed/crmbridge/sync"
	"github.com/harperreed/crmbridge/viz"
)

// MinDaemonInterval is the shortest interval the daemon accepts.
const MinDaemonInterval = 5 * time.Minute

// ErrRunIncomplete is returned after rendering a run that had failures or hit its deadline.
var ErrRunIncomplete = errors.New("sync run did not complete cleanly")

// SyncPushCommand replays the CRM onto the partner store.
func SyncPushCommand(b *Bridge, args []string) error {
	return runSyncCommand(b, models.DirectionPush, args, os.Stdout)
}

// SyncPullCommand replays the partner store onto the CRM.
func SyncPullCommand(b *Bridge, args []string) error {
	return runSyncCommand(b, models.DirectionPull, args, os.Stdout)
}

func runSyncCommand(b *Bridge, direction models.Direction, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sync "+string(direction), flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "Report what would change without writing to the target")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := syncOnce(ctx, b, direction, *dryRun)
	if err != nil {
		return err
	}

	if *asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		_, _ = fmt.Fprintln(out, string(data))
	} else {
		RenderReport(out, report)
	}

	if !report.OK() {
		return ErrRunIncomplete
	}
	return nil
}

// syncOnce runs one sync through the queue, or a recorded preview for dry runs.
func syncOnce(ctx context.Context, b *Bridge, direction models.Direction, dryRun bool) (*sync.Report, error) {
	if dryRun {
		report, err := b.Engine.Preview(ctx, direction)
		if err != nil {
			return nil, fmt.Errorf("failed to preview sync: %w", err)
		}
		if err := sync.RecordReport(b.DB, report); err != nil {
			return nil, fmt.Errorf("failed to record dry run: %w", err)
		}
		return report, nil
	}

	report, err := b.Dispatcher.Submit(direction).Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync %s failed: %w", direction, err)
	}
	return report, nil
}

// SyncStatusCommand shows per-direction sync state and recent runs.
func SyncStatusCommand(b *Bridge, args []string) error {
	return syncStatus(b, args, os.Stdout)
}

func syncStatus(b *Bridge, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sync status", flag.ContinueOnError)
	limit := fs.Int("limit", 10, "Number of recent runs to show")
	asJSON := fs.Bool("json", false, "Print the latest run report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	states, err := db.GetAllSyncStates(b.DB)
	if err != nil {
		return fmt.Errorf("failed to get sync states: %w", err)
	}
	runs, err := db.ListSyncRuns(b.DB, *limit)
	if err != nil {
		return fmt.Errorf("failed to list sync runs: %w", err)
	}

	if *asJSON {
		if len(runs) == 0 {
			_, _ = fmt.Fprintln(out, "null")
			return nil
		}
		_, _ = fmt.Fprintln(out, string(runs[0].Report))
		return nil
	}

	RenderStatus(out, states, runs)
	return nil
}

// SyncDaemonCommand runs syncs on an interval until interrupted.
func SyncDaemonCommand(b *Bridge, args []string) error {
	fs := flag.NewFlagSet("sync daemon", flag.ContinueOnError)
	interval := fs.Duration("interval", b.Config.DaemonInterval, "Time between runs (minimum 5m)")
	directionsFlag := fs.String("direction", "all", "Comma-separated directions to run: push, pull, or all")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *interval < MinDaemonInterval {
		return fmt.Errorf("interval must be at least %s, got %s", MinDaemonInterval, *interval)
	}

	directions := parseDirections(*directionsFlag)
	if len(directions) == 0 {
		return fmt.Errorf("no valid directions in %q (use push, pull, or all)", *directionsFlag)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Sync daemon started (every %s: %s)\n", *interval, joinDirections(directions))
	fmt.Println("Press Ctrl+C to stop")

	err := runDaemon(ctx, b, directions, *interval, os.Stdout)
	fmt.Println("\nSync daemon stopped")
	return err
}

// runDaemon runs every direction immediately and then on each tick until ctx is done.
func runDaemon(ctx context.Context, b *Bridge, directions []models.Direction, interval time.Duration, out io.Writer) error {
	runAll := func() {
		for _, d := range directions {
			report, err := b.Dispatcher.Submit(d).Wait(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				b.Logger.Error("scheduled sync failed", zap.String("direction", string(d)), zap.Error(err))
				continue
			}
			_, _ = fmt.Fprintf(out, "[%s] %s\n", time.Now().Format("15:04:05"), report.Summary())
		}
	}

	runAll()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			runAll()
		}
	}
}

// parseDirections parses a comma-separated direction list. Unknown entries are dropped.
func parseDirections(input string) []models.Direction {
	if strings.TrimSpace(input) == "all" {
		return []models.Direction{models.DirectionPush, models.DirectionPull}
	}

	out := []models.Direction{}
	seen := make(map[models.Direction]bool)
	for _, part := range strings.Split(input, ",") {
		d, err := models.ParseDirection(strings.TrimSpace(part))
		if err != nil || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func joinDirections(directions []models.Direction) string {
	parts := make([]string, len(directions))
	for i, d := range directions {
		parts[i] = string(d)
	}
	return strings.Join(parts, ", ")
}

// SyncGraphCommand prints the collection dependency graph as DOT.
func SyncGraphCommand(b *Bridge, args []string) error {
	fs := flag.NewFlagSet("sync graph", flag.ContinueOnError)
	side := fs.String("side", "primary", "Collection names to use: primary or partner")
	last := fs.Bool("last", false, "Annotate nodes with the most recent run's counters")
	output := fs.String("output", "", "Output file (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s := models.Side(*side)
	if s != models.SidePrimary && s != models.SidePartner {
		return fmt.Errorf("unknown side %q (use primary or partner)", *side)
	}

	var report *sync.Report
	if *last {
		runs, err := db.ListSyncRuns(b.DB, 1)
		if err != nil {
			return fmt.Errorf("failed to list sync runs: %w", err)
		}
		if len(runs) > 0 {
			report, err = sync.DecodeReport(runs[0].Report)
			if err != nil {
				return err
			}
		}
	}

	dot, err := viz.NewGraphGenerator(nil).GenerateDependencyGraph(context.Background(), s, report)
	if err != nil {
		return err
	}

	if *output != "" {
		return os.WriteFile(*output, []byte(dot), 0644)
	}

	fmt.Println(dot)
	return nil
}
