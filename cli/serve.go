// ABOUTME: HTTP trigger server subcommand
// ABOUTME: Serves sync triggers and optionally runs the scheduler in the same process
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harperreed/crmbridge/models"
	"github.com/harperreed/crmbridge/web"
)

// ServeCommand starts the HTTP trigger server.
func ServeCommand(b *Bridge, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := fs.Int("port", 8080, "Port to listen on")
	schedule := fs.Duration("schedule", 0, "Also run push and pull on this interval (minimum 5m, 0 disables)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *schedule != 0 && *schedule < MinDaemonInterval {
		return fmt.Errorf("schedule must be at least %s, got %s", MinDaemonInterval, *schedule)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := web.NewServer(b.DB, b.Dispatcher, b.Config.RunTimeout+time.Minute, b.Logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx, *port)
	})
	if *schedule > 0 {
		g.Go(func() error {
			return runDaemon(ctx, b, []models.Direction{models.DirectionPush, models.DirectionPull}, *schedule, os.Stdout)
		})
	}

	fmt.Printf("Serving sync triggers on http://localhost:%d\n", *port)
	return g.Wait()
}
