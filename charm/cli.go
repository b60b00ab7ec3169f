// ABOUTME: CLI commands for the partner store's Charm KV connection
// ABOUTME: Link, status, flush, auto-sync toggling, and local replica wipe

package charm

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// KeyPrefix namespaces every partner collection key.
const KeyPrefix = "partner/"

// PartnerLinkCommand links this device to the partner's Charm account.
// Uses SSH key auth - charm handles this automatically via SSH keys.
func PartnerLinkCommand(args []string) error {
	fs := flag.NewFlagSet("partner link", flag.ExitOnError)
	_ = fs.Parse(args)

	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("Linking to partner store (%s)...\n\n", cfg.Host)

	c, err := GetClient()
	if err != nil {
		return fmt.Errorf("failed to initialize client: %w", err)
	}

	// Test connection by syncing
	if err := c.Sync(); err != nil {
		return fmt.Errorf("link failed: %w", err)
	}

	id, err := c.ID()
	if err != nil {
		fmt.Println("✓ Device linked (ID unavailable)")
	} else {
		fmt.Printf("✓ Linked to account: %s\n", id)
	}

	fmt.Printf("✓ Auto-sync: %v\n", cfg.AutoSync)
	return nil
}

// PartnerStatusCommand shows the partner connection and how many rows each collection holds.
func PartnerStatusCommand(args []string) error {
	fs := flag.NewFlagSet("partner status", flag.ExitOnError)
	_ = fs.Parse(args)

	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("Partner Store Status")
	fmt.Println("────────────────────")
	fmt.Printf("Server:    %s\n", cfg.Host)
	fmt.Printf("Auto-sync: %v\n", cfg.AutoSync)

	c, err := GetClient()
	if err != nil {
		fmt.Println("\nStatus: Not connected")
		return nil //nolint:nilerr // Not connected is a valid state, not an error
	}
	if id, err := c.ID(); err == nil {
		fmt.Printf("ID:        %s\n", id)
	} else {
		fmt.Println("ID:        unavailable (not linked)")
	}

	fmt.Println()
	return printCollectionCounts(c, os.Stdout)
}

// printCollectionCounts lists each partner collection with its row count.
func printCollectionCounts(c *Client, out io.Writer) error {
	keys, err := c.KeysWithPrefix([]byte(KeyPrefix))
	if err != nil {
		return fmt.Errorf("failed to list partner keys: %w", err)
	}

	counts := make(map[string]int)
	var order []string
	for _, k := range keys {
		collection, _, ok := strings.Cut(strings.TrimPrefix(string(k), KeyPrefix), "/")
		if !ok {
			continue
		}
		if _, seen := counts[collection]; !seen {
			order = append(order, collection)
		}
		counts[collection]++
	}

	if len(order) == 0 {
		_, _ = fmt.Fprintln(out, "  (no partner rows)")
		return nil
	}
	for _, collection := range order {
		_, _ = fmt.Fprintf(out, "  %-12s %d\n", collection, counts[collection])
	}
	return nil
}

// PartnerFlushCommand pushes local partner writes to the server immediately.
func PartnerFlushCommand(args []string) error {
	fs := flag.NewFlagSet("partner flush", flag.ExitOnError)
	_ = fs.Parse(args)

	c, err := GetClient()
	if err != nil {
		return fmt.Errorf("failed to get client: %w", err)
	}

	if err := c.Sync(); err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}

	fmt.Println("✓ Partner store synced")
	return nil
}

// PartnerWipeCommand resets the local replica of the partner store.
// WARNING: deletes every locally cached partner row!
func PartnerWipeCommand(args []string) error {
	fs := flag.NewFlagSet("partner wipe", flag.ExitOnError)
	confirm := fs.Bool("confirm", false, "Confirm data wipe")
	_ = fs.Parse(args)

	if !*confirm {
		fmt.Println("WARNING: This will delete the local partner replica!")
		fmt.Println()
		fmt.Println("To confirm, run:")
		fmt.Println("  crmbridge partner wipe --confirm")
		return nil
	}

	c, err := GetClient()
	if err != nil {
		return fmt.Errorf("failed to get client: %w", err)
	}

	if err := c.Reset(); err != nil {
		return fmt.Errorf("failed to reset KV store: %w", err)
	}

	fmt.Println("✓ Partner replica wiped")
	fmt.Println("Run 'crmbridge sync push' to repopulate it.")
	return nil
}

// SetAutoSyncCommand enables or disables auto-sync.
func SetAutoSyncCommand(args []string) error {
	fs := flag.NewFlagSet("partner auto", flag.ExitOnError)
	enable := fs.Bool("enable", false, "Enable auto-sync")
	disable := fs.Bool("disable", false, "Disable auto-sync")
	_ = fs.Parse(args)

	if !*enable && !*disable {
		fmt.Println("Usage: crmbridge partner auto --enable|--disable")
		return nil
	}

	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *enable {
		if err := cfg.SetAutoSync(true); err != nil {
			return fmt.Errorf("failed to enable auto-sync: %w", err)
		}
		fmt.Println("✓ Auto-sync enabled")
	} else {
		if err := cfg.SetAutoSync(false); err != nil {
			return fmt.Errorf("failed to disable auto-sync: %w", err)
		}
		fmt.Println("✓ Auto-sync disabled")
	}

	return nil
}
