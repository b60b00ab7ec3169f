// ABOUTME: Wiring shared by every sync entry point
// ABOUTME: Opens both stores, wraps them in retries, and builds the engine, queue, and dispatcher
package cli

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/harperreed/crmbridge/charm"
	"github.com/harperreed/crmbridge/connector"
	"github.com/harperreed/crmbridge/db"
	"github.com/harperreed/crmbridge/sync"
)

// Options are the global flags that affect how the bridge is opened.
type Options struct {
	DBPath     string
	ConfigPath string
	Debug      bool
}

// Bridge holds one process's sync stack. Every trigger (CLI, daemon, HTTP,
// MCP) submits through the same Dispatcher, so runs never overlap.
type Bridge struct {
	DB         *sql.DB
	Config     *sync.Config
	Logger     *zap.Logger
	Engine     *sync.Engine
	Queue      *sync.Queue
	Dispatcher *sync.Dispatcher
}

// NewLogger returns a production JSON logger, or a development console logger when debug is set.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// LoadConfig reads the sync config from path, or from the default location
// when path is empty, then applies the db path flag.
func LoadConfig(opts Options) (*sync.Config, error) {
	var (
		cfg *sync.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = sync.LoadConfigFrom(opts.ConfigPath)
	} else {
		cfg, err = sync.LoadConfig()
	}
	if err != nil {
		return nil, err
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	return cfg, nil
}

// OpenBridge opens the primary SQLite store and the partner Charm KV store.
func OpenBridge(opts Options) (*Bridge, error) {
	logger, err := NewLogger(opts.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	database, err := db.OpenDatabase(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	charmCfg, err := charm.LoadConfig()
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to load partner config: %w", err)
	}
	if cfg.PartnerHost != "" {
		charmCfg.Host = cfg.PartnerHost
	}
	kv, err := charm.NewClient(charmCfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to open partner store: %w", err)
	}

	logger.Debug("stores opened",
		zap.String("db_path", cfg.DBPath),
		zap.String("partner_host", charmCfg.Host))

	return NewBridge(database, connector.NewSQLConnector(database), connector.NewKVConnector(kv), cfg, logger), nil
}

// NewBridge builds the sync stack over already-open connectors. Both
// connectors are wrapped with the configured retry policy.
func NewBridge(database *sql.DB, primary, partner connector.Connector, cfg *sync.Config, logger *zap.Logger) *Bridge {
	if cfg == nil {
		cfg = sync.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	policy := cfg.Retry.Policy()
	primary = connector.NewRetrying(primary, policy, logger)
	partner = connector.NewRetrying(partner, policy, logger)

	engine := sync.NewEngine(primary, partner, cfg, logger)
	queue := sync.NewQueue(engine, cfg.RunTimeout, logger)
	queue.OnComplete = func(r *sync.Report) {
		if err := sync.RecordReport(database, r); err != nil {
			logger.Error("failed to record sync run", zap.String("run_id", r.RunID), zap.Error(err))
		}
	}

	return &Bridge{
		DB:         database,
		Config:     cfg,
		Logger:     logger,
		Engine:     engine,
		Queue:      queue,
		Dispatcher: &sync.Dispatcher{Queue: queue, Primary: primary},
	}
}

// Close drains the queue and closes the database.
func (b *Bridge) Close() error {
	b.Queue.Close()
	_ = b.Logger.Sync()
	return b.DB.Close()
}
