package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/agri-advisor/internal/api"
	"github.com/nhle/agri-advisor/internal/credential"
	"github.com/nhle/agri-advisor/internal/logging"
	"github.com/nhle/agri-advisor/internal/model"
	"github.com/nhle/agri-advisor/internal/session"
	"github.com/nhle/agri-advisor/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	apiURL     string

	// Built in PersistentPreRunE
	logger  *zap.Logger
	cfg     *model.AppConfig
	client  *api.Client
	tokens  credential.TokenStore
	manager *session.Manager
	cache   *store.SQLiteStore
)

var errNotSignedIn = errors.New("not signed in: run 'agri login' first")

// openTokenStore is replaced in tests with an in-memory slot.
var openTokenStore = func(dir string) (credential.TokenStore, error) {
	ring, err := credential.OpenKeyring(dir)
	if err != nil {
		return nil, err
	}
	return credential.NewKeyringStore(ring), nil
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "agri",
	Short: "Agri Advisor - terminal client for the farming advisory service",
	Long: `agri signs you in to the Agri Advisor backend and keeps your
notifications (price alerts, weather warnings, recommendations) in view.

Run without arguments to start the interactive terminal UI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = model.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if apiURL != "" {
			cfg.API.BaseURL = apiURL
		}

		// The terminal UI owns the screen, so it logs to a file.
		logFile := ""
		if isTUI(cmd) {
			logFile = cfg.Log.File
		}
		logger, err = logging.New(cfg.Log.Level, logFile, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		client = api.NewClient(cfg.ResolvedBaseURL(),
			api.WithTimeout(cfg.Timeout()),
			api.WithRateLimit(cfg.API.RatePerSec),
			api.WithLogger(logger),
		)

		tokens, err = openTokenStore(model.ConfigDir())
		if err != nil {
			return err
		}
		manager = session.New(client, tokens, logger)

		if cfg.Cache.Path != "" {
			cache, err = store.NewSQLiteStore(cfg.Cache.Path)
			if err != nil {
				// The cache is an optimization; run without it.
				logger.Warn("opening notification cache failed", zap.String("path", cfg.Cache.Path), zap.Error(err))
				cache = nil
			}
		}

		logger.Debug("client configured", zap.String("api", client.BaseURL()))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch the terminal UI
		return runTUI(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", model.DefaultConfigPath(), "Config file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL including /api (or set AGRI_API_BASE_URL)")

	// Add commands to root
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// execute runs the root command and releases what PersistentPreRunE
// opened. Cobra skips post-run hooks when a command fails, so the cleanup
// lives here.
func execute() error {
	defer closeResources()
	return rootCmd.Execute()
}

func closeResources() {
	if cache != nil {
		if err := cache.Close(); err != nil && logger != nil {
			logger.Warn("closing notification cache failed", zap.Error(err))
		}
		cache = nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

// isTUI matches by name; referring to rootCmd here is an initialization cycle.
func isTUI(cmd *cobra.Command) bool {
	return !cmd.HasParent() || cmd.Name() == "tui"
}

// requireSession restores the stored session and fails when nobody is
// signed in.
func requireSession(ctx context.Context) (*model.User, error) {
	_ = manager.Initialize(ctx)
	u := manager.User()
	if u == nil {
		return nil, errNotSignedIn
	}
	return u, nil
}
