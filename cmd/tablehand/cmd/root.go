package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

const (
	envAPIURL            = "TABLEHAND_API_URL"
	envDataDir           = "TABLEHAND_DATA_DIR"
	envLogLevel          = "TABLEHAND_LOG_LEVEL"
	envStoragePassphrase = "TABLEHAND_STORAGE_PASSPHRASE"
	envPassword          = "TABLEHAND_PASSWORD"
	envServerSecret      = "TABLEHAND_SERVER_SECRET"
	envAdminUsername     = "TABLEHAND_ADMIN_USERNAME"
	envAdminPassword     = "TABLEHAND_ADMIN_PASSWORD"
	envAuditWebhookURL   = "TABLEHAND_AUDIT_WEBHOOK_URL"
	envAuditWebhookAuth  = "TABLEHAND_AUDIT_WEBHOOK_HEADER"
	envPostgresDSN       = "TABLEHAND_POSTGRES_DSN"

	defaultAPIURL  = "http://localhost:8080/api/v1"
	defaultDataDir = "./data"
)

var (
	apiURL   string
	dataDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "tablehand",
	Short: "Tablehand is a back-office client for restaurants and guesthouses",
	Long: `Tablehand talks to the back-office API: tables, sales, reservations and the
cashbox. It also runs a reference API server for development.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		apiURL = firstNonEmpty(apiURL, os.Getenv(envAPIURL), defaultAPIURL)
		dataDir = firstNonEmpty(dataDir, os.Getenv(envDataDir), defaultDataDir)
		level, err := parseLevel(firstNonEmpty(logLevel, os.Getenv(envLogLevel), "warn"))
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		return nil
	},
}

// Execute loads .env from the working directory, then runs the command
// named on the command line.
func Execute() {
	// A missing .env is fine; the environment may be set another way.
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API root (env "+envAPIURL+", default "+defaultAPIURL+")")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for persistent data (env "+envDataDir+", default "+defaultDataDir+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (env "+envLogLevel+")")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
