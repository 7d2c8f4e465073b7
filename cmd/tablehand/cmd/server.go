package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jmcleod/tablehand/api"
	"github.com/jmcleod/tablehand/internal/clock"
	"github.com/jmcleod/tablehand/internal/util"
	"github.com/jmcleod/tablehand/storage"
	bboltstorage "github.com/jmcleod/tablehand/storage/bbolt"
	pgstorage "github.com/jmcleod/tablehand/storage/postgres"
)

var (
	port          int
	tlsCert       string
	tlsKey        string
	seed          bool
	accessTTL     time.Duration
	refreshTTL    time.Duration
	webhookURL    string
	webhookHeader string
	postgresDSN   string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the reference back-office API server",
	Long: `Serves the back-office API under /api/v1 with an in-memory data set.
Refresh sessions are kept in a bbolt file under --data-dir, or in PostgreSQL
with --postgres-dsn, so logins survive a restart. ` + envServerSecret + ` (32 hex-encoded bytes) is required.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		signingKey, wrappingKey, err := serverKeys(os.Getenv(envServerSecret))
		if err != nil {
			return err
		}
		defer util.WipeBytes(wrappingKey)

		repo, err := openSessionRepository(cmd.Context())
		if err != nil {
			return err
		}
		defer repo.Close()

		logger := slog.Default().With("component", "server")
		sessions, err := api.NewPersistentSessionStore(repo, wrappingKey, nil, slog.Default())
		if err != nil {
			return fmt.Errorf("failed to open session store: %w", err)
		}
		defer sessions.Close()

		data := api.NewData(clock.Real(), util.DefaultArgon2idParams())
		if seed {
			if err := api.Seed(data); err != nil {
				return fmt.Errorf("failed to seed data: %w", err)
			}
		}
		if user, pass := os.Getenv(envAdminUsername), os.Getenv(envAdminPassword); user != "" && pass != "" {
			if err := data.AddUser(user, pass, user, "manager"); err != nil {
				return fmt.Errorf("failed to add %s: %w", user, err)
			}
		} else {
			logger.Warn("no user configured; set " + envAdminUsername + " and " + envAdminPassword)
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		opts := []api.Option{
			api.WithSessionStore(sessions),
			api.WithLogger(slog.Default()),
			api.WithTokenTTL(accessTTL, refreshTTL),
			api.WithRegisterer(reg),
		}
		if url := firstNonEmpty(webhookURL, os.Getenv(envAuditWebhookURL)); url != "" {
			opts = append(opts, api.WithAuditWebhook(url, firstNonEmpty(webhookHeader, os.Getenv(envAuditWebhookAuth))))
		}
		a, err := api.New(data, signingKey, opts...)
		util.WipeBytes(signingKey)
		if err != nil {
			return err
		}
		defer a.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		r.Mount("/api/v1", a.Router())

		var tlsConfig *tls.Config
		switch {
		case tlsCert != "" && tlsKey != "":
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		case tlsCert != "" || tlsKey != "":
			return errors.New("--tls-cert and --tls-key must be given together")
		}

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		go a.RunMaintenance(ctx)

		done := make(chan error, 1)
		go func() {
			var err error
			if tlsConfig != nil {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		out := cmd.OutOrStdout()
		printBanner(out)
		scheme := "http"
		if tlsConfig != nil {
			scheme = "https"
		}
		fmt.Fprintf(out, "Starting server on %s://localhost:%d/api/v1 (data: %s)...\n", scheme, port, dataDir)
		if tlsConfig == nil {
			fmt.Fprintln(out, "TLS is off; pass --tls-cert and --tls-key outside development")
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nShutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

type closingRepository interface {
	storage.Repository
	Close() error
}

// openSessionRepository returns PostgreSQL when a DSN is configured and a
// bbolt file under the data directory otherwise.
func openSessionRepository(ctx context.Context) (closingRepository, error) {
	if dsn := firstNonEmpty(postgresDSN, os.Getenv(envPostgresDSN)); dsn != "" {
		repo, err := pgstorage.NewRepositoryFromDSN(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open session storage: %w", err)
		}
		return repo, nil
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(dataDir, "sessions.db"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}
	return repo, nil
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	serverCmd.Flags().BoolVar(&seed, "seed", true, "Load the demo tables, menu and staff")
	serverCmd.Flags().DurationVar(&accessTTL, "access-ttl", 15*time.Minute, "Access token lifetime")
	serverCmd.Flags().DurationVar(&refreshTTL, "refresh-ttl", 7*24*time.Hour, "Refresh session lifetime")
	serverCmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "Keep refresh sessions in PostgreSQL instead of --data-dir (env "+envPostgresDSN+")")
	serverCmd.Flags().StringVar(&webhookURL, "audit-webhook", "", "URL receiving audit events (env "+envAuditWebhookURL+")")
	serverCmd.Flags().StringVar(&webhookHeader, "audit-webhook-header", "", `Header sent with audit webhooks, "Name: Value" (env `+envAuditWebhookAuth+")")
}
