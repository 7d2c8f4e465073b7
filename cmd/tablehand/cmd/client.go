package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmcleod/tablehand/backoffice"
	"github.com/jmcleod/tablehand/cache"
	"github.com/jmcleod/tablehand/gateway"
	"github.com/jmcleod/tablehand/internal/util"
	"github.com/jmcleod/tablehand/invalidation"
	"github.com/jmcleod/tablehand/session"
	"github.com/jmcleod/tablehand/storage"
	bboltstorage "github.com/jmcleod/tablehand/storage/bbolt"
)

var errNotLoggedIn = errors.New("not logged in; run `tablehand login`")

// client is the stack one CLI invocation works with. The access credential
// is the only thing that outlives the process.
type client struct {
	repo    *bboltstorage.Store
	slots   *storage.Slots
	session *session.Store
	gateway *gateway.Client
	office  *backoffice.Client
}

func openClient(cmd *cobra.Command) (*client, error) {
	passphrase := os.Getenv(envStoragePassphrase)
	if passphrase == "" {
		return nil, fmt.Errorf("%s is not set", envStoragePassphrase)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(dataDir, "client.db"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open client storage: %w", err)
	}
	slots, err := storage.OpenSlots(repo, passphrase, util.DefaultArgon2idParams())
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to unlock client storage: %w", err)
	}

	httpClient := gateway.NewHTTPClient(30 * time.Second)
	auth, err := gateway.NewAuthenticator(apiURL, httpClient)
	if err != nil {
		slots.Close()
		repo.Close()
		return nil, err
	}
	store := cache.New()
	sess := session.New(auth,
		session.WithDurable(slots),
		session.WithCache(store),
		session.WithLogger(slog.Default()),
		session.WithLocator(session.LocatorFunc(cmd.CommandPath)))
	sess.OnTeardown(func(r session.Reason) {
		if r != session.ReasonLogout {
			fmt.Fprintf(cmd.ErrOrStderr(), "Session ended (%s); run `tablehand login` again.\n", r)
		}
	})

	gw, err := gateway.New(gateway.Config{
		BaseURL:    apiURL,
		Session:    sess,
		HTTPClient: httpClient,
		Logger:     slog.Default(),
	})
	if err != nil {
		slots.Close()
		repo.Close()
		return nil, err
	}
	office := backoffice.New(gw, store, invalidation.Default(store), sess, backoffice.WithLogger(slog.Default()))
	return &client{repo: repo, slots: slots, session: sess, gateway: gw, office: office}, nil
}

// restore reloads the credential saved by `tablehand login`.
func (c *client) restore(ctx context.Context) (session.Session, error) {
	sess, err := c.session.Restore(ctx)
	if errors.Is(err, session.ErrUnauthenticated) {
		return session.Session{}, errNotLoggedIn
	}
	return sess, err
}

func (c *client) Close() {
	c.slots.Close()
	c.repo.Close()
}

// withSession opens the client, restores the saved session and runs fn.
func withSession(cmd *cobra.Command, fn func(*client, session.Session) error) error {
	c, err := openClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()
	sess, err := c.restore(cmd.Context())
	if err != nil {
		return describe(err)
	}
	return describe(fn(c, sess))
}

// describe turns a gateway error into the line a user should see.
func describe(err error) error {
	switch gateway.KindOf(err) {
	case gateway.KindNone:
		return err
	case gateway.KindValidationFailure:
		return errors.New(gateway.Message(err))
	case gateway.KindUnauthenticated, gateway.KindRefreshDenied, gateway.KindAuthorizationExpired:
		return errNotLoggedIn
	case gateway.KindNetworkFailure:
		return fmt.Errorf("cannot reach %s: %w", apiURL, err)
	}
	if gateway.IsNotFound(err) {
		return errors.New(gateway.Message(err))
	}
	return err
}
