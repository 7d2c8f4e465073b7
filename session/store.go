// Package session holds the authenticated state of the client: the access
// and refresh credentials, the user and the open cashbox. All changes go
// through Login, Refresh, UpdateCashbox and Logout.
package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sync/singleflight"

	"github.com/jmcleod/tablehand/internal/util"
	"github.com/jmcleod/tablehand/storage"
)

// Store is the single owner of session state. It is safe for concurrent use.
type Store struct {
	auth    Authenticator
	durable Durable
	cache   CacheClearer
	locator Locator
	events  *eventLogger

	flight singleflight.Group

	mu        sync.RWMutex
	live      bool
	gen       uint64
	access    *memguard.Enclave
	refresh   *memguard.Enclave
	user      *UserProfile
	cashbox   *CashboxRef
	listeners []func(Reason)

	// denied fingerprints the credential of a session ended by a refused
	// renewal, so callers that raced the teardown see the same outcome.
	denied    [sha256.Size]byte
	hasDenied bool
}

// New returns an empty (logged out) store.
func New(auth Authenticator, opts ...Option) *Store {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		auth:    auth,
		durable: o.durable,
		cache:   o.cache,
		locator: o.locator,
		events:  newEventLogger(o.logger),
	}
}

// OnTeardown registers fn to run once each time a live session ends.
func (s *Store) OnTeardown(fn func(Reason)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Login authenticates against the backend and replaces any current session.
func (s *Store) Login(ctx context.Context, creds Credentials) (Session, error) {
	creds.Username = util.Normalize(creds.Username)
	grant, err := s.auth.Login(ctx, creds)
	if err != nil {
		s.events.log(ctx, slog.LevelWarn, EventLoginFailure,
			slog.String("username", creds.Username),
			slog.String("reason", err.Error()))
		if errors.Is(err, ErrInvalidCredentials) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("login: %w", err)
	}
	if grant.AccessToken == "" {
		return Session{}, fmt.Errorf("login: backend returned no access credential")
	}

	s.mu.Lock()
	replaced := s.live
	s.setGrantLocked(grant)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	// A previous user's entries must not leak into this session.
	if replaced && s.cache != nil {
		s.cache.ClearAll()
	}
	if s.durable != nil {
		if err := s.durable.SaveCredential(grant.AccessToken); err != nil {
			s.events.log(ctx, slog.LevelError, EventLoginSuccess, slog.String("persist_error", err.Error()))
		}
		path, err := s.durable.TakeReturnPath()
		if err != nil {
			s.events.log(ctx, slog.LevelWarn, EventLoginSuccess, slog.String("return_path_error", err.Error()))
		}
		snap.ReturnPath = path
	}

	attrs := []slog.Attr{slog.Bool("refreshable", snap.HasRefreshCredential)}
	if snap.User != nil {
		attrs = append(attrs, slog.String("user_id", snap.User.ID))
	}
	s.events.log(ctx, slog.LevelInfo, EventLoginSuccess, attrs...)
	return snap, nil
}

// Restore reloads the access credential persisted by a previous process. It
// returns ErrUnauthenticated when nothing is stored. When the authenticator
// can resolve profiles the user is restored too; a rejected credential is
// dropped from durable storage.
func (s *Store) Restore(ctx context.Context) (Session, error) {
	if s.durable == nil {
		return Session{}, ErrUnauthenticated
	}
	token, err := s.durable.LoadCredential()
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, ErrUnauthenticated
	}
	if err != nil {
		return Session{}, fmt.Errorf("loading credential: %w", err)
	}

	grant := Grant{AccessToken: token}
	if pf, ok := s.auth.(ProfileFetcher); ok {
		user, cashbox, err := pf.Profile(ctx, token)
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrInvalidCredentials) {
				if clearErr := s.durable.ClearCredential(); clearErr != nil {
					s.events.log(ctx, slog.LevelError, EventRestored, slog.String("clear_error", clearErr.Error()))
				}
				return Session{}, ErrUnauthenticated
			}
			return Session{}, fmt.Errorf("restoring profile: %w", err)
		}
		grant.User = &user
		grant.Cashbox = cashbox
	}

	s.mu.Lock()
	s.setGrantLocked(grant)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.events.log(ctx, slog.LevelInfo, EventRestored)
	return snap, nil
}

// setGrantLocked installs a full grant. Caller holds s.mu.
func (s *Store) setGrantLocked(g Grant) {
	s.access = sealToken(g.AccessToken)
	s.refresh = sealToken(g.RefreshToken)
	s.user = g.User
	s.cashbox = g.Cashbox
	s.live = true
	s.gen++
	s.hasDenied = false
}

func sealToken(token string) *memguard.Enclave {
	if token == "" {
		return nil
	}
	// NewEnclave wipes its input, so hand it a private copy.
	return memguard.NewEnclave([]byte(token))
}

func openToken(e *memguard.Enclave) (string, error) {
	if e == nil {
		return "", nil
	}
	buf, err := e.Open()
	if err != nil {
		return "", fmt.Errorf("opening credential enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

// Current returns a snapshot of the session.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.live {
		return Session{}, false
	}
	return s.snapshotLocked(), true
}

func (s *Store) snapshotLocked() Session {
	snap := Session{HasRefreshCredential: s.refresh != nil}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	if s.cashbox != nil {
		c := *s.cashbox
		snap.Cashbox = &c
	}
	return snap
}

// Authenticated reports whether an access credential is held.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live && s.access != nil
}

// Credential returns the current access credential, or ErrUnauthenticated.
func (s *Store) Credential() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.live || s.access == nil {
		return "", ErrUnauthenticated
	}
	return openToken(s.access)
}

// Refresh renews the access credential. Concurrent callers share a single
// backend call and all observe its outcome.
func (s *Store) Refresh(ctx context.Context) (string, error) {
	s.mu.RLock()
	live, gen := s.live, s.gen
	s.mu.RUnlock()
	if !live {
		return "", ErrUnauthenticated
	}
	return s.join(ctx, gen, "")
}

// endedLocked is the error for a caller whose session is gone. Caller holds
// s.mu.
func (s *Store) endedLocked(stale string) error {
	if stale != "" && s.hasDenied && s.denied == sha256.Sum256([]byte(stale)) {
		return ErrRefreshDenied
	}
	return ErrUnauthenticated
}

// RefreshFrom renews the credential that was rejected. When the held
// credential already differs from stale, a renewal has completed since the
// request was sent and the current credential is returned without a
// backend call.
func (s *Store) RefreshFrom(ctx context.Context, stale string) (string, error) {
	s.mu.RLock()
	if !s.live || s.access == nil {
		err := s.endedLocked(stale)
		s.mu.RUnlock()
		return "", err
	}
	current, err := openToken(s.access)
	gen := s.gen
	s.mu.RUnlock()
	if err != nil {
		return "", err
	}
	if current != stale {
		return current, nil
	}
	return s.join(ctx, gen, stale)
}

// join attaches to the in-flight renewal or starts one. The renewal runs
// detached from ctx so an impatient first caller cannot fail the others.
func (s *Store) join(ctx context.Context, gen uint64, stale string) (string, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan("refresh", func() (any, error) {
		return s.renew(flightCtx, gen, stale)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (s *Store) renew(ctx context.Context, gen uint64, stale string) (string, error) {
	s.mu.RLock()
	if !s.live {
		err := s.endedLocked(stale)
		s.mu.RUnlock()
		return "", err
	}
	if s.gen != gen {
		// Renewed (or replaced by a login) while this caller was queued.
		token, err := openToken(s.access)
		s.mu.RUnlock()
		return token, err
	}
	refreshToken, err := openToken(s.refresh)
	s.mu.RUnlock()
	if err != nil {
		return "", err
	}

	if refreshToken == "" {
		s.events.log(ctx, slog.LevelWarn, EventRefreshDenied, slog.String("reason", "no refresh credential"))
		return "", s.deny(gen)
	}

	grant, err := s.auth.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshDenied) {
			s.events.log(ctx, slog.LevelWarn, EventRefreshDenied, slog.String("reason", err.Error()))
			return "", s.deny(gen)
		}
		s.events.log(ctx, slog.LevelWarn, EventRefreshFailure, slog.String("reason", err.Error()))
		return "", fmt.Errorf("refreshing credential: %w", err)
	}
	if grant.AccessToken == "" {
		if err := s.deny(gen); !errors.Is(err, ErrRefreshDenied) {
			return "", err
		}
		return "", fmt.Errorf("%w: backend returned no access credential", ErrRefreshDenied)
	}

	s.mu.Lock()
	if !s.live || s.gen != gen {
		// Logged out or replaced mid-flight; the new grant belongs to nobody.
		s.mu.Unlock()
		return "", ErrUnauthenticated
	}
	s.access = sealToken(grant.AccessToken)
	if grant.RefreshToken != "" {
		s.refresh = sealToken(grant.RefreshToken)
	}
	if grant.User != nil {
		s.user = grant.User
	}
	s.gen++
	s.mu.Unlock()

	if s.durable != nil {
		if err := s.durable.SaveCredential(grant.AccessToken); err != nil {
			s.events.log(ctx, slog.LevelError, EventRefreshSuccess, slog.String("persist_error", err.Error()))
		}
	}
	s.events.log(ctx, slog.LevelInfo, EventRefreshSuccess)
	return grant.AccessToken, nil
}

// deny tears down the session generation whose renewal was refused. When a
// login replaced that session meanwhile the new one is kept and the caller
// gets ErrUnauthenticated.
func (s *Store) deny(gen uint64) error {
	if s.teardownGen(ReasonRefreshDenied, gen) {
		return ErrRefreshDenied
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.live {
		// Ended by another path; keep the outcome the teardown recorded.
		return ErrRefreshDenied
	}
	return ErrUnauthenticated
}

// UpdateCashbox replaces the open-cashbox pointer. nil means closed.
func (s *Store) UpdateCashbox(ref *CashboxRef) {
	s.mu.Lock()
	if !s.live {
		s.mu.Unlock()
		return
	}
	if ref != nil {
		c := *ref
		ref = &c
	}
	s.cashbox = ref
	s.mu.Unlock()

	id := ""
	if ref != nil {
		id = ref.ID
	}
	s.events.log(context.Background(), slog.LevelInfo, EventCashboxUpdated,
		slog.String("cashbox_id", id), slog.Bool("open", ref != nil))
}

// Logout ends the session. It is idempotent and makes no network calls.
// It reports whether this call ended a live session.
func (s *Store) Logout() bool {
	return s.Teardown(ReasonLogout)
}

// Teardown ends the session for the given reason. Durable credential and
// cache are cleared on every call; the return path, teardown listeners and
// the teardown record only happen for the call that ended a live session.
func (s *Store) Teardown(reason Reason) bool {
	return s.end(reason, nil)
}

// TeardownFrom ends the session only while stale is still the held access
// credential. A session created by a later login is left alone and false is
// returned.
func (s *Store) TeardownFrom(reason Reason, stale string) bool {
	return s.end(reason, func() bool {
		current, err := openToken(s.access)
		return err == nil && current == stale
	})
}

// teardownGen ends the session only while it is still generation gen.
func (s *Store) teardownGen(reason Reason, gen uint64) bool {
	return s.end(reason, func() bool { return s.gen == gen })
}

// end implements Teardown. When match is set it runs under s.mu and the
// session is left untouched, durable state included, unless it reports true.
func (s *Store) end(reason Reason, match func() bool) bool {
	s.mu.Lock()
	if match != nil && (!s.live || !match()) {
		s.mu.Unlock()
		return false
	}
	wasLive := s.live
	var listeners []func(Reason)
	var userID string
	if wasLive {
		if s.user != nil {
			userID = s.user.ID
		}
		s.hasDenied = false
		if reason == ReasonRefreshDenied {
			if token, err := openToken(s.access); err == nil && token != "" {
				s.denied = sha256.Sum256([]byte(token))
				s.hasDenied = true
			}
		}
		s.live = false
		s.gen++
		s.access = nil
		s.refresh = nil
		s.user = nil
		s.cashbox = nil
		listeners = append(listeners, s.listeners...)
	}
	s.mu.Unlock()

	ctx := context.Background()
	if s.durable != nil {
		if err := s.durable.ClearCredential(); err != nil {
			s.events.log(ctx, slog.LevelError, EventTeardown, slog.String("clear_error", err.Error()))
		}
	}
	if s.cache != nil {
		s.cache.ClearAll()
	}
	if !wasLive {
		return false
	}

	if s.durable != nil && s.locator != nil {
		if err := s.durable.SaveReturnPath(s.locator.Location()); err != nil {
			s.events.log(ctx, slog.LevelWarn, EventTeardown, slog.String("return_path_error", err.Error()))
		}
	}
	event := EventTeardown
	if reason == ReasonLogout {
		event = EventLogout
	}
	s.events.log(ctx, slog.LevelInfo, event,
		slog.String("reason", string(reason)),
		slog.String("user_id", userID))
	for _, fn := range listeners {
		fn(reason)
	}
	return true
}
