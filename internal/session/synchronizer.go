// Package session reconciles the identity provider's authoritative
// session state with the locally cached user snapshot, exposing a
// single consistent (user, session, isLoading) view to the rest of
// the application.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/skillatlas/skillatlas/internal/authprovider"
	"github.com/skillatlas/skillatlas/internal/logger"
	"github.com/skillatlas/skillatlas/internal/user"
)

type sessionProvider interface {
	GetSession(ctx context.Context) (*authprovider.Session, error)
	OnSessionChange(handler func(*authprovider.Session)) (unsubscribe func())
}

type snapshotKeeper interface {
	Read() (*user.User, error)
	Write(usr *user.User) error
	Clear() error
}

// View is the synchronized session state. Session stays nil when the
// user was restored from the local snapshot without a live provider
// session.
type View struct {
	User      *user.User
	Session   *authprovider.Session
	IsLoading bool
}

// Synchronizer reconciles two asynchronous sources of truth, the
// one-shot initial session fetch and the ongoing change-notification
// stream, plus the durable snapshot fallback. The two sources are not
// sequenced against each other: the last writer wins.
type Synchronizer struct {
	provider sessionProvider
	cache    snapshotKeeper

	mu          sync.Mutex
	current     View
	unsubscribe func()
}

// New creates a Synchronizer over the given provider and snapshot
// cache. Collaborators are injected so the synchronizer stays testable
// with a fake provider.
func New(provider sessionProvider, cache snapshotKeeper) *Synchronizer {
	return &Synchronizer{
		provider: provider,
		cache:    cache,
		current:  View{IsLoading: true},
	}
}

// Init runs the one-time initialization protocol: subscribe to the
// change-notification stream, fetch the current session once, fall
// back to the cached snapshot when the provider reports no session,
// and clear the loading flag in a guaranteed step. Init never fails:
// provider errors degrade to "no user" and are only logged.
func (s *Synchronizer) Init(ctx context.Context) {
	s.mu.Lock()
	s.current.IsLoading = true
	if s.unsubscribe == nil {
		s.unsubscribe = s.provider.OnSessionChange(s.applySessionChange)
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.current.IsLoading = false
		s.mu.Unlock()
	}()

	sess, err := s.provider.GetSession(ctx)
	if err != nil {
		logger.Log.Debugln("Error calling the `s.provider.GetSession()`: ", zap.Error(err))
		return
	}

	if sess != nil {
		s.adoptSession(sess)
		return
	}

	snapshot, err := s.cache.Read()
	if err != nil {
		logger.Log.Debugln("Error calling the `s.cache.Read()`: ", zap.Error(err))
		return
	}
	if snapshot == nil {
		return
	}

	// A snapshot gives the application a user identity without an
	// authoritative live session.
	s.mu.Lock()
	s.current.User = snapshot
	s.current.Session = nil
	s.mu.Unlock()
}

// View returns the current synchronized state.
func (s *Synchronizer) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Close removes the change-notification subscription. Safe to call
// more than once.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// applySessionChange handles one notification from the provider
// stream. Whichever of the initial fetch and the stream completes
// last overwrites the view.
func (s *Synchronizer) applySessionChange(sess *authprovider.Session) {
	if sess != nil {
		s.adoptSession(sess)
		s.mu.Lock()
		s.current.IsLoading = false
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.current.User = nil
	s.current.Session = nil
	s.current.IsLoading = false
	s.mu.Unlock()

	if err := s.cache.Clear(); err != nil {
		logger.Log.Debugln("Error calling the `s.cache.Clear()`: ", zap.Error(err))
	}
}

// adoptSession derives the application user from a provider session,
// makes the pair current, and persists the snapshot.
func (s *Synchronizer) adoptSession(sess *authprovider.Session) {
	usr := user.Derive(
		sess.User.ID,
		sess.User.UserMetadata.Name,
		sess.User.Email,
		sess.User.UserMetadata.Skills,
		sess.User.CreatedAt,
	)

	s.mu.Lock()
	s.current.User = usr
	s.current.Session = sess
	s.mu.Unlock()

	if err := s.cache.Write(usr); err != nil {
		logger.Log.Debugln("Error calling the `s.cache.Write()`: ", zap.Error(err))
	}
}
