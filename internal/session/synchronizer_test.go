package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillatlas/skillatlas/internal/authprovider"
	"github.com/skillatlas/skillatlas/internal/logger"
	"github.com/skillatlas/skillatlas/internal/sessioncache"
	"github.com/skillatlas/skillatlas/internal/user"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeProvider struct {
	session *authprovider.Session
	err     error

	mu       sync.Mutex
	handlers map[int]func(*authprovider.Session)
	nextID   int
}

func (f *fakeProvider) GetSession(ctx context.Context) (*authprovider.Session, error) {
	return f.session, f.err
}

func (f *fakeProvider) OnSessionChange(handler func(*authprovider.Session)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = map[int]func(*authprovider.Session){}
	}
	f.nextID++
	id := f.nextID
	f.handlers[id] = handler

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

func (f *fakeProvider) emit(session *authprovider.Session) {
	f.mu.Lock()
	handlers := make([]func(*authprovider.Session), 0, len(f.handlers))
	for _, handler := range f.handlers {
		handlers = append(handlers, handler)
	}
	f.mu.Unlock()

	for _, handler := range handlers {
		handler(session)
	}
}

func (f *fakeProvider) subscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func providerSession(userID string) *authprovider.Session {
	return &authprovider.Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		User: authprovider.ProviderUser{
			ID:        userID,
			Email:     "someone@example.com",
			CreatedAt: time.Now().Add(-24 * time.Hour),
			UserMetadata: authprovider.Metadata{
				Name:   "Someone",
				Skills: []string{"go"},
			},
		},
	}
}

func newTestCache(t *testing.T) (*sessioncache.Cache, string) {
	t.Helper()
	fileName := filepath.Join(t.TempDir(), "snapshot.json")
	return sessioncache.New(fileName), fileName
}

func TestInitAdoptsProviderSession(t *testing.T) {
	cache, _ := newTestCache(t)
	provider := &fakeProvider{session: providerSession("user-1")}

	synchronizer := New(provider, cache)
	defer synchronizer.Close()
	synchronizer.Init(context.Background())

	view := synchronizer.View()
	require.NotNil(t, view.User)
	require.NotNil(t, view.Session)
	assert.False(t, view.IsLoading)

	assert.Equal(t, "user-1", view.User.ID)
	assert.Equal(t, "Someone", view.User.Name)
	assert.Zero(t, view.User.VisualPoints)
	assert.Zero(t, view.User.TextualPoints)

	// The snapshot must have been persisted.
	snapshot, err := cache.Read()
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Equal(t, "user-1", snapshot.ID)
}

func TestInitNoSessionNoSnapshot(t *testing.T) {
	cache, _ := newTestCache(t)
	provider := &fakeProvider{}

	synchronizer := New(provider, cache)
	defer synchronizer.Close()
	synchronizer.Init(context.Background())

	view := synchronizer.View()
	assert.Nil(t, view.User)
	assert.Nil(t, view.Session)
	assert.False(t, view.IsLoading)
}

func TestInitFallsBackToSnapshot(t *testing.T) {
	cache, _ := newTestCache(t)
	require.NoError(t, cache.Write(&user.User{ID: "cached-user", Email: "cached@example.com"}))

	provider := &fakeProvider{}

	synchronizer := New(provider, cache)
	defer synchronizer.Close()
	synchronizer.Init(context.Background())

	view := synchronizer.View()
	require.NotNil(t, view.User)
	assert.Equal(t, "cached-user", view.User.ID)
	assert.Nil(t, view.Session, "a snapshot restore carries no live session")
	assert.False(t, view.IsLoading)
}

func TestInitCorruptSnapshotDiscarded(t *testing.T) {
	cache, fileName := newTestCache(t)
	require.NoError(t, os.WriteFile(fileName, []byte("{broken"), 0600))

	provider := &fakeProvider{}

	synchronizer := New(provider, cache)
	defer synchronizer.Close()
	synchronizer.Init(context.Background())

	view := synchronizer.View()
	assert.Nil(t, view.User)
	assert.False(t, view.IsLoading)

	_, err := os.Stat(fileName)
	assert.True(t, os.IsNotExist(err), "corrupt snapshot should be removed")
}

func TestInitProviderErrorDegradesToNoUser(t *testing.T) {
	cache, _ := newTestCache(t)
	provider := &fakeProvider{err: errors.New("provider unavailable")}

	synchronizer := New(provider, cache)
	defer synchronizer.Close()
	synchronizer.Init(context.Background())

	view := synchronizer.View()
	assert.Nil(t, view.User)
	assert.Nil(t, view.Session)
	assert.False(t, view.IsLoading, "IsLoading must clear even when the provider call fails")
}

func TestNotificationAfterEmptyInitWins(t *testing.T) {
	cache, _ := newTestCache(t)
	provider := &fakeProvider{}

	synchronizer := New(provider, cache)
	defer synchronizer.Close()
	synchronizer.Init(context.Background())

	require.Nil(t, synchronizer.View().User)

	provider.emit(providerSession("late-user"))

	view := synchronizer.View()
	require.NotNil(t, view.User)
	assert.Equal(t, "late-user", view.User.ID)
	require.NotNil(t, view.Session)
	assert.False(t, view.IsLoading)
}

func TestSignOutNotificationClearsStateAndSnapshot(t *testing.T) {
	cache, fileName := newTestCache(t)
	provider := &fakeProvider{session: providerSession("user-1")}

	synchronizer := New(provider, cache)
	defer synchronizer.Close()
	synchronizer.Init(context.Background())

	require.NotNil(t, synchronizer.View().User)

	provider.emit(nil)

	view := synchronizer.View()
	assert.Nil(t, view.User)
	assert.Nil(t, view.Session)
	assert.False(t, view.IsLoading)

	_, err := os.Stat(fileName)
	assert.True(t, os.IsNotExist(err), "snapshot should be deleted on sign-out")
}

func TestCloseUnsubscribes(t *testing.T) {
	cache, _ := newTestCache(t)
	provider := &fakeProvider{}

	synchronizer := New(provider, cache)
	synchronizer.Init(context.Background())
	require.Equal(t, 1, provider.subscriberCount())

	synchronizer.Close()
	assert.Zero(t, provider.subscriberCount())

	// Notifications after teardown must not resurrect state.
	provider.emit(providerSession("ghost"))
	assert.Nil(t, synchronizer.View().User)

	synchronizer.Close()
}
