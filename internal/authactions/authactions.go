// Package authactions exposes login, signup, OAuth sign-in and logout
// as request/response operations against the identity provider. The
// facade holds no session state of its own beyond a busy flag: the
// synchronized view updates through the provider's change-notification
// stream as a side effect of each call.
package authactions

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/skillatlas/skillatlas/internal/authprovider"
	"github.com/skillatlas/skillatlas/internal/logger"
	"github.com/skillatlas/skillatlas/internal/notifier"
)

type actionsProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*authprovider.Session, error)
	SignUp(ctx context.Context, email, password string, options ...authprovider.SignUpOption) (*authprovider.SignupResult, error)
	SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error)
	SignOut(ctx context.Context) error
}

type snapshotCleaner interface {
	Clear() error
}

// SignupOutcome classifies the provider's signup response shape.
type SignupOutcome int

const (
	// SignupOutcomeExisting means the account already existed and no
	// new identity was created.
	SignupOutcomeExisting SignupOutcome = iota
	// SignupOutcomeActive means the account was created and is
	// immediately usable.
	SignupOutcomeActive
	// SignupOutcomeConfirmationRequired means the account was created
	// but a confirmation step is pending.
	SignupOutcomeConfirmationRequired
)

// Actions is the auth action facade.
type Actions struct {
	provider    actionsProvider
	cache       snapshotCleaner
	notifier    notifier.Notifier
	oauthTarget string

	busy atomic.Bool
}

// New creates the facade. oauthTarget is the post-auth redirect target
// passed to the provider's external OAuth flow.
func New(provider actionsProvider, cache snapshotCleaner, toasts notifier.Notifier, oauthTarget string) *Actions {
	return &Actions{
		provider:    provider,
		cache:       cache,
		notifier:    toasts,
		oauthTarget: oauthTarget,
	}
}

// IsBusy reports whether an auth operation is currently in flight.
func (a *Actions) IsBusy() bool {
	return a.busy.Load()
}

// Login authenticates with email/password credentials. Provider errors
// are shown to the user and returned to the caller.
func (a *Actions) Login(ctx context.Context, email, password string) error {
	a.busy.Store(true)
	defer a.busy.Store(false)

	_, err := a.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		a.notifier.Error("Login failed. Please check your credentials.")
		return fmt.Errorf("in internal/authactions/authactions.go/Login(): error while `a.provider.SignInWithPassword()` calling: %w", err)
	}

	a.notifier.Success("Logged in successfully.")

	return nil
}

// Signup registers a new account and returns the raw provider payload
// alongside the classified outcome. An already-existing account is a
// failure notification but not an error; provider failures are shown
// and returned.
func (a *Actions) Signup(ctx context.Context, email, password string) (*authprovider.SignupResult, SignupOutcome, error) {
	a.busy.Store(true)
	defer a.busy.Store(false)

	result, err := a.provider.SignUp(ctx, email, password, authprovider.WithEmailRedirectTo(a.oauthTarget))
	if err != nil {
		a.notifier.Error("Signup failed. Please try again.")
		return nil, SignupOutcomeExisting, fmt.Errorf("in internal/authactions/authactions.go/Signup(): error while `a.provider.SignUp()` calling: %w", err)
	}

	outcome := classifySignup(result)
	switch outcome {
	case SignupOutcomeExisting:
		a.notifier.Error("An account with this email already exists. Try logging in.")
	case SignupOutcomeActive:
		a.notifier.Success("Account created. You are now signed in.")
	case SignupOutcomeConfirmationRequired:
		a.notifier.Success("Account created. Check your email to confirm your address.")
	}

	return result, outcome, nil
}

// SignInWithGoogle initiates the external redirect-based flow and
// returns the redirect URL. Success means the redirect was issued;
// authentication completes asynchronously via the provider's
// change-notification stream after the user returns.
func (a *Actions) SignInWithGoogle(ctx context.Context) (string, error) {
	a.busy.Store(true)
	defer a.busy.Store(false)

	redirect, err := a.provider.SignInWithOAuth(ctx, "google", a.oauthTarget)
	if err != nil {
		a.notifier.Error("Could not start Google sign-in.")
		return "", fmt.Errorf("in internal/authactions/authactions.go/SignInWithGoogle(): error while `a.provider.SignInWithOAuth()` calling: %w", err)
	}

	a.notifier.Success("Redirecting to Google sign-in.")

	return redirect, nil
}

// Logout requests sign-out from the provider and removes the cached
// snapshot regardless of the outcome. Provider failures degrade to a
// visible notification; they are never returned to the caller.
func (a *Actions) Logout(ctx context.Context) {
	a.busy.Store(true)
	defer a.busy.Store(false)

	if err := a.provider.SignOut(ctx); err != nil {
		logger.Log.Debugln("Error calling the `a.provider.SignOut()`: ", zap.Error(err))
		a.notifier.Error("Sign-out did not complete cleanly.")
	} else {
		a.notifier.Success("Logged out.")
	}

	if err := a.cache.Clear(); err != nil {
		logger.Log.Debugln("Error calling the `a.cache.Clear()`: ", zap.Error(err))
	}
}

// classifySignup distinguishes the three provider response shapes: a
// user with an empty identities list marks an already-registered
// account, a present session marks an immediately active one, and a
// bare user record marks a pending confirmation step.
func classifySignup(result *authprovider.SignupResult) SignupOutcome {
	if result.User != nil && result.Session == nil && len(result.User.Identities) == 0 {
		return SignupOutcomeExisting
	}
	if result.Session != nil {
		return SignupOutcomeActive
	}
	return SignupOutcomeConfirmationRequired
}
