package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillatlas/skillatlas/internal/auth"
	"github.com/skillatlas/skillatlas/internal/authactions"
	"github.com/skillatlas/skillatlas/internal/authprovider"
	"github.com/skillatlas/skillatlas/internal/contentcache"
	"github.com/skillatlas/skillatlas/internal/db/jsondb"
	"github.com/skillatlas/skillatlas/internal/ipchecker"
	"github.com/skillatlas/skillatlas/internal/logger"
	"github.com/skillatlas/skillatlas/internal/models"
	"github.com/skillatlas/skillatlas/internal/service"
	"github.com/skillatlas/skillatlas/internal/session"
	"github.com/skillatlas/skillatlas/internal/user"
)

const (
	testJWTSecret  = "test-signing-secret"
	testCookieName = "skillatlas_token"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeOutlineGenerator struct {
	course *models.Course
	err    error
}

func (g *fakeOutlineGenerator) GenerateOutline(_ context.Context, _ string) (*models.Course, error) {
	if g.err != nil {
		return nil, g.err
	}
	copied := *g.course
	return &copied, nil
}

type fakeContentGenerator struct {
	content *models.ModuleContent
}

func (g *fakeContentGenerator) GenerateModuleContent(
	_ context.Context,
	_ string,
	_ models.Module,
	_, _ int,
) (*models.ModuleContent, error) {
	return g.content, nil
}

type fakeNarrator struct {
	audio string
}

func (n *fakeNarrator) Synthesize(_ context.Context, _ string) (string, error) {
	return n.audio, nil
}

type fakeChatter struct {
	reply string
	err   error
}

func (c *fakeChatter) Send(_ context.Context, _ string) (string, error) {
	return c.reply, c.err
}

type fakeRemover struct {
	jobs []*models.CourseDeleteJob
}

func (r *fakeRemover) EnqueueJob(job *models.CourseDeleteJob) {
	r.jobs = append(r.jobs, job)
}

type fakeAuthActions struct {
	loginErr      error
	signupResult  *authprovider.SignupResult
	signupOutcome authactions.SignupOutcome
	signupErr     error
	oauthURL      string
	loggedOut     bool
}

func (a *fakeAuthActions) Login(_ context.Context, _, _ string) error {
	return a.loginErr
}

func (a *fakeAuthActions) Signup(_ context.Context, _, _ string) (*authprovider.SignupResult, authactions.SignupOutcome, error) {
	return a.signupResult, a.signupOutcome, a.signupErr
}

func (a *fakeAuthActions) SignInWithGoogle(_ context.Context) (string, error) {
	if a.oauthURL == "" {
		return "", errors.New("provider unavailable")
	}
	return a.oauthURL, nil
}

func (a *fakeAuthActions) Logout(_ context.Context) {
	a.loggedOut = true
}

type fakeSessionViewer struct {
	view session.View
}

func (v *fakeSessionViewer) View() session.View {
	return v.view
}

type testEnv struct {
	server  *httptest.Server
	db      *jsondb.JSONDB
	actions *fakeAuthActions
	remover *fakeRemover
}

func newTestEnv(t *testing.T, actions *fakeAuthActions, sessions *fakeSessionViewer) *testEnv {
	t.Helper()

	theDB, err := jsondb.New(filepath.Join(t.TempDir(), "db_test.json"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, theDB.Close())
	})

	cache, err := contentcache.New(context.Background(), "")
	require.NoError(t, err)

	remover := &fakeRemover{}

	theService := service.New(
		theDB,
		&fakeOutlineGenerator{
			course: &models.Course{
				Title: "Intro to Databases",
				Modules: []models.Module{
					{Title: "Relational model"},
					{Title: "Indexes"},
				},
			},
		},
		&fakeContentGenerator{content: &models.ModuleContent{
			Content:        "# Relational model",
			TextualContent: "The relational model organizes data.",
		}},
		&fakeNarrator{audio: "bW9jay1hdWRpbw=="},
		&fakeChatter{reply: "Focus on SQL fundamentals first."},
		cache,
		remover,
	)

	checker, err := ipchecker.New("10.0.0.0/8")
	require.NoError(t, err)

	router := New(
		theService,
		actions,
		sessions,
		auth.New(testCookieName, []byte(testJWTSecret)),
		checker,
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{
		server:  server,
		db:      theDB,
		actions: actions,
		remover: remover,
	}
}

func buildTestToken(t *testing.T, userID string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	return signed
}

func authorizedRequest(t *testing.T, env *testEnv, userID string) *resty.Request {
	return resty.New().R().
		SetHeader("Authorization", "Bearer "+buildTestToken(t, userID)).
		SetHeader("Content-Type", "application/json")
}

func TestPostApiuserlogin(t *testing.T) {
	type tExpectedResponse struct {
		code int
	}
	type tTestCase struct {
		name             string
		loginErr         error
		body             string
		expectedResponse tExpectedResponse
	}
	testCases := []tTestCase{
		{
			name:             "positive",
			body:             `{"email": "person@example.com", "password": "correct horse"}`,
			expectedResponse: tExpectedResponse{http.StatusOK},
		},
		{
			name:             "wrong_credentials",
			loginErr:         errors.New("invalid login credentials"),
			body:             `{"email": "person@example.com", "password": "nope"}`,
			expectedResponse: tExpectedResponse{http.StatusUnauthorized},
		},
		{
			name:             "missing_email",
			body:             `{"password": "correct horse"}`,
			expectedResponse: tExpectedResponse{http.StatusUnprocessableEntity},
		},
		{
			name:             "empty_body",
			body:             ``,
			expectedResponse: tExpectedResponse{http.StatusUnprocessableEntity},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			view := session.View{
				User: &user.User{ID: "user-1", Email: "person@example.com"},
			}
			env := newTestEnv(t, &fakeAuthActions{loginErr: testCase.loginErr}, &fakeSessionViewer{view: view})

			resp, err := resty.New().R().
				SetHeader("Content-Type", "application/json").
				SetBody(testCase.body).
				Post(fmt.Sprintf("%s/api/user/login", env.server.URL))
			assert.NoError(t, err, "error making HTTP request")

			assert.Equal(t, testCase.expectedResponse.code, resp.StatusCode(), "Response code didn't match expected value")

			if testCase.expectedResponse.code == http.StatusOK {
				var payload struct {
					User *user.User `json:"user"`
				}
				require.NoError(t, json.Unmarshal(resp.Body(), &payload))
				require.NotNil(t, payload.User)
				assert.Equal(t, "user-1", payload.User.ID)
			}
		})
	}
}

func TestPostApiuserregister(t *testing.T) {
	type tTestCase struct {
		name         string
		outcome      authactions.SignupOutcome
		expectedCode int
	}
	testCases := []tTestCase{
		{"active_session", authactions.SignupOutcomeActive, http.StatusCreated},
		{"confirmation_required", authactions.SignupOutcomeConfirmationRequired, http.StatusAccepted},
		{"already_registered", authactions.SignupOutcomeExisting, http.StatusConflict},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			actions := &fakeAuthActions{
				signupResult:  &authprovider.SignupResult{},
				signupOutcome: testCase.outcome,
			}
			env := newTestEnv(t, actions, &fakeSessionViewer{})

			resp, err := resty.New().R().
				SetHeader("Content-Type", "application/json").
				SetBody(`{"email": "person@example.com", "password": "secret-password"}`).
				Post(fmt.Sprintf("%s/api/user/register", env.server.URL))
			assert.NoError(t, err)

			assert.Equal(t, testCase.expectedCode, resp.StatusCode())
		})
	}
}

func TestPostApiuserlogout(t *testing.T) {
	actions := &fakeAuthActions{}
	env := newTestEnv(t, actions, &fakeSessionViewer{})

	resp, err := resty.New().R().
		Post(fmt.Sprintf("%s/api/user/logout", env.server.URL))
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.True(t, actions.loggedOut, "the logout action should be invoked")
}

func TestGetApiuserlogingoogle(t *testing.T) {
	actions := &fakeAuthActions{oauthURL: "https://auth.example.com/authorize?provider=google"}
	env := newTestEnv(t, actions, &fakeSessionViewer{})

	resp, err := resty.New().R().
		Get(fmt.Sprintf("%s/api/user/login/google", env.server.URL))
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode())

	var payload models.OAuthRedirectResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &payload))
	assert.Equal(t, actions.oauthURL, payload.URL)
}

func TestGetApisession(t *testing.T) {
	view := session.View{
		User:      &user.User{ID: "user-1", Name: "Pat"},
		IsLoading: false,
	}
	env := newTestEnv(t, &fakeAuthActions{}, &fakeSessionViewer{view: view})

	resp, err := resty.New().R().
		Get(fmt.Sprintf("%s/api/session", env.server.URL))
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode())

	var payload struct {
		User      *user.User `json:"user"`
		IsLoading bool       `json:"isLoading"`
	}
	require.NoError(t, json.Unmarshal(resp.Body(), &payload))
	require.NotNil(t, payload.User)
	assert.Equal(t, "Pat", payload.User.Name)
	assert.False(t, payload.IsLoading)
}

func TestCoursesLifecycle(t *testing.T) {
	env := newTestEnv(t, &fakeAuthActions{}, &fakeSessionViewer{})

	// Unauthenticated requests are rejected.
	resp, err := resty.New().R().
		Get(fmt.Sprintf("%s/api/courses", env.server.URL))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())

	// Create a course.
	resp, err = authorizedRequest(t, env, "user-1").
		SetBody(`{"topic": "databases", "visualPoints": 3, "textualPoints": 7}`).
		Post(fmt.Sprintf("%s/api/courses", env.server.URL))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())

	var created models.Course
	require.NoError(t, json.Unmarshal(resp.Body(), &created))
	assert.Equal(t, "user-1", created.UserID)
	require.Len(t, created.Modules, 2)

	// List the user's courses.
	resp, err = authorizedRequest(t, env, "user-1").
		Get(fmt.Sprintf("%s/api/courses", env.server.URL))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	var courses []models.Course
	require.NoError(t, json.Unmarshal(resp.Body(), &courses))
	require.Len(t, courses, 1)

	// Fetch one course.
	resp, err = authorizedRequest(t, env, "user-1").
		Get(fmt.Sprintf("%s/api/courses/%s", env.server.URL, created.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	// Another user must not see it.
	resp, err = authorizedRequest(t, env, "user-2").
		Get(fmt.Sprintf("%s/api/courses/%s", env.server.URL, created.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	// An unknown course answers 404.
	resp, err = authorizedRequest(t, env, "user-1").
		Get(fmt.Sprintf("%s/api/courses/unexistent", env.server.URL))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())

	// Queue the course for deletion.
	resp, err = authorizedRequest(t, env, "user-1").
		SetBody(fmt.Sprintf(`["%s"]`, created.ID)).
		Delete(fmt.Sprintf("%s/api/courses", env.server.URL))
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode())

	require.Len(t, env.remover.jobs, 1)
	assert.Equal(t, "user-1", env.remover.jobs[0].UserID)
}

func TestPostApimodulecontentAndNarration(t *testing.T) {
	env := newTestEnv(t, &fakeAuthActions{}, &fakeSessionViewer{})

	resp, err := authorizedRequest(t, env, "user-1").
		SetBody(`{"topic": "databases"}`).
		Post(fmt.Sprintf("%s/api/courses", env.server.URL))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode())

	var created models.Course
	require.NoError(t, json.Unmarshal(resp.Body(), &created))
	moduleID := created.Modules[0].ID

	// Narration before generation answers 409.
	resp, err = authorizedRequest(t, env, "user-1").
		Post(fmt.Sprintf("%s/api/courses/%s/modules/%s/narration", env.server.URL, created.ID, moduleID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode())

	// Generate the module content.
	resp, err = authorizedRequest(t, env, "user-1").
		SetBody(`{"visualPoints": 3, "textualPoints": 7}`).
		Post(fmt.Sprintf("%s/api/courses/%s/modules/%s/content", env.server.URL, created.ID, moduleID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	var content models.ModuleContent
	require.NoError(t, json.Unmarshal(resp.Body(), &content))
	assert.Equal(t, "# Relational model", content.Content)

	// An unknown module answers 404.
	resp, err = authorizedRequest(t, env, "user-1").
		SetBody(`{"visualPoints": 0, "textualPoints": 0}`).
		Post(fmt.Sprintf("%s/api/courses/%s/modules/unexistent/content", env.server.URL, created.ID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())

	// Narration now succeeds.
	resp, err = authorizedRequest(t, env, "user-1").
		Post(fmt.Sprintf("%s/api/courses/%s/modules/%s/narration", env.server.URL, created.ID, moduleID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	var narration models.NarrationResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &narration))
	assert.Equal(t, "bW9jay1hdWRpbw==", narration.AudioContent)
}

func TestPostApichat(t *testing.T) {
	env := newTestEnv(t, &fakeAuthActions{}, &fakeSessionViewer{})

	resp, err := authorizedRequest(t, env, "user-1").
		SetBody(`{"message": "How do I become a data engineer?"}`).
		Post(fmt.Sprintf("%s/api/chat", env.server.URL))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	var payload models.ChatResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &payload))
	assert.Equal(t, "Focus on SQL fundamentals first.", payload.Reply)

	resp, err = authorizedRequest(t, env, "user-1").
		SetBody(`{}`).
		Post(fmt.Sprintf("%s/api/chat", env.server.URL))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode())
}

func TestGetPing(t *testing.T) {
	env := newTestEnv(t, &fakeAuthActions{}, &fakeSessionViewer{})

	resp, err := resty.New().R().
		Get(fmt.Sprintf("%s/ping", env.server.URL))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestGetApiinternalstats(t *testing.T) {
	env := newTestEnv(t, &fakeAuthActions{}, &fakeSessionViewer{})

	// Callers outside the trusted subnet are rejected.
	resp, err := resty.New().R().
		SetHeader("X-Real-IP", "203.0.113.7").
		Get(fmt.Sprintf("%s/api/internal/stats", env.server.URL))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	resp, err = resty.New().R().
		SetHeader("X-Real-IP", "10.1.2.3").
		Get(fmt.Sprintf("%s/api/internal/stats", env.server.URL))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())

	var stats models.StatsResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &stats))
	assert.Zero(t, stats.Courses)
	assert.Zero(t, stats.Users)
}
