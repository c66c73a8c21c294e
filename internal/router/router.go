// Package router wires the HTTP API: auth actions, the synchronized
// session view, course generation and retrieval, module content,
// narration, the career chat, and the trusted internal statistics
// endpoint.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/skillatlas/skillatlas/internal/auth"
	"github.com/skillatlas/skillatlas/internal/authactions"
	"github.com/skillatlas/skillatlas/internal/authprovider"
	"github.com/skillatlas/skillatlas/internal/gzippedhttp"
	"github.com/skillatlas/skillatlas/internal/ipchecker"
	"github.com/skillatlas/skillatlas/internal/logger"
	"github.com/skillatlas/skillatlas/internal/models"
	"github.com/skillatlas/skillatlas/internal/service"
	"github.com/skillatlas/skillatlas/internal/session"
)

type courseServicer interface {
	CreateCourse(ctx context.Context, userID string, request models.CreateCourseRequest) (*models.Course, error)
	GetUserCourses(ctx context.Context, userID string) ([]models.Course, error)
	GetCourse(ctx context.Context, userID, courseID string) (*models.Course, error)
	GetModuleContent(
		ctx context.Context,
		userID,
		courseID,
		moduleID string,
		visualPoints,
		textualPoints int,
	) (*models.ModuleContent, error)
	NarrateModule(ctx context.Context, userID, courseID, moduleID string) (string, error)
	Chat(ctx context.Context, message string) (string, error)
	DeleteCoursesAsync(ctx context.Context, userID string, courses models.DeleteCoursesRequest)
	GetInternalStats(ctx context.Context) (models.StatsResponse, error)
	Ping(ctx context.Context) error
}

type authActioner interface {
	Login(ctx context.Context, email, password string) error
	Signup(ctx context.Context, email, password string) (*authprovider.SignupResult, authactions.SignupOutcome, error)
	SignInWithGoogle(ctx context.Context) (string, error)
	Logout(ctx context.Context)
}

type sessionViewer interface {
	View() session.View
}

type authenticator interface {
	AuthenticateUser(h http.Handler) http.Handler
}

var validate = validator.New()

// Router holds the handlers of the HTTP API.
type Router struct {
	service  courseServicer
	actions  authActioner
	sessions sessionViewer
}

// New assembles the chi mux with logging, gzip, authentication and the
// trusted-subnet guard for the internal statistics endpoint.
func New(
	service courseServicer,
	actions authActioner,
	sessions sessionViewer,
	theAuth authenticator,
	checker *ipchecker.IPChecker,
) *chi.Mux {
	myRouter := &Router{
		service:  service,
		actions:  actions,
		sessions: sessions,
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		gzippedhttp.UngzipRequest,
		gzippedhttp.GzipResponse,
	)

	router.Get(`/ping`, myRouter.GetPing)

	router.Post(`/api/user/login`, myRouter.PostApiuserlogin)
	router.Post(`/api/user/register`, myRouter.PostApiuserregister)
	router.Post(`/api/user/logout`, myRouter.PostApiuserlogout)
	router.Get(`/api/user/login/google`, myRouter.GetApiuserlogingoogle)
	router.Get(`/api/session`, myRouter.GetApisession)

	router.With(theAuth.AuthenticateUser).Route(`/api/courses`, func(router chi.Router) {
		router.Post(`/`, myRouter.PostApicourses)
		router.Get(`/`, myRouter.GetApicourses)
		router.Delete(`/`, myRouter.DeleteApicourses)
		router.Get(`/{courseID}`, myRouter.GetApicourse)
		router.Post(`/{courseID}/modules/{moduleID}/content`, myRouter.PostApimodulecontent)
		router.Post(`/{courseID}/modules/{moduleID}/narration`, myRouter.PostApimodulenarration)
	})

	router.With(theAuth.AuthenticateUser).Post(`/api/chat`, myRouter.PostApichat)

	router.With(checker.RequireTrusted).Get(`/api/internal/stats`, myRouter.GetApiinternalstats)

	return router
}

// sessionResponse is the synchronized session view rendered to JSON.
type sessionResponse struct {
	User      interface{}           `json:"user"`
	Session   *authprovider.Session `json:"session"`
	IsLoading bool                  `json:"isLoading"`
}

func decodeAndValidate(request *http.Request, target interface{}) error {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return err
	}
	return validate.Struct(target)
}

func writeJSON(response http.ResponseWriter, statusCode int, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(statusCode)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder().Encode()`: ", zap.Error(err))
	}
}

func getUserID(request *http.Request) (string, bool) {
	return auth.UserIDFromContext(request.Context())
}

// PostApiuserlogin performs password sign-in and returns the refreshed
// session view.
func (r *Router) PostApiuserlogin(response http.ResponseWriter, request *http.Request) {
	var loginRequest models.LoginRequest
	if err := decodeAndValidate(request, &loginRequest); err != nil {
		response.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	if err := r.actions.Login(request.Context(), loginRequest.Email, loginRequest.Password); err != nil {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}

	view := r.sessions.View()
	writeJSON(response, http.StatusOK, sessionResponse{
		User:      view.User,
		Session:   view.Session,
		IsLoading: view.IsLoading,
	})
}

// PostApiuserregister registers a new account. An already-registered
// email answers 409, a pending email confirmation answers 202.
func (r *Router) PostApiuserregister(response http.ResponseWriter, request *http.Request) {
	var signupRequest models.SignupRequest
	if err := decodeAndValidate(request, &signupRequest); err != nil {
		response.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	result, outcome, err := r.actions.Signup(request.Context(), signupRequest.Email, signupRequest.Password)
	if err != nil {
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	switch outcome {
	case authactions.SignupOutcomeExisting:
		response.WriteHeader(http.StatusConflict)
	case authactions.SignupOutcomeActive:
		writeJSON(response, http.StatusCreated, result)
	case authactions.SignupOutcomeConfirmationRequired:
		writeJSON(response, http.StatusAccepted, result)
	}
}

// PostApiuserlogout signs the user out. The response is always 204:
// provider failures still end the local session.
func (r *Router) PostApiuserlogout(response http.ResponseWriter, request *http.Request) {
	r.actions.Logout(request.Context())
	response.WriteHeader(http.StatusNoContent)
}

// GetApiuserlogingoogle starts the external OAuth flow and returns the
// redirect URL.
func (r *Router) GetApiuserlogingoogle(response http.ResponseWriter, request *http.Request) {
	redirect, err := r.actions.SignInWithGoogle(request.Context())
	if err != nil {
		response.WriteHeader(http.StatusBadGateway)
		return
	}

	writeJSON(response, http.StatusOK, models.OAuthRedirectResponse{URL: redirect})
}

// GetApisession returns the synchronized session view.
func (r *Router) GetApisession(response http.ResponseWriter, request *http.Request) {
	view := r.sessions.View()
	writeJSON(response, http.StatusOK, sessionResponse{
		User:      view.User,
		Session:   view.Session,
		IsLoading: view.IsLoading,
	})
}

// PostApicourses generates a new course outline for the topic.
func (r *Router) PostApicourses(response http.ResponseWriter, request *http.Request) {
	userID, ok := getUserID(request)
	if !ok {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}

	var createRequest models.CreateCourseRequest
	if err := decodeAndValidate(request, &createRequest); err != nil {
		response.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	course, err := r.service.CreateCourse(request.Context(), userID, createRequest)
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.CreateCourse()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(response, http.StatusCreated, course)
}

// GetApicourses lists the authenticated user's courses.
func (r *Router) GetApicourses(response http.ResponseWriter, request *http.Request) {
	userID, ok := getUserID(request)
	if !ok {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}

	courses, err := r.service.GetUserCourses(request.Context(), userID)
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.GetUserCourses()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(response, http.StatusOK, courses)
}

// DeleteApicourses accepts a batch of course IDs for asynchronous
// removal.
func (r *Router) DeleteApicourses(response http.ResponseWriter, request *http.Request) {
	userID, ok := getUserID(request)
	if !ok {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}

	var deleteRequest models.DeleteCoursesRequest
	if err := json.NewDecoder(request.Body).Decode(&deleteRequest); err != nil || len(deleteRequest) == 0 {
		response.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	r.service.DeleteCoursesAsync(request.Context(), userID, deleteRequest)

	response.WriteHeader(http.StatusAccepted)
}

// GetApicourse returns one course owned by the authenticated user.
func (r *Router) GetApicourse(response http.ResponseWriter, request *http.Request) {
	userID, ok := getUserID(request)
	if !ok {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}

	course, err := r.service.GetCourse(request.Context(), userID, chi.URLParam(request, "courseID"))
	if err != nil {
		r.writeServiceError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, course)
}

// PostApimodulecontent returns the module's generated content,
// producing and persisting it on first request.
func (r *Router) PostApimodulecontent(response http.ResponseWriter, request *http.Request) {
	userID, ok := getUserID(request)
	if !ok {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}

	var contentRequest models.GenerateContentRequest
	if err := decodeAndValidate(request, &contentRequest); err != nil {
		response.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	content, err := r.service.GetModuleContent(
		request.Context(),
		userID,
		chi.URLParam(request, "courseID"),
		chi.URLParam(request, "moduleID"),
		contentRequest.VisualPoints,
		contentRequest.TextualPoints,
	)
	if err != nil {
		r.writeServiceError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, content)
}

// PostApimodulenarration converts the module's textual content into
// speech.
func (r *Router) PostApimodulenarration(response http.ResponseWriter, request *http.Request) {
	userID, ok := getUserID(request)
	if !ok {
		response.WriteHeader(http.StatusUnauthorized)
		return
	}

	audio, err := r.service.NarrateModule(
		request.Context(),
		userID,
		chi.URLParam(request, "courseID"),
		chi.URLParam(request, "moduleID"),
	)
	if err != nil {
		r.writeServiceError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.NarrationResponse{AudioContent: audio})
}

// PostApichat forwards a single message to the career assistant.
func (r *Router) PostApichat(response http.ResponseWriter, request *http.Request) {
	var chatRequest models.ChatRequest
	if err := decodeAndValidate(request, &chatRequest); err != nil {
		response.WriteHeader(http.StatusUnprocessableEntity)
		return
	}

	reply, err := r.service.Chat(request.Context(), chatRequest.Message)
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.Chat()`: ", zap.Error(err))
		response.WriteHeader(http.StatusBadGateway)
		return
	}

	writeJSON(response, http.StatusOK, models.ChatResponse{Reply: reply})
}

// GetPing checks the storage health.
func (r *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := r.service.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `r.service.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

// GetApiinternalstats returns course and user totals to trusted
// callers.
func (r *Router) GetApiinternalstats(response http.ResponseWriter, request *http.Request) {
	stats, err := r.service.GetInternalStats(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.GetInternalStats()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(response, http.StatusOK, stats)
}

func (r *Router) writeServiceError(response http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound),
		errors.Is(err, service.ErrModuleNotFound):
		response.WriteHeader(http.StatusNotFound)
	case errors.Is(err, service.ErrAccessDenied):
		response.WriteHeader(http.StatusForbidden)
	case errors.Is(err, service.ErrModuleContentNotFound):
		response.WriteHeader(http.StatusConflict)
	default:
		logger.Log.Debugln("Unexpected service error: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
	}
}
