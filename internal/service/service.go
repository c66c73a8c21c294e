// Package service contains the application's course business logic.
// It coordinates the storage layer, the generation clients, and the
// background course remover behind a single facade used by the router.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"github.com/skillatlas/skillatlas/internal/models"
)

type transactioner interface {
	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error
}

type coursesKeeper interface {
	SaveCourse(
		ctx context.Context,
		course *models.Course,
		transaction *sql.Tx,
	) error

	FindCourseByID(ctx context.Context, courseID string) (*models.Course, bool, error)

	FindCoursesByUser(ctx context.Context, userID string) ([]models.Course, error)
}

type contentKeeper interface {
	SaveModuleContent(
		ctx context.Context,
		courseID,
		moduleID string,
		content *models.ModuleContent,
		transaction *sql.Tx,
	) error

	FindModuleContent(
		ctx context.Context,
		courseID,
		moduleID string,
	) (*models.ModuleContent, bool, error)
}

type statsKeeper interface {
	GetNumberOfCourses(ctx context.Context) (int64, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	transactioner
	coursesKeeper
	contentKeeper
	statsKeeper
	pinger
}

type outlineGenerator interface {
	GenerateOutline(ctx context.Context, topic string) (*models.Course, error)
}

type moduleContentGenerator interface {
	GenerateModuleContent(
		ctx context.Context,
		courseTitle string,
		module models.Module,
		visualPoints,
		textualPoints int,
	) (*models.ModuleContent, error)
}

type narrator interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

type chatter interface {
	Send(ctx context.Context, message string) (string, error)
}

type contentCache interface {
	Get(ctx context.Context, courseID, moduleID string) (*models.ModuleContent, bool, error)

	Set(ctx context.Context, courseID, moduleID string, content *models.ModuleContent) error
}

type coursesRemover interface {
	EnqueueJob(job *models.CourseDeleteJob)
}

// ErrCourseNotFound is returned when the requested course does not
// exist or is already queued for deletion.
var ErrCourseNotFound = errors.New("course not found")

// ErrAccessDenied is returned when a user requests a course owned by
// somebody else.
var ErrAccessDenied = errors.New("course belongs to another user")

// ErrModuleNotFound is returned when a course has no module with the
// requested ID.
var ErrModuleNotFound = errors.New("module not found in course outline")

// ErrModuleContentNotFound is returned by narration when the module's
// content has not been generated yet.
var ErrModuleContentNotFound = errors.New("module content not generated yet")

type Service struct {
	db             storage
	outlines       outlineGenerator
	contents       moduleContentGenerator
	narrator       narrator
	chatter        chatter
	cache          contentCache
	coursesRemover coursesRemover
}

func New(
	db storage,
	outlines outlineGenerator,
	contents moduleContentGenerator,
	narrator narrator,
	chatter chatter,
	cache contentCache,
	coursesRemover coursesRemover,
) *Service {
	return &Service{
		db:             db,
		outlines:       outlines,
		contents:       contents,
		narrator:       narrator,
		chatter:        chatter,
		cache:          cache,
		coursesRemover: coursesRemover,
	}
}

// CreateCourse generates a course outline for the topic and persists it
// under the given user.
func (s *Service) CreateCourse(
	ctx context.Context,
	userID string,
	request models.CreateCourseRequest,
) (*models.Course, error) {
	course, err := s.outlines.GenerateOutline(ctx, request.Topic)
	if err != nil {
		return nil, err
	}

	course.ID = uuid.New().String()
	course.UserID = userID
	course.CreatedAt = time.Now()
	for i := range course.Modules {
		if course.Modules[i].ID == "" {
			course.Modules[i].ID = uuid.New().String()
		}
	}

	tx, err := s.db.BeginTransaction()
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = s.db.RollbackTransaction(tx)
	}()

	if err := s.db.SaveCourse(ctx, course, tx); err != nil {
		return nil, err
	}

	if err := s.db.CommitTransaction(tx); err != nil {
		return nil, err
	}

	return course, nil
}

// GetUserCourses lists the courses owned by the user, newest first.
func (s *Service) GetUserCourses(ctx context.Context, userID string) ([]models.Course, error) {
	return s.db.FindCoursesByUser(ctx, userID)
}

// GetCourse fetches one course and enforces ownership.
func (s *Service) GetCourse(ctx context.Context, userID, courseID string) (*models.Course, error) {
	course, found, err := s.db.FindCourseByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, models.ErrCourseMarkedAsDeleted) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	if !found {
		return nil, ErrCourseNotFound
	}
	if course.UserID != userID {
		return nil, ErrAccessDenied
	}

	return course, nil
}

// GetModuleContent returns the generated content of one module. The
// content is produced lazily: a cached or stored copy wins, otherwise
// it is generated, persisted and cached for the next call. The visual
// and textual points steer the balance of the generated material.
func (s *Service) GetModuleContent(
	ctx context.Context,
	userID,
	courseID,
	moduleID string,
	visualPoints,
	textualPoints int,
) (*models.ModuleContent, error) {
	course, err := s.GetCourse(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	module, err := findModule(course, moduleID)
	if err != nil {
		return nil, err
	}

	content, found, err := s.cache.Get(ctx, courseID, moduleID)
	if err == nil && found {
		return content, nil
	}

	content, found, err = s.db.FindModuleContent(ctx, courseID, moduleID)
	if err != nil {
		return nil, err
	}
	if found {
		_ = s.cache.Set(ctx, courseID, moduleID, content)
		return content, nil
	}

	content, err = s.contents.GenerateModuleContent(
		ctx,
		course.Title,
		module,
		visualPoints,
		textualPoints,
	)
	if err != nil {
		return nil, err
	}

	if err := s.db.SaveModuleContent(ctx, courseID, moduleID, content, nil); err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, courseID, moduleID, content)

	return content, nil
}

// NarrateModule converts the module's stored textual content into
// speech and returns the base64-encoded audio.
func (s *Service) NarrateModule(
	ctx context.Context,
	userID,
	courseID,
	moduleID string,
) (string, error) {
	course, err := s.GetCourse(ctx, userID, courseID)
	if err != nil {
		return "", err
	}

	if _, err := findModule(course, moduleID); err != nil {
		return "", err
	}

	content, found, err := s.db.FindModuleContent(ctx, courseID, moduleID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrModuleContentNotFound
	}

	text := content.TextualContent
	if text == "" {
		text = content.Content
	}

	return s.narrator.Synthesize(ctx, text)
}

// Chat forwards a single learner message to the tutoring assistant.
func (s *Service) Chat(ctx context.Context, message string) (string, error) {
	return s.chatter.Send(ctx, message)
}

// DeleteCoursesAsync enqueues a course deletion job for background
// processing. Ownership is enforced by the storage layer when the
// batch is applied.
func (s *Service) DeleteCoursesAsync(ctx context.Context, userID string, courses models.DeleteCoursesRequest) {
	s.coursesRemover.EnqueueJob(&models.CourseDeleteJob{
		UserID:          userID,
		CoursesToDelete: courses,
	})
}

// GetInternalStats returns the total course and user counts.
func (s *Service) GetInternalStats(ctx context.Context) (models.StatsResponse, error) {
	courses, err := s.db.GetNumberOfCourses(ctx)
	if err != nil {
		return models.StatsResponse{}, err
	}

	users, err := s.db.GetNumberOfUsers(ctx)
	if err != nil {
		return models.StatsResponse{}, err
	}

	return models.StatsResponse{
		Courses: courses,
		Users:   users,
	}, nil
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func findModule(course *models.Course, moduleID string) (models.Module, error) {
	match := funk.Find(course.Modules, func(module models.Module) bool {
		return module.ID == moduleID
	})
	if match == nil {
		return models.Module{}, ErrModuleNotFound
	}

	return match.(models.Module), nil
}
