// Package storage declares the full persistence contract of the
// course store. Concrete backends live in the sibling packages.
package storage

import (
	"context"
	"database/sql"

	"github.com/skillatlas/skillatlas/internal/models"
)

type Storage interface {
	SaveCourse(
		ctx context.Context,
		course *models.Course,
		transaction *sql.Tx,
	) error

	FindCourseByID(ctx context.Context, courseID string) (*models.Course, bool, error)

	FindCoursesByUser(ctx context.Context, userID string) ([]models.Course, error)

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

	RemoveUsersCourses(
		ctx context.Context,
		usersCourses map[string][]string,
	) error

	GetNumberOfCourses(ctx context.Context) (int64, error)

	GetNumberOfUsers(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error

	Close() error

	BeginTransaction() (*sql.Tx, error)

	RollbackTransaction(transaction *sql.Tx) error

	CommitTransaction(transaction *sql.Tx) error
}
