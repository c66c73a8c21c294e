// Package mockstorage provides a testify-based mock implementation
// of the course storage interface. It is used for unit testing HTTP
// handlers and services by simulating storage behavior.
package mockstorage

import (
	"context"
	"database/sql"

	"github.com/stretchr/testify/mock"

	"github.com/skillatlas/skillatlas/internal/models"
)

// StorageMock is a testify mock that implements the storage interface
// used by the router and the course service.
type StorageMock struct {
	mock.Mock

	// OnGetNumberOfUsers optionally overrides GetNumberOfUsers,
	// bypassing testify's generic mock handler.
	OnGetNumberOfUsers func(ctx context.Context) (int64, error)

	// OnGetNumberOfCourses optionally overrides GetNumberOfCourses.
	OnGetNumberOfCourses func(ctx context.Context) (int64, error)
}

// SaveCourse mocks storing a course.
func (m *StorageMock) SaveCourse(
	ctx context.Context,
	course *models.Course,
	transaction *sql.Tx,
) error {
	args := m.Called(ctx, course, transaction)
	return args.Error(0)
}

// FindCourseByID mocks fetching a course by its ID.
func (m *StorageMock) FindCourseByID(ctx context.Context, courseID string) (*models.Course, bool, error) {
	args := m.Called(ctx, courseID)
	course, _ := args.Get(0).(*models.Course)
	return course, args.Bool(1), args.Error(2)
}

// FindCoursesByUser mocks listing a user's courses.
func (m *StorageMock) FindCoursesByUser(ctx context.Context, userID string) ([]models.Course, error) {
	args := m.Called(ctx, userID)
	courses, _ := args.Get(0).([]models.Course)
	return courses, args.Error(1)
}

// SaveModuleContent mocks storing generated module content.
func (m *StorageMock) SaveModuleContent(
	ctx context.Context,
	courseID,
	moduleID string,
	content *models.ModuleContent,
	transaction *sql.Tx,
) error {
	args := m.Called(ctx, courseID, moduleID, content, transaction)
	return args.Error(0)
}

// FindModuleContent mocks fetching generated module content.
func (m *StorageMock) FindModuleContent(
	ctx context.Context,
	courseID,
	moduleID string,
) (*models.ModuleContent, bool, error) {
	args := m.Called(ctx, courseID, moduleID)
	content, _ := args.Get(0).(*models.ModuleContent)
	return content, args.Bool(1), args.Error(2)
}

// RemoveUsersCourses mocks the batched course removal.
func (m *StorageMock) RemoveUsersCourses(
	ctx context.Context,
	usersCourses map[string][]string,
) error {
	args := m.Called(ctx, usersCourses)
	return args.Error(0)
}

// GetNumberOfCourses mocks the live course count.
func (m *StorageMock) GetNumberOfCourses(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfCourses != nil {
		return m.OnGetNumberOfCourses(ctx)
	}
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// GetNumberOfUsers mocks the distinct user count.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	if m.OnGetNumberOfUsers != nil {
		return m.OnGetNumberOfUsers(ctx)
	}
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Ping mocks the storage health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks releasing storage resources.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

// BeginTransaction mocks the beginning of a transaction.
func (m *StorageMock) BeginTransaction() (*sql.Tx, error) {
	args := m.Called()
	tx, _ := args.Get(0).(*sql.Tx)
	return tx, args.Error(1)
}

// RollbackTransaction mocks rolling back a transaction.
func (m *StorageMock) RollbackTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}

// CommitTransaction mocks committing a transaction.
func (m *StorageMock) CommitTransaction(tx *sql.Tx) error {
	args := m.Called(tx)
	return args.Error(0)
}
