// Package postgresdb provides a PostgreSQL-based implementation of the
// course store. It persists courses, lazily generated module content,
// and user-course ownership, and runs schema migrations on startup.
package postgresdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/skillatlas/skillatlas/internal/models"
)

// PostgresDB is a PostgreSQL-backed course store.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type initOptions struct {
	DBPreReset bool
}

// InitOption configures New.
type InitOption func(*initOptions)

// WithDBPreReset drops the schema before running migrations. Test use only.
func WithDBPreReset(preReset bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = preReset
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(ctx, `DROP SCHEMA public CASCADE; CREATE SCHEMA public;`)
	return err
}

// SaveCourse upserts one course together with its outline.
func (db *PostgresDB) SaveCourse(
	ctx context.Context,
	course *models.Course,
	transaction *sql.Tx,
) error {
	var database executor
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	modulesJSON, err := json.Marshal(course.Modules)
	if err != nil {
		return fmt.Errorf("in internal/db/postgresdb/postgresdb.go/SaveCourse(): error while `json.Marshal()` calling: %w", err)
	}

	_, err = database.ExecContext(
		ctx,
		`
			INSERT INTO courses (id, user_id, title, description, modules, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE
				SET
					title = EXCLUDED.title,
					description = EXCLUDED.description,
					modules = EXCLUDED.modules;
		`,
		course.ID,
		course.UserID,
		course.Title,
		course.Description,
		modulesJSON,
		course.CreatedAt,
	)

	return err
}

// FindCourseByID fetches one course. A course queued for deletion is
// reported through models.ErrCourseMarkedAsDeleted.
func (db *PostgresDB) FindCourseByID(ctx context.Context, courseID string) (*models.Course, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT id, user_id, title, description, modules, created_at, is_deleted
				FROM courses
				WHERE id = $1
		`,
		courseID,
	)

	course, isDeleted, err := scanCourse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if isDeleted {
		return nil, false, models.ErrCourseMarkedAsDeleted
	}

	return course, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (*models.Course, bool, error) {
	var course models.Course
	var modulesJSON []byte
	var isDeleted bool

	err := row.Scan(
		&course.ID,
		&course.UserID,
		&course.Title,
		&course.Description,
		&modulesJSON,
		&course.CreatedAt,
		&isDeleted,
	)
	if err != nil {
		return nil, false, err
	}

	if err := json.Unmarshal(modulesJSON, &course.Modules); err != nil {
		return nil, false, err
	}

	return &course, isDeleted, nil
}

// FindCoursesByUser returns the user's courses, newest first, skipping
// those queued for deletion.
func (db *PostgresDB) FindCoursesByUser(ctx context.Context, userID string) ([]models.Course, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, user_id, title, description, modules, created_at, is_deleted
				FROM courses
				WHERE user_id = $1
					AND is_deleted = false
				ORDER BY created_at DESC
		`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Course{}
	for rows.Next() {
		course, _, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *course)
	}

	err = rows.Err()
	if err != nil {
		return nil, err
	}

	return result, nil
}

// SaveModuleContent upserts the generated content of one module.
func (db *PostgresDB) SaveModuleContent(
	ctx context.Context,
	courseID,
	moduleID string,
	content *models.ModuleContent,
	transaction *sql.Tx,
) error {
	var database executor
	if transaction == nil {
		database = db.database
	} else {
		database = transaction
	}

	contentJSON, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("in internal/db/postgresdb/postgresdb.go/SaveModuleContent(): error while `json.Marshal()` calling: %w", err)
	}

	_, err = database.ExecContext(
		ctx,
		`
			INSERT INTO module_contents (course_id, module_id, content)
				VALUES ($1, $2, $3)
				ON CONFLICT (course_id, module_id) DO UPDATE
				SET content = EXCLUDED.content;
		`,
		courseID,
		moduleID,
		contentJSON,
	)

	return err
}

// FindModuleContent fetches previously generated module content.
func (db *PostgresDB) FindModuleContent(
	ctx context.Context,
	courseID,
	moduleID string,
) (*models.ModuleContent, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT content FROM module_contents WHERE course_id = $1 AND module_id = $2`,
		courseID,
		moduleID,
	)

	var contentJSON []byte
	err := row.Scan(&contentJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var content models.ModuleContent
	if err := json.Unmarshal(contentJSON, &content); err != nil {
		return nil, false, err
	}

	return &content, true, nil
}

// RemoveUsersCourses marks a batch of courses as deleted for the given
// user IDs. It executes the updates within a transaction.
func (db *PostgresDB) RemoveUsersCourses(
	ctx context.Context,
	usersCourses map[string][]string,
) error {
	transaction, err := db.database.Begin()
	if err != nil {
		return err
	}

	for userID, courseIDs := range usersCourses {
		for _, courseID := range courseIDs {
			_, err := transaction.ExecContext(
				ctx,
				`
					UPDATE courses
						SET is_deleted = true
						WHERE user_id = $1
							AND id = $2
				`,
				userID,
				courseID,
			)
			if err != nil {
				err2 := transaction.Rollback()
				if err2 != nil {
					return err2
				}
				return err
			}
		}
	}

	err = transaction.Commit()
	if err != nil {
		return err
	}

	return nil
}

// GetNumberOfCourses returns the count of live courses.
func (db *PostgresDB) GetNumberOfCourses(ctx context.Context) (int64, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM courses WHERE is_deleted = false`,
	)

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// GetNumberOfUsers returns the count of distinct course owners.
func (db *PostgresDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT COUNT(DISTINCT user_id) FROM courses`,
	)

	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, err
	}

	return count, nil
}

// Ping verifies the database connection.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctx)
}

// Close closes the underlying database handle.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

// BeginTransaction starts a new SQL transaction and returns it.
// The caller is responsible for committing or rolling it back.
func (db *PostgresDB) BeginTransaction() (*sql.Tx, error) {
	return db.database.Begin()
}

// RollbackTransaction rolls back the given SQL transaction.
func (db *PostgresDB) RollbackTransaction(transaction *sql.Tx) error {
	return transaction.Rollback()
}

// CommitTransaction commits the given SQL transaction.
// Returns an error if the commit operation fails.
func (db *PostgresDB) CommitTransaction(transaction *sql.Tx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred while committing transaction: %v", r)
		}
	}()

	return transaction.Commit()
}
