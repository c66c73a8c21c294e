// Package jsondb is a file-backed course store. The whole dataset
// lives in memory and is flushed to a JSON file on Close.
package jsondb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/thoas/go-funk"

	"github.com/skillatlas/skillatlas/internal/models"
)

// JSONDB serves HTTP handler goroutines and the background course
// remover concurrently; mu guards every access to the cache maps.
type JSONDB struct {
	fileName string
	mu       sync.RWMutex
	Cache    CacheStruct
}

type CacheStruct struct {
	Courses        map[string]models.Course
	UserCourses    map[string][]string
	ModuleContents map[string]models.ModuleContent
	DeletedCourses map[string]bool
}

func contentKey(courseID, moduleID string) string {
	return courseID + "/" + moduleID
}

func initDBFile(fileName string) error {
	dbFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(dbFile, `{
	"Courses": {},
	"UserCourses": {},
	"ModuleContents": {},
	"DeletedCourses": {}
}`)
	if err != nil {
		return err
	}
	return dbFile.Close()
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %s", err)
	}

	file, err2 := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err2 != nil {
		return fmt.Errorf("error opening file: %s", err2)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %s", err)
	}

	return nil
}

func parseJSONFile(fileName string, cacheMap *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	err = decoder.Decode(cacheMap)
	if err != nil {
		return err
	}

	return nil
}

func New(fileName string) (*JSONDB, error) {
	theDB := JSONDB{
		fileName: fileName,
		Cache:    CacheStruct{},
	}

	err := parseJSONFile(theDB.fileName, &theDB.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		err := initDBFile(fileName)
		if err != nil {
			return nil, err
		}
		err = parseJSONFile(theDB.fileName, &theDB.Cache)
		if err != nil {
			return nil, err
		}
	}

	theDB.Cache.ensureMaps()

	return &theDB, nil
}

// ensureMaps guards against snapshots written before a field existed.
func (c *CacheStruct) ensureMaps() {
	if c.Courses == nil {
		c.Courses = map[string]models.Course{}
	}
	if c.UserCourses == nil {
		c.UserCourses = map[string][]string{}
	}
	if c.ModuleContents == nil {
		c.ModuleContents = map[string]models.ModuleContent{}
	}
	if c.DeletedCourses == nil {
		c.DeletedCourses = map[string]bool{}
	}
}

func (db *JSONDB) SaveCourse(
	ctx context.Context,
	course *models.Course,
	transaction *sql.Tx,
) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.Cache.Courses[course.ID] = *course
	if !funk.ContainsString(db.Cache.UserCourses[course.UserID], course.ID) {
		db.Cache.UserCourses[course.UserID] = append(db.Cache.UserCourses[course.UserID], course.ID)
	}

	return nil
}

func (db *JSONDB) FindCourseByID(ctx context.Context, courseID string) (*models.Course, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if db.Cache.DeletedCourses[courseID] {
		return nil, false, models.ErrCourseMarkedAsDeleted
	}

	course, found := db.Cache.Courses[courseID]
	if !found {
		return nil, false, nil
	}

	return &course, true, nil
}

func (db *JSONDB) FindCoursesByUser(ctx context.Context, userID string) ([]models.Course, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := []models.Course{}
	for _, courseID := range db.Cache.UserCourses[userID] {
		if db.Cache.DeletedCourses[courseID] {
			continue
		}
		course, found := db.Cache.Courses[courseID]
		if !found {
			continue
		}
		result = append(result, course)
	}

	return result, nil
}

func (db *JSONDB) SaveModuleContent(
	ctx context.Context,
	courseID,
	moduleID string,
	content *models.ModuleContent,
	transaction *sql.Tx,
) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.Cache.ModuleContents[contentKey(courseID, moduleID)] = *content

	return nil
}

func (db *JSONDB) FindModuleContent(
	ctx context.Context,
	courseID,
	moduleID string,
) (*models.ModuleContent, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	content, found := db.Cache.ModuleContents[contentKey(courseID, moduleID)]
	if !found {
		return nil, false, nil
	}

	return &content, true, nil
}

func (db *JSONDB) RemoveUsersCourses(
	ctx context.Context,
	usersCourses map[string][]string,
) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for userID, courseIDs := range usersCourses {
		for _, courseID := range courseIDs {
			course, found := db.Cache.Courses[courseID]
			if !found || course.UserID != userID {
				continue
			}
			db.Cache.DeletedCourses[courseID] = true
		}
	}

	return nil
}

func (db *JSONDB) GetNumberOfCourses(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	count := int64(0)
	for courseID := range db.Cache.Courses {
		if !db.Cache.DeletedCourses[courseID] {
			count++
		}
	}

	return count, nil
}

func (db *JSONDB) GetNumberOfUsers(ctx context.Context) (int64, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return int64(len(db.Cache.UserCourses)), nil
}

func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	err := writeToJSONFile(db.fileName, db.Cache)
	if err != nil {
		return err
	}

	return nil
}

func (db *JSONDB) BeginTransaction() (*sql.Tx, error) {
	return nil, nil
}

func (db *JSONDB) RollbackTransaction(transaction *sql.Tx) error {
	return nil
}

func (db *JSONDB) CommitTransaction(transaction *sql.Tx) error {
	return nil
}
