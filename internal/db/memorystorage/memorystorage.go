// Package memorystorage is an ephemeral course store used when neither
// a database DSN nor a storage file is configured.
package memorystorage

import (
	"context"

	"github.com/skillatlas/skillatlas/internal/db/jsondb"
	"github.com/skillatlas/skillatlas/internal/models"
)

type MemoryStorage struct {
	*jsondb.JSONDB
}

func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: &jsondb.JSONDB{
			Cache: jsondb.CacheStruct{
				Courses:        map[string]models.Course{},
				UserCourses:    map[string][]string{},
				ModuleContents: map[string]models.ModuleContent{},
				DeletedCourses: map[string]bool{},
			},
		},
	}, nil
}

func (theStorage *MemoryStorage) Close() error {
	return nil
}

func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
