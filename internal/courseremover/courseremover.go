// Package courseremover implements background batched removal of
// courses. Deletion requests are accepted immediately and applied to
// the storage in periodic batches.
package courseremover

import (
	"context"
	"time"

	"github.com/skillatlas/skillatlas/internal/db/storage"
	"github.com/skillatlas/skillatlas/internal/logger"
	"github.com/skillatlas/skillatlas/internal/models"
)

type task struct {
	userID         string
	courseToDelete string
}

type CourseRemover struct {
	queue                    chan *task
	db                       storage.Storage
	delayBetweenQueueFetches time.Duration
	errorChannel             chan error
}

func New(
	db storage.Storage,
	channelCapacity int,
	delayBetweenQueueFetches time.Duration,
) *CourseRemover {
	return &CourseRemover{
		db:                       db,
		queue:                    make(chan *task, channelCapacity),
		delayBetweenQueueFetches: delayBetweenQueueFetches,
		errorChannel:             make(chan error, channelCapacity),
	}
}

// ListenErrors forwards batch application errors to the callback.
func (r *CourseRemover) ListenErrors(callback func(error)) {
	go func() {
		for err := range r.errorChannel {
			callback(err)
		}
	}()
}

func (r *CourseRemover) collectCoursesByUser(tasks []task) map[string][]string {
	result := map[string][]string{}
	for _, t := range tasks {
		_, ok := result[t.userID]
		if !ok {
			result[t.userID] = []string{}
		}
		result[t.userID] = append(result[t.userID], t.courseToDelete)
	}

	return result
}

// Run starts the background loop. Accumulated tasks are flushed to the
// storage on every tick. The loop stops when ctx is cancelled.
func (r *CourseRemover) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.delayBetweenQueueFetches)
		defer ticker.Stop()

		var tasks []task

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-r.queue:
				tasks = append(tasks, *t)
			case <-ticker.C:
				if len(tasks) == 0 {
					continue
				}
				err := r.db.RemoveUsersCourses(ctx, r.collectCoursesByUser(tasks))
				if err != nil {
					r.errorChannel <- err
					continue
				}
				logger.Log.Infof("processed removing of %d courses", len(tasks))
				tasks = nil
			}
		}
	}()
}

// EnqueueJob splits a deletion job into per-course tasks and queues
// them for the next batch.
func (r *CourseRemover) EnqueueJob(job *models.CourseDeleteJob) {
	for _, courseID := range job.CoursesToDelete {
		r.queue <- &task{
			userID:         job.UserID,
			courseToDelete: courseID,
		}
	}
}
