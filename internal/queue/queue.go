// Package queue owns the pending job queue: atomic enqueue with worker-type
// eligibility, and ownership-scoped status lookups.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/graderqueue/internal/apperr"
	"github.com/zulandar/graderqueue/internal/job"
	"github.com/zulandar/graderqueue/internal/models"
	"gorm.io/gorm"
)

// Origin tells which set a status record was found in.
type Origin string

const (
	OriginPending   Origin = "pending"
	OriginCompleted Origin = "completed"
)

// EnqueueOpts holds parameters for queueing a job.
type EnqueueOpts struct {
	Name          string
	Priority      int
	Owner         int64
	Tags          []string
	RestrictPaths []string // attached to the descriptor when non-empty
	Descriptor    job.Descriptor
	TypeIDs       []uint // empty: every known worker type
}

// Status is the result of a job lookup. Record is a *models.QueueEntry for
// pending jobs and a *models.DoneEntry for completed ones.
type Status struct {
	Origin Origin
	Record any
}

// Store persists queue entries.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Enqueue inserts the entry and its eligibility rows in one transaction and
// returns the new job id. Either everything commits or nothing does.
func (s *Store) Enqueue(ctx context.Context, opts EnqueueOpts) (uint, error) {
	desc := opts.Descriptor
	if len(opts.RestrictPaths) > 0 {
		desc = desc.Clone()
		if err := desc.Set("restrictToPaths", opts.RestrictPaths); err != nil {
			return 0, apperr.Storage("Could not queue job.", err)
		}
	}
	data, err := desc.Marshal()
	if err != nil {
		return 0, apperr.Storage("Could not queue job.", err)
	}

	entry := models.QueueEntry{
		Name:         opts.Name,
		Priority:     job.ClampPriority(opts.Priority),
		ReceivedFrom: opts.Owner,
		ReceivedTime: s.now(),
		Tags:         strings.Join(opts.Tags, ","),
		JobData:      data,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("insert queue entry: %w", err)
		}

		var inserted int64
		if len(opts.TypeIDs) > 0 {
			rows := make([]models.JobType, 0, len(opts.TypeIDs))
			for _, typeID := range opts.TypeIDs {
				rows = append(rows, models.JobType{JobID: entry.ID, TypeID: typeID})
			}
			result := tx.Create(&rows)
			if result.Error != nil {
				return fmt.Errorf("insert job types: %w", result.Error)
			}
			inserted = result.RowsAffected
		} else {
			result := tx.Exec("INSERT INTO job_types (job_id, type_id) SELECT ?, id FROM server_types", entry.ID)
			if result.Error != nil {
				return fmt.Errorf("insert job types for all server types: %w", result.Error)
			}
			inserted = result.RowsAffected
		}
		if inserted == 0 {
			return errors.New("no server type registered")
		}
		return nil
	})
	if err != nil {
		return 0, apperr.Storage("Could not queue job.", fmt.Errorf("queue: enqueue: %w", err))
	}
	return entry.ID, nil
}

// Status looks up a job owned by owner, first among pending entries, then
// among completed ones. A job owned by someone else is reported as not found.
func (s *Store) Status(ctx context.Context, id uint, owner int64) (*Status, error) {
	db := s.db.WithContext(ctx)

	var pending models.QueueEntry
	err := db.Where("id = ? AND received_from = ?", id, owner).First(&pending).Error
	if err == nil {
		return &Status{Origin: OriginPending, Record: &pending}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Storage("Could not read job.", fmt.Errorf("queue: get pending %d: %w", id, err))
	}

	var done models.DoneEntry
	err = db.Where("job_id = ? AND received_from = ?", id, owner).First(&done).Error
	if err == nil {
		return &Status{Origin: OriginCompleted, Record: &done}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Storage("Could not read job.", fmt.Errorf("queue: get done %d: %w", id, err))
	}
	return nil, apperr.NotFound("Invalid jobid.")
}

// PendingTypeIDs returns the worker types with at least one eligible pending job.
func (s *Store) PendingTypeIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.JobType{}).
		Distinct().
		Joins("JOIN queue ON queue.id = job_types.job_id").
		Order("job_types.type_id").
		Pluck("job_types.type_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("queue: pending types: %w", err)
	}
	return ids, nil
}
