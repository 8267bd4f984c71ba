package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"family-tasks/internal/model"
)

// taskRecord is the row form of a task. Position keeps insertion order.
type taskRecord struct {
	ID          string `gorm:"primaryKey"`
	Position    int    `gorm:"index"`
	Title       string
	Description string
	Assignee    string `gorm:"index"`
	DueDate     string
	Status      string
	Recurring   string
	CreatedAt   time.Time
}

func (taskRecord) TableName() string { return "tasks" }

// TaskRepository mirrors the in-memory task list into SQLite.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ReplaceAll rewrites the stored snapshot in one transaction.
func (r *TaskRepository) ReplaceAll(ctx context.Context, tasks []model.Task) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&taskRecord{}).Error; err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}
		records := make([]taskRecord, 0, len(tasks))
		for i, task := range tasks {
			records = append(records, toRecord(i, task))
		}
		return tx.Create(&records).Error
	})
	if err != nil {
		return fmt.Errorf("replace tasks: %w", err)
	}
	return nil
}

// LoadAll returns the snapshot in its original order.
func (r *TaskRepository) LoadAll(ctx context.Context) ([]model.Task, error) {
	var records []taskRecord
	if err := r.db.WithContext(ctx).Order("position ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	tasks := make([]model.Task, 0, len(records))
	for _, rec := range records {
		task, err := fromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("load task %s: %w", rec.ID, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Count returns the number of stored tasks.
func (r *TaskRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&taskRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}

func toRecord(position int, task model.Task) taskRecord {
	return taskRecord{
		ID:          task.ID,
		Position:    position,
		Title:       task.Title,
		Description: task.Description,
		Assignee:    task.Assignee,
		DueDate:     task.DueDate.String(),
		Status:      string(task.Status),
		Recurring:   string(task.Recurring),
		CreatedAt:   task.CreatedAt,
	}
}

func fromRecord(rec taskRecord) (model.Task, error) {
	status, err := model.ParseStatus(rec.Status)
	if err != nil {
		return model.Task{}, err
	}
	recurring, err := model.ParseRecurrence(rec.Recurring)
	if err != nil {
		return model.Task{}, err
	}
	var due model.Date
	if rec.DueDate != "" {
		if due, err = model.ParseDate(rec.DueDate); err != nil {
			return model.Task{}, err
		}
	}
	return model.Task{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		Assignee:    rec.Assignee,
		DueDate:     due,
		Status:      status,
		Recurring:   recurring,
		CreatedAt:   rec.CreatedAt,
	}, nil
}
