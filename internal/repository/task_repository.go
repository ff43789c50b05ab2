package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"learning-companion/internal/model"
)

// TaskRepository handles CRUD for the task collection.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListByOwner returns all of an owner's tasks, newest first.
func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) Insert(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// Update replaces the stored record with the given one, scoped to its owner.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("owner_id = ? AND id = ?", task.OwnerID, task.ID).
		Select("title", "category", "completed", "completed_at").
		Updates(task)
	if res.Error != nil {
		return fmt.Errorf("update task: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, ownerID, taskID string) error {
	if err := r.db.WithContext(ctx).Where("owner_id = ? AND id = ?", ownerID, taskID).
		Delete(&model.Task{}).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// Upsert inserts the task or overwrites an existing record with the same id.
func (r *TaskRepository) Upsert(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(task).Error; err != nil {
		return fmt.Errorf("upsert task: %w", err)
	}
	return nil
}
