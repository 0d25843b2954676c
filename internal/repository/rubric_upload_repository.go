package repository

import (
	"context"

	"sel_rubric_backend/internal/model"

	"gorm.io/gorm"
)

type RubricUploadRepository struct {
	DB *gorm.DB
}

func NewRubricUploadRepository(db *gorm.DB) *RubricUploadRepository {
	return &RubricUploadRepository{DB: db}
}

func (r *RubricUploadRepository) Create(ctx context.Context, u *model.RubricUpload) error {
	return r.DB.WithContext(ctx).Create(u).Error
}

func (r *RubricUploadRepository) FindOwned(ctx context.Context, teacherID, id string) (*model.RubricUpload, error) {
	var u model.RubricUpload
	err := r.DB.WithContext(ctx).Where("id = ? AND teacher_id = ?", id, teacherID).First(&u).Error
	return &u, err
}

func (r *RubricUploadRepository) ListByTeacher(ctx context.Context, teacherID string, page, limit int) ([]model.RubricUpload, int64, error) {
	var list []model.RubricUpload
	var total int64
	query := r.DB.WithContext(ctx).Model(&model.RubricUpload{}).Where("teacher_id = ?", teacherID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

func (r *RubricUploadRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Where("id = ?", id).Delete(&model.RubricUpload{}).Error
}
