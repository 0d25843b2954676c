package repository

import (
	"context"
	"errors"

	"sel_rubric_backend/internal/model"

	"gorm.io/gorm"
)

type TeacherProfileRepository struct {
	DB *gorm.DB
}

func NewTeacherProfileRepository(db *gorm.DB) *TeacherProfileRepository {
	return &TeacherProfileRepository{DB: db}
}

// FindByTeacherID returns nil, nil when the teacher has no profile yet.
func (r *TeacherProfileRepository) FindByTeacherID(ctx context.Context, teacherID string) (*model.TeacherProfile, error) {
	var p model.TeacherProfile
	err := r.DB.WithContext(ctx).Where("teacher_id = ?", teacherID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Save inserts the profile on first use and overwrites it afterwards.
func (r *TeacherProfileRepository) Save(ctx context.Context, p *model.TeacherProfile) error {
	if p.ID == "" {
		return r.DB.WithContext(ctx).Create(p).Error
	}
	return r.DB.WithContext(ctx).Save(p).Error
}
