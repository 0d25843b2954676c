package repository

import (
	"context"

	"sel_rubric_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AssessmentFilter struct {
	TestType       string
	School         string
	Grade          string
	AssessmentName string
	Page           int
	Limit          int
}

type AssessmentRepository struct {
	DB *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: db}
}

// WithTx returns a repository bound to tx.
func (r *AssessmentRepository) WithTx(tx *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{DB: tx}
}

func (r *AssessmentRepository) Create(ctx context.Context, a *model.Assessment) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&a).Error
	return &a, err
}

// FindOwned loads an assessment only if it belongs to teacherID.
func (r *AssessmentRepository) FindOwned(ctx context.Context, teacherID, id string) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.WithContext(ctx).
		Where("id = ? AND teacher_id = ?", id, teacherID).
		First(&a).Error
	return &a, err
}

// ListByTeacher returns the teacher's assessments, newest first.
func (r *AssessmentRepository) ListByTeacher(ctx context.Context, teacherID string, f AssessmentFilter) ([]model.Assessment, int64, error) {
	var list []model.Assessment
	var total int64

	query := r.DB.WithContext(ctx).Model(&model.Assessment{}).Where("teacher_id = ?", teacherID)
	if f.TestType != "" {
		query = query.Where("test_type = ?", f.TestType)
	}
	if f.School != "" {
		query = query.Where("school = ?", f.School)
	}
	if f.Grade != "" {
		query = query.Where("grade = ?", f.Grade)
	}
	if f.AssessmentName != "" {
		query = query.Where("assessment_name = ?", f.AssessmentName)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * f.Limit).Limit(f.Limit)
	}
	err := query.Order("created_at desc").Order("id desc").Find(&list).Error
	return list, total, err
}

// FindOwnedForUpdate is FindOwned with a row lock held until the surrounding transaction ends.
// Drivers without row locks (sqlite) skip the locking clause.
func (r *AssessmentRepository) FindOwnedForUpdate(ctx context.Context, teacherID, id string) (*model.Assessment, error) {
	var a model.Assessment
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND teacher_id = ?", id, teacherID).
		First(&a).Error
	return &a, err
}

// UpdateResults replaces answers, scores, skill scores and overall score in one statement.
// The write only lands if the row still carries a.Version; on success a.Version is bumped.
func (r *AssessmentRepository) UpdateResults(ctx context.Context, a *model.Assessment) error {
	expected := a.Version
	a.Version = expected + 1
	res := r.DB.WithContext(ctx).Model(a).
		Where("version = ?", expected).
		Select("answers", "scores", "skill_scores", "overall_score", "is_manual_entry", "version", "updated_at").
		Updates(a)
	if res.Error != nil {
		a.Version = expected
		return res.Error
	}
	if res.RowsAffected == 0 {
		a.Version = expected
		return r.missOrStale(ctx, a.ID)
	}
	return nil
}

func (r *AssessmentRepository) Delete(ctx context.Context, id string) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&model.Assessment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteUnchanged deletes a only if it still carries a.Version.
func (r *AssessmentRepository) DeleteUnchanged(ctx context.Context, a *model.Assessment) error {
	res := r.DB.WithContext(ctx).
		Where("id = ? AND version = ?", a.ID, a.Version).
		Delete(&model.Assessment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrStale(ctx, a.ID)
	}
	return nil
}

// missOrStale tells a vanished row from one whose version moved on.
func (r *AssessmentRepository) missOrStale(ctx context.Context, id string) error {
	var n int64
	if err := r.DB.WithContext(ctx).Model(&model.Assessment{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return ErrStaleRecord
}

// FindInBatches walks every assessment in primary-key order.
func (r *AssessmentRepository) FindInBatches(ctx context.Context, size int, fn func([]model.Assessment) error) error {
	var batch []model.Assessment
	return r.DB.WithContext(ctx).Model(&model.Assessment{}).
		FindInBatches(&batch, size, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}
