package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sel_rubric_backend/internal/model"
	"sel_rubric_backend/internal/rubric"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DistributionFilter struct {
	School         string
	Grade          string
	Section        string
	Zone           string
	AssessmentName string
	TestType       string
}

// CohortDistributionRepository is the document store behind the cohort aggregator.
type CohortDistributionRepository struct {
	DB *gorm.DB
}

func NewCohortDistributionRepository(db *gorm.DB) *CohortDistributionRepository {
	return &CohortDistributionRepository{DB: db}
}

func (r *CohortDistributionRepository) WithTx(tx *gorm.DB) *CohortDistributionRepository {
	return &CohortDistributionRepository{DB: tx}
}

// Find looks a cohort up by exact key. It returns nil, nil when there is none.
func (r *CohortDistributionRepository) Find(ctx context.Context, key model.CohortKey) (*model.CohortDistribution, error) {
	var d model.CohortDistribution
	err := r.DB.WithContext(ctx).
		Where("school = ? AND grade = ? AND section = ? AND zone = ? AND assessment_name = ? AND test_type = ?",
			key.School, key.Grade, key.Section, key.Zone, key.AssessmentName, key.TestType).
		Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *CohortDistributionRepository) FindByID(ctx context.Context, id string) (*model.CohortDistribution, error) {
	var d model.CohortDistribution
	err := r.DB.WithContext(ctx).Where("id = ?", id).Take(&d).Error
	return &d, err
}

// Create inserts a new distribution. A concurrent create of the same key yields ErrDuplicateKey.
func (r *CohortDistributionRepository) Create(ctx context.Context, d *model.CohortDistribution) error {
	err := r.DB.WithContext(ctx).Create(d).Error
	if IsDuplicateKey(err) {
		return fmt.Errorf("%w: cohort %s: %v", ErrDuplicateKey, d.Key(), err)
	}
	return err
}

// UpdateCounts replaces the three mutable fields only when the stored version still
// equals expectedVersion, bumping it by one. It reports whether the row was written.
func (r *CohortDistributionRepository) UpdateCounts(ctx context.Context, id string, expectedVersion int, dist rubric.Distribution) (bool, error) {
	dist = dist.Clone()
	res := r.DB.WithContext(ctx).Model(&model.CohortDistribution{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"total_students":               dist.TotalStudents,
			"overall_level_distribution":   datatypes.NewJSONType(dist.Overall),
			"category_level_distributions": datatypes.NewJSONType(dist.Categories),
			"version":                      expectedVersion + 1,
			"updated_at":                   time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *CohortDistributionRepository) List(ctx context.Context, f DistributionFilter) ([]model.CohortDistribution, error) {
	var list []model.CohortDistribution
	query := r.DB.WithContext(ctx).Model(&model.CohortDistribution{})
	if f.School != "" {
		query = query.Where("school = ?", f.School)
	}
	if f.Grade != "" {
		query = query.Where("grade = ?", f.Grade)
	}
	if f.Section != "" {
		query = query.Where("section = ?", f.Section)
	}
	if f.Zone != "" {
		query = query.Where("zone = ?", f.Zone)
	}
	if f.AssessmentName != "" {
		query = query.Where("assessment_name = ?", f.AssessmentName)
	}
	if f.TestType != "" {
		query = query.Where("test_type = ?", f.TestType)
	}
	err := query.Order("school, grade, section, zone, assessment_name, test_type").Find(&list).Error
	return list, err
}

// FindInBatches walks every stored distribution.
func (r *CohortDistributionRepository) FindInBatches(ctx context.Context, size int, fn func([]model.CohortDistribution) error) error {
	var batch []model.CohortDistribution
	return r.DB.WithContext(ctx).Model(&model.CohortDistribution{}).
		FindInBatches(&batch, size, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}
