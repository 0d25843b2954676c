package service

import (
	"context"

	"sel_rubric_backend/internal/model"
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/rubric"
	"sel_rubric_backend/pkg/logger"

	"go.uber.org/zap"
)

// InvariantGauge publishes the number of broken distributions found by an audit.
type InvariantGauge interface {
	SetInvariantViolations(n int)
}

type AuditViolation struct {
	ID     string          `json:"id"`
	Cohort model.CohortKey `json:"cohort"`
	Error  string          `json:"error"`
}

type AuditReport struct {
	Checked    int              `json:"checked"`
	Violations []AuditViolation `json:"violations"`
}

type RebuildReport struct {
	Assessments int `json:"assessments"`
	Cohorts     int `json:"cohorts"`
	Reset       int `json:"reset"`
}

const auditBatchSize = 200

// DistributionAuditService checks stored distributions against the counting
// invariant and can recompute them from the saved assessments.
type DistributionAuditService struct {
	distRepo    *repository.CohortDistributionRepository
	assessments *repository.AssessmentRepository
	aggregator  *AggregatorService
	gauge       InvariantGauge
}

func NewDistributionAuditService(
	distRepo *repository.CohortDistributionRepository,
	assessments *repository.AssessmentRepository,
	aggregator *AggregatorService,
	gauge InvariantGauge,
) *DistributionAuditService {
	return &DistributionAuditService{distRepo: distRepo, assessments: assessments, aggregator: aggregator, gauge: gauge}
}

func (s *DistributionAuditService) Audit(ctx context.Context) (AuditReport, error) {
	report := AuditReport{Violations: []AuditViolation{}}
	err := s.distRepo.FindInBatches(ctx, auditBatchSize, func(batch []model.CohortDistribution) error {
		for i := range batch {
			report.Checked++
			if err := batch[i].Distribution().Validate(); err != nil {
				report.Violations = append(report.Violations, AuditViolation{
					ID:     batch[i].ID,
					Cohort: batch[i].Key(),
					Error:  err.Error(),
				})
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	if s.gauge != nil {
		s.gauge.SetInvariantViolations(len(report.Violations))
	}
	for _, v := range report.Violations {
		logger.Log.Error("Cohort distribution invariant violated",
			zap.String("id", v.ID),
			zap.String("cohort", v.Cohort.String()),
			zap.String("error", v.Error),
		)
	}
	return report, nil
}

// Rebuild recomputes every cohort distribution from the stored assessments and
// replaces the counters. Cohorts with no assessments left are reset to zero.
// Submissions racing with a rebuild may be overwritten, so run it while idle.
func (s *DistributionAuditService) Rebuild(ctx context.Context) (RebuildReport, error) {
	var report RebuildReport
	targets := make(map[model.CohortKey]rubric.Distribution)

	err := s.assessments.FindInBatches(ctx, auditBatchSize, func(batch []model.Assessment) error {
		for i := range batch {
			key := batch[i].CohortKey().Normalize()
			d, ok := targets[key]
			if !ok {
				d = rubric.NewDistribution()
			}
			targets[key] = rubric.ApplyOne(d, batch[i].Result())
			report.Assessments++
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	err = s.distRepo.FindInBatches(ctx, auditBatchSize, func(batch []model.CohortDistribution) error {
		for i := range batch {
			key := batch[i].Key().Normalize()
			if _, ok := targets[key]; !ok {
				targets[key] = rubric.NewDistribution()
				report.Reset++
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	for key, dist := range targets {
		if _, err := s.aggregator.Replace(ctx, key, dist); err != nil {
			return report, err
		}
		report.Cohorts++
	}

	logger.Log.Info("Cohort distributions rebuilt",
		zap.Int("assessments", report.Assessments),
		zap.Int("cohorts", report.Cohorts),
		zap.Int("reset", report.Reset),
	)
	return report, nil
}
