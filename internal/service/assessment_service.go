package service

import (
	"context"
	"strings"
	"sync/atomic"

	"sel_rubric_backend/internal/model"
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/rubric"
	"sel_rubric_backend/internal/util"
	"sel_rubric_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SubmissionMetrics counts saved assessments.
type SubmissionMetrics interface {
	IncSubmitted(testType string)
}

// AssessmentSettings are the hot-reloadable submission defaults.
type AssessmentSettings struct {
	DefaultAssessmentName string
	MaxBatchSize          int
}

type SubmitAssessmentRequest struct {
	StudentName    string   `json:"studentName"`
	Answers        []string `json:"answers" binding:"required"`
	School         string   `json:"school"`
	Grade          string   `json:"grade"`
	Section        string   `json:"section"`
	Zone           string   `json:"zone"`
	AssessmentName string   `json:"assessmentName"`
	TestType       string   `json:"testType"`
	IsManualEntry  *bool    `json:"isManualEntry"`
}

type UpdateAssessmentRequest struct {
	Answers []string `json:"answers" binding:"required"`
}

// BatchItemResult reports the outcome for one student of a batch submission.
type BatchItemResult struct {
	Index       int               `json:"index"`
	StudentName string            `json:"studentName"`
	Assessment  *model.Assessment `json:"assessment,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// ScoreSummary is a scored answer set with its level bands.
type ScoreSummary struct {
	Answers      []string                      `json:"answers"`
	SkillScores  map[rubric.Skill]float64      `json:"skillScores"`
	OverallScore float64                       `json:"overallScore"`
	SkillLevels  map[rubric.Skill]rubric.Level `json:"skillLevels"`
	OverallLevel rubric.Level                  `json:"overallLevel"`
}

type AssessmentService struct {
	Repo       *repository.AssessmentRepository
	distRepo   *repository.CohortDistributionRepository
	profiles   *repository.TeacherProfileRepository
	aggregator *AggregatorService
	tx         repository.TxRunner
	metrics    SubmissionMetrics
	settings   atomic.Pointer[AssessmentSettings]
}

func NewAssessmentService(
	repo *repository.AssessmentRepository,
	distRepo *repository.CohortDistributionRepository,
	profiles *repository.TeacherProfileRepository,
	aggregator *AggregatorService,
	tx repository.TxRunner,
	settings AssessmentSettings,
	metrics SubmissionMetrics,
) *AssessmentService {
	s := &AssessmentService{
		Repo:       repo,
		distRepo:   distRepo,
		profiles:   profiles,
		aggregator: aggregator,
		tx:         tx,
		metrics:    metrics,
	}
	s.SetSettings(settings)
	return s
}

func (s *AssessmentService) SetSettings(settings AssessmentSettings) {
	if strings.TrimSpace(settings.DefaultAssessmentName) == "" {
		settings.DefaultAssessmentName = "SEL"
	}
	s.settings.Store(&settings)
}

func (s *AssessmentService) Settings() AssessmentSettings {
	return *s.settings.Load()
}

// NormalizeTestType upper-cases testType and defaults it to PRE.
func NormalizeTestType(testType string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(testType))
	switch t {
	case "":
		return util.TestTypePre, nil
	case util.TestTypePre, util.TestTypePost:
		return t, nil
	default:
		return "", util.ErrInvalidTestType
	}
}

func Summarize(answers rubric.AnswerSet) ScoreSummary {
	r := rubric.Score(answers)
	return ScoreSummary{
		Answers:      answers.Strings(),
		SkillScores:  r.SkillScores,
		OverallScore: r.Overall,
		SkillLevels:  r.SkillLevels(),
		OverallLevel: r.OverallLevel(),
	}
}

// Preview scores raw answers without saving anything.
func (s *AssessmentService) Preview(raw []string) (ScoreSummary, error) {
	answers, err := rubric.ParseAnswerSet(raw)
	if err != nil {
		return ScoreSummary{}, err
	}
	return Summarize(answers), nil
}

// resolveCohort fills missing cohort fields from the teacher's profile and applies defaults.
func (s *AssessmentService) resolveCohort(ctx context.Context, teacherID string, req SubmitAssessmentRequest) (model.CohortKey, error) {
	key := model.CohortKey{
		School:         req.School,
		Grade:          req.Grade,
		Section:        req.Section,
		Zone:           req.Zone,
		AssessmentName: req.AssessmentName,
	}.Normalize()

	if s.profiles != nil && (key.School == "" || key.Grade == "" || key.Section == "" || key.Zone == "") {
		profile, err := s.profiles.FindByTeacherID(ctx, teacherID)
		if err != nil {
			return key, err
		}
		if profile != nil {
			key.School = firstNonEmpty(key.School, profile.School)
			key.Grade = firstNonEmpty(key.Grade, profile.Grade)
			key.Section = firstNonEmpty(key.Section, profile.Section)
			key.Zone = firstNonEmpty(key.Zone, profile.Zone)
			key = key.Normalize()
		}
	}
	if key.School == "" || key.Grade == "" {
		return key, util.ErrIncompleteCohort
	}

	testType, err := NormalizeTestType(req.TestType)
	if err != nil {
		return key, err
	}
	key.TestType = testType
	if key.AssessmentName == "" {
		key.AssessmentName = s.Settings().DefaultAssessmentName
	}
	return key, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// inTx runs fn in a transaction, re-running the whole transaction on distribution conflicts.
func (s *AssessmentService) inTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	_, err := withConflictRetry(ctx, s.aggregator.RetryPolicy(), s.aggregator.Hooks(), op, func() (struct{}, error) {
		return struct{}{}, s.tx.InTx(ctx, fn)
	})
	return err
}

// Submit saves one student's assessment and counts it in the cohort distribution atomically.
func (s *AssessmentService) Submit(ctx context.Context, teacherID string, req SubmitAssessmentRequest) (*model.Assessment, error) {
	answers, err := rubric.ParseAnswerSet(req.Answers)
	if err != nil {
		return nil, err
	}
	key, err := s.resolveCohort(ctx, teacherID, req)
	if err != nil {
		return nil, err
	}

	result := rubric.Score(answers)
	manual := true
	if req.IsManualEntry != nil {
		manual = *req.IsManualEntry
	}
	a := &model.Assessment{
		TeacherID:      teacherID,
		StudentName:    strings.TrimSpace(req.StudentName),
		School:         key.School,
		Grade:          key.Grade,
		Section:        key.Section,
		Zone:           key.Zone,
		AssessmentName: key.AssessmentName,
		TestType:       key.TestType,
		IsManualEntry:  manual,
	}
	a.SetResults(answers, result)

	err = s.inTx(ctx, opRecord, func(tx *gorm.DB) error {
		a.ID = ""
		if err := s.Repo.WithTx(tx).Create(ctx, a); err != nil {
			return err
		}
		_, err := s.aggregator.WithStore(s.distRepo.WithTx(tx)).RecordOnce(ctx, key, result)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.aggregator.Invalidate(ctx, key)
	if s.metrics != nil {
		s.metrics.IncSubmitted(key.TestType)
	}

	logger.Log.Info("Assessment saved",
		zap.String("assessment_id", a.ID),
		zap.String("teacher_id", teacherID),
		zap.String("cohort", key.String()),
		zap.Float64("overall_score", result.Overall),
	)
	return a, nil
}

// SubmitBatch saves every student independently; one failure does not stop the rest.
func (s *AssessmentService) SubmitBatch(ctx context.Context, teacherID string, reqs []SubmitAssessmentRequest) ([]BatchItemResult, error) {
	if len(reqs) == 0 {
		return nil, util.ErrEmptyBatch
	}
	if limit := s.Settings().MaxBatchSize; limit > 0 && len(reqs) > limit {
		return nil, util.ErrBatchTooLarge
	}

	results := make([]BatchItemResult, len(reqs))
	for i, req := range reqs {
		results[i] = BatchItemResult{Index: i, StudentName: strings.TrimSpace(req.StudentName)}
		a, err := s.Submit(ctx, teacherID, req)
		if err != nil {
			logger.Log.Warn("Batch assessment failed",
				zap.Int("index", i),
				zap.String("teacher_id", teacherID),
				zap.Error(err),
			)
			results[i].Error = err.Error()
			continue
		}
		results[i].Assessment = a
	}
	return results, nil
}

func (s *AssessmentService) List(ctx context.Context, teacherID string, f repository.AssessmentFilter) ([]model.Assessment, int64, error) {
	if f.TestType != "" {
		t, err := NormalizeTestType(f.TestType)
		if err != nil {
			return nil, 0, err
		}
		f.TestType = t
	}
	return s.Repo.ListByTeacher(ctx, teacherID, f)
}

// Get returns the assessment if it belongs to teacherID.
func (s *AssessmentService) Get(ctx context.Context, teacherID, id string) (*model.Assessment, error) {
	a, err := s.Repo.FindOwned(ctx, teacherID, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, util.ErrAssessmentNotFound
		}
		return nil, err
	}
	return a, nil
}

// Update re-scores an assessment with new answers and moves the student between
// level bands of its cohort in the same transaction.
func (s *AssessmentService) Update(ctx context.Context, teacherID, id string, req UpdateAssessmentRequest) (*model.Assessment, error) {
	answers, err := rubric.ParseAnswerSet(req.Answers)
	if err != nil {
		return nil, err
	}
	updated := rubric.Score(answers)

	var saved *model.Assessment
	err = s.inTx(ctx, opRevise, func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		a, err := repo.FindOwnedForUpdate(ctx, teacherID, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return util.ErrAssessmentNotFound
			}
			return err
		}
		old := a.Result()
		a.SetResults(answers, updated)
		a.IsManualEntry = true
		if err := repo.UpdateResults(ctx, a); err != nil {
			return err
		}
		if _, err := s.aggregator.WithStore(s.distRepo.WithTx(tx)).ReviseOnce(ctx, a.CohortKey(), old, updated); err != nil {
			return err
		}
		saved = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.aggregator.Invalidate(ctx, saved.CohortKey())
	return saved, nil
}

// Delete removes an assessment and its contribution to the cohort distribution.
func (s *AssessmentService) Delete(ctx context.Context, teacherID, id string) error {
	var key model.CohortKey
	err := s.inTx(ctx, opRetract, func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		a, err := repo.FindOwnedForUpdate(ctx, teacherID, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return util.ErrAssessmentNotFound
			}
			return err
		}
		if err := repo.DeleteUnchanged(ctx, a); err != nil {
			return err
		}
		key = a.CohortKey()
		_, err = s.aggregator.WithStore(s.distRepo.WithTx(tx)).RetractOnce(ctx, key, a.Result())
		return err
	})
	if err != nil {
		return err
	}
	s.aggregator.Invalidate(ctx, key)
	return nil
}
