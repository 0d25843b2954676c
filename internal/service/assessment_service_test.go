package service

import (
	"context"
	"sync/atomic"
	"testing"

	"sel_rubric_backend/internal/model"
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/rubric"
	"sel_rubric_backend/internal/testutil"
	"sel_rubric_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db            *gorm.DB
	assessments   *AssessmentService
	distributions *DistributionService
	teachers      *TeacherService
	audit         *DistributionAuditService
	aggregator    *AggregatorService
	distRepo      *repository.CohortDistributionRepository
}

type submittedCounter map[string]int

func (c submittedCounter) IncSubmitted(testType string) { c[testType]++ }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	assessmentRepo := repository.NewAssessmentRepository(db)
	distRepo := repository.NewCohortDistributionRepository(db)
	profileRepo := repository.NewTeacherProfileRepository(db)

	agg := NewAggregatorService(distRepo, nil, nil, fastPolicy(5))
	return &fixture{
		db: db,
		assessments: NewAssessmentService(assessmentRepo, distRepo, profileRepo, agg,
			repository.NewTxRunner(db), AssessmentSettings{MaxBatchSize: 3}, nil),
		distributions: NewDistributionService(distRepo, nil),
		teachers:      NewTeacherService(profileRepo),
		audit:         NewDistributionAuditService(distRepo, assessmentRepo, agg, nil),
		aggregator:    agg,
		distRepo:      distRepo,
	}
}

func allAnswers(v string) []string {
	out := make([]string, rubric.QuestionCount)
	for i := range out {
		out[i] = v
	}
	return out
}

func submission(answers []string) SubmitAssessmentRequest {
	return SubmitAssessmentRequest{
		StudentName: "Asha",
		Answers:     answers,
		School:      "Sunrise Primary",
		Grade:       "3",
		Section:     "B",
		Zone:        "North",
	}
}

func TestAssessmentService_SubmitCountsStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	counter := submittedCounter{}
	f.assessments.metrics = counter

	a, err := f.assessments.Submit(ctx, "teacher-a", submission(allAnswers("3")))
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, util.TestTypePre, a.TestType)
	assert.Equal(t, "SEL", a.AssessmentName)
	assert.True(t, a.IsManualEntry)
	assert.InDelta(t, 4.0, a.OverallScore, 1e-9)
	assert.Equal(t, 1, counter[util.TestTypePre])

	d, err := f.distributions.Get(ctx, a.CohortKey())
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalStudents)
	assert.Equal(t, rubric.LevelCounts{Expert: 1}, d.OverallLevelDistribution.Data())

	_, err = f.assessments.Submit(ctx, "teacher-a", submission(allAnswers("0")))
	require.NoError(t, err)
	d, err = f.distributions.Get(ctx, a.CohortKey())
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalStudents)
	assert.Equal(t, 1, d.Version)
	assert.NoError(t, d.Distribution().Validate())
}

func TestAssessmentService_SubmitRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.assessments.Submit(ctx, "teacher-a", submission(append(allAnswers("1"), "2")))
	assert.ErrorIs(t, err, rubric.ErrTooManyAnswers)

	req := submission(allAnswers("1"))
	req.TestType = "MID"
	_, err = f.assessments.Submit(ctx, "teacher-a", req)
	assert.ErrorIs(t, err, util.ErrInvalidTestType)

	req = submission(allAnswers("1"))
	req.School = ""
	_, err = f.assessments.Submit(ctx, "teacher-a", req)
	assert.ErrorIs(t, err, util.ErrIncompleteCohort)

	list, err := f.distributions.List(ctx, repository.DistributionFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAssessmentService_CohortFallsBackToProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.teachers.UpsertProfile(ctx, "teacher-a", UpdateProfileRequest{
		School: "Hillside", Grade: "6", Section: "A", Zone: "East",
	})
	require.NoError(t, err)

	a, err := f.assessments.Submit(ctx, "teacher-a", SubmitAssessmentRequest{
		Answers:  allAnswers("2"),
		Section:  "C",
		TestType: "post",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CohortKey{
		School: "Hillside", Grade: "6", Section: "C", Zone: "East",
		AssessmentName: "SEL", TestType: util.TestTypePost,
	}, a.CohortKey())
}

func TestAssessmentService_PreAndPostAreSeparateCohorts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pre := submission(allAnswers("3"))
	post := submission(allAnswers("3"))
	post.TestType = "POST"
	_, err := f.assessments.Submit(ctx, "teacher-a", pre)
	require.NoError(t, err)
	_, err = f.assessments.Submit(ctx, "teacher-a", post)
	require.NoError(t, err)

	list, err := f.distributions.List(ctx, repository.DistributionFilter{School: "Sunrise Primary"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, d := range list {
		assert.Equal(t, 1, d.TotalStudents)
	}
}

func TestAssessmentService_UpdateMovesStudentBetweenBands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.assessments.Submit(ctx, "teacher-a", submission(allAnswers("0")))
	require.NoError(t, err)

	_, err = f.assessments.Update(ctx, "teacher-b", a.ID, UpdateAssessmentRequest{Answers: allAnswers("3")})
	assert.ErrorIs(t, err, util.ErrAssessmentNotFound)

	updated, err := f.assessments.Update(ctx, "teacher-a", a.ID, UpdateAssessmentRequest{Answers: allAnswers("3")})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, updated.OverallScore, 1e-9)

	d, err := f.distributions.Get(ctx, a.CohortKey())
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalStudents)
	assert.Equal(t, rubric.LevelCounts{Expert: 1}, d.OverallLevelDistribution.Data())
	assert.NoError(t, d.Distribution().Validate())
}

// rescoreOnce returns a callback that, the first time it sees a write to the
// assessments table, commits another editor's rescoring of id to answers of v
// inside the same connection, between the caller's read and its write.
func rescoreOnce(t *testing.T, f *fixture, id, v string) func(*gorm.DB) {
	t.Helper()
	answers, err := rubric.ParseAnswerSet(allAnswers(v))
	require.NoError(t, err)
	rescored := rubric.Score(answers)

	var fired atomic.Bool
	return func(tx *gorm.DB) {
		if tx.Statement.Table != "assessments" || !fired.CompareAndSwap(false, true) {
			return
		}
		ctx := tx.Statement.Context
		inner := tx.Session(&gorm.Session{NewDB: true})
		repo := repository.NewAssessmentRepository(inner)
		other, err := repo.FindByID(ctx, id)
		if err != nil {
			tx.AddError(err)
			return
		}
		old := other.Result()
		other.SetResults(answers, rescored)
		if err := repo.UpdateResults(ctx, other); err != nil {
			tx.AddError(err)
			return
		}
		if _, err := f.aggregator.WithStore(f.distRepo.WithTx(inner)).ReviseOnce(ctx, other.CohortKey(), old, rescored); err != nil {
			tx.AddError(err)
		}
	}
}

func TestAssessmentService_UpdateRetriesInterleavedEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.assessments.Submit(ctx, "teacher-a", submission(allAnswers("0")))
	require.NoError(t, err)
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").
		Register("test:rescore_once", rescoreOnce(t, f, a.ID, "1")))

	updated, err := f.assessments.Update(ctx, "teacher-a", a.ID, UpdateAssessmentRequest{Answers: allAnswers("3")})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, updated.OverallScore, 1e-9)
	assert.Equal(t, 1, updated.Version)

	// the beginner band is decremented once, never twice
	d, err := f.distributions.Get(ctx, a.CohortKey())
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalStudents)
	assert.Equal(t, rubric.LevelCounts{Expert: 1}, d.OverallLevelDistribution.Data())
	assert.NoError(t, d.Distribution().Validate())

	report, err := f.audit.Audit(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Violations)
}

func TestAssessmentService_DeleteRetriesInterleavedEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.assessments.Submit(ctx, "teacher-a", submission(allAnswers("0")))
	require.NoError(t, err)
	require.NoError(t, f.db.Callback().Delete().Before("gorm:delete").
		Register("test:rescore_once", rescoreOnce(t, f, a.ID, "1")))

	require.NoError(t, f.assessments.Delete(ctx, "teacher-a", a.ID))

	d, err := f.distributions.Get(ctx, a.CohortKey())
	require.NoError(t, err)
	assert.Equal(t, 0, d.TotalStudents)
	assert.Equal(t, rubric.LevelCounts{}, d.OverallLevelDistribution.Data())
	assert.NoError(t, d.Distribution().Validate())
}

func TestAssessmentService_DeleteRetractsStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.assessments.Submit(ctx, "teacher-a", submission(allAnswers("2")))
	require.NoError(t, err)
	_, err = f.assessments.Submit(ctx, "teacher-a", submission(allAnswers("3")))
	require.NoError(t, err)

	assert.ErrorIs(t, f.assessments.Delete(ctx, "teacher-b", a.ID), util.ErrAssessmentNotFound)
	require.NoError(t, f.assessments.Delete(ctx, "teacher-a", a.ID))
	assert.ErrorIs(t, f.assessments.Delete(ctx, "teacher-a", a.ID), util.ErrAssessmentNotFound)

	d, err := f.distributions.Get(ctx, a.CohortKey())
	require.NoError(t, err)
	assert.Equal(t, 1, d.TotalStudents)
	assert.Equal(t, rubric.LevelCounts{Expert: 1}, d.OverallLevelDistribution.Data())

	_, err = f.assessments.Get(ctx, "teacher-a", a.ID)
	assert.ErrorIs(t, err, util.ErrAssessmentNotFound)
}

func TestAssessmentService_FailedAggregationRollsBackAssessment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.assessments.Submit(ctx, "teacher-a", submission(allAnswers("3")))
	require.NoError(t, err)

	// corrupt the stored counters so the next write refuses to build on them
	broken := rubric.NewDistribution()
	broken.TotalStudents = 5
	stored, err := f.distRepo.Find(ctx, a.CohortKey())
	require.NoError(t, err)
	ok, err := f.distRepo.UpdateCounts(ctx, stored.ID, stored.Version, broken)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.assessments.Submit(ctx, "teacher-a", submission(allAnswers("1")))
	assert.ErrorIs(t, err, rubric.ErrInvariant)

	_, total, err := f.assessments.List(ctx, "teacher-a", repository.AssessmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestAssessmentService_SubmitBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.assessments.SubmitBatch(ctx, "teacher-a", nil)
	assert.ErrorIs(t, err, util.ErrEmptyBatch)

	tooMany := []SubmitAssessmentRequest{
		submission(allAnswers("1")), submission(allAnswers("1")),
		submission(allAnswers("1")), submission(allAnswers("1")),
	}
	_, err = f.assessments.SubmitBatch(ctx, "teacher-a", tooMany)
	assert.ErrorIs(t, err, util.ErrBatchTooLarge)

	bad := submission(append(allAnswers("2"), "2"))
	results, err := f.assessments.SubmitBatch(ctx, "teacher-a", []SubmitAssessmentRequest{
		submission(allAnswers("1")), bad, submission(allAnswers("3")),
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NotNil(t, results[0].Assessment)
	assert.NotEmpty(t, results[1].Error)
	assert.Nil(t, results[1].Assessment)
	assert.NotNil(t, results[2].Assessment)

	d, err := f.distributions.Get(ctx, results[0].Assessment.CohortKey())
	require.NoError(t, err)
	assert.Equal(t, 2, d.TotalStudents)
}

func TestAssessmentService_ListFiltersByTestType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	post := submission(allAnswers("2"))
	post.TestType = "POST"
	_, err := f.assessments.Submit(ctx, "teacher-a", submission(allAnswers("2")))
	require.NoError(t, err)
	_, err = f.assessments.Submit(ctx, "teacher-a", post)
	require.NoError(t, err)

	_, total, err := f.assessments.List(ctx, "teacher-a", repository.AssessmentFilter{TestType: "post"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, _, err = f.assessments.List(ctx, "teacher-a", repository.AssessmentFilter{TestType: "final"})
	assert.ErrorIs(t, err, util.ErrInvalidTestType)

	_, total, err = f.assessments.List(ctx, "teacher-b", repository.AssessmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestAssessmentService_Preview(t *testing.T) {
	f := newFixture(t)

	summary, err := f.assessments.Preview([]string{"3", "3", "", "2"})
	require.NoError(t, err)
	assert.Len(t, summary.Answers, rubric.QuestionCount)
	assert.Equal(t, rubric.Classify(summary.OverallScore), summary.OverallLevel)
	assert.Len(t, summary.SkillLevels, rubric.SkillCount)

	_, err = f.assessments.Preview(append(allAnswers("1"), "1"))
	assert.Error(t, err)
}

func TestNormalizeTestType(t *testing.T) {
	cases := map[string]string{"": "PRE", "pre": "PRE", " Post ": "POST", "PRE": "PRE"}
	for in, want := range cases {
		got, err := NormalizeTestType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := NormalizeTestType("baseline")
	assert.ErrorIs(t, err, util.ErrInvalidTestType)
}
