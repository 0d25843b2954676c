package model

import (
	"sel_rubric_backend/internal/rubric"

	"gorm.io/datatypes"
)

// Assessment is one student's rubric submission.
type Assessment struct {
	UUIDBase
	TeacherID      string `gorm:"index;type:varchar(36);not null" json:"teacherId"`
	StudentName    string `gorm:"size:255" json:"studentName"`
	School         string `gorm:"size:96;index:idx_assessment_cohort" json:"school"`
	Grade          string `gorm:"size:96;index:idx_assessment_cohort" json:"grade"`
	Section        string `gorm:"size:96;index:idx_assessment_cohort" json:"section"`
	Zone           string `gorm:"size:96;index:idx_assessment_cohort" json:"zone"`
	AssessmentName string `gorm:"size:96;index:idx_assessment_cohort" json:"assessmentName"`
	TestType       string `gorm:"size:16;index:idx_assessment_cohort" json:"testType"`

	// Answers holds the encoded answer set, a JSON array of 11 strings.
	Answers       string                                       `gorm:"type:text;not null" json:"answers"`
	Scores        datatypes.JSONSlice[int]                     `json:"scores"`
	SkillScores   datatypes.JSONType[map[rubric.Skill]float64] `json:"skillScores"`
	OverallScore  float64                                      `json:"overallScore"`
	IsManualEntry bool                                         `json:"isManualEntry"`

	// Version is bumped on every rescoring. Rescoring and deletes only apply to the version that was read.
	Version int `gorm:"not null;default:0" json:"version"`
}

func (Assessment) TableName() string {
	return "assessments"
}

func (a *Assessment) CohortKey() CohortKey {
	return CohortKey{
		School:         a.School,
		Grade:          a.Grade,
		Section:        a.Section,
		Zone:           a.Zone,
		AssessmentName: a.AssessmentName,
		TestType:       a.TestType,
	}
}

func (a *Assessment) AnswerSet() (rubric.AnswerSet, error) {
	return rubric.DecodeAnswers(a.Answers)
}

// Result rebuilds the scored form from the stored columns.
func (a *Assessment) Result() rubric.Result {
	return rubric.Result{SkillScores: a.SkillScores.Data(), Overall: a.OverallScore}
}

// SetResults replaces answers, per-question scores, skill scores and overall score together.
func (a *Assessment) SetResults(answers rubric.AnswerSet, result rubric.Result) {
	a.Answers = rubric.EncodeAnswers(answers)
	a.Scores = datatypes.NewJSONSlice(answers.QuestionScores())
	a.SkillScores = datatypes.NewJSONType(result.SkillScores)
	a.OverallScore = result.Overall
}
