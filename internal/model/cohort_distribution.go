package model

import (
	"strings"

	"sel_rubric_backend/internal/rubric"

	"gorm.io/datatypes"
)

// CohortKey identifies the population a distribution is tracked for. Matching is exact.
type CohortKey struct {
	School         string `json:"school" form:"school"`
	Grade          string `json:"grade" form:"grade"`
	Section        string `json:"section" form:"section"`
	Zone           string `json:"zone" form:"zone"`
	AssessmentName string `json:"assessmentName" form:"assessmentName"`
	TestType       string `json:"testType" form:"testType"`
}

func (k CohortKey) Normalize() CohortKey {
	return CohortKey{
		School:         strings.TrimSpace(k.School),
		Grade:          strings.TrimSpace(k.Grade),
		Section:        strings.TrimSpace(k.Section),
		Zone:           strings.TrimSpace(k.Zone),
		AssessmentName: strings.TrimSpace(k.AssessmentName),
		TestType:       strings.TrimSpace(k.TestType),
	}
}

func (k CohortKey) String() string {
	return strings.Join([]string{k.School, k.Grade, k.Section, k.Zone, k.AssessmentName, k.TestType}, "|")
}

// CohortDistribution is the persisted level histogram of one cohort.
// Version is bumped by every write and guards compare-and-swap updates.
type CohortDistribution struct {
	UUIDBase
	School         string `gorm:"size:96;not null;uniqueIndex:idx_cohort_key" json:"school"`
	Grade          string `gorm:"size:96;not null;uniqueIndex:idx_cohort_key" json:"grade"`
	Section        string `gorm:"size:96;not null;uniqueIndex:idx_cohort_key" json:"section"`
	Zone           string `gorm:"size:96;not null;uniqueIndex:idx_cohort_key" json:"zone"`
	AssessmentName string `gorm:"size:96;not null;uniqueIndex:idx_cohort_key" json:"assessmentName"`
	TestType       string `gorm:"size:16;not null;uniqueIndex:idx_cohort_key" json:"testType"`

	TotalStudents              int                                                     `gorm:"not null" json:"total_students"`
	OverallLevelDistribution   datatypes.JSONType[rubric.LevelCounts]                  `json:"overall_level_distribution"`
	CategoryLevelDistributions datatypes.JSONType[map[rubric.Skill]rubric.LevelCounts] `json:"category_level_distributions"`
	Version                    int                                                     `gorm:"not null" json:"version"`
}

func (CohortDistribution) TableName() string {
	return "cohort_distributions"
}

func NewCohortDistribution(key CohortKey, d rubric.Distribution) *CohortDistribution {
	cd := &CohortDistribution{
		School:         key.School,
		Grade:          key.Grade,
		Section:        key.Section,
		Zone:           key.Zone,
		AssessmentName: key.AssessmentName,
		TestType:       key.TestType,
	}
	cd.SetDistribution(d)
	return cd
}

func (d *CohortDistribution) Key() CohortKey {
	return CohortKey{
		School:         d.School,
		Grade:          d.Grade,
		Section:        d.Section,
		Zone:           d.Zone,
		AssessmentName: d.AssessmentName,
		TestType:       d.TestType,
	}
}

func (d *CohortDistribution) Distribution() rubric.Distribution {
	return rubric.Distribution{
		TotalStudents: d.TotalStudents,
		Overall:       d.OverallLevelDistribution.Data(),
		Categories:    d.CategoryLevelDistributions.Data(),
	}.Clone()
}

func (d *CohortDistribution) SetDistribution(dist rubric.Distribution) {
	dist = dist.Clone()
	d.TotalStudents = dist.TotalStudents
	d.OverallLevelDistribution = datatypes.NewJSONType(dist.Overall)
	d.CategoryLevelDistributions = datatypes.NewJSONType(dist.Categories)
}
