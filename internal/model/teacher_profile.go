package model

import (
	"time"

	"gorm.io/datatypes"
)

// TeacherProfile holds classroom details collected at sign-in.
// School, grade, section and zone default the cohort of new assessments.
type TeacherProfile struct {
	UUIDBase
	TeacherID             string                      `gorm:"uniqueIndex;type:varchar(36);not null" json:"teacherId"`
	School                string                      `gorm:"size:96" json:"school"`
	Grade                 string                      `gorm:"size:96" json:"grade"`
	Section               string                      `gorm:"size:96" json:"section"`
	Zone                  string                      `gorm:"size:96" json:"zone"`
	Gender                string                      `gorm:"size:32" json:"gender,omitempty"`
	Age                   int                         `json:"age,omitempty"`
	TeachingExperience    int                         `json:"teachingExperience,omitempty"`
	Education             string                      `gorm:"size:128" json:"education,omitempty"`
	SELTraining           string                      `gorm:"column:sel_training;size:128" json:"selTraining,omitempty"`
	MultilingualClassroom bool                        `json:"multilingualClassroom"`
	ClassSize             int                         `json:"classSize,omitempty"`
	ClassroomResources    datatypes.JSONSlice[string] `json:"classroomResources,omitempty"`
	ResourcesOther        string                      `gorm:"size:255" json:"resourcesOther,omitempty"`
	ResourcesSufficiency  string                      `gorm:"size:64" json:"resourcesSufficiency,omitempty"`
	ConsentedAt           *time.Time                  `json:"consentedAt,omitempty"`
}

func (TeacherProfile) TableName() string {
	return "teacher_profiles"
}
