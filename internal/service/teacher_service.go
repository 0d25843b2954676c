package service

import (
	"context"
	"strings"
	"time"

	"sel_rubric_backend/internal/model"
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/util"

	"gorm.io/datatypes"
)

type UpdateProfileRequest struct {
	School                string   `json:"school" binding:"required"`
	Grade                 string   `json:"grade" binding:"required"`
	Section               string   `json:"section"`
	Zone                  string   `json:"zone"`
	Gender                string   `json:"gender"`
	Age                   int      `json:"age" binding:"gte=0,lte=120"`
	TeachingExperience    int      `json:"teachingExperience" binding:"gte=0,lte=80"`
	Education             string   `json:"education"`
	SELTraining           string   `json:"selTraining"`
	MultilingualClassroom bool     `json:"multilingualClassroom"`
	ClassSize             int      `json:"classSize" binding:"gte=0,lte=1000"`
	ClassroomResources    []string `json:"classroomResources"`
	ResourcesOther        string   `json:"resourcesOther"`
	ResourcesSufficiency  string   `json:"resourcesSufficiency"`
}

type TeacherService struct {
	Repo *repository.TeacherProfileRepository
	now  func() time.Time
}

func NewTeacherService(repo *repository.TeacherProfileRepository) *TeacherService {
	return &TeacherService{Repo: repo, now: time.Now}
}

func (s *TeacherService) GetProfile(ctx context.Context, teacherID string) (*model.TeacherProfile, error) {
	p, err := s.Repo.FindByTeacherID(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, util.ErrProfileNotFound
	}
	return p, nil
}

// UpsertProfile replaces the teacher's classroom details. Consent is kept.
func (s *TeacherService) UpsertProfile(ctx context.Context, teacherID string, req UpdateProfileRequest) (*model.TeacherProfile, error) {
	p, err := s.Repo.FindByTeacherID(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &model.TeacherProfile{TeacherID: teacherID}
	}

	p.School = strings.TrimSpace(req.School)
	p.Grade = strings.TrimSpace(req.Grade)
	p.Section = strings.TrimSpace(req.Section)
	p.Zone = strings.TrimSpace(req.Zone)
	p.Gender = strings.TrimSpace(req.Gender)
	p.Age = req.Age
	p.TeachingExperience = req.TeachingExperience
	p.Education = strings.TrimSpace(req.Education)
	p.SELTraining = strings.TrimSpace(req.SELTraining)
	p.MultilingualClassroom = req.MultilingualClassroom
	p.ClassSize = req.ClassSize
	p.ClassroomResources = datatypes.NewJSONSlice(cleanList(req.ClassroomResources))
	p.ResourcesOther = strings.TrimSpace(req.ResourcesOther)
	p.ResourcesSufficiency = strings.TrimSpace(req.ResourcesSufficiency)

	if err := s.Repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RecordConsent stamps the first time the teacher accepted the data-use terms.
func (s *TeacherService) RecordConsent(ctx context.Context, teacherID string) (*model.TeacherProfile, error) {
	p, err := s.Repo.FindByTeacherID(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p = &model.TeacherProfile{TeacherID: teacherID}
	}
	if p.ConsentedAt != nil {
		return p, nil
	}
	now := s.now()
	p.ConsentedAt = &now
	if err := s.Repo.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
