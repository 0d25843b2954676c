package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"sel_rubric_backend/internal/model"
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/util"
	"sel_rubric_backend/pkg/logger"

	"go.uber.org/zap"
)

// RubricUploadService stores photographed rubric sheets for later scanning.
type RubricUploadService struct {
	Repo     *repository.RubricUploadRepository
	storage  StorageProvider
	maxBytes int64
}

func NewRubricUploadService(repo *repository.RubricUploadRepository, storage StorageProvider, maxUploadMB int64) *RubricUploadService {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &RubricUploadService{Repo: repo, storage: storage, maxBytes: maxUploadMB << 20}
}

// Upload stores one image and records it as pending.
func (s *RubricUploadService) Upload(ctx context.Context, teacherID, filename string, size int64, file io.ReadSeeker) (*model.RubricUpload, error) {
	if size > s.maxBytes {
		return nil, util.ErrFileTooLarge
	}
	if !util.HasAllowedExtension(filename, util.AllowedImageExtensions) {
		return nil, util.ErrInvalidFileType
	}
	contentType, err := util.ValidateMimeType(file, []string{util.MimeImage})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", util.ErrInvalidFileType, contentType)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	key := fmt.Sprintf("rubrics/%s/%s%s", teacherID, model.GenerateUUID(), ext)
	url, err := s.storage.Upload(ctx, key, file, size, contentType)
	if err != nil {
		return nil, err
	}

	u := &model.RubricUpload{
		TeacherID:   teacherID,
		ObjectKey:   key,
		URL:         url,
		FileName:    filepath.Base(filename),
		ContentType: contentType,
		Size:        size,
		Status:      model.UploadStatusPending,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			logger.Log.Warn("Failed to remove orphaned rubric upload", zap.String("key", key), zap.Error(delErr))
		}
		return nil, err
	}
	return u, nil
}

func (s *RubricUploadService) List(ctx context.Context, teacherID string, page, limit int) ([]model.RubricUpload, int64, error) {
	return s.Repo.ListByTeacher(ctx, teacherID, page, limit)
}

func (s *RubricUploadService) Delete(ctx context.Context, teacherID, id string) error {
	u, err := s.Repo.FindOwned(ctx, teacherID, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return util.ErrUploadNotFound
		}
		return err
	}
	if err := s.Repo.Delete(ctx, u.ID); err != nil {
		return err
	}
	// 记录已删除，对象删除失败只留下孤儿文件
	if err := s.storage.Delete(ctx, u.ObjectKey); err != nil {
		logger.Log.Warn("Failed to remove orphaned rubric upload", zap.String("key", u.ObjectKey), zap.Error(err))
	}
	return nil
}
