package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sel_rubric_backend/internal/config"
	"sel_rubric_backend/internal/util"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StorageProvider 定义通用存储接口
type StorageProvider interface {
	Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, filename string) error
	GetURL(filename string) string
}

// LocalStorageProvider 本地存储实现
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) path(filename string) (string, error) {
	root, err := filepath.Abs(p.Config.LocalPath)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(root, filepath.FromSlash(filename))
	if !strings.HasPrefix(dst, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("object key %q escapes storage root", filename)
	}
	return dst, nil
}

func (p *LocalStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	dst, err := p.path(filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		os.Remove(dst)
		return "", err
	}

	return p.GetURL(filename), nil
}

func (p *LocalStorageProvider) Delete(ctx context.Context, filename string) error {
	dst, err := p.path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (p *LocalStorageProvider) GetURL(filename string) string {
	return strings.TrimRight(p.Config.PublicBaseURL, "/") + "/uploads/" + filename
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(ctx context.Context, cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

func (p *MinioStorageProvider) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, filename, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return p.GetURL(filename), nil
}

func (p *MinioStorageProvider) Delete(ctx context.Context, filename string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, filename, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetURL(filename string) string {
	if p.Config.PublicBaseURL != "" {
		return strings.TrimRight(p.Config.PublicBaseURL, "/") + "/" + p.Config.MinioBucket + "/" + filename
	}
	return "/" + p.Config.MinioBucket + "/" + filename
}

// Ping checks that the bucket is reachable.
func (p *MinioStorageProvider) Ping(ctx context.Context) error {
	_, err := p.Client.BucketExists(ctx, p.Config.MinioBucket)
	return err
}

// StorageService 存储服务
type StorageService struct {
	Provider StorageProvider
}

// NewStorageService picks the provider for storage.type. A MinIO endpoint that
// cannot be reached is a startup error rather than a silent fallback to disk.
func NewStorageService(ctx context.Context, cfg *config.StorageConfig) (*StorageService, error) {
	switch cfg.Type {
	case util.StorageMinio:
		p, err := NewMinioStorageProvider(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("init minio storage: %w", err)
		}
		return &StorageService{Provider: p}, nil
	default:
		return &StorageService{Provider: &LocalStorageProvider{Config: cfg}}, nil
	}
}

func (s *StorageService) Upload(ctx context.Context, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	return s.Provider.Upload(ctx, filename, reader, size, contentType)
}

func (s *StorageService) Delete(ctx context.Context, filename string) error {
	return s.Provider.Delete(ctx, filename)
}

func (s *StorageService) GetURL(filename string) string {
	return s.Provider.GetURL(filename)
}

func (s *StorageService) Ping(ctx context.Context) error {
	if p, ok := s.Provider.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
