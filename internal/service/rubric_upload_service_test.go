package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"sel_rubric_backend/internal/config"
	"sel_rubric_backend/internal/model"
	"sel_rubric_backend/internal/repository"
	"sel_rubric_backend/internal/testutil"
	"sel_rubric_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type memoryStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	deleteErr error
}

func (m *memoryStorage) Upload(_ context.Context, filename string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[filename] = data
	return m.GetURL(filename), nil
}

func (m *memoryStorage) Delete(_ context.Context, filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.objects, filename)
	return nil
}

func (m *memoryStorage) GetURL(filename string) string {
	return "https://cdn.test/" + filename
}

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func TestRubricUploadService_Upload(t *testing.T) {
	ctx := context.Background()
	store := &memoryStorage{objects: map[string][]byte{}}
	svc := NewRubricUploadService(repository.NewRubricUploadRepository(testutil.NewDB(t)), store, 1)

	u, err := svc.Upload(ctx, "teacher-a", "sheet.PNG", int64(len(pngHeader)), bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Equal(t, model.UploadStatusPending, u.Status)
	assert.Equal(t, "image/png", u.ContentType)
	assert.True(t, strings.HasPrefix(u.ObjectKey, "rubrics/teacher-a/"))
	assert.True(t, strings.HasSuffix(u.ObjectKey, ".png"))
	assert.Equal(t, pngHeader, store.objects[u.ObjectKey])

	list, total, err := svc.List(ctx, "teacher-a", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	assert.ErrorIs(t, svc.Delete(ctx, "teacher-b", u.ID), util.ErrUploadNotFound)
	require.NoError(t, svc.Delete(ctx, "teacher-a", u.ID))
	assert.Empty(t, store.objects)
}

func TestRubricUploadService_DeleteRemovesRecordBeforeObject(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	store := &memoryStorage{objects: map[string][]byte{}}
	svc := NewRubricUploadService(repository.NewRubricUploadRepository(db), store, 1)

	kept, err := svc.Upload(ctx, "teacher-a", "kept.png", int64(len(pngHeader)), bytes.NewReader(pngHeader))
	require.NoError(t, err)

	// a failed row delete leaves the object in place
	boom := errors.New("db gone")
	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register("test:fail_delete", func(tx *gorm.DB) {
		tx.AddError(boom)
	}))
	assert.ErrorIs(t, svc.Delete(ctx, "teacher-a", kept.ID), boom)
	assert.Contains(t, store.objects, kept.ObjectKey)
	require.NoError(t, db.Callback().Delete().Remove("test:fail_delete"))

	// a failed object delete still removes the record
	store.deleteErr = errors.New("bucket unreachable")
	require.NoError(t, svc.Delete(ctx, "teacher-a", kept.ID))
	_, total, err := svc.List(ctx, "teacher-a", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Contains(t, store.objects, kept.ObjectKey)
}

func TestRubricUploadService_Rejects(t *testing.T) {
	ctx := context.Background()
	store := &memoryStorage{objects: map[string][]byte{}}
	svc := NewRubricUploadService(repository.NewRubricUploadRepository(testutil.NewDB(t)), store, 1)

	_, err := svc.Upload(ctx, "teacher-a", "sheet.png", 2<<20, bytes.NewReader(pngHeader))
	assert.ErrorIs(t, err, util.ErrFileTooLarge)

	_, err = svc.Upload(ctx, "teacher-a", "notes.txt", 5, strings.NewReader("hello"))
	assert.ErrorIs(t, err, util.ErrInvalidFileType)

	// an image extension does not make text an image
	_, err = svc.Upload(ctx, "teacher-a", "fake.jpg", 5, strings.NewReader("hello"))
	assert.True(t, errors.Is(err, util.ErrInvalidFileType))
	assert.Empty(t, store.objects)
}

func TestLocalStorageProvider(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	p := &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: dir, PublicBaseURL: "http://localhost:8080/"}}

	url, err := p.Upload(ctx, "rubrics/t/a.png", bytes.NewReader(pngHeader), int64(len(pngHeader)), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/rubrics/t/a.png", url)

	require.NoError(t, p.Delete(ctx, "rubrics/t/a.png"))
	require.NoError(t, p.Delete(ctx, "rubrics/t/a.png"))

	_, err = p.Upload(ctx, "../escape.png", bytes.NewReader(pngHeader), 1, "image/png")
	assert.Error(t, err)
}
