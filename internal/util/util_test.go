package util

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageParams(t *testing.T) {
	tests := []struct {
		page, limit         string
		wantPage, wantLimit int
	}{
		{"", "", 1, DefaultPageSize},
		{"3", "5", 3, 5},
		{"-1", "abc", 1, DefaultPageSize},
		{"2", "5000", 2, MaxPageSize},
	}
	for _, tt := range tests {
		page, limit := PageParams(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, page, tt.page)
		assert.Equal(t, tt.wantLimit, limit, tt.limit)
	}
}

func TestValidateMimeType(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	mime, err := ValidateMimeType(bytes.NewReader(png), []string{MimeImage})
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)

	_, err = ValidateMimeType(strings.NewReader("plain text"), []string{MimeImage})
	assert.Error(t, err)

	assert.True(t, HasAllowedExtension("SHEET.JPG", AllowedImageExtensions))
	assert.False(t, HasAllowedExtension("sheet.pdf", AllowedImageExtensions))
}

func TestJWTRoundTrip(t *testing.T) {
	tok, err := GenerateJWT("teacher-9", RoleTeacher, "t@example.org", "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "teacher-9", claims.TeacherID)
	assert.Equal(t, RoleTeacher, claims.Role)

	_, err = ParseJWT(tok, "other")
	assert.Error(t, err)

	anonymous, err := GenerateJWT("", RoleTeacher, "", "s3cret", time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(anonymous, "s3cret")
	assert.Error(t, err)
}
