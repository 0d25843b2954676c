package model

const (
	UploadStatusPending   = "pending"
	UploadStatusProcessed = "processed"
)

// RubricUpload is a photographed rubric sheet waiting to be scanned.
type RubricUpload struct {
	UUIDBase
	TeacherID   string `gorm:"index;type:varchar(36);not null" json:"teacherId"`
	ObjectKey   string `gorm:"size:255;not null" json:"objectKey"`
	URL         string `gorm:"size:512" json:"url"`
	FileName    string `gorm:"size:255" json:"fileName"`
	ContentType string `gorm:"size:64" json:"contentType"`
	Size        int64  `json:"size"`
	Status      string `gorm:"size:20;not null" json:"status"`
}

func (RubricUpload) TableName() string {
	return "rubric_uploads"
}
