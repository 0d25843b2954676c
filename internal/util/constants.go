package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

const (
	TestTypePre  = "PRE"
	TestTypePost = "POST"
)

const (
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// 文件上传相关常量
const (
	MimeImage = "image/"
)

var (
	AllowedImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
