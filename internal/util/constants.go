package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// 文件上传相关常量
const (
	MimeImage       = "image/"
	MimeOctetStream = "application/octet-stream"
	MimeXLSX        = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MaxBadgeImage   = 2 << 20
)

var (
	AllowedImageExtensions = []string{".png", ".jpg", ".jpeg", ".svg", ".webp"}
)
