package util

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// SniffMimeType 读取文件头判断 MIME 类型，返回已读取的内容以便拼回原始流
// allowedTypes: 允许的 MIME 前缀或完整类型，如 "image/"
func SniffMimeType(reader io.Reader, allowedTypes []string) (string, io.Reader, error) {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(reader, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", nil, err
	}
	head := buffer[:n]
	rest := io.MultiReader(strings.NewReader(string(head)), reader)

	mimeType := http.DetectContentType(head)
	// DetectContentType 不识别 svg
	if strings.Contains(string(head), "<svg") {
		mimeType = "image/svg+xml"
	}

	for _, allowed := range allowedTypes {
		if strings.HasPrefix(mimeType, allowed) || mimeType == allowed {
			return mimeType, rest, nil
		}
	}

	return mimeType, nil, fmt.Errorf("%w: invalid file type %s", ErrInvalidInput, mimeType)
}

// HasAllowedExtension 扩展名大小写不敏感
func HasAllowedExtension(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
