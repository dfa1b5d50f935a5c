package validator

import (
	"bytes"
	"image"
	"io"
	"net/http"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// allowedImageMimeTypes Allowed image types
var allowedImageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// IsImageBytes 检测给定的文件头字节是否为允许的图片类型
func IsImageBytes(header []byte) (bool, string) {
	mimeType := http.DetectContentType(header)
	if allowedImageMimeTypes[mimeType] {
		return true, mimeType
	}
	return false, mimeType
}

// IsImage Verify if the file content is an allowed image type.
func IsImage(file io.ReadSeeker) (bool, string, error) {
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return false, "", err
	}

	if _, err = file.Seek(0, io.SeekStart); err != nil {
		return false, "", err
	}

	ok, mimeType := IsImageBytes(buffer[:n])
	return ok, mimeType, nil
}

// ProbeDimensions 解码图片头获取像素尺寸，解码失败返回 0,0
func ProbeDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
