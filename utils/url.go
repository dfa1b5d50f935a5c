package utils

import "fmt"

// RenditionLinks 一张图片三种渲染版本的访问链接
type RenditionLinks struct {
	Original string `json:"original"`
	Thumb    string `json:"thumb"`
	Detail   string `json:"detail"`
}

// BuildRenditionLinks 根据标识符构造公开访问链接
func BuildRenditionLinks(baseURL, identifier string) RenditionLinks {
	return RenditionLinks{
		Original: fmt.Sprintf("%s/pictures/raw/%s", baseURL, identifier),
		Thumb:    fmt.Sprintf("%s/pictures/thumb/%s", baseURL, identifier),
		Detail:   fmt.Sprintf("%s/pictures/detail/%s", baseURL, identifier),
	}
}
