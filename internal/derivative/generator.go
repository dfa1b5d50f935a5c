package derivative

import (
	"context"
	"time"
)

// CaptureMeta 图片内嵌的拍摄元数据，字段缺失时为零值/空指针
type CaptureMeta struct {
	TakenAt   *time.Time
	Camera    string
	Lens      string
	Latitude  *float64
	Longitude *float64
}

// Result 派生图生成结果
// 原图字节不在此处：内容哈希覆盖的是上传的原始字节，由摄取服务原样存储
type Result struct {
	Width  int
	Height int

	ThumbData  []byte
	DetailData []byte

	Meta CaptureMeta
}

// Generator 派生图生成器接口
// 给定原始图片字节，产出缩略图/大图渲染版本、内在尺寸与拍摄元数据
type Generator interface {
	Generate(ctx context.Context, data []byte) (*Result, error)
}
