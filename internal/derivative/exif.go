package derivative

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// extractCaptureMeta 读取 EXIF 拍摄元数据
// 很多图片没有 EXIF 或字段不全，任何解析失败都只留空字段
func extractCaptureMeta(data []byte) CaptureMeta {
	var meta CaptureMeta

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return meta
	}

	if taken, err := x.DateTime(); err == nil {
		meta.TakenAt = &taken
	}

	if tag, err := x.Get(exif.Model); err == nil {
		if model, err := tag.StringVal(); err == nil {
			meta.Camera = model
		}
	}
	if meta.Camera == "" {
		if tag, err := x.Get(exif.Make); err == nil {
			if maker, err := tag.StringVal(); err == nil {
				meta.Camera = maker
			}
		}
	}

	if tag, err := x.Get(exif.LensModel); err == nil {
		if lens, err := tag.StringVal(); err == nil {
			meta.Lens = lens
		}
	}

	if lat, long, err := x.LatLong(); err == nil {
		meta.Latitude = &lat
		meta.Longitude = &long
	}

	return meta
}
