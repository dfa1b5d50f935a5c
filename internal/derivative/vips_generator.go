package derivative

import (
	"context"
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
	"golang.org/x/sync/errgroup"
)

var vipsOnce sync.Once

// VipsGenerator 基于 libvips 的派生图生成器
type VipsGenerator struct {
	thumbWidth  int
	detailWidth int
}

// NewVipsGenerator 创建生成器，宽度为 0 时使用默认值
func NewVipsGenerator(thumbWidth, detailWidth int) *VipsGenerator {
	if thumbWidth <= 0 {
		thumbWidth = 320
	}
	if detailWidth <= 0 {
		detailWidth = 1600
	}

	vipsOnce.Do(func() {
		vips.LoggingSettings(nil, vips.LogLevelWarning)
		vips.Startup(nil)
	})

	return &VipsGenerator{
		thumbWidth:  thumbWidth,
		detailWidth: detailWidth,
	}
}

// Generate 解码图片并产出缩略图/大图与元数据
// 解码失败意味着载荷损坏或类型不受支持，由调用方归为校验错误
func (g *VipsGenerator) Generate(ctx context.Context, data []byte) (*Result, error) {
	probe, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	width := probe.Width()
	height := probe.Height()
	probe.Close()

	result := &Result{
		Width:  width,
		Height: height,
		Meta:   extractCaptureMeta(data),
	}

	// 两个渲染版本相互独立，各自解码后并行生成
	eg, _ := errgroup.WithContext(ctx)

	eg.Go(func() error {
		thumbData, err := g.scaleToWebp(data, g.thumbWidth)
		if err != nil {
			return fmt.Errorf("thumbnail rendition: %w", err)
		}
		result.ThumbData = thumbData
		return nil
	})

	eg.Go(func() error {
		detailData, err := g.scaleToWebp(data, g.detailWidth)
		if err != nil {
			return fmt.Errorf("detail rendition: %w", err)
		}
		result.DetailData = detailData
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

// scaleToWebp 等比缩放到目标宽度并导出 WebP；原图更小时不放大
func (g *VipsGenerator) scaleToWebp(data []byte, targetWidth int) ([]byte, error) {
	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	defer img.Close()

	width := img.Width()
	height := img.Height()

	if width > targetWidth {
		targetHeight := height * targetWidth / width
		if err := img.Thumbnail(targetWidth, targetHeight, vips.InterestingCentre); err != nil {
			return nil, fmt.Errorf("failed to thumbnail image: %w", err)
		}
	}

	webpBytes, _, err := img.ExportWebp(&vips.WebpExportParams{
		Quality:  85,
		Lossless: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export webp: %w", err)
	}

	return webpBytes, nil
}
