package uploader

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/aurelle/picflow/utils/pool"
)

// HashPayload 流式计算载荷的 SHA-256 内容哈希
// 哈希覆盖将要存储的原始字节，改名重传同一文件也会命中去重
func HashPayload(r io.Reader) (string, error) {
	hasher := sha256.New()

	buf := pool.SharedBufferPool.Get().([]byte)
	defer pool.SharedBufferPool.Put(buf)

	if _, err := io.CopyBuffer(hasher, r, buf); err != nil {
		return "", fmt.Errorf("failed to read payload: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
