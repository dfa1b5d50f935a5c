package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// RequestError 带失败种类的请求错误
type RequestError struct {
	Kind    FailureKind
	Message string
}

func (e *RequestError) Error() string { return e.Message }

// Client 摄取端点客户端接口
type Client interface {
	// Ingest 上传一份载荷，返回资源与是否去重命中
	Ingest(ctx context.Context, hash string, payload []byte, filename, collection string, progress func(int)) (*Asset, bool, error)

	// FetchAsset 获取已有资源的表示
	FetchAsset(ctx context.Context, id uint) (*Asset, error)
}

// HTTPClient 基于 HTTP 的摄取客户端
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient 创建客户端，baseURL 形如 http://host:port
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// 上传大图可能很慢，超时交给调用方的 context 控制
			Timeout: 0,
		},
	}
}

// envelope 服务端统一响应包装
type envelope struct {
	Status string      `json:"status"`
	Msg    string      `json:"msg"`
	Code   string      `json:"code"`
	Data   interface{} `json:"data"`
}

// ingestData 摄取响应数据
type ingestData struct {
	ID            uint   `mapstructure:"id"`
	Title         string `mapstructure:"title"`
	Src           string `mapstructure:"src"`
	FullscreenURL string `mapstructure:"fullscreenUrl"`
	IsDuplicate   bool   `mapstructure:"isDuplicate"`
}

// Ingest 上传载荷到 POST /api/pictures/:hash/:filename
func (c *HTTPClient) Ingest(ctx context.Context, hash string, payload []byte, filename, collection string, progress func(int)) (*Asset, bool, error) {
	endpoint := fmt.Sprintf("%s/api/pictures/%s/%s", c.baseURL, url.PathEscape(hash), url.PathEscape(filename))
	if collection != "" {
		endpoint += "?collection=" + url.QueryEscape(collection)
	}

	body := newProgressReader(bytes.NewReader(payload), int64(len(payload)), progress)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, false, &RequestError{Kind: FailureTransient, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(payload))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, &RequestError{Kind: FailureTransient, Message: "upload failed: " + err.Error()}
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return nil, false, &RequestError{Kind: FailureTransient, Message: "malformed server response"}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false, classifyFailure(resp.StatusCode, env)
	}

	var data ingestData
	if err := mapstructure.Decode(env.Data, &data); err != nil {
		return nil, false, &RequestError{Kind: FailureTransient, Message: "malformed ingest response"}
	}

	asset := &Asset{
		ID:            data.ID,
		Title:         data.Title,
		Src:           data.Src,
		FullscreenURL: data.FullscreenURL,
	}
	return asset, data.IsDuplicate, nil
}

// FetchAsset 获取 GET /api/pictures/:id
func (c *HTTPClient) FetchAsset(ctx context.Context, id uint) (*Asset, error) {
	endpoint := fmt.Sprintf("%s/api/pictures/%d", c.baseURL, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &RequestError{Kind: FailureTransient, Message: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RequestError{Kind: FailureTransient, Message: "fetch failed: " + err.Error()}
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return nil, &RequestError{Kind: FailureTransient, Message: "malformed server response"}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyFailure(resp.StatusCode, env)
	}

	var asset Asset
	if err := mapstructure.Decode(env.Data, &asset); err != nil {
		return nil, &RequestError{Kind: FailureTransient, Message: "malformed picture response"}
	}
	return &asset, nil
}

func decodeEnvelope(r io.Reader) (*envelope, error) {
	var env envelope
	if err := json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(&env); err != nil {
		return nil, err
	}
	return &env, nil
}

// classifyFailure 按响应码与 code 字段区分校验失败与暂时性失败
func classifyFailure(status int, env *envelope) *RequestError {
	msg := env.Msg
	if msg == "" {
		msg = http.StatusText(status)
	}

	kind := FailureTransient
	switch {
	case env.Code == "validation":
		kind = FailureValidation
	case env.Code == "transient":
		kind = FailureTransient
	case status >= 400 && status < 500 && status != http.StatusTooManyRequests:
		kind = FailureValidation
	}

	return &RequestError{Kind: kind, Message: msg}
}

// progressReader 包装上传体，按读取字节数回报百分比
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress func(int)
}

func newProgressReader(r io.Reader, total int64, progress func(int)) *progressReader {
	return &progressReader{r: r, total: total, progress: progress}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 && p.total > 0 && p.progress != nil {
		p.read += int64(n)
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		p.progress(pct)
	}
	return n, err
}
