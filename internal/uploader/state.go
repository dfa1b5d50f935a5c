package uploader

import "fmt"

// FailureKind 失败种类，决定 UI 是否建议重试
type FailureKind int

const (
	// FailureValidation 载荷本身有问题，自动重试无意义
	FailureValidation FailureKind = iota
	// FailureTransient 网络或后端暂时故障，重试大概率成功
	FailureTransient
)

func (k FailureKind) String() string {
	if k == FailureValidation {
		return "validation"
	}
	return "transient"
}

// Asset 客户端视角的已入库图片
type Asset struct {
	ID            uint   `json:"id" mapstructure:"id"`
	Title         string `json:"title" mapstructure:"title"`
	Src           string `json:"src" mapstructure:"src"`
	FullscreenURL string `json:"fullscreenUrl" mapstructure:"fullscreenUrl"`
}

// State 队列项状态，密封的和类型：
// Pending | Uploading | Uploaded | Duplicate | Failed
// 非法组合（如"重复"还带进度）在类型层面不可表示
type State interface {
	fmt.Stringer
	sealed()
}

// Pending 已入队，尚未尝试上传
type Pending struct{}

func (Pending) sealed()        {}
func (Pending) String() string { return "pending" }

// Uploading 字节在途，携带 0-100 进度
type Uploading struct {
	Progress int
}

func (Uploading) sealed()          {}
func (s Uploading) String() string { return fmt.Sprintf("uploading(%d%%)", s.Progress) }

// Uploaded 新资源创建成功
type Uploaded struct {
	Asset *Asset
}

func (Uploaded) sealed()        {}
func (Uploaded) String() string { return "uploaded" }

// Duplicate 去重命中，引用已存在的资源
type Duplicate struct {
	Asset *Asset
}

func (Duplicate) sealed()        {}
func (Duplicate) String() string { return "duplicate" }

// Failed 上传失败，仅显式重试可使其重新进入调度
type Failed struct {
	Kind    FailureKind
	Message string
}

func (Failed) sealed()          {}
func (s Failed) String() string { return fmt.Sprintf("failed(%s)", s.Kind) }
