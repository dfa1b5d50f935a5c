package uploader

// EventType 队列事件类型
type EventType int

const (
	// EventItemAppended 新项加入队列
	EventItemAppended EventType = iota
	// EventItemStateChanged 某项状态（含进度）变化
	EventItemStateChanged
	// EventQueueIdle 队列中没有可调度的项
	EventQueueIdle
)

// Event 进程内队列通知，用于 UI 绑定
type Event struct {
	Type  EventType
	Index int
	State State
}

// Listener 事件回调，在队列自身的调度循环内同步触发，
// 回调内不可再调用队列的阻塞方法
type Listener func(Event)
