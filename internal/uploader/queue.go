package uploader

import (
	"bytes"
	"context"
	"errors"
	"sync"
)

// progressNotifyStep 进度通知合并粒度（百分点）
const progressNotifyStep = 5

// Options 队列配置
type Options struct {
	// Collection 本队列上传的目标集合名，可为空
	Collection string
	// Listener 事件回调，可为 nil
	Listener Listener
}

// ItemSnapshot 队列项的一致性快照
type ItemSnapshot struct {
	Index    int
	Filename string
	State    State
}

// Queue 顺序上传队列
//
// 所有状态都由单个调度循环 goroutine 持有，外部操作（入队、重试、快照）
// 以命令形式投递进循环，任意时刻最多一个项处于 Uploading。
// 一个队列实例对应一个 UI 会话，彼此独立，互不共享已见资源缓存。
type Queue struct {
	client     Client
	collection string
	listener   Listener

	cmds   chan command
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// 以下字段仅调度循环访问
	items         []*item
	active        int
	lastCompleted int
	known         map[uint]*Asset
	notified      map[int]int

	mu      sync.Mutex
	lastErr string
}

// item 队列项，payload 在上传成功后释放
type item struct {
	filename string
	payload  []byte
	state    State
}

type command interface{ cmd() }

type enqueueCmd struct {
	filename string
	payload  []byte
	reply    chan int
}

type retryCmd struct{ index int }

type progressCmd struct {
	index int
	pct   int
}

type resolvedCmd struct {
	index       int
	asset       *Asset
	isDuplicate bool
}

type fetchedCmd struct {
	index int
	asset *Asset
}

type failedCmd struct {
	index int
	kind  FailureKind
	msg   string
}

type snapshotCmd struct {
	reply chan []ItemSnapshot
}

func (enqueueCmd) cmd()  {}
func (retryCmd) cmd()    {}
func (progressCmd) cmd() {}
func (resolvedCmd) cmd() {}
func (fetchedCmd) cmd()  {}
func (failedCmd) cmd()   {}
func (snapshotCmd) cmd() {}

// New 创建并启动上传队列
func New(client Client, opts Options) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		client:        client,
		collection:    opts.Collection,
		listener:      opts.Listener,
		cmds:          make(chan command, 64),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
		active:        -1,
		lastCompleted: -1,
		known:         make(map[uint]*Asset),
		notified:      make(map[int]int),
	}
	go q.run()
	return q
}

// Enqueue 追加一个待上传项，返回其队列位置
// 队列空闲时立刻开始上传，忙碌时按 FIFO 轮到为止
func (q *Queue) Enqueue(filename string, payload []byte) (int, error) {
	reply := make(chan int, 1)
	if !q.post(enqueueCmd{filename: filename, payload: payload, reply: reply}) {
		return -1, errors.New("queue closed")
	}
	select {
	case idx := <-reply:
		return idx, nil
	case <-q.ctx.Done():
		return -1, errors.New("queue closed")
	}
}

// Retry 将一个失败项重新放回调度，不影响其他项
func (q *Queue) Retry(index int) {
	q.post(retryCmd{index: index})
}

// Items 获取所有项的快照
func (q *Queue) Items() []ItemSnapshot {
	reply := make(chan []ItemSnapshot, 1)
	if !q.post(snapshotCmd{reply: reply}) {
		return nil
	}
	select {
	case snap := <-reply:
		return snap
	case <-q.ctx.Done():
		return nil
	}
}

// LastError 最近一次失败的提示信息（后者覆盖前者）
func (q *Queue) LastError() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastErr
}

// Close 关闭队列并放弃在途上传
func (q *Queue) Close() {
	q.cancel()
	<-q.done
}

func (q *Queue) post(c command) bool {
	select {
	case q.cmds <- c:
		return true
	case <-q.ctx.Done():
		return false
	}
}

// run 调度循环，队列全部状态的唯一属主
func (q *Queue) run() {
	defer close(q.done)

	for {
		select {
		case <-q.ctx.Done():
			return
		case c := <-q.cmds:
			q.handle(c)
		}
	}
}

func (q *Queue) handle(c command) {
	switch c := c.(type) {
	case enqueueCmd:
		idx := len(q.items)
		q.items = append(q.items, &item{
			filename: c.filename,
			payload:  c.payload,
			state:    Pending{},
		})
		c.reply <- idx
		q.emit(Event{Type: EventItemAppended, Index: idx, State: Pending{}})
		if q.active == -1 {
			q.advance(q.lastCompleted)
		}

	case retryCmd:
		if c.index < 0 || c.index >= len(q.items) {
			return
		}
		it := q.items[c.index]
		if _, failed := it.state.(Failed); !failed {
			return
		}
		it.state = Pending{}
		q.emit(Event{Type: EventItemStateChanged, Index: c.index, State: Pending{}})
		if q.active == -1 {
			q.advance(q.lastCompleted)
		}

	case progressCmd:
		if c.index != q.active {
			return
		}
		it := q.items[c.index]
		current, ok := it.state.(Uploading)
		if !ok {
			return
		}

		pct := c.pct
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		// 进度只进不退
		if pct <= current.Progress {
			return
		}
		it.state = Uploading{Progress: pct}

		// 合并通知：至少前进 progressNotifyStep 个百分点才转发
		if pct-q.notified[c.index] >= progressNotifyStep || pct == 100 {
			q.notified[c.index] = pct
			q.emit(Event{Type: EventItemStateChanged, Index: c.index, State: it.state})
		}

	case resolvedCmd:
		if c.index != q.active {
			return
		}
		if !c.isDuplicate {
			q.finalize(c.index, Uploaded{Asset: c.asset})
			return
		}

		// 去重命中：本队列已见过该 id 则复用，否则取一次权威表示并缓存
		if cached, ok := q.known[c.asset.ID]; ok {
			q.finalize(c.index, Duplicate{Asset: cached})
			return
		}
		go q.fetchCanonical(c.index, c.asset)

	case fetchedCmd:
		if c.index != q.active {
			return
		}
		q.finalize(c.index, Duplicate{Asset: c.asset})

	case failedCmd:
		if c.index != q.active {
			return
		}
		it := q.items[c.index]
		it.state = Failed{Kind: c.kind, Message: c.msg}

		q.mu.Lock()
		q.lastErr = c.msg
		q.mu.Unlock()

		q.emit(Event{Type: EventItemStateChanged, Index: c.index, State: it.state})
		q.active = -1
		q.lastCompleted = c.index
		q.advance(c.index)

	case snapshotCmd:
		snap := make([]ItemSnapshot, len(q.items))
		for i, it := range q.items {
			snap[i] = ItemSnapshot{Index: i, Filename: it.filename, State: it.state}
		}
		c.reply <- snap
	}
}

// finalize 结束当前活动项并推进队列
func (q *Queue) finalize(index int, state State) {
	it := q.items[index]
	it.state = state
	it.payload = nil // 上传成功，释放载荷

	switch s := state.(type) {
	case Uploaded:
		q.known[s.Asset.ID] = s.Asset
	case Duplicate:
		q.known[s.Asset.ID] = s.Asset
	}

	q.emit(Event{Type: EventItemStateChanged, Index: index, State: state})
	q.active = -1
	q.lastCompleted = index
	q.advance(index)
}

// advance 从刚完成的位置之后开始环形扫描，提升下一个待传项
// 失败项不会被自动拾起，只有 Retry 将其改回 Pending 后才重新参与
func (q *Queue) advance(justCompleted int) {
	n := len(q.items)
	if n == 0 {
		q.emit(Event{Type: EventQueueIdle})
		return
	}

	// 刚完成的项此刻必不在 Pending 状态，环形扫描天然不会重选它
	start := justCompleted + 1
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if _, ok := q.items[idx].state.(Pending); ok {
			q.startUpload(idx)
			return
		}
	}

	q.emit(Event{Type: EventQueueIdle})
}

// startUpload 占用唯一上传槽位并启动工作 goroutine
func (q *Queue) startUpload(index int) {
	it := q.items[index]
	it.state = Uploading{Progress: 0}
	q.active = index
	q.notified[index] = 0
	q.emit(Event{Type: EventItemStateChanged, Index: index, State: it.state})

	payload := it.payload
	filename := it.filename

	go func() {
		// 哈希在工作 goroutine 内计算，调度循环保持响应
		hash, err := HashPayload(bytes.NewReader(payload))
		if err != nil {
			q.post(failedCmd{index: index, kind: FailureValidation, msg: "unreadable payload: " + err.Error()})
			return
		}

		asset, isDup, err := q.client.Ingest(q.ctx, hash, payload, filename, q.collection, func(pct int) {
			q.post(progressCmd{index: index, pct: pct})
		})
		if err != nil {
			kind, msg := classifyClientError(err)
			q.post(failedCmd{index: index, kind: kind, msg: msg})
			return
		}

		q.post(resolvedCmd{index: index, asset: asset, isDuplicate: isDup})
	}()
}

// fetchCanonical 为未见过的重复资源取一次权威表示
// 取失败时退回摄取响应携带的摘要，不让条目卡死
func (q *Queue) fetchCanonical(index int, summary *Asset) {
	asset, err := q.client.FetchAsset(q.ctx, summary.ID)
	if err != nil {
		asset = summary
	}
	q.post(fetchedCmd{index: index, asset: asset})
}

func (q *Queue) emit(ev Event) {
	if q.listener != nil {
		q.listener(ev)
	}
}

func classifyClientError(err error) (FailureKind, string) {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Kind, re.Message
	}
	return FailureTransient, err.Error()
}
