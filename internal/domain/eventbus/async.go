package eventbus

import (
	"fmt"
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"roadscan-server-go/internal/utils"
)

// AsyncEventBus fans published events out to a fixed worker pool.
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Int64
	logger    atomic.Pointer[utils.Logger]

	pendingMu   sync.Mutex
	pendingCond *sync.Cond
	inflight    int
	stopped     bool
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

func NewAsyncEventBus(workerNum int) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = defaultWorkers
	}

	aeb := &AsyncEventBus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, 1000),
		stopChan:  make(chan struct{}),
	}
	aeb.pendingCond = sync.NewCond(&aeb.pendingMu)
	return aeb
}

// SetLogger attaches a logger for dropped events and handler panics.
func (aeb *AsyncEventBus) SetLogger(logger *utils.Logger) {
	aeb.logger.Store(logger)
}

func (aeb *AsyncEventBus) Start() {
	for i := 0; i < aeb.workerNum; i++ {
		aeb.wg.Add(1)
		go aeb.worker()
	}
}

// Stop waits for queued events to be handled, then stops the workers.
func (aeb *AsyncEventBus) Stop() {
	aeb.stopOnce.Do(func() {
		aeb.pendingMu.Lock()
		aeb.stopped = true
		aeb.pendingMu.Unlock()
		aeb.WaitAsync()
		close(aeb.stopChan)
		aeb.wg.Wait()
	})
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()

	for {
		select {
		case <-aeb.stopChan:
			return
		case event := <-aeb.workChan:
			aeb.dispatch(event)
		}
	}
}

func (aeb *AsyncEventBus) dispatch(event asyncEvent) {
	defer aeb.done()
	defer func() {
		if r := recover(); r != nil {
			aeb.logger.Load().ErrorTag("Events", "handler for %s panicked: %v", event.topic, r)
		}
	}()
	aeb.bus.Publish(event.topic, event.args...)
}

// PublishAsync queues the event. When the queue is full the event is dropped.
// Events published after Stop are dropped as well.
func (aeb *AsyncEventBus) PublishAsync(topic string, args ...interface{}) {
	aeb.pendingMu.Lock()
	if aeb.stopped {
		aeb.pendingMu.Unlock()
		aeb.drop(topic, "bus stopped")
		return
	}
	aeb.inflight++
	aeb.pendingMu.Unlock()

	select {
	case aeb.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		aeb.done()
		aeb.drop(topic, "queue full")
	}
}

func (aeb *AsyncEventBus) drop(topic, reason string) {
	n := aeb.dropped.Add(1)
	aeb.logger.Load().WarnTag("Events", "%s, dropped %s (total dropped %d)", reason, topic, n)
}

func (aeb *AsyncEventBus) done() {
	aeb.pendingMu.Lock()
	aeb.inflight--
	if aeb.inflight == 0 {
		aeb.pendingCond.Broadcast()
	}
	aeb.pendingMu.Unlock()
}

// Subscribe attaches fn to topic. Handlers run on the worker goroutines.
func (aeb *AsyncEventBus) Subscribe(topic string, fn interface{}) error {
	if err := aeb.bus.Subscribe(topic, fn); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Dropped is the number of events discarded because the queue was full.
func (aeb *AsyncEventBus) Dropped() int64 {
	return aeb.dropped.Load()
}

// WaitAsync blocks until every queued event has been handled.
func (aeb *AsyncEventBus) WaitAsync() {
	aeb.pendingMu.Lock()
	for aeb.inflight > 0 {
		aeb.pendingCond.Wait()
	}
	aeb.pendingMu.Unlock()
}
