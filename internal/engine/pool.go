package engine

import (
	"sync"

	"github.com/gammazero/deque"
)

// Pool runs submitted tasks on at most maxWorkers goroutines. Submit never
// blocks on a busy pool; surplus tasks wait in a FIFO queue. One Pool is
// shared by every file of a batch so the number of in-flight part downloads
// is bounded globally.
type Pool struct {
	maxWorkers  int
	taskQueue   chan func()
	workerQueue chan func()
	stoppedCh   chan struct{}
	waiting     deque.Deque[func()]
	stopLock    sync.RWMutex
	stopOnce    sync.Once
	stopped     bool
}

func NewPool(maxWorkers int) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	p := &Pool{
		maxWorkers:  maxWorkers,
		taskQueue:   make(chan func()),
		workerQueue: make(chan func()),
		stoppedCh:   make(chan struct{}),
	}
	go p.dispatch()
	return p
}

func (p *Pool) Size() int {
	return p.maxWorkers
}

// Submit queues task and reports whether the pool accepted it.
func (p *Pool) Submit(task func()) bool {
	if task == nil {
		return false
	}
	p.stopLock.RLock()
	defer p.stopLock.RUnlock()
	if p.stopped {
		return false
	}
	p.taskQueue <- task
	return true
}

// StopWait stops accepting tasks and waits for queued and running ones.
func (p *Pool) StopWait() {
	p.stopOnce.Do(func() {
		p.stopLock.Lock()
		p.stopped = true
		close(p.taskQueue)
		p.stopLock.Unlock()
	})
	<-p.stoppedCh
}

func (p *Pool) dispatch() {
	defer close(p.stoppedCh)
	var workerCount int
	var wg sync.WaitGroup

Loop:
	for {
		if p.waiting.Len() > 0 {
			select {
			case task, ok := <-p.taskQueue:
				if !ok {
					break Loop
				}
				p.waiting.PushBack(task)
			case p.workerQueue <- p.waiting.Front():
				p.waiting.PopFront()
			}
			continue
		}
		task, ok := <-p.taskQueue
		if !ok {
			break Loop
		}
		select {
		case p.workerQueue <- task:
		default:
			if workerCount < p.maxWorkers {
				wg.Add(1)
				go worker(task, p.workerQueue, &wg)
				workerCount++
			} else {
				p.waiting.PushBack(task)
			}
		}
	}

	for p.waiting.Len() > 0 {
		p.workerQueue <- p.waiting.PopFront()
	}
	for workerCount > 0 {
		p.workerQueue <- nil
		workerCount--
	}
	wg.Wait()
}

func worker(task func(), workerQueue chan func(), wg *sync.WaitGroup) {
	for task != nil {
		task()
		task = <-workerQueue
	}
	wg.Done()
}
