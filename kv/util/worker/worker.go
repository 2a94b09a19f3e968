package worker

import "sync"

type TaskStop struct{}

type Task interface{}

// Worker runs the tasks sent to it one by one on a goroutine of its own.
type Worker struct {
	name     string
	sender   chan<- Task
	receiver <-chan Task
	wg       *sync.WaitGroup
}

type TaskHandler interface {
	Handle(t Task)
}

// Starter is implemented by handlers which need to do some work on the worker goroutine before the first task.
type Starter interface {
	Start()
}

// Stopper is implemented by handlers which need to clean up on the worker goroutine after the last task.
type Stopper interface {
	Stop()
}

func (w *Worker) Start(handler TaskHandler) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if s, ok := handler.(Starter); ok {
			s.Start()
		}
		if s, ok := handler.(Stopper); ok {
			defer s.Stop()
		}
		for {
			task := <-w.receiver
			if _, ok := task.(TaskStop); ok {
				return
			}
			handler.Handle(task)
		}
	}()
}

func (w *Worker) Name() string {
	return w.name
}

func (w *Worker) Sender() chan<- Task {
	return w.sender
}

// TrySend queues t without blocking. It returns false if the queue is full.
func (w *Worker) TrySend(t Task) bool {
	select {
	case w.sender <- t:
		return true
	default:
		return false
	}
}

// Stop asks the worker to exit once the tasks queued before it are handled.
func (w *Worker) Stop() {
	w.sender <- TaskStop{}
}

const defaultWorkerCapacity = 128

func NewWorker(name string, wg *sync.WaitGroup) *Worker {
	return NewWorkerWithCapacity(name, wg, defaultWorkerCapacity)
}

// NewWorkerWithCapacity creates a worker which can queue up to capacity tasks.
func NewWorkerWithCapacity(name string, wg *sync.WaitGroup, capacity int) *Worker {
	if capacity <= 0 {
		capacity = defaultWorkerCapacity
	}
	ch := make(chan Task, capacity)
	return &Worker{
		sender:   (chan<- Task)(ch),
		receiver: (<-chan Task)(ch),
		name:     name,
		wg:       wg,
	}
}
