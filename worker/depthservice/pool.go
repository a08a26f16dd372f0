package depthservice

import (
	"context"
	"fmt"

	"github.com/nci/gbathy/utils"
	"go.uber.org/zap"
)

const DefaultQueueSize = 400

// Task is one queued year computation. Resp and Error must be
// buffered so a worker never blocks on a caller that gave up.
type Task struct {
	Context context.Context
	Payload *YearRequest
	Resp    chan *YearResult
	Error   chan error
}

func NewTask(ctx context.Context, req *YearRequest) *Task {
	return &Task{Context: ctx, Payload: req, Resp: make(chan *YearResult, 1), Error: make(chan error, 1)}
}

type EvaluateFunc func(ctx context.Context, req *YearRequest) (*YearResult, error)

// ProcessPool runs queued tasks on a fixed number of goroutines.
type ProcessPool struct {
	TaskQueue chan *Task
	evaluate  EvaluateFunc
	log       *zap.SugaredLogger
	done      chan struct{}
}

func (p *ProcessPool) AddQueue(task *Task) {
	if len(p.TaskQueue) >= cap(p.TaskQueue)-10 {
		task.Error <- fmt.Errorf("Pool TaskQueue is full")
		return
	}
	p.TaskQueue <- task
}

func CreateProcessPool(n int, evaluate EvaluateFunc, log *zap.SugaredLogger) *ProcessPool {
	if n < 1 {
		n = 1
	}
	p := &ProcessPool{
		TaskQueue: make(chan *Task, DefaultQueueSize),
		evaluate:  evaluate,
		log:       utils.OrNop(log),
		done:      make(chan struct{}, n),
	}
	for i := 0; i < n; i++ {
		go p.run(i)
	}
	return p
}

func (p *ProcessPool) run(idx int) {
	defer func() { p.done <- struct{}{} }()
	for task := range p.TaskQueue {
		if err := task.Context.Err(); err != nil {
			task.Error <- err
			continue
		}

		p.log.Debugw("process task", "process", idx, "year", task.Payload.Year)
		res, err := p.evaluate(task.Context, task.Payload)
		if err != nil {
			task.Error <- err
			continue
		}
		task.Resp <- res
	}
}

// Close stops accepting tasks and waits for the running ones.
func (p *ProcessPool) Close() {
	close(p.TaskQueue)
	for i := 0; i < cap(p.done); i++ {
		<-p.done
	}
}
