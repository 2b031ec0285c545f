package services

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// DeliveryTask asks a worker to hand one communication log to the vendor
type DeliveryTask struct {
	LogID       string `json:"logId"`
	CustomerID  string `json:"customerId"`
	Message     string `json:"message"`
	CallbackURL string `json:"callbackUrl"`
}

// DeliveryHandler processes one task and owns the log's failure handling.
// A non-nil error means the task was not processed and may be redelivered.
type DeliveryHandler func(ctx context.Context, task DeliveryTask) error

// DeliveryQueue decouples campaign creation from vendor sends.
// Publish must return without waiting for any send.
type DeliveryQueue interface {
	Publish(ctx context.Context, tasks []DeliveryTask) error
	Start(handler DeliveryHandler) error
	Stop()
}

// ChannelQueue is the in-process queue used when no broker is configured.
// Tasks still buffered at Stop are dropped; their logs stay PENDING until the sweeper fails them.
type ChannelQueue struct {
	tasks    chan DeliveryTask
	workers  int
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewChannelQueue(workers, buffer int) *ChannelQueue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ChannelQueue{
		tasks:    make(chan DeliveryTask, buffer),
		workers:  workers,
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Publish hands the tasks to a feeder goroutine and returns immediately
func (q *ChannelQueue) Publish(ctx context.Context, tasks []DeliveryTask) error {
	if len(tasks) == 0 {
		return nil
	}
	go func() {
		for i, task := range tasks {
			select {
			case q.tasks <- task:
			case <-q.stopChan:
				logrus.Warnf("Delivery queue stopped, %d task(s) left pending", len(tasks)-i)
				return
			}
		}
	}()
	return nil
}

// Start launches the worker pool
func (q *ChannelQueue) Start(handler DeliveryHandler) error {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(handler)
	}
	logrus.Infof("Delivery queue started with %d worker(s)", q.workers)
	return nil
}

func (q *ChannelQueue) work(handler DeliveryHandler) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopChan:
			return
		case task := <-q.tasks:
			if err := handler(q.ctx, task); err != nil {
				logrus.Warnf("Delivery task for log %s not processed: %v", task.LogID, err)
			}
		}
	}
}

// Stop cancels in-flight sends and waits for the workers to exit
func (q *ChannelQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopChan)
		q.cancel()
		q.wg.Wait()
		logrus.Info("Delivery queue stopped")
	})
}
