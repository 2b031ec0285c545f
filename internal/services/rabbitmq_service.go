package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/crm-campaign-backend/internal/config"
)

// RabbitMQQueue carries delivery tasks through a durable RabbitMQ queue,
// so pending sends survive a restart of this process.
type RabbitMQQueue struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	workers  int
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewRabbitMQQueue(cfg config.RabbitMQConfig, workers int) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if workers < 1 {
		workers = 1
	}
	// one unacked task per worker
	if err := channel.Qos(workers, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	logrus.Infof("RabbitMQ delivery queue %q initialized", cfg.Queue)
	return &RabbitMQQueue{
		conn:     conn,
		channel:  channel,
		queue:    cfg.Queue,
		workers:  workers,
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Publish writes every task as a persistent JSON message
func (q *RabbitMQQueue) Publish(ctx context.Context, tasks []DeliveryTask) error {
	for _, task := range tasks {
		body, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("failed to marshal task: %w", err)
		}
		err = q.channel.PublishWithContext(ctx,
			"",      // exchange
			q.queue, // routing key
			false,   // mandatory
			false,   // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
			},
		)
		if err != nil {
			return fmt.Errorf("failed to publish task for log %s: %w", task.LogID, err)
		}
	}
	logrus.Debugf("Published %d delivery task(s) to %s", len(tasks), q.queue)
	return nil
}

// Start consumes the queue with manual acks on a pool of workers
func (q *RabbitMQQueue) Start(handler DeliveryHandler) error {
	deliveries, err := q.channel.Consume(
		q.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(deliveries, handler)
	}
	logrus.Infof("RabbitMQ delivery consumer started with %d worker(s)", q.workers)
	return nil
}

func (q *RabbitMQQueue) work(deliveries <-chan amqp.Delivery, handler DeliveryHandler) {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopChan:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			var task DeliveryTask
			if err := json.Unmarshal(d.Body, &task); err != nil {
				logrus.Errorf("Dropping malformed delivery task: %v", err)
				d.Nack(false, false)
				continue
			}
			if err := handler(q.ctx, task); err != nil {
				logrus.Warnf("Requeueing delivery task for log %s: %v", task.LogID, err)
				d.Nack(false, true)
				continue
			}
			if err := d.Ack(false); err != nil {
				logrus.Warnf("Failed to ack delivery task for log %s: %v", task.LogID, err)
			}
		}
	}
}

// Stop waits for in-flight tasks and closes the connection
func (q *RabbitMQQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stopChan)
		q.cancel()
		q.wg.Wait()
		if err := q.channel.Close(); err != nil {
			logrus.Errorf("Error closing channel: %v", err)
		}
		if err := q.conn.Close(); err != nil {
			logrus.Errorf("Error closing connection: %v", err)
		}
		logrus.Info("RabbitMQ delivery queue stopped")
	})
}
