package analytics

import (
	"context"
	"log/slog"
	"sync"

	"github.com/phakpoomachalanan/WebIR/pkg/kafka"
	"github.com/phakpoomachalanan/WebIR/pkg/logger"
)

// Collector decouples the serve path from Kafka: Record never blocks a
// request, events buffer in a channel, and a background goroutine publishes
// them. When the buffer is full events are dropped and counted, not queued.
type Collector struct {
	producer *kafka.Producer
	events   chan SearchEvent
	dropped  int64
	mu       sync.Mutex
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	log      *slog.Logger
}

// NewCollector starts the publish loop. bufferSize bounds how many events may
// wait for Kafka before Record starts dropping.
func NewCollector(producer *kafka.Producer, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Collector{
		producer: producer,
		events:   make(chan SearchEvent, bufferSize),
		cancel:   cancel,
		log:      logger.WithComponent("analytics.collector"),
	}
	c.wg.Add(1)
	go c.run(ctx)
	return c
}

// Record enqueues one event without blocking.
func (c *Collector) Record(event SearchEvent) {
	select {
	case c.events <- event:
	default:
		c.mu.Lock()
		c.dropped++
		dropped := c.dropped
		c.mu.Unlock()
		if dropped%100 == 1 {
			c.log.Warn("event buffer full, dropping", "dropped_total", dropped)
		}
	}
}

// Dropped returns how many events were discarded due to a full buffer.
func (c *Collector) Dropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func (c *Collector) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case event := <-c.events:
			if err := c.producer.Publish(ctx, kafka.Event{Key: event.Query, Value: event}); err != nil {
				c.log.Error("failed to publish search event", "event_id", event.EventID, "error", err)
			}
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

// drain publishes whatever is still buffered at shutdown, best effort.
func (c *Collector) drain() {
	ctx := context.Background()
	for {
		select {
		case event := <-c.events:
			if err := c.producer.Publish(ctx, kafka.Event{Key: event.Query, Value: event}); err != nil {
				c.log.Error("failed to flush search event", "event_id", event.EventID, "error", err)
				return
			}
		default:
			return
		}
	}
}

// Close stops the publish loop after draining buffered events.
func (c *Collector) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}
