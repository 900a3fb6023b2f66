package mfsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Received packet queue.
 *
 * Description:	The demodulator runs on the audio goroutine and must
 *		keep up with the sound card.  Everything done with a
 *		decoded packet (printing, logging, KISS clients, MQTT)
 *		happens on a separate goroutine reading from this queue,
 *		one packet at a time, in the order they were received.
 *
 *		If the consumer falls behind and the queue fills up,
 *		new packets are dropped and counted rather than making
 *		the audio side wait.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

const DEFAULT_QUEUE_SIZE = 64

type QueueConfig struct {
	Size int `yaml:"size"`
}

func DefaultQueueConfig() QueueConfig {
	return QueueConfig{Size: DEFAULT_QUEUE_SIZE}
}

func (c QueueConfig) Validate() error {
	if c.Size < 1 {
		return fmt.Errorf("queue size must be at least 1, got %d", c.Size)
	}

	return nil
}

type DeliveryQueue struct {
	ch      chan Packet
	dropped atomic.Uint64
	onDrop  func()

	closeOnce sync.Once
}

func NewDeliveryQueue(size int, onDrop func()) *DeliveryQueue {
	return &DeliveryQueue{ //nolint:exhaustruct
		ch:     make(chan Packet, size),
		onDrop: onDrop,
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        Put
 *
 * Purpose:     Add a received packet to the end of the queue.
 *
 * Returns:	false if the queue was full and the packet dropped.
 *
 * Description:	Never blocks.  Must not be called after Close.
 *
 *--------------------------------------------------------------------*/

func (q *DeliveryQueue) Put(p Packet) bool {
	select {
	case q.ch <- p:
		return true
	default:
		q.dropped.Add(1)

		if q.onDrop != nil {
			q.onDrop()
		}

		return false
	}
}

func (q *DeliveryQueue) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *DeliveryQueue) Len() int {
	return len(q.ch)
}

// Close tells Run to stop once the queue is empty.
func (q *DeliveryQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.ch)
	})
}

/*-------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:     Pass each packet to the handlers, in order.
 *
 * Description:	Returns when the queue is closed and drained, or when
 *		the context is cancelled.
 *
 *--------------------------------------------------------------------*/

func (q *DeliveryQueue) Run(ctx context.Context, handlers ...func(Packet)) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-q.ch:
			if !ok {
				return
			}

			for _, h := range handlers {
				h(p)
			}
		}
	}
}
