package broadcast

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/ben458-1/URL-Server-Monitor/internal/domain/health"
)

const EventHealthUpdate = "health_update"

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type HealthUpdate struct {
	TargetID     int64  `json:"target_id"`
	Status       string `json:"status"`
	ResponseTime *int64 `json:"response_time"`
	StatusCode   *int   `json:"status_code"`
	CheckedAt    string `json:"checked_at"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func NewHealthUpdate(c *health.Check) Event {
	return Event{
		Type: EventHealthUpdate,
		Data: HealthUpdate{
			TargetID:     c.TargetID,
			Status:       string(c.Status),
			ResponseTime: c.ResponseTime,
			StatusCode:   c.StatusCode,
			CheckedAt:    c.CheckedAt.UTC().Format(time.RFC3339Nano),
			ErrorMessage: c.ErrorMessage,
		},
	}
}

var (
	mPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_events_published_total", Help: "Events handed to the hub",
	})
	mDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_events_dropped_total", Help: "Events dropped from full subscriber queues",
	})
	mSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "broadcast_subscribers", Help: "Currently connected subscribers",
	})
)

// Subscriber is one live-feed consumer. It owns a bounded queue; when the
// consumer falls behind, the oldest queued event is dropped so the publisher
// never blocks and memory stays bounded. Subscribers that need full history
// must query the result store instead.
type Subscriber struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// C yields queued events. The channel is never closed; select on Done to
// detect removal from the hub.
func (s *Subscriber) C() <-chan Event { return s.ch }

func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscriber) enqueue(ev Event) {
	for {
		select {
		case <-s.done:
			return
		case s.ch <- ev:
			return
		default:
		}
		// Queue full: make room by discarding the oldest entry.
		select {
		case <-s.ch:
			mDropped.Inc()
		default:
		}
	}
}

// Hub fans each published event out to every current subscriber. Delivery is
// isolated per subscriber: a slow or dead consumer costs the publisher at
// most one bounded enqueue step.
type Hub struct {
	log       *zap.Logger
	queueSize int

	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
}

func NewHub(log *zap.Logger, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Hub{
		log:       log,
		queueSize: queueSize,
		subs:      make(map[*Subscriber]struct{}),
	}
}

func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{
		ch:   make(chan Event, h.queueSize),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	mSubscribers.Set(float64(n))
	h.log.Debug("subscriber added", zap.Int("subscribers", n))
	return s
}

func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	_, ok := h.subs[s]
	delete(h.subs, s)
	n := len(h.subs)
	h.mu.Unlock()
	if !ok {
		return
	}
	s.close()

	mSubscribers.Set(float64(n))
	h.log.Debug("subscriber removed", zap.Int("subscribers", n))
}

// Publish delivers ev to a snapshot of the current subscriber set, so
// subscribe/unsubscribe stay safe while delivery is in progress.
func (h *Hub) Publish(ev Event) {
	mPublished.Inc()

	h.mu.RLock()
	snapshot := make([]*Subscriber, 0, len(h.subs))
	for s := range h.subs {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	for _, s := range snapshot {
		s.enqueue(ev)
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
