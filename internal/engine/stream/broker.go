package stream

import (
	"errors"
	"sync"

	"clipflow/internal/engine"

	"github.com/rs/zerolog"
)

const DefaultBuffer = 256

var (
	ErrNotLive        = errors.New("execution is not live")
	ErrSlowSubscriber = errors.New("subscriber fell behind and was dropped")
	ErrExecutionEnded = errors.New("execution finished")
	errAlreadyOpen    = errors.New("execution stream already open")
)

// Snapshot is the state of an execution at sequence number Seq. Every event delivered on the
// subscription that came with it has a greater sequence number.
type Snapshot struct {
	ExecutionID string                      `json:"executionId"`
	Seq         uint64                      `json:"seq"`
	Status      engine.ExecutionStatus      `json:"status"`
	Nodes       map[string]engine.NodeState `json:"nodes"`
}

// Subscription is the live tail of one execution. C is closed after the terminal execution event
// or when the subscriber is dropped; Err tells the two apart.
type Subscription struct {
	C <-chan engine.Event

	ch     chan engine.Event
	broker *Broker
	execID string
	mu     sync.Mutex
	err    error
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.broker.unsubscribe(s)
}

func (s *Subscription) end(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.ch)
}

type topic struct {
	seq    uint64
	status engine.ExecutionStatus
	nodes  map[string]engine.NodeState
	subs   map[*Subscription]struct{}
}

// Broker keeps the state of every live execution and fans its events out to subscribers. Emit is
// called by the single goroutine that owns an execution, so events of one execution are
// sequenced in emission order.
type Broker struct {
	mu      sync.Mutex
	topics  map[string]*topic
	buffer  int
	forward engine.Emitter
	logger  zerolog.Logger
}

type Option func(*Broker)

// WithForward relays every sequenced event, for instance to NATS.
func WithForward(e engine.Emitter) Option {
	return func(b *Broker) { b.forward = e }
}

func WithBuffer(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.buffer = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(b *Broker) { b.logger = l }
}

func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		topics: make(map[string]*topic),
		buffer: DefaultBuffer,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open makes an execution live with the given record as its initial state.
func (b *Broker) Open(rec engine.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[rec.ID]; ok {
		return errAlreadyOpen
	}
	b.topics[rec.ID] = &topic{
		status: rec.Status,
		nodes:  engine.CloneStates(rec.NodeStates),
		subs:   make(map[*Subscription]struct{}),
	}
	return nil
}

func (b *Broker) Live(executionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.topics[executionID]
	return ok
}

// Subscribe returns the current snapshot together with a subscription receiving every later event.
func (b *Broker) Subscribe(executionID string) (Snapshot, *Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[executionID]
	if !ok {
		return Snapshot{}, nil, ErrNotLive
	}
	ch := make(chan engine.Event, b.buffer)
	sub := &Subscription{C: ch, ch: ch, broker: b, execID: executionID}
	t.subs[sub] = struct{}{}
	return Snapshot{
		ExecutionID: executionID,
		Seq:         t.seq,
		Status:      t.status,
		Nodes:       engine.CloneStates(t.nodes),
	}, sub, nil
}

// Emit sequences ev, folds it into the execution state and delivers it. A subscriber whose buffer
// is full is dropped. The terminal execution event closes every subscription and the topic.
func (b *Broker) Emit(ev engine.Event) {
	b.mu.Lock()
	t, ok := b.topics[ev.ExecutionID]
	if !ok {
		b.mu.Unlock()
		b.logger.Warn().Str("executionId", ev.ExecutionID).Str("status", ev.Status).Msg("Event for an execution that is not live")
		return
	}
	t.seq++
	ev.Seq = t.seq
	switch ev.Type {
	case engine.EventNode:
		t.nodes[ev.NodeID] = ev.State()
	case engine.EventExecution:
		t.status = engine.ExecutionStatus(ev.Status)
	}

	for sub := range t.subs {
		select {
		case sub.ch <- ev:
		default:
			delete(t.subs, sub)
			sub.end(ErrSlowSubscriber)
			b.logger.Warn().Str("executionId", ev.ExecutionID).Msg("Dropping slow stream subscriber")
		}
	}
	if ev.Terminal() {
		for sub := range t.subs {
			sub.end(ErrExecutionEnded)
		}
		delete(b.topics, ev.ExecutionID)
	}
	b.mu.Unlock()

	if b.forward != nil {
		b.forward.Emit(ev)
	}
}

func (b *Broker) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[s.execID]
	if !ok {
		return
	}
	if _, ok := t.subs[s]; ok {
		delete(t.subs, s)
		s.end(nil)
	}
}
