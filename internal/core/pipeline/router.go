package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docflow/docflow/internal/core/ports"
)

// Stage is a single processing step bound to one event topic. Handle
// receives the raw event payload; each stage owns its own decoding.
type Stage interface {
	Name() string
	Topic() string
	Handle(ctx context.Context, payload []byte) error
}

// Observer receives stage lifecycle events, typically for metrics.
type Observer interface {
	StageStarted()
	StageCompleted(stage, topic string, duration time.Duration, err error)
}

// Router owns the pipeline's control flow: a static topic -> stages table
// built at startup, dispatched over an EventBus. Stages subscribed to the
// same topic run independently; one stage failing never blocks or rolls
// back a sibling, and stage errors never reach the bus.
type Router struct {
	bus      ports.EventBus
	logger   *slog.Logger
	observer Observer
	table    map[string][]Stage
}

func NewRouter(bus ports.EventBus, logger *slog.Logger, observer Observer) *Router {
	return &Router{
		bus:      bus,
		logger:   logger,
		observer: observer,
		table:    make(map[string][]Stage),
	}
}

// Register adds a stage to the dispatch table. Call before Start; the
// table is not mutated afterwards.
func (r *Router) Register(stages ...Stage) {
	for _, stage := range stages {
		r.table[stage.Topic()] = append(r.table[stage.Topic()], stage)
	}
}

// Start subscribes every registered topic on the bus. It returns after all
// subscriptions are established; delivery runs until ctx is cancelled.
func (r *Router) Start(ctx context.Context) error {
	for topic, stages := range r.table {
		topic, stages := topic, stages
		err := r.bus.Subscribe(ctx, topic, func(eventCtx context.Context, payload []byte) {
			r.dispatch(eventCtx, topic, stages, payload)
		})
		if err != nil {
			return fmt.Errorf("subscribe topic %s: %w", topic, err)
		}
	}
	return nil
}

// Topics returns the registered topics, for startup logging.
func (r *Router) Topics() []string {
	topics := make([]string, 0, len(r.table))
	for topic := range r.table {
		topics = append(topics, topic)
	}
	return topics
}

func (r *Router) dispatch(ctx context.Context, topic string, stages []Stage, payload []byte) {
	var wg sync.WaitGroup
	for _, stage := range stages {
		wg.Add(1)
		go func(stage Stage) {
			defer wg.Done()
			r.runStage(ctx, topic, stage, payload)
		}(stage)
	}
	wg.Wait()
}

func (r *Router) runStage(ctx context.Context, topic string, stage Stage, payload []byte) {
	started := time.Now()
	if r.observer != nil {
		r.observer.StageStarted()
	}
	var err error
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("stage panic: %v", rec)
		}
		if r.observer != nil {
			r.observer.StageCompleted(stage.Name(), topic, time.Since(started), err)
		}
		if err != nil {
			r.logger.Error("stage_failed", "stage", stage.Name(), "topic", topic, "error", err)
		}
	}()

	err = stage.Handle(ctx, payload)
}

// Emitter publishes the next pipeline event after a stage's own write has
// committed.
type Emitter interface {
	Emit(ctx context.Context, topic string, event any) error
}

type busEmitter struct {
	bus ports.EventBus
}

func NewEmitter(bus ports.EventBus) Emitter {
	return &busEmitter{bus: bus}
}

func (e *busEmitter) Emit(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	if err := e.bus.Publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

// excerpt bounds the content handed to AI analysis without splitting a rune.
func excerpt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
