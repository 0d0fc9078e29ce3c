package queue

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/campusgate/access-core/internal/dispatch"
	"github.com/campusgate/access-core/pkg/metrics"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// ErrStopped is returned by Enqueue once the queue has shut down.
var ErrStopped = errors.New("queue stopped")

// Sharded commands pick their worker. Commands with the same shard key are
// applied in enqueue order.
type Sharded interface {
	ShardKey() string
}

// Idempotent commands expose a key under which replays are dropped. An empty
// key disables deduplication for that command.
type Idempotent interface {
	IdempotencyKey() string
}

// Deduper claims idempotency keys (Redis).
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type job struct {
	name     string
	shard    string
	dedupKey string
	run      func(ctx context.Context) error
}

// Dispatcher runs fire-and-forget commands on a fixed set of workers using
// consistent hashing on the shard key, guaranteeing per-key ordering.
type Dispatcher struct {
	workers []chan job
	target  *dispatch.Dispatcher
	dedup   Deduper
	log     zerolog.Logger
	done    chan struct{}
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers routing
// into target. If numWorkers <= 0, defaultWorkers is used. dedup may be nil.
func NewDispatcher(numWorkers int, target *dispatch.Dispatcher, dedup Deduper, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan job, numWorkers),
		target:  target,
		dedup:   dedup,
		log:     log,
		done:    make(chan struct{}),
	}
	for i := range d.workers {
		d.workers[i] = make(chan job, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
	go func() {
		<-ctx.Done()
		close(d.done)
	}()
}

// Enqueue hands cmd to the worker responsible for its shard key. It blocks
// while that worker's buffer is full, until ctx is done or the queue stops.
func Enqueue[C Sharded](ctx context.Context, d *Dispatcher, cmd C) error {
	j := job{
		name:  fmt.Sprintf("%T", cmd),
		shard: cmd.ShardKey(),
		run: func(ctx context.Context) error {
			return dispatch.Command(ctx, d.target, cmd)
		},
	}
	if idem, ok := any(cmd).(Idempotent); ok {
		j.dedupKey = idem.IdempotencyKey()
	}

	select {
	case <-d.done:
		return ErrStopped
	default:
	}

	idx := d.shardIndex(j.shard)
	select {
	case d.workers[idx] <- j:
		metrics.QueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	case <-d.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan job) {
	depth := metrics.QueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-ch:
			if !ok {
				return
			}
			depth.Set(float64(len(ch)))
			d.process(ctx, id, j)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, id int, j job) {
	log := d.log.With().Str("command", j.name).Str("shard", j.shard).Int("worker_id", id).Logger()

	claimed := false
	if j.dedupKey != "" && d.dedup != nil {
		ok, err := d.dedup.Claim(ctx, j.dedupKey)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("dedup check failed, processing anyway")
		case !ok:
			metrics.QueueDedupTotal.WithLabelValues("hit").Inc()
			log.Debug().Str("key", j.dedupKey).Msg("duplicate command skipped")
			return
		default:
			claimed = true
			metrics.QueueDedupTotal.WithLabelValues("miss").Inc()
		}
	}

	if err := j.run(ctx); err != nil {
		log.Error().Err(err).Msg("command processing failed")
		if claimed {
			if relErr := d.dedup.Release(context.WithoutCancel(ctx), j.dedupKey); relErr != nil {
				log.Warn().Err(relErr).Msg("failed to release dedup key")
			}
		}
		return
	}
	log.Debug().Msg("command processed")
}
