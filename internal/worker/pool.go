package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/shototoy/qr-attendance-api/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueAttendance = "jobs:attendance"
	QueueEmail      = "jobs:email"

	popTimeout      = 5 * time.Second
	popErrorBackoff = 2 * time.Second
)

// ErrInvalidPayload marks jobs that can never succeed; they go straight to
// the DLQ.
var ErrInvalidPayload = errors.New("invalid job payload")

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes the payload of one job. A returned error means the job
// failed for good and is dead-lettered.
type Handler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// DeadLetterSink receives jobs that failed.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, queue string, job Job, reason string)
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// PublishAttendance pushes a committed attendance transition.
func (d *Dispatcher) PublishAttendance(ctx context.Context, ev dto.AttendanceEvent) error {
	return d.enqueue(ctx, QueueAttendance, ev.Type, ev)
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, "email", payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	rdb      *redis.Client
	handlers map[string]Handler
	dlq      DeadLetterSink
	backoff  time.Duration
	wg       sync.WaitGroup
}

// StartWorkerPool launches numWorkers goroutines consuming every queue in
// handlers. Each goroutine blocks on BRPOP, so idle workers cost nothing.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, numWorkers int, handlers map[string]Handler) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	p := &Pool{rdb: rdb, handlers: handlers, dlq: NewRedisDLQ(rdb), backoff: popErrorBackoff}
	queues := make([]string, 0, len(handlers))
	for q := range handlers {
		queues = append(queues, q)
	}
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i, queues)
	}
	log.Info().Int("workers", numWorkers).Strs("queues", queues).Msg("worker pool started")
	return p
}

// Wait blocks until every worker has returned after ctx cancellation.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) run(ctx context.Context, id int, queues []string) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		default:
			// waits up to popTimeout then loops to check ctx
			result, err := p.rdb.BRPop(ctx, popTimeout, queues...).Result()
			if popFailed(ctx, err) {
				log.Warn().Int("worker", id).Err(err).Dur("retry_in", p.backoff).Msg("worker: queue pop failed")
				select {
				case <-ctx.Done():
				case <-time.After(p.backoff):
				}
				continue
			}
			if err != nil || len(result) < 2 {
				continue
			}
			processJob(ctx, p.handlers, p.dlq, result[0], result[1])
		}
	}
}

// popFailed separates real BRPOP failures (redis unreachable) from an idle
// timeout or shutdown.
func popFailed(ctx context.Context, err error) bool {
	return err != nil && !errors.Is(err, redis.Nil) && ctx.Err() == nil
}

func processJob(ctx context.Context, handlers map[string]Handler, dlq DeadLetterSink, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		quoted, _ := json.Marshal(raw)
		dlq.DeadLetter(ctx, queue, Job{Type: "unknown", Payload: quoted}, err.Error())
		return
	}
	h, ok := handlers[queue]
	if !ok {
		log.Error().Str("queue", queue).Msg("no handler for queue")
		return
	}

	if err := h.Process(ctx, job.Payload); err != nil {
		log.Error().Err(err).Str("queue", queue).Str("type", job.Type).Msg("job failed")
		dlq.DeadLetter(ctx, queue, job, err.Error())
		return
	}
	log.Debug().Str("queue", queue).Str("type", job.Type).Msg("job processed")
}
