package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/truefeedback/feedback-system/internal/api/metrics"
	"github.com/truefeedback/feedback-system/internal/core/ports"
)

const (
	defaultWorkers     = 4
	channelBuffer      = 256
	defaultMaxAttempts = 5
	defaultRetryDelay  = 30 * time.Second
)

// DeliveryMarker tracks which accounts are still owed a verification email.
type DeliveryMarker interface {
	Mark(ctx context.Context, username string) error
	Clear(ctx context.Context, username string) error
}

// Dispatcher retries failed verification-email deliveries on a fixed set of
// workers. Jobs are sharded by username with consistent hashing, so retries
// for one account never interleave.
type Dispatcher struct {
	workers     []chan ports.DeliveryJob
	sender      ports.EmailSender
	marker      DeliveryMarker
	maxAttempts int
	retryDelay  time.Duration
	log         zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, sender ports.EmailSender, marker DeliveryMarker, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:     make([]chan ports.DeliveryJob, numWorkers),
		sender:      sender,
		marker:      marker,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		log:         log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.DeliveryJob, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Schedule marks the account as owed a delivery and hands the job to its
// shard. The call is non-blocking up to channelBuffer capacity.
func (d *Dispatcher) Schedule(ctx context.Context, job ports.DeliveryJob) error {
	if d.marker != nil {
		if err := d.marker.Mark(ctx, job.Username); err != nil {
			d.log.Warn().Err(err).Str("username", job.Username).Msg("failed to set resend marker")
		}
	}
	d.enqueue(job)
	return nil
}

func (d *Dispatcher) enqueue(job ports.DeliveryJob) {
	idx := d.shardIndex(job.Username)
	d.workers[idx] <- job
	metrics.ResendQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
}

// shardIndex maps a username deterministically to a worker index.
func (d *Dispatcher) shardIndex(username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.DeliveryJob) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			metrics.ResendQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(ch)))
			d.process(ctx, id, job)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, workerID int, job ports.DeliveryJob) {
	err := d.sender.SendVerificationEmail(ctx, job.Email, job.Username, job.Code)
	if err == nil {
		metrics.EmailDeliveriesTotal.WithLabelValues("sent", "retry").Inc()
		if d.marker != nil {
			if cerr := d.marker.Clear(ctx, job.Username); cerr != nil {
				d.log.Warn().Err(cerr).Str("username", job.Username).Msg("failed to clear resend marker")
			}
		}
		d.log.Info().
			Str("job_id", job.ID).
			Str("username", job.Username).
			Int("attempt", job.Attempt).
			Msg("verification email delivered on retry")
		return
	}

	metrics.EmailDeliveriesTotal.WithLabelValues("failed", "retry").Inc()
	d.log.Error().Err(err).
		Str("job_id", job.ID).
		Str("username", job.Username).
		Int("attempt", job.Attempt).
		Int("worker_id", workerID).
		Msg("verification email retry failed")

	if job.Attempt >= d.maxAttempts {
		// The marker stays until the code window closes; the registrant can
		// always re-register for a fresh code.
		d.log.Warn().Str("username", job.Username).Msg("delivery retries exhausted")
		return
	}

	next := job
	next.Attempt++
	time.AfterFunc(d.retryDelay, func() {
		d.enqueue(next)
	})
}
