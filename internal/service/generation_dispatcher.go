package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"quiztube/internal/cache"
	"quiztube/internal/config"
	"quiztube/internal/domain"
	"quiztube/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	jobPollInterval = 500 * time.Millisecond
	// localJobRetention keeps finished jobs answerable without Redis for a while.
	localJobRetention = 10 * time.Minute
)

type jobEntry struct {
	job  domain.GenerationJob
	req  domain.GenerateRequest
	err  error
	done chan struct{}
}

// GenerationDispatcher runs quiz generation on a fixed pool of workers fed by a bounded queue.
// Job state is mirrored into Redis so any instance can report it.
type GenerationDispatcher struct {
	generator QuizGenerator
	cache     domain.Cache
	jobTTL    time.Duration
	logger    *zap.Logger

	queue chan *jobEntry
	group *errgroup.Group

	// runCtx is detached from every caller; it is cancelled only when Shutdown gives up waiting.
	runCtx    context.Context
	cancelRun context.CancelFunc

	mu     sync.Mutex
	jobs   map[string]*jobEntry
	closed bool
}

func NewGenerationDispatcher(generator QuizGenerator, c domain.Cache, cfg *config.Config, logger *zap.Logger) *GenerationDispatcher {
	workers := cfg.Pipeline.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.Pipeline.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d := &GenerationDispatcher{
		generator: generator,
		cache:     c,
		jobTTL:    cfg.CacheTTLs.Job,
		logger:    logger,
		queue:     make(chan *jobEntry, queueSize),
		group:     &errgroup.Group{},
		runCtx:    runCtx,
		cancelRun: cancel,
		jobs:      make(map[string]*jobEntry),
	}
	for i := 0; i < workers; i++ {
		d.group.Go(func() error {
			d.worker()
			return nil
		})
	}
	logger.Info("Generation dispatcher started", zap.Int("workers", workers), zap.Int("queue_size", queueSize))
	return d
}

// Submit enqueues a generation job. It never blocks on a full queue.
func (d *GenerationDispatcher) Submit(ctx context.Context, req domain.GenerateRequest) (*domain.GenerationJob, error) {
	now := time.Now().UTC()
	entry := &jobEntry{
		job: domain.GenerationJob{
			ID:        util.NewULID(),
			OwnerID:   req.OwnerID,
			VideoURL:  req.VideoURL,
			State:     domain.JobQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		req:  req,
		done: make(chan struct{}),
	}

	// Stored before enqueueing so a worker's "running" write can never be overwritten by "queued".
	d.persist(ctx, &entry.job)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.forget(ctx, entry.job.ID)
		return nil, domain.NewInternalError("generation dispatcher is shutting down", nil)
	}
	select {
	case d.queue <- entry:
		d.jobs[entry.job.ID] = entry
	default:
		d.mu.Unlock()
		d.forget(ctx, entry.job.ID)
		err := domain.NewInternalError("generation queue is full", nil)
		err.Retryable = true
		return nil, err.WithContext("retryable", true)
	}
	snapshot := entry.job
	d.mu.Unlock()

	d.logger.Info("Generation job queued", zap.String("job_id", snapshot.ID), zap.String("owner_id", snapshot.OwnerID))
	return &snapshot, nil
}

// Status returns the current state of a job.
func (d *GenerationDispatcher) Status(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	d.mu.Lock()
	if entry, ok := d.jobs[jobID]; ok {
		snapshot := entry.job
		d.mu.Unlock()
		return &snapshot, nil
	}
	d.mu.Unlock()

	if d.cache == nil {
		return nil, domain.NewNotFoundError("generation job not found")
	}
	fields, err := d.cache.HGetAll(ctx, cache.JobKey(jobID))
	if err != nil {
		return nil, domain.NewInternalError("failed to read generation job", err)
	}
	if len(fields) == 0 {
		return nil, domain.NewNotFoundError("generation job not found")
	}
	return decodeJob(fields), nil
}

// Wait blocks until the job is terminal or ctx is done. A failed job returns its error.
func (d *GenerationDispatcher) Wait(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	d.mu.Lock()
	entry, local := d.jobs[jobID]
	d.mu.Unlock()

	if local {
		select {
		case <-entry.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		snapshot := entry.job
		if entry.err != nil {
			return &snapshot, entry.err
		}
		return &snapshot, nil
	}

	// Job submitted to another instance, or finished long ago.
	ticker := time.NewTicker(jobPollInterval)
	defer ticker.Stop()
	for {
		job, err := d.Status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.State.Terminal() {
			if job.State == domain.JobFailed {
				return job, jobError(job)
			}
			return job, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Shutdown stops accepting jobs and waits for queued and running ones to finish.
// When ctx expires first, running pipelines are cancelled.
func (d *GenerationDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		d.cancelRun()
		d.logger.Info("Generation dispatcher drained")
		return nil
	case <-ctx.Done():
		d.cancelRun()
		<-drained
		d.logger.Warn("Generation dispatcher shutdown deadline hit; running jobs cancelled")
		return ctx.Err()
	}
}

func (d *GenerationDispatcher) worker() {
	for entry := range d.queue {
		d.run(entry)
	}
}

func (d *GenerationDispatcher) run(entry *jobEntry) {
	jobID := entry.job.ID
	log := d.logger.With(zap.String("job_id", jobID))

	d.update(entry, func(job *domain.GenerationJob) { job.State = domain.JobRunning })

	quiz, err := d.generator.Generate(withJobID(d.runCtx, jobID), entry.req)
	if err == nil && quiz == nil {
		err = domain.NewInternalError("generation produced no quiz", nil)
	}

	d.update(entry, func(job *domain.GenerationJob) {
		if err != nil {
			job.State = domain.JobFailed
			applyJobError(job, err)
			return
		}
		job.State = domain.JobSucceeded
		job.QuizID = quiz.ID
	})

	d.mu.Lock()
	entry.err = err
	d.mu.Unlock()
	close(entry.done)
	time.AfterFunc(localJobRetention, func() {
		d.mu.Lock()
		delete(d.jobs, jobID)
		d.mu.Unlock()
	})

	if err != nil {
		log.Warn("Generation job failed", zap.Error(err))
		return
	}
	log.Info("Generation job succeeded", zap.String("quiz_id", quiz.ID))
}

func (d *GenerationDispatcher) update(entry *jobEntry, mutate func(job *domain.GenerationJob)) {
	d.mu.Lock()
	mutate(&entry.job)
	entry.job.UpdatedAt = time.Now().UTC()
	snapshot := entry.job
	d.mu.Unlock()

	d.persist(d.runCtx, &snapshot)
}

// persist mirrors a job into Redis. Failures are logged; the in-process copy stays authoritative.
func (d *GenerationDispatcher) persist(ctx context.Context, job *domain.GenerationJob) {
	if d.cache == nil {
		return
	}
	// Status writes must survive a caller that has already gone away.
	ctx = context.WithoutCancel(ctx)
	key := cache.JobKey(job.ID)
	if err := d.cache.HSet(ctx, key, encodeJob(job)); err != nil {
		d.logger.Warn("Failed to store generation job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if d.jobTTL > 0 {
		if err := d.cache.Expire(ctx, key, d.jobTTL); err != nil {
			d.logger.Warn("Failed to set generation job TTL", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func (d *GenerationDispatcher) forget(ctx context.Context, jobID string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Delete(context.WithoutCancel(ctx), cache.JobKey(jobID)); err != nil {
		d.logger.Warn("Failed to remove rejected generation job", zap.String("job_id", jobID), zap.Error(err))
	}
}

func applyJobError(job *domain.GenerationJob, err error) {
	if domainErr, ok := domain.AsDomainError(err); ok {
		job.ErrorCode = domainErr.Code
		job.ErrorMessage = domainErr.Message
		job.Stage = domainErr.Stage
		job.Retryable = domainErr.Retryable
		return
	}
	job.ErrorCode = domain.ErrInternal
	job.ErrorMessage = "internal error"
}

// jobError rebuilds the client-facing error of a failed job read back from Redis.
func jobError(job *domain.GenerationJob) error {
	code := job.ErrorCode
	if code == "" {
		code = domain.ErrInternal
	}
	err := domain.NewError(code, job.ErrorMessage, nil)
	err.Stage = job.Stage
	err.Retryable = job.Retryable
	return err
}

func encodeJob(job *domain.GenerationJob) map[string]string {
	return map[string]string{
		"id":            job.ID,
		"owner_id":      job.OwnerID,
		"video_url":     job.VideoURL,
		"state":         string(job.State),
		"quiz_id":       job.QuizID,
		"error_code":    string(job.ErrorCode),
		"error_message": job.ErrorMessage,
		"stage":         string(job.Stage),
		"retryable":     strconv.FormatBool(job.Retryable),
		"created_at":    job.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    job.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func decodeJob(fields map[string]string) *domain.GenerationJob {
	job := &domain.GenerationJob{
		ID:           fields["id"],
		OwnerID:      fields["owner_id"],
		VideoURL:     fields["video_url"],
		State:        domain.JobState(fields["state"]),
		QuizID:       fields["quiz_id"],
		ErrorCode:    domain.ErrorCode(fields["error_code"]),
		ErrorMessage: fields["error_message"],
		Stage:        domain.Stage(fields["stage"]),
	}
	job.Retryable, _ = strconv.ParseBool(fields["retryable"])
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return job
}
