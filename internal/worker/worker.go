package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/bobarin/interject/internal/queue"
	"github.com/bobarin/interject/internal/session"
)

// JobSource is the blocking job list the worker drains.
type JobSource interface {
	Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*queue.Job, error)
}

type Worker struct {
	queue      JobSource
	queueName  string
	sessions   *session.Manager
	answerer   *session.Answerer
	jobTimeout time.Duration
}

func New(q JobSource, queueName string, sessions *session.Manager, answerer *session.Answerer, jobTimeout time.Duration) *Worker {
	if jobTimeout <= 0 {
		jobTimeout = 2 * time.Minute
	}
	return &Worker{
		queue:      q,
		queueName:  queueName,
		sessions:   sessions,
		answerer:   answerer,
		jobTimeout: jobTimeout,
	}
}

// Start begins processing answer jobs and blocks until ctx is done.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	log.Printf("[Worker] Started with concurrency %d on %s", concurrency, w.queueName)

	for i := 0; i < concurrency; i++ {
		go w.processQueue(ctx, w.queueName, w.handleAnswer)
	}

	<-ctx.Done()
	log.Println("[Worker] Shutting down...")
}

func (w *Worker) processQueue(ctx context.Context, queueName string, handler func(context.Context, *queue.Job) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, queueName, 5*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[Worker] Error dequeuing from %s: %v", queueName, err)
				time.Sleep(time.Second)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			log.Printf("[Worker] Processing job %s (type: %s, session: %s, question: %s)", job.ID, job.Type, job.SessionID, job.QuestionID)

			if err := handler(ctx, job); err != nil {
				log.Printf("[Worker] Job %s failed: %v", job.ID, err)
			} else {
				log.Printf("[Worker] Job %s completed successfully", job.ID)
			}
		}
	}
}

// handleAnswer runs the answer pipeline for one question under the job timeout.
// A cancelled question is not a failure.
func (w *Worker) handleAnswer(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAnswer {
		return fmt.Errorf("unknown job type %q", job.Type)
	}

	s, err := w.sessions.Get(job.SessionID)
	if err != nil {
		return fmt.Errorf("session %s: %w", job.SessionID, err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	err = w.answerer.Answer(jobCtx, s, job.QuestionID)
	if errors.Is(err, session.ErrQuestionCancelled) {
		log.Printf("[Worker] Question %s was cancelled", job.QuestionID)
		return nil
	}
	return err
}
