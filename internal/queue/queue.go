package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/bobarin/interject/internal/models"
)

const (
	JobTypeAnswer = "answer"

	answerQueuePrefix = "queue:answer:"
	eventChannelFmt   = "session:%s:events"
)

// AnswerQueueName is the job list of one API instance. Sessions live in the
// memory of the instance that created them, so each instance drains its own.
func AnswerQueueName(instanceID string) string {
	return answerQueuePrefix + instanceID
}

func eventChannel(sessionID uuid.UUID) string {
	return fmt.Sprintf(eventChannelFmt, sessionID)
}

type Queue struct {
	client *redis.Client
}

type Job struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	SessionID  uuid.UUID `json:"session_id"`
	QuestionID uuid.UUID `json:"question_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, queueName string, job *Job) error {
	job.CreatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, queueName, data).Err()
}

func (q *Queue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, queueName).Result()
	if err == redis.Nil {
		return nil, nil // No job available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (q *Queue) GetQueueLength(ctx context.Context, queueName string) (int64, error) {
	return q.client.LLen(ctx, queueName).Result()
}

// EnqueueAnswer enqueues the work of answering one question
func (q *Queue) EnqueueAnswer(ctx context.Context, queueName string, sessionID, questionID uuid.UUID) error {
	job := &Job{
		ID:         uuid.New(),
		Type:       JobTypeAnswer,
		SessionID:  sessionID,
		QuestionID: questionID,
	}
	return q.Enqueue(ctx, queueName, job)
}

// Notify publishes a session event to everyone watching the session.
func (q *Queue) Notify(ctx context.Context, event *models.SessionEvent) error {
	data, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return q.client.Publish(ctx, eventChannel(event.SessionID), data).Err()
}

// Subscribe streams the events of one session until ctx is done. The channel
// is closed when the subscription ends.
func (q *Queue) Subscribe(ctx context.Context, sessionID uuid.UUID) (<-chan *models.SessionEvent, error) {
	sub := q.client.Subscribe(ctx, eventChannel(sessionID))
	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan *models.SessionEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				event, err := decodeEvent(msg.Payload)
				if err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func decodeEvent(payload string) (*models.SessionEvent, error) {
	var event models.SessionEvent
	if err := sonic.UnmarshalString(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return &event, nil
}
