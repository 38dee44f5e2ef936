package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"advisorjournal/internal/models"
)

// ProgressNotifier receives goal-progress verdicts as soon as each one is known
type ProgressNotifier interface {
	NotifyGoalProgress(ctx context.Context, event models.GoalProgressEvent) error
}

// ProgressSubscriber streams one user's progress events until the returned cancel func is called
type ProgressSubscriber interface {
	SubscribeGoalProgress(ctx context.Context, userID string) (<-chan models.GoalProgressEvent, func(), error)
}

// progressBuffer is how many undelivered events a subscriber may hold
const progressBuffer = 16

// GoalProgressChannel is the Redis channel a user's progress events are published on
func GoalProgressChannel(userID string) string {
	return "journal:user:" + userID + ":goal-progress"
}

// RedisProgressNotifier publishes progress events as JSON over Redis pub/sub
type RedisProgressNotifier struct {
	redis *RedisService
}

// NewRedisProgressNotifier creates a notifier backed by Redis
func NewRedisProgressNotifier(redis *RedisService) *RedisProgressNotifier {
	return &RedisProgressNotifier{redis: redis}
}

// NotifyGoalProgress publishes the event on the user's goal-progress channel
func (n *RedisProgressNotifier) NotifyGoalProgress(ctx context.Context, event models.GoalProgressEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal progress event: %w", err)
	}
	if err := n.redis.Publish(ctx, GoalProgressChannel(event.UserID), payload); err != nil {
		return fmt.Errorf("failed to publish progress event: %w", err)
	}
	return nil
}

// SubscribeGoalProgress listens on the user's channel. Events that fail to decode are skipped.
func (n *RedisProgressNotifier) SubscribeGoalProgress(ctx context.Context, userID string) (<-chan models.GoalProgressEvent, func(), error) {
	pubsub := n.redis.Subscribe(ctx, GoalProgressChannel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to goal progress: %w", err)
	}

	out := make(chan models.GoalProgressEvent, progressBuffer)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var event models.GoalProgressEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("⚠️ [GOALS] Skipping malformed progress event on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case out <- event:
			default:
				log.Printf("⚠️ [GOALS] Dropped progress event for user %s: subscriber is full", userID)
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				log.Printf("⚠️ [GOALS] Failed to close progress subscription: %v", err)
			}
		})
	}, nil
}

// LocalProgressNotifier fans events out to in-process subscribers.
// Used when Redis is not configured, and in tests.
type LocalProgressNotifier struct {
	mu          sync.RWMutex
	subscribers map[string][]chan models.GoalProgressEvent
}

// NewLocalProgressNotifier creates an in-process notifier
func NewLocalProgressNotifier() *LocalProgressNotifier {
	return &LocalProgressNotifier{subscribers: make(map[string][]chan models.GoalProgressEvent)}
}

// Subscribe returns a buffered channel of the user's events and a function that ends the subscription
func (n *LocalProgressNotifier) Subscribe(userID string, buffer int) (<-chan models.GoalProgressEvent, func()) {
	ch := make(chan models.GoalProgressEvent, buffer)

	n.mu.Lock()
	n.subscribers[userID] = append(n.subscribers[userID], ch)
	n.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			subs := n.subscribers[userID]
			for i, c := range subs {
				if c == ch {
					n.subscribers[userID] = append(subs[:i], subs[i+1:]...)
					break
				}
			}
			if len(n.subscribers[userID]) == 0 {
				delete(n.subscribers, userID)
			}
			close(ch)
		})
	}
}

// SubscribeGoalProgress subscribes with the default buffer
func (n *LocalProgressNotifier) SubscribeGoalProgress(_ context.Context, userID string) (<-chan models.GoalProgressEvent, func(), error) {
	events, cancel := n.Subscribe(userID, progressBuffer)
	return events, cancel, nil
}

// NotifyGoalProgress delivers the event to every subscriber of the user without blocking.
// A subscriber whose buffer is full misses the event.
func (n *LocalProgressNotifier) NotifyGoalProgress(_ context.Context, event models.GoalProgressEvent) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ch := range n.subscribers[event.UserID] {
		select {
		case ch <- event:
		default:
			log.Printf("⚠️ [GOALS] Dropped progress event for user %s: subscriber is full", event.UserID)
		}
	}
	return nil
}

var (
	_ ProgressNotifier   = (*RedisProgressNotifier)(nil)
	_ ProgressSubscriber = (*RedisProgressNotifier)(nil)
	_ ProgressNotifier   = (*LocalProgressNotifier)(nil)
	_ ProgressSubscriber = (*LocalProgressNotifier)(nil)
)
