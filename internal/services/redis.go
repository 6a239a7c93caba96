package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"guess-reward-backend/internal/config"
	"guess-reward-backend/internal/models"
)

// RedisService persists snapshots, the event stream, bearer sessions and
// rate-limit counters.
type RedisService struct {
	client *redis.Client
	log    *logrus.Logger

	events chan models.Event
	wg     sync.WaitGroup
	once   sync.Once
}

func NewRedisService(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := &RedisService{
		client: client,
		log:    log,
		events: make(chan models.Event, 1024),
	}
	s.wg.Add(1)
	go s.streamEvents()
	return s, nil
}

// Close drains pending events and closes the client.
func (s *RedisService) Close() error {
	s.once.Do(func() { close(s.events) })
	s.wg.Wait()
	return s.client.Close()
}

func (s *RedisService) StoreUserSession(ctx context.Context, session *models.UserSession, expiry time.Duration) error {
	key := fmt.Sprintf(KeyUserSession, session.Principal, session.SessionID)

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, key, data, expiry).Err()
}

func (s *RedisService) GetUserSession(ctx context.Context, principal models.Principal, sessionID string) (*models.UserSession, error) {
	key := fmt.Sprintf(KeyUserSession, principal, sessionID)

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("session %s not found", sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.UserSession
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	session.LastAccessed = time.Now()
	updated, err := json.Marshal(session)
	if err != nil {
		s.log.WithError(err).WithField("principal", principal).Warn("failed to marshal session")
		return &session, nil
	}
	if err := s.client.Set(ctx, key, updated, redis.KeepTTL).Err(); err != nil {
		s.log.WithError(err).WithField("principal", principal).Warn("failed to refresh session")
	}

	return &session, nil
}

func (s *RedisService) DeleteUserSession(ctx context.Context, principal models.Principal, sessionID string) error {
	key := fmt.Sprintf(KeyUserSession, principal, sessionID)
	return s.client.Del(ctx, key).Err()
}

func (s *RedisService) SaveSnapshot(ctx context.Context, snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, KeySnapshot, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns nil without error when no snapshot was saved yet.
func (s *RedisService) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	data, err := s.client.Get(ctx, KeySnapshot).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

func (s *RedisService) DeleteSnapshot(ctx context.Context) error {
	return s.client.Del(ctx, KeySnapshot).Err()
}

// Publish queues the event for the redis stream. It never blocks; when the
// queue is full the event is dropped and logged.
func (s *RedisService) Publish(event models.Event) {
	defer func() {
		// Publish after Close.
		if recover() != nil {
			s.log.WithField("event", event.Type).Warn("redis event stream closed, event dropped")
		}
	}()

	select {
	case s.events <- event:
	default:
		s.log.WithFields(logrus.Fields{
			"event":    event.Type,
			"sequence": event.Sequence,
		}).Warn("redis event queue full, event dropped")
	}
}

func (s *RedisService) streamEvents() {
	defer s.wg.Done()

	for event := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.AppendEvent(ctx, event); err != nil {
			s.log.WithError(err).WithField("event", event.Type).Error("failed to append event")
		}
		cancel()
	}
}

func (s *RedisService) AppendEvent(ctx context.Context, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: KeyEventStream,
		MaxLen: EventStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":  string(event.Type),
			"event": data,
		},
	}).Err()
}

// RecentEvents reads up to count events from the stream, newest first.
func (s *RedisService) RecentEvents(ctx context.Context, count int64) ([]models.Event, error) {
	if count <= 0 || count > 100 {
		count = 50
	}

	msgs, err := s.client.XRevRangeN(ctx, KeyEventStream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}

	events := make([]models.Event, 0, len(msgs))
	for _, msg := range msgs {
		raw, ok := msg.Values["event"].(string)
		if !ok {
			continue
		}
		var event models.Event
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

var rateLimitScript = redis.NewScript(`
	local count = redis.call("INCR", KEYS[1])
	if count == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return count
`)

// CheckRateLimit counts one action of principal in the current window and
// reports whether it is within limit.
func (s *RedisService) CheckRateLimit(ctx context.Context, principal models.Principal, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, principal, action)

	count, err := rateLimitScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) ClearRateLimit(ctx context.Context, principal models.Principal, action string) error {
	key := fmt.Sprintf(KeyRateLimit, principal, action)
	return s.client.Del(ctx, key).Err()
}
