// Package redisqueue provides a Redis-backed inbound message source. Channel
// connectors push received messages onto a Redis list; this source pops them
// and hands them to the engine.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/zapllo/zaptick-sub010/pkg/models"
)

// MessageCallback receives each inbound message popped from the queue.
type MessageCallback func(ctx context.Context, message *models.InboundMessage) error

// Source consumes inbound messages from a Redis list.
type Source struct {
	Connection map[string]string
	Queue      string
	Enabled    bool

	client   redis.UniversalClient
	callback MessageCallback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSource builds a source from config. Expected keys: "queue" (required),
// "connection" with "addr", "password" and "db".
func NewSource(ctx context.Context, config map[string]any, logger *slog.Logger) (*Source, error) {
	queue, _ := config["queue"].(string)

	connectionConfig, _ := config["connection"].(map[string]any)

	connection := make(map[string]string)
	for k, v := range connectionConfig {
		if str, ok := v.(string); ok {
			connection[k] = str
		}
	}

	source := &Source{
		Connection: connection,
		Queue:      queue,
		Enabled:    true,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "redisqueue_source",
			"queue", queue,
		),
	}

	err := source.Validate(ctx)
	if err != nil {
		return nil, err
	}

	return source, nil
}

func (s *Source) Validate(_ context.Context) error {
	if s.Queue == "" {
		return errors.New("redis queue source requires a queue name")
	}

	return nil
}

func (s *Source) Start(ctx context.Context, callback MessageCallback) error {
	if !s.Enabled {
		s.logger.InfoContext(ctx, "Redis queue source is disabled.")

		return nil
	}

	s.logger.InfoContext(ctx, "Starting redis queue source")
	s.callback = callback

	err := s.initializeClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	s.wg.Add(1)

	go s.consume(ctx)

	return nil
}

func (s *Source) initializeClient(ctx context.Context) error {
	addr := s.Connection["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	password := s.Connection["password"]
	db := 0

	if dbStr := s.Connection["db"]; dbStr != "" {
		var err error
		if db, err = s.parseDB(dbStr); err != nil {
			return fmt.Errorf("invalid db value: %w", err)
		}
	}

	s.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return nil
}

func (s *Source) parseDB(dbStr string) (int, error) {
	var db int

	_, err := fmt.Sscanf(dbStr, "%d", &db)

	return db, err
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	s.logger.InfoContext(ctx, "Starting queue consumer", "queue", s.Queue)

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := s.processMessage(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (s *Source) processMessage(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, 1*time.Second, s.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	payload := result[1]

	message, err := ParseMessage([]byte(payload))
	if err != nil {
		s.logger.ErrorContext(ctx, "Dropping malformed inbound message", "error", err)

		return nil
	}

	go func() {
		err := s.callback(ctx, message)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error handling inbound message",
				"message_id", message.ID,
				"error", err)
		}
	}()

	return nil
}

// ParseMessage decodes an inbound message payload, filling in an ID and
// timestamp when the producer omitted them. Tenant and contact identifiers
// are mandatory.
func ParseMessage(payload []byte) (*models.InboundMessage, error) {
	var message models.InboundMessage

	if err := json.Unmarshal(payload, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inbound message: %w", err)
	}

	if message.TenantID == "" {
		return nil, errors.New("inbound message missing tenant_id")
	}

	if message.ContactID == "" {
		return nil, errors.New("inbound message missing contact_id")
	}

	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}

	return &message, nil
}

func (s *Source) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping redis queue source")

	close(s.stopCh)
	s.wg.Wait()

	if s.client != nil {
		err := s.client.Close()
		if err != nil {
			s.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
