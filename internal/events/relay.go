package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Relay drains committed outbox rows to Kafka. It claims rows with
// FOR UPDATE SKIP LOCKED so multiple instances can run concurrently without
// double-publishing, and only marks rows published after the produce is
// acknowledged. A crash between produce and mark re-publishes the row, so
// consumers must tolerate duplicates (events carry stable ids).
type Relay struct {
	pool      *pgxpool.Pool
	client    *kgo.Client
	topic     string
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

func NewRelay(pool *pgxpool.Pool, client *kgo.Client, topic string, logger *slog.Logger) *Relay {
	return &Relay{
		pool:      pool,
		client:    client,
		topic:     topic,
		logger:    logger,
		interval:  time.Second,
		batchSize: 100,
	}
}

// NewKafkaClient builds the producer client the relay publishes with.
func NewKafkaClient(brokers []string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates the identity events topic if it does not exist yet.
func (r *Relay) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(r.client)
	resp, err := adm.CreateTopics(ctx, 1, 1, nil, r.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", r.topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// Run polls the outbox until the context is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := r.relayBatch(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				r.logger.ErrorContext(ctx, "outbox relay batch failed", "error", err)
				continue
			}
			if n > 0 {
				r.logger.DebugContext(ctx, "relayed identity events", "count", n)
			}
		}
	}
}

func (r *Relay) relayBatch(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin relay tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id::text, address, payload
		FROM identity_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim outbox rows: %w", err)
	}

	var (
		ids     []string
		records []*kgo.Record
	)
	for rows.Next() {
		var (
			id      string
			address string
			payload []byte
		)
		if err := rows.Scan(&id, &address, &payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox row: %w", err)
		}
		ids = append(ids, id)
		// Keying by address keeps per-address event order within a partition.
		records = append(records, &kgo.Record{
			Topic: r.topic,
			Key:   []byte(address),
			Value: payload,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox rows: %w", err)
	}
	if len(records) == 0 {
		return 0, tx.Commit(ctx)
	}

	if err := r.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return 0, fmt.Errorf("produce identity events: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE identity_outbox SET published_at = now() WHERE id = ANY($1::uuid[])
	`, ids); err != nil {
		return 0, fmt.Errorf("mark outbox rows published: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit relay tx: %w", err)
	}
	return len(records), nil
}
