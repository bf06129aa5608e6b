//go:build integration

package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"juicyid/pkg/testutil/containers"
)

const relayTestTopic = "identity.events.test"

type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	pool     *pgxpool.Pool
	producer *kgo.Client
	relay    *Relay
	outbox   *PostgresStore
	broker   string
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	ctx := context.Background()
	mgr := containers.GetManager()

	s.postgres = mgr.GetPostgres(s.T())
	s.broker = mgr.GetRedpanda(s.T()).Broker

	pool, err := pgxpool.New(ctx, s.postgres.DSN)
	s.Require().NoError(err)
	s.pool = pool

	producer, err := NewKafkaClient([]string{s.broker})
	s.Require().NoError(err)
	s.producer = producer

	s.relay = NewRelay(pool, producer, relayTestTopic, slog.Default())
	s.Require().NoError(s.relay.EnsureTopic(ctx))

	s.outbox = NewPostgresStore(s.postgres.DB)
}

func (s *RelaySuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "identity_outbox"))
}

func (s *RelaySuite) TestRelayPublishesOutboxRows() {
	ctx := context.Background()
	publisher := NewPublisher(s.outbox)

	want := IdentityChanged{
		Address:    "0x1111111111111111111111111111111111111111",
		Emoji:      "🍊",
		Username:   "alice",
		Change:     ChangeCreated,
		OccurredAt: time.Now().UTC(),
	}
	s.Require().NoError(publisher.Emit(ctx, want))

	n, err := s.relay.relayBatch(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	s.Run("published rows are not republished", func() {
		n, err := s.relay.relayBatch(ctx)
		s.Require().NoError(err)
		s.Zero(n)
	})

	s.Run("the event arrives keyed by address", func() {
		consumer, err := kgo.NewClient(
			kgo.SeedBrokers(s.broker),
			kgo.ConsumeTopics(relayTestTopic),
			kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		)
		s.Require().NoError(err)
		defer consumer.Close()

		fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()

		fetches := consumer.PollFetches(fetchCtx)
		s.Require().NoError(fetches.Err())

		records := fetches.Records()
		s.Require().NotEmpty(records)

		record := records[len(records)-1]
		s.Equal(want.Address, string(record.Key))

		var got IdentityChanged
		s.Require().NoError(json.Unmarshal(record.Value, &got))
		s.Equal(want.Address, got.Address)
		s.Equal(want.Change, got.Change)
		s.NotEmpty(got.ID)
	})
}

func (s *RelaySuite) TestRelayBatchEmptyOutbox() {
	n, err := s.relay.relayBatch(context.Background())
	s.Require().NoError(err)
	s.Zero(n)
}
