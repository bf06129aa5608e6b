//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"juicyid/internal/session/store"
	"juicyid/pkg/platform/sentinel"
	"juicyid/pkg/testutil/containers"
)

const walletAddr = "0xabcdef0000000000000000000000000000000001"

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *store.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = store.NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSaveAndFind() {
	ctx := context.Background()

	s.Require().NoError(s.store.Save(ctx, "token-1", walletAddr, time.Now().Add(time.Hour)))

	addr, err := s.store.FindByToken(ctx, "token-1")
	s.Require().NoError(err)
	s.Equal(walletAddr, addr)
}

func (s *RedisStoreSuite) TestMissingToken() {
	_, err := s.store.FindByToken(context.Background(), "never-saved")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestAlreadyExpiredIsRejectedAtSave() {
	err := s.store.Save(context.Background(), "token-2", walletAddr, time.Now().Add(-time.Minute))
	s.Require().ErrorIs(err, sentinel.ErrExpired)
}

func (s *RedisStoreSuite) TestTTLEviction() {
	ctx := context.Background()

	s.Require().NoError(s.store.Save(ctx, "token-3", walletAddr, time.Now().Add(time.Second)))

	s.Eventually(func() bool {
		_, err := s.store.FindByToken(ctx, "token-3")
		return err != nil
	}, 5*time.Second, 200*time.Millisecond)
}

func (s *RedisStoreSuite) TestDelete() {
	ctx := context.Background()

	s.Require().NoError(s.store.Save(ctx, "token-4", walletAddr, time.Now().Add(time.Hour)))
	s.Require().NoError(s.store.Delete(ctx, "token-4"))

	_, err := s.store.FindByToken(ctx, "token-4")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
