package session_test

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"expensehq.app/web/internal/model"
	"expensehq.app/web/internal/session"
)

func storeBehaves(newStore func() session.Store) {
	var (
		ctx   context.Context
		store session.Store
		key   string
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore()
		key = uuid.NewString()
	})

	It("reports a missing key as ErrNotFound", func() {
		_, err := store.Get(ctx, key)
		Expect(err).To(MatchError(session.ErrNotFound))
	})

	It("round-trips the identity and verifier", func() {
		identity := &model.Identity{
			UserID:       "user-1",
			Email:        "a@example.com",
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		}
		Expect(store.Save(ctx, key, session.Record{Identity: identity, CodeVerifier: "verifier"})).To(Succeed())

		rec, err := store.Get(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.CodeVerifier).To(Equal("verifier"))
		Expect(rec.Identity).NotTo(BeNil())
		Expect(rec.Identity.Email).To(Equal("a@example.com"))
		Expect(rec.Identity.ExpiresAt.Equal(identity.ExpiresAt)).To(BeTrue())
	})

	It("forgets deleted keys", func() {
		Expect(store.Save(ctx, key, session.Record{CodeVerifier: "v"})).To(Succeed())
		Expect(store.Delete(ctx, key)).To(Succeed())

		_, err := store.Get(ctx, key)
		Expect(err).To(MatchError(session.ErrNotFound))
		Expect(store.Delete(ctx, key)).To(Succeed())
	})
}

var _ = Describe("MemoryStore", func() {
	storeBehaves(func() session.Store { return session.NewMemoryStore(time.Hour) })

	It("does not share the stored identity with callers", func() {
		ctx := context.Background()
		store := session.NewMemoryStore(time.Hour)
		identity := &model.Identity{Email: "a@example.com"}
		Expect(store.Save(ctx, "k", session.Record{Identity: identity})).To(Succeed())

		identity.Email = "changed@example.com"
		rec, err := store.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Identity.Email).To(Equal("a@example.com"))
	})

	It("expires entries after the ttl", func() {
		ctx := context.Background()
		store := session.NewMemoryStore(time.Nanosecond)
		Expect(store.Save(ctx, "k", session.Record{CodeVerifier: "v"})).To(Succeed())

		Eventually(func() error {
			_, err := store.Get(ctx, "k")
			return err
		}).Should(MatchError(session.ErrNotFound))
	})
})

var _ = Describe("RedisStore", func() {
	var client *redis.Client

	BeforeEach(func() {
		url := os.Getenv("TEST_REDIS_URL")
		if url == "" {
			Skip("TEST_REDIS_URL not set")
		}
		opts, err := redis.ParseURL(url)
		Expect(err).NotTo(HaveOccurred())
		client = redis.NewClient(opts)
		DeferCleanup(client.Close)
	})

	storeBehaves(func() session.Store {
		return session.NewRedisStore(client, "expensehq:test:", time.Minute)
	})
})
