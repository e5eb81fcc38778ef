package auth_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"expensehq.app/web/internal/auth"
	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/backend/backendtest"
	"expensehq.app/web/internal/model"
	"expensehq.app/web/internal/session"
)

var _ = Describe("Service", func() {
	const key = "browser-1"

	var (
		ctx      context.Context
		fake     *backendtest.Fake
		store    *session.MemoryStore
		notifier *auth.Notifier
		svc      auth.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = backendtest.New()
		store = session.NewMemoryStore(time.Hour)
		notifier = auth.NewNotifier()
		svc = auth.NewService(fake.Handle(), store, notifier, "https://expenses.example.com")
	})

	Describe("SendLoginLink", func() {
		It("sends a PKCE challenge for the verifier kept in the session", func() {
			Expect(svc.SendLoginLink(ctx, key, "a@example.com")).To(Succeed())

			rec, err := store.Get(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.CodeVerifier).To(HaveLen(43))

			sum := sha256.Sum256([]byte(rec.CodeVerifier))
			Expect(fake.SentLinks).To(ConsistOf(backend.LoginLinkRequest{
				Email:         "a@example.com",
				RedirectTo:    "https://expenses.example.com/auth/callback",
				CodeChallenge: base64.RawURLEncoding.EncodeToString(sum[:]),
			}))
		})
	})

	Describe("CompleteLogin", func() {
		var events []auth.SessionEvent

		BeforeEach(func() {
			events = nil
			sub := notifier.Subscribe(key, func(ev auth.SessionEvent) { events = append(events, ev) })
			DeferCleanup(sub.Close)
		})

		It("exchanges the code, stores the session and publishes sign-in", func() {
			Expect(svc.SendLoginLink(ctx, key, "a@example.com")).To(Succeed())
			code := fake.IssueCode("a@example.com")

			identity, err := svc.CompleteLogin(ctx, key, auth.Callback{Code: code})

			Expect(err).NotTo(HaveOccurred())
			Expect(identity.Email).To(Equal("a@example.com"))
			rec, err := store.Get(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Identity.AccessToken).To(Equal(identity.AccessToken))
			Expect(rec.CodeVerifier).To(BeEmpty())
			Expect(events).To(ConsistOf(auth.SessionEvent{Kind: auth.EventSignedIn, Identity: identity}))
		})

		It("verifies a token hash link", func() {
			hash := fake.IssueCode("a@example.com")

			identity, err := svc.CompleteLogin(ctx, key, auth.Callback{TokenHash: hash, Type: "magiclink"})

			Expect(err).NotTo(HaveOccurred())
			Expect(identity.Email).To(Equal("a@example.com"))
			Expect(fake.Calls["verify_token_hash"]).To(Equal(1))
		})

		It("passes the link error through as an auth error", func() {
			_, err := svc.CompleteLogin(ctx, key, auth.Callback{Error: "access_denied", ErrorDescription: "Email link is invalid or has expired"})

			Expect(backend.Message(err)).To(Equal("Email link is invalid or has expired"))
			Expect(backend.IsKind(err, backend.KindAuth)).To(BeTrue())
			Expect(fake.CallCount()).To(BeZero())
			Expect(events).To(BeEmpty())
		})

		It("rejects a link without a code", func() {
			_, err := svc.CompleteLogin(ctx, key, auth.Callback{})
			Expect(err).To(MatchError(auth.ErrMissingCode))
		})

		It("does not store anything for a spent code", func() {
			code := fake.IssueCode("a@example.com")
			_, err := svc.CompleteLogin(ctx, key, auth.Callback{Code: code})
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Delete(ctx, key)).To(Succeed())

			_, err = svc.CompleteLogin(ctx, key, auth.Callback{Code: code})

			Expect(backend.Message(err)).To(Equal("Email link is invalid or has expired"))
			_, err = store.Get(ctx, key)
			Expect(err).To(MatchError(session.ErrNotFound))
		})
	})

	Describe("Current", func() {
		It("returns nil without a stored session", func() {
			identity, err := svc.Current(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(identity).To(BeNil())
			Expect(fake.CallCount()).To(BeZero())
		})

		It("confirms a live session with the backend", func() {
			signedIn := fake.SignIn("a@example.com")
			Expect(store.Save(ctx, key, session.Record{Identity: &signedIn})).To(Succeed())

			identity, err := svc.Current(ctx, key)

			Expect(err).NotTo(HaveOccurred())
			Expect(identity.UserID).To(Equal(signedIn.UserID))
			Expect(fake.Calls["get_user"]).To(Equal(1))
			Expect(fake.Calls["refresh"]).To(BeZero())
		})

		It("refreshes an expired token once and stores the new session", func() {
			signedIn := fake.SignIn("a@example.com")
			signedIn.ExpiresAt = time.Now().Add(-time.Minute)
			Expect(store.Save(ctx, key, session.Record{Identity: &signedIn})).To(Succeed())

			identity, err := svc.Current(ctx, key)

			Expect(err).NotTo(HaveOccurred())
			Expect(identity.AccessToken).NotTo(Equal(signedIn.AccessToken))
			Expect(fake.Calls["refresh"]).To(Equal(1))
			rec, err := store.Get(ctx, key)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Identity.AccessToken).To(Equal(identity.AccessToken))
		})

		It("refreshes when the backend rejects the token", func() {
			signedIn := fake.SignIn("a@example.com")
			fake.ExpireToken(signedIn.AccessToken)
			Expect(store.Save(ctx, key, session.Record{Identity: &signedIn})).To(Succeed())

			identity, err := svc.Current(ctx, key)

			Expect(err).NotTo(HaveOccurred())
			Expect(identity).NotTo(BeNil())
			Expect(fake.Calls["get_user"]).To(Equal(2))
		})

		It("forgets a session whose refresh token was rejected", func() {
			stale := model.Identity{UserID: "u1", AccessToken: "gone", RefreshToken: "gone", ExpiresAt: time.Now().Add(-time.Minute)}
			Expect(store.Save(ctx, key, session.Record{Identity: &stale})).To(Succeed())

			identity, err := svc.Current(ctx, key)

			Expect(err).NotTo(HaveOccurred())
			Expect(identity).To(BeNil())
			_, err = store.Get(ctx, key)
			Expect(err).To(MatchError(session.ErrNotFound))
		})

		Context("when the auth service is unavailable", func() {
			unavailable := &backend.Error{Kind: backend.KindAuth, Status: http.StatusServiceUnavailable, Message: "upstream unavailable"}

			It("keeps the stored session when the user lookup fails", func() {
				signedIn := fake.SignIn("a@example.com")
				Expect(store.Save(ctx, key, session.Record{Identity: &signedIn})).To(Succeed())
				fake.Fail["get_user"] = unavailable

				identity, err := svc.Current(ctx, key)

				Expect(err).To(MatchError("upstream unavailable"))
				Expect(identity).To(BeNil())
				rec, err := store.Get(ctx, key)
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.Identity.AccessToken).To(Equal(signedIn.AccessToken))
			})

			It("keeps the stored session when the refresh fails", func() {
				signedIn := fake.SignIn("a@example.com")
				signedIn.ExpiresAt = time.Now().Add(-time.Minute)
				Expect(store.Save(ctx, key, session.Record{Identity: &signedIn})).To(Succeed())
				fake.Fail["refresh"] = unavailable

				_, err := svc.Current(ctx, key)

				Expect(err).To(HaveOccurred())
				rec, err := store.Get(ctx, key)
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.Identity.RefreshToken).To(Equal(signedIn.RefreshToken))
			})
		})
	})

	Describe("SignOut", func() {
		It("forgets the session and publishes sign-out even when the backend fails", func() {
			signedIn := fake.SignIn("a@example.com")
			Expect(store.Save(ctx, key, session.Record{Identity: &signedIn})).To(Succeed())
			fake.Fail["sign_out"] = &backend.Error{Kind: backend.KindAuth, Message: "network down"}
			var events []auth.SessionEvent
			sub := notifier.Subscribe(key, func(ev auth.SessionEvent) { events = append(events, ev) })
			defer sub.Close()

			err := svc.SignOut(ctx, key, &signedIn)

			Expect(err).To(MatchError(ContainSubstring("network down")))
			_, getErr := store.Get(ctx, key)
			Expect(getErr).To(MatchError(session.ErrNotFound))
			Expect(events).To(ConsistOf(auth.SessionEvent{Kind: auth.EventSignedOut}))
		})
	})
})
