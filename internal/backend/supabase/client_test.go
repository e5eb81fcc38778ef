package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/backend/supabase"
	"expensehq.app/web/internal/model"
)

type recordedRequest struct {
	method string
	path   string
	query  map[string][]string
	header http.Header
	body   map[string]any
}

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		client   *supabase.Client
		ctx      context.Context
		recorded []recordedRequest
		respond  func(w http.ResponseWriter, r *http.Request)
		identity model.Identity
	)

	BeforeEach(func() {
		ctx = context.Background()
		recorded = nil
		respond = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}
		identity = model.Identity{UserID: "user-1", Email: "a@example.com", AccessToken: "user-token"}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := recordedRequest{
				method: r.Method,
				path:   r.URL.Path,
				query:  r.URL.Query(),
				header: r.Header.Clone(),
			}
			if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
				Expect(json.Unmarshal(raw, &rec.body)).To(Succeed())
			}
			recorded = append(recorded, rec)
			respond(w, r)
		}))

		var err error
		client, err = supabase.New(backend.Config{URL: server.URL + "/", AnonKey: "anon-key"},
			supabase.WithHTTPClient(server.Client()))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("rejects a service url without a scheme", func() {
		_, err := supabase.New(backend.Config{URL: "not a url", AnonKey: "k"})
		Expect(err).To(HaveOccurred())
	})

	Describe("SendLoginLink", func() {
		It("posts an OTP request with the PKCE challenge and redirect", func() {
			err := client.SendLoginLink(ctx, backend.LoginLinkRequest{
				Email:         "a@example.com",
				RedirectTo:    "http://localhost:8080/auth/callback",
				CodeChallenge: "challenge",
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(recorded).To(HaveLen(1))
			req := recorded[0]
			Expect(req.method).To(Equal(http.MethodPost))
			Expect(req.path).To(Equal("/auth/v1/otp"))
			Expect(req.query["redirect_to"]).To(ConsistOf("http://localhost:8080/auth/callback"))
			Expect(req.header.Get("apikey")).To(Equal("anon-key"))
			Expect(req.header.Get("Authorization")).To(Equal("Bearer anon-key"))
			Expect(req.body).To(HaveKeyWithValue("email", "a@example.com"))
			Expect(req.body).To(HaveKeyWithValue("create_user", true))
			Expect(req.body).To(HaveKeyWithValue("code_challenge", "challenge"))
			Expect(req.body).To(HaveKeyWithValue("code_challenge_method", "s256"))
		})

		It("returns the GoTrue message verbatim as an auth error", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"code":429,"error_code":"over_email_send_rate_limit","msg":"For security purposes, you can only request this after 42 seconds."}`))
			}

			err := client.SendLoginLink(ctx, backend.LoginLinkRequest{Email: "a@example.com"})

			Expect(err).To(HaveOccurred())
			Expect(backend.IsKind(err, backend.KindAuth)).To(BeTrue())
			Expect(backend.Message(err)).To(Equal("For security purposes, you can only request this after 42 seconds."))
			var be *backend.Error
			Expect(err).To(BeAssignableToTypeOf(be))
		})
	})

	Describe("ExchangeCode", func() {
		It("maps the session response to an identity", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_at":1900000000,"user":{"id":"user-1","email":"a@example.com"}}`))
			}

			got, err := client.ExchangeCode(ctx, "code-1", "verifier-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(got.UserID).To(Equal("user-1"))
			Expect(got.Email).To(Equal("a@example.com"))
			Expect(got.AccessToken).To(Equal("at"))
			Expect(got.RefreshToken).To(Equal("rt"))
			Expect(got.ExpiresAt.Unix()).To(Equal(int64(1900000000)))

			req := recorded[0]
			Expect(req.path).To(Equal("/auth/v1/token"))
			Expect(req.query["grant_type"]).To(ConsistOf("pkce"))
			Expect(req.body).To(HaveKeyWithValue("auth_code", "code-1"))
			Expect(req.body).To(HaveKeyWithValue("code_verifier", "verifier-1"))
		})
	})

	Describe("GetUser", func() {
		It("sends the user's bearer token", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"id":"user-1","email":"a@example.com"}`))
			}

			got, err := client.GetUser(ctx, "user-token")

			Expect(err).NotTo(HaveOccurred())
			Expect(got.UserID).To(Equal("user-1"))
			Expect(recorded[0].header.Get("Authorization")).To(Equal("Bearer user-token"))
		})

		It("marks a rejected token as unauthorized", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"invalid JWT"}`))
			}

			_, err := client.GetUser(ctx, "stale")

			Expect(backend.IsUnauthorized(err)).To(BeTrue())
			Expect(backend.Message(err)).To(Equal("invalid JWT"))
		})
	})

	Describe("ListMemberships", func() {
		It("filters by user and orders owners first then by name", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`[
					{"organization_id":"org-1","organization_name":"acme","organization_slug":"acme","user_id":"user-1","is_owner":true},
					{"organization_id":"org-2","organization_name":"beta","organization_slug":"beta","user_id":"user-1","is_owner":false}
				]`))
			}

			rows, err := client.ListMemberships(ctx, identity, "user-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(2))
			Expect(rows[0].IsOwner).To(BeTrue())
			Expect(rows[1].Organization().Role).To(Equal(model.RoleMember))

			req := recorded[0]
			Expect(req.path).To(Equal("/rest/v1/organization_members_view"))
			Expect(req.query["user_id"]).To(ConsistOf("eq.user-1"))
			Expect(req.query["order"]).To(ConsistOf("is_owner.desc,organization_name.asc"))
			Expect(req.header.Get("Authorization")).To(Equal("Bearer user-token"))
		})

		It("returns the PostgREST message verbatim as a query error", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"code":"42P01","details":null,"hint":null,"message":"relation \"public.organization_members_view\" does not exist"}`))
			}

			_, err := client.ListMemberships(ctx, identity, "user-1")

			Expect(backend.IsKind(err, backend.KindQuery)).To(BeTrue())
			Expect(backend.Message(err)).To(Equal(`relation "public.organization_members_view" does not exist`))
		})
	})

	Describe("CreateOrganization", func() {
		It("calls the create_organization procedure", func() {
			Expect(client.CreateOrganization(ctx, identity, "Acme", "acme")).To(Succeed())

			req := recorded[0]
			Expect(req.path).To(Equal("/rest/v1/rpc/create_organization"))
			Expect(req.body).To(Equal(map[string]any{"org_name": "Acme", "org_slug": "acme"}))
		})

		It("returns a mutation error for a duplicate slug", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint \"organizations_slug_key\""}`))
			}

			err := client.CreateOrganization(ctx, identity, "Acme", "acme")

			Expect(backend.IsKind(err, backend.KindMutation)).To(BeTrue())
			var be *backend.Error
			Expect(errors.As(err, &be)).To(BeTrue())
			Expect(be.Code).To(Equal("23505"))
		})
	})

	Describe("InsertExpenseReport", func() {
		It("posts the report scoped to the organization", func() {
			report := model.NewExpenseReport{
				OrganizationID: "org-1",
				Title:          "Flight to SFO",
				SubmittedOn:    model.Date{Year: 2024, Month: 3, Day: 1},
				TotalAmount:    452.10,
				Notes:          "",
			}

			Expect(client.InsertExpenseReport(ctx, identity, report)).To(Succeed())

			req := recorded[0]
			Expect(req.path).To(Equal("/rest/v1/expense_reports"))
			Expect(req.header.Get("Prefer")).To(Equal("return=minimal"))
			Expect(req.body).To(HaveKeyWithValue("organization_id", "org-1"))
			Expect(req.body).To(HaveKeyWithValue("submitted_on", "2024-03-01"))
			Expect(req.body).To(HaveKeyWithValue("total_amount", 452.10))
			Expect(req.body).To(HaveKeyWithValue("notes", ""))
		})
	})

	Describe("ListExpenseReports", func() {
		It("reads the view for one organization newest first", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`[{"id":"r-1","organization_id":"org-1","title":"Flight to SFO","submitted_on":"2024-03-01","total_amount":452.1,"notes":null,"created_at":"2024-03-01T10:00:00.123456+00:00","created_by_email":null}]`))
			}

			rows, err := client.ListExpenseReports(ctx, identity, "org-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].SubmittedOn.String()).To(Equal("2024-03-01"))
			Expect(rows[0].Notes).To(BeNil())
			Expect(rows[0].CreatedByEmail).To(BeNil())

			req := recorded[0]
			Expect(req.path).To(Equal("/rest/v1/expense_reports_view"))
			Expect(req.query["organization_id"]).To(ConsistOf("eq.org-1"))
			Expect(req.query["order"]).To(ConsistOf("submitted_on.desc"))
		})
	})
})
