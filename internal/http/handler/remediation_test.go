package handler_test

import (
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	httprouter "expensehq.app/web/internal/http/router"
)

var _ = Describe("Remediation", func() {
	var b *browser

	BeforeEach(func() {
		engine := newEngine()
		httprouter.SetupRemediation(engine, []string{"SUPABASE_URL", "SUPABASE_ANON_KEY"})
		b = &browser{handler: engine}
	})

	It("renders the configuration page for every page route", func() {
		for _, target := range []string{"/", "/auth/callback?code=x", "/anything"} {
			w := b.get(target)

			Expect(w.Code).To(Equal(http.StatusServiceUnavailable), target)
			Expect(w.Body.String()).To(ContainSubstring("Supabase configuration required"))
			Expect(w.Body.String()).To(ContainSubstring("SUPABASE_ANON_KEY"))
		}
	})

	It("names a single missing value in the singular", func() {
		engine := newEngine()
		httprouter.SetupRemediation(engine, []string{"SUPABASE_URL"})
		b = &browser{handler: engine}

		body := b.get("/").Body.String()

		Expect(body).To(ContainSubstring("Environment variable <code>SUPABASE_URL</code> is missing."))
		Expect(body).NotTo(ContainSubstring("variables"))
	})

	It("names several missing values in the plural", func() {
		Expect(b.get("/").Body.String()).To(ContainSubstring(
			"Environment variables <code>SUPABASE_URL</code> and <code>SUPABASE_ANON_KEY</code> are missing."))
	})

	It("answers posts the same way", func() {
		w := b.postForm("/login", nil)

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		Expect(w.Body.String()).To(ContainSubstring("Supabase configuration required"))
	})

	It("answers the API and health check with JSON", func() {
		for _, target := range []string{"/api/v1/session", "/health"} {
			w := httptest.NewRecorder()
			b.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))

			Expect(w.Code).To(Equal(http.StatusServiceUnavailable), target)
			Expect(decode(w)).To(HaveKeyWithValue("status", "unconfigured"))
		}
	})

	It("does not set a session cookie", func() {
		b.get("/")

		Expect(b.cookie).To(BeNil())
	})
})
