package handler_test

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"expensehq.app/web/internal/app"
	"expensehq.app/web/internal/auth"
	"expensehq.app/web/internal/backend/backendtest"
	"expensehq.app/web/internal/http/dto"
	"expensehq.app/web/internal/http/middleware"
	httprouter "expensehq.app/web/internal/http/router"
	"expensehq.app/web/internal/http/view"
	"expensehq.app/web/internal/session"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	tmpl, err := view.Templates()
	Expect(err).NotTo(HaveOccurred())
	engine.SetHTMLTemplate(tmpl)
	return engine
}

// newServer wires the configured routes against an in-memory backend.
func newServer(fake *backendtest.Fake) (*gin.Engine, *app.Manager) {
	store := session.NewMemoryStore(time.Hour)
	notifier := auth.NewNotifier()
	svc := auth.NewService(fake.Handle(), store, notifier, "http://localhost:8080")
	apps := app.NewManager(fake.Handle(), svc, notifier)

	engine := newEngine()
	httprouter.SetupRoutes(engine, apps, svc, httprouter.RouterConfig{SessionTTL: time.Hour})
	return engine, apps
}

// browser replays the session cookie like a real browser would.
type browser struct {
	handler http.Handler
	cookie  *http.Cookie
}

func (b *browser) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	w := httptest.NewRecorder()
	b.handler.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			b.cookie = c
		}
	}
	return w
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, nil, "")
}

func (b *browser) postForm(target string, values url.Values) *httptest.ResponseRecorder {
	return b.do(http.MethodPost, target, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

func (b *browser) postJSON(target string, v any) *httptest.ResponseRecorder {
	body, err := json.Marshal(v)
	Expect(err).NotTo(HaveOccurred())
	return b.do(http.MethodPost, target, bytes.NewReader(body), "application/json")
}

// page returns the unescaped body of the dashboard or login page.
func (b *browser) page() string {
	w := b.get("/")
	Expect(w.Code).To(Equal(http.StatusOK))
	return html.UnescapeString(w.Body.String())
}

// signIn follows the whole magic link flow for email.
func (b *browser) signIn(fake *backendtest.Fake, email string) {
	w := b.postForm("/login", url.Values{"email": {email}})
	Expect(w.Code).To(Equal(http.StatusSeeOther))

	code := fake.IssueCode(email)
	w = b.get("/auth/callback?code=" + url.QueryEscape(code))
	Expect(w.Code).To(Equal(http.StatusSeeOther))
	Expect(w.Header().Get("Location")).To(Equal("/"))
}

func decode(w *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
	return resp
}

// organizationID looks up the id of the organization with slug through the API.
func (b *browser) organizationID(slug string) string {
	w := b.get("/api/v1/organizations")
	Expect(w.Code).To(Equal(http.StatusOK))

	var resp dto.OrganizationsResponse
	Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
	for _, org := range resp.Organizations {
		if org.Slug == slug {
			return org.ID
		}
	}
	Fail("no organization with slug " + slug)
	return ""
}
