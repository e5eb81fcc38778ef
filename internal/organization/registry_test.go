package organization_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/backend/backendtest"
	"expensehq.app/web/internal/model"
	"expensehq.app/web/internal/organization"
)

func names(orgs []model.Organization) []string {
	out := make([]string, 0, len(orgs))
	for _, org := range orgs {
		out = append(out, org.Slug)
	}
	return out
}

var _ = Describe("Registry", func() {
	var (
		ctx      context.Context
		fake     *backendtest.Fake
		identity model.Identity
		changes  []*model.Organization
		registry *organization.Registry
	)

	newRegistry := func() *organization.Registry {
		return organization.NewRegistry(fake.Handle().Data(), identity, func(org *model.Organization) {
			changes = append(changes, org)
		})
	}

	BeforeEach(func() {
		ctx = context.Background()
		fake = backendtest.New()
		identity = fake.SignIn("owner@example.com")
		changes = nil
		registry = newRegistry()
	})

	Describe("Create", func() {
		It("makes the caller owner of exactly one new organization", func() {
			Expect(registry.Mount(ctx)).To(Succeed())

			Expect(registry.Create(ctx, "Acme Corp", "acme")).To(Succeed())

			orgs := registry.Organizations()
			Expect(orgs).To(HaveLen(1))
			Expect(orgs[0].Name).To(Equal("Acme Corp"))
			Expect(orgs[0].Slug).To(Equal("acme"))
			Expect(orgs[0].Role).To(Equal(model.RoleOwner))
			name, slug := registry.Inputs()
			Expect(name).To(BeEmpty())
			Expect(slug).To(BeEmpty())
			Expect(fake.Calls["list_memberships"]).To(Equal(2))
		})

		It("lowercases the slug", func() {
			Expect(registry.Create(ctx, "Acme", "  ACME ")).To(Succeed())
			Expect(names(registry.Organizations())).To(Equal([]string{"acme"}))
		})

		It("derives a blank slug from the name", func() {
			Expect(registry.Create(ctx, "Beta Labs, Inc.", "")).To(Succeed())
			Expect(names(registry.Organizations())).To(Equal([]string{"beta-labs-inc"}))
		})

		It("keeps the inputs and shows the backend message on failure", func() {
			Expect(registry.Create(ctx, "Acme", "acme")).To(Succeed())

			err := registry.Create(ctx, "Acme Again", "acme")

			Expect(backend.IsKind(err, backend.KindMutation)).To(BeTrue())
			Expect(registry.Message()).To(Equal(`duplicate key value violates unique constraint "organizations_slug_key"`))
			name, slug := registry.Inputs()
			Expect(name).To(Equal("Acme Again"))
			Expect(slug).To(Equal("acme"))
			Expect(registry.Organizations()).To(HaveLen(1))
		})

		It("requires a name", func() {
			Expect(registry.Create(ctx, "  ", "x")).To(MatchError(organization.ErrNameRequired))
			Expect(registry.Message()).To(Equal(organization.NameRequiredMessage))
			Expect(fake.Calls["create_organization"]).To(BeZero())
		})

		It("rejects a second create while one is in flight", func() {
			release := make(chan struct{})
			started := make(chan struct{})
			fake.Before["create_organization"] = func(context.Context) {
				close(started)
				<-release
			}

			done := make(chan error, 1)
			go func() { done <- registry.Create(ctx, "Acme", "acme") }()
			Eventually(started).Should(BeClosed())

			Expect(registry.Creating()).To(BeTrue())
			Expect(registry.Create(ctx, "Acme", "acme")).To(MatchError(organization.ErrCreateInFlight))

			close(release)
			Eventually(done).Should(Receive(BeNil()))
			Expect(registry.Creating()).To(BeFalse())
			Expect(fake.Calls["create_organization"]).To(Equal(1))
		})
	})

	Describe("Load", func() {
		It("orders owned organizations by name", func() {
			Expect(registry.Create(ctx, "Beta", "beta")).To(Succeed())
			Expect(registry.Create(ctx, "Acme", "acme")).To(Succeed())

			Expect(names(registry.BackendOrder())).To(Equal([]string{"acme", "beta"}))
			Expect(registry.Active().Slug).To(Equal("acme"))
		})

		It("lists owned organizations before memberships", func() {
			other := fake.SignIn("other@example.com")
			otherRegistry := organization.NewRegistry(fake.Handle().Data(), other, nil)
			Expect(otherRegistry.Create(ctx, "Aardvark", "aardvark")).To(Succeed())
			fake.AddMember(otherRegistry.Active().ID, identity.UserID, false)
			Expect(registry.Create(ctx, "Zulu", "zulu")).To(Succeed())

			orgs := registry.BackendOrder()
			Expect(names(orgs)).To(Equal([]string{"zulu", "aardvark"}))
			Expect(orgs[1].Role).To(Equal(model.RoleMember))
		})

		It("keeps the stale list next to the verbatim error", func() {
			Expect(registry.Create(ctx, "Acme", "acme")).To(Succeed())
			fake.Fail["list_memberships"] = &backend.Error{Kind: backend.KindQuery, Message: "permission denied for view organization_members_view"}

			Expect(registry.Load(ctx)).NotTo(Succeed())

			Expect(registry.Message()).To(Equal("permission denied for view organization_members_view"))
			Expect(names(registry.Organizations())).To(Equal([]string{"acme"}))
		})

		It("runs once on mount", func() {
			Expect(registry.Mount(ctx)).To(Succeed())
			Expect(registry.Mount(ctx)).To(Succeed())
			Expect(fake.Calls["list_memberships"]).To(Equal(1))
		})
	})

	Describe("Select", func() {
		BeforeEach(func() {
			Expect(registry.Create(ctx, "Acme", "acme")).To(Succeed())
			Expect(registry.Create(ctx, "Beta", "beta")).To(Succeed())
			changes = nil
		})

		It("shows the selected organization first without touching backend order", func() {
			beta := registry.BackendOrder()[1]

			Expect(registry.Select(beta.ID)).To(Succeed())

			Expect(registry.Active().ID).To(Equal(beta.ID))
			Expect(names(registry.Organizations())).To(Equal([]string{"beta", "acme"}))
			Expect(names(registry.BackendOrder())).To(Equal([]string{"acme", "beta"}))
			Expect(changes).To(HaveLen(1))
			Expect(changes[0].ID).To(Equal(beta.ID))
		})

		It("does not notify when the active organization is unchanged", func() {
			Expect(registry.Select(registry.Active().ID)).To(Succeed())
			Expect(changes).To(BeEmpty())
		})

		It("rejects unknown ids", func() {
			Expect(registry.Select("org-404")).To(MatchError(organization.ErrUnknownOrganization))
		})

		It("is forgotten by a reload", func() {
			Expect(registry.Select(registry.BackendOrder()[1].ID)).To(Succeed())

			reloaded := newRegistry()
			Expect(reloaded.Mount(ctx)).To(Succeed())
			Expect(names(reloaded.Organizations())).To(Equal([]string{"acme", "beta"}))

			Expect(registry.Load(ctx)).To(Succeed())
			Expect(names(registry.Organizations())).To(Equal([]string{"acme", "beta"}))
		})
	})

	It("has no active organization when the user belongs to none", func() {
		Expect(registry.Mount(ctx)).To(Succeed())
		Expect(registry.Active()).To(BeNil())
		Expect(registry.Organizations()).To(BeEmpty())
		Expect(changes).To(BeEmpty())
	})
})
