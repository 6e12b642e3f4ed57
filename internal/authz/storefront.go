package authz

import (
	"net/http"

	"github.com/go-storefront-auth/internal/domain"
)

// StorefrontEntries is the route table of the storefront API.
func StorefrontEntries() []Entry {
	return []Entry{
		// Admin credential flows.
		Public("/api/admin/register"),
		Public("/api/admin/login"),
		Public("/api/admin/confirm/**"),
		Public("/api/admin/reject/**"),
		Public("/api/admin/forgot-password"),
		Public("/api/admin/verify-otp"),
		Public("/api/admin/reset-password"),

		// User credential flows.
		Public("/api/user/register"),
		Public("/api/user/login"),
		Public("/api/user/verify-otp"),
		Public("/api/user/forgot-password"),
		Public("/api/user/verify-reset-otp"),
		Public("/api/user/reset-password"),

		// Catalog reads.
		Public("/api/items/all"),
		Public("/api/items/category/**"),
		Public("/api/items/search"),
		Public("/api/items/{id}", http.MethodGet),
		Public("/api/reviews/item/**"),
		Public("/api/contact/submit"),
		Public("/uploads/**"),
		Public("/health-check/**"),

		RequireRole(domain.RoleAdmin, "/api/admin/**"),
		RequireRole(domain.RoleAdmin, "/api/items/add"),
		RequireRole(domain.RoleAdmin, "/api/items/update/**"),
		RequireRole(domain.RoleAdmin, "/api/items/delete/**"),

		RequireRole(domain.RoleUser, "/api/user/**"),
		RequireRole(domain.RoleUser, "/api/orders/**"),
		RequireRole(domain.RoleUser, "/api/reviews/add"),
	}
}

// StorefrontPolicy compiles StorefrontEntries.
func StorefrontPolicy() *Policy {
	return MustPolicy(StorefrontEntries()...)
}
