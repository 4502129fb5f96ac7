package gate

import (
	"testing"

	"github.com/and161185/patient-registry/internal/model"
	"github.com/stretchr/testify/require"
)

func TestDefault_Evaluate(t *testing.T) {
	user := &model.Identity{Username: "user1", Roles: []model.Role{model.RoleUser}}
	admin := &model.Identity{Username: "admin", Roles: []model.Role{model.RoleAdmin, model.RoleUser}}
	adminOnly := &model.Identity{Username: "root", Roles: []model.Role{model.RoleAdmin}}
	g := Default()

	tests := []struct {
		path string
		id   *model.Identity
		want Decision
	}{
		{"/", nil, Allow},
		{"/login", nil, Allow},
		{"/css/main.css", nil, Allow},
		{"/js/app.js", nil, Allow},
		{"/webjars/bootstrap/x.css", nil, Allow},
		{"/metrics", nil, Allow},
		{"/healthz", nil, Allow},

		{"/user/index", nil, Login},
		{"/user/index", user, Allow},
		{"/user/index", admin, Allow},
		{"/user/index", adminOnly, Forbidden},

		{"/admin/patients", nil, Login},
		{"/admin/patients", user, Forbidden},
		{"/admin", user, Forbidden},
		{"/admin/save", admin, Allow},
		{"/deletePatient", user, Forbidden},
		{"/deletePatient/3", admin, Allow},

		{"/logout", nil, Login},
		{"/logout", user, Allow},
		{"/anything/else", nil, Login},
		{"/anything/else", adminOnly, Allow},

		// Traversal and near-miss prefixes.
		{"/user/../admin/save", user, Forbidden},
		{"/css/../admin/patients", nil, Login},
		{"/adminx", user, Allow},
		{"//admin//patients", user, Forbidden},
		{"", nil, Allow},
	}
	for _, tc := range tests {
		name := tc.path
		if tc.id != nil {
			name += " as " + tc.id.Username
		}
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, g.Evaluate(tc.path, tc.id))
		})
	}
}

func TestFirstMatchWins(t *testing.T) {
	g := New(
		Rule{Patterns: []string{"/a/**"}, Access: Public},
		Rule{Patterns: []string{"/a/b"}, Access: RequireRole(model.RoleAdmin)},
	)
	require.Equal(t, Allow, g.Evaluate("/a/b", nil))
}

func TestNoRuleRequiresAuthentication(t *testing.T) {
	g := New()
	require.Equal(t, Login, g.Evaluate("/x", nil))
	require.Equal(t, Allow, g.Evaluate("/x", &model.Identity{Username: "u"}))
}

func TestDecisionString(t *testing.T) {
	require.Equal(t, "allow", Allow.String())
	require.Equal(t, "login", Login.String())
	require.Equal(t, "forbidden", Forbidden.String())
	require.Equal(t, "unknown", Decision(42).String())
}
