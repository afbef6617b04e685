package admin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"whosehouse/internal/admin"
	"whosehouse/internal/config"
	"whosehouse/internal/gateway"
	"whosehouse/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T, handler http.Handler) *admin.Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.BackendConfig{
		BaseURL:         srv.URL,
		APIKey:          "test-key",
		Timeout:         5 * time.Second,
		RetryCount:      1,
		RetryBaseDelay:  time.Millisecond,
		RetryMultiplier: 2.0,
	}
	return admin.NewService(gateway.New(cfg, zap.NewNop()), zap.NewNop())
}

func TestCreateUser(t *testing.T) {
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rpc/admin_create_user", r.URL.Path)
		var params struct {
			Email string      `json:"email"`
			Role  models.Role `json:"role"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		require.Equal(t, models.RoleFosterCarer, params.Role)
		json.NewEncoder(w).Encode(models.Profile{ID: "U1", Email: params.Email, Role: params.Role})
	}))

	profile, err := svc.CreateUser(context.Background(), "carer@example.com", "New Carer", models.RoleFosterCarer)
	require.NoError(t, err)
	require.Equal(t, "U1", profile.ID)
}

func TestCreateUser_ValidatesLocally(t *testing.T) {
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("invalid input must not reach the network")
	}))

	_, err := svc.CreateUser(context.Background(), "bad-email", "X", models.RoleAdmin)
	require.Equal(t, gateway.CodeValidationError, gateway.CodeOf(err))

	_, err = svc.CreateUser(context.Background(), "ok@example.com", "X", "superuser")
	require.Equal(t, gateway.CodeValidationError, gateway.CodeOf(err))
}

func TestUserLifecycleAndAssignment(t *testing.T) {
	var paths []string
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, svc.DeactivateUser(context.Background(), "U1"))
	require.NoError(t, svc.ReactivateUser(context.Background(), "U1"))
	require.NoError(t, svc.AssignSocialWorker(context.Background(), "C1", "SW1"))
	require.Equal(t, []string{
		"/rpc/admin_deactivate_user",
		"/rpc/admin_reactivate_user",
		"/rpc/admin_assign_social_worker",
	}, paths)
}

func TestOrgStats_UnauthorizedSurfaced(t *testing.T) {
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "admin only"})
	}))

	_, err := svc.OrgStats(context.Background())
	require.Equal(t, gateway.CodeUnauthorized, gateway.CodeOf(err))
}

func TestGetPermissions(t *testing.T) {
	svc := newService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rpc/get_user_permissions", r.URL.Path)
		json.NewEncoder(w).Encode(admin.Permissions{CanIssueTokens: true})
	}))

	p, err := svc.GetPermissions(context.Background())
	require.NoError(t, err)
	require.True(t, p.CanIssueTokens)
	require.False(t, p.CanManageUsers)
}
