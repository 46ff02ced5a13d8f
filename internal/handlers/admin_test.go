package handlers

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/devstudio/internal/models"
)

func TestAdminDeleteUserCascadesOrders(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedVerifiedUser(t, "Alice", "alice@x.com", "secret1", "+10000000001", models.RoleUser)
	bob := env.seedVerifiedUser(t, "Bob", "bob@x.com", "secret1", "+10000000002", models.RoleUser)
	env.seedVerifiedUser(t, "Admin", "admin@x.com", "secret1", "+10000000003", models.RoleAdmin)
	env.seedOrder(t, alice)
	env.seedOrder(t, alice)
	kept := env.seedOrder(t, bob)

	adminCookie := env.login(t, "admin@x.com", "secret1")
	resp := env.request(t, http.MethodDelete, "/api/admin/users/"+alice.ID.String(), nil, adminCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var aliceOrders int64
	require.NoError(t, env.db.Model(&models.Order{}).Where("user_id = ?", alice.ID).Count(&aliceOrders).Error)
	assert.Zero(t, aliceOrders)

	var gone models.User
	assert.Error(t, env.db.First(&gone, "id = ?", alice.ID).Error)

	// Other users and their orders are untouched.
	var bobOrder models.Order
	require.NoError(t, env.db.First(&bobOrder, "id = ?", kept.ID).Error)
	assert.Equal(t, bob.ID, bobOrder.UserID)
}

func TestAdminDeleteUserGuards(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedVerifiedUser(t, "Alice", "alice@x.com", "secret1", "+10000000001", models.RoleUser)
	env.seedVerifiedUser(t, "Admin", "admin@x.com", "secret1", "+10000000002", models.RoleAdmin)

	aliceCookie := env.login(t, "alice@x.com", "secret1")
	resp := env.request(t, http.MethodDelete, "/api/admin/users/"+alice.ID.String(), nil, aliceCookie)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	adminCookie := env.login(t, "admin@x.com", "secret1")
	resp = env.request(t, http.MethodDelete, "/api/admin/users/"+uuid.NewString(), nil, adminCookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.request(t, http.MethodDelete, "/api/admin/users/not-a-uuid", nil, adminCookie)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminToggleVerify(t *testing.T) {
	env := newTestEnv(t)
	env.seedVerifiedUser(t, "Admin", "admin@x.com", "secret1", "+10000000001", models.RoleAdmin)
	adminCookie := env.login(t, "admin@x.com", "secret1")

	resp := env.request(t, http.MethodPost, "/api/auth/register", fiber.Map{
		"name": "A", "email": "a@x.com", "password": "secret1", "phone": "+10000000002",
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	user := env.userByEmail(t, "a@x.com")
	require.False(t, user.IsVerified)
	require.NotEmpty(t, user.OTPCode)

	resp = env.request(t, http.MethodPut, "/api/admin/users/"+user.ID.String()+"/toggle-verify", nil, adminCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		IsVerified bool `json:"is_verified"`
	}
	decodeJSON(t, resp, &body)
	assert.True(t, body.IsVerified)

	// Verifying consumes the pending code.
	user = env.userByEmail(t, "a@x.com")
	assert.True(t, user.IsVerified)
	assert.Empty(t, user.OTPCode)
	assert.Nil(t, user.OTPExpiresAt)

	// And the user can log in without ever entering the OTP.
	env.login(t, "a@x.com", "secret1")

	// Flipping back strands the session-less login path until re-verified.
	resp = env.request(t, http.MethodPut, "/api/admin/users/"+user.ID.String()+"/toggle-verify", nil, adminCookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &body)
	assert.False(t, body.IsVerified)
	assert.False(t, env.userByEmail(t, "a@x.com").IsVerified)
}

func TestAdminToggleVerifyUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	env.seedVerifiedUser(t, "Admin", "admin@x.com", "secret1", "+10000000001", models.RoleAdmin)
	adminCookie := env.login(t, "admin@x.com", "secret1")

	resp := env.request(t, http.MethodPut, "/api/admin/users/"+uuid.NewString()+"/toggle-verify", nil, adminCookie)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
