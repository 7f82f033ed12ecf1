package controllers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/utils"
)

func TestRegister(t *testing.T) {
	e := newEnv(t)

	code, resp := e.do(t, http.MethodPost, "/register", nil, map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "secret123", "role": "customer",
	})
	assert.Equal(t, http.StatusCreated, code, resp.Message)

	code, _ = e.do(t, http.MethodPost, "/register", nil, map[string]string{
		"name": "Ana", "email": "ANA@example.com", "password": "secret123", "role": "customer",
	})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = e.do(t, http.MethodPost, "/register", nil, map[string]string{
		"name": "Root", "email": "root@example.com", "password": "secret123", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodPost, "/register", nil, map[string]string{
		"name": "Ben", "email": "ben@example.com", "password": "secret123", "role": "restaurant",
	})
	assert.Equal(t, http.StatusBadRequest, code, "owners must name their restaurant")

	code, resp = e.do(t, http.MethodPost, "/register", nil, map[string]interface{}{
		"name": "Ben", "email": "ben@example.com", "password": "secret123", "role": "restaurant",
		"restaurant_name": "Ben's Grill", "lat": 14.6, "lng": 121.0,
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	data := decode[map[string]uint](t, resp.Data)
	assert.NotZero(t, data["restaurant_id"])

	var r models.Restaurant
	require.NoError(t, e.db.First(&r, data["restaurant_id"]).Error)
	assert.Equal(t, data["user_id"], r.OwnerID)
}

func TestRegisterFailsWhenEmailLookupFails(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.Migrator().DropTable(&models.User{}))

	code, resp := e.do(t, http.MethodPost, "/register", nil, map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "secret123", "role": "customer",
	})
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, resp.Status)
}

func TestLogin(t *testing.T) {
	e := newEnv(t)

	code, _ := e.do(t, http.MethodPost, "/login", nil, map[string]string{
		"email": "restaurant@example.com", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp := e.do(t, http.MethodPost, "/login", nil, map[string]string{
		"email": "restaurant@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, code, resp.Message)

	data := decode[struct {
		Token        string `json:"token"`
		Role         string `json:"role"`
		RestaurantID uint   `json:"restaurant_id"`
	}](t, resp.Data)
	assert.Equal(t, models.RoleRestaurant, data.Role)
	assert.Equal(t, e.restaurant.ID, data.RestaurantID)

	claims, err := utils.ParseToken(data.Token)
	require.NoError(t, err)
	assert.Equal(t, e.owner.ID, claims.UserID)
	assert.Equal(t, e.restaurant.ID, claims.RestaurantID)
}

func TestProfile(t *testing.T) {
	e := newEnv(t)

	code, _ := e.do(t, http.MethodGet, "/profile", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp := e.do(t, http.MethodPatch, "/profile", &e.customer, map[string]string{"name": "Maria", "phone": "0917"})
	require.Equal(t, http.StatusOK, code, resp.Message)

	code, resp = e.do(t, http.MethodGet, "/profile", &e.customer, nil)
	require.Equal(t, http.StatusOK, code)
	user := decode[models.User](t, resp.Data)
	assert.Equal(t, "Maria", user.Name)
	assert.Equal(t, "0917", user.Phone)

	code, _ = e.do(t, http.MethodPatch, "/profile", &e.customer, map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newEnv(t)
	leaving := models.User{Name: "Leaving", Email: "leaving@example.com", Password: "x", Role: models.RoleCustomer}
	require.NoError(t, e.db.Create(&leaving).Error)
	token := e.token(t, leaving)

	send := func(method, path string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send(http.MethodGet, "/profile"))
	assert.Equal(t, http.StatusOK, send(http.MethodPost, "/logout"))
	assert.Equal(t, http.StatusUnauthorized, send(http.MethodGet, "/profile"))
}
