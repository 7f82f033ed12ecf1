package geocode

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/delivery-app/pricing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, MetroManila)
	c.Limiter = nil
	return c
}

func TestSearchIsBiasedToRegion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "mabini", q.Get("q"))
		assert.Equal(t, "1", q.Get("bounded"))
		assert.Equal(t, "120.9000,14.8000,121.1500,14.3500", q.Get("viewbox"))
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"place_id": 1, "lat": "14.5826", "lon": "120.9787", "display_name": "Mabini St, Ermita, Manila"},
			{"place_id": 2, "lat": "10.3157", "lon": "123.8854", "display_name": "Mabini St, Cebu City"},
			{"place_id": 3, "lat": "north", "lon": "120.9", "display_name": "broken"},
		})
	})

	places, err := c.Search(context.Background(), "  mabini ")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, int64(1), places[0].ID)
	assert.Equal(t, pricing.Point{Lat: 14.5826, Lng: 120.9787}, places[0].Location)

	none, err := c.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSearchErrors(t *testing.T) {
	limited := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := limited.Search(context.Background(), "ermita")
	assert.ErrorIs(t, err, ErrRateLimited)

	broken := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err = broken.Search(context.Background(), "ermita")
	assert.EqualError(t, err, "geocoder returned status 502")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = broken.Search(ctx, "ermita")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReverse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		if r.URL.Query().Get("lat") == "14.599500" {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"place_id": 7, "lat": "14.5995", "lon": "120.9842", "display_name": "Rizal Park, Manila",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unable to geocode"})
	})

	p, err := c.Reverse(context.Background(), MetroManila.Center)
	require.NoError(t, err)
	assert.Equal(t, "Rizal Park, Manila", p.DisplayName)

	_, err = c.Reverse(context.Background(), pricing.Point{Lat: 1, Lng: 1})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.Reverse(context.Background(), pricing.Point{})
	assert.ErrorIs(t, err, ErrNotFound)
}
