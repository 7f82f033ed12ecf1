package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/delivery-app/client"
	"github.com/yeremiapane/delivery-app/config"
	"github.com/yeremiapane/delivery-app/lifecycle"
	"github.com/yeremiapane/delivery-app/pricing"
	"github.com/yeremiapane/delivery-app/realtime"
	"github.com/yeremiapane/delivery-app/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var manila = pricing.Point{Lat: 14.5995, Lng: 120.9842}

// party is one signed-in app: session, board, feed and realtime link.
type party struct {
	api        *client.API
	board      *client.Board
	feed       *client.Feed
	dispatcher *client.Dispatcher
	live       *client.Live
}

// TestEndToEndIntegration runs the main flow against the wired backend,
// with realtime fan-out going through Redis:
// 0. Register customer, restaurant owner and rider, then sign in
// 1. Owner publishes a dish
// 2. Customer prices the cart and places the order
// 3. Owner accepts from the incoming-order prompt
// 4. Rider claims and delivers, and is shown the earnings
// 5. Customer is asked to rate and rates
// 6. Owner dashboard reflects the delivered order
func TestEndToEndIntegration(t *testing.T) {
	srv := setupTestServer(t)
	ctx := context.Background()

	registerTest(t, srv.URL, "customer", nil)
	registerTest(t, srv.URL, "restaurant", map[string]interface{}{
		"restaurant_name": "Lola's Kitchen", "lat": manila.Lat, "lng": manila.Lng,
	})
	registerTest(t, srv.URL, "rider", nil)

	customer := signIn(t, srv.URL, "customer")
	owner := signIn(t, srv.URL, "restaurant")
	rider := signIn(t, srv.URL, "rider")
	restaurantID := owner.api.Session().Profile().RestaurantID
	require.NotZero(t, restaurantID)

	prompts := client.NewPrompts(time.Minute, nil)
	defer prompts.Close()
	prompts.Watch(owner.board)
	owner.dispatcher = client.NewDispatcher(owner.api, owner.board,
		client.WithPrompts(prompts), client.WithDispatcherLogger(quiet()))

	// 1. dish
	dishID := createDishTest(t, srv.URL, owner, restaurantID)

	// 2. checkout
	order := placeOrderTest(t, ctx, customer, restaurantID, dishID)

	// 3. accept
	require.Eventually(t, func() bool { return len(prompts.Active()) == 1 }, 3*time.Second, 10*time.Millisecond,
		"new-order push raises the prompt")
	_, err := owner.dispatcher.Accept(ctx, order.ID)
	require.NoError(t, err)
	assert.Empty(t, prompts.Active())
	waitForStatus(t, customer.board, order.ID, lifecycle.StatusAccepted)

	// 4. deliver
	require.Eventually(t, func() bool { return len(rider.board.Available()) == 1 }, 3*time.Second, 10*time.Millisecond)
	_, err = rider.dispatcher.Claim(ctx, order.ID)
	require.NoError(t, err)
	for _, step := range []func(context.Context, string) (client.Order, error){
		rider.dispatcher.MarkArrived, rider.dispatcher.PickUp, rider.dispatcher.ArriveAtCustomer,
	} {
		_, err := step(ctx, order.ID)
		require.NoError(t, err)
	}
	summary, err := rider.dispatcher.Deliver(ctx, order.ID, 3.5)
	require.NoError(t, err)
	assert.Equal(t, 110.0, summary.Amount)
	require.NotNil(t, summary.Wallet)
	assert.Equal(t, 110.0, summary.Wallet.Balance)

	// 5. rate
	waitForStatus(t, customer.board, order.ID, lifecycle.StatusDelivered)
	assert.Equal(t, []string{order.ID}, customer.board.RatingPrompts())
	_, err = customer.dispatcher.Rate(ctx, order.ID, 5, "still hot")
	require.NoError(t, err)

	require.NoError(t, customer.feed.Load(ctx))
	seen := map[string]int{}
	for _, n := range customer.feed.Items() {
		seen[n.Key]++
	}
	for _, st := range []lifecycle.Status{lifecycle.StatusAccepted, lifecycle.StatusDelivered} {
		assert.Equal(t, 1, seen[realtime.StatusKey(order.ID, st)], st)
	}

	// 6. dashboard
	overview := owner.api.Overview(ctx, restaurantID)
	require.True(t, overview.Ok())
	assert.Equal(t, int64(1), overview.Stats.TotalOrders)
	assert.Equal(t, int64(1), overview.Stats.ByStatus[string(lifecycle.StatusDelivered)])
	assert.Equal(t, order.Total, overview.Stats.Revenue)
	assert.Equal(t, 5.0, overview.Stats.AverageRating)
}

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := config.Load()
	cfg.DBDriver = "sqlite"
	cfg.DBDSN = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	cfg.RedisAddr = mr.Addr()
	cfg.KafkaBroker = ""
	cfg.UploadDir = t.TempDir()
	cfg.SweepInterval = time.Hour
	cfg.Fees = pricing.DefaultFeeConfig()
	cfg.Checkout = pricing.CheckoutConfig{}
	cfg.Earnings = pricing.DefaultEarningConfig()

	ctx, cancel := context.WithCancel(context.Background())
	a, err := newApp(ctx, cfg)
	require.NoError(t, err)
	sqlDB, err := a.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	srv := httptest.NewServer(a.Router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		a.Close()
	})
	return srv
}

func quiet() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// registerTest -> POST /register => 201
func registerTest(t *testing.T, baseURL, role string, extra map[string]interface{}) {
	t.Helper()
	body := map[string]interface{}{
		"name": role, "email": role + "@example.com", "password": "secret123", "role": role,
	}
	for k, v := range extra {
		body[k] = v
	}
	status, resp := postJSON(t, baseURL+"/register", "", body)
	require.Equal(t, http.StatusCreated, status, resp)
}

func signIn(t *testing.T, baseURL, role string) *party {
	t.Helper()
	p := &party{}
	p.api = client.NewAPI(baseURL, client.NewSession(client.FileStore{Dir: t.TempDir()}), client.WithLogger(quiet()))
	profile, err := p.api.Login(context.Background(), role+"@example.com", "secret123")
	require.NoError(t, err)

	p.board = client.NewBoard(p.api, profile, quiet())
	p.feed = client.NewFeed(p.api, profile, quiet())
	p.dispatcher = client.NewDispatcher(p.api, p.board, client.WithDispatcherLogger(quiet()))
	require.NoError(t, p.board.Refresh(context.Background()))

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	p.live = client.NewLive(realtime.NewClient(wsURL), p.board, p.feed, quiet())
	require.NoError(t, p.live.Start(context.Background(), p.api.Session().Identity()))
	t.Cleanup(p.live.Stop)
	return p
}

// createDishTest -> POST /restaurants/:id/dishes => 201
func createDishTest(t *testing.T, baseURL string, owner *party, restaurantID uint) uint {
	t.Helper()
	status, resp := postJSON(t, baseURL+"/restaurants/"+strconv.FormatUint(uint64(restaurantID), 10)+"/dishes",
		owner.api.Session().Token(), map[string]interface{}{"name": "Sinigang", "price": 500})
	require.Equal(t, http.StatusCreated, status, resp)

	var dish struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp, &dish))
	return dish.Data.ID
}

// placeOrderTest prices the cart locally, then places it; both sides must
// agree on the total.
func placeOrderTest(t *testing.T, ctx context.Context, customer *party, restaurantID, dishID uint) client.Order {
	t.Helper()
	restaurant, err := customer.api.Restaurant(ctx, restaurantID)
	require.NoError(t, err)
	vouchers, err := customer.api.Vouchers(ctx, restaurantID)
	require.NoError(t, err)

	checkout := client.Checkout{
		Restaurant:    restaurant,
		Items:         []client.CartItem{{DishID: dishID, Name: "Sinigang", Quantity: 2, UnitPrice: 500}},
		Address:       "12 Mabini St",
		Location:      pricing.Point{Lat: manila.Lat + 2/(6371*3.141592653589793/180), Lng: manila.Lng},
		PaymentMethod: "cod",
	}
	quote, err := client.NewPricer(pricing.DefaultFeeConfig(), pricing.CheckoutConfig{}).Quote(checkout, vouchers)
	require.NoError(t, err)
	assert.Equal(t, 80.0, quote.Breakdown.DeliveryFee)

	order, err := customer.dispatcher.PlaceOrder(ctx, checkout.Applying(quote))
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPending, order.Status)
	assert.Equal(t, quote.Breakdown.Total, order.Total)
	return order
}

func waitForStatus(t *testing.T, b *client.Board, id string, want lifecycle.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		o, ok := b.Get(id)
		return ok && o.Status == want
	}, 3*time.Second, 10*time.Millisecond, "waiting for %s", want)
}

func postJSON(t *testing.T, url, token string, body interface{}) (int, []byte) {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(buf))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}
