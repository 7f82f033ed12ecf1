package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/delivery-app/realtime"
)

// API talks to the delivery backend. Every response is decoded from the
// {status, message, data} envelope and validated before it is returned.
type API struct {
	baseURL        string
	http           *http.Client
	session        *Session
	log            logrus.FieldLogger
	onUnauthorized func()
}

type APIOption func(*API)

func WithHTTPClient(c *http.Client) APIOption {
	return func(a *API) { a.http = c }
}

func WithLogger(l logrus.FieldLogger) APIOption {
	return func(a *API) { a.log = l }
}

// WithOnUnauthorized is called after a 401 has cleared the session, the
// place to send the actor back to sign in.
func WithOnUnauthorized(fn func()) APIOption {
	return func(a *API) { a.onUnauthorized = fn }
}

func NewAPI(baseURL string, session *Session, opts ...APIOption) *API {
	a := &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		session: session,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *API) Session() *Session { return a.session }

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// call sends a JSON request and decodes the envelope's data into T.
func call[T any](ctx context.Context, a *API, method, path string, body interface{}) (T, error) {
	var out T
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return out, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, rdr)
	if err != nil {
		return out, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	data, err := a.do(req, true)
	if err != nil {
		return out, err
	}
	return decodeData[T](data)
}

// callPublic is call without a bearer token.
func callPublic[T any](ctx context.Context, a *API, method, path string, body interface{}) (T, error) {
	var out T
	buf, err := json.Marshal(body)
	if err != nil {
		return out, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	data, err := a.do(req, false)
	if err != nil {
		return out, err
	}
	return decodeData[T](data)
}

func (a *API) do(req *http.Request, authed bool) (json.RawMessage, error) {
	if authed {
		token := a.session.Token()
		if token == "" {
			return nil, invalid("session", "please sign in first")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	log := a.log.WithFields(logrus.Fields{"method": req.Method, "path": req.URL.Path})

	resp, err := a.http.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.WithError(err).Warn("request failed")
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && authed {
		log.Warn("session rejected, signing out")
		if err := a.session.Clear(); err != nil {
			log.WithError(err).Warn("could not clear stored session")
		}
		if a.onUnauthorized != nil {
			a.onUnauthorized()
		}
		return nil, ErrUnauthorized
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	if resp.StatusCode >= 400 {
		serr := &ServerError{Status: resp.StatusCode}
		if decodeErr == nil {
			serr.Message, serr.Data = env.Message, env.Data
		}
		return nil, serr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response envelope: %w", decodeErr)
	}
	return env.Data, nil
}

func decodeData[T any](data json.RawMessage) (T, error) {
	var out T
	if len(data) == 0 || string(data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode %T: %w", out, err)
	}
	if err := check(out); err != nil {
		return out, fmt.Errorf("validate %T: %w", out, err)
	}
	return out, nil
}

// check validates a struct, or every struct in a slice.
func check(v interface{}) error {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Struct:
		return realtime.Validate(v)
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return check(rv.Elem().Interface())
	case reflect.Slice:
		for i := 0; i < rv.Len(); i++ {
			if err := check(rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return nil
}

type none struct{}

// Login signs in and stores the session.
func (a *API) Login(ctx context.Context, email, password string) (Profile, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Profile{}, invalid("email", "email and password are required")
	}
	res, err := callPublic[loginResult](ctx, a, http.MethodPost, "/login", map[string]string{
		"email": email, "password": password,
	})
	if err != nil {
		return Profile{}, err
	}
	p := Profile{UserID: res.UserID, Name: res.Name, Role: res.Role, RestaurantID: res.RestaurantID}
	if err := a.session.Set(res.Token, p); err != nil {
		a.log.WithError(err).Warn("could not persist session")
	}
	return p, nil
}

// Logout revokes the token server side and clears the session either way.
func (a *API) Logout(ctx context.Context) error {
	_, err := call[none](ctx, a, http.MethodPost, "/logout", nil)
	if cerr := a.session.Clear(); cerr != nil && err == nil {
		err = cerr
	}
	if errors.Is(err, ErrUnauthorized) {
		return nil
	}
	return err
}

func (a *API) Orders(ctx context.Context) ([]Order, error) {
	return call[[]Order](ctx, a, http.MethodGet, "/orders", nil)
}

func (a *API) Order(ctx context.Context, id string) (Order, error) {
	return call[Order](ctx, a, http.MethodGet, "/orders/"+url.PathEscape(id), nil)
}

type OrderLine struct {
	DishID   uint   `json:"dish_id"`
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes,omitempty"`
}

type PlaceOrderRequest struct {
	RestaurantID  uint        `json:"restaurant_id"`
	Items         []OrderLine `json:"items"`
	Address       string      `json:"address"`
	Lat           *float64    `json:"lat,omitempty"`
	Lng           *float64    `json:"lng,omitempty"`
	PaymentMethod string      `json:"payment_method"`
	VoucherCode   string      `json:"voucher_code,omitempty"`
}

func (a *API) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (Order, error) {
	return call[Order](ctx, a, http.MethodPost, "/orders", req)
}

type StatusUpdate struct {
	Status         string   `json:"status"`
	Reason         string   `json:"reason,omitempty"`
	TraveledKm     *float64 `json:"traveled_km,omitempty"`
	ExpectedStatus string   `json:"expected_status,omitempty"`
}

func (a *API) UpdateStatus(ctx context.Context, id string, u StatusUpdate) (TransitionResult, error) {
	return call[TransitionResult](ctx, a, http.MethodPut, "/orders/"+url.PathEscape(id)+"/status", u)
}

func (a *API) SendChat(ctx context.Context, orderID, body string) (ChatMessage, error) {
	return call[ChatMessage](ctx, a, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/messages",
		map[string]string{"body": body})
}

func (a *API) Messages(ctx context.Context, orderID string) ([]ChatMessage, error) {
	return call[[]ChatMessage](ctx, a, http.MethodGet, "/orders/"+url.PathEscape(orderID)+"/messages", nil)
}

func (a *API) Rate(ctx context.Context, orderID string, stars int, comment string) (Order, error) {
	return call[Order](ctx, a, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/rating",
		map[string]interface{}{"rating": stars, "comment": comment})
}

func (a *API) Notifications(ctx context.Context) ([]ServerNotification, error) {
	page, err := call[notificationPage](ctx, a, http.MethodGet, "/notifications", nil)
	return page.Notifications, err
}

func (a *API) MarkNotificationRead(ctx context.Context, id uint) error {
	_, err := call[none](ctx, a, http.MethodPatch, fmt.Sprintf("/notifications/%d/read", id), nil)
	return err
}

func (a *API) Restaurant(ctx context.Context, id uint) (Restaurant, error) {
	return call[Restaurant](ctx, a, http.MethodGet, fmt.Sprintf("/restaurants/%d", id), nil)
}

func (a *API) RestaurantStats(ctx context.Context, id uint) (RestaurantStats, error) {
	return call[RestaurantStats](ctx, a, http.MethodGet, fmt.Sprintf("/restaurants/%d/stats", id), nil)
}

func (a *API) Vouchers(ctx context.Context, restaurantID uint) ([]Voucher, error) {
	return call[[]Voucher](ctx, a, http.MethodGet, fmt.Sprintf("/restaurants/%d/vouchers", restaurantID), nil)
}

// ValidateVoucher asks the server whether code applies to subtotal.
func (a *API) ValidateVoucher(ctx context.Context, restaurantID uint, code string, subtotal float64) (VoucherCheck, error) {
	return call[VoucherCheck](ctx, a, http.MethodPost, "/vouchers/validate", map[string]interface{}{
		"restaurant_id": restaurantID, "code": code, "subtotal": subtotal,
	})
}

func (a *API) Wallet(ctx context.Context) (Wallet, error) {
	return call[Wallet](ctx, a, http.MethodGet, "/riders/me/wallet", nil)
}

// Upload sends one image and returns its stored path. Cancelling ctx
// aborts the transfer.
func (a *API) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		fw, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(fw, content)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/uploads", pr)
	if err != nil {
		pr.Close()
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	data, err := a.do(req, true)
	if err != nil {
		pr.CloseWithError(err)
		return "", err
	}
	res, err := decodeData[map[string]string](data)
	if err != nil {
		return "", err
	}
	return res["path"], nil
}
