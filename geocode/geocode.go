// Package geocode looks addresses up against a Nominatim-compatible API,
// biased to the region the marketplace delivers in.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/delivery-app/pricing"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	defaultUserAgent = "delivery-app/1.0"
	maxResults       = 5
)

var (
	ErrRateLimited = errors.New("geocoding rate limit exceeded")
	ErrNotFound    = errors.New("address not found")
)

// Region is the delivery area searches are biased to.
type Region struct {
	Center pricing.Point
	South  float64
	North  float64
	West   float64
	East   float64
}

// MetroManila is the default delivery area.
var MetroManila = Region{
	Center: pricing.Point{Lat: 14.5995, Lng: 120.9842},
	South:  14.35,
	North:  14.80,
	West:   120.90,
	East:   121.15,
}

func (r Region) Contains(p pricing.Point) bool {
	return p.Lat >= r.South && p.Lat <= r.North && p.Lng >= r.West && p.Lng <= r.East
}

// viewbox is left,top,right,bottom as Nominatim expects it.
func (r Region) viewbox() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }
	return strings.Join([]string{f(r.West), f(r.North), f(r.East), f(r.South)}, ",")
}

// Place is one search result.
type Place struct {
	ID          int64
	DisplayName string
	Location    pricing.Point
}

type nominatimPlace struct {
	PlaceID     int64  `json:"place_id"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (n nominatimPlace) place() (Place, error) {
	lat, err := strconv.ParseFloat(n.Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parse lat %q: %w", n.Lat, err)
	}
	lng, err := strconv.ParseFloat(n.Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parse lon %q: %w", n.Lon, err)
	}
	return Place{ID: n.PlaceID, DisplayName: n.DisplayName, Location: pricing.Point{Lat: lat, Lng: lng}}, nil
}

// Client queries the geocoder. Requests are paced to one per second, the
// public Nominatim usage limit.
type Client struct {
	BaseURL   string
	Region    Region
	UserAgent string
	HTTP      *http.Client
	Limiter   *rate.Limiter
	Log       logrus.FieldLogger
}

func NewClient(baseURL string, region Region) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Region:    region,
		UserAgent: defaultUserAgent,
		HTTP:      &http.Client{Timeout: 10 * time.Second},
		Limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		Log:       logrus.StandardLogger(),
	}
}

// Search returns places matching query inside the region. Results outside
// the box are dropped even if the service returns them.
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(maxResults))
	q.Set("viewbox", c.Region.viewbox())
	q.Set("bounded", "1")

	var raw []nominatimPlace
	if err := c.get(ctx, "/search", q, &raw); err != nil {
		return nil, err
	}

	places := make([]Place, 0, len(raw))
	for _, r := range raw {
		p, err := r.place()
		if err != nil {
			c.Log.WithError(err).Warn("skipping malformed geocoding result")
			continue
		}
		if !c.Region.Contains(p.Location) {
			continue
		}
		places = append(places, p)
	}
	return places, nil
}

// Reverse names the address at p.
func (c *Client) Reverse(ctx context.Context, p pricing.Point) (Place, error) {
	if !p.IsSet() {
		return Place{}, ErrNotFound
	}
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(p.Lng, 'f', 6, 64))
	q.Set("format", "json")

	var raw struct {
		nominatimPlace
		Error string `json:"error"`
	}
	if err := c.get(ctx, "/reverse", q, &raw); err != nil {
		return Place{}, err
	}
	if raw.Error != "" {
		return Place{}, ErrNotFound
	}
	return raw.place()
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
