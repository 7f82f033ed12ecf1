package geocode

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowSearcher answers after a per-query delay and records what it saw.
type slowSearcher struct {
	mu        sync.Mutex
	delays    map[string]time.Duration
	queries   []string
	cancelled []string
}

func (s *slowSearcher) Search(ctx context.Context, query string) ([]Place, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	d := s.delays[query]
	s.mu.Unlock()

	select {
	case <-time.After(d):
		return []Place{{DisplayName: query + " St"}}, nil
	case <-ctx.Done():
		s.mu.Lock()
		s.cancelled = append(s.cancelled, query)
		s.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (s *slowSearcher) seen() ([]string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...), append([]string(nil), s.cancelled...)
}

func collect() (func(Suggestions), func() []Suggestions) {
	var mu sync.Mutex
	var got []Suggestions
	return func(s Suggestions) {
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		}, func() []Suggestions {
			mu.Lock()
			defer mu.Unlock()
			return append([]Suggestions(nil), got...)
		}
}

func TestAutocompleteDebouncesKeystrokes(t *testing.T) {
	s := &slowSearcher{}
	emit, results := collect()
	a := NewAutocompleter(s, 30*time.Millisecond, emit)
	defer a.Close()

	for _, q := range []string{"m", "ma", "mab", "mabini"} {
		a.Type(q)
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(results()) == 1 }, 2*time.Second, 5*time.Millisecond)
	queries, _ := s.seen()
	assert.Equal(t, []string{"mabini"}, queries)
	assert.Equal(t, "mabini St", results()[0].Places[0].DisplayName)
}

func TestAutocompleteCancelsSupersededSearch(t *testing.T) {
	s := &slowSearcher{delays: map[string]time.Duration{"ermi": time.Second}}
	emit, results := collect()
	a := NewAutocompleter(s, 10*time.Millisecond, emit)
	defer a.Close()

	a.Type("ermi")
	require.Eventually(t, func() bool {
		q, _ := s.seen()
		return len(q) == 1
	}, 2*time.Second, 5*time.Millisecond)

	a.Type("ermita")
	require.Eventually(t, func() bool { return len(results()) == 1 }, 2*time.Second, 5*time.Millisecond)

	_, cancelled := s.seen()
	assert.Equal(t, []string{"ermi"}, cancelled)
	assert.Equal(t, "ermita", results()[0].Query)

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, results(), 1, "the superseded query never answers")
}

func TestAutocompleteCloseStopsPendingSearch(t *testing.T) {
	s := &slowSearcher{}
	emit, results := collect()
	a := NewAutocompleter(s, 20*time.Millisecond, emit)

	a.Type("malate")
	a.Close()
	time.Sleep(50 * time.Millisecond)

	queries, _ := s.seen()
	assert.Empty(t, queries)
	assert.Empty(t, results())
}
