package geocode

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DebounceDelay is how long typing must pause before a search is sent.
const DebounceDelay = 300 * time.Millisecond

// Searcher is the lookup the autocompleter drives.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Place, error)
}

// Suggestions is the outcome of one query.
type Suggestions struct {
	Query  string
	Places []Place
	Err    error
}

// Autocompleter turns keystrokes into suggestions. Only the latest query
// is ever answered: a new keystroke resets the debounce timer, cancels the
// request still in flight and any late answer for an older query is
// discarded.
type Autocompleter struct {
	search Searcher
	delay  time.Duration
	emit   func(Suggestions)
	log    logrus.FieldLogger

	mu     sync.Mutex
	seq    uint64
	timer  *time.Timer
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAutocompleter calls emit with the suggestions for each settled query.
func NewAutocompleter(s Searcher, delay time.Duration, emit func(Suggestions)) *Autocompleter {
	if delay <= 0 {
		delay = DebounceDelay
	}
	return &Autocompleter{search: s, delay: delay, emit: emit, log: logrus.StandardLogger()}
}

// Type records the current text of the address field.
func (a *Autocompleter) Type(query string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	seq := a.seq
	a.stopLocked()
	a.timer = time.AfterFunc(a.delay, func() { a.fire(seq, query) })
}

func (a *Autocompleter) stopLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

func (a *Autocompleter) fire(seq uint64, query string) {
	a.mu.Lock()
	if seq != a.seq {
		a.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.wg.Add(1)
	a.mu.Unlock()
	defer a.wg.Done()
	defer cancel()

	places, err := a.search.Search(ctx, query)

	a.mu.Lock()
	current := seq == a.seq
	a.mu.Unlock()
	if !current || errors.Is(err, context.Canceled) {
		return
	}
	if err != nil {
		a.log.WithError(err).WithField("query", query).Warn("address lookup failed")
	}
	a.emit(Suggestions{Query: query, Places: places, Err: err})
}

// Close cancels pending work and waits for an in-flight search to return.
func (a *Autocompleter) Close() {
	a.mu.Lock()
	a.seq++
	a.stopLocked()
	a.mu.Unlock()
	a.wg.Wait()
}
