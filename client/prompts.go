package client

import (
	"sort"
	"sync"
	"time"

	"github.com/yeremiapane/delivery-app/lifecycle"
)

// PromptTTL is how long an incoming-order prompt stays up. Expiry only
// hides the prompt; the order itself is not cancelled.
const PromptTTL = 60 * time.Second

type Prompt struct {
	Order    Order
	Deadline time.Time
}

// Prompts tracks the restaurant's accept/reject prompts, one countdown per
// pending order.
type Prompts struct {
	ttl      time.Duration
	now      func() time.Time
	onExpire func(Prompt)

	mu     sync.Mutex
	active map[string]*promptEntry
}

type promptEntry struct {
	prompt Prompt
	timer  *time.Timer
}

// NewPrompts uses ttl for every prompt; onExpire may be nil.
func NewPrompts(ttl time.Duration, onExpire func(Prompt)) *Prompts {
	if ttl <= 0 {
		ttl = PromptTTL
	}
	return &Prompts{
		ttl:      ttl,
		now:      time.Now,
		onExpire: onExpire,
		active:   make(map[string]*promptEntry),
	}
}

// Show raises a prompt for a pending order. The countdown runs from the
// order's creation, so a prompt restored after a reload is not extended.
func (p *Prompts) Show(o Order) bool {
	if o.Status != lifecycle.StatusPending {
		return false
	}
	start := o.CreatedAt
	if start.IsZero() {
		start = p.now()
	}
	deadline := start.Add(p.ttl)
	left := deadline.Sub(p.now())
	if left <= 0 {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.active[o.ID]; ok {
		return false
	}
	e := &promptEntry{prompt: Prompt{Order: o, Deadline: deadline}}
	e.timer = time.AfterFunc(left, func() { p.expire(o.ID, e) })
	p.active[o.ID] = e
	return true
}

func (p *Prompts) expire(id string, e *promptEntry) {
	p.mu.Lock()
	if p.active[id] != e {
		p.mu.Unlock()
		return
	}
	delete(p.active, id)
	p.mu.Unlock()
	if p.onExpire != nil {
		p.onExpire(e.prompt)
	}
}

// Dismiss clears a prompt, after accept or reject or when the order has
// left Pending.
func (p *Prompts) Dismiss(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if e, ok := p.active[id]; ok {
		e.timer.Stop()
		delete(p.active, id)
	}
}

// Active lists open prompts, the one closest to expiry first.
func (p *Prompts) Active() []Prompt {
	p.mu.Lock()
	out := make([]Prompt, 0, len(p.active))
	for _, e := range p.active {
		out = append(out, e.prompt)
	}
	p.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out
}

// Remaining is the countdown shown on a prompt.
func (p *Prompts) Remaining(id string) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.active[id]
	if !ok {
		return 0, false
	}
	left := e.prompt.Deadline.Sub(p.now())
	if left < 0 {
		left = 0
	}
	return left, true
}

// Watch keeps prompts in step with a board: new pending orders raise one,
// any move out of Pending clears it.
func (p *Prompts) Watch(b *Board) {
	b.OnChange(func(prev *Order, cur Order) {
		if cur.Status == lifecycle.StatusPending {
			p.Show(cur)
			return
		}
		p.Dismiss(cur.ID)
	})
}

// Close stops every countdown.
func (p *Prompts) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, e := range p.active {
		e.timer.Stop()
		delete(p.active, id)
	}
}
