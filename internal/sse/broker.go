// Package sse streams vocabulary, tag and dataset changes to Server-Sent
// Events clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/starford/taxon/internal/models"
)

// TagsUpdated is the summary event sent per vocabulary after its tag set
// changed. Its data counts the changes coalesced since the previous one.
const TagsUpdated = "tags.updated"

// Summary is the data of a TagsUpdated event.
type Summary struct {
	Vocabulary string `json:"vocabulary,omitempty"`
	Changes    int    `json:"changes"`
}

// Filter restricts a subscription. An empty Vocabulary matches every
// vocabulary and events without one; empty Kinds matches every kind.
type Filter struct {
	Vocabulary string
	Kinds      []string
}

func (f Filter) match(kind, vocabulary string) bool {
	if f.Vocabulary != "" && f.Vocabulary != vocabulary {
		return false
	}
	return len(f.Kinds) == 0 || slices.Contains(f.Kinds, kind)
}

// FilterFromQuery reads ?vocabulary=<name>&kinds=<kind>,<kind>.
func FilterFromQuery(r *http.Request) Filter {
	q := r.URL.Query()
	f := Filter{Vocabulary: strings.TrimSpace(q.Get("vocabulary"))}
	for _, k := range strings.Split(q.Get("kinds"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			f.Kinds = append(f.Kinds, k)
		}
	}
	return f
}

// Subscription is one client's filtered feed of encoded SSE frames.
type Subscription struct {
	filter Filter
	frames chan []byte
}

// Frames returns the channel of encoded events. It is closed on
// Unsubscribe and when the broker closes.
func (s *Subscription) Frames() <-chan []byte {
	return s.frames
}

// feed is the state owned by the broker loop.
type feed struct {
	subs    map[*Subscription]struct{}
	pending map[string]int
	last    map[string]time.Time
}

func (f *feed) send(kind, vocabulary string, frame []byte) {
	for s := range f.subs {
		if !s.filter.match(kind, vocabulary) {
			continue
		}
		select {
		case s.frames <- frame:
		default:
			// Slow client; the frame is dropped for it.
		}
	}
}

func (f *feed) summarize(vocabulary string, now time.Time) {
	frame := encode(TagsUpdated, Summary{Vocabulary: vocabulary, Changes: f.pending[vocabulary]})
	delete(f.pending, vocabulary)
	f.last[vocabulary] = now
	f.send(TagsUpdated, vocabulary, frame)
}

// flush sends summaries for vocabularies whose interval has passed.
func (f *feed) flush(now time.Time, interval time.Duration) {
	for vocabulary := range f.pending {
		if now.Sub(f.last[vocabulary]) >= interval {
			f.summarize(vocabulary, now)
		}
	}
}

// Broker fans changes out to subscribers. One loop goroutine owns the
// subscriber set and the summary state; callers hand it commands.
type Broker struct {
	interval time.Duration
	cmds     chan func(*feed)
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

// NewBroker starts a broker that sends at most one tags.updated event per
// vocabulary per interval.
func NewBroker(interval time.Duration) *Broker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	b := &Broker{
		interval: interval,
		cmds:     make(chan func(*feed)),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	f := &feed{
		subs:    make(map[*Subscription]struct{}),
		pending: make(map[string]int),
		last:    make(map[string]time.Time),
	}
	tick := time.NewTicker(b.interval)
	defer tick.Stop()

	for {
		select {
		case <-b.done:
			for s := range f.subs {
				close(s.frames)
			}
			return
		case cmd := <-b.cmds:
			cmd(f)
		case now := <-tick.C:
			f.flush(now, b.interval)
		}
	}
}

// do runs cmd on the loop. It reports false once the broker is closed.
func (b *Broker) do(cmd func(*feed)) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.cmds <- cmd:
		return true
	case <-b.done:
		return false
	}
}

// Close stops the loop and closes every subscription.
func (b *Broker) Close() {
	b.once.Do(func() { close(b.done) })
	<-b.stopped
}

// Subscribe registers a filtered subscription. After Close the returned
// subscription is already closed.
func (b *Broker) Subscribe(filter Filter) *Subscription {
	s := &Subscription{filter: filter, frames: make(chan []byte, 64)}
	if !b.do(func(f *feed) { f.subs[s] = struct{}{} }) {
		close(s.frames)
	}
	return s
}

// Unsubscribe removes s and closes its channel.
func (b *Broker) Unsubscribe(s *Subscription) {
	b.do(func(f *feed) {
		if _, ok := f.subs[s]; ok {
			delete(f.subs, s)
			close(s.frames)
		}
	})
}

// ClientCount returns the number of subscriptions.
func (b *Broker) ClientCount() int {
	n := make(chan int, 1)
	if !b.do(func(f *feed) { n <- len(f.subs) }) {
		return 0
	}
	return <-n
}

// Publish sends c to matching subscribers. Tag and vocabulary changes also
// count towards their vocabulary's next tags.updated summary, which is sent
// at once when the previous one is older than the interval.
func (b *Broker) Publish(c models.Change) {
	frame := encode(c.Kind, c)
	b.do(func(f *feed) {
		f.send(c.Kind, c.Vocabulary, frame)
		if !changesTags(c.Kind) {
			return
		}
		f.pending[c.Vocabulary]++
		now := time.Now()
		if now.Sub(f.last[c.Vocabulary]) >= b.interval {
			f.summarize(c.Vocabulary, now)
		}
	})
}

func changesTags(kind string) bool {
	return strings.HasPrefix(kind, "tag.") || strings.HasPrefix(kind, "vocabulary.")
}

func encode(kind string, data any) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = []byte("{}")
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", kind, payload))
}

// ServeHTTP streams the feed (GET /api/events) filtered by FilterFromQuery.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := b.Subscribe(FilterFromQuery(r))
	defer b.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
