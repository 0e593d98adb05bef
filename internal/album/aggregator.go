// Package album collects the photos Telegram delivers one update at a time
// for a single album and hands them over once the album stops growing.
package album

import (
	"sync"
	"time"

	"github.com/samber/lo"
)

const DefaultDebounce = 1200 * time.Millisecond

type Item struct {
	ChatID       int64
	UserID       int64
	LanguageCode string
	MediaGroupID string
	Caption      string
	FileID       string
}

type Group struct {
	ChatID       int64
	UserID       int64
	LanguageCode string
	Caption      string
	FileIDs      []string
}

// First is the photo a session uses; captions are generated for one image.
func (g Group) First() (string, bool) {
	if len(g.FileIDs) == 0 {
		return "", false
	}
	return g.FileIDs[0], true
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Group)
}

type key struct {
	chatID  int64
	albumID string
}

// Aggregator buffers album photos per chat. OnFlush runs on a timer
// goroutine once no photo arrived for the debounce window.
type Aggregator struct {
	debounce time.Duration
	onFlush  func(Group)

	mu      sync.Mutex
	pending map[key]*pending
	stopped bool
}

type pending struct {
	group Group
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	return &Aggregator{
		debounce: lo.Ternary(opts.Debounce > 0, opts.Debounce, DefaultDebounce),
		onFlush:  opts.OnFlush,
		pending:  make(map[key]*pending),
	}
}

// Add queues item and restarts the album's debounce timer. Items outside
// an album, redelivered photos and anything added after Stop are ignored.
func (a *Aggregator) Add(item Item) {
	if item.MediaGroupID == "" || item.FileID == "" {
		return
	}
	k := key{chatID: item.ChatID, albumID: item.MediaGroupID}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}

	p, ok := a.pending[k]
	if !ok {
		p = &pending{group: Group{
			ChatID:       item.ChatID,
			UserID:       item.UserID,
			LanguageCode: item.LanguageCode,
		}}
		p.timer = time.AfterFunc(a.debounce, func() { a.flush(k) })
		a.pending[k] = p
	} else {
		p.timer.Reset(a.debounce)
	}

	if !lo.Contains(p.group.FileIDs, item.FileID) {
		p.group.FileIDs = append(p.group.FileIDs, item.FileID)
	}
	if p.group.Caption == "" {
		p.group.Caption = item.Caption
	}
}

// Pending reports how many albums are still waiting to flush.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

// Stop drops every album that has not flushed yet and returns how many
// were dropped.
func (a *Aggregator) Stop() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopped = true
	n := len(a.pending)
	for k, p := range a.pending {
		p.timer.Stop()
		delete(a.pending, k)
	}
	return n
}

func (a *Aggregator) flush(k key) {
	a.mu.Lock()
	p, ok := a.pending[k]
	delete(a.pending, k)
	a.mu.Unlock()

	if ok && a.onFlush != nil {
		a.onFlush(p.group)
	}
}
