// Package notify implements the in-process change notifier: fan-out of
// committed request changes to live subscribers, in commit order, with
// latest-state resync on (re)subscribe.
package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/givebridge/donation-system/internal/core/ports"
	"github.com/givebridge/donation-system/internal/pkg/metrics"
)

// subscriberBuffer is the per-subscriber backlog. When a subscriber lags
// beyond it, the oldest pending delivery is dropped: intermediate states may
// be lost but the subscriber always converges to the latest one.
const subscriberBuffer = 64

type subscriber struct {
	filter ports.SubscriptionFilter
	ch     chan ports.Change
}

// recordMark is the highest committed state already published for one
// record. Commits are versioned, so a change carrying a lower version than
// the mark is a reordered handoff from an earlier commit, not new
// information.
type recordMark struct {
	version int64
	deleted bool
}

// Broker is a process-wide ChangeNotifier. Per-record ordering, sequence
// assignment, snapshot writes, and delivery all happen under one mutex, so
// neither a subscriber nor the resync store ever observes a record's states
// out of commit order. Publish may be invoked concurrently from any number
// of coordinator operations.
type Broker struct {
	snapshots ports.SnapshotStore // optional; enables resync on subscribe
	log       zerolog.Logger

	mu    sync.Mutex
	seq   uint64
	subs  map[string]*subscriber
	marks map[string]recordMark
}

func NewBroker(snapshots ports.SnapshotStore, log zerolog.Logger) *Broker {
	return &Broker{
		snapshots: snapshots,
		log:       log,
		subs:      make(map[string]*subscriber),
		marks:     make(map[string]recordMark),
	}
}

// Publish delivers the change to every matching live subscription and
// records it as the latest known state of the request. The commit-to-publish
// handoff is not ordered by the store, so two commits on one record may
// arrive here inverted; the version mark discards the stale one instead of
// fanning it out or snapshotting it over newer state.
func (b *Broker) Publish(ctx context.Context, change ports.Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stale(change) {
		metrics.NotifierStaleTotal.Inc()
		b.log.Debug().
			Str("request_id", change.Request.ID).
			Int64("version", change.Request.Version).
			Msg("discarding change published after a later commit")
		return
	}
	b.marks[change.Request.ID] = recordMark{
		version: change.Request.Version,
		deleted: change.Kind == ports.ChangeDeleted,
	}

	b.seq++
	change.Seq = b.seq

	// Snapshot before fan-out, still under the lock: a subscriber loading
	// snapshots (also under the lock) sees this change's state or a later
	// one, never an earlier one.
	if b.snapshots != nil {
		if err := b.snapshots.Save(ctx, change); err != nil {
			b.log.Warn().Err(err).Str("request_id", change.Request.ID).Msg("failed to save change snapshot")
		}
	}

	for _, sub := range b.subs {
		if sub.filter.Matches(change) {
			b.deliver(sub, change)
		}
	}
}

// stale reports whether a later state of the record has already been
// published. A deletion outranks the update it was decided against, which
// carries the same version.
func (b *Broker) stale(change ports.Change) bool {
	mark, ok := b.marks[change.Request.ID]
	if !ok {
		return false
	}
	v := change.Request.Version
	if v < mark.version {
		return true
	}
	return v == mark.version && (mark.deleted || change.Kind != ports.ChangeDeleted)
}

// deliver enqueues without blocking the publisher. A full backlog sheds its
// oldest entry so the newest state always gets through.
func (b *Broker) deliver(sub *subscriber, change ports.Change) {
	select {
	case sub.ch <- change:
		metrics.NotifierDeliveriesTotal.Inc()
		return
	default:
	}

	select {
	case <-sub.ch:
		metrics.NotifierDroppedTotal.Inc()
	default:
	}
	select {
	case sub.ch <- change:
		metrics.NotifierDeliveriesTotal.Inc()
	default:
		metrics.NotifierDroppedTotal.Inc()
	}
}

// Subscribe registers an observer. The subscription channel is primed with
// the latest known state of every record matching the filter (read from the
// snapshot store) before any live change, so reconnecting dashboards resync
// without touching the request store. Load, priming, and registration happen
// under the broker lock, the same lock Publish snapshots and delivers under,
// so every change reaches the subscriber exactly one way: already
// snapshotted when the load runs, or delivered live after registration.
func (b *Broker) Subscribe(ctx context.Context, filter ports.SubscriptionFilter) (*ports.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var primed []ports.Change
	if b.snapshots != nil {
		latest, err := b.snapshots.Load(ctx)
		if err != nil {
			return nil, err
		}
		for _, c := range latest {
			if filter.Matches(c) {
				primed = append(primed, c)
			}
		}
		sort.Slice(primed, func(i, j int) bool { return primed[i].Seq < primed[j].Seq })
	}

	sub := &subscriber{
		filter: filter,
		ch:     make(chan ports.Change, subscriberBuffer+len(primed)),
	}
	for _, c := range primed {
		sub.ch <- c
	}

	id := newSubscriptionID()
	b.subs[id] = sub
	metrics.NotifierSubscribers.Set(float64(len(b.subs)))

	return &ports.Subscription{ID: id, C: sub.ch}, nil
}

// Unsubscribe tears the subscription down and closes its channel. Safe to
// call more than once.
func (b *Broker) Unsubscribe(sub *ports.Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	if s, ok := b.subs[sub.ID]; ok {
		delete(b.subs, sub.ID)
		close(s.ch)
	}
	metrics.NotifierSubscribers.Set(float64(len(b.subs)))
	b.mu.Unlock()
}

func newSubscriptionID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
