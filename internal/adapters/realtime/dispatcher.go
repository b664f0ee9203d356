package realtime

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/gavel-live/internal/domain/bids"
	"github.com/floroz/gavel-live/internal/domain/clock"
)

const (
	defaultMaxPending  = 64
	defaultHoldTimeout = 250 * time.Millisecond
)

type enqueuer interface {
	Enqueue(msg []byte) bool
}

// itemOrder releases an item's accepted bids in version order. next is zero
// until the item's baseline is known: version 1 fixes it at once, any other
// first sighting is held like a gap. timerGen identifies the armed timer.
type itemOrder struct {
	mu       sync.Mutex
	next     uint64
	pending  map[uint64]*bids.Placement
	timer    *time.Timer
	timerGen uint64
}

// Dispatcher fans bid outcomes out to connections. State updates go to every
// registered connection; acknowledgements and errors go to the bidder only.
type Dispatcher struct {
	registry *Registry
	clock    clock.Clock
	logger   *slog.Logger

	maxPending  int
	holdTimeout time.Duration

	mu     sync.Mutex
	orders map[uuid.UUID]*itemOrder
}

var _ bids.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher broadcasting to registry
func NewDispatcher(registry *Registry, c clock.Clock, logger *slog.Logger) *Dispatcher {
	if c == nil {
		c = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:    registry,
		clock:       c,
		logger:      logger,
		maxPending:  defaultMaxPending,
		holdTimeout: defaultHoldTimeout,
		orders:      make(map[uuid.UUID]*itemOrder),
	}
}

// OnBidAccepted broadcasts the new item state and acknowledges the bidder.
// Updates of one item are broadcast in version order; an update that arrives
// ahead of its predecessor is held until the predecessor is broadcast or the
// hold times out.
func (d *Dispatcher) OnBidAccepted(origin bids.Bidder, placement *bids.Placement) {
	d.sequence(placement)

	msg, err := encode(EventBidSuccess, BidSuccessPayload{
		Message: bidSuccessMessage,
		Item:    newItemPayload(placement.Item),
	})
	if err != nil {
		d.logger.Error("Failed to encode bid success", "error", err)
		return
	}
	d.sendTo(origin, msg)
}

// OnBidRejected reports the rejection to the bidder only
func (d *Dispatcher) OnBidRejected(origin bids.Bidder, err error) {
	msg, encErr := encode(EventBidError, newBidErrorPayload(err))
	if encErr != nil {
		d.logger.Error("Failed to encode bid error", "error", encErr)
		return
	}
	d.sendTo(origin, msg)
}

func (d *Dispatcher) sendTo(origin bids.Bidder, msg []byte) {
	conn, ok := origin.(enqueuer)
	if !ok {
		return
	}
	if !conn.Enqueue(msg) {
		d.logger.Warn("Dropped personal event", "session_id", origin.SessionID())
	}
}

func (d *Dispatcher) orderFor(itemID uuid.UUID) *itemOrder {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.orders[itemID]
	if !ok {
		o = &itemOrder{pending: make(map[uint64]*bids.Placement)}
		d.orders[itemID] = o
	}
	return o
}

func (d *Dispatcher) sequence(p *bids.Placement) {
	itemID := p.Item.ID
	version := p.Item.Version

	o := d.orderFor(itemID)
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.next == 0 {
		// Versions count accepted bids from 1. A later first sighting may
		// have a lower sibling still in flight.
		if version != 1 {
			o.pending[version] = p
			d.holdLocked(itemID, o)
			return
		}
		o.next = 1
	}

	switch {
	case version < o.next:
		d.logger.Warn("Dropped stale item update",
			"item_id", itemID,
			"version", version,
			"expected", o.next,
		)
		return
	case version > o.next:
		o.pending[version] = p
		d.holdLocked(itemID, o)
		return
	}

	d.broadcast(p)
	o.next++
	d.drainLocked(o)
}

// holdLocked arms the hold timer, or flushes at once when too many updates
// are held.
func (d *Dispatcher) holdLocked(itemID uuid.UUID, o *itemOrder) {
	if len(o.pending) > d.maxPending {
		d.flushLocked(itemID, o)
		return
	}
	if o.timer == nil {
		o.timerGen++
		gen := o.timerGen
		o.timer = time.AfterFunc(d.holdTimeout, func() { d.flush(itemID, gen) })
	}
}

// drainLocked broadcasts held updates that are now next in line
func (d *Dispatcher) drainLocked(o *itemOrder) {
	for {
		p, ok := o.pending[o.next]
		if !ok {
			break
		}
		delete(o.pending, o.next)
		d.broadcast(p)
		o.next++
	}
	if len(o.pending) == 0 && o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// flush runs when the hold timer fires. A timer that fired while its gap was
// being closed finds a different generation, or none, and does nothing.
func (d *Dispatcher) flush(itemID uuid.UUID, gen uint64) {
	o := d.orderFor(itemID)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer == nil || o.timerGen != gen {
		return
	}
	o.timer = nil
	d.flushLocked(itemID, o)
}

// flushLocked gives up on missing versions and broadcasts everything held,
// lowest version first.
func (d *Dispatcher) flushLocked(itemID uuid.UUID, o *itemOrder) {
	if len(o.pending) == 0 {
		return
	}
	versions := make([]uint64, 0, len(o.pending))
	for v := range o.pending {
		versions = append(versions, v)
	}
	slices.Sort(versions)

	d.logger.Warn("Skipping missing item updates",
		"item_id", itemID,
		"expected", o.next,
		"resume_at", versions[0],
	)
	for _, v := range versions {
		d.broadcast(o.pending[v])
		delete(o.pending, v)
	}
	o.next = versions[len(versions)-1] + 1
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// broadcast enqueues the update on a snapshot of the registry. Enqueue never
// blocks, so a slow connection cannot delay the others.
func (d *Dispatcher) broadcast(p *bids.Placement) {
	msg, err := encode(EventUpdateBid, UpdateBidPayload{
		ItemID:         p.Item.ID.String(),
		CurrentBid:     bids.FormatAmount(p.Item.CurrentBid),
		BidderID:       p.Bid.UserID.String(),
		AuctionEndTime: p.Item.EndAt,
		Timestamp:      d.clock.Now(),
	})
	if err != nil {
		d.logger.Error("Failed to encode bid update", "item_id", p.Item.ID, "error", err)
		return
	}

	targets := d.registry.BroadcastTargets()
	dropped := 0
	for _, conn := range targets {
		if !conn.Enqueue(msg) {
			dropped++
		}
	}
	if dropped > 0 {
		d.logger.Warn("Bid update not delivered to every connection",
			"item_id", p.Item.ID,
			"version", p.Item.Version,
			"targets", len(targets),
			"dropped", dropped,
		)
	}
}
