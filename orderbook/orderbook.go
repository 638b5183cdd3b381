package orderbook

import (
	"fmt"
	"io"
	"strings"

	"marketsim/arena"
	"marketsim/domain"
	"marketsim/idmap"
)

// Book is a single-symbol order book: a bid ladder, an ask ladder, the
// shared order arena, and the OrderId -> handle index. It is not safe for
// concurrent use; spec.md assigns the matching engine as its sole mutator.
type Book struct {
	bids  *ladder
	asks  *ladder
	arena *arena.Arena
	ids   *idmap.Map
}

// New builds an empty Book backed by the given arena and id-map capacity.
// idMapCapacity must be a power of two, per idmap.New.
func New(a *arena.Arena, idMapCapacity int) *Book {
	return &Book{
		bids:  newLadder(true),
		asks:  newLadder(false),
		arena: a,
		ids:   idmap.New(idMapCapacity),
	}
}

func (b *Book) ladder(side domain.Side) *ladder {
	if side == domain.Buy {
		return b.bids
	}
	return b.asks
}

func (b *Book) opposite(side domain.Side) *ladder {
	if side == domain.Buy {
		return b.asks
	}
	return b.bids
}

// Get returns the order backing handle, for callers (the matching engine)
// that already hold a handle.
func (b *Book) Get(handle int64) *domain.Order {
	return b.arena.Get(handle)
}

// Lookup resolves a live order_id to its resting handle.
func (b *Book) Lookup(id domain.OrderID) (int64, bool) {
	return b.ids.Find(id)
}

// Insert rests order in the book at its own PriceCents, registers it in the
// id map, and links it into its price level's FIFO.
func (b *Book) Insert(o *domain.Order) {
	index := PriceToIndex(o.PriceCents)
	l := b.ladder(o.Side)
	l.addOrder(index, o.Handle, b.arena.Get)
	b.ids.Insert(o.OrderID, o.Handle)
	o.Status = domain.StatusResting
}

// Remove unlinks the resting order at handle from its ladder and id map.
// Callers are responsible for deallocating the arena slot afterward.
func (b *Book) Remove(o *domain.Order) {
	index := PriceToIndex(o.PriceCents)
	l := b.ladder(o.Side)
	l.removeOrder(index, o.Handle, b.arena.Get)
	b.ids.Erase(o.OrderID)
}

// BestBid returns the best resting bid's price and index, if any.
func (b *Book) BestBid() (index int, priceCents int64, ok bool) {
	idx, ok := b.bids.bestIndex()
	if !ok {
		return 0, 0, false
	}
	return idx, IndexToPrice(idx), true
}

// BestAsk returns the best resting ask's price and index, if any.
func (b *Book) BestAsk() (index int, priceCents int64, ok bool) {
	idx, ok := b.asks.bestIndex()
	if !ok {
		return 0, 0, false
	}
	return idx, IndexToPrice(idx), true
}

// MidPrice returns (bestBid+bestAsk)/2 in cents as a float, and false if
// either side is empty. Strategies use this as their only floating-point
// observation, per spec.md §3.
func (b *Book) MidPrice() (float64, bool) {
	_, bid, okBid := b.BestBid()
	_, ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return float64(bid+ask) / 2, true
}

// BestOppositeHead returns the handle resting at the head of the best level
// on the side opposite aggressorSide, and whether any liquidity exists
// there at all. Used by the matching engine's crossing loop.
func (b *Book) BestOppositeHead(aggressorSide domain.Side) (handle int64, index int, ok bool) {
	opp := b.opposite(aggressorSide)
	idx, ok := opp.bestIndex()
	if !ok {
		return domain.InvalidHandle, 0, false
	}
	return opp.headHandle(idx), idx, true
}

// RemoveAtIndex is Remove specialized for when the caller already knows the
// ladder index (avoids recomputing PriceToIndex on the matching hot path).
func (b *Book) RemoveAtIndex(o *domain.Order, side domain.Side, index int) {
	b.ladder(side).removeOrder(index, o.Handle, b.arena.Get)
	b.ids.Erase(o.OrderID)
}

// String renders the book's non-empty levels, best bid first descending to
// best ask ascending, one line per level. This is the faithful-reproduction
// rendering spec.md §6 leaves optional; it is never called from the
// matching engine's hot path.
func (b *Book) String() string {
	var sb strings.Builder
	b.Render(&sb)
	return sb.String()
}

// Render writes a human-readable ladder dump to w: bids from best to worst,
// then asks from best to worst, quantity aggregated per level.
func (b *Book) Render(w io.Writer) {
	fmt.Fprintln(w, "BIDS")
	b.renderSide(w, b.bids, true)
	fmt.Fprintln(w, "ASKS")
	b.renderSide(w, b.asks, false)
}

func (b *Book) renderSide(w io.Writer, l *ladder, descending bool) {
	step := 1
	start, end := 0, MaxPriceLevels-1
	if descending {
		start, end, step = MaxPriceLevels-1, 0, -1
	}
	for i := start; i != end+step; i += step {
		if !l.bits.isSet(i) {
			continue
		}
		qty := int64(0)
		h := l.levels[i].headHandle
		for h != domain.InvalidHandle {
			o := b.arena.Get(h)
			qty += o.RemainingQuantity
			h = o.NextHandle
		}
		fmt.Fprintf(w, "  %d @ %.2f\n", qty, float64(IndexToPrice(i))/100)
	}
}
