// Package orderbook implements the per-side price ladder (a dense array of
// price levels plus a bitmap for O(1) best-price discovery) and the order
// book that combines two ladders with the order arena and the id map.
//
// Grounded on src/Orderbook.cpp's setBidBit/clearAskBit bit-trick ladder,
// replacing the teacher's sharded red-black-tree price_tree with the bounded
// dense-array-plus-bitmap structure spec.md's data model requires.
package orderbook

import (
	"math/bits"

	"marketsim/domain"
)

const (
	// MinPriceCents and MaxPriceLevels follow the reference configuration:
	// 2001 levels spanning [100.00, 120.00] at a 0.01 tick, in integer cents.
	MinPriceCents  = 100_00
	TickCents      = 1
	MaxPriceLevels = 2001

	noIndex = -1
)

// PriceToIndex maps a cents price to a ladder index, clamping out-of-range
// prices into the configured band rather than erroring — spec.md's error
// handling design treats out-of-range price as a deliberate silent tolerance
// for strategy bugs.
func PriceToIndex(priceCents int64) int {
	idx := (priceCents - MinPriceCents) / TickCents
	if idx < 0 {
		return 0
	}
	if idx >= MaxPriceLevels {
		return MaxPriceLevels - 1
	}
	return int(idx)
}

// IndexToPrice is the inverse of PriceToIndex.
func IndexToPrice(index int) int64 {
	return MinPriceCents + int64(index)*TickCents
}

// priceLevel is the FIFO of resting order handles at one price: an intrusive
// doubly-linked list threaded through domain.Order.PrevHandle/NextHandle,
// identified by its head/tail handles only.
type priceLevel struct {
	headHandle int64
	tailHandle int64
}

func (l *priceLevel) empty() bool {
	return l.headHandle == domain.InvalidHandle
}

// bitset is a fixed array of uint64 words covering MaxPriceLevels bits.
type bitset [(MaxPriceLevels + 63) / 64]uint64

func (b *bitset) set(i int) {
	b[i/64] |= 1 << uint(i%64)
}

func (b *bitset) clear(i int) {
	b[i/64] &^= 1 << uint(i%64)
}

func (b *bitset) isSet(i int) bool {
	return b[i/64]&(1<<uint(i%64)) != 0
}

// highestSet scans from the last word downward for the highest set bit,
// using LeadingZeros64 on each word; used to rescan the bid side, where best
// means highest price.
func (b *bitset) highestSet() int {
	for w := len(b) - 1; w >= 0; w-- {
		if b[w] == 0 {
			continue
		}
		lz := bits.LeadingZeros64(b[w])
		return w*64 + (63 - lz)
	}
	return noIndex
}

// lowestSet scans from word index 0 upward for the lowest set bit, using
// TrailingZeros64; used to rescan the ask side, where best means lowest
// price.
func (b *bitset) lowestSet() int {
	for w := 0; w < len(b); w++ {
		if b[w] == 0 {
			continue
		}
		tz := bits.TrailingZeros64(b[w])
		return w*64 + tz
	}
	return noIndex
}

// ladder is one side (bids or asks) of the book: a dense array of price
// levels, a companion bitmap of non-empty levels, and a cached best index.
type ladder struct {
	levels [MaxPriceLevels]priceLevel
	bits   bitset
	best   int // noIndex when the side is empty
	isBid  bool
}

func newLadder(isBid bool) *ladder {
	l := &ladder{best: noIndex, isBid: isBid}
	for i := range l.levels {
		l.levels[i].headHandle = domain.InvalidHandle
		l.levels[i].tailHandle = domain.InvalidHandle
	}
	return l
}

func (l *ladder) bestsThan(a, b int) bool {
	if l.isBid {
		return a > b
	}
	return a < b
}

// addOrder appends handle to the tail of the FIFO at index, updating the
// bitmap and cached best index when the level was previously empty.
func (l *ladder) addOrder(index int, handle int64, orders func(int64) *domain.Order) {
	level := &l.levels[index]
	wasEmpty := level.empty()

	o := orders(handle)
	o.PrevHandle = level.tailHandle
	o.NextHandle = domain.InvalidHandle
	if level.tailHandle != domain.InvalidHandle {
		orders(level.tailHandle).NextHandle = handle
	}
	level.tailHandle = handle
	if level.headHandle == domain.InvalidHandle {
		level.headHandle = handle
	}

	if wasEmpty {
		l.bits.set(index)
		if l.best == noIndex || l.bestsThan(index, l.best) {
			l.best = index
		}
	}
}

// removeOrder unlinks handle from index's FIFO, rescanning the bitmap for a
// new best index if the level becomes empty and was previously the best.
func (l *ladder) removeOrder(index int, handle int64, orders func(int64) *domain.Order) {
	o := orders(handle)
	level := &l.levels[index]

	if o.PrevHandle != domain.InvalidHandle {
		orders(o.PrevHandle).NextHandle = o.NextHandle
	} else {
		level.headHandle = o.NextHandle
	}
	if o.NextHandle != domain.InvalidHandle {
		orders(o.NextHandle).PrevHandle = o.PrevHandle
	} else {
		level.tailHandle = o.PrevHandle
	}
	o.PrevHandle = domain.InvalidHandle
	o.NextHandle = domain.InvalidHandle

	if level.empty() {
		l.bits.clear(index)
		if l.best == index {
			l.rescan()
		}
	}
}

func (l *ladder) rescan() {
	if l.isBid {
		l.best = l.bits.highestSet()
	} else {
		l.best = l.bits.lowestSet()
	}
}

// bestIndex returns the cached best index and whether the side has any
// resting liquidity at all.
func (l *ladder) bestIndex() (int, bool) {
	if l.best == noIndex {
		return 0, false
	}
	return l.best, true
}

// headHandle returns the handle resting at the head (earliest arrival) of
// the FIFO at index, or domain.InvalidHandle if the level is empty.
func (l *ladder) headHandle(index int) int64 {
	return l.levels[index].headHandle
}
