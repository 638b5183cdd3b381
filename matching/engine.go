// Package matching implements the price/time-priority matching engine:
// limit, market, and cancel processing against an orderbook.Book, backed by
// the shared order arena and driven by the ingress ring buffer.
//
// Grounded on matching/engine.go's processOrder/matchBuyOrder/matchSellOrder
// structure, generalized onto the arena+ladder+idmap data model in place of
// the teacher's container/list + map[string]*domain.Order bookkeeping.
package matching

import (
	"sync/atomic"

	"go.uber.org/zap"

	"marketsim/arena"
	"marketsim/domain"
	"marketsim/orderbook"
	"marketsim/ring"
)

// TradeSink receives every execution report the engine produces. The trade
// dispatcher implements this; matching never imports agent/dispatch
// directly, keeping the dependency graph acyclic.
type TradeSink interface {
	Push(domain.Trade)
}

// Engine is the sole mutator of its orderbook.Book. It assigns a strictly
// increasing OrderID to every LIMIT/MARKET order on dequeue; CANCEL messages
// keep the target id the submitter supplied.
type Engine struct {
	book    *orderbook.Book
	arena   *arena.Arena
	sink    TradeSink
	log     *zap.Logger
	nextID  atomic.Uint64
	running atomic.Bool
}

// NewEngine builds an Engine over book and a, publishing every trade to
// sink. log may be zap.NewNop() in tests.
func NewEngine(book *orderbook.Book, a *arena.Arena, sink TradeSink, log *zap.Logger) *Engine {
	return &Engine{book: book, arena: a, sink: sink, log: log}
}

// Running reports whether RunLoop is currently executing (false before the
// first call and after it has drained to exit).
func (e *Engine) Running() bool {
	return e.running.Load()
}

// RunLoop is the engine thread body: pop from ingress and Process until
// shutdown is set and the ring has been fully drained, matching spec.md §5's
// requirement that the engine waits for an empty ingress ring before
// clearing its own running flag.
func (e *Engine) RunLoop(ingress *ring.Buffer[*domain.Order], shutdown *atomic.Bool) {
	e.running.Store(true)
	for {
		o, ok := ingress.Pop()
		if ok {
			e.Process(o)
			continue
		}
		if shutdown.Load() {
			break
		}
	}
	e.running.Store(false)
}

// Process dequeues a single order. It never returns an error: every failure
// mode reduces to an execution report, per spec.md §4.4/§7.
func (e *Engine) Process(o *domain.Order) {
	if o.Type == domain.Cancel {
		e.processCancel(o)
		return
	}
	o.OrderID = domain.OrderID(e.nextID.Add(1))
	o.Status = domain.StatusResting
	e.match(o)
}

// match runs the crossing loop shared by LIMIT and MARKET orders: always
// against the head of the best opposite level, preserving price-time
// priority. LIMIT rests its residual on exhausted-but-non-crossing
// liquidity; MARKET cancels its residual instead of resting it.
func (e *Engine) match(o *domain.Order) {
	for {
		headHandle, index, ok := e.book.BestOppositeHead(o.Side)
		var oppositePrice int64
		if ok {
			oppositePrice = orderbook.IndexToPrice(index)
		}
		if !crosses(o, ok, oppositePrice) {
			break
		}

		resting := e.book.Get(headHandle)
		filled := resting.Fill(o)
		e.sink.Push(buildFillTrade(resting, o, filled, oppositePrice))

		if resting.IsFilled() {
			e.book.RemoveAtIndex(resting, resting.Side, index)
			e.arena.Deallocate(resting.Handle)
		}
		if o.IsFilled() {
			e.arena.Deallocate(o.Handle)
			return
		}
	}

	if o.Type == domain.Market {
		if o.RemainingQuantity > 0 {
			e.log.Debug("market order cancelled for lack of liquidity",
				zap.Uint64("order_id", uint64(o.OrderID)),
				zap.Int64("remaining", o.RemainingQuantity))
			e.sink.Push(buildCancelTrade(o))
		}
		e.arena.Deallocate(o.Handle)
		return
	}

	e.book.Insert(o)
}

// processCancel looks up the target order_id; an absent id is a silent
// no-op (legal race with a concurrent fill), matching spec.md §4.4/§7.
func (e *Engine) processCancel(cancelMsg *domain.Order) {
	handle, ok := e.book.Lookup(cancelMsg.OrderID)
	if !ok {
		e.arena.Deallocate(cancelMsg.Handle)
		return
	}

	target := e.book.Get(handle)
	index := orderbook.PriceToIndex(target.PriceCents)
	e.book.RemoveAtIndex(target, target.Side, index)
	e.sink.Push(buildCancelTrade(target))
	e.arena.Deallocate(target.Handle)
	e.arena.Deallocate(cancelMsg.Handle)
}

// crosses reports whether an order at o's price (or a MARKET order,
// unconditionally) crosses the best opposite level at oppositePrice.
func crosses(o *domain.Order, oppositeExists bool, oppositePrice int64) bool {
	if !oppositeExists {
		return false
	}
	if o.Type == domain.Market {
		return true
	}
	if o.Side == domain.Buy {
		return oppositePrice <= o.PriceCents
	}
	return oppositePrice >= o.PriceCents
}

func execType(o *domain.Order) domain.ExecutionType {
	if o.IsFilled() {
		return domain.Full
	}
	return domain.Partial
}

// buildFillTrade assembles both counterparty sides of one fill. Price is
// always taken from the resting/book side, per spec.md §4.4.
func buildFillTrade(resting, aggressor *domain.Order, filled, priceCents int64) domain.Trade {
	restingInfo := domain.TradeInfo{
		OrderID:      resting.OrderID,
		OrderType:    resting.Type,
		ClientRef:    resting.ClientRef,
		Side:         resting.Side,
		PriceCents:   priceCents,
		Quantity:     filled,
		Counterparty: *aggressor,
		Type:         execType(resting),
	}
	aggressorInfo := domain.TradeInfo{
		OrderID:      aggressor.OrderID,
		OrderType:    aggressor.Type,
		ClientRef:    aggressor.ClientRef,
		Side:         aggressor.Side,
		PriceCents:   priceCents,
		Quantity:     filled,
		Counterparty: *resting,
		Type:         execType(aggressor),
	}
	if resting.Side == domain.Buy {
		return domain.Trade{Bid: restingInfo, Ask: aggressorInfo}
	}
	return domain.Trade{Ask: restingInfo, Bid: aggressorInfo}
}

// buildCancelTrade produces a CANCEL report for o's owner plus the
// INVALID-typed placeholder for the opposite side that must never be
// delivered, per spec.md §4.4.
func buildCancelTrade(o *domain.Order) domain.Trade {
	info := domain.TradeInfo{
		OrderID:    o.OrderID,
		OrderType:  o.Type,
		ClientRef:  o.ClientRef,
		Side:       o.Side,
		PriceCents: o.PriceCents,
		Quantity:   o.RemainingQuantity,
		Type:       domain.ExecCancel,
	}
	placeholder := domain.TradeInfo{Type: domain.Invalid}
	if o.Side == domain.Buy {
		return domain.Trade{Bid: info, Ask: placeholder}
	}
	return domain.Trade{Ask: info, Bid: placeholder}
}
