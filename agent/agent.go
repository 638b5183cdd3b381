// Package agent implements per-agent state and accounting, the three
// strategy variants that decide what orders to submit, and the manager that
// drives the outgoing/incoming scheduling loops.
//
// Grounded on include/Agent.h and src/Agent.cpp: atomic cash/reserved/units
// fields, active-order tracking both by handle and by price.
package agent

import (
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/v2/maps/treemap"

	"marketsim/arena"
	"marketsim/domain"
	"marketsim/ring"
)

// InitialCashCents and InitialUnits seed every new agent, matching the
// reference's initialCash_/initialUnits_ defaults.
const (
	InitialCashCents = 1_000_000_000_00
	InitialUnits     = 100_000
)

// OrderRequest is what a Strategy hands back to its Agent: enough to
// allocate and submit a domain.Order without strategies touching the arena
// directly. CancelTarget is only meaningful when Type is domain.Cancel.
type OrderRequest struct {
	Type         domain.OrderType
	Side         domain.Side
	PriceCents   int64
	Quantity     int64
	CancelTarget domain.OrderID
}

// Strategy decides what an agent does on its turn. Implementations must
// not mutate engine state directly, only return requests.
type Strategy interface {
	Act(a *Agent) []OrderRequest
}

// Agent holds one trader's cash/inventory state, its active orders (indexed
// both by arena handle and by price), and the rings connecting it to the
// engine.
type Agent struct {
	ClientRef domain.ClientRef
	Rate      float64

	strategy Strategy
	arena    *arena.Arena
	ingress  *ring.Buffer[*domain.Order]
	trades   *ring.Buffer[domain.TradeInfo]

	initialCash int64

	available atomic.Int64
	reserved  atomic.Int64
	units     atomic.Int64

	mu            sync.RWMutex
	activeOrders  map[int64]*domain.Order
	activeByPrice *treemap.Map[int64, map[int64]struct{}]
}

// New builds an Agent already attached to ingress (the engine's order ring)
// and trades (this agent's own trade ring, drained by the incoming loop).
func New(clientRef domain.ClientRef, strategy Strategy, rate float64, a *arena.Arena, ingress *ring.Buffer[*domain.Order], trades *ring.Buffer[domain.TradeInfo]) *Agent {
	ag := &Agent{
		ClientRef:     clientRef,
		Rate:          rate,
		strategy:      strategy,
		arena:         a,
		ingress:       ingress,
		trades:        trades,
		initialCash:   InitialCashCents,
		activeOrders:  make(map[int64]*domain.Order),
		activeByPrice: treemap.NewWithIntComparator[int64, map[int64]struct{}](),
	}
	ag.available.Store(InitialCashCents)
	ag.units.Store(InitialUnits)
	return ag
}

// PushTrade is the dispatcher's entry point for delivering one execution
// report to this agent; it never blocks. Implements dispatch.Recipient.
func (a *Agent) PushTrade(info domain.TradeInfo) bool {
	return a.trades.Push(info)
}

// Act invokes the configured strategy and submits every request it returns,
// in order, as spec.md's outgoing loop does for each scheduled agent.
func (a *Agent) Act() {
	for _, req := range a.strategy.Act(a) {
		a.Submit(req)
	}
}

func (a *Agent) addActiveOrder(o *domain.Order) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.activeOrders[o.Handle] = o
	set, ok := a.activeByPrice.Get(o.PriceCents)
	if !ok {
		set = make(map[int64]struct{})
		a.activeByPrice.Put(o.PriceCents, set)
	}
	set[o.Handle] = struct{}{}
}

// findActiveByOrderID looks up a still-active order by its engine-assigned
// id. Used to recover the agent's own original reserve price on a fill,
// since the execution price reported in the trade is always taken from the
// resting/book side and may differ from an aggressor buy's own limit price
// (price improvement).
func (a *Agent) findActiveByOrderID(id domain.OrderID) (*domain.Order, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, o := range a.activeOrders {
		if o.OrderID == id {
			return o, true
		}
	}
	return nil, false
}

func (a *Agent) removeActiveOrderByOrderID(id domain.OrderID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for handle, o := range a.activeOrders {
		if o.OrderID == id {
			delete(a.activeOrders, handle)
			if set, ok := a.activeByPrice.Get(o.PriceCents); ok {
				delete(set, handle)
				if len(set) == 0 {
					a.activeByPrice.Remove(o.PriceCents)
				}
			}
			return
		}
	}
}

// ActiveOrders returns a snapshot of the agent's currently active orders,
// safe for a strategy to range over without racing the incoming loop.
func (a *Agent) ActiveOrders() []*domain.Order {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*domain.Order, 0, len(a.activeOrders))
	for _, o := range a.activeOrders {
		out = append(out, o)
	}
	return out
}

// Available, Reserved, Units and CashTotal expose the agent's accounting
// state for strategies and for the faithful-reproduction summary in
// Manager.Summary.
func (a *Agent) Available() int64 { return a.available.Load() }
func (a *Agent) Reserved() int64  { return a.reserved.Load() }
func (a *Agent) Units() int64     { return a.units.Load() }
func (a *Agent) CashTotal() int64 { return a.available.Load() + a.reserved.Load() }

// Submit allocates an arena slot for req, applies the submission-time
// accounting in spec.md §4.6, and pushes the order onto the engine's
// ingress ring. A failed push or a full arena silently drops the request,
// matching spec.md §7's ring-push-failure/data-loss taxonomy.
func (a *Agent) Submit(req OrderRequest) {
	handle, err := a.arena.Allocate()
	if err != nil {
		return
	}
	o := a.arena.Get(handle)
	o.Type = req.Type
	o.ClientRef = a.ClientRef
	o.Side = req.Side
	o.PriceCents = req.PriceCents
	o.InitialQuantity = req.Quantity
	o.RemainingQuantity = req.Quantity
	o.Status = domain.StatusIngress

	if req.Type == domain.Cancel {
		o.OrderID = req.CancelTarget
	} else {
		a.reserveOnSubmit(o)
		a.addActiveOrder(o)
	}

	if !a.ingress.Push(o) {
		a.arena.Deallocate(handle)
	}
}

// reserveOnSubmit mirrors Agent::PushLimitOrder/PushMarketOrder: a sell
// reduces units immediately, a buy moves price*quantity from available to
// reserved.
func (a *Agent) reserveOnSubmit(o *domain.Order) {
	if o.Side == domain.Sell {
		a.units.Add(-o.RemainingQuantity)
		return
	}
	total := o.PriceCents * o.RemainingQuantity
	a.available.Add(-total)
	a.reserved.Add(total)
}

// PopTrade drains and applies one execution report from this agent's trade
// ring, returning false if the ring was empty. Mirrors Agent::PopTrade.
func (a *Agent) PopTrade() bool {
	info, ok := a.trades.Pop()
	if !ok {
		return false
	}

	// A buy fill's reserved price is this agent's own original limit
	// price, recovered from the still-active order record while it's
	// still in the map — not the execution price, which is always taken
	// from the resting/book side and may be better than what was
	// reserved (price improvement).
	reservedPrice := info.PriceCents
	if info.Side == domain.Buy && info.Type != domain.ExecCancel {
		if o, found := a.findActiveByOrderID(info.OrderID); found {
			reservedPrice = o.PriceCents
		}
	}

	if info.Type == domain.Full || info.Type == domain.ExecCancel {
		a.removeActiveOrderByOrderID(info.OrderID)
	}

	switch info.Type {
	case domain.ExecCancel:
		a.applyCancel(info)
	default:
		a.applyFill(info, reservedPrice)
	}
	return true
}

// applyFill mirrors PopLimitOrderTrade/PopMarketOrderTrade, which are
// identical in the reference implementation, except reservedPrice is
// recovered correctly (see PopTrade) so that price improvement nets a
// positive available-cash credit instead of cancelling to zero.
func (a *Agent) applyFill(info domain.TradeInfo, reservedPrice int64) {
	total := info.PriceCents * info.Quantity
	if info.Side == domain.Sell {
		a.available.Add(total)
		return
	}
	reservedTotal := reservedPrice * info.Quantity
	a.reserved.Add(-reservedTotal)
	a.available.Add(reservedTotal - total)
	a.units.Add(info.Quantity)
}

// applyCancel mirrors PopCancelOrderTrade.
func (a *Agent) applyCancel(info domain.TradeInfo) {
	if info.Side == domain.Sell {
		a.units.Add(info.Quantity)
		return
	}
	reservedTotal := info.PriceCents * info.Quantity
	a.reserved.Add(-reservedTotal)
	a.available.Add(reservedTotal)
}

// DrainAll pops every currently-queued trade. Used for the final drain pass
// on shutdown, matching ClearIncoming's use in the reference destructor.
func (a *Agent) DrainAll() {
	for a.PopTrade() {
	}
}
