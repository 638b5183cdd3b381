// Package domain holds the core value types shared across the simulator:
// orders, trades, and the enums that describe their lifecycle.
package domain

// OrderID is assigned by the matching engine on dequeue, except for CANCEL
// messages which carry the id of the order they target.
type OrderID uint64

// ClientRef identifies the agent that owns an order, carried through orders
// and execution reports so the dispatcher can route independently of OrderID.
type ClientRef uint64

// Side is which side of the book an order rests on or crosses into.
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// OrderType distinguishes limit, market, and cancel messages flowing
// through the engine's ingress ring.
type OrderType int8

const (
	Limit OrderType = iota
	Market
	Cancel
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	case Cancel:
		return "CANCEL"
	default:
		return "UNKNOWN"
	}
}

// Status tracks an order through NEW -> INGRESS -> ACTIVE -> {RESTING,
// PARTIALLY_FILLED, FILLED, CANCELLED} -> DEALLOCATED.
type Status int8

const (
	StatusNew Status = iota
	StatusIngress
	StatusResting
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
)

// InvalidHandle is the sentinel used by Handle fields to mean "no order":
// the null value for arena indices and intrusive list pointers.
const InvalidHandle = -1

// Order is the central record matched by the engine and tracked by agents.
// PrevHandle/NextHandle are intrusive doubly-linked-list pointers into the
// price level's FIFO; Handle is this order's own stable arena index.
type Order struct {
	OrderID            OrderID
	Type               OrderType
	ClientRef          ClientRef
	Side               Side
	PriceCents         int64 // tick-quantized price, in integer cents
	InitialQuantity    int64
	RemainingQuantity  int64
	Handle             int64
	PrevHandle         int64
	NextHandle         int64
	Timestamp          uint64
	Status             Status
}

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.RemainingQuantity == 0
}

// Fill fills this order (the resting side) against the aggressor, reducing
// both remaining quantities, and returns the quantity exchanged. Mirrors
// Order::Fill in the reference implementation: the resting order's remaining
// quantity bounds the fill together with the aggressor's remaining quantity.
func (o *Order) Fill(aggressor *Order) int64 {
	filled := min64(o.RemainingQuantity, aggressor.RemainingQuantity)
	o.RemainingQuantity -= filled
	aggressor.RemainingQuantity -= filled
	return filled
}

// Reset zeroes an order as it is taken from the arena free-list (Allocate),
// so a reused handle never leaks a previous occupant's fields.
func (o *Order) Reset() {
	*o = Order{Handle: o.Handle, PrevHandle: InvalidHandle, NextHandle: InvalidHandle}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
