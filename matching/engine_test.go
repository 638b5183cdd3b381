package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketsim/arena"
	"marketsim/domain"
	"marketsim/orderbook"
)

type fakeSink struct {
	trades []domain.Trade
}

func (s *fakeSink) Push(t domain.Trade) {
	s.trades = append(s.trades, t)
}

type harness struct {
	engine *Engine
	book   *orderbook.Book
	arena  *arena.Arena
	sink   *fakeSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	a := arena.New(256)
	book := orderbook.New(a, 256)
	sink := &fakeSink{}
	return &harness{
		engine: NewEngine(book, a, sink, zap.NewNop()),
		book:   book,
		arena:  a,
		sink:   sink,
	}
}

func (h *harness) newOrder(t *testing.T, typ domain.OrderType, side domain.Side, priceCents, qty int64, clientRef domain.ClientRef) *domain.Order {
	t.Helper()
	handle, err := h.arena.Allocate()
	require.NoError(t, err)
	o := h.arena.Get(handle)
	o.Type = typ
	o.Side = side
	o.PriceCents = priceCents
	o.InitialQuantity = qty
	o.RemainingQuantity = qty
	o.ClientRef = clientRef
	return o
}

func TestCrossingLimitOrder(t *testing.T) {
	h := newHarness(t)
	buy := h.newOrder(t, domain.Limit, domain.Buy, 110_00, 10, 1)
	h.engine.Process(buy)

	sell := h.newOrder(t, domain.Limit, domain.Sell, 110_00, 10, 2)
	h.engine.Process(sell)

	require.Len(t, h.sink.trades, 1)
	trade := h.sink.trades[0]
	assert.Equal(t, domain.Full, trade.Bid.Type)
	assert.Equal(t, domain.Full, trade.Ask.Type)
	assert.Equal(t, int64(10), trade.Bid.Quantity)
	assert.Equal(t, int64(110_00), trade.Bid.PriceCents)

	_, _, okBid := h.book.BestBid()
	_, _, okAsk := h.book.BestAsk()
	assert.False(t, okBid)
	assert.False(t, okAsk)
}

func TestPartialFill(t *testing.T) {
	h := newHarness(t)
	buy := h.newOrder(t, domain.Limit, domain.Buy, 110_00, 15, 1)
	h.engine.Process(buy)

	sell := h.newOrder(t, domain.Limit, domain.Sell, 110_00, 10, 2)
	h.engine.Process(sell)

	require.Len(t, h.sink.trades, 1)
	trade := h.sink.trades[0]
	assert.Equal(t, domain.Full, trade.Ask.Type)
	assert.Equal(t, domain.Partial, trade.Bid.Type)

	_, price, ok := h.book.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(110_00), price)
}

func TestMarketWithLiquidity(t *testing.T) {
	h := newHarness(t)
	h.engine.Process(h.newOrder(t, domain.Limit, domain.Sell, 110_00, 10, 1))
	h.engine.Process(h.newOrder(t, domain.Limit, domain.Sell, 110_01, 10, 2))

	market := h.newOrder(t, domain.Market, domain.Buy, 0, 15, 3)
	h.engine.Process(market)

	require.Len(t, h.sink.trades, 2)
	assert.Equal(t, int64(110_00), h.sink.trades[0].Ask.PriceCents)
	assert.Equal(t, domain.Full, h.sink.trades[0].Ask.Type)
	assert.Equal(t, int64(110_01), h.sink.trades[1].Ask.PriceCents)
	assert.Equal(t, domain.Partial, h.sink.trades[1].Ask.Type)
	assert.Equal(t, domain.Full, h.sink.trades[1].Bid.Type)

	_, price, ok := h.book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int64(110_01), price)
}

func TestMarketWithoutLiquidity(t *testing.T) {
	h := newHarness(t)
	market := h.newOrder(t, domain.Market, domain.Buy, 0, 10, 1)
	h.engine.Process(market)

	require.Len(t, h.sink.trades, 1)
	trade := h.sink.trades[0]
	assert.Equal(t, domain.ExecCancel, trade.Bid.Type)
	assert.Equal(t, domain.Invalid, trade.Ask.Type, "opposite placeholder must never be delivered")

	_, _, ok := h.book.BestBid()
	assert.False(t, ok, "book must remain untouched")
}

func TestCancelRace(t *testing.T) {
	h := newHarness(t)
	buy := h.newOrder(t, domain.Limit, domain.Buy, 110_00, 10, 1)
	h.engine.Process(buy)
	targetID := buy.OrderID

	cancelHandle, err := h.arena.Allocate()
	require.NoError(t, err)
	cancel := h.arena.Get(cancelHandle)
	cancel.Type = domain.Cancel
	cancel.OrderID = targetID
	h.engine.Process(cancel)

	require.Len(t, h.sink.trades, 1)
	assert.Equal(t, domain.ExecCancel, h.sink.trades[0].Bid.Type)
	_, _, ok := h.book.BestBid()
	assert.False(t, ok)

	cancelHandle2, err := h.arena.Allocate()
	require.NoError(t, err)
	cancel2 := h.arena.Get(cancelHandle2)
	cancel2.Type = domain.Cancel
	cancel2.OrderID = targetID
	h.engine.Process(cancel2)

	assert.Len(t, h.sink.trades, 1, "second cancel of the same id is a silent no-op")
}

func TestPriceTimePriority(t *testing.T) {
	h := newHarness(t)
	buyA := h.newOrder(t, domain.Limit, domain.Buy, 110_00, 10, 1)
	h.engine.Process(buyA)
	buyB := h.newOrder(t, domain.Limit, domain.Buy, 110_00, 10, 2)
	h.engine.Process(buyB)

	sell := h.newOrder(t, domain.Limit, domain.Sell, 110_00, 15, 3)
	h.engine.Process(sell)

	require.Len(t, h.sink.trades, 2)
	assert.Equal(t, buyA.OrderID, h.sink.trades[0].Bid.OrderID)
	assert.Equal(t, domain.Full, h.sink.trades[0].Bid.Type)
	assert.Equal(t, buyB.OrderID, h.sink.trades[1].Bid.OrderID)
	assert.Equal(t, domain.Partial, h.sink.trades[1].Bid.Type)

	head, _, ok := h.book.BestOppositeHead(domain.Sell)
	require.True(t, ok)
	assert.Equal(t, buyB.OrderID, h.book.Get(head).OrderID, "B remains resting as head")
}
