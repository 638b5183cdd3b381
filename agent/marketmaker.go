package agent

import (
	"math"

	"marketsim/domain"
	"marketsim/orderbook"
)

// MarketMakerStrategy quotes a symmetric bid/ask around the current mid,
// and cancels any active quote that has drifted too far from it.
//
// Grounded on AgentStrategy.cpp's MarketMaker::Act/CreateOrders/CancelOrders.
// SpreadCents is in cents; the reference's default spread (0.02, i.e. two
// cents) becomes SpreadCents: 2.
type MarketMakerStrategy struct {
	Book        *orderbook.Book
	SpreadCents int64

	lastMidCents float64
	midCents     float64
}

// NewMarketMakerStrategy builds a MarketMakerStrategy reading best-bid/ask
// from book.
func NewMarketMakerStrategy(book *orderbook.Book, spreadCents int64) *MarketMakerStrategy {
	return &MarketMakerStrategy{Book: book, SpreadCents: spreadCents}
}

func (s *MarketMakerStrategy) Act(a *Agent) []OrderRequest {
	cancels := s.cancelOrders(a)
	quotes := s.createOrders(a)
	return append(quotes, cancels...)
}

func (s *MarketMakerStrategy) createOrders(a *Agent) []OrderRequest {
	mid, ok := s.Book.MidPrice()
	if !ok {
		return nil
	}
	s.lastMidCents = s.midCents
	s.midCents = mid

	half := float64(s.SpreadCents) / 2
	askPrice := roundToTick(s.midCents + half)
	bidPrice := roundToTick(s.midCents - half)
	const quantity = 10

	if a.Units() > 10 && a.Available() >= bidPrice*quantity {
		return []OrderRequest{
			{Type: domain.Limit, Side: domain.Sell, PriceCents: askPrice, Quantity: quantity},
			{Type: domain.Limit, Side: domain.Buy, PriceCents: bidPrice, Quantity: quantity},
		}
	}
	return nil
}

func (s *MarketMakerStrategy) cancelOrders(a *Agent) []OrderRequest {
	if math.Abs(s.midCents-s.lastMidCents) <= float64(s.SpreadCents) {
		return nil
	}
	var out []OrderRequest
	for _, o := range a.ActiveOrders() {
		if math.Abs(float64(o.PriceCents)-s.midCents) <= float64(s.SpreadCents)*2 {
			continue
		}
		out = append(out, OrderRequest{Type: domain.Cancel, Side: o.Side, CancelTarget: o.OrderID, PriceCents: o.PriceCents})
	}
	return out
}
