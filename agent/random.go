package agent

import (
	"math"
	"math/rand"

	"marketsim/domain"
	"marketsim/orderbook"
)

// defaultMidPriceCents is used by Random when the book has no two-sided
// liquidity yet to derive a mid-price from.
const defaultMidPriceCents = 110_00

const randomCancelProbability = 0.05

// RandomStrategy samples a side uniformly and a price around the current
// mid plus gaussian noise, with a fixed quantity; it also independently
// rolls a cancel for each of the agent's active orders.
//
// Grounded on AgentStrategy.cpp's Random::Act/CreateOrders/CancelOrders.
// Sigma is in cents, matching the rest of the book's integer-cents prices.
type RandomStrategy struct {
	Book  *orderbook.Book
	Sigma float64
}

// NewRandomStrategy builds a RandomStrategy reading best-bid/best-ask from
// book to derive its mid-price observation.
func NewRandomStrategy(book *orderbook.Book, sigma float64) *RandomStrategy {
	return &RandomStrategy{Book: book, Sigma: sigma}
}

func (s *RandomStrategy) Act(a *Agent) []OrderRequest {
	var out []OrderRequest
	out = append(out, s.cancelOrders(a)...)
	out = append(out, s.createOrders(a)...)
	return out
}

func (s *RandomStrategy) createOrders(a *Agent) []OrderRequest {
	mid, ok := s.Book.MidPrice()
	if !ok {
		mid = defaultMidPriceCents
	}

	buy := rand.Float64() < 0.5
	priceCents := roundToTick(mid + rand.NormFloat64()*s.Sigma)
	const quantity = 10

	if buy {
		if a.Available() < priceCents*quantity {
			return nil
		}
		return []OrderRequest{{Type: domain.Limit, Side: domain.Buy, PriceCents: priceCents, Quantity: quantity}}
	}
	if a.Units() < 1 {
		return nil
	}
	return []OrderRequest{{Type: domain.Limit, Side: domain.Sell, PriceCents: priceCents, Quantity: quantity}}
}

func (s *RandomStrategy) cancelOrders(a *Agent) []OrderRequest {
	var out []OrderRequest
	for _, o := range a.ActiveOrders() {
		if rand.Float64() < randomCancelProbability {
			out = append(out, OrderRequest{Type: domain.Cancel, Side: o.Side, CancelTarget: o.OrderID, PriceCents: o.PriceCents})
		}
	}
	return out
}

// roundToTick rounds a cents-denominated price to the nearest integer cent
// (the ladder's tick), matching the reference's round(price*100)/100 on a
// dollar-denominated price.
func roundToTick(cents float64) int64 {
	return int64(math.Round(cents))
}
