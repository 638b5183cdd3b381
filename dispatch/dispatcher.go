// Package dispatch routes execution reports from the matching engine to the
// agent that owns each side of a trade.
//
// Grounded on include/TradeDispatcher.h / src's Attach/Detach/PushTradeInfo,
// adapted from the teacher's MatchingEngine.GetTradeBuffer() consumer-
// attachment pattern onto a client_ref-keyed registry.
package dispatch

import (
	"sync"

	"go.uber.org/zap"

	"marketsim/domain"
)

// Recipient is the subset of agent.Agent the dispatcher needs: a place to
// push an execution report. Kept as an interface so dispatch never imports
// the agent package, avoiding an import cycle (agents submit orders via the
// engine's ingress ring, not through the dispatcher).
type Recipient interface {
	PushTrade(domain.TradeInfo) bool
}

// Dispatcher holds a non-owning client_ref -> Recipient registry. Lifetime
// of the registered recipients is owned by the simulation driver, never by
// the Dispatcher itself.
type Dispatcher struct {
	mu      sync.RWMutex
	clients map[domain.ClientRef]Recipient
	log     *zap.Logger
}

// New builds an empty Dispatcher. log may be zap.NewNop() in tests.
func New(log *zap.Logger) *Dispatcher {
	return &Dispatcher{clients: make(map[domain.ClientRef]Recipient), log: log}
}

// Attach registers recipient under clientRef, matching TradeDispatcher::Attach.
func (d *Dispatcher) Attach(clientRef domain.ClientRef, recipient Recipient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clients[clientRef] = recipient
}

// Detach removes clientRef's registration, matching TradeDispatcher::Detach.
func (d *Dispatcher) Detach(clientRef domain.ClientRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.clients, clientRef)
}

// Push splits trade into its two sides and routes each to its owning
// recipient, dropping the INVALID-typed cancel placeholder. Matches
// TradeDispatcher::PushTradeInfo. Implements matching.TradeSink.
func (d *Dispatcher) Push(trade domain.Trade) {
	d.pushSide(trade.Ask)
	d.pushSide(trade.Bid)
}

func (d *Dispatcher) pushSide(info domain.TradeInfo) {
	if info.Type == domain.Invalid {
		return
	}
	d.mu.RLock()
	recipient, ok := d.clients[info.ClientRef]
	d.mu.RUnlock()
	if !ok {
		d.log.Warn("trade addressed to unknown client_ref", zap.Uint64("client_ref", uint64(info.ClientRef)))
		return
	}
	if !recipient.PushTrade(info) {
		d.log.Warn("agent trade ring overflow, execution report dropped",
			zap.Uint64("client_ref", uint64(info.ClientRef)),
			zap.Uint64("order_id", uint64(info.OrderID)))
	}
}
