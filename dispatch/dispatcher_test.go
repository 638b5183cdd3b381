package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"marketsim/domain"
)

type fakeRecipient struct {
	received []domain.TradeInfo
	accept   bool
}

func (f *fakeRecipient) PushTrade(info domain.TradeInfo) bool {
	if !f.accept {
		return false
	}
	f.received = append(f.received, info)
	return true
}

func TestPushRoutesEachSideToItsOwner(t *testing.T) {
	d := New(zap.NewNop())
	buyer := &fakeRecipient{accept: true}
	seller := &fakeRecipient{accept: true}
	d.Attach(1, buyer)
	d.Attach(2, seller)

	trade := domain.Trade{
		Bid: domain.TradeInfo{ClientRef: 1, Side: domain.Buy, Type: domain.Full, PriceCents: 110_00, Quantity: 10},
		Ask: domain.TradeInfo{ClientRef: 2, Side: domain.Sell, Type: domain.Full, PriceCents: 110_00, Quantity: 10},
	}
	d.Push(trade)

	require.Len(t, buyer.received, 1)
	assert.Equal(t, domain.ClientRef(1), buyer.received[0].ClientRef)
	require.Len(t, seller.received, 1)
	assert.Equal(t, domain.ClientRef(2), seller.received[0].ClientRef)
}

func TestPushDropsInvalidPlaceholder(t *testing.T) {
	d := New(zap.NewNop())
	owner := &fakeRecipient{accept: true}
	d.Attach(1, owner)

	trade := domain.Trade{
		Bid: domain.TradeInfo{ClientRef: 1, Side: domain.Buy, Type: domain.ExecCancel, PriceCents: 110_00, Quantity: 10},
		Ask: domain.TradeInfo{Type: domain.Invalid},
	}
	d.Push(trade)

	require.Len(t, owner.received, 1)
	assert.Equal(t, domain.ExecCancel, owner.received[0].Type)
}

func TestPushToUnknownClientRefIsANoop(t *testing.T) {
	d := New(zap.NewNop())
	trade := domain.Trade{
		Bid: domain.TradeInfo{ClientRef: 99, Side: domain.Buy, Type: domain.Full, PriceCents: 100_00, Quantity: 1},
		Ask: domain.TradeInfo{Type: domain.Invalid},
	}
	assert.NotPanics(t, func() { d.Push(trade) })
}

func TestDetachStopsRouting(t *testing.T) {
	d := New(zap.NewNop())
	owner := &fakeRecipient{accept: true}
	d.Attach(1, owner)
	d.Detach(1)

	trade := domain.Trade{
		Bid: domain.TradeInfo{ClientRef: 1, Side: domain.Buy, Type: domain.Full, PriceCents: 100_00, Quantity: 1},
		Ask: domain.TradeInfo{Type: domain.Invalid},
	}
	d.Push(trade)
	assert.Empty(t, owner.received)
}
