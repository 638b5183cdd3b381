package agent

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsim/arena"
	"marketsim/domain"
	"marketsim/ring"
)

// fixedStrategy submits req exactly once (on the first Act) and nothing
// after, so a single-threaded WarmUp/RunOutgoingLoop test stays
// deterministic.
type fixedStrategy struct {
	req  OrderRequest
	done bool
}

func (s *fixedStrategy) Act(a *Agent) []OrderRequest {
	if s.done {
		return nil
	}
	s.done = true
	return []OrderRequest{s.req}
}

func TestManagerWarmUpSchedulesEveryAgent(t *testing.T) {
	a := arena.New(16)
	ingress := ring.New[*domain.Order](16)

	mgr := NewManager(100, 16, 1.0)
	for i := 0; i < 3; i++ {
		trades := ring.New[domain.TradeInfo](16)
		ag := New(domain.ClientRef(i+1), &fixedStrategy{}, 1.0, a, ingress, trades)
		mgr.AddAgent(ag, KindRandom)
	}

	mgr.WarmUp()
	assert.Equal(t, 3, mgr.events.Len())
}

func TestRunOutgoingLoopSubmitsOrdersAndAdvancesTime(t *testing.T) {
	a := arena.New(16)
	ingress := ring.New[*domain.Order](16)
	trades := ring.New[domain.TradeInfo](16)

	req := OrderRequest{Type: domain.Limit, Side: domain.Buy, PriceCents: 110_00, Quantity: 10}
	ag := New(1, &fixedStrategy{req: req}, 10.0, a, ingress, trades)

	mgr := NewManager(1.0, 16, 1.0)
	mgr.AddAgent(ag, KindRandom)
	mgr.WarmUp()
	mgr.RunOutgoingLoop()

	assert.GreaterOrEqual(t, mgr.NAgentActions(), uint64(1))
	assert.GreaterOrEqual(t, mgr.currentTime, mgr.maxTime, "outgoing loop exits only once currentTime reaches maxTime")

	order, ok := ingress.Pop()
	require.True(t, ok, "the strategy's single order should have been submitted on its first Act")
	assert.Equal(t, domain.Buy, order.Side)
	assert.Equal(t, int64(110_00), order.PriceCents)
}

func TestRunIncomingLoopDrainsUntilStopped(t *testing.T) {
	a := arena.New(16)
	ingress := ring.New[*domain.Order](16)
	trades := ring.New[domain.TradeInfo](16)
	ag := New(1, &fixedStrategy{}, 1.0, a, ingress, trades)

	mgr := NewManager(10, 16, 1.0)
	mgr.AddAgent(ag, KindRandom)

	trades.Push(domain.TradeInfo{ClientRef: 1, Side: domain.Sell, Type: domain.Full, PriceCents: 100_00, Quantity: 5})

	var running atomic.Bool
	running.Store(false)
	mgr.RunIncomingLoop(&running)

	assert.Equal(t, int64(InitialCashCents+500_00), ag.Available())
}

func TestSummaryGroupsByKind(t *testing.T) {
	a := arena.New(16)
	ingress := ring.New[*domain.Order](16)

	mgr := NewManager(10, 16, 1.0)
	for i := 0; i < 2; i++ {
		trades := ring.New[domain.TradeInfo](16)
		ag := New(domain.ClientRef(i+1), &fixedStrategy{}, 1.0, a, ingress, trades)
		mgr.AddAgent(ag, KindRandom)
	}
	trades := ring.New[domain.TradeInfo](16)
	mm := New(99, &fixedStrategy{}, 1.0, a, ingress, trades)
	mgr.AddAgent(mm, KindMarketMaker)

	summaries := mgr.Summary()
	require.Len(t, summaries, 3)

	byKind := make(map[Kind]KindSummary)
	for _, s := range summaries {
		byKind[s.Kind] = s
	}
	assert.Equal(t, 2, byKind[KindRandom].Count)
	assert.Equal(t, 1, byKind[KindMarketMaker].Count)
	assert.Equal(t, 0, byKind[KindMomentum].Count)
	assert.Equal(t, 0.0, byKind[KindRandom].MeanProfit, "no trades yet, no profit")
}
