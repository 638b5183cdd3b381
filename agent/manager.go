package agent

import (
	"math"
	"math/rand"
	"sync/atomic"

	"marketsim/calendarq"
	"marketsim/domain"
)

// Kind identifies which strategy variant drives an agent, used only for
// reporting (Manager.Summary) — it plays no part in matching or accounting.
type Kind int8

const (
	KindRandom Kind = iota
	KindMarketMaker
	KindMomentum
)

func (k Kind) String() string {
	switch k {
	case KindRandom:
		return "Random Agents"
	case KindMarketMaker:
		return "Market Maker Agents"
	case KindMomentum:
		return "Momentum Trader Agents"
	default:
		return "Unknown Agents"
	}
}

// Info is a point-in-time snapshot of one agent's accounting state, grounded
// on Agent::GetInfo/AgentInfo in the reference implementation.
type Info struct {
	ClientRef domain.ClientRef
	Kind      Kind
	Available int64
	Reserved  int64
	Units     int64
}

// Info returns a snapshot of a's current accounting state. kind is supplied
// by the Manager, which is the only place that knows which strategy an
// agent was built with.
func (a *Agent) Info(kind Kind) Info {
	return Info{
		ClientRef: a.ClientRef,
		Kind:      kind,
		Available: a.Available(),
		Reserved:  a.Reserved(),
		Units:     a.Units(),
	}
}

// event is one scheduled agent action: the time it fires and the agent's
// position in Manager.agents. Ordered by time ascending via calendarq.
type event struct {
	time float64
	pos  int
}

// managedAgent pairs an Agent with the Kind used only for Summary reporting.
type managedAgent struct {
	agent *Agent
	kind  Kind
}

// Manager drives the two cooperating loops spec.md §4.9/§5 describe: a
// single-threaded outgoing loop that pops the next-scheduled agent, calls
// its strategy, and submits resulting orders; and a single-threaded
// incoming loop that round-robins every agent's trade ring drain until
// told to stop.
//
// Grounded on AgentManager.h/.cpp: the same two loops, the same calendar
// queue of (time, position) events, the same exponential-interarrival
// rescheduling.
type Manager struct {
	agents      []managedAgent
	events      *calendarq.Queue[event]
	currentTime float64
	maxTime     float64
	actions     uint64
}

// NewManager builds an empty Manager that runs until currentTime >= maxTime.
// bucketWidth and nBuckets size the underlying calendar queue (calendarq.New);
// a width comparable to the typical inter-arrival time keeps push/pop O(1).
func NewManager(maxTime float64, nBuckets int, bucketWidth float64) *Manager {
	return &Manager{
		maxTime: maxTime,
		events:  calendarq.New[event](nBuckets, bucketWidth, func(e event) float64 { return e.time }),
	}
}

// AddAgent registers an agent under kind (used only for Summary) and
// returns its position in the manager's agent list, the scheduling key used
// internally by WarmUp and the outgoing loop.
func (m *Manager) AddAgent(a *Agent, kind Kind) int {
	m.agents = append(m.agents, managedAgent{agent: a, kind: kind})
	return len(m.agents) - 1
}

// sampleExponential draws an inter-arrival interval for rate (mirrors
// sampleExponential in Agent.cpp: -ln(U)/rate for U ~ Uniform(0,1)).
func sampleExponential(rate float64) float64 {
	u := rand.Float64()
	for u == 0 {
		u = rand.Float64()
	}
	return -math.Log(u) / rate
}

// WarmUp seeds one event per agent at now + Exp(rate_i), matching
// AgentManager::WarmUp.
func (m *Manager) WarmUp() {
	for i, ma := range m.agents {
		t := m.currentTime + sampleExponential(ma.agent.Rate)
		m.events.Push(event{time: t, pos: i})
	}
}

// RunOutgoingLoop is the scheduler thread body: pop the next event, act the
// agent it names, submit every order the strategy returned, advance
// currentTime to the event's time, and reschedule that agent. Exits when
// currentTime has reached maxTime, matching AgentManager::RunOutgoingLoop.
func (m *Manager) RunOutgoingLoop() {
	for m.currentTime < m.maxTime {
		ev, ok := m.events.Pop()
		if !ok {
			break
		}
		ma := m.agents[ev.pos]
		ma.agent.Act()
		m.actions++
		m.currentTime = ev.time
		next := m.currentTime + sampleExponential(ma.agent.Rate)
		m.events.Push(event{time: next, pos: ev.pos})
	}
}

// RunIncomingLoop round-robins every agent's trade ring, draining whatever
// is queued, until running is cleared, then performs one final drain pass
// so no execution report is lost on shutdown. Matches
// AgentManager::RunIncomingLoop.
func (m *Manager) RunIncomingLoop(running *atomic.Bool) {
	for running.Load() {
		for _, ma := range m.agents {
			ma.agent.PopTrade()
		}
	}
	for _, ma := range m.agents {
		ma.agent.DrainAll()
	}
}

// NAgentActions returns the number of outgoing-loop actions taken so far,
// matching AgentManager::GetNAgentActions.
func (m *Manager) NAgentActions() uint64 {
	return m.actions
}

// KindSummary holds the mean/standard-deviation statistics for one
// strategy class, matching the fields AgentManager::PrintSummary computes
// per AgentData bucket, returned as data instead of printed so callers
// decide presentation.
type KindSummary struct {
	Kind         Kind
	Count        int
	MeanProfit   float64
	ProfitStdDev float64
	MeanCash     float64
	CashStdDev   float64
	MeanUnits    float64
	UnitsStdDev  float64
}

// Summary computes per-strategy-class mean/stddev of profit, cash, and
// units across all registered agents, matching AgentManager::PrintSummary
// but returning structured data rather than writing to stdout.
func (m *Manager) Summary() []KindSummary {
	buckets := map[Kind]*struct {
		cash   []float64
		units  []float64
		profit []float64
	}{
		KindRandom:      {},
		KindMarketMaker: {},
		KindMomentum:    {},
	}

	for _, ma := range m.agents {
		b := buckets[ma.kind]
		if b == nil {
			continue
		}
		totalCash := float64(ma.agent.CashTotal()) / 100
		units := float64(ma.agent.Units())
		profit := totalCash - float64(ma.agent.initialCash)/100
		b.cash = append(b.cash, totalCash)
		b.units = append(b.units, units)
		b.profit = append(b.profit, profit)
	}

	out := make([]KindSummary, 0, len(buckets))
	for _, kind := range []Kind{KindRandom, KindMarketMaker, KindMomentum} {
		b := buckets[kind]
		meanProfit, stdProfit := meanStdDev(b.profit)
		meanCash, stdCash := meanStdDev(b.cash)
		meanUnits, stdUnits := meanStdDev(b.units)
		out = append(out, KindSummary{
			Kind:         kind,
			Count:        len(b.profit),
			MeanProfit:   meanProfit,
			ProfitStdDev: stdProfit,
			MeanCash:     meanCash,
			CashStdDev:   stdCash,
			MeanUnits:    meanUnits,
			UnitsStdDev:  stdUnits,
		})
	}
	return out
}

// meanStdDev mirrors AgentManager::PrintSummary's calculateMean/
// calculateStdDev lambdas: population standard deviation, zero for fewer
// than two samples.
func meanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var sqSum float64
	for _, v := range values {
		d := v - mean
		sqSum += d * d
	}
	return mean, math.Sqrt(sqSum / float64(len(values)))
}
