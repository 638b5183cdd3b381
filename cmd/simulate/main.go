// Command simulate wires the order arena, ring buffers, order book,
// matching engine, trade dispatcher, agents, and agent manager together and
// runs the three concurrent loops spec.md §4.9/§5 describes: the outgoing
// (scheduler) loop, the engine loop, and the incoming (dispatch-drain) loop.
//
// The interactive parameter-prompt CLI is out of scope per spec.md §1; this
// binary takes flags instead, satisfying the same External Interface
// contract (spec.md §6) without reimplementing the prompt loop.
package main

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"marketsim/agent"
	"marketsim/arena"
	"marketsim/config"
	"marketsim/dispatch"
	"marketsim/domain"
	"marketsim/matching"
	"marketsim/orderbook"
	"marketsim/ring"
)

const (
	ringCapacity  = 1024
	idMapCapacity = 1 << 16
	arenaCapacity = 1 << 20

	calendarBuckets     = 1024
	calendarBucketWidth = 1.0
)

func main() {
	p := config.Default()
	fs := pflag.NewFlagSet("simulate", pflag.ExitOnError)
	fs.IntVar(&p.NRandom, "n-random", p.NRandom, "number of random-strategy agents")
	fs.Float64Var(&p.RandomRate, "random-rate", p.RandomRate, "random agents' action rate (events/time unit)")
	fs.Float64Var(&p.Sigma, "sigma", p.Sigma, "random strategy's price noise std-dev, in cents")
	fs.IntVar(&p.NMarketMaker, "n-market-maker", p.NMarketMaker, "number of market-maker agents")
	fs.Float64Var(&p.MarketMakerRate, "market-maker-rate", p.MarketMakerRate, "market-maker agents' action rate")
	fs.Float64Var(&p.Spread, "spread", p.Spread, "market-maker quoted spread, in cents")
	fs.IntVar(&p.NMomentum, "n-momentum", p.NMomentum, "number of momentum-trader agents")
	fs.Float64Var(&p.MomentumRate, "momentum-rate", p.MomentumRate, "momentum-trader agents' action rate")
	fs.Float64Var(&p.Threshold, "threshold", p.Threshold, "momentum strategy's moving-average divergence threshold, in cents")
	fs.Float64Var(&p.MaxTime, "max-time", p.MaxTime, "logical time at which the outgoing loop stops")
	showBook := fs.Bool("print-book", false, "render the final order book to stdout")
	showSummary := fs.Bool("print-summary", true, "print per-strategy summary statistics")
	_ = fs.Parse(os.Args[1:])

	if err := p.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, _ := zap.NewProduction()
	defer log.Sync()

	if err := run(p, log, *showBook, *showSummary); err != nil {
		log.Error("simulation failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(p config.Params, log *zap.Logger, showBook, showSummary bool) error {
	a := arena.New(arenaCapacity)
	book := orderbook.New(a, idMapCapacity)
	disp := dispatch.New(log)
	engine := matching.NewEngine(book, a, disp, log)
	ingress := ring.New[*domain.Order](ringCapacity)

	mgr := agent.NewManager(p.MaxTime, calendarBuckets, calendarBucketWidth)

	var clientRef domain.ClientRef
	addAgent := func(strategy agent.Strategy, rate float64, kind agent.Kind) {
		clientRef++
		trades := ring.New[domain.TradeInfo](ringCapacity)
		ag := agent.New(clientRef, strategy, rate, a, ingress, trades)
		disp.Attach(clientRef, ag)
		mgr.AddAgent(ag, kind)
	}

	for i := 0; i < p.NRandom; i++ {
		addAgent(agent.NewRandomStrategy(book, p.Sigma), p.RandomRate, agent.KindRandom)
	}
	for i := 0; i < p.NMarketMaker; i++ {
		addAgent(agent.NewMarketMakerStrategy(book, int64(p.Spread)), p.MarketMakerRate, agent.KindMarketMaker)
	}
	for i := 0; i < p.NMomentum; i++ {
		addAgent(agent.NewMomentumStrategy(book, p.Threshold), p.MomentumRate, agent.KindMomentum)
	}

	var running, shutdown atomic.Bool
	running.Store(true)

	engineDone := make(chan struct{})
	incomingDone := make(chan struct{})

	go func() {
		engine.RunLoop(ingress, &shutdown)
		close(engineDone)
	}()
	go func() {
		mgr.RunIncomingLoop(&running)
		close(incomingDone)
	}()

	log.Info("simulation starting",
		zap.Int("n_random", p.NRandom),
		zap.Int("n_market_maker", p.NMarketMaker),
		zap.Int("n_momentum", p.NMomentum),
		zap.Float64("max_time", p.MaxTime))

	mgr.WarmUp()
	mgr.RunOutgoingLoop()

	// The engine drains its ingress ring before exiting; only then is the
	// incoming loop stopped, so its final drain sees every trade emitted.
	shutdown.Store(true)
	<-engineDone
	running.Store(false)
	<-incomingDone

	log.Info("simulation finished", zap.Uint64("agent_actions", mgr.NAgentActions()))

	if showBook {
		book.Render(os.Stdout)
	}
	if showSummary {
		printSummary(mgr.Summary())
	}
	return nil
}

func printSummary(summaries []agent.KindSummary) {
	for _, s := range summaries {
		if s.Count == 0 {
			continue
		}
		fmt.Printf("%s (n=%d)\n", s.Kind, s.Count)
		fmt.Printf("  mean profit: %.3f  profit σ: %.3f\n", s.MeanProfit, s.ProfitStdDev)
		fmt.Printf("  mean cash:   %.3f  cash σ:   %.3f\n", s.MeanCash, s.CashStdDev)
		fmt.Printf("  mean units:  %.3f  units σ:  %.3f\n", s.MeanUnits, s.UnitsStdDev)
		fmt.Println()
	}
}
