package switching

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/stratswitch/internal/config"
	"github.com/sawpanic/stratswitch/internal/domain/condition"
	"github.com/sawpanic/stratswitch/internal/domain/market"
	"github.com/sawpanic/stratswitch/internal/domain/scoring"
	"github.com/sawpanic/stratswitch/internal/simulation"
	"github.com/sawpanic/stratswitch/internal/strategy"
)

// Risk caps applied to strategy defaults per instrument class. Currency
// pairs keep the strategy's own value.
var classRiskCaps = map[market.InstrumentClass]float64{
	market.ClassRateIndex:     0.015,
	market.ClassPreciousMetal: 0.015,
	market.ClassCryptoAsset:   0.01,
}

// AdjustedParams returns a copy of the descriptor defaults with the risk cap
// lowered for the instrument class.
func AdjustedParams(desc strategy.Descriptor, class market.InstrumentClass) strategy.Params {
	params := desc.DefaultParams.Clone()
	if riskCap, ok := classRiskCaps[class]; ok {
		params[strategy.ParamRiskCap] = riskCap
	}
	return params
}

type pairTask struct {
	instrument string
	class      market.InstrumentClass
	desc       strategy.Descriptor
	window     market.PriceSeries
	condition  condition.MarketCondition
}

type pairResult struct {
	score *scoring.PerformanceScore
	skip  *SkippedPair
}

// rank evaluates every (instrument, strategy) pair with data and returns
// the scores sorted best first. Equal composites keep config order.
func (c *Controller) rank(ctx context.Context, cfg config.SwitchingConfig, priceData map[string]market.PriceSeries) ([]scoring.PerformanceScore, []SkippedPair) {
	var skipped []SkippedPair

	candidates := make([]strategy.Descriptor, 0, len(cfg.TestStrategies))
	for _, id := range cfg.TestStrategies {
		desc, err := c.registry.Lookup(id)
		if err != nil {
			log.Warn().Err(err).Str("strategy", id).Msg("Skipping unknown candidate strategy")
			skipped = append(skipped, SkippedPair{StrategyID: id, Reason: SkipUnknownStrategy, Error: err.Error()})
			c.metrics.PairSkipped(string(SkipUnknownStrategy))
			continue
		}
		candidates = append(candidates, desc)
	}

	var tasks []pairTask
	for _, inst := range cfg.MonitoredInstruments {
		series, ok := priceData[inst]
		if !ok || series.Empty() {
			skipped = append(skipped, SkippedPair{Instrument: inst, Reason: SkipNoData})
			c.metrics.PairSkipped(string(SkipNoData))
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		mc := c.classifier.Classify(series, inst)
		class := mc.Class
		if class == "" {
			class = market.ClassifyInstrument(inst)
		}
		window := series.Tail(cfg.EvaluationPeriod)
		for _, desc := range candidates {
			tasks = append(tasks, pairTask{instrument: inst, class: class, desc: desc, window: window, condition: mc})
		}
	}

	results := make([]pairResult, len(tasks))
	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			results[i] = c.evaluatePair(ctx, cfg, task)
			return nil
		})
	}
	_ = g.Wait()

	ranking := make([]scoring.PerformanceScore, 0, len(results))
	for _, r := range results {
		switch {
		case r.score != nil:
			ranking = append(ranking, *r.score)
			c.metrics.PairScored(r.score.StrategyID, r.score.Instrument, r.score.Composite)
		case r.skip != nil:
			skipped = append(skipped, *r.skip)
			c.metrics.PairSkipped(string(r.skip.Reason))
		}
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Composite > ranking[j].Composite
	})
	return ranking, skipped
}

// evaluatePair simulates and scores one pair. Simulation failures, timeouts
// and panics become skips.
func (c *Controller) evaluatePair(ctx context.Context, cfg config.SwitchingConfig, task pairTask) (res pairResult) {
	inst := task.instrument
	logger := log.With().Str("strategy", task.desc.ID).Str("instrument", inst).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Simulation panicked, pair skipped")
			res = pairResult{skip: &SkippedPair{
				Instrument: inst,
				StrategyID: task.desc.ID,
				Reason:     SkipSimulationFailed,
				Error:      fmt.Sprintf("panic: %v", r),
			}}
		}
	}()

	simCtx, cancel := context.WithTimeout(ctx, cfg.SimulationTimeout)
	defer cancel()

	metrics, err := c.simulator.Run(simCtx, simulation.Request{
		StrategyID: task.desc.ID,
		Params:     AdjustedParams(task.desc, task.class),
		Window:     task.window,
		Instrument: inst,
	})
	if err == nil && simCtx.Err() != nil && ctx.Err() == nil {
		err = simCtx.Err()
	}
	if err != nil {
		reason := SkipSimulationFailed
		if errors.Is(err, context.DeadlineExceeded) {
			reason = SkipSimulationTimeout
		}
		logger.Warn().Err(err).Str("reason", string(reason)).Msg("Simulation failed, pair skipped")
		return pairResult{skip: &SkippedPair{
			Instrument: inst,
			StrategyID: task.desc.ID,
			Reason:     reason,
			Error:      err.Error(),
		}}
	}

	ps := c.scorer.Score(metrics, task.condition, task.desc.ID, inst)
	return pairResult{score: &ps}
}
