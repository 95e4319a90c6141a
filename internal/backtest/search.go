package backtest

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"

	"RegimeSentinel/internal/model"
)

// Combination is one buy/sell assignment tried by Search.
type Combination struct {
	Buy  LabelSet `json:"buy"`
	Sell LabelSet `json:"sell"`
}

// MaxSearchStates bounds Search. The number of combinations grows as 3^n.
const MaxSearchStates = 10

// Outcome is the summary of one combination's simulation. The value series
// is dropped so that memory stays proportional to the combination count.
type Outcome struct {
	Combination
	FinalValue  float64 `json:"final_value"`
	TotalReturn float64 `json:"total_return"`
	MaxDrawdown float64 `json:"max_drawdown"`
	Trades      int     `json:"trades"`
}

// SearchResult holds every outcome in enumeration order, the best one and
// the full simulation of the best one.
type SearchResult struct {
	Best       Outcome   `json:"best"`
	BestResult *Result   `json:"best_result"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Combinations enumerates every non-empty buy subset of [0, nStates) paired
// with every non-empty sell subset of the remaining labels.
func Combinations(nStates int) []Combination {
	var out []Combination
	full := 1<<nStates - 1
	for b := 1; b <= full; b++ {
		rest := full &^ b
		for s := 1; s <= rest; s++ {
			if s&^rest != 0 {
				continue
			}
			out = append(out, Combination{Buy: fromMask(b), Sell: fromMask(s)})
		}
	}
	return out
}

func fromMask(mask int) LabelSet {
	var s LabelSet
	for i := 0; mask>>i != 0; i++ {
		if mask>>i&1 == 1 {
			s = append(s, i)
		}
	}
	return s
}

// Search runs Simulate for every combination on a pool of workers and keeps
// the highest final value. Ties go to the earliest combination.
func Search(prices []float64, states []int, nStates int, initialCash float64, workers int) (*SearchResult, error) {
	if nStates < 2 || nStates > MaxSearchStates {
		return nil, fmt.Errorf("%w: search needs between 2 and %d states, got %d", model.ErrConfiguration, MaxSearchStates, nStates)
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	combos := Combinations(nStates)
	outcomes := make([]Outcome, len(combos))
	errs := make([]error, len(combos))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := Simulate(prices, states, initialCash, combos[i].Buy, combos[i].Sell)
				if err != nil {
					errs[i] = err
					continue
				}
				outcomes[i] = Outcome{
					Combination: combos[i],
					FinalValue:  res.FinalValue,
					TotalReturn: res.TotalReturn,
					MaxDrawdown: res.MaxDrawdown,
					Trades:      len(res.Trades),
				}
			}
		}()
	}
	for i := range combos {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	best := -1
	for i, o := range outcomes {
		if errs[i] != nil {
			return nil, errs[i]
		}
		if best < 0 || o.FinalValue > outcomes[best].FinalValue {
			best = i
		}
	}

	bestResult, err := Simulate(prices, states, initialCash, outcomes[best].Buy, outcomes[best].Sell)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("combinations", len(combos)).
		Str("buy", outcomes[best].Buy.String()).
		Str("sell", outcomes[best].Sell.String()).
		Float64("final_value", outcomes[best].FinalValue).
		Msg("search finished")
	return &SearchResult{Best: outcomes[best], BestResult: bestResult, Outcomes: outcomes}, nil
}
