package regime

import "RegimeSentinel/internal/model"

// Summarize computes per-state counts and feature means.
func Summarize(rows []model.FeatureRow, states []int, nStates int) []model.StateSummary {
	out := make([]model.StateSummary, nStates)
	for i := range out {
		out[i].State = i
	}
	for i, s := range states {
		if s < 0 || s >= nStates || i >= len(rows) {
			continue
		}
		out[s].Count++
		out[s].MeanReturn += rows[i].Returns
		out[s].MeanVolatility += rows[i].Volatility
		out[s].MeanVolumeChange += rows[i].VolumeChange
	}
	for i := range out {
		c := float64(out[i].Count)
		if c == 0 {
			continue
		}
		out[i].Share = c / float64(len(states))
		out[i].MeanReturn /= c
		out[i].MeanVolatility /= c
		out[i].MeanVolumeChange /= c
	}
	return out
}
