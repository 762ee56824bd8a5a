// Package graph builds the contributor collaboration graph: participant
// extraction, weight accumulation, alias reconciliation and annotation.
package graph

import (
	"math"

	"github.com/rohankatakam/collabgraph/internal/config"
)

// weightScale is the number of Weight units per 1.0.
const weightScale = 1000

// Weight is a fixed-point weight in thousandths. Integer addition makes
// totals independent of the order contributions arrive in.
type Weight int64

// WeightOf converts a float to the nearest representable Weight.
func WeightOf(f float64) Weight {
	return Weight(math.Round(f * weightScale))
}

// Float converts back for serialization.
func (w Weight) Float() float64 {
	return float64(w) / weightScale
}

// Weights are the increments applied while building the graph.
type Weights struct {
	NodeInitial     Weight
	NodeRepoBonus   Weight
	CoParticipation Weight
	Interaction     Weight
	ManualEdge      Weight
}

// DefaultWeights returns 1.0 / 0.2 / 0.5 / 2.0 and 1.0 for manual edges.
func DefaultWeights() Weights {
	return WeightsFromConfig(config.Default().Weights)
}

func WeightsFromConfig(c config.WeightsConfig) Weights {
	return Weights{
		NodeInitial:     WeightOf(c.NodeInitial),
		NodeRepoBonus:   WeightOf(c.NodeRepoBonus),
		CoParticipation: WeightOf(c.CoParticipation),
		Interaction:     WeightOf(c.Interaction),
		ManualEdge:      WeightOf(c.ManualEdge),
	}
}
