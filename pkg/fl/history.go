package fl

import (
	"fmt"
	"sort"
	"strings"
)

// RoundValue is one per-round scalar in a history series.
type RoundValue struct {
	Round int     `json:"round"`
	Value float64 `json:"value"`
}

// History accumulates per-round results of a simulation. It is
// append-only while the run is in progress and read-only afterwards.
type History struct {
	LossesCentralized     []RoundValue            `json:"losses_centralized"`
	MetricsCentralized    map[string][]RoundValue `json:"metrics_centralized,omitempty"`
	MetricsDistributedFit map[string][]RoundValue `json:"metrics_distributed_fit,omitempty"`
}

func NewHistory() *History {
	return &History{
		LossesCentralized:     []RoundValue{},
		MetricsCentralized:    make(map[string][]RoundValue),
		MetricsDistributedFit: make(map[string][]RoundValue),
	}
}

// AddCentralized records the server-side evaluation of a round.
func (h *History) AddCentralized(round int, loss float64, metrics map[string]float64) {
	h.LossesCentralized = append(h.LossesCentralized, RoundValue{Round: round, Value: loss})
	for name, value := range metrics {
		h.MetricsCentralized[name] = append(h.MetricsCentralized[name], RoundValue{Round: round, Value: value})
	}
}

// AddDistributedFit records metrics reported by clients during fit.
func (h *History) AddDistributedFit(round int, metrics map[string]float64) {
	for name, value := range metrics {
		h.MetricsDistributedFit[name] = append(h.MetricsDistributedFit[name], RoundValue{Round: round, Value: value})
	}
}

// NumRounds returns the highest round number recorded so far.
func (h *History) NumRounds() int {
	max := 0
	for _, rv := range h.LossesCentralized {
		if rv.Round > max {
			max = rv.Round
		}
	}

	return max
}

func (h *History) String() string {
	var b strings.Builder
	b.WriteString("History (loss, centralized):\n")
	for _, rv := range h.LossesCentralized {
		fmt.Fprintf(&b, "\tround %d: %.6f\n", rv.Round, rv.Value)
	}

	names := make([]string, 0, len(h.MetricsCentralized))
	for name := range h.MetricsCentralized {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "History (%s, centralized):\n", name)
		for _, rv := range h.MetricsCentralized[name] {
			fmt.Fprintf(&b, "\tround %d: %.6f\n", rv.Round, rv.Value)
		}
	}

	return b.String()
}
