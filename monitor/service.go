// Package monitor exposes a running simulation's progress over a
// read-only HTTP API. The service doubles as the runner's progress
// tracker.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/fedbench/fedsim/pkg/fl"
)

// Status is a snapshot of run progress.
type Status struct {
	RunID        string
	Strategy     string
	State        string
	CurrentRound int
	TotalRounds  int
	NumClients   int
	LatestLoss   float64
	StartTime    time.Time
	Error        string
}

type Service interface {
	Status(ctx context.Context) (Status, error)
	History(ctx context.Context) (*fl.History, error)
}

// Monitor implements Service and the simulation runner's Tracker.
type Monitor struct {
	mu      sync.RWMutex
	status  Status
	history *fl.History
}

func NewMonitor() *Monitor {
	return &Monitor{
		status:  Status{State: "idle"},
		history: fl.NewHistory(),
	}
}

func (m *Monitor) RunStarted(runID, strategyName string, numRounds, numClients int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status = Status{
		RunID:       runID,
		Strategy:    strategyName,
		State:       "running",
		TotalRounds: numRounds,
		NumClients:  numClients,
		StartTime:   time.Now(),
	}
	m.history = fl.NewHistory()
}

func (m *Monitor) ObserveRound(round int, participants []int, loss float64, metrics map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.CurrentRound = round
	m.status.LatestLoss = loss
	m.history.AddCentralized(round, loss, metrics)
}

func (m *Monitor) RunFinished(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.status.State = "failed"
		m.status.Error = err.Error()

		return
	}
	m.status.State = "completed"
}

func (m *Monitor) Status(ctx context.Context) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.status, nil
}

// History returns a copy of the progress recorded so far.
func (m *Monitor) History(ctx context.Context) (*fl.History, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := fl.NewHistory()
	out.LossesCentralized = append(out.LossesCentralized, m.history.LossesCentralized...)
	for name, series := range m.history.MetricsCentralized {
		out.MetricsCentralized[name] = append([]fl.RoundValue{}, series...)
	}
	for name, series := range m.history.MetricsDistributedFit {
		out.MetricsDistributedFit[name] = append([]fl.RoundValue{}, series...)
	}

	return out, nil
}
