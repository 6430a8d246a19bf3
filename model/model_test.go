package model

import (
	"errors"
	"testing"

	"github.com/fedbench/fedsim/config"
	"github.com/fedbench/fedsim/dataset"
	"github.com/fedbench/fedsim/pkg/fl"
)

func modelConfig(name string) config.ModelConfig {
	return config.ModelConfig{
		Name:        name,
		NumFeatures: 8,
		NumClasses:  3,
		HiddenDim:   16,
		Seed:        42,
	}
}

func trainLoader(t *testing.T) *dataset.Loader {
	t.Helper()

	dcfg := config.DatasetConfig{
		Name:             "synthetic",
		Partitioning:     "iid",
		SamplesPerClient: 100,
		NumFeatures:      8,
		NumClasses:       3,
	}
	train, _, _, err := dataset.Load(dcfg, 1, 0, 5, 16)
	if err != nil {
		t.Fatalf("loading data: %v", err)
	}

	return train[0]
}

func TestNewUnknownModel(t *testing.T) {
	if _, err := New(modelConfig("resnet")); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("New = %v, want %v", err, ErrUnknownModel)
	}
}

func TestSetParametersShapeMismatch(t *testing.T) {
	for _, name := range []string{"logreg", "mlp"} {
		t.Run(name, func(t *testing.T) {
			m, err := New(modelConfig(name))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			if err := m.SetParameters(fl.Parameters{{1, 2, 3}}); !errors.Is(err, ErrShapeMismatch) {
				t.Errorf("SetParameters = %v, want %v", err, ErrShapeMismatch)
			}
		})
	}
}

func TestParametersRoundtrip(t *testing.T) {
	for _, name := range []string{"logreg", "mlp"} {
		t.Run(name, func(t *testing.T) {
			m, err := New(modelConfig(name))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			params := m.Parameters()
			for l := range params {
				for j := range params[l] {
					params[l][j] = float64(l) + 0.5
				}
			}
			if err := m.SetParameters(params); err != nil {
				t.Fatalf("SetParameters failed: %v", err)
			}

			got := m.Parameters()
			if !fl.SameShape(got, params) {
				t.Fatalf("shape changed through roundtrip")
			}
			for l := range got {
				for j := range got[l] {
					if got[l][j] != params[l][j] {
						t.Fatalf("layer %d index %d: got %f, want %f", l, j, got[l][j], params[l][j])
					}
				}
			}

			// Returned parameters are a copy, not a view.
			got[0][0] = 99
			if m.Parameters()[0][0] == 99 {
				t.Errorf("Parameters exposed internal state")
			}
		})
	}
}

func TestTrainingReducesLoss(t *testing.T) {
	loader := trainLoader(t)

	for _, name := range []string{"logreg", "mlp"} {
		t.Run(name, func(t *testing.T) {
			m, err := New(modelConfig(name))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			before, _, err := m.Evaluate(loader)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}

			opts := TrainOptions{LearningRate: 0.02, Momentum: 0.9, ShuffleSeed: 1}
			for epoch := 0; epoch < 5; epoch++ {
				steps, err := m.TrainEpoch(loader, opts)
				if err != nil {
					t.Fatalf("TrainEpoch failed: %v", err)
				}
				if want := (loader.Len() + 15) / 16; steps != want {
					t.Fatalf("steps = %d, want %d", steps, want)
				}
			}

			after, _, err := m.Evaluate(loader)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if after >= before {
				t.Errorf("loss did not decrease: before %f, after %f", before, after)
			}
		})
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	loader := trainLoader(t)

	m, err := New(modelConfig("logreg"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := m.TrainEpoch(loader, TrainOptions{LearningRate: 0.05}); err != nil {
		t.Fatalf("TrainEpoch failed: %v", err)
	}

	loss1, acc1, err := m.Evaluate(loader)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	loss2, acc2, err := m.Evaluate(loader)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if loss1 != loss2 || acc1 != acc2 {
		t.Errorf("Evaluate mutated the model: (%f, %f) vs (%f, %f)", loss1, acc1, loss2, acc2)
	}
}

func TestCorrectionShapeChecked(t *testing.T) {
	loader := trainLoader(t)

	m, err := New(modelConfig("logreg"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	opts := TrainOptions{LearningRate: 0.01, Correction: fl.Parameters{{1}}}
	if _, err := m.TrainEpoch(loader, opts); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("TrainEpoch = %v, want %v", err, ErrShapeMismatch)
	}
}

func TestCorrectionShiftsUpdate(t *testing.T) {
	loader := trainLoader(t)
	cfg := modelConfig("logreg")

	base, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	start := base.Parameters()

	// Same data, same seed, one run with a zero correction and one with
	// a constant correction. The corrected run must land elsewhere.
	plain, _ := New(cfg)
	if err := plain.SetParameters(start); err != nil {
		t.Fatalf("SetParameters failed: %v", err)
	}
	corrected, _ := New(cfg)
	if err := corrected.SetParameters(start); err != nil {
		t.Fatalf("SetParameters failed: %v", err)
	}

	correction := fl.ZerosLike(start)
	for l := range correction {
		for j := range correction[l] {
			correction[l][j] = 0.5
		}
	}

	opts := TrainOptions{LearningRate: 0.1, ShuffleSeed: 2}
	if _, err := plain.TrainEpoch(loader, opts); err != nil {
		t.Fatalf("TrainEpoch failed: %v", err)
	}
	opts.Correction = correction
	if _, err := corrected.TrainEpoch(loader, opts); err != nil {
		t.Fatalf("TrainEpoch failed: %v", err)
	}

	p, c := plain.Parameters(), corrected.Parameters()
	same := true
	for l := range p {
		for j := range p[l] {
			if p[l][j] != c[l][j] {
				same = false
			}
		}
	}
	if same {
		t.Errorf("correction had no effect on the update")
	}
}
