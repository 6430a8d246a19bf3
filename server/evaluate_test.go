package server

import (
	"context"
	"errors"
	"testing"

	"github.com/fedbench/fedsim/config"
	"github.com/fedbench/fedsim/dataset"
	"github.com/fedbench/fedsim/model"
)

func testSetup(t *testing.T) (*dataset.Loader, config.ModelConfig) {
	t.Helper()

	dcfg := config.DatasetConfig{
		Name:             "synthetic",
		Partitioning:     "iid",
		SamplesPerClient: 50,
		NumFeatures:      5,
		NumClasses:       2,
	}
	_, _, test, err := dataset.Load(dcfg, 1, 0, 21, 16)
	if err != nil {
		t.Fatalf("loading data: %v", err)
	}

	return test, config.ModelConfig{
		Name:        "logreg",
		NumFeatures: 5,
		NumClasses:  2,
	}
}

func TestGenEvaluateFnRejectsGPU(t *testing.T) {
	test, mcfg := testSetup(t)

	if _, err := GenEvaluateFn(test, "cuda", mcfg); !errors.Is(err, ErrUnsupportedDevice) {
		t.Errorf("GenEvaluateFn = %v, want %v", err, ErrUnsupportedDevice)
	}
}

func TestEvaluateFnIdempotent(t *testing.T) {
	test, mcfg := testSetup(t)

	evaluateFn, err := GenEvaluateFn(test, "cpu", mcfg)
	if err != nil {
		t.Fatalf("GenEvaluateFn failed: %v", err)
	}

	m, err := model.New(mcfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	params := m.Parameters()
	params[0][0] = 0.3
	params[1][1] = -0.2

	ctx := context.Background()
	loss1, metrics1, err := evaluateFn(ctx, 2, params)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	loss2, metrics2, err := evaluateFn(ctx, 2, params)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	if loss1 != loss2 {
		t.Errorf("loss differs across calls: %f vs %f", loss1, loss2)
	}
	if metrics1["accuracy"] != metrics2["accuracy"] {
		t.Errorf("accuracy differs across calls: %f vs %f", metrics1["accuracy"], metrics2["accuracy"])
	}
	if acc := metrics1["accuracy"]; acc < 0 || acc > 1 {
		t.Errorf("accuracy out of range: %f", acc)
	}
}

func TestEvaluateFnShapeMismatch(t *testing.T) {
	test, mcfg := testSetup(t)

	evaluateFn, err := GenEvaluateFn(test, "cpu", mcfg)
	if err != nil {
		t.Fatalf("GenEvaluateFn failed: %v", err)
	}

	if _, _, err := evaluateFn(context.Background(), 1, nil); !errors.Is(err, model.ErrShapeMismatch) {
		t.Errorf("evaluate = %v, want %v", err, model.ErrShapeMismatch)
	}
}

func TestEvaluateFnCanceledContext(t *testing.T) {
	test, mcfg := testSetup(t)

	evaluateFn, err := GenEvaluateFn(test, "cpu", mcfg)
	if err != nil {
		t.Fatalf("GenEvaluateFn failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := evaluateFn(ctx, 1, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("evaluate = %v, want %v", err, context.Canceled)
	}
}
