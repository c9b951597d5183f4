package agent

import (
	"context"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"snakedqn/internal/memory"
	"snakedqn/internal/nn"
	"snakedqn/internal/storage"
)

// fakeNet maps each state row through a fixed function and records calls
type fakeNet struct {
	values func(state []float64) []float64
	trains int
	syncs  int
}

func (f *fakeNet) Predict(states mat.Matrix) *mat.Dense {
	r, _ := states.Dims()
	var out *mat.Dense
	for i := 0; i < r; i++ {
		v := f.values(mat.Row(nil, i, states))
		if out == nil {
			out = mat.NewDense(r, len(v), nil)
		}
		out.SetRow(i, v)
	}
	return out
}

func (f *fakeNet) Train(states, targets mat.Matrix) float64 {
	f.trains++
	return 0
}

func (f *fakeNet) SyncFrom(nn.Approximator) error {
	f.syncs++
	return nil
}

func (f *fakeNet) Params() nn.Params { return nn.Params{} }
func (f *fakeNet) SetParams(nn.Params) error { return nil }

func constant(vals ...float64) func([]float64) []float64 {
	return func([]float64) []float64 { return append([]float64(nil), vals...) }
}

func testConfig() Config {
	return Config{Gamma: 0.9, BatchSize: 4, UpdateEvery: 3, NumActions: 4}
}

func newFakeAgent(t *testing.T, local, target *fakeNet, capacity int) *Agent {
	t.Helper()
	buf, err := memory.New(capacity, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}
	a, err := New(local, target, buf, rand.New(rand.NewSource(2)), testConfig())
	if err != nil {
		t.Fatalf("agent: %v", err)
	}
	return a
}

func newMLPAgent(t *testing.T, seed uint64) *Agent {
	t.Helper()
	sizes := nn.Sizes(3, []int{6}, 4)
	local, err := nn.NewMLP(sizes, nn.DefaultLearningRate, rand.New(rand.NewSource(seed)))
	if err != nil {
		t.Fatalf("local: %v", err)
	}
	target, err := nn.NewMLP(sizes, nn.DefaultLearningRate, rand.New(rand.NewSource(seed+1)))
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	buf, err := memory.New(100, rand.New(rand.NewSource(seed+2)))
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}
	a, err := New(local, target, buf, rand.New(rand.NewSource(seed+3)), testConfig())
	if err != nil {
		t.Fatalf("agent: %v", err)
	}
	return a
}

func fillMemory(a *Agent, n int) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < n; i++ {
		s := []float64{rng.Float64(), rng.Float64(), rng.Float64()}
		next := []float64{rng.Float64(), rng.Float64(), rng.Float64()}
		a.AddExperience(memory.Experience{
			State:     s,
			Action:    rng.Intn(4),
			Reward:    rng.Float64()*2 - 1,
			NextState: next,
			Done:      i%5 == 4,
		})
	}
}

func TestNewValidatesInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	small, _ := memory.New(4, rng)
	net := &fakeNet{values: constant(0, 0, 0, 0)}

	if _, err := New(net, net, small, rng, testConfig()); err == nil {
		t.Fatalf("expected capacity <= batch size to be rejected")
	}

	big, _ := memory.New(10, rng)
	cfg := testConfig()
	cfg.UpdateEvery = 0
	if _, err := New(net, net, big, rng, cfg); err == nil {
		t.Fatalf("expected invalid config to be rejected")
	}
	if _, err := New(nil, net, big, rng, testConfig()); err == nil {
		t.Fatalf("expected missing network to be rejected")
	}
}

func TestNewSyncsTargetToLocal(t *testing.T) {
	local := &fakeNet{values: constant(0, 0, 0, 0)}
	target := &fakeNet{values: constant(0, 0, 0, 0)}
	newFakeAgent(t, local, target, 10)
	if target.syncs != 1 {
		t.Fatalf("expected one initial sync, got %d", target.syncs)
	}
}

func TestTargetsForTerminalRowIsReward(t *testing.T) {
	local := &fakeNet{values: constant(1, 2, 3, 4)}
	target := &fakeNet{values: constant(100, 100, 100, 100)}
	a := newFakeAgent(t, local, target, 10)

	batch := memory.Batch{
		States:     mat.NewDense(1, 2, []float64{0, 0}),
		NextStates: mat.NewDense(1, 2, []float64{0, 0}),
		Actions:    []int{2},
		Rewards:    []float64{-50},
		Dones:      []bool{true},
	}
	got := a.Targets(batch)
	want := []float64{1, 2, -50, 4}
	for j, w := range want {
		if got.At(0, j) != w {
			t.Fatalf("target[0][%d] = %v, want %v", j, got.At(0, j), w)
		}
	}
}

func TestTargetsUseDoubleDQN(t *testing.T) {
	// the local network prefers action 1 in the next state while the target
	// network values action 3 highest; the bootstrap must use target's value of 1
	local := &fakeNet{values: func(s []float64) []float64 {
		if s[0] == 1 {
			return []float64{0, 5, 1, 2}
		}
		return []float64{0.5, 0.5, 0.5, 0.5}
	}}
	target := &fakeNet{values: constant(10, 20, 30, 40)}
	a := newFakeAgent(t, local, target, 10)

	batch := memory.Batch{
		States:     mat.NewDense(2, 1, []float64{0, 0}),
		NextStates: mat.NewDense(2, 1, []float64{1, 1}),
		Actions:    []int{0, 3},
		Rewards:    []float64{-1, 50},
		Dones:      []bool{false, false},
	}
	got := a.Targets(batch)

	if want := -1 + 0.9*20; got.At(0, 0) != want {
		t.Fatalf("row 0 taken action target = %v, want %v", got.At(0, 0), want)
	}
	if want := 50 + 0.9*20; got.At(1, 3) != want {
		t.Fatalf("row 1 taken action target = %v, want %v", got.At(1, 3), want)
	}
	for _, j := range []int{1, 2, 3} {
		if got.At(0, j) != 0.5 {
			t.Fatalf("untaken action %d changed: %v", j, got.At(0, j))
		}
	}
}

func TestLearnWaitsForMoreThanABatch(t *testing.T) {
	local := &fakeNet{values: constant(0, 0, 0, 0)}
	target := &fakeNet{values: constant(0, 0, 0, 0)}
	a := newFakeAgent(t, local, target, 10)

	for i := 0; i < testConfig().BatchSize; i++ {
		a.AddExperience(memory.Experience{State: []float64{1}, NextState: []float64{2}})
		if _, trained := a.Learn(); trained {
			t.Fatalf("learned with only %d experiences", a.Memory().Len())
		}
	}
	if local.trains != 0 {
		t.Fatalf("expected no training, got %d", local.trains)
	}

	a.AddExperience(memory.Experience{State: []float64{1}, NextState: []float64{2}})
	if _, trained := a.Learn(); !trained {
		t.Fatalf("expected training once the buffer exceeds a batch")
	}
	if local.trains != 1 {
		t.Fatalf("expected one training step, got %d", local.trains)
	}
}

func TestActGreedyWithZeroEpsilon(t *testing.T) {
	local := &fakeNet{values: constant(0.1, 0.7, 0.7, -3)}
	target := &fakeNet{values: constant(0, 0, 0, 0)}
	a := newFakeAgent(t, local, target, 10)
	for i := 0; i < 50; i++ {
		if got := a.Act([]float64{0}, 0); got != 1 {
			t.Fatalf("expected greedy action 1, got %d", got)
		}
	}
}

func TestActExploresWithFullEpsilon(t *testing.T) {
	local := &fakeNet{values: constant(9, 0, 0, 0)}
	target := &fakeNet{values: constant(0, 0, 0, 0)}
	a := newFakeAgent(t, local, target, 10)
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		act := a.Act([]float64{0}, 1)
		if act < 0 || act >= 4 {
			t.Fatalf("action %d out of range", act)
		}
		seen[act] = true
	}
	if len(seen) != 4 {
		t.Fatalf("expected every action to be explored, saw %v", seen)
	}
}

func TestAddExperienceRejectsBadAction(t *testing.T) {
	local := &fakeNet{values: constant(0, 0, 0, 0)}
	a := newFakeAgent(t, local, &fakeNet{values: constant(0, 0, 0, 0)}, 10)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for action 4")
		}
	}()
	a.AddExperience(memory.Experience{State: []float64{0}, Action: 4, NextState: []float64{0}})
}

func TestTargetSyncEveryUpdateEveryTrainedCalls(t *testing.T) {
	a := newMLPAgent(t, 10)
	fillMemory(a, 20)

	for i := 1; i <= testConfig().UpdateEvery; i++ {
		if _, trained := a.Learn(); !trained {
			t.Fatalf("learn %d did not train", i)
		}
		synced := a.Target().Params().Equal(a.Local().Params())
		if i < testConfig().UpdateEvery && synced {
			t.Fatalf("target synced early after %d updates", i)
		}
		if i == testConfig().UpdateEvery && !synced {
			t.Fatalf("target not synced after %d updates", i)
		}
	}
	if a.Syncs() != 1 {
		t.Fatalf("expected one sync, got %d", a.Syncs())
	}

	a.Learn()
	if a.Target().Params().Equal(a.Local().Params()) {
		t.Fatalf("target should lag local after the next update")
	}
}

func TestPersistRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	trained := newMLPAgent(t, 20)
	fillMemory(trained, 20)
	for i := 0; i < 5; i++ {
		trained.Learn()
	}
	if err := trained.Persist(ctx, store, "snake"); err != nil {
		t.Fatalf("persist: %v", err)
	}

	fresh := newMLPAgent(t, 30)
	found, err := fresh.Restore(ctx, store, "snake")
	if err != nil || !found {
		t.Fatalf("restore: found=%v err=%v", found, err)
	}
	if !fresh.Local().Params().Equal(trained.Local().Params()) {
		t.Fatalf("restored local network differs")
	}
	if !fresh.Target().Params().Equal(trained.Local().Params()) {
		t.Fatalf("restored target network differs")
	}

	state := []float64{0.2, 0.4, 0.6}
	if fresh.Greedy(state) != trained.Greedy(state) {
		t.Fatalf("restored agent acts differently")
	}
}

func TestRestoreMissingKey(t *testing.T) {
	a := newMLPAgent(t, 40)
	before := a.Local().Params()
	found, err := a.Restore(context.Background(), storage.NewMemoryStore(), "absent")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if found {
		t.Fatalf("expected missing key")
	}
	if !a.Local().Params().Equal(before) {
		t.Fatalf("missing key changed the network")
	}
}
