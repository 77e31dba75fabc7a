package scenario

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func noopHandler(ctx context.Context, s *Session) error { return nil }

func TestTaskSet_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ts      TaskSet
		wantErr bool
	}{
		{
			name: "valid weighted",
			ts: TaskSet{
				Name: "ok",
				Mode: ModeWeighted,
				Operations: []Operation{
					{Name: "a", Weight: 1, Run: noopHandler},
				},
			},
		},
		{
			name:    "missing name",
			ts:      TaskSet{Operations: []Operation{{Name: "a", Weight: 1, Run: noopHandler}}},
			wantErr: true,
		},
		{
			name:    "no operations",
			ts:      TaskSet{Name: "empty"},
			wantErr: true,
		},
		{
			name: "zero weight in weighted mode",
			ts: TaskSet{
				Name: "w",
				Mode: ModeWeighted,
				Operations: []Operation{
					{Name: "a", Weight: 0, Run: noopHandler},
				},
			},
			wantErr: true,
		},
		{
			name: "zero weight fine in sequential mode",
			ts: TaskSet{
				Name: "s",
				Mode: ModeSequential,
				Operations: []Operation{
					{Name: "a", Run: noopHandler},
				},
			},
		},
		{
			name: "nil handler",
			ts: TaskSet{
				Name: "h",
				Mode: ModeWeighted,
				Operations: []Operation{
					{Name: "a", Weight: 1},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ts.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTaskSet_PickRespectWeights(t *testing.T) {
	ts := &TaskSet{
		Name: "weights",
		Mode: ModeWeighted,
		Operations: []Operation{
			{Name: "heavy", Weight: 9, Run: noopHandler},
			{Name: "light", Weight: 1, Run: noopHandler},
		},
	}

	rng := rand.New(rand.NewSource(42))
	counts := map[string]int{}
	const draws = 10000
	for i := 0; i < draws; i++ {
		counts[ts.Pick(rng).Name]++
	}

	// Expect roughly 90/10 with generous tolerance.
	heavyFrac := float64(counts["heavy"]) / draws
	if heavyFrac < 0.85 || heavyFrac > 0.95 {
		t.Errorf("heavy fraction = %.3f, want ~0.9", heavyFrac)
	}
	if counts["light"] == 0 {
		t.Error("light operation never picked")
	}
}

func TestIterator_SequentialOrder(t *testing.T) {
	ts := &TaskSet{
		Name: "seq",
		Mode: ModeSequential,
		Operations: []Operation{
			{Name: "first", Run: noopHandler},
			{Name: "second", Run: noopHandler},
			{Name: "third", Run: noopHandler},
		},
	}

	it := ts.Iter(rand.New(rand.NewSource(1)))
	want := []string{"first", "second", "third"}
	for _, name := range want {
		op, ok := it.Next()
		if !ok {
			t.Fatalf("Next() ended early, want %q", name)
		}
		if op.Name != name {
			t.Errorf("Next() = %q, want %q", op.Name, name)
		}
	}

	// Non-looping set ends after the last operation.
	if _, ok := it.Next(); ok {
		t.Error("Next() after final operation = ok, want end")
	}
	if _, ok := it.Next(); ok {
		t.Error("Next() remains ended once finished")
	}
}

func TestIterator_SequentialLoop(t *testing.T) {
	ts := &TaskSet{
		Name: "loop",
		Mode: ModeSequential,
		Loop: true,
		Operations: []Operation{
			{Name: "a", Run: noopHandler},
			{Name: "b", Run: noopHandler},
		},
	}

	it := ts.Iter(rand.New(rand.NewSource(1)))
	want := []string{"a", "b", "a", "b", "a"}
	for i, name := range want {
		op, ok := it.Next()
		if !ok {
			t.Fatalf("Next() #%d ended, want %q", i, name)
		}
		if op.Name != name {
			t.Errorf("Next() #%d = %q, want %q", i, op.Name, name)
		}
	}
}

func TestPause_Duration(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p := Pause{Min: 100 * time.Millisecond, Max: 200 * time.Millisecond}

	for i := 0; i < 100; i++ {
		d := p.Duration(rng)
		if d < p.Min || d >= p.Max {
			t.Fatalf("Duration() = %v, want in [%v, %v)", d, p.Min, p.Max)
		}
	}

	if d := NoPause.Duration(rng); d != 0 {
		t.Errorf("NoPause.Duration() = %v, want 0", d)
	}
}

func TestBuiltinTaskSetsValidate(t *testing.T) {
	for _, name := range []string{"mixed", "spike", "api", "journey", "data-query"} {
		ts := ByName(name)
		if ts == nil {
			t.Fatalf("ByName(%q) = nil", name)
		}
		if err := ts.Validate(); err != nil {
			t.Errorf("%s: Validate() error = %v", name, err)
		}
	}
	if ts := ByName("nope"); ts != nil {
		t.Errorf("ByName(nope) = %v, want nil", ts)
	}
}

func TestDataQueryTaskSet_WeightTable(t *testing.T) {
	ts := DataQueryTaskSet()
	if ts.Mode != ModeWeighted {
		t.Errorf("data-query mode = %v, want weighted", ts.Mode)
	}

	want := map[string]int{
		"gene-data":            3,
		"gene-expression-all":  3,
		"gene-expression-meta": 3,
		"cell-abundance":       2,
		"cell-abundance-meta":  2,
		"geneset-grouped":      2,
		"geneset-regulation":   2,
		"meta-contexts":        1,
		"rotate-disease":       1,
	}
	if got := len(ts.Operations); got != len(want) {
		t.Fatalf("data-query has %d operations, want %d", got, len(want))
	}
	for _, op := range ts.Operations {
		if w, ok := want[op.Name]; !ok {
			t.Errorf("unexpected operation %q", op.Name)
		} else if op.Weight != w {
			t.Errorf("%s weight = %d, want %d", op.Name, op.Weight, w)
		}
	}
}

func TestJourneyTaskSet_StepCount(t *testing.T) {
	ts := JourneyTaskSet()
	if got := len(ts.Operations); got != 15 {
		t.Errorf("journey has %d steps, want 15", got)
	}
	if ts.Mode != ModeSequential {
		t.Errorf("journey mode = %v, want sequential", ts.Mode)
	}
	if ts.Operations[0].Name != "landing-tenant" {
		t.Errorf("first step = %q, want landing-tenant", ts.Operations[0].Name)
	}
	if ts.Operations[14].Name != "return-landing" {
		t.Errorf("last step = %q, want return-landing", ts.Operations[14].Name)
	}
}

func TestPickDisease(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		d := PickDisease(rng)
		if d.Name == "" || d.Tissue == "" {
			t.Fatalf("PickDisease returned incomplete config: %+v", d)
		}
		seen[d.Name] = true
	}
	if len(seen) != len(Diseases()) {
		t.Errorf("saw %d diseases over 100 draws, want %d", len(seen), len(Diseases()))
	}
}
