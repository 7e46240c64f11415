package search

import (
	"math"
	"testing"
)

func TestMinMaxScale(t *testing.T) {
	scaled := minMaxScale(map[string]float64{"a": 1, "b": 3, "c": 2})
	if scaled["a"] != 0 || scaled["b"] != 100 {
		t.Errorf("extremes = %v / %v, want 0 / 100", scaled["a"], scaled["b"])
	}
	if math.Abs(scaled["c"]-50) > 1e-9 {
		t.Errorf("mid = %v, want 50", scaled["c"])
	}
}

func TestMinMaxScale_ConstantInput(t *testing.T) {
	scaled := minMaxScale(map[string]float64{"a": 7, "b": 7})
	for id, v := range scaled {
		if v != 100 {
			t.Errorf("scaled[%s] = %v, want 100", id, v)
		}
	}
}

func TestMinMaxScale_Empty(t *testing.T) {
	if got := minMaxScale(nil); len(got) != 0 {
		t.Errorf("minMaxScale(nil) = %v, want empty", got)
	}
}

func TestRankComposite_TieBreaksByID(t *testing.T) {
	ranked := rankComposite(map[string]float64{"b": 1, "a": 1, "c": 2})
	if ranked[0].id != "c" || ranked[1].id != "a" || ranked[2].id != "b" {
		t.Errorf("order = %v, want c, a, b", ranked)
	}
}

func TestURSScores_Range(t *testing.T) {
	ranked := rankComposite(map[string]float64{"a": 0.9, "b": 0.5, "c": 0.1})
	urs := ursScores(ranked)
	if urs["a"] != 100 || urs["c"] != 0 {
		t.Errorf("extremes = %d / %d, want 100 / 0", urs["a"], urs["c"])
	}
	for id, v := range urs {
		if v < 0 || v > 100 {
			t.Errorf("urs[%s] = %d, out of [0, 100]", id, v)
		}
	}
}

func TestGraphLift(t *testing.T) {
	// A mass twice the baseline lifts by one bit.
	if got := graphLift(0.2, 0.1); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("graphLift(0.2, 0.1) = %v, want 1", got)
	}
	// Zero baseline floors at 1e-12 instead of dividing by zero.
	if got := graphLift(1e-6, 0); math.IsInf(got, 0) || math.IsNaN(got) {
		t.Errorf("graphLift(1e-6, 0) = %v, want finite", got)
	}
	// Negative lifts are representable.
	if got := graphLift(0.05, 0.1); got >= 0 {
		t.Errorf("graphLift(0.05, 0.1) = %v, want negative", got)
	}
}

func TestNewPagination(t *testing.T) {
	p := newPagination(0, 10, 25)
	if p.NextOffset == nil || *p.NextOffset != 10 {
		t.Errorf("NextOffset = %v, want 10", p.NextOffset)
	}
	last := newPagination(24, 1, 25)
	if last.NextOffset != nil {
		t.Errorf("NextOffset = %v, want nil on last page", *last.NextOffset)
	}
	empty := newPagination(0, 10, 0)
	if empty.NextOffset != nil || empty.Total != 0 {
		t.Errorf("empty pagination = %+v", empty)
	}
}
