package vectorstore

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	got := NormalizeL2([]float32{3, 4})
	if math.Abs(float64(got[0])-0.6) > 1e-6 || math.Abs(float64(got[1])-0.8) > 1e-6 {
		t.Errorf("NormalizeL2() = %v, want [0.6 0.8]", got)
	}

	zero := []float32{0, 0}
	out := NormalizeL2(zero)
	if out[0] != 0 || out[1] != 0 {
		t.Errorf("NormalizeL2(zero) = %v", out)
	}
}

func TestMetaHelpers(t *testing.T) {
	meta := map[string]any{
		"title":   "Intro",
		"page":    float64(7),
		"index":   int64(2),
		"is_code": true,
		"flag":    "true",
	}
	if got := MetaString(meta, "title"); got != "Intro" {
		t.Errorf("MetaString() = %q", got)
	}
	if got := MetaString(meta, "missing"); got != "" {
		t.Errorf("MetaString(missing) = %q", got)
	}
	if got := MetaInt(meta, "page"); got != 7 {
		t.Errorf("MetaInt(page) = %d", got)
	}
	if got := MetaInt(meta, "index"); got != 2 {
		t.Errorf("MetaInt(index) = %d", got)
	}
	if !MetaBool(meta, "is_code") || !MetaBool(meta, "flag") || MetaBool(meta, "missing") {
		t.Error("MetaBool() returned unexpected values")
	}
}

func TestMatchFilters(t *testing.T) {
	meta := map[string]any{"source": "a.pdf", "page": float64(3), "is_code": false}
	if !matchFilters(meta, map[string]any{"source": "a.pdf", "page": 3}) {
		t.Error("matchFilters() should match equal values across numeric types")
	}
	if matchFilters(meta, map[string]any{"source": "b.pdf"}) {
		t.Error("matchFilters() should reject a different value")
	}
	if matchFilters(meta, map[string]any{"module": "x"}) {
		t.Error("matchFilters() should reject a missing key")
	}
}
