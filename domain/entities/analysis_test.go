package entities

import "testing"

func TestAnalysisStructured(t *testing.T) {
	price := 12000
	a := NewStructuredAnalysis(AnalysisResult{
		Brand:            "Nike",
		ProductName:      "Air Max 90",
		Confidence:       92,
		PriceEstimateLow: &price,
	}, `{"brand":"Nike"}`)

	result, ok := a.Structured()
	if !ok {
		t.Fatal("Expected structured analysis")
	}
	if result.Brand != "Nike" {
		t.Errorf("Expected brand Nike, got %s", result.Brand)
	}

	low := a.LowPrice()
	if low == nil || *low != 12000 {
		t.Fatalf("Expected low price 12000, got %v", low)
	}

	// The returned pointer must not alias the analysis.
	*low = 1
	if *a.Result.PriceEstimateLow != 12000 {
		t.Error("LowPrice should return a copy")
	}
}

func TestAnalysisRaw(t *testing.T) {
	a := NewRawAnalysis("I think this is a shoe")

	if _, ok := a.Structured(); ok {
		t.Error("Raw analysis should not be structured")
	}
	if a.LowPrice() != nil {
		t.Error("Raw analysis should not have a low price")
	}
	if a.Raw != "I think this is a shoe" {
		t.Errorf("Raw text not preserved, got %q", a.Raw)
	}
}

func TestVerdictFrame(t *testing.T) {
	tests := []struct {
		verdict Verdict
		want    string
	}{
		{VerdictMatch, "MATCH\n"},
		{VerdictNoMatch, "NO_MATCH\n"},
		{VerdictNoListing, "NO_LISTING\n"},
		{VerdictError, "ERROR\n"},
	}

	for _, tt := range tests {
		if got := string(tt.verdict.Frame()); got != tt.want {
			t.Errorf("Frame(%s) = %q, want %q", tt.verdict, got, tt.want)
		}
	}
}
