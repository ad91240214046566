package fingerprint

import "testing"

func TestNormalizeStripsPunctuationAndCase(t *testing.T) {
	got := Normalize("  Hold POSITION,   then... re-assess! ")
	want := "hold position then reassess"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if Normalize("   \t\n ") != "" {
		t.Fatal("whitespace-only input must normalize to empty string")
	}
}

func TestHashStableAcrossFormatting(t *testing.T) {
	a := Hash("Retreat and regroup.")
	b := Hash("retreat AND   regroup")
	if a != b {
		t.Fatal("hash must be identical for equivalent normalized text")
	}
	c := Hash("advance and regroup")
	if a == c {
		t.Fatal("different content must hash differently")
	}
}

func TestKeywordsFilterAndCap(t *testing.T) {
	kw := Keywords("The the the strategy strategy requires careful analysis of supply lines and morale")
	want := map[string]bool{"strategy": true, "requires": true, "careful": true, "analysis": true, "supply": true, "lines": true, "morale": true}
	if len(kw) != len(want) {
		t.Fatalf("expected %d keywords, got %d: %v", len(want), len(kw), kw)
	}
	for _, w := range kw {
		if !want[w] {
			t.Fatalf("unexpected keyword %q", w)
		}
	}
}

func TestKeywordsCappedAtTwenty(t *testing.T) {
	long := ""
	words := []string{"alpha", "bravo", "charlie", "delta", "echoes", "foxtrot", "golfing", "hotels",
		"indigo", "juliet", "kilogram", "limabean", "mikes", "november", "oscar", "papa",
		"quebec", "romeo", "sierra", "tango", "uniform", "victor", "whiskey", "xrays"}
	for _, w := range words {
		long += w + " "
	}
	kw := Keywords(long)
	if len(kw) != maxKeywords {
		t.Fatalf("expected keyword cap %d, got %d", maxKeywords, len(kw))
	}
}

func TestKeywordsShortTokensDropped(t *testing.T) {
	kw := Keywords("run far now fast flee")
	for _, w := range kw {
		if len(w) <= 3 {
			t.Fatalf("keyword %q shorter than 4 runes", w)
		}
	}
}

func TestJaccard(t *testing.T) {
	a := []string{"alpha", "bravo", "charlie", "delta"}
	b := []string{"alpha", "bravo", "charlie", "echo"}
	// intersection 3, union 5
	got := Jaccard(a, b)
	if got < 0.599 || got > 0.601 {
		t.Fatalf("expected 0.6, got %f", got)
	}
	if Jaccard(a, a) != 1.0 {
		t.Fatal("identical sets must score 1.0")
	}
	if Jaccard(nil, a) != 0 {
		t.Fatal("empty set must score 0")
	}
	if Jaccard(nil, nil) != 0 {
		t.Fatal("two empty sets must score 0, not 1")
	}
}
