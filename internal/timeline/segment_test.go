package timeline

import "testing"

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"original":  KindOriginal,
		"generated": KindGenerated,
		"ai":        KindGenerated,
		" AI ":      KindGenerated,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %q, %v; expected %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("music"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestBlockSegment(t *testing.T) {
	seg, err := Block{ID: "b1", Type: "ai", Start: 0, Duration: 12, GlobalStart: 40}.Segment()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if seg.VirtualStart != 40 || seg.VirtualEnd != 52 || seg.SourceID != "b1" || seg.Kind != KindGenerated {
		t.Errorf("unexpected segment: %+v", seg)
	}

	orig, err := Block{ID: "o", Type: "original", Start: 40, Duration: 60, GlobalStart: 52}.Segment()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if orig.SourceID != MainSourceID || orig.SourceStart != 40 || orig.SourceEnd != 100 {
		t.Errorf("unexpected original segment: %+v", orig)
	}
}
