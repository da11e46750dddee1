package decode

import "testing"

func TestLookup_KnownSequences(t *testing.T) {
	tests := []struct {
		seq  string
		want rune
	}{
		{".-", 'A'},
		{"...", 'S'},
		{"-----", '0'},
		{".-.-.-", '.'},
		{".-.-", 'Ä'},
		{"---.", 'Ö'},
		{"..--", 'Ü'},
	}
	for _, tt := range tests {
		if got := lookup(tt.seq); got != tt.want {
			t.Errorf("lookup(%q) = %q, want %q", tt.seq, got, tt.want)
		}
	}
}

func TestLookup_UnknownSequenceReturnsGlyph(t *testing.T) {
	if got := lookup("......."); got != unknownGlyph {
		t.Errorf("lookup() = %q, want unknown glyph %q", got, unknownGlyph)
	}
}
