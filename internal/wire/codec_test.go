package wire

import "testing"

func TestEncodeDecodeShort_RoundTrip(t *testing.T) {
	buf := EncodeShort(Connect, 133)
	cmd, w, err := DecodeShort(buf)
	if err != nil {
		t.Fatalf("DecodeShort() error = %v", err)
	}
	if cmd != Connect {
		t.Errorf("cmd = %v, want %v", cmd, Connect)
	}
	if w != 133 {
		t.Errorf("wire = %d, want 133", w)
	}
}

func TestDecodeShort_TooShort(t *testing.T) {
	_, _, err := DecodeShort([]byte{1, 2})
	if err != ErrShortRecord {
		t.Errorf("err = %v, want ErrShortRecord", err)
	}
}

func TestEncodeDecodeIdentity_RoundTrip(t *testing.T) {
	id := Identity{Callsign: "N0CALL", Version: "cwrelay 1.0"}
	buf := EncodeIdentity(id)
	if len(buf) != IdentityRecordSize {
		t.Fatalf("len(buf) = %d, want %d", len(buf), IdentityRecordSize)
	}

	got, err := DecodeIdentity(buf)
	if err != nil {
		t.Fatalf("DecodeIdentity() error = %v", err)
	}
	if got.Callsign != id.Callsign {
		t.Errorf("Callsign = %q, want %q", got.Callsign, id.Callsign)
	}
	if got.Version != id.Version {
		t.Errorf("Version = %q, want %q", got.Version, id.Version)
	}
	if got.Sequence != 0 {
		t.Errorf("Sequence = %d, want 0", got.Sequence)
	}
}

func TestEncodeIdentity_TruncatesLongStrings(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'A'
	}
	id := Identity{Callsign: string(long), Version: string(long)}
	buf := EncodeIdentity(id)

	got, err := DecodeIdentity(buf)
	if err != nil {
		t.Fatalf("DecodeIdentity() error = %v", err)
	}
	if len(got.Callsign) != 127 {
		t.Errorf("len(Callsign) = %d, want 127", len(got.Callsign))
	}
	if len(got.Version) != 127 {
		t.Errorf("len(Version) = %d, want 127", len(got.Version))
	}
}

func TestDecodeIdentity_WrongSize(t *testing.T) {
	_, err := DecodeIdentity(make([]byte, 100))
	if err != ErrIdentityRecord {
		t.Errorf("err = %v, want ErrIdentityRecord", err)
	}
}

func TestCleanHost(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://example.com/path", "example.com"},
		{"https://example.com", "example.com"},
		{"example.com/path/more", "example.com"},
		{"  example.com  ", "example.com"},
		{"example.com", "example.com"},
	}
	for _, tt := range tests {
		if got := CleanHost(tt.in); got != tt.want {
			t.Errorf("CleanHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWiresAround(t *testing.T) {
	got := WiresAround(133, 5)
	want := []int{128, 129, 130, 131, 132, 133, 134, 135, 136, 137, 138}
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestWiresAround_ClampsToOne(t *testing.T) {
	got := WiresAround(2, 5)
	if got[0] != 1 {
		t.Errorf("got[0] = %d, want 1", got[0])
	}
	if len(got) != 11 {
		t.Errorf("len(got) = %d, want 11", len(got))
	}
}

func TestWiresAround_MidIndex(t *testing.T) {
	center, span := 133, 5
	got := WiresAround(center, span)
	if got[span] != center {
		t.Errorf("got[%d] = %d, want center %d", span, got[span], center)
	}
}
