package session

import (
	"strings"
	"testing"
)

func TestEncodeDecodeWithoutRefresh(t *testing.T) {
	st := &State{AccessToken: "tok", UserID: "u", SavedAt: 42}
	data, err := Encode(st)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if data[0] != CurrentSchemaVersion {
		t.Fatalf("expected version byte %d, got %d", CurrentSchemaVersion, data[0])
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SchemaVersion != CurrentSchemaVersion {
		t.Fatalf("expected schema version %d, got %d", CurrentSchemaVersion, got.SchemaVersion)
	}
	assertStateEqual(t, st, got)
}

func TestEncodeDecodeLongToken(t *testing.T) {
	st := testState()
	st.AccessToken = strings.Repeat("x", 4096)

	data, err := Encode(st)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	assertStateEqual(t, st, got)
}

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	_, err := Decode([]byte{99})
	if err == nil || !strings.Contains(err.Error(), "unsupported session schema version") {
		t.Fatalf("expected unsupported schema version error, got %v", err)
	}
}

func TestDecodeRejectsTruncatedAndTrailing(t *testing.T) {
	data, err := Encode(testState())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for i := 1; i < len(data); i++ {
		if _, err := Decode(data[:i]); err == nil {
			t.Fatalf("expected error for truncation at %d", i)
		}
	}
	if _, err := Decode(append(data, 0)); err == nil {
		t.Fatal("expected error for trailing byte")
	}
}

func TestEncodeRejectsNil(t *testing.T) {
	if _, err := Encode(nil); err == nil {
		t.Fatal("expected error for nil state")
	}
}

func FuzzDecodeNoPanic(f *testing.F) {
	seed, _ := Encode(testState())
	f.Add(seed)
	f.Add([]byte{CurrentSchemaVersion})
	f.Add([]byte{})
	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = Decode(data)
	})
}
