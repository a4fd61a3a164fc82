package manifest

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewChunkRef(t *testing.T) {
	t.Run("identical content yields identical reference", func(t *testing.T) {
		a := NewChunkRef([]byte("hello world"))
		b := NewChunkRef([]byte("hello world"))
		if a != b {
			t.Errorf("references differ for identical content: %s vs %s", a, b)
		}
	})

	t.Run("distinct content yields distinct references", func(t *testing.T) {
		a := NewChunkRef([]byte("hello world"))
		b := NewChunkRef([]byte("hello worlds"))
		if a == b {
			t.Errorf("references collide: %s", a)
		}
	})
}

func TestParseChunkRef(t *testing.T) {
	valid := NewChunkRef([]byte("some chunk")).String()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid hex digest",
			input:   valid,
			wantErr: false,
		},
		{
			name:    "too short",
			input:   "abcdef",
			wantErr: true,
		},
		{
			name:    "too long",
			input:   valid + "00",
			wantErr: true,
		},
		{
			name:    "non-hex characters",
			input:   strings.Repeat("zz", 32),
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseChunkRef(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChunkRef(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && ref.String() != tt.input {
				t.Errorf("round trip = %q, want %q", ref.String(), tt.input)
			}
		})
	}
}

func TestChunkRef_JSONRoundTrip(t *testing.T) {
	ref := NewChunkRef([]byte("chunk data"))

	data, err := json.Marshal(ref)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `"` + ref.String() + `"`
	if string(data) != want {
		t.Errorf("JSON = %s, want %s", data, want)
	}

	var decoded ChunkRef
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded != ref {
		t.Errorf("round trip = %s, want %s", decoded, ref)
	}
}

func TestChunkRef_UnmarshalRejectsJunk(t *testing.T) {
	var ref ChunkRef
	if err := json.Unmarshal([]byte(`"not a digest"`), &ref); err == nil {
		t.Error("Unmarshal() accepted a malformed digest")
	}
}

func TestUnixTime_JSON(t *testing.T) {
	t.Run("encodes as integer seconds", func(t *testing.T) {
		ts := UnixTime(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
		data, err := json.Marshal(ts)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if string(data) != "1705314600" {
			t.Errorf("JSON = %s, want 1705314600", data)
		}
	})

	t.Run("decodes integer seconds", func(t *testing.T) {
		var ts UnixTime
		if err := json.Unmarshal([]byte("1705314600"), &ts); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
		if !ts.Time().Equal(want) {
			t.Errorf("time = %v, want %v", ts.Time(), want)
		}
	})

	t.Run("rejects non-integer timestamp", func(t *testing.T) {
		tests := []string{`"yesterday"`, "1.5", "{}", "99999999999999999999999999"}
		for _, input := range tests {
			var ts UnixTime
			if err := json.Unmarshal([]byte(input), &ts); err == nil {
				t.Errorf("Unmarshal(%s) accepted a malformed timestamp", input)
			}
		}
	})
}

func TestManifest_JSONRoundTrip(t *testing.T) {
	m := New("6d1f0b0e-3c1a-4b58-9a3f-0f2b6f3f9d11", "nightly", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
	m.Files["base/16384/2608"] = []ChunkRef{
		NewChunkRef([]byte("first chunk")),
		NewChunkRef([]byte("second chunk")),
		NewChunkRef([]byte("third chunk")),
	}
	m.SmallBlocks["base/16384/2608_fsm"] = []ChunkRef{
		NewChunkRef([]byte("residual")),
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Manifest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded.ID != m.ID {
		t.Errorf("id = %q, want %q", decoded.ID, m.ID)
	}
	if decoded.Label != m.Label {
		t.Errorf("label = %q, want %q", decoded.Label, m.Label)
	}
	if !decoded.CreatedAt.Time().Equal(m.CreatedAt.Time()) {
		t.Errorf("created_at = %v, want %v", decoded.CreatedAt.Time(), m.CreatedAt.Time())
	}

	// Reference order within a path must survive the round trip.
	got := decoded.Files["base/16384/2608"]
	want := m.Files["base/16384/2608"]
	if len(got) != len(want) {
		t.Fatalf("files refs = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("files ref[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if len(decoded.SmallBlocks["base/16384/2608_fsm"]) != 1 {
		t.Errorf("small_blocks refs = %d, want 1", len(decoded.SmallBlocks["base/16384/2608_fsm"]))
	}
}
