package manifest

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/zeebo/blake3"
)

// ChunkRef is a 256-bit BLAKE3 digest identifying a chunk of backed-up data
// by its content. Identical bytes always produce an identical reference, so
// references can be compared and deduplicated without access to the chunk
// itself. ChunkRefs are immutable values.
type ChunkRef [32]byte

// NewChunkRef computes the content reference for a chunk of data.
func NewChunkRef(data []byte) ChunkRef {
	return blake3.Sum256(data)
}

// ParseChunkRef parses a lowercase 64-character hex string into a ChunkRef.
func ParseChunkRef(s string) (ChunkRef, error) {
	var ref ChunkRef
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return ref, fmt.Errorf("parsing chunk reference: %w", err)
	}
	if len(decoded) != len(ref) {
		return ref, fmt.Errorf("chunk reference is %d bytes, want %d", len(decoded), len(ref))
	}
	copy(ref[:], decoded)
	return ref, nil
}

// String returns the canonical lowercase hex form of the reference.
func (r ChunkRef) String() string {
	return hex.EncodeToString(r[:])
}

// MarshalText implements encoding.TextMarshaler. The JSON form of a
// ChunkRef is its hex string.
func (r ChunkRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Malformed input
// (wrong length, non-hex characters) yields a decode error, never a panic.
func (r *ChunkRef) UnmarshalText(text []byte) error {
	parsed, err := ParseChunkRef(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// UnixTime serializes a timestamp as plain integer seconds since the epoch.
type UnixTime time.Time

// Time returns the underlying time.Time.
func (t UnixTime) Time() time.Time { return time.Time(t) }

// MarshalJSON encodes the timestamp as an integer.
func (t UnixTime) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, time.Time(t).Unix(), 10), nil
}

// UnmarshalJSON decodes an integer timestamp. A malformed or fractional
// value is a decode error.
func (t *UnixTime) UnmarshalJSON(data []byte) error {
	seconds, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parsing timestamp: %w", err)
	}
	*t = UnixTime(time.Unix(seconds, 0).UTC())
	return nil
}

// Manifest is the durable record of one completed backup: its identity,
// timing, caller-supplied label, and the ordered content references for each
// backed-up path. Reference order within a path is the byte order of that
// file's chunked reconstruction. Key order carries no meaning.
//
// The chunking that populates Files and SmallBlocks is performed by an
// external collaborator; a freshly captured backup starts with both empty.
type Manifest struct {
	ID          string                `json:"id"`
	CreatedAt   UnixTime              `json:"created_at"`
	Label       string                `json:"label"`
	Files       map[string][]ChunkRef `json:"files"`
	SmallBlocks map[string][]ChunkRef `json:"small_blocks"`
}

// New creates an empty Manifest for a backup with the given identity.
func New(id, label string, createdAt time.Time) *Manifest {
	return &Manifest{
		ID:          id,
		CreatedAt:   UnixTime(createdAt),
		Label:       label,
		Files:       make(map[string][]ChunkRef),
		SmallBlocks: make(map[string][]ChunkRef),
	}
}
