package storage

import "github.com/google/uuid"

// KeyLen is the fixed width of every storage key, in bytes.
const KeyLen = 16

// Key is the fixed-width binary form of a graph identifier. Node and edge
// rows are keyed by it, as is the singleton graphs row.
type Key [KeyLen]byte

// graphKey is the sentinel key of the one graphs row per file. The file
// itself is the graph boundary, so the row never needs a generated
// identifier — the all-zero key marks it.
var graphKey Key

// digestNamespace salts the fallback digest in EncodeID. Fixed forever:
// changing it would re-key every non-canonical identifier in every
// existing file.
var digestNamespace = uuid.MustParse("8b3df7a2-51c4-4a19-9c6b-2f0d6e5a7c41")

// EncodeID converts a graph identifier to its fixed-width storage key.
//
// A canonical 36-character dashed UUID encodes to its 16 raw bytes, and
// DecodeKey inverts that exactly. Any other string falls back to a
// deterministic one-way digest (UUIDv5 over digestNamespace). The
// fallback is NOT invertible — DecodeKey returns the digest's UUID text,
// not the original string — and two distinct non-canonical identifiers
// can in principle collide on it. Callers that care about the original
// text must carry it in a separate column; the key only guarantees
// stability.
func EncodeID(id string) Key {
	if len(id) == 36 {
		if u, err := uuid.Parse(id); err == nil {
			return Key(u)
		}
	}
	return Key(uuid.NewSHA1(digestNamespace, []byte(id)))
}

// DecodeKey converts a storage key back to identifier text (the dashed
// lower-case UUID form). Exact inverse of EncodeID only for canonical
// identifiers; see EncodeID for the fallback caveat.
func DecodeKey(k Key) string {
	return uuid.UUID(k).String()
}

// keyOf copies a scanned BLOB column into a Key. Returns the zero Key
// when the blob has the wrong width; the schema's length CHECK makes
// that unreachable for rows this package wrote.
func keyOf(b []byte) Key {
	var k Key
	if len(b) == KeyLen {
		copy(k[:], b)
	}
	return k
}
