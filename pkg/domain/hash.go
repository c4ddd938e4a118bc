package domain

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Hash is a content digest used as the identity key for groups, sites and
// resources. Two entities with equal semantic content always carry equal
// hashes, across runs and regardless of map insertion order.
type Hash uint64

// String renders the hash in hex for logs and diagnostics.
func (h Hash) String() string { return strconv.FormatUint(uint64(h), 16) }

// Entity is implemented by anything that can be referenced from a group's
// relation map by content rather than by pointer. Relation values holding an
// Entity are replaced by the entity's own hash before digesting, which breaks
// reference cycles and makes structurally equal groups hash equal regardless
// of object identity.
type Entity interface {
	ContentHash() Hash
}

// HashContent digests an attribute map and a relation map into a single
// deterministic hash. Keys are visited in sorted order.
func HashContent(attr, rel map[string]any) Hash {
	d := xxhash.New()
	writeMap(d, attr)
	writeMap(d, rel)
	return Hash(d.Sum64())
}

func writeMap(d *xxhash.Digest, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	_, _ = d.WriteString("{")
	for _, k := range keys {
		_, _ = d.WriteString(k)
		_, _ = d.WriteString("=")
		writeValue(d, m[k])
		_, _ = d.WriteString(";")
	}
	_, _ = d.WriteString("}")
}

// writeValue encodes a single attribute or relation value. Each branch is
// prefixed with a type tag so that, for example, the string "1" and the
// integer 1 cannot collide.
func writeValue(d *xxhash.Digest, v any) {
	switch t := v.(type) {
	case nil:
		_, _ = d.WriteString("n:")
	case Entity:
		_, _ = d.WriteString("e:")
		_, _ = d.WriteString(strconv.FormatUint(uint64(t.ContentHash()), 16))
	case Hash:
		_, _ = d.WriteString("e:")
		_, _ = d.WriteString(strconv.FormatUint(uint64(t), 16))
	case string:
		_, _ = d.WriteString("s:")
		_, _ = d.WriteString(t)
	case bool:
		_, _ = d.WriteString("b:")
		_, _ = d.WriteString(strconv.FormatBool(t))
	case int:
		writeNumber(d, float64(t))
	case int32:
		writeNumber(d, float64(t))
	case int64:
		writeNumber(d, float64(t))
	case uint64:
		writeNumber(d, float64(t))
	case float32:
		writeNumber(d, float64(t))
	case float64:
		writeNumber(d, t)
	case map[string]any:
		_, _ = d.WriteString("m:")
		writeMap(d, t)
	case []any:
		_, _ = d.WriteString("l:[")
		for _, e := range t {
			writeValue(d, e)
			_, _ = d.WriteString(",")
		}
		_, _ = d.WriteString("]")
	case []string:
		_, _ = d.WriteString("l:[")
		for _, e := range t {
			writeValue(d, e)
			_, _ = d.WriteString(",")
		}
		_, _ = d.WriteString("]")
	default:
		// Last resort for exotic attribute types; fmt is deterministic for
		// values without maps inside.
		_, _ = d.WriteString("x:")
		_, _ = d.WriteString(fmt.Sprintf("%T%v", t, t))
	}
}

// writeNumber folds all numeric kinds into one encoding so that attr={"x": 1}
// and attr={"x": 1.0} identify the same group, mirroring how rule-written
// numeric attributes round-trip through split specs.
func writeNumber(d *xxhash.Digest, f float64) {
	_, _ = d.WriteString("f:")
	_, _ = d.WriteString(strconv.FormatUint(math.Float64bits(f), 16))
}
