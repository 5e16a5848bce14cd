package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator delimits cache key segments.
const KeySeparator = ":"

// maxKeyLength is the longest key emitted verbatim. Anything longer is
// digested so backends with key-size limits keep working.
const maxKeyLength = 128

// KeyCodec turns a runtime value into the stable string suffix of a cache
// key. Implementations must be deterministic across calls within a process.
type KeyCodec interface {
	EncodeKeyValue(v any) string
}

// NewDefaultKeyCodec returns the reflection-based codec used when no custom
// codec is configured.
func NewDefaultKeyCodec() KeyCodec {
	return defaultKeyCodec{}
}

// BuildKey joins a prefix and an encoded suffix, digesting keys that exceed
// the backend-safe length with xxhash.
func BuildKey(prefix, suffix string) string {
	key := prefix + KeySeparator + suffix
	if len(key) <= maxKeyLength {
		return key
	}
	return prefix + KeySeparator + "x" + strconv.FormatUint(xxhash.Sum64String(key), 16)
}

// defaultKeyCodec encodes scalar values directly, dereferences pointers, and
// falls back to JSON for anything structured. Unlike result values, key
// values are almost always scalars, so the fast path is a plain %v.
type defaultKeyCodec struct{}

func (defaultKeyCodec) EncodeKeyValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return defaultKeyCodec{}.EncodeKeyValue(rv.Elem().Interface())
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return fmt.Sprintf("%v", rv.Interface())
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%s", reflect.TypeOf(v))
	}
	return string(data)
}
