// Package querykey defines the identity of a cached read.
// A Key is an ordered list of string segments followed by an optional
// parameters object. Keys are compared by their canonical JSON form and
// form an implicit prefix tree used by invalidation.
//
// Package querykey 定义缓存读取的标识。
// Key 是有序的字符串段列表，后跟一个可选的参数对象。
// 键通过规范化的JSON形式进行比较，并构成失效操作所使用的隐式前缀树。
package querykey

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Params is the optional trailing parameters object of a key.
// Values must be JSON-serializable.
//
// Params 是键末尾可选的参数对象。值必须可以JSON序列化。
type Params map[string]any

// Key identifies one cached read.
//
// Key 标识一次缓存读取。
type Key struct {
	Segments []string // Ordered path segments / 有序路径段
	Params   Params   // Optional parameters, nil when absent / 可选参数，缺省时为nil
}

// Root is the empty prefix. It matches every key.
//
// Root 是空前缀，匹配所有键。
var Root = Key{}

// New creates a key from segments.
//
// New 使用给定的段创建键。
//
// Parameters:
//   - segments: The ordered path segments
//
// Returns:
//   - Key: A key without parameters
func New(segments ...string) Key {
	return Key{Segments: append([]string(nil), segments...)}
}

// With returns a copy of k carrying params.
// Passing nil or an empty map removes the parameters object.
//
// With 返回携带params的k的副本。传入nil或空map会移除参数对象。
func (k Key) With(params Params) Key {
	out := Key{Segments: append([]string(nil), k.Segments...)}
	if len(params) > 0 {
		out.Params = make(Params, len(params))
		for name, v := range params {
			out.Params[name] = v
		}
	}
	return out
}

// Append returns a copy of k with extra segments. Parameters are dropped
// because they always terminate a key.
//
// Append 返回追加了额外段的k副本。参数会被丢弃，因为参数总是位于键的末尾。
func (k Key) Append(segments ...string) Key {
	out := make([]string, 0, len(k.Segments)+len(segments))
	out = append(out, k.Segments...)
	out = append(out, segments...)
	return Key{Segments: out}
}

// IsRoot reports whether k is the empty prefix.
func (k Key) IsRoot() bool {
	return len(k.Segments) == 0 && len(k.Params) == 0
}

// String returns the canonical JSON encoding of the key,
// e.g. ["questions","summary",{"page":2}].
//
// String 返回键的规范化JSON编码。
//
// Returns:
//   - string: The canonical form, used as the cache identity
func (k Key) String() string {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, s := range k.Segments {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, _ := json.Marshal(s)
		buf.Write(b)
	}
	if len(k.Params) > 0 {
		if len(k.Segments) > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(canonical(map[string]any(k.Params)))
	}
	buf.WriteByte(']')
	return buf.String()
}

// MarshalJSON encodes the key in its canonical form.
func (k Key) MarshalJSON() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalJSON decodes a canonical key.
func (k *Key) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Equal reports whether two keys have the same canonical form.
//
// Equal 判断两个键的规范化形式是否相同。
func Equal(a, b Key) bool {
	return a.String() == b.String()
}

// HasPrefix reports whether key lies under prefix in the key tree.
// Every prefix segment must equal the key segment at the same position.
// A prefix carrying parameters only matches keys with the same number of
// segments whose parameters contain every prefix parameter.
//
// HasPrefix 判断key是否位于键树中prefix之下。
// 前缀的每一段都必须等于key在相同位置的段。
// 带参数的前缀只匹配段数相同且参数包含全部前缀参数的键。
//
// Parameters:
//   - key: The candidate key
//   - prefix: The prefix to match
//
// Returns:
//   - bool: True if key equals prefix or starts with it
func HasPrefix(key, prefix Key) bool {
	if len(prefix.Segments) > len(key.Segments) {
		return false
	}
	for i, s := range prefix.Segments {
		if key.Segments[i] != s {
			return false
		}
	}
	if len(prefix.Params) == 0 {
		return true
	}
	if len(prefix.Segments) != len(key.Segments) {
		return false
	}
	for name, want := range prefix.Params {
		got, ok := key.Params[name]
		if !ok || canonical(got) != canonical(want) {
			return false
		}
	}
	return true
}

// Parse decodes the canonical JSON form of a key.
//
// Parse 解码键的规范化JSON形式。
//
// Parameters:
//   - s: A JSON array of strings, optionally ending with an object
//
// Returns:
//   - Key: The decoded key
//   - error: Error if s is not a valid key encoding
func Parse(s string) (Key, error) {
	var raw []json.RawMessage
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Key{}, fmt.Errorf("querykey: parse %q: %w", s, err)
	}
	var k Key
	for i, elem := range raw {
		trimmed := bytes.TrimSpace(elem)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			if i != len(raw)-1 {
				return Key{}, fmt.Errorf("querykey: parse %q: params must be the last element", s)
			}
			var params Params
			pd := json.NewDecoder(bytes.NewReader(trimmed))
			pd.UseNumber()
			if err := pd.Decode(&params); err != nil {
				return Key{}, fmt.Errorf("querykey: parse %q: %w", s, err)
			}
			if len(params) > 0 {
				k.Params = params
			}
			continue
		}
		var seg string
		if err := json.Unmarshal(trimmed, &seg); err != nil {
			return Key{}, fmt.Errorf("querykey: parse %q: segment %d is not a string", s, i)
		}
		k.Segments = append(k.Segments, seg)
	}
	return k, nil
}

// canonical renders v as JSON with object keys sorted at every depth.
// Numbers are normalized through float64 so 2 and 2.0 compare equal.
func canonical(v any) string {
	var buf bytes.Buffer
	writeCanonical(&buf, normalize(v))
	return buf.String()
}

func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Sprint(v)
	}
	return out
}

func writeCanonical(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case map[string]any:
		names := make([]string, 0, len(val))
		for name := range val {
			names = append(names, name)
		}
		sort.Strings(names)
		buf.WriteByte('{')
		for i, name := range names {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, _ := json.Marshal(name)
			buf.Write(b)
			buf.WriteByte(':')
			writeCanonical(buf, val[name])
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, elem)
		}
		buf.WriteByte(']')
	default:
		b, _ := json.Marshal(val)
		buf.Write(b)
	}
}
