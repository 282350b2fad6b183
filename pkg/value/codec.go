package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Decode parses a single JSON document into a Value. Object member order is
// preserved and integers are kept distinct from floats: a literal without a
// fraction or exponent that fits in int64 decodes as an int.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeNext(dec)
	if err != nil {
		return Value{}, err
	}
	if dec.More() {
		return Value{}, fmt.Errorf("value: trailing data after document")
	}
	return v, nil
}

func decodeNext(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return Value{}, fmt.Errorf("value: empty document")
		}
		return Value{}, fmt.Errorf("value: %w", err)
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return decodeNumber(t)
	case json.Delim:
		switch t {
		case '[':
			return decodeArray(dec)
		case '{':
			return decodeObject(dec)
		}
	}
	return Value{}, fmt.Errorf("value: unexpected token %v", tok)
}

func decodeNumber(n json.Number) (Value, error) {
	text := n.String()
	if !strings.ContainsAny(text, ".eE") {
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return Value{}, fmt.Errorf("value: bad number %q: %w", text, err)
	}
	return Float(f), nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	var items []Value
	for dec.More() {
		item, err := decodeNext(dec)
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
	}
	if _, err := dec.Token(); err != nil { // closing ]
		return Value{}, fmt.Errorf("value: %w", err)
	}
	return Array(items...), nil
}

func decodeObject(dec *json.Decoder) (Value, error) {
	var members []Member
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Value{}, fmt.Errorf("value: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return Value{}, fmt.Errorf("value: object key is %T, not string", keyTok)
		}
		val, err := decodeNext(dec)
		if err != nil {
			return Value{}, err
		}
		members = append(members, Member{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil { // closing }
		return Value{}, fmt.Errorf("value: %w", err)
	}
	return Object(members...), nil
}

// EncodeJSON serializes the value as compact JSON. Object members keep their
// insertion order; strings escape per encoding/json without HTML escaping.
func (v Value) EncodeJSON() string {
	var b strings.Builder
	v.appendJSON(&b)
	return b.String()
}

func (v Value) appendJSON(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		if v.b {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case KindInt:
		b.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		b.WriteString(formatFloat(v.f))
	case KindString:
		appendQuoted(b, v.s)
	case KindArray:
		b.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				b.WriteByte(',')
			}
			item.appendJSON(b)
		}
		b.WriteByte(']')
	case KindObject:
		b.WriteByte('{')
		for i, m := range v.obj {
			if i > 0 {
				b.WriteByte(',')
			}
			appendQuoted(b, m.Key)
			b.WriteByte(':')
			m.Value.appendJSON(b)
		}
		b.WriteByte('}')
	}
}

func formatFloat(f float64) string {
	text := strconv.FormatFloat(f, 'g', -1, 64)
	// Keep floats recognizable as floats across a round trip.
	if !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	return text
}

func appendQuoted(b *strings.Builder, s string) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		// Strings always encode; reaching this means memory corruption.
		panic(err)
	}
	b.WriteString(strings.TrimSuffix(buf.String(), "\n"))
}

// FromGo converts plain Go data (the shapes produced by encoding/json and by
// handler conveniences) into a Value. Maps lose ordering; use Object directly
// when order matters.
func FromGo(data any) (Value, error) {
	switch t := data.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case float64:
		return Float(t), nil
	case string:
		return String(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromGo(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Array(items...), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		members := make([]Member, len(keys))
		for i, k := range keys {
			v, err := FromGo(t[k])
			if err != nil {
				return Value{}, err
			}
			members[i] = Member{Key: k, Value: v}
		}
		return Object(members...), nil
	default:
		return Value{}, fmt.Errorf("value: unsupported Go type %T", data)
	}
}
