package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/bytedance/sonic"
)

// FromGo converts a caller-supplied Go value into a Value. Maps, slices and
// scalars are converted directly; structs and other types go through a JSON
// round trip so their json tags are honored.
func FromGo(in any) (Value, error) {
	switch x := in.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return x, nil
	case *Value:
		if x == nil {
			return NullValue(), nil
		}
		return *x, nil
	case bool:
		return BoolValue(x), nil
	case string:
		return StringValue(x), nil
	case int:
		return IntValue(int64(x)), nil
	case int8:
		return IntValue(int64(x)), nil
	case int16:
		return IntValue(int64(x)), nil
	case int32:
		return IntValue(int64(x)), nil
	case int64:
		return IntValue(x), nil
	case uint8:
		return IntValue(int64(x)), nil
	case uint16:
		return IntValue(int64(x)), nil
	case uint32:
		return IntValue(int64(x)), nil
	case uint:
		return Value{kind: Number, num: json.Number(fmt.Sprint(x))}, nil
	case uint64:
		return Value{kind: Number, num: json.Number(fmt.Sprint(x))}, nil
	case float32:
		return FloatValue(float64(x))
	case float64:
		return FloatValue(x)
	case json.Number:
		if _, err := x.Float64(); err != nil {
			return Value{}, fmt.Errorf("invalid number %q", string(x))
		}
		return Value{kind: Number, num: x}, nil
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			v, err := FromGo(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = v
		}
		return ArrayValue(items...), nil
	case []string:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = StringValue(item)
		}
		return ArrayValue(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			v, err := FromGo(item)
			if err != nil {
				return Value{}, fmt.Errorf("key %q: %w", k, err)
			}
			fields[k] = v
		}
		return ObjectValue(fields), nil
	case map[string]string:
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			fields[k] = StringValue(item)
		}
		return ObjectValue(fields), nil
	case json.RawMessage:
		return Parse(x)
	}

	switch reflect.ValueOf(in).Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return Value{}, fmt.Errorf("unsupported type %T", in)
	}

	raw, err := sonic.Marshal(in)
	if err != nil {
		return Value{}, fmt.Errorf("encode %T: %w", in, err)
	}
	return Parse(raw)
}

// SyntaxError describes why a document could not be parsed. Offset is the
// byte offset of the first offending token.
type SyntaxError struct {
	Msg    string
	Offset int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s (char %d)", e.Msg, e.Offset)
}

// Parse decodes exactly one JSON document. Trailing whitespace is allowed,
// anything else after the document is reported as extra data.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, syntaxError(data, err)
	}

	rest := int(dec.InputOffset())
	for rest < len(data) && isSpace(data[rest]) {
		rest++
	}
	if rest < len(data) {
		return Value{}, &SyntaxError{Msg: "Extra data", Offset: rest}
	}

	return fromDecoded(raw), nil
}

func fromDecoded(raw any) Value {
	switch x := raw.(type) {
	case bool:
		return BoolValue(x)
	case json.Number:
		return Value{kind: Number, num: x}
	case string:
		return StringValue(x)
	case []any:
		items := make([]Value, len(x))
		for i, item := range x {
			items[i] = fromDecoded(item)
		}
		return ArrayValue(items...)
	case map[string]any:
		fields := make(map[string]Value, len(x))
		for k, item := range x {
			fields[k] = fromDecoded(item)
		}
		return ObjectValue(fields)
	}
	return NullValue()
}

func syntaxError(data []byte, err error) *SyntaxError {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &SyntaxError{Msg: "Expecting value", Offset: len(data)}
	}

	var se *json.SyntaxError
	if !errors.As(err, &se) {
		return &SyntaxError{Msg: err.Error(), Offset: 0}
	}

	// Offset counts the offending byte itself.
	pos := int(se.Offset) - 1
	if pos < 0 {
		pos = 0
	}
	if pos > len(data) {
		pos = len(data)
	}

	msg := se.Error()
	switch {
	case strings.Contains(msg, "in literal"):
		// Report the start of a broken literal such as "tru" or "not".
		for pos > 0 && isLetter(data[pos-1]) {
			pos--
		}
		msg = "Expecting value"
	case strings.Contains(msg, "looking for beginning of value"):
		msg = "Expecting value"
	}
	return &SyntaxError{Msg: msg, Offset: pos}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
