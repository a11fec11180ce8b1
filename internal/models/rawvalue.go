package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
)

// RawKind discriminates the payload held by a RawValue.
type RawKind uint8

const (
	RawKindString RawKind = iota
	RawKindNumber
	RawKindBool
	RawKindBytes
)

// RawValue is a typed variant for vendor payload fields. Fetchers translate
// wire types into one of string, number, bool or bytes at parse time so the
// rest of the pipeline never touches untyped JSON.
type RawValue struct {
	Kind  RawKind
	Str   string
	Num   float64
	Bool  bool
	Bytes []byte
}

func RawString(s string) RawValue  { return RawValue{Kind: RawKindString, Str: s} }
func RawNumber(f float64) RawValue { return RawValue{Kind: RawKindNumber, Num: f} }
func RawBool(b bool) RawValue      { return RawValue{Kind: RawKindBool, Bool: b} }
func RawBytes(b []byte) RawValue   { return RawValue{Kind: RawKindBytes, Bytes: b} }

// AsString renders any kind as text, matching how vendors print the value.
func (v RawValue) AsString() string {
	switch v.Kind {
	case RawKindString:
		return v.Str
	case RawKindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case RawKindBool:
		return strconv.FormatBool(v.Bool)
	case RawKindBytes:
		return base64.StdEncoding.EncodeToString(v.Bytes)
	}
	return ""
}

// MarshalJSON emits the natural JSON type for each kind. Bytes are wrapped
// in an object so UnmarshalJSON can tell them apart from plain strings.
func (v RawValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case RawKindString:
		return json.Marshal(v.Str)
	case RawKindNumber:
		return json.Marshal(v.Num)
	case RawKindBool:
		return json.Marshal(v.Bool)
	case RawKindBytes:
		return json.Marshal(map[string]string{"$bytes": base64.StdEncoding.EncodeToString(v.Bytes)})
	}
	return nil, fmt.Errorf("raw value: unknown kind %d", v.Kind)
}

// UnmarshalJSON probes the JSON type to reconstruct the variant.
func (v *RawValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = RawString(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = RawNumber(f)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = RawBool(b)
		return nil
	}
	var wrapped map[string]string
	if err := json.Unmarshal(data, &wrapped); err == nil {
		if enc, ok := wrapped["$bytes"]; ok {
			decoded, err := base64.StdEncoding.DecodeString(enc)
			if err != nil {
				return fmt.Errorf("raw value: decode bytes: %w", err)
			}
			*v = RawBytes(decoded)
			return nil
		}
	}
	return fmt.Errorf("raw value: unsupported JSON payload")
}
