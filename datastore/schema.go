// Package datastore implements the on-board data handler: a registry of
// rotating binary-log files (DataProcess) and image files (ImageProcess)
// on removable mass storage, with transmit-lease semantics for downlink.
package datastore

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/lunasat/fsw-core"
)

// field widths, by format character:
//   b,B -> 1 byte   (int8/uint8)
//   h,H -> 2 bytes  (int16/uint16)
//   i,I,l,L,f -> 4 bytes (int32/uint32/float32)
//   q,Q,d -> 8 bytes (int64/uint64/float64)
func widthOf(code byte) (int, bool) {
	switch code {
	case 'b', 'B':
		return 1, true
	case 'h', 'H':
		return 2, true
	case 'i', 'I', 'l', 'L', 'f':
		return 4, true
	case 'q', 'Q', 'd':
		return 8, true
	default:
		return 0, false
	}
}

// Field is one named, typed slot in a record.
type Field struct {
	Name   string
	Code   byte
	Offset int
	Width  int
}

// Schema is the parsed, immutable layout of one DataProcess's records:
// an ordered list of named, fixed-width fields packed with no padding,
// little-endian.
type Schema struct {
	Fields []Field
	Size   int
	raw    string // the exact format string this Schema was parsed from
}

// Format returns the format string the Schema was parsed from, suitable
// for persisting as a DataProcess's on-disk data_format and handing back
// to ParseSchema on recovery.
func (s *Schema) Format() string {
	return s.raw
}

// ParseSchema parses a format string of comma-separated "name:code" pairs,
// e.g. "timestamp:I,temperature:f,voltage:H", into a Schema.
func ParseSchema(format string) (*Schema, error) {
	if strings.TrimSpace(format) == "" {
		return nil, fsw.NewError("datastore.ParseSchema", fsw.ErrSchema, "empty data_format")
	}

	parts := strings.Split(format, ",")
	fields := make([]Field, 0, len(parts))
	offset := 0
	for _, part := range parts {
		part = strings.TrimSpace(part)
		nameCode := strings.SplitN(part, ":", 2)
		if len(nameCode) != 2 || nameCode[1] == "" {
			return nil, fsw.NewError("datastore.ParseSchema", fsw.ErrSchema,
				fmt.Sprintf("malformed field spec %q", part))
		}
		code := nameCode[1][0]
		width, ok := widthOf(code)
		if !ok {
			return nil, fsw.NewError("datastore.ParseSchema", fsw.ErrSchema,
				fmt.Sprintf("unknown format code %q", string(code)))
		}
		fields = append(fields, Field{Name: nameCode[0], Code: code, Offset: offset, Width: width})
		offset += width
	}

	return &Schema{Fields: fields, Size: offset, raw: format}, nil
}

func (s *Schema) field(name string) (Field, error) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, nil
		}
	}
	return Field{}, fsw.NewError("datastore.Schema", fsw.ErrUnknownTag, fmt.Sprintf("unknown tag %q", name))
}

// Pack encodes values into a fixed-size record. Every field named in the
// schema must be present in values; extra keys are ignored.
func (s *Schema) Pack(values map[string]any) ([]byte, error) {
	buf := make([]byte, s.Size)
	for _, f := range s.Fields {
		v, ok := values[f.Name]
		if !ok {
			return nil, fsw.NewError("datastore.Schema.Pack", fsw.ErrUnknownTag,
				fmt.Sprintf("missing value for tag %q", f.Name))
		}
		if err := packField(buf[f.Offset:f.Offset+f.Width], f.Code, v); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// Unpack decodes a fixed-size record into a name->value map.
func (s *Schema) Unpack(data []byte) (map[string]any, error) {
	if len(data) != s.Size {
		return nil, fsw.NewError("datastore.Schema.Unpack", fsw.ErrSchema,
			fmt.Sprintf("record length %d does not match schema size %d", len(data), s.Size))
	}
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = unpackField(data[f.Offset:f.Offset+f.Width], f.Code)
	}
	return out, nil
}

func packField(dst []byte, code byte, v any) error {
	switch code {
	case 'b':
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		dst[0] = byte(int8(n))
	case 'B':
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		dst[0] = byte(uint8(n))
	case 'h':
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(dst, uint16(int16(n)))
	case 'H':
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(dst, uint16(n))
	case 'i', 'l':
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, uint32(int32(n)))
	case 'I', 'L':
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, uint32(n))
	case 'f':
		f, err := asFloat64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(f)))
	case 'q':
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(dst, uint64(n))
	case 'Q':
		n, err := asInt64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(dst, uint64(n))
	case 'd':
		f, err := asFloat64(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(dst, math.Float64bits(f))
	default:
		return fsw.NewError("datastore.Schema.Pack", fsw.ErrSchema, fmt.Sprintf("unknown format code %q", string(code)))
	}
	return nil
}

func unpackField(src []byte, code byte) any {
	switch code {
	case 'b':
		return int8(src[0])
	case 'B':
		return uint8(src[0])
	case 'h':
		return int16(binary.LittleEndian.Uint16(src))
	case 'H':
		return binary.LittleEndian.Uint16(src)
	case 'i', 'l':
		return int32(binary.LittleEndian.Uint32(src))
	case 'I', 'L':
		return binary.LittleEndian.Uint32(src)
	case 'f':
		return math.Float32frombits(binary.LittleEndian.Uint32(src))
	case 'q':
		return int64(binary.LittleEndian.Uint64(src))
	case 'Q':
		return binary.LittleEndian.Uint64(src)
	case 'd':
		return math.Float64frombits(binary.LittleEndian.Uint64(src))
	}
	return nil
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	default:
		return 0, fsw.NewError("datastore.Schema.Pack", fsw.ErrSchema, fmt.Sprintf("value %v is not an integer", v))
	}
}

func asFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fsw.NewError("datastore.Schema.Pack", fsw.ErrSchema, fmt.Sprintf("value %v is not a float", v))
	}
}
