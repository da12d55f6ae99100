package domain

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Variant identifies the comparator that produced an Encoding.
type Variant byte

// Comparator variants. The byte value is written into every encoding header.
const (
	VariantLexical Variant = 'L'
	VariantText    Variant = 'T'
	VariantImage   Variant = 'I'
)

// String returns the variant name used in config and metrics labels.
func (v Variant) String() string {
	switch v {
	case VariantLexical:
		return "lexical"
	case VariantText:
		return "text"
	case VariantImage:
		return "image"
	default:
		return fmt.Sprintf("unknown(%d)", byte(v))
	}
}

// EncodingVersion is the current encoding layout version.
const EncodingVersion = 1

// header: magic (2) | version (1) | variant (1)
const encodingHeaderLen = 4

var encodingMagic = [2]byte{'S', 'E'}

// Encoding is an opaque, versioned binary payload produced by a Comparator.
// A nil or empty Encoding means "not yet encoded".
type Encoding []byte

// NewVectorEncoding packs a float vector: header | uint32 dim | dim x float32 (LE).
func NewVectorEncoding(v Variant, vec []float32) Encoding {
	buf := make([]byte, encodingHeaderLen+4+len(vec)*4)
	writeHeader(buf, v)
	binary.LittleEndian.PutUint32(buf[encodingHeaderLen:], uint32(len(vec)))
	off := encodingHeaderLen + 4
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(f))
	}
	return buf
}

// NewStringEncoding packs a raw UTF-8 string behind the header.
func NewStringEncoding(v Variant, s string) Encoding {
	buf := make([]byte, encodingHeaderLen+len(s))
	writeHeader(buf, v)
	copy(buf[encodingHeaderLen:], s)
	return buf
}

func writeHeader(buf []byte, v Variant) {
	buf[0] = encodingMagic[0]
	buf[1] = encodingMagic[1]
	buf[2] = EncodingVersion
	buf[3] = byte(v)
}

// IsEmpty reports whether the encoding is absent.
func (e Encoding) IsEmpty() bool { return len(e) == 0 }

// Variant returns the producing comparator variant after validating the header.
func (e Encoding) Variant() (Variant, error) {
	if len(e) < encodingHeaderLen {
		return 0, fmt.Errorf("encoding too short (%d bytes): %w", len(e), ErrEncoding)
	}
	if e[0] != encodingMagic[0] || e[1] != encodingMagic[1] {
		return 0, fmt.Errorf("bad encoding magic: %w", ErrEncoding)
	}
	if e[2] != EncodingVersion {
		return 0, fmt.Errorf("unsupported encoding version %d: %w", e[2], ErrEncoding)
	}
	return Variant(e[3]), nil
}

// Vector unpacks a vector payload.
func (e Encoding) Vector() ([]float32, error) {
	if _, err := e.Variant(); err != nil {
		return nil, err
	}
	body := e[encodingHeaderLen:]
	if len(body) < 4 {
		return nil, fmt.Errorf("missing vector dimension: %w", ErrEncoding)
	}
	dim := int(binary.LittleEndian.Uint32(body))
	body = body[4:]
	if len(body) != dim*4 {
		return nil, fmt.Errorf("vector payload is %d bytes, want %d: %w", len(body), dim*4, ErrEncoding)
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[i*4:]))
	}
	return vec, nil
}

// Text unpacks a string payload.
func (e Encoding) Text() (string, error) {
	if _, err := e.Variant(); err != nil {
		return "", err
	}
	return string(e[encodingHeaderLen:]), nil
}

// CheckVariant fails with ErrComparatorMismatch if any non-empty encoding was
// produced by a variant other than want.
func CheckVariant(want Variant, encs ...Encoding) error {
	for _, e := range encs {
		if e.IsEmpty() {
			continue
		}
		got, err := e.Variant()
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("%s encoding passed to %s comparator: %w", got, want, ErrComparatorMismatch)
		}
	}
	return nil
}
