package codec

import (
	"encoding/base64"
	"errors"
)

// Codec errors.
var (
	// ErrOverflow indicates the destination buffer is too small for the
	// encoded output. Nothing has been written when this is returned.
	ErrOverflow = errors.New("encoded output exceeds destination capacity")

	// ErrInvalidInput indicates the input is not valid Base64 text.
	ErrInvalidInput = errors.New("invalid encoded input")
)

// EncodedLen returns the destination capacity required to encode n bytes.
// One byte beyond the Base64 text is reserved as a terminator guard.
func EncodedLen(n int) int {
	return (n+2)/3*4 + 1
}

// DecodedLen returns the maximum number of bytes produced by decoding n
// bytes of Base64 text.
func DecodedLen(n int) int {
	return n / 4 * 3
}

// Encode writes the standard-alphabet, padded Base64 encoding of src into
// dst and returns the number of text bytes written. If dst is smaller than
// EncodedLen(len(src)), Encode writes nothing and returns ErrOverflow.
func Encode(dst, src []byte) (int, error) {
	need := EncodedLen(len(src))
	if len(dst) < need {
		return 0, ErrOverflow
	}
	base64.StdEncoding.Encode(dst, src)
	return need - 1, nil
}

// EncodeToString returns the Base64 encoding of src.
func EncodeToString(src []byte) string {
	return base64.StdEncoding.EncodeToString(src)
}

// Decode writes the bytes represented by the Base64 text src into dst and
// returns the number of bytes written. dst must hold DecodedLen(len(src))
// bytes or ErrOverflow is returned without writing.
func Decode(dst, src []byte) (int, error) {
	if len(dst) < DecodedLen(len(src)) {
		return 0, ErrOverflow
	}
	n, err := base64.StdEncoding.Decode(dst, src)
	if err != nil {
		return 0, ErrInvalidInput
	}
	return n, nil
}

// DecodeString returns the bytes represented by the Base64 text s.
func DecodeString(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidInput
	}
	return b, nil
}
