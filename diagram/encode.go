package diagram

import (
	"bytes"
	"compress/flate"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Alphabet is the 64-symbol alphabet used by PlantUML tokens, in value order.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// ErrInvalidToken indicates a token that is not a PlantUML encoding.
var ErrInvalidToken = errors.New("invalid diagram token")

var symbolValue = func() [256]int8 {
	var t [256]int8
	for i := range t {
		t[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		t[Alphabet[i]] = int8(i)
	}
	return t
}()

// Encode returns the renderer token for a diagram source. The token is
// identical to the one a PlantUML server or the reference encoder produces.
func Encode(source string) string {
	return EncodeBytes(deflate([]byte(source)))
}

// EncodeBytes packs data into 6-bit symbols, most significant bit first.
// Leftover bits are shifted left to fill one final symbol.
func EncodeBytes(data []byte) string {
	var sb strings.Builder
	sb.Grow((len(data)*8 + 5) / 6)

	var buffer uint32
	bits := 0
	for _, b := range data {
		buffer = buffer<<8 | uint32(b)
		bits += 8
		for bits >= 6 {
			bits -= 6
			sb.WriteByte(Alphabet[(buffer>>bits)&0x3F])
		}
		buffer &= 1<<bits - 1
	}
	if bits > 0 {
		sb.WriteByte(Alphabet[(buffer<<(6-bits))&0x3F])
	}
	return sb.String()
}

// DecodeBytes reverses EncodeBytes. Trailing bits that do not complete a
// byte are dropped.
func DecodeBytes(token string) ([]byte, error) {
	out := make([]byte, 0, len(token)*6/8)

	var buffer uint32
	bits := 0
	for i := 0; i < len(token); i++ {
		v := symbolValue[token[i]]
		if v < 0 {
			return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrInvalidToken, token[i], i)
		}
		buffer = buffer<<6 | uint32(v)
		bits += 6
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(buffer>>bits))
			buffer &= 1<<bits - 1
		}
	}
	return out, nil
}

// Decode returns the diagram source for a token produced by Encode or by a
// PlantUML server.
func Decode(token string) (string, error) {
	data, err := DecodeBytes(token)
	if err != nil {
		return "", err
	}

	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	src, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return string(src), nil
}
