package diagram

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"
)

const (
	minimalSource = "@startuml\n@enduml"

	// Token a PlantUML server publishes for minimalSource.
	serverToken = "SoWkIImgAStDuN98pKi1qW0"
)

const orderSource = `@startuml
title Order Service
actor Customer
participant "API Gateway" as GW
participant "Order Service" as OS
database Postgres as DB
queue Kafka
Customer -> GW: POST /orders
GW -> OS: createOrder(request)
OS -> DB: INSERT INTO orders
DB --> OS: order id
OS -> Kafka: publish OrderCreated
OS --> GW: 201 Created
GW --> Customer: order id
@enduml`

// Tokens below were produced by the reference encoder, which deflates with
// zlib at its default level.
func TestEncode_Golden(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"empty", "", "0m0"},
		{"minimal", minimalSource, serverToken},
		{"one message", "@startuml\nAlice -> Bob: hello\n@enduml", "SoWkIImgAStDuNBCoKnELT2rKt3AJx9Io4ZDoSddSaZDIm7A0G0"},
		// Long enough for a dynamic Huffman block.
		{"sequence", orderSource, "LP3DJiCm48JlVefHJt2e-3dcW4eQ55L8ECAHUjuc2rYaJR3N8DuUsqqaUbffTkQRrMwya9Dm79HO6HZQzUnWs7tRZXLrCZfiWvVno4vDqMexEz59i7fiTgX9-8T-Lo2FUd-vlo1bXpQg9w43UKOpUdbtx9DUbUehS60yqzidgQKEwuS8BT1eq-9cJ3YlwdsIjIdGEOxjkUNASGHukLRQf7LL5jYzcAVNDevMOyvM9TPpE2km_Hp8nGMcS1Yi_pW_OPlvPyTyoVtj7HOv7HBbvTX_o0sV-lZGFm"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.src); got != tt.want {
				t.Errorf("Encode(%.30q) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

// Large inputs are compared by digest: the first spans several blocks and
// slides the window, the second is incompressible and goes out stored.
func TestEncode_GoldenDigest(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("@startuml\n")
	for i := 0; i < 6000; i++ {
		fmt.Fprintf(&sb, "P%d -> P%d: message %d\n", i%17, (i*7)%13, i)
	}
	sb.WriteString("@enduml\n")

	noise := make([]byte, 3000)
	x := uint32(1)
	for i := range noise {
		x = (x*1103515245 + 12345) & 0x7fffffff
		noise[i] = byte(x >> 16)
	}

	tests := []struct {
		name    string
		src     string
		wantLen int
		wantSum string
	}{
		{"many blocks", sb.String(), 35688, "4f00e8e6cd14be4f21391a96742e271a18815d8a753e182379d1592dfefbad00"},
		{"stored", string(noise), 4007, "53973f31cba28f84668d0fe248291285a84229d8e0874c75d725fb918eea093c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := Encode(tt.src)
			sum := sha256.Sum256([]byte(tok))
			if len(tok) != tt.wantLen || hex.EncodeToString(sum[:]) != tt.wantSum {
				t.Errorf("Encode() = %d symbols sha256 %x, want %d symbols sha256 %s", len(tok), sum, tt.wantLen, tt.wantSum)
			}
			got, err := Decode(tok)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != tt.src {
				t.Error("Decode(Encode()) did not return the source")
			}
		})
	}
}

func TestEncode_Deterministic(t *testing.T) {
	src := "@startuml\nactor User\nUser -> [Frontend] : uses\n@enduml"
	if a, b := Encode(src), Encode(src); a != b {
		t.Errorf("Encode not deterministic: %q vs %q", a, b)
	}
}

func TestEncode_Alphabet(t *testing.T) {
	sources := []string{
		"",
		"a",
		minimalSource,
		"@startuml\ntitle Ünïcødé 系统\nA -> B\n@enduml",
		strings.Repeat("package \"Backend\" {\n  [Go]\n}\n", 50),
	}
	for _, src := range sources {
		tok := Encode(src)
		for i, r := range tok {
			if !strings.ContainsRune(Alphabet, r) {
				t.Errorf("Encode(%.20q)[%d] = %q outside alphabet", src, i, r)
			}
		}
		if strings.ContainsAny(tok, "=+/") {
			t.Errorf("Encode(%.20q) contains padding or base64 symbols: %q", src, tok)
		}
	}
}

func TestEncodeBytes(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"empty", nil, ""},
		// 0x00 -> 000000 00(0000)
		{"one zero byte", []byte{0x00}, "00"},
		// 0xFF -> 111111 11(0000)
		{"one full byte", []byte{0xFF}, "_m"},
		// 3 bytes pack into exactly 4 symbols
		{"three bytes", []byte{0xFF, 0xFF, 0xFF}, "____"},
		// 0x04 0x10 0x41 -> 000001 000001 000001 000001
		{"msb first", []byte{0x04, 0x10, 0x41}, "1111"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeBytes(tt.in); got != tt.want {
				t.Errorf("EncodeBytes(%x) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeBytes_RoundTrip(t *testing.T) {
	for n := 0; n < 40; n++ {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i*37 + n)
		}
		got, err := DecodeBytes(EncodeBytes(data))
		if err != nil {
			t.Fatalf("DecodeBytes: %v", err)
		}
		if string(got) != string(data) {
			t.Fatalf("round trip of %d bytes = %x, want %x", n, got, data)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"server token", serverToken},
		// compress/flate output for the same source: non-final block plus
		// an empty stored block.
		{"flate token", "SYWkIImgAStDuN98pKifpSq11000__y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.token)
			if err != nil {
				t.Fatalf("Decode(%q) error = %v", tt.token, err)
			}
			if got != minimalSource {
				t.Errorf("Decode(%q) = %q, want %q", tt.token, got, minimalSource)
			}
		})
	}
}

func TestDecode_RoundTrip(t *testing.T) {
	src := "@startuml\ntitle application System Architecture\nactor User\npackage \"Frontend\" {\n  [React]\n}\nUser --> [React]\n@enduml"
	got, err := Decode(Encode(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != src {
		t.Errorf("round trip = %q, want %q", got, src)
	}
}

func TestDecode_Invalid(t *testing.T) {
	for _, tok := range []string{"abc=", "not a token", "0000"} {
		if _, err := Decode(tok); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Decode(%q) error = %v, want ErrInvalidToken", tok, err)
		}
	}
}
