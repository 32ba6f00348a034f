package payload

import (
	"strings"
	"testing"

	"github.com/kosmic-labs/engineio/packet"
)

func samplePackets() []*packet.Packet {
	return []*packet.Packet{
		packet.NewWithData(packet.OPEN, packet.JSON(map[string]any{"sid": "abc"})),
		packet.NewWithData(packet.MESSAGE, packet.Text("hello")),
		packet.New(packet.PING),
	}
}

func TestPayloadRoundtrip(t *testing.T) {
	packets := samplePackets()
	encoded, err := Encode(packets)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != len(packets) {
		t.Fatalf("got %d packets, want %d", len(decoded), len(packets))
	}
	for i, p := range packets {
		if decoded[i].Type != p.Type {
			t.Fatalf("packet %d: type mismatch got %v want %v", i, decoded[i].Type, p.Type)
		}
	}
}

func TestPayloadEmpty(t *testing.T) {
	encoded, err := Encode(nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if encoded != "" {
		t.Fatalf("expected empty encoding, got %q", encoded)
	}
	decoded, err := Decode("")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("expected no packets, got %d", len(decoded))
	}
}

func TestPayloadCapExceeded(t *testing.T) {
	parts := make([]string, MaxPackets+1)
	for i := range parts {
		parts[i] = "6"
	}
	body := strings.Join(parts, string(rune(Separator)))
	if _, err := Decode(body); err == nil {
		t.Fatal("expected decode to fail when packet count exceeds the cap")
	}
}

func TestPayloadAtCapSucceeds(t *testing.T) {
	parts := make([]string, MaxPackets)
	for i := range parts {
		parts[i] = "6"
	}
	body := strings.Join(parts, string(rune(Separator)))
	decoded, err := Decode(body)
	if err != nil {
		t.Fatalf("Decode at cap: %v", err)
	}
	if len(decoded) != MaxPackets {
		t.Fatalf("got %d packets, want %d", len(decoded), MaxPackets)
	}
}

func TestEncodeJSONPWrapping(t *testing.T) {
	out := EncodeJSONP(3, `4hi"there`)
	want := `___eio[3]("4hi\"there");`
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
}
