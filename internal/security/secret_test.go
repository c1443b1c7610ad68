package security

import (
	"fmt"
	"testing"

	"github.com/goccy/go-json"
)

func TestSecretRedactionAndJSON(t *testing.T) {
	s := FromString("supersecret")
	for _, verb := range []string{"%v", "%s", "%q", "%#v"} {
		if got := fmt.Sprintf(verb, s); got != "[SECRET]" {
			t.Fatalf("unexpected fmt output for %s: %q", verb, got)
		}
	}
	b, err := json.Marshal(struct {
		Password Secret `json:"password"`
	}{Password: s})
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	if string(b) != `{"password":"[SECRET]"}` {
		t.Fatalf("unexpected json marshal: %s", string(b))
	}
	if s.Reveal() != "supersecret" {
		t.Fatalf("Reveal returned %q", s.Reveal())
	}
}

func TestSecretJSON_NestedAndPointer(t *testing.T) {
	s := FromString("supersecret")
	b, err := json.Marshal(map[string]any{
		"env":   map[string]Secret{"CLIENT_SECRET": s},
		"login": &struct{ Password *Secret }{Password: &s},
	})
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	want := `{"env":{"CLIENT_SECRET":"[SECRET]"},"login":{"Password":"[SECRET]"}}`
	if string(b) != want {
		t.Fatalf("unexpected json marshal: %s", string(b))
	}
}

func TestSecretZero(t *testing.T) {
	s := FromString("abc123")
	(&s).Zero()
	b := s.Bytes()
	for i := range b {
		if b[i] != 0 {
			t.Fatalf("expected zeroed byte at index %d, got %d", i, b[i])
		}
	}
}

func TestFromBytesCopies(t *testing.T) {
	in := []byte("pw")
	s := FromBytes(in)
	in[0] = 'x'
	if s.Reveal() != "pw" {
		t.Fatalf("FromBytes did not copy: %q", s.Reveal())
	}
	if (Secret(nil)).IsEmpty() != true || s.IsEmpty() {
		t.Fatalf("IsEmpty mismatch")
	}
}
