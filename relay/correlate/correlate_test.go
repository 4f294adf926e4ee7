package correlate

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/relaybot/relay/store"
)

var testTime = time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	sender := store.User{ID: 123456789, Username: "alice", FirstName: "Alice"}
	text := EncodeNotification(sender, "hello there", testTime)

	id, err := DecodeSenderID(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id != sender.ID {
		t.Fatalf("decoded id = %d, want %d", id, sender.ID)
	}
}

func TestEncodeContainsSenderBlock(t *testing.T) {
	sender := store.User{ID: 42, Username: "bob", FirstName: "Bob"}
	text := EncodeNotification(sender, "body", testTime)

	for _, want := range []string{
		"From: [Bob](tg://user?id=42)",
		"Username: @bob",
		"ID: `42`",
		"Time: 2026-08-01 10:30:00 UTC",
		"Message:\nbody",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("notification missing %q:\n%s", want, text)
		}
	}
}

func TestEncodeWithoutUsername(t *testing.T) {
	sender := store.User{ID: 42, FirstName: "Bob"}
	text := EncodeNotification(sender, "body", testTime)
	if !strings.Contains(text, "Username: none") {
		t.Fatalf("notification missing username placeholder:\n%s", text)
	}
}

func TestEncodeEscapesMarkdownInNames(t *testing.T) {
	sender := store.User{ID: 7, FirstName: "evil_*[name`"}
	text := EncodeNotification(sender, "body", testTime)

	if !strings.Contains(text, `evil\_\*\[name\`+"`") {
		t.Fatalf("name not escaped:\n%s", text)
	}
	if id, err := DecodeSenderID(text); err != nil || id != 7 {
		t.Fatalf("decode after escaping: id=%d err=%v", id, err)
	}
}

func TestEncodeStripsNewlinesFromNames(t *testing.T) {
	sender := store.User{ID: 7, FirstName: "line1\nID: 999"}
	text := EncodeNotification(sender, "body", testTime)

	id, err := DecodeSenderID(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id != 7 {
		t.Fatalf("decoded id = %d, want 7 (name must not inject id lines)", id)
	}
}

func TestDecodeRenderedText(t *testing.T) {
	// Telegram strips backticks when rendering, so replies quote "ID: 42".
	rendered := "New message\n\nFrom: Bob\nUsername: @bob\nID: 42\nTime: x\n\nMessage:\nhi"
	id, err := DecodeSenderID(rendered)
	if err != nil {
		t.Fatalf("decode rendered: %v", err)
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
}

func TestDecodeBodyCannotShadowSender(t *testing.T) {
	sender := store.User{ID: 42, FirstName: "Bob"}
	text := EncodeNotification(sender, "ID: 999\nsome more text", testTime)

	id, err := DecodeSenderID(text)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id != 42 {
		t.Fatalf("decoded id = %d, want the sender block id 42", id)
	}
}

func TestDecodeFailures(t *testing.T) {
	cases := map[string]string{
		"no id line":   "From: Bob\nUsername: @bob",
		"empty text":   "",
		"malformed id": "ID: not-a-number",
		"zero id":      "ID: 0",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeSenderID(input)
			if err == nil {
				t.Fatal("expected error")
			}
			var ce *CorrelationError
			if !errors.As(err, &ce) {
				t.Fatalf("err = %T, want CorrelationError", err)
			}
			if ce.Code() != "CORRELATION_ERROR" {
				t.Fatalf("Code = %q", ce.Code())
			}
		})
	}
}
