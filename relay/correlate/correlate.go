// Package correlate builds admin notifications that carry the sender's
// identity and recovers that identity from quoted notification text when no
// database record exists for the message.
package correlate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/relaybot/core/telegram/format"
	"github.com/m3rciful/relaybot/relay/store"
)

// idLabel prefixes the machine-readable sender line. DecodeSenderID depends
// on this exact prefix, so it must never change without a migration period.
const idLabel = "ID: "

// CorrelationError reports a notification whose sender could not be recovered.
type CorrelationError struct {
	Reason string
}

func (e *CorrelationError) Error() string {
	return "correlate: " + e.Reason
}

// Code identifies correlation failures for handler summary logs.
func (e *CorrelationError) Code() string { return "CORRELATION_ERROR" }

// EncodeNotification renders the admin notification for a relayed message.
// The sender block comes before the body, so the first ID line in the text is
// always the authoritative one even when the body itself contains an ID line.
func EncodeNotification(sender store.User, text string, at time.Time) string {
	name := sanitizeName(sender.DisplayName())

	var b strings.Builder
	b.WriteString("*New message*\n\n")
	fmt.Fprintf(&b, "From: [%s](tg://user?id=%d)\n", name, sender.ID)
	if sender.Username != "" {
		fmt.Fprintf(&b, "Username: @%s\n", sanitizeName(sender.Username))
	} else {
		b.WriteString("Username: none\n")
	}
	fmt.Fprintf(&b, "%s`%d`\n", idLabel, sender.ID)
	fmt.Fprintf(&b, "Time: %s\n", at.UTC().Format("2006-01-02 15:04:05 MST"))
	b.WriteString("\nMessage:\n")
	b.WriteString(text)
	return b.String()
}

// DecodeSenderID recovers the sender id from quoted notification text. It is
// the fallback path when the notification has no database record. Telegram
// strips backtick markup when the text is rendered, so both raw and rendered
// forms decode.
func DecodeSenderID(quoted string) (int64, error) {
	for _, line := range strings.Split(quoted, "\n") {
		rest, ok := strings.CutPrefix(line, idLabel)
		if !ok {
			continue
		}
		rest = strings.TrimSpace(strings.Trim(strings.TrimSpace(rest), "`"))
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return 0, &CorrelationError{Reason: fmt.Sprintf("malformed id line %q", line)}
		}
		if id == 0 {
			return 0, &CorrelationError{Reason: "zero sender id"}
		}
		return id, nil
	}
	return 0, &CorrelationError{Reason: "no id line in quoted text"}
}

// sanitizeName removes newlines so user-controlled names cannot inject extra
// lines into the notification structure, then escapes Markdown markup.
func sanitizeName(s string) string {
	s = strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
	return format.EscapeMarkdown(strings.TrimSpace(s))
}
