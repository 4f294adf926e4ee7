// Package format escapes user-controlled text for Telegram parse modes.
package format

import "strings"

var (
	mdV1Escaper = strings.NewReplacer(
		"_", `\_`,
		"*", `\*`,
		"[", `\[`,
		"`", "\\`",
	)
	mdV2Escaper = newV2Escaper()
)

func newV2Escaper() *strings.Replacer {
	const specials = "_*[]()~`>#+-=|{}.!\\"
	pairs := make([]string, 0, len(specials)*2)
	for _, r := range specials {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// EscapeMarkdown escapes the characters Telegram treats as Markdown (V1) markup.
func EscapeMarkdown(text string) string {
	return mdV1Escaper.Replace(text)
}

// EscapeMarkdownV2 escapes the full MarkdownV2 special set.
func EscapeMarkdownV2(text string) string {
	return mdV2Escaper.Replace(text)
}
