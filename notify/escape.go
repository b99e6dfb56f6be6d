package notify

import "strings"

// escaper covers every character MarkdownV2 treats as syntax. Each one must
// be backslash-escaped in interpolated text before transmission.
var escaper = strings.NewReplacer(
	"\\", "\\\\",
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"-", "\\-",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

// Escape prepares one interpolated value for a MarkdownV2 message body.
func Escape(s string) string {
	return escaper.Replace(s)
}
