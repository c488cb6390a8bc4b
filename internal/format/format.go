// Package format implements chat-line template substitution and legacy
// &-style markup code handling.
package format

import "strings"

// Placeholders carries the values substituted into a message template.
type Placeholders struct {
	Sender  string
	Target  string
	Message string
	Server  string
	Channel string
}

// Substitute replaces the %SENDER%, %TARGET%, %MESSAGE%, %SERVER% and
// %CHANNEL% tokens in template with the given values.
func Substitute(template string, p Placeholders) string {
	r := strings.NewReplacer(
		"%SENDER%", p.Sender,
		"%TARGET%", p.Target,
		"%MESSAGE%", p.Message,
		"%SERVER%", p.Server,
		"%CHANNEL%", p.Channel,
	)
	return r.Replace(template)
}

// markupCodes are the characters that may follow '&' to form a markup code.
const markupCodes = "0123456789abcdefklmnorABCDEFKLMNOR"

// Strip removes every &-style markup code from s. Unrecognized sequences and
// a trailing lone '&' pass through unchanged.
func Strip(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '&' && i+1 < len(s) && strings.IndexByte(markupCodes, s[i+1]) >= 0 {
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Oblique marks a display name with the emphasis code used for formal group
// channel administrators.
func Oblique(name string) string {
	return "&o" + name
}
