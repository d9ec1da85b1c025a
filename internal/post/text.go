package post

import (
	"fmt"
	"strconv"
	"strings"
)

var markdownSpecial = strings.NewReplacer(
	`\`, `\\`,
	"_", `\_`,
	"*", `\*`,
	"`", "\\`",
	"[", `\[`,
)

// EscapeMarkdown protects free text embedded in a legacy Markdown message.
func EscapeMarkdown(s string) string {
	return markdownSpecial.Replace(s)
}

// Bold wraps free text in a legacy Markdown bold entity. Escapes are not
// allowed inside an entity, so each special character closes the entity, is
// written escaped, and the entity reopens after it.
func Bold(s string) string {
	var b strings.Builder
	open := false
	for _, c := range s {
		switch c {
		case '_', '*', '`', '[':
			if open {
				b.WriteByte('*')
				open = false
			}
			b.WriteByte('\\')
			b.WriteRune(c)
		default:
			if !open {
				b.WriteByte('*')
				open = true
			}
			b.WriteRune(c)
		}
	}
	if open {
		b.WriteByte('*')
	}
	return b.String()
}

// CleanTitle strips quoting and emphasis left over from copy-pasting and a
// trailing ellipsis.
func CleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, "**", "")
	if strings.HasSuffix(s, "...") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "..."))
	}
	return s
}

// Reviews formats the operator's rating input. ok is false when the operator
// skipped the step with "no".
func Reviews(input string) (line string, ok bool) {
	txt := strings.TrimSpace(input)
	if strings.EqualFold(txt, "no") || txt == "" {
		return "", false
	}
	parts := strings.Fields(txt)
	if len(parts) < 2 {
		return "⭐️ " + txt, true
	}
	count := parts[0]
	digits := strings.NewReplacer(".", "", ",", "").Replace(count)
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		count = groupThousands(n)
	}
	return fmt.Sprintf("⭐️ %s Reviews: %s / 5.0", count, parts[1]), true
}

func groupThousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

type emojiRule struct {
	keyword string
	emoji   string
}

// First match wins.
var emojiRules = []emojiRule{
	{"friggitrice", "🍳"}, {"forno", "🍗"}, {"frullatore", "🍹"}, {"macchina da caffè", "☕"},
	{"pentola", "🍲"}, {"padella", "🍳"}, {"robot aspirapolvere", "🤖"}, {"aspirapolvere", "🧹"},
	{"detersivo", "🧺"}, {"ammorbidente", "🧺"}, {"finish", "🍽️"},
	{"smartphone", "📱"}, {"tablet", "📱"}, {"notebook", "💻"}, {"laptop", "💻"},
	{"cuffie", "🎧"}, {"auricolari", "🎧"}, {"headphones", "🎧"}, {"earbuds", "🎧"},
	{"custodia per", "📱"}, {"t-shirt", "👕"}, {"jeans", "👖"},
	{"scarpe", "👟"}, {"spazzola ad aria", "💆‍♀️"}, {"prosecco", "🍾"},
	{"vino", "🍷"}, {"cioccolato", "🍫"}, {"giacca", "🧥"},
	{"piumino", "🧥"}, {"tuta", "👕"}, {"chiavetta", "💾"},
	{"spazzolino", "🦷"}, {"elettrico", "⚡"},
	{"bambino", "🧸"}, {"bebes", "🧸"}, {"chiccò", "🧸"},
}

const defaultEmoji = "📦"

// Emoji picks a product emoji from keywords in the title.
func Emoji(title string) string {
	if title == "" {
		return defaultEmoji
	}
	t := strings.ToLower(title)
	t = strings.NewReplacer(".", "", ",", "").Replace(t)
	for _, r := range emojiRules {
		if strings.Contains(t, r.keyword) {
			return r.emoji
		}
	}
	return defaultEmoji
}
