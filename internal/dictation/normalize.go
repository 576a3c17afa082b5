package dictation

import (
	"strings"
	"unicode"
)

const (
	sentenceEnders = ".!?"
	closingMarks   = ".,!?;:"
)

// Normalize tidies a finalized transcript: whitespace is collapsed, spaces
// before punctuation are dropped and one space follows it, sentence starts are
// capitalized and the text ends with terminal punctuation. A transcript with
// no letters or digits normalizes to the empty string.
func Normalize(transcript string) string {
	if strings.IndexFunc(transcript, isWordRune) < 0 {
		return ""
	}
	fields := strings.Fields(transcript)

	var builder strings.Builder
	for _, field := range fields {
		if builder.Len() > 0 && !startsWithClosingMark(field) {
			builder.WriteByte(' ')
		}
		builder.WriteString(field)
	}
	text := spaceAfterPunctuation(builder.String())
	text = capitalizeSentences(text)

	last := text[len(text)-1]
	if !strings.ContainsRune(sentenceEnders, rune(last)) {
		text = strings.TrimRight(text, ",;:") + "."
	}
	return text
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func startsWithClosingMark(field string) bool {
	return strings.ContainsRune(closingMarks, rune(field[0]))
}

// spaceAfterPunctuation inserts a space after a mark that runs straight into a
// letter. Digits are left alone so that "3.5" survives.
func spaceAfterPunctuation(text string) string {
	runes := []rune(text)
	out := make([]rune, 0, len(runes)+8)
	for i, r := range runes {
		out = append(out, r)
		if !strings.ContainsRune(closingMarks, r) || i+1 >= len(runes) {
			continue
		}
		if unicode.IsLetter(runes[i+1]) {
			out = append(out, ' ')
		}
	}
	return string(out)
}

func capitalizeSentences(text string) string {
	runes := []rune(text)
	capitalize := true
	for i, r := range runes {
		switch {
		case strings.ContainsRune(sentenceEnders, r):
			capitalize = true
		case unicode.IsLetter(r):
			if capitalize {
				runes[i] = unicode.ToUpper(r)
			}
			capitalize = false
		case unicode.IsDigit(r):
			capitalize = false
		}
	}
	return string(runes)
}
