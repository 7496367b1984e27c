package service

import (
	"regexp"
	"strings"

	"github.com/rl1809/orderbot/internal/core/domain"
)

var addItemPattern = regexp.MustCompile(`^(\S+)\s+(\S+)$`)

var numericCode = regexp.MustCompile(`^\d+$`)

// Classify maps free text to a command. A message is an add-item request when
// it is a numeric code followed by a quantity token. Commands starting with a
// slash and blank messages are unrecognized, anything else is a search.
func Classify(text string) domain.Command {
	return ClassifyMessage(domain.Message{Text: text})
}

// ClassifyMessage is Classify for a transport message. Voice messages are
// tagged as such whatever text they carry.
func ClassifyMessage(msg domain.Message) domain.Command {
	if msg.Voice {
		return domain.Command{Kind: domain.CommandVoice}
	}

	t := strings.TrimSpace(msg.Text)
	if t == "" || strings.HasPrefix(t, "/") {
		return domain.Command{Kind: domain.CommandUnrecognized, Text: t}
	}

	if m := addItemPattern.FindStringSubmatch(t); m != nil && numericCode.MatchString(m[1]) && looksNumeric(m[2]) {
		return domain.Command{Kind: domain.CommandAddItem, Text: t, Code: m[1], Quantity: m[2]}
	}

	return domain.Command{Kind: domain.CommandSearch, Text: t}
}

// looksNumeric accepts digits with an optional minus sign so that "1001 0"
// and "1001 -3" reach quantity validation instead of being searched for.
func looksNumeric(s string) bool {
	return numericCode.MatchString(strings.TrimPrefix(s, "-"))
}
