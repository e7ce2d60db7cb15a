package verifier

import (
	"regexp"
	"strings"
)

const (
	assistantMarker = "<｜Assistant｜>"
	eosToken        = "<｜end▁of▁sentence｜>"
)

var lastCodeBlockPattern = regexp.MustCompile("(?s)```([\\w#+]+)\n(.*?)```")

// AssistantResponse drops everything up to and including the last assistant
// marker of a chat-templated output.
func AssistantResponse(text string) string {
	if idx := strings.LastIndex(text, assistantMarker); idx >= 0 {
		return text[idx+len(assistantMarker):]
	}
	return text
}

// LastBoxed returns the last \boxed{...} expression including the command, or
// false when there is none or its braces never balance.
func LastBoxed(text string) (string, bool) {
	start := strings.LastIndex(text, "\\boxed")
	if start < 0 {
		return "", false
	}

	open := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			open++
		case '}':
			open--
			if open == 0 {
				return text[start : i+1], true
			}
		}
	}

	return "", false
}

// CodeBlock returns the body of the first fenced block tagged with language.
func CodeBlock(text, language string) (string, bool) {
	pattern, err := regexp.Compile("(?s)```" + regexp.QuoteMeta(language) + "\n(.*?)```")
	if err != nil {
		return "", false
	}

	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// LastCodeBlock returns the trimmed body of the last fenced block of any language.
func LastCodeBlock(text string) (string, bool) {
	matches := lastCodeBlockPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	return strings.TrimSpace(matches[len(matches)-1][2]), true
}
