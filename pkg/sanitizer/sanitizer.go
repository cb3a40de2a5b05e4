package sanitizer

import (
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func lower(s string) string {
	return strings.ToLower(s)
}

func dropControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

var emailPipeline = Pipeline{strings.TrimSpace, lower}

func NormalizeEmail(email string) string {
	return emailPipeline.Apply(email)
}

var textPipeline = Pipeline{dropControl, strings.TrimSpace}

// NormalizeText keeps line breaks, so multi-line descriptions survive.
func NormalizeText(s string) string {
	return textPipeline.Apply(s)
}
