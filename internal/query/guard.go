package query

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrNotReadOnly        = errors.New("only read-only SELECT/WITH queries are allowed")
	ErrMultipleStatements = errors.New("only a single SQL statement is allowed")
)

var writeKeywords = map[string]bool{
	"insert":   true,
	"update":   true,
	"delete":   true,
	"merge":    true,
	"drop":     true,
	"create":   true,
	"alter":    true,
	"attach":   true,
	"detach":   true,
	"copy":     true,
	"pragma":   true,
	"vacuum":   true,
	"truncate": true,
	"grant":    true,
	"revoke":   true,
	"install":  true,
}

// CheckReadOnly accepts a single SELECT or WITH statement that starts no
// data-modifying clause. Keywords only count where a statement or clause can
// begin: at the start, or right after a parenthesis. Bare columns named
// update or copy are therefore fine, and so is anything inside string
// literals, quoted identifiers and comments.
func CheckReadOnly(text string) error {
	words, statements := scanSQL(text)
	if len(words) == 0 {
		return ErrNotReadOnly
	}
	if statements > 1 {
		return ErrMultipleStatements
	}
	if words[0].text != "select" && words[0].text != "with" {
		return ErrNotReadOnly
	}
	for _, word := range words[1:] {
		if word.leading && writeKeywords[word.text] {
			return ErrNotReadOnly
		}
	}
	return nil
}

type sqlWord struct {
	text string
	// leading is set when nothing but a parenthesis, a semicolon or the start
	// of text precedes the word.
	leading bool
}

// scanSQL returns the lower-cased bare words of text and the number of
// non-empty statements separated by semicolons.
func scanSQL(text string) ([]sqlWord, int) {
	var (
		words      []sqlWord
		statements int
		current    strings.Builder
		hasContent bool
		// previous significant rune; 0 at the start of text.
		previous rune
	)
	flushWord := func() {
		if current.Len() > 0 {
			leading := previous == 0 || previous == '(' || previous == ')' || previous == ';'
			words = append(words, sqlWord{text: strings.ToLower(current.String()), leading: leading})
			current.Reset()
			previous = 'w'
		}
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			flushWord()
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			flushWord()
			i += 2
			for i < len(runes) && !(runes[i] == '*' && i+1 < len(runes) && runes[i+1] == '/') {
				i++
			}
			i++
		case r == '\'' || r == '"' || r == '`':
			flushWord()
			hasContent = true
			previous = 'q'
			quote := r
			for i++; i < len(runes); i++ {
				if runes[i] == quote {
					if i+1 < len(runes) && runes[i+1] == quote {
						i++
						continue
					}
					break
				}
			}
		case r == ';':
			flushWord()
			previous = ';'
			if hasContent {
				statements++
				hasContent = false
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			current.WriteRune(r)
			hasContent = true
		default:
			flushWord()
			if !unicode.IsSpace(r) {
				hasContent = true
				previous = r
			}
		}
	}
	flushWord()
	if hasContent {
		statements++
	}
	return words, statements
}
