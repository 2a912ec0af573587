package constraint

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokTrue
	tokFalse
	tokEq
	tokNe
	tokIn
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

var tokenNames = map[tokenKind]string{
	tokEOF:      "end of expression",
	tokIdent:    "field",
	tokString:   "string",
	tokNumber:   "number",
	tokTrue:     "true",
	tokFalse:    "false",
	tokEq:       "'=='",
	tokNe:       "'!='",
	tokIn:       "'in'",
	tokAnd:      "'and'",
	tokOr:       "'or'",
	tokNot:      "'not'",
	tokLParen:   "'('",
	tokRParen:   "')'",
	tokLBracket: "'['",
	tokRBracket: "']'",
	tokComma:    "','",
}

func (k tokenKind) String() string { return tokenNames[k] }

var keywords = map[string]tokenKind{
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
	"in":    tokIn,
	"true":  tokTrue,
	"false": tokFalse,
}

type token struct {
	kind tokenKind
	text string  // identifier name or unquoted string
	num  float64 // number value
	pos  int     // 1-based column
}

// SyntaxError describes a malformed expression.
type SyntaxError struct {
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("column %d: %s", e.Column, e.Msg)
}

func tokenize(src string) ([]token, error) {
	var toks []token
	col := func(i int) int { return utf8.RuneCountInString(src[:i]) + 1 }

	for i := 0; i < len(src); {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '(' || r == ')' || r == '[' || r == ']' || r == ',':
			toks = append(toks, token{kind: punct(r), pos: col(i)})
			i++
		case r == '=' || r == '!':
			if i+1 >= len(src) || src[i+1] != '=' {
				return nil, &SyntaxError{Column: col(i), Msg: fmt.Sprintf("unexpected %q, expected '==' or '!='", r)}
			}
			kind := tokEq
			if r == '!' {
				kind = tokNe
			}
			toks = append(toks, token{kind: kind, pos: col(i)})
			i += 2
		case r == '\'' || r == '"':
			s, n, err := readString(src[i:])
			if err != nil {
				return nil, &SyntaxError{Column: col(i), Msg: err.Error()}
			}
			toks = append(toks, token{kind: tokString, text: s, pos: col(i)})
			i += n
		case r == '-' || r == '.' || unicode.IsDigit(r):
			j := i + 1
			for j < len(src) && strings.ContainsRune("0123456789.eE+-", rune(src[j])) {
				if (src[j] == '+' || src[j] == '-') && src[j-1] != 'e' && src[j-1] != 'E' {
					break
				}
				j++
			}
			f, err := strconv.ParseFloat(src[i:j], 64)
			if err != nil {
				return nil, &SyntaxError{Column: col(i), Msg: fmt.Sprintf("invalid number %q", src[i:j])}
			}
			toks = append(toks, token{kind: tokNumber, num: f, text: src[i:j], pos: col(i)})
			i = j
		case isIdentStart(r):
			j := i + size
			for j < len(src) {
				r2, s2 := utf8.DecodeRuneInString(src[j:])
				if !isIdentPart(r2) {
					break
				}
				j += s2
			}
			word := src[i:j]
			if kind, ok := keywords[word]; ok {
				toks = append(toks, token{kind: kind, text: word, pos: col(i)})
			} else {
				toks = append(toks, token{kind: tokIdent, text: word, pos: col(i)})
			}
			i = j
		default:
			return nil, &SyntaxError{Column: col(i), Msg: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	return append(toks, token{kind: tokEOF, pos: utf8.RuneCountInString(src) + 1}), nil
}

func punct(r rune) tokenKind {
	switch r {
	case '(':
		return tokLParen
	case ')':
		return tokRParen
	case '[':
		return tokLBracket
	case ']':
		return tokRBracket
	default:
		return tokComma
	}
}

// readString reads a quoted string starting at s[0]. Backslash escapes the
// next character.
func readString(s string) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\' && i+1 < len(s):
			i++
			b.WriteByte(s[i])
		case c == quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool {
	return r == '_' || r == '-' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
