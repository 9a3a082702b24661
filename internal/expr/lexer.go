package expr

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokNumber
	tokString
	tokOp
)

type token struct {
	typ   tokenType
	text  string
	start int
	end   int
}

// multi-char operators, longest first
var operators = []string{
	"?.[", "?.", "===", "!==", "==", "!=", "<=", ">=", "&&", "||", "??",
	"(", ")", "[", "]", ".", ",", "?", ":", "+", "-", "*", "/", "%", "!", "<", ">", "=",
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += size
	}
	if l.pos >= len(l.src) {
		return token{typ: tokEOF, start: l.pos, end: l.pos}, nil
	}

	start := l.pos
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])

	if r == '\'' || r == '"' || r == '`' {
		return l.lexString(byte(r))
	}
	if unicode.IsDigit(r) {
		return l.lexNumber()
	}
	if unicode.IsLetter(r) || r == '_' || r == '$' {
		return l.lexIdent()
	}

	for _, op := range operators {
		if strings.HasPrefix(l.src[l.pos:], op) {
			l.pos += len(op)
			return token{typ: tokOp, text: op, start: start, end: l.pos}, nil
		}
	}
	return token{}, &ParseError{Pos: start, Msg: "unexpected character " + string(r)}
}

func (l *lexer) lexString(quote byte) (token, error) {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '\\' {
			l.pos += 2
			continue
		}
		if c == quote {
			l.pos++
			return token{typ: tokString, text: l.src[start:l.pos], start: start, end: l.pos}, nil
		}
		l.pos++
	}
	return token{}, &ParseError{Pos: start, Msg: "unterminated string literal"}
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	sawDot := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '.' && !sawDot && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9' {
			sawDot = true
			l.pos++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		l.pos++
	}
	return token{typ: tokNumber, text: l.src[start:l.pos], start: start, end: l.pos}, nil
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$' {
			break
		}
		l.pos += size
	}
	return token{typ: tokIdent, text: l.src[start:l.pos], start: start, end: l.pos}, nil
}
