/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/suparena/docstore/errors"
)

var errUnterminated = fmt.Errorf("unterminated string literal")

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokStar
	tokDot
	tokEqual
)

func (k tokenKind) String() string {
	switch k {
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokStar:
		return "'*'"
	case tokDot:
		return "'.'"
	case tokEqual:
		return "'='"
	}
	return "end of query"
}

type token struct {
	kind tokenKind
	text string // identifier name, unquoted string or number text
	pos  int
}

// lex splits text into tokens. Whitespace separates tokens and is dropped.
func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '*':
			toks = append(toks, token{kind: tokStar, text: "*", pos: i})
			i++
		case c == '.':
			toks = append(toks, token{kind: tokDot, text: ".", pos: i})
			i++
		case c == '=':
			toks = append(toks, token{kind: tokEqual, text: "=", pos: i})
			i++
		case c == '\'':
			s, n, err := lexSingleQuoted(text[i:])
			if err != nil {
				return nil, errors.Malformed("%v at offset %d", err, i)
			}
			toks = append(toks, token{kind: tokString, text: s, pos: i})
			i += n
		case c == '"':
			s, n, err := lexDoubleQuoted(text[i:])
			if err != nil {
				return nil, errors.Malformed("%v at offset %d", err, i)
			}
			toks = append(toks, token{kind: tokString, text: s, pos: i})
			i += n
		case c == '-' || c == '+' || isDigit(c):
			n := scanNumber(text[i:])
			if _, err := strconv.ParseFloat(text[i:i+n], 64); n == 0 || err != nil {
				return nil, errors.Malformed("invalid number at offset %d", i)
			}
			toks = append(toks, token{kind: tokNumber, text: text[i : i+n], pos: i})
			i += n
		case c == '_' || isLetter(c):
			j := i + 1
			for j < len(text) && (text[j] == '_' || isLetter(text[j]) || isDigit(text[j])) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: text[i:j], pos: i})
			i = j
		default:
			r, _ := utf8.DecodeRuneInString(text[i:])
			return nil, errors.Malformed("unexpected character %q at offset %d", r, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(text)}), nil
}

// lexSingleQuoted reads 'text' where '' stands for a quote.
func lexSingleQuoted(s string) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '\'' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			b.WriteByte('\'')
			i++
			continue
		}
		return b.String(), i + 1, nil
	}
	return "", 0, errUnterminated
}

// lexDoubleQuoted reads a Go-style "text" literal with backslash escapes.
func lexDoubleQuoted(s string) (string, int, error) {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			v, err := strconv.Unquote(s[:i+1])
			if err != nil {
				return "", 0, err
			}
			return v, i + 1, nil
		}
	}
	return "", 0, errUnterminated
}

// scanNumber returns the length of the longest number prefix of s.
func scanNumber(s string) int {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '-' || s[j] == '+') {
			j++
		}
		if j < len(s) && isDigit(s[j]) {
			for j < len(s) && isDigit(s[j]) {
				j++
			}
			i = j
		}
	}
	return i
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, unexpected(t, kind.String())
	}
	return t, nil
}

func (p *parser) keyword(word string) error {
	t := p.next()
	if t.kind != tokIdent || !strings.EqualFold(t.text, word) {
		return unexpected(t, strings.ToUpper(word))
	}
	return nil
}

func (p *parser) atKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

func unexpected(t token, want string) error {
	if t.kind == tokEOF {
		return errors.Malformed("expected %s, found end of query", want)
	}
	return errors.Malformed("expected %s, found %q at offset %d", want, t.text, t.pos)
}

var reserved = map[string]bool{
	"select": true, "from": true, "where": true, "and": true,
	"or": true, "not": true, "true": true, "false": true, "null": true,
}

// parse reads SELECT * FROM <alias> [WHERE <ref> = <literal> (AND ...)*].
func parse(text string) (string, Predicate, error) {
	toks, err := lex(text)
	if err != nil {
		return "", Predicate{}, err
	}
	p := &parser{toks: toks}

	if err := p.keyword("select"); err != nil {
		return "", Predicate{}, err
	}
	if _, err := p.expect(tokStar); err != nil {
		return "", Predicate{}, err
	}
	if err := p.keyword("from"); err != nil {
		return "", Predicate{}, err
	}
	aliasTok, err := p.expect(tokIdent)
	if err != nil {
		return "", Predicate{}, err
	}
	if reserved[strings.ToLower(aliasTok.text)] {
		return "", Predicate{}, unexpected(aliasTok, "collection alias")
	}
	alias := aliasTok.text

	var pred Predicate
	if p.atKeyword("where") {
		p.next()
		for {
			field, err := p.parseRef(alias)
			if err != nil {
				return "", Predicate{}, err
			}
			if _, err := p.expect(tokEqual); err != nil {
				return "", Predicate{}, err
			}
			value, err := p.parseLiteral()
			if err != nil {
				return "", Predicate{}, err
			}
			pred = pred.And(field, value)
			if !p.atKeyword("and") {
				break
			}
			p.next()
		}
	}
	if t := p.peek(); t.kind != tokEOF {
		return "", Predicate{}, errors.Malformed("unexpected %q at offset %d", t.text, t.pos)
	}
	return alias, pred, nil
}

// parseRef reads alias.field or a bare field name.
func (p *parser) parseRef(alias string) (string, error) {
	t, err := p.expect(tokIdent)
	if err != nil {
		return "", err
	}
	if reserved[strings.ToLower(t.text)] {
		return "", unexpected(t, "property reference")
	}
	if p.peek().kind != tokDot {
		if t.text == alias {
			return "", errors.Malformed("comparing the whole document %q is not supported", alias)
		}
		return t.text, nil
	}
	if t.text != alias {
		return "", errors.Malformed("unknown alias %q, expected %q", t.text, alias)
	}
	p.next()
	field, err := p.expect(tokIdent)
	if err != nil {
		return "", err
	}
	if p.peek().kind == tokDot {
		return "", errors.Malformed("nested property %s.%s.%s is not supported", alias, field.text, p.toks[p.pos+1].text)
	}
	return field.text, nil
}

func (p *parser) parseLiteral() (any, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return t.text, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, errors.Malformed("invalid number %q", t.text)
		}
		return f, nil
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, errors.Malformed("null literals are not supported")
		}
	}
	return nil, unexpected(t, "literal")
}
