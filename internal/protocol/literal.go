package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// parseLiteral reads the subset of python literal syntax that spool producers
// emit with repr(): lists, tuples, quoted strings and numbers. Lists and
// tuples both become []any, numbers become float64.
func parseLiteral(s string) (any, error) {
	p := &literalParser{src: s}
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("trailing data at offset %d", p.pos)
	}
	return v, nil
}

type literalParser struct {
	src string
	pos int
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.src) && strings.ContainsRune(" \t\r\n", rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *literalParser) value() (any, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("unexpected end of input")
	}
	switch c := p.src[p.pos]; {
	case c == '[':
		return p.sequence(']')
	case c == '(':
		return p.sequence(')')
	case c == '\'' || c == '"':
		return p.str(c)
	case c == 'u' && p.pos+1 < len(p.src) && (p.src[p.pos+1] == '\'' || p.src[p.pos+1] == '"'):
		p.pos++
		return p.str(p.src[p.pos])
	default:
		return p.number()
	}
}

func (p *literalParser) sequence(closer byte) (any, error) {
	p.pos++ // opener
	items := []any{}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated sequence")
		}
		if p.src[p.pos] == closer {
			p.pos++
			return items, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		items = append(items, v)

		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, fmt.Errorf("unterminated sequence")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case closer:
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", p.src[p.pos], p.pos)
		}
	}
}

func (p *literalParser) str(quote byte) (any, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case quote:
			p.pos++
			return b.String(), nil
		case '\\':
			if p.pos+1 >= len(p.src) {
				return nil, fmt.Errorf("dangling escape")
			}
			next := p.src[p.pos+1]
			switch next {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(next)
			}
			p.pos += 2
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return nil, fmt.Errorf("unterminated string")
}

func (p *literalParser) number() (any, error) {
	start := p.pos
	for p.pos < len(p.src) && strings.ContainsRune("+-.0123456789eE", rune(p.src[p.pos])) {
		p.pos++
	}
	text := p.src[start:p.pos]
	// python 2 long suffix
	if p.pos < len(p.src) && (p.src[p.pos] == 'L' || p.src[p.pos] == 'l') {
		p.pos++
	}
	if text == "" {
		return nil, fmt.Errorf("unexpected %q at offset %d", p.src[start], start)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("bad number %q: %w", text, err)
	}
	return f, nil
}
