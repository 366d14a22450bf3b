package linkscript

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Eval evaluates a complete ORIGIN/LENGTH expression. Trailing spaces and
// /* */ comments are allowed, anything else left over is a parse error.
func Eval(s string) (int64, error) {
	rest, v, err := EvalPrefix(s)
	if err != nil {
		return 0, err
	}
	if skipSpaces(rest, 0) != len(rest) {
		return 0, &ParseError{Input: s, Offset: len(s) - len(rest), Expected: "end of expression", Err: ErrParse}
	}
	return v, nil
}

// EvalPrefix evaluates the longest expression at the start of s and returns
// the unconsumed remainder with its value. Comments may appear anywhere a
// space may; trailing spaces and comments are left in the remainder.
//
//	terms    := term (('+'|'-') term)*
//	term     := '(' terms ')' | '-' term | suffixed
//	suffixed := number ('K' | 'M')?
//	number   := ('-'|'+') number | "0x" hexdigits | digits
func EvalPrefix(s string) (string, int64, error) {
	p := &exprParser{src: s}
	v, err := p.terms()
	if err != nil {
		return s, 0, err
	}
	return s[p.pos:], v, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) fail(expected string) error {
	return &ParseError{Input: p.src, Offset: p.pos, Expected: expected, Err: ErrParse}
}

func (p *exprParser) overflow(at int) error {
	return &ParseError{Input: p.src, Offset: at, Err: ErrIntegerOverflow}
}

// recoverable reports whether an alternative may be tried after err.
// Overflows are hard failures: the input matched, the value did not fit.
func recoverable(err error) bool {
	return errors.Is(err, ErrParse) && !errors.Is(err, ErrIntegerOverflow)
}

func (p *exprParser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *exprParser) spaces() {
	p.pos = skipSpaces(p.src, p.pos)
}

// skipSpaces returns the offset of the first byte at or after j that is not
// a space, a tab or part of a /* */ comment. An unterminated comment is not
// skipped.
func skipSpaces(s string, j int) int {
	for j < len(s) {
		switch {
		case s[j] == ' ' || s[j] == '\t':
			j++
		case strings.HasPrefix(s[j:], "/*"):
			end := strings.Index(s[j+2:], "*/")
			if end < 0 {
				return j
			}
			j += 2 + end + 2
		default:
			return j
		}
	}
	return j
}

// skipLayout is skipSpaces that also crosses line breaks.
func skipLayout(s string, j int) int {
	for {
		j = skipSpaces(s, j)
		if j >= len(s) || (s[j] != '\n' && s[j] != '\r') {
			return j
		}
		j++
	}
}

func (p *exprParser) terms() (int64, error) {
	acc, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		start := p.pos
		p.spaces()
		op := p.peek()
		if op != '+' && op != '-' {
			p.pos = start
			return acc, nil
		}
		opAt := p.pos
		p.pos++
		p.spaces()
		v, err := p.term()
		if err != nil {
			if recoverable(err) {
				p.pos = start
				return acc, nil
			}
			return 0, err
		}
		var ok bool
		if op == '+' {
			acc, ok = add(acc, v)
		} else {
			acc, ok = sub(acc, v)
		}
		if !ok {
			return 0, p.overflow(opAt)
		}
	}
}

func (p *exprParser) term() (int64, error) {
	start := p.pos

	if p.peek() == '(' {
		p.pos++
		p.spaces()
		v, err := p.terms()
		if err == nil {
			p.spaces()
			if p.peek() == ')' {
				p.pos++
				return v, nil
			}
			err = p.fail("')'")
		}
		if !recoverable(err) {
			return 0, err
		}
		p.pos = start
	}

	if p.peek() == '-' {
		p.pos++
		p.spaces()
		v, err := p.term()
		if err == nil {
			if v == math.MinInt64 {
				return 0, p.overflow(start)
			}
			return -v, nil
		}
		if !recoverable(err) {
			return 0, err
		}
		p.pos = start
	}

	return p.suffixed()
}

func (p *exprParser) suffixed() (int64, error) {
	start := p.pos
	v, err := p.number()
	if err != nil {
		return 0, err
	}
	var scale int64
	switch p.peek() {
	case 'K':
		scale = 1024
	case 'M':
		scale = 1024 * 1024
	default:
		return v, nil
	}
	p.pos++
	if v > math.MaxInt64/scale || v < math.MinInt64/scale {
		return 0, p.overflow(start)
	}
	return v * scale, nil
}

func (p *exprParser) number() (int64, error) {
	start := p.pos
	switch p.peek() {
	case '-', '+':
		sign := p.peek()
		p.pos++
		v, err := p.number()
		if err != nil {
			if recoverable(err) {
				p.pos = start
				return 0, p.fail("number")
			}
			return 0, err
		}
		if sign == '-' {
			return -v, nil
		}
		return v, nil
	}

	if s := p.src[p.pos:]; strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if n := span(s[2:], isHexDigit); n > 0 {
			p.pos += 2 + n
			return p.literal(s[2:2+n], 16, start)
		}
	}

	n := span(p.src[p.pos:], isDigit)
	if n == 0 {
		return 0, p.fail("number")
	}
	p.pos += n
	return p.literal(p.src[start:p.pos], 10, start)
}

func (p *exprParser) literal(digits string, base int, at int) (int64, error) {
	v, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		return 0, p.overflow(at)
	}
	return v, nil
}

func span(s string, pred func(byte) bool) int {
	n := 0
	for n < len(s) && pred(s[n]) {
		n++
	}
	return n
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func add(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}

func sub(a, b int64) (int64, bool) {
	c := a - b
	if (b > 0 && c > a) || (b < 0 && c < a) {
		return 0, false
	}
	return c, true
}
