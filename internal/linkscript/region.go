package linkscript

import (
	"fmt"
	"strings"
)

// Region is a memory region declaration from a linker script MEMORY block.
type Region struct {
	Name string
	// Attr is the text between the parentheses, valid when HasAttr is set
	Attr    string
	HasAttr bool
	Origin  int64
	Length  int64
}

// End returns the first address past the region.
func (r Region) End() int64 {
	return r.Origin + r.Length
}

func (r Region) String() string {
	attr := ""
	if r.HasAttr {
		attr = " (" + r.Attr + ")"
	}
	return fmt.Sprintf("%s%s: ORIGIN = 0x%x, LENGTH = 0x%x", r.Name, attr, r.Origin, r.Length)
}

// Match is a located region declaration. Before + Declaration + After is
// the script that was searched, byte for byte.
type Match struct {
	Before      string
	Declaration string
	After       string
	Region      Region
	// Line is the 1-based line the declaration starts on
	Line int

	// span of the LENGTH expression inside Declaration
	lengthStart, lengthEnd int
}

// LengthExpr returns the LENGTH expression text exactly as written.
func (m *Match) LengthExpr() string {
	return m.Declaration[m.lengthStart:m.lengthEnd]
}

// FindRegion locates the declaration of the named memory region:
//
//	NAME [(attr)] : ORIGIN = expr, LENGTH = expr
//
// Every start position in the script is tried in turn. Text that does not
// parse as a declaration, and declarations of other regions, are skipped.
// A declaration with the right name that lacks ORIGIN or LENGTH is a hard
// failure. Positions inside /* */ comments are never candidates.
func FindRegion(script, name string) (*Match, error) {
	for i := 0; i < len(script); i++ {
		if strings.HasPrefix(script[i:], "/*") {
			end := strings.Index(script[i+2:], "*/")
			if end < 0 {
				break
			}
			i += 2 + end + 1
			continue
		}
		if !isIdentChar(script[i]) || (i > 0 && isIdentChar(script[i-1])) {
			continue
		}

		d, ok := parseDeclaration(script, i)
		if !ok || d.name != name {
			continue
		}

		line := strings.Count(script[:i], "\n") + 1
		if d.err != nil {
			return nil, &Error{Region: name, Line: line, Err: d.err}
		}

		var origin, length *argument
		for k := range d.args {
			switch strings.ToUpper(d.args[k].key) {
			case "ORIGIN", "ORG", "O":
				origin = &d.args[k]
			case "LENGTH", "LEN", "L":
				length = &d.args[k]
			}
		}
		if origin == nil {
			return nil, &Error{Region: name, Line: line, Err: ErrMissingOrigin}
		}
		if length == nil {
			return nil, &Error{Region: name, Line: line, Err: ErrMissingLength}
		}
		for _, a := range []*argument{origin, length} {
			if err := checkArgumentEnd(script, a); err != nil {
				return nil, &Error{Region: name, Line: line, Err: err}
			}
		}

		return &Match{
			Before:      script[:i],
			Declaration: script[i:d.end],
			After:       script[d.end:],
			Region: Region{
				Name:    d.name,
				Attr:    d.attr,
				HasAttr: d.hasAttr,
				Origin:  origin.value,
				Length:  length.value,
			},
			Line:        line,
			lengthStart: length.start - i,
			lengthEnd:   length.end - i,
		}, nil
	}

	return nil, &Error{Region: name, Err: ErrRegionNotFound}
}

type declaration struct {
	name    string
	attr    string
	hasAttr bool
	args    []argument
	// end is the offset just past the last argument expression
	end int
	// err is set when an argument matched the grammar but its value
	// could not be represented
	err error
}

type argument struct {
	key        string
	value      int64
	start, end int
}

// parseDeclaration reads a region declaration starting at offset i.
// ok is false when the text there is not a declaration at all.
func parseDeclaration(s string, i int) (d declaration, ok bool) {
	j := i + span(s[i:], isIdentChar)
	d.name = s[i:j]
	j = skipSpaces(s, j)

	if j < len(s) && s[j] == '(' {
		rp := strings.IndexByte(s[j+1:], ')')
		if rp < 0 {
			return d, false
		}
		d.attr = s[j+1 : j+1+rp]
		d.hasAttr = true
		j = skipSpaces(s, j+1+rp+1)
	}

	if j >= len(s) || s[j] != ':' {
		return d, false
	}
	j++

	for {
		a, next, err := parseArgument(s, j)
		if err != nil {
			if !recoverable(err) {
				d.err = err
				return d, true
			}
			// The first argument is mandatory; later ones end the list
			// just before their separator.
			return d, len(d.args) > 0
		}
		d.args = append(d.args, a)
		d.end = next

		k := skipSpaces(s, next)
		if k >= len(s) || s[k] != ',' {
			return d, true
		}
		j = k + 1
	}
}

// checkArgumentEnd rejects text left between an expression and the next
// separator, such as the "* 2" of "LENGTH = 1M * 2".
func checkArgumentEnd(s string, a *argument) error {
	k := skipSpaces(s, a.end)
	if k >= len(s) {
		return nil
	}
	switch s[k] {
	case ',', '\n', '\r', '}':
		return nil
	}
	return &ParseError{Input: s, Offset: k, Expected: "',' or end of line after " + a.key, Err: ErrParse}
}

// parseArgument reads "KEY = expr". Line breaks may precede the key.
func parseArgument(s string, j int) (argument, int, error) {
	var a argument
	j = skipLayout(s, j)
	n := span(s[j:], isIdentChar)
	if n == 0 {
		return a, j, &ParseError{Input: s, Offset: j, Expected: "argument name", Err: ErrParse}
	}
	a.key = s[j : j+n]
	j = skipSpaces(s, j+n)
	if j >= len(s) || s[j] != '=' {
		return a, j, &ParseError{Input: s, Offset: j, Expected: "'='", Err: ErrParse}
	}
	j = skipSpaces(s, j+1)

	rest, v, err := EvalPrefix(s[j:])
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Input, pe.Offset = s, j+pe.Offset
		}
		return a, j, err
	}
	a.value = v
	a.start = j
	a.end = len(s) - len(rest)
	return a, a.end, nil
}

func isIdentChar(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
