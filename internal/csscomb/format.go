// Package csscomb normalizes the layout of SCSS sources.
package csscomb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

const indentUnit = "    "

var (
	ErrUnbalanced   = errors.New("unbalanced braces")
	ErrUnterminated = errors.New("unterminated string or comment")
)

type token struct {
	tt   css.TokenType
	data string
}

type formatter struct {
	out      bytes.Buffer
	depth    int
	stmt     []token
	blank    bool
	lastOpen bool
}

// Format returns src with canonical indentation and spacing. Formatting its own output
// returns the same bytes.
func Format(src []byte) ([]byte, error) {
	f := &formatter{lastOpen: true}
	lexer := css.NewLexer(parse.NewInputBytes(append([]byte(nil), src...)))
	offset := 0

	for {
		tt, data := lexer.Next()
		if tt == css.ErrorToken {
			if err := lexer.Err(); err != nil && err != io.EOF {
				return nil, err
			}
			break
		}
		start := offset
		offset += len(data)

		switch tt {
		case css.WhitespaceToken:
			if len(f.stmt) == 0 {
				if bytes.Count(data, []byte("\n")) >= 2 {
					f.blank = true
				}
				continue
			}
			f.stmt = append(f.stmt, token{tt, " "})
		case css.CommentToken:
			if !bytes.HasSuffix(data, []byte("*/")) || len(data) < 4 {
				return nil, fmt.Errorf("line %d: %w", lineAt(src, start), ErrUnterminated)
			}
			if len(f.stmt) == 0 {
				f.line(string(data))
				continue
			}
			f.stmt = append(f.stmt, token{tt, string(data)})
		case css.BadStringToken, css.BadURLToken:
			return nil, fmt.Errorf("line %d: %w", lineAt(src, start), ErrUnterminated)
		case css.LeftBraceToken:
			f.open()
		case css.RightBraceToken:
			if f.depth == 0 {
				return nil, fmt.Errorf("line %d: unexpected '}': %w", lineAt(src, start), ErrUnbalanced)
			}
			f.close()
		case css.SemicolonToken:
			f.flush()
		case css.DelimToken:
			switch {
			case data[0] == '/' && offset < len(src) && src[offset] == '/':
				end := bytes.IndexByte(src[start:], '\n')
				if end < 0 {
					end = len(src) - start
				}
				f.line(string(bytes.TrimRight(src[start:start+end], " \t\r")))
				offset = start + end
				lexer = css.NewLexer(parse.NewInputBytes(append([]byte(nil), src[offset:]...)))
			case data[0] == '#' && offset < len(src) && src[offset] == '{':
				end, ok := interpolationEnd(src, offset)
				if !ok {
					return nil, fmt.Errorf("line %d: unclosed interpolation: %w", lineAt(src, start), ErrUnbalanced)
				}
				f.stmt = append(f.stmt, token{tt, string(src[start:end])})
				offset = end
				lexer = css.NewLexer(parse.NewInputBytes(append([]byte(nil), src[offset:]...)))
			default:
				f.stmt = append(f.stmt, token{tt, string(data)})
			}
		default:
			f.stmt = append(f.stmt, token{tt, string(data)})
		}
	}

	if f.depth > 0 {
		return nil, fmt.Errorf("%d unclosed block(s): %w", f.depth, ErrUnbalanced)
	}
	f.flush()
	return f.out.Bytes(), nil
}

// interpolationEnd returns the offset just past the "}" closing the "#{" whose "{" is at open.
func interpolationEnd(src []byte, open int) (int, bool) {
	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

func lineAt(src []byte, offset int) int {
	if offset > len(src) {
		offset = len(src)
	}
	return bytes.Count(src[:offset], []byte("\n")) + 1
}

func (f *formatter) writeLine(s string) {
	if f.blank && !f.lastOpen && f.out.Len() > 0 {
		f.out.WriteByte('\n')
	}
	f.blank = false
	f.out.WriteString(strings.Repeat(indentUnit, f.depth))
	f.out.WriteString(s)
	f.out.WriteByte('\n')
	f.lastOpen = false
}

func (f *formatter) line(s string) {
	f.writeLine(s)
}

func (f *formatter) open() {
	head := render(f.stmt, false)
	f.stmt = f.stmt[:0]
	if head == "" {
		f.writeLine("{")
	} else {
		f.writeLine(head + " {")
	}
	f.depth++
	f.lastOpen = true
}

func (f *formatter) close() {
	f.flush()
	f.blank = false
	f.depth--
	f.writeLine("}")
}

// flush writes the pending statement as a declaration, always ending it with a semicolon.
func (f *formatter) flush() {
	text := render(f.stmt, true)
	f.stmt = f.stmt[:0]
	if text == "" {
		return
	}
	f.writeLine(text + ";")
}

func render(toks []token, declaration bool) string {
	for len(toks) > 0 && toks[0].tt == css.WhitespaceToken {
		toks = toks[1:]
	}
	for len(toks) > 0 && toks[len(toks)-1].tt == css.WhitespaceToken {
		toks = toks[:len(toks)-1]
	}
	if len(toks) == 0 {
		return ""
	}

	if declaration {
		depth := 0
		for i, t := range toks {
			switch t.tt {
			case css.LeftParenthesisToken, css.FunctionToken, css.LeftBracketToken:
				depth++
			case css.RightParenthesisToken, css.RightBracketToken:
				depth--
			case css.ColonToken:
				if depth != 0 || i == 0 {
					continue
				}
				prop := join(toks[:i])
				value := join(toks[i+1:])
				if value == "" {
					return prop + ":"
				}
				return prop + ": " + value
			}
		}
	}
	return join(toks)
}

func join(toks []token) string {
	var b strings.Builder
	space, comma := false, false
	for _, t := range toks {
		switch t.tt {
		case css.WhitespaceToken:
			space = true
			continue
		case css.CommaToken:
			space = false
			b.WriteString(",")
			comma = true
			continue
		}
		if (space || comma) && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space, comma = false, false
		b.WriteString(t.data)
	}
	return b.String()
}
