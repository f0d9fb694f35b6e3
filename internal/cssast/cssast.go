// Package cssast holds compiled CSS as a small tree so post-processing steps can rewrite it.
package cssast

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

type Kind int

const (
	Decl Kind = iota
	Rule
	AtRule
	Comment
)

// Node is one statement. Name holds the property, the selector list, the at-rule keyword
// (without "@") or the comment text, depending on Kind.
type Node struct {
	Kind      Kind
	Name      string
	Value     string
	Important bool
	Block     bool
	Children  []*Node
}

type Sheet struct {
	Nodes []*Node
}

var ErrParse = errors.New("css parse error")

var importantRegexp = regexp.MustCompile(`(?i)\s*!\s*important$`)

// Parse reads plain CSS. It does not understand SCSS.
func Parse(src []byte) (*Sheet, error) {
	p := css.NewParser(parse.NewInputBytes(src), false)

	root := &Node{Block: true}
	stack := []*Node{root}
	var selectors []string

	for {
		gt, _, data := p.Next()
		top := stack[len(stack)-1]

		switch gt {
		case css.ErrorGrammar:
			if err := p.Err(); err != nil && err != io.EOF {
				return nil, fmt.Errorf("%w: %v", ErrParse, err)
			}
			return &Sheet{Nodes: root.Children}, nil
		case css.CommentGrammar:
			top.Children = append(top.Children, &Node{Kind: Comment, Name: string(data)})
		case css.AtRuleGrammar:
			top.Children = append(top.Children, &Node{
				Kind:  AtRule,
				Name:  strings.TrimPrefix(string(data), "@"),
				Value: joinTokens(p.Values(), false),
			})
		case css.BeginAtRuleGrammar:
			n := &Node{
				Kind:  AtRule,
				Name:  strings.TrimPrefix(string(data), "@"),
				Value: joinTokens(p.Values(), false),
				Block: true,
			}
			top.Children = append(top.Children, n)
			stack = append(stack, n)
		case css.QualifiedRuleGrammar:
			selectors = append(selectors, selectorOf(data, p.Values()))
		case css.BeginRulesetGrammar:
			selectors = append(selectors, selectorOf(data, p.Values()))
			n := &Node{Kind: Rule, Name: strings.Join(selectors, ", "), Block: true}
			selectors = selectors[:0]
			top.Children = append(top.Children, n)
			stack = append(stack, n)
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			value := joinTokens(p.Values(), false)
			important := false
			if loc := importantRegexp.FindStringIndex(value); loc != nil {
				value = value[:loc[0]]
				important = true
			}
			top.Children = append(top.Children, &Node{
				Kind:      Decl,
				Name:      strings.TrimSpace(string(data)),
				Value:     value,
				Important: important,
			})
		}
	}
}

func selectorOf(data []byte, values []css.Token) string {
	sel := joinTokens(values, true)
	if sel == "" {
		sel = strings.TrimSpace(string(data))
	}
	return sel
}

// joinTokens writes token data verbatim and collapses whitespace tokens between them into a
// single space. Selector lists get ", " between their members.
func joinTokens(values []css.Token, selector bool) string {
	var b strings.Builder
	space := false
	for _, v := range values {
		switch {
		case v.TokenType == css.WhitespaceToken:
			space = b.Len() > 0
			continue
		case selector && v.TokenType == css.CommaToken:
			b.WriteByte(',')
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.Write(v.Data)
	}
	return b.String()
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	c := *n
	c.Children = nil
	for _, ch := range n.Children {
		c.Children = append(c.Children, ch.Clone())
	}
	return &c
}

// Walk visits every block node (the sheet root included, as a nil parent) depth first,
// handing out a pointer to its children so the visitor can rewrite them.
func (s *Sheet) Walk(fn func(parent *Node, children *[]*Node)) {
	fn(nil, &s.Nodes)
	for _, n := range s.Nodes {
		walk(n, fn)
	}
}

func walk(n *Node, fn func(parent *Node, children *[]*Node)) {
	if !n.Block {
		return
	}
	fn(n, &n.Children)
	for _, ch := range n.Children {
		walk(ch, fn)
	}
}

type RenderOptions struct {
	// Cascade aligns vendor prefixed declarations on the unprefixed property name.
	Cascade bool
}

// Render writes the sheet in expanded style.
func (s *Sheet) Render(opts RenderOptions) []byte {
	var buf bytes.Buffer
	for i, n := range s.Nodes {
		if i > 0 && (n.Block || s.Nodes[i-1].Block) {
			buf.WriteByte('\n')
		}
		render(&buf, n, 0, 0, opts)
	}
	return buf.Bytes()
}

func render(buf *bytes.Buffer, n *Node, depth, pad int, opts RenderOptions) {
	indent := strings.Repeat("  ", depth)
	switch n.Kind {
	case Comment:
		buf.WriteString(indent)
		buf.WriteString(n.Name)
		buf.WriteByte('\n')
	case Decl:
		buf.WriteString(indent)
		buf.WriteString(strings.Repeat(" ", pad))
		buf.WriteString(n.Name)
		buf.WriteString(": ")
		buf.WriteString(n.Value)
		if n.Important {
			buf.WriteString(" !important")
		}
		buf.WriteString(";\n")
	case AtRule, Rule:
		buf.WriteString(indent)
		if n.Kind == AtRule {
			buf.WriteString("@" + n.Name)
			if n.Value != "" {
				buf.WriteString(" " + n.Value)
			}
		} else {
			buf.WriteString(n.Name)
		}
		if !n.Block {
			buf.WriteString(";\n")
			return
		}
		buf.WriteString(" {\n")
		var pads []int
		if opts.Cascade {
			pads = cascadePads(n.Children)
		} else {
			pads = make([]int, len(n.Children))
		}
		for i, ch := range n.Children {
			render(buf, ch, depth+1, pads[i], opts)
		}
		buf.WriteString(indent)
		buf.WriteString("}\n")
	}
}

var vendorRegexp = regexp.MustCompile(`^-(webkit|moz|ms|o)-`)

// SplitVendor returns the vendor prefix of a property ("-webkit-") and the bare name.
func SplitVendor(prop string) (prefix, name string) {
	if loc := vendorRegexp.FindStringIndex(prop); loc != nil {
		return prop[:loc[1]], prop[loc[1]:]
	}
	return "", prop
}

func cascadePads(children []*Node) []int {
	pads := make([]int, len(children))
	for i := 0; i < len(children); {
		if children[i].Kind != Decl {
			i++
			continue
		}
		_, name := SplitVendor(children[i].Name)
		j := i + 1
		for j < len(children) && children[j].Kind == Decl {
			if _, other := SplitVendor(children[j].Name); other != name {
				break
			}
			j++
		}
		if j-i > 1 {
			longest := 0
			for k := i; k < j; k++ {
				if prefix, _ := SplitVendor(children[k].Name); len(prefix) > longest {
					longest = len(prefix)
				}
			}
			for k := i; k < j; k++ {
				prefix, _ := SplitVendor(children[k].Name)
				pads[k] = longest - len(prefix)
			}
		}
		i = j
	}
	return pads
}
