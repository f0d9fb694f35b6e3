package styles

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tdewolff/minify/v2"
	mincss "github.com/tdewolff/minify/v2/css"
	"github.com/toastate/toastpipe/internal/cssast"
)

// Plugin is one post-processing step applied to compiled CSS.
type Plugin interface {
	Name() string
	Process(css []byte) ([]byte, error)
}

// Chain runs its plugins in order.
type Chain []Plugin

func (c Chain) Apply(css []byte) ([]byte, error) {
	var err error
	for _, p := range c {
		css, err = p.Process(css)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return css, nil
}

// With returns a new chain made of c followed by more. c is never modified.
func (c Chain) With(more ...Plugin) Chain {
	out := make(Chain, 0, len(c)+len(more))
	out = append(out, c...)
	return append(out, more...)
}

// DefaultChain is the chain every non development variant shares.
func DefaultChain(cascade bool) Chain {
	return Chain{
		&Prefixer{Cascade: cascade},
		&MQPacker{Cascade: cascade},
	}
}

func rewrite(src []byte, cascade bool, fn func(*cssast.Sheet)) ([]byte, error) {
	sheet, err := cssast.Parse(src)
	if err != nil {
		return nil, err
	}
	fn(sheet)
	return sheet.Render(cssast.RenderOptions{Cascade: cascade}), nil
}

var propertyPrefixes = map[string][]string{
	"animation":                 {"-webkit-"},
	"animation-delay":           {"-webkit-"},
	"animation-direction":       {"-webkit-"},
	"animation-duration":        {"-webkit-"},
	"animation-fill-mode":       {"-webkit-"},
	"animation-iteration-count": {"-webkit-"},
	"animation-name":            {"-webkit-"},
	"animation-timing-function": {"-webkit-"},
	"appearance":                {"-webkit-", "-moz-"},
	"backdrop-filter":           {"-webkit-"},
	"backface-visibility":       {"-webkit-"},
	"box-decoration-break":      {"-webkit-"},
	"clip-path":                 {"-webkit-"},
	"column-count":              {"-webkit-", "-moz-"},
	"column-gap":                {"-webkit-", "-moz-"},
	"columns":                   {"-webkit-", "-moz-"},
	"flex":                      {"-webkit-", "-ms-"},
	"flex-basis":                {"-webkit-"},
	"flex-direction":            {"-webkit-", "-ms-"},
	"flex-flow":                 {"-webkit-", "-ms-"},
	"flex-grow":                 {"-webkit-"},
	"flex-shrink":               {"-webkit-"},
	"flex-wrap":                 {"-webkit-", "-ms-"},
	"align-content":             {"-webkit-"},
	"align-items":               {"-webkit-"},
	"align-self":                {"-webkit-"},
	"justify-content":           {"-webkit-"},
	"order":                     {"-webkit-"},
	"hyphens":                   {"-webkit-", "-ms-"},
	"mask":                      {"-webkit-"},
	"mask-image":                {"-webkit-"},
	"mask-position":             {"-webkit-"},
	"mask-repeat":               {"-webkit-"},
	"mask-size":                 {"-webkit-"},
	"perspective":               {"-webkit-"},
	"tab-size":                  {"-moz-", "-o-"},
	"text-size-adjust":          {"-webkit-", "-moz-", "-ms-"},
	"transform":                 {"-webkit-", "-ms-"},
	"transform-origin":          {"-webkit-", "-ms-"},
	"transform-style":           {"-webkit-"},
	"transition":                {"-webkit-"},
	"user-select":               {"-webkit-", "-moz-", "-ms-"},
}

var valuePrefixes = map[string]map[string][]string{
	"display": {
		"flex":        {"-webkit-box", "-ms-flexbox"},
		"inline-flex": {"-webkit-inline-box", "-ms-inline-flexbox"},
	},
	"position": {
		"sticky": {"-webkit-sticky"},
	},
}

var selectorPrefixes = []struct {
	pseudo   string
	variants []string
}{
	{"::placeholder", []string{"::-webkit-input-placeholder", "::-moz-placeholder", ":-ms-input-placeholder", "::-ms-input-placeholder"}},
	{"::selection", []string{"::-moz-selection"}},
}

// Prefixer adds vendor prefixed copies of declarations, selectors and keyframes from a
// fixed table. Copies that already exist are not added twice.
type Prefixer struct {
	Cascade bool
}

func (p *Prefixer) Name() string { return "prefixer" }

func (p *Prefixer) Process(src []byte) ([]byte, error) {
	return rewrite(src, p.Cascade, func(sheet *cssast.Sheet) {
		sheet.Walk(func(_ *cssast.Node, children *[]*cssast.Node) {
			*children = prefixBlock(*children)
		})
	})
}

func prefixBlock(children []*cssast.Node) []*cssast.Node {
	out := make([]*cssast.Node, 0, len(children))
	for _, n := range children {
		switch n.Kind {
		case cssast.Decl:
			for _, prefix := range propertyPrefixes[n.Name] {
				if !hasDecl(children, prefix+n.Name, "") {
					out = append(out, &cssast.Node{Kind: cssast.Decl, Name: prefix + n.Name, Value: n.Value, Important: n.Important})
				}
			}
			for _, v := range valuePrefixes[n.Name][n.Value] {
				if !hasDecl(children, n.Name, v) {
					out = append(out, &cssast.Node{Kind: cssast.Decl, Name: n.Name, Value: v, Important: n.Important})
				}
			}
		case cssast.Rule:
			for _, sp := range selectorPrefixes {
				if !strings.Contains(n.Name, sp.pseudo) {
					continue
				}
				for _, variant := range sp.variants {
					sel := strings.ReplaceAll(n.Name, sp.pseudo, variant)
					if !hasNode(children, cssast.Rule, sel, "") {
						c := n.Clone()
						c.Name = sel
						out = append(out, c)
					}
				}
			}
		case cssast.AtRule:
			if n.Name == "keyframes" && !hasNode(children, cssast.AtRule, "-webkit-keyframes", n.Value) {
				c := n.Clone()
				c.Name = "-webkit-keyframes"
				out = append(out, c)
			}
		}
		out = append(out, n)
	}
	return out
}

func hasDecl(children []*cssast.Node, name, value string) bool {
	return hasNode(children, cssast.Decl, name, value)
}

func hasNode(children []*cssast.Node, kind cssast.Kind, name, value string) bool {
	for _, c := range children {
		if c.Kind == kind && c.Name == name && (value == "" || c.Value == value) {
			return true
		}
	}
	return false
}

// MQPacker merges identical top level media queries and moves them, sorted mobile first,
// to the end of the sheet.
type MQPacker struct {
	Cascade bool
}

func (m *MQPacker) Name() string { return "mqpacker" }

func (m *MQPacker) Process(src []byte) ([]byte, error) {
	return rewrite(src, m.Cascade, Pack)
}

var (
	querySpaceRegexp = regexp.MustCompile(`\s*([:(),])\s*`)
	minWidthRegexp   = regexp.MustCompile(`min-width:([\d.]+)(px|em|rem)?`)
	maxWidthRegexp   = regexp.MustCompile(`max-width:([\d.]+)(px|em|rem)?`)
)

// Pack merges and sorts the top level @media blocks of sheet.
func Pack(sheet *cssast.Sheet) {
	var rest, queries []*cssast.Node
	groups := map[string]*cssast.Node{}

	for _, n := range sheet.Nodes {
		if n.Kind != cssast.AtRule || n.Name != "media" || !n.Block {
			rest = append(rest, n)
			continue
		}
		key := normalizeQuery(n.Value)
		if g, ok := groups[key]; ok {
			g.Children = append(g.Children, n.Children...)
			continue
		}
		g := &cssast.Node{Kind: cssast.AtRule, Name: "media", Value: n.Value, Block: true}
		g.Children = append(g.Children, n.Children...)
		groups[key] = g
		queries = append(queries, g)
	}

	sort.SliceStable(queries, func(i, j int) bool {
		return lessQuery(normalizeQuery(queries[i].Value), normalizeQuery(queries[j].Value))
	})
	sheet.Nodes = append(rest, queries...)
}

func normalizeQuery(q string) string {
	q = strings.ToLower(strings.Join(strings.Fields(q), " "))
	return querySpaceRegexp.ReplaceAllString(q, "$1")
}

type queryClass struct {
	group int
	width float64
}

func classifyQuery(q string) queryClass {
	if strings.Contains(q, "print") {
		return queryClass{group: 3}
	}
	if m := minWidthRegexp.FindStringSubmatch(q); m != nil {
		return queryClass{group: 0, width: toPixels(m[1], m[2])}
	}
	if m := maxWidthRegexp.FindStringSubmatch(q); m != nil {
		return queryClass{group: 1, width: toPixels(m[1], m[2])}
	}
	return queryClass{group: 2}
}

func toPixels(num, unit string) float64 {
	v, _ := strconv.ParseFloat(num, 64)
	if unit == "em" || unit == "rem" {
		return v * 16
	}
	return v
}

func lessQuery(a, b string) bool {
	ca, cb := classifyQuery(a), classifyQuery(b)
	if ca.group != cb.group {
		return ca.group < cb.group
	}
	switch ca.group {
	case 0:
		return ca.width < cb.width
	case 1:
		return ca.width > cb.width
	}
	return false
}

// Compressor minifies CSS with tdewolff/minify defaults.
type Compressor struct {
	m *minify.M
}

func NewCompressor() *Compressor {
	m := minify.New()
	m.AddFunc("text/css", mincss.Minify)
	return &Compressor{m: m}
}

func (c *Compressor) Name() string { return "compressor" }

func (c *Compressor) Process(src []byte) ([]byte, error) {
	return c.m.Bytes("text/css", src)
}
