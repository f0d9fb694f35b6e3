package cssast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRender_Expanded(t *testing.T) {
	sheet, err := Parse([]byte(`a{color:red}b , i{margin:0 auto!important}`))
	require.NoError(t, err)
	require.Len(t, sheet.Nodes, 2)

	assert.Equal(t, Rule, sheet.Nodes[0].Kind)
	assert.Equal(t, "a", sheet.Nodes[0].Name)
	assert.Equal(t, "b, i", sheet.Nodes[1].Name)

	margin := sheet.Nodes[1].Children[0]
	assert.Equal(t, "margin", margin.Name)
	assert.Equal(t, "0 auto", margin.Value)
	assert.True(t, margin.Important)

	want := "a {\n  color: red;\n}\n\nb, i {\n  margin: 0 auto !important;\n}\n"
	assert.Equal(t, want, string(sheet.Render(RenderOptions{})))
}

func TestParse_NestedAtRule(t *testing.T) {
	sheet, err := Parse([]byte(`@media screen { .x { color: blue } }`))
	require.NoError(t, err)
	require.Len(t, sheet.Nodes, 1)

	media := sheet.Nodes[0]
	assert.Equal(t, AtRule, media.Kind)
	assert.Equal(t, "media", media.Name)
	assert.Equal(t, "screen", media.Value)
	require.Len(t, media.Children, 1)
	assert.Equal(t, ".x", media.Children[0].Name)
}

func TestRender_Deterministic(t *testing.T) {
	src := []byte(`@import url(a.css);.a{top:0}@media (min-width:10px){.a{top:1px}}`)
	first, err := Parse(src)
	require.NoError(t, err)
	second, err := Parse(first.Render(RenderOptions{}))
	require.NoError(t, err)

	assert.Equal(t, string(first.Render(RenderOptions{})), string(second.Render(RenderOptions{})))
}

func TestRender_Cascade(t *testing.T) {
	sheet := &Sheet{Nodes: []*Node{{
		Kind:  Rule,
		Name:  ".a",
		Block: true,
		Children: []*Node{
			{Kind: Decl, Name: "-webkit-user-select", Value: "none"},
			{Kind: Decl, Name: "-moz-user-select", Value: "none"},
			{Kind: Decl, Name: "-ms-user-select", Value: "none"},
			{Kind: Decl, Name: "user-select", Value: "none"},
			{Kind: Decl, Name: "color", Value: "red"},
		},
	}}}

	want := ".a {\n" +
		"  -webkit-user-select: none;\n" +
		"     -moz-user-select: none;\n" +
		"      -ms-user-select: none;\n" +
		"          user-select: none;\n" +
		"  color: red;\n" +
		"}\n"
	assert.Equal(t, want, string(sheet.Render(RenderOptions{Cascade: true})))
}

func TestSplitVendor(t *testing.T) {
	prefix, name := SplitVendor("-webkit-transform")
	assert.Equal(t, "-webkit-", prefix)
	assert.Equal(t, "transform", name)

	prefix, name = SplitVendor("--custom")
	assert.Empty(t, prefix)
	assert.Equal(t, "--custom", name)
}

func TestClone_Deep(t *testing.T) {
	n := &Node{Kind: Rule, Name: ".a", Block: true, Children: []*Node{{Kind: Decl, Name: "top", Value: "0"}}}
	c := n.Clone()
	c.Children[0].Value = "1px"
	assert.Equal(t, "0", n.Children[0].Value)
}

func TestParse_KeepsSpacesInStrings(t *testing.T) {
	sheet, err := Parse([]byte(`.a::before{content:"a    b";font-family:"My   Font" ,  serif}[title="x  y"] , .b{color:red}`))
	require.NoError(t, err)
	require.Len(t, sheet.Nodes, 2)

	assert.Equal(t, `"a    b"`, sheet.Nodes[0].Children[0].Value)
	assert.Equal(t, `"My   Font" , serif`, sheet.Nodes[0].Children[1].Value)
	assert.Equal(t, `[title="x  y"], .b`, sheet.Nodes[1].Name)

	out := string(sheet.Render(RenderOptions{}))
	assert.Contains(t, out, `content: "a    b";`)
	assert.Contains(t, out, `[title="x  y"], .b {`)
}
