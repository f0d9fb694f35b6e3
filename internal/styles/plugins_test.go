package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/toastate/toastpipe/internal/cssast"
)

func TestPrefixer_AddsPrefixesWithCascade(t *testing.T) {
	out, err := (&Prefixer{Cascade: true}).Process([]byte(`.a{user-select:none;display:flex}`))
	require.NoError(t, err)

	want := ".a {\n" +
		"  -webkit-user-select: none;\n" +
		"     -moz-user-select: none;\n" +
		"      -ms-user-select: none;\n" +
		"          user-select: none;\n" +
		"  display: -webkit-box;\n" +
		"  display: -ms-flexbox;\n" +
		"  display: flex;\n" +
		"}\n"
	assert.Equal(t, want, string(out))
}

func TestPrefixer_Idempotent(t *testing.T) {
	p := &Prefixer{Cascade: true}
	src := []byte(`.a{transform:none;position:sticky}input::placeholder{color:gray}@keyframes spin{to{transform:rotate(1turn)}}`)

	once, err := p.Process(src)
	require.NoError(t, err)
	twice, err := p.Process(once)
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice))
}

func TestPrefixer_SelectorsAndKeyframes(t *testing.T) {
	out, err := (&Prefixer{}).Process([]byte(`input::placeholder{color:gray}@keyframes spin{to{top:0}}`))
	require.NoError(t, err)

	sheet, err := cssast.Parse(out)
	require.NoError(t, err)

	var names []string
	for _, n := range sheet.Nodes {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{
		"input::-webkit-input-placeholder",
		"input::-moz-placeholder",
		"input:-ms-input-placeholder",
		"input::-ms-input-placeholder",
		"input::placeholder",
		"-webkit-keyframes",
		"keyframes",
	}, names)
}

func TestPack_MergesAndSortsMobileFirst(t *testing.T) {
	src := `@media (max-width:100px){.a{top:0}}` +
		`.b{top:1px}` +
		`@media (min-width:768px){.c{top:2px}}` +
		`@media print{.p{top:5px}}` +
		`@media (min-width:320px){.d{top:3px}}` +
		`@media (max-width: 100px){.e{top:4px}}`

	out, err := (&MQPacker{}).Process([]byte(src))
	require.NoError(t, err)

	sheet, err := cssast.Parse(out)
	require.NoError(t, err)
	require.Len(t, sheet.Nodes, 5)

	assert.Equal(t, ".b", sheet.Nodes[0].Name)
	assert.Equal(t, "(min-width:320px)", normalizeQuery(sheet.Nodes[1].Value))
	assert.Equal(t, "(min-width:768px)", normalizeQuery(sheet.Nodes[2].Value))
	assert.Equal(t, "(max-width:100px)", normalizeQuery(sheet.Nodes[3].Value))
	assert.Equal(t, "print", normalizeQuery(sheet.Nodes[4].Value))

	merged := sheet.Nodes[3].Children
	require.Len(t, merged, 2)
	assert.Equal(t, ".a", merged[0].Name)
	assert.Equal(t, ".e", merged[1].Name)
}

func TestLessQuery(t *testing.T) {
	assert.True(t, lessQuery("(min-width:20em)", "(min-width:400px)"))
	assert.True(t, lessQuery("(max-width:800px)", "(max-width:20em)"))
	assert.True(t, lessQuery("(min-width:2000px)", "(max-width:1px)"))
	assert.False(t, lessQuery("screen", "(orientation:landscape)"))
}

func TestCompressor(t *testing.T) {
	out, err := NewCompressor().Process([]byte(".a {\n  color: red;\n}\n"))
	require.NoError(t, err)
	assert.Equal(t, ".a{color:red}", string(out))
}

func TestChain_WithDoesNotAlias(t *testing.T) {
	shared := make(Chain, 0, 8)
	shared = append(shared, &Prefixer{}, &MQPacker{})

	a := shared.With(NewCompressor())
	b := shared.With(&Prefixer{Cascade: true})

	assert.Len(t, shared, 2)
	assert.Equal(t, "compressor", a[2].Name())
	assert.Equal(t, "prefixer", b[2].Name())
}

func TestMinifiedMatchesExpanded(t *testing.T) {
	src := []byte(`.a{user-select:none;top:1px}@media (min-width:768px){.a{top:2px}}.b{display:flex}`)
	shared := DefaultChain(true)

	expanded, err := shared.Apply(src)
	require.NoError(t, err)
	minified, err := shared.With(NewCompressor()).Apply(src)
	require.NoError(t, err)

	assert.Less(t, len(minified), len(expanded))

	e, err := cssast.Parse(expanded)
	require.NoError(t, err)
	m, err := cssast.Parse(minified)
	require.NoError(t, err)
	assert.Equal(t, string(e.Render(cssast.RenderOptions{})), string(m.Render(cssast.RenderOptions{})))
}
