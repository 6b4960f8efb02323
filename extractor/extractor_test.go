package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-epub/model"
)

const minText = 50

func page(body string) string {
	return "<html><head><title>Story: Chapter</title></head><body>" + body + "</body></html>"
}

func TestExtractContent_Text(t *testing.T) {
	long := strings.Repeat("word ", 12)
	raw := page(`<div class="truyen"><p>` + long + `</p><p>Second   line</p><script>var x = 1;</script></div>`)

	content := ExtractContent(raw, minText)
	require.NotNil(t, content)
	assert.Equal(t, model.ContentText, content.Kind)
	assert.Equal(t, strings.TrimSpace(long)+"\n\nSecond line", content.Text)
	assert.NotContains(t, content.Text, "var x")
}

func TestExtractContent_ImagesWhenTextEmpty(t *testing.T) {
	raw := page(`<div class="content"><img data-url="https://cdn/a.jpg" src="placeholder.gif"><img src="https://cdn/b.png"></div>`)

	content := ExtractContent(raw, minText)
	require.NotNil(t, content)
	assert.Equal(t, model.ContentImages, content.Kind)
	assert.Equal(t, []string{"https://cdn/a.jpg", "https://cdn/b.png"}, content.Images)
}

func TestExtractContent_ImagesWhenTextShort(t *testing.T) {
	raw := page(`<div class="content">Page 1<img src="https://cdn/a.jpg"></div>`)

	content := ExtractContent(raw, minText)
	require.NotNil(t, content)
	assert.Equal(t, model.ContentImages, content.Kind)
}

func TestExtractContent_TextWinsWhenLongEnough(t *testing.T) {
	long := strings.Repeat("x", 60)
	raw := page(`<div class="content">` + long + `<img src="https://cdn/a.jpg"></div>`)

	content := ExtractContent(raw, minText)
	require.NotNil(t, content)
	assert.Equal(t, model.ContentText, content.Kind)
	assert.Equal(t, long, content.Text)
}

func TestExtractContent_Nothing(t *testing.T) {
	assert.Nil(t, ExtractContent(page(`<div class="content">   </div>`), minText))
	assert.Nil(t, ExtractContent(page(`<div class="other">Lots of text here</div>`), minText))
}

func TestExtractContent_TextShortButNoImages(t *testing.T) {
	content := ExtractContent(page(`<div class="truyen">Short.</div>`), minText)
	require.NotNil(t, content)
	assert.Equal(t, model.ContentText, content.Kind)
	assert.Equal(t, "Short.", content.Text)
}

func TestContentHTML(t *testing.T) {
	c := &model.ChapterContent{Kind: model.ContentText, Text: "A.\n\nB."}
	assert.Equal(t, "<p>A.</p><p>B.</p>", c.HTML())

	c = &model.ChapterContent{Kind: model.ContentImages, Images: []string{"images/0001_001.png", "images/0001_002.png"}}
	assert.Equal(t,
		`<img src="images/0001_001.png" alt="Chapter Image" />`+"\n"+`<img src="images/0001_002.png" alt="Chapter Image" />`,
		c.HTML())
}

func TestExtractTitle(t *testing.T) {
	title, ok := ExtractTitle(`<html><body><h1>My Story: Chapter Five</h1></body></html>`)
	assert.True(t, ok)
	assert.Equal(t, "Chapter Five", title)

	title, ok = ExtractTitle(`<html><head><title>A: B: C </title></head><body></body></html>`)
	assert.True(t, ok)
	assert.Equal(t, "C", title)

	title, ok = ExtractTitle(`<html><head><title>Plain</title></head><body></body></html>`)
	assert.True(t, ok)
	assert.Equal(t, "Plain", title)

	_, ok = ExtractTitle(`<html><body><p>none</p></body></html>`)
	assert.False(t, ok)
}

func TestContainerHTML(t *testing.T) {
	inner, ok := ContainerHTML(page(`<div class="content"><p>x</p></div>`))
	assert.True(t, ok)
	assert.Equal(t, "<p>x</p>", inner)

	_, ok = ContainerHTML(page(`<p>x</p>`))
	assert.False(t, ok)
}
