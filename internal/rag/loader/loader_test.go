package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_LoadText(t *testing.T) {
	ld := New()
	path := writeFixture(t, "note.txt", "第一段内容。\n\n第二段内容。")

	doc, err := ld.Load(path)
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "第一段内容")
	assert.Equal(t, "note.txt", doc.Metadata["file_name"])
	assert.Equal(t, "txt", doc.Metadata["file_type"])
	assert.NotZero(t, doc.Metadata["file_size"])
}

func TestLoader_LoadMarkdown(t *testing.T) {
	ld := New()
	path := writeFixture(t, "guide.md", "# 使用指南\n\n## 安装\n\n执行安装命令。")

	doc, err := ld.Load(path)
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "## 安装")
	assert.Equal(t, "使用指南", doc.Metadata["title"])
}

func TestLoader_LoadHTML(t *testing.T) {
	ld := New()
	html := `<html><head><title>产品文档</title><style>p{color:red}</style></head>
<body><script>alert(1)</script><h1>产品介绍</h1><p>这是 &amp; 正文。</p></body></html>`
	path := writeFixture(t, "page.html", html)

	doc, err := ld.Load(path)
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "产品介绍")
	assert.Contains(t, doc.Content, "这是 & 正文。")
	assert.NotContains(t, doc.Content, "alert")
	assert.NotContains(t, doc.Content, "color:red")
	assert.Equal(t, "产品文档", doc.Metadata["title"])
}

func TestLoader_NotFound(t *testing.T) {
	ld := New()

	_, err := ld.Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoader_UnsupportedFormat(t *testing.T) {
	ld := New()
	path := writeFixture(t, "image.png", "not really an image")

	_, err := ld.Load(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoader_InvalidUTF8(t *testing.T) {
	ld := New()
	path := filepath.Join(t.TempDir(), "broken.txt")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0xfd}, 0o644))

	_, err := ld.Load(path)
	assert.Error(t, err)
}
