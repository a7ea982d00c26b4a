package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const pageStyle = `body {
    font-family: 'Segoe UI', 'Helvetica Neue', Helvetica, Arial, sans-serif;
    font-size: 12pt;
    line-height: 1.6;
    color: #1a1a1a;
    padding: 2em;
}
h1, h2, h3, h4 {
    font-weight: bold;
    color: #0b0c0c;
}
code, pre {
    font-family: 'Courier New', monospace;
    background-color: #f4f4f4;
    padding: 0.3em;
    border-radius: 4px;
}
ul, ol {
    margin-left: 1.2em;
}
table {
    border-collapse: collapse;
}
th, td {
    border: 1px solid #ccc;
    padding: 0.3em 0.6em;
}`

// Diagram images may point at local files, which goldmark filters unless
// unsafe rendering is on.
var mdRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// RenderHTML converts markdown to a styled standalone HTML page.
func RenderHTML(source string) (string, error) {
	var body bytes.Buffer
	if err := mdRenderer.Convert([]byte(source), &body); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}

	var page strings.Builder
	page.WriteString("<html>\n<head>\n<meta charset=\"utf-8\">\n<style>\n")
	page.WriteString(pageStyle)
	page.WriteString("\n</style>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.String(), nil
}

// LocalImageURL turns an existing local file path into a file:// URL so the
// PDF converter can load it. Other references are returned unchanged.
func LocalImageURL(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "file://") || strings.Contains(ref, "://") {
		return ref
	}
	if _, err := os.Stat(ref); err != nil {
		return ref
	}
	abs, err := filepath.Abs(ref)
	if err != nil {
		return ref
	}
	return "file://" + filepath.ToSlash(abs)
}
