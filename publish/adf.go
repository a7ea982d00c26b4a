package publish

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// ADFDocument is an Atlassian Document Format document, the rich text body
// Jira Cloud accepts in API v3.
type ADFDocument struct {
	Version int       `json:"version"`
	Type    string    `json:"type"`
	Content []ADFNode `json:"content"`
}

// ADFNode is one block or inline node.
type ADFNode struct {
	Type    string         `json:"type"`
	Content []ADFNode      `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []ADFMark      `json:"marks,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// ADFMark is formatting applied to a text node.
type ADFMark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

var adfParser = goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser()

// MarkdownToADF converts GitHub-flavored Markdown to ADF. Raw HTML is
// dropped and images become links to their source.
func MarkdownToADF(markdown string) *ADFDocument {
	src := []byte(markdown)
	root := adfParser.Parse(text.NewReader(src))
	c := adfConverter{src: src}
	content := c.blocks(root)
	if content == nil {
		content = []ADFNode{}
	}
	return &ADFDocument{Version: 1, Type: "doc", Content: content}
}

type adfConverter struct {
	src []byte
}

func (c adfConverter) blocks(parent ast.Node) []ADFNode {
	var out []ADFNode
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, c.block(n)...)
	}
	return out
}

func (c adfConverter) block(n ast.Node) []ADFNode {
	switch n := n.(type) {
	case *ast.Heading:
		return []ADFNode{{Type: "heading", Attrs: map[string]any{"level": n.Level}, Content: c.inlines(n, nil)}}
	case *ast.Paragraph, *ast.TextBlock:
		content := c.inlines(n, nil)
		if len(content) == 0 {
			return nil
		}
		return []ADFNode{{Type: "paragraph", Content: content}}
	case *ast.List:
		list := ADFNode{Type: "bulletList"}
		if n.IsOrdered() {
			list.Type = "orderedList"
			if n.Start > 1 {
				list.Attrs = map[string]any{"order": n.Start}
			}
		}
		for li := n.FirstChild(); li != nil; li = li.NextSibling() {
			item := ADFNode{Type: "listItem", Content: c.blocks(li)}
			if len(item.Content) == 0 {
				item.Content = []ADFNode{{Type: "paragraph"}}
			}
			list.Content = append(list.Content, item)
		}
		return []ADFNode{list}
	case *ast.FencedCodeBlock:
		return []ADFNode{codeBlock(c.lines(n), string(n.Language(c.src)))}
	case *ast.CodeBlock:
		return []ADFNode{codeBlock(c.lines(n), "")}
	case *ast.Blockquote:
		return []ADFNode{{Type: "blockquote", Content: c.blocks(n)}}
	case *ast.ThematicBreak:
		return []ADFNode{{Type: "rule"}}
	case *east.Table:
		return []ADFNode{c.table(n)}
	case *ast.HTMLBlock:
		return nil
	}
	if n.HasChildren() {
		return c.blocks(n)
	}
	return nil
}

func codeBlock(code, language string) ADFNode {
	node := ADFNode{Type: "codeBlock"}
	if language != "" {
		node.Attrs = map[string]any{"language": language}
	}
	code = strings.TrimRight(code, "\n")
	if code != "" {
		node.Content = []ADFNode{{Type: "text", Text: code}}
	}
	return node
}

// table maps the GFM header to tableHeader cells and body rows to
// tableCell cells.
func (c adfConverter) table(t *east.Table) ADFNode {
	table := ADFNode{Type: "table"}
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		cellType := "tableCell"
		if _, ok := row.(*east.TableHeader); ok {
			cellType = "tableHeader"
		}
		r := ADFNode{Type: "tableRow"}
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			para := ADFNode{Type: "paragraph", Content: c.inlines(cell, nil)}
			r.Content = append(r.Content, ADFNode{Type: cellType, Content: []ADFNode{para}})
		}
		table.Content = append(table.Content, r)
	}
	return table
}

func (c adfConverter) inlines(parent ast.Node, marks []ADFMark) []ADFNode {
	var out []ADFNode
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch n := n.(type) {
		case *ast.Text:
			out = appendText(out, string(n.Segment.Value(c.src)), marks)
			switch {
			case n.HardLineBreak():
				out = append(out, ADFNode{Type: "hardBreak"})
			case n.SoftLineBreak():
				out = appendText(out, " ", marks)
			}
		case *ast.String:
			out = appendText(out, string(n.Value), marks)
		case *ast.CodeSpan:
			out = appendText(out, c.plain(n), withMark(marks, ADFMark{Type: "code"}))
		case *ast.Emphasis:
			mark := "em"
			if n.Level >= 2 {
				mark = "strong"
			}
			out = append(out, c.inlines(n, withMark(marks, ADFMark{Type: mark}))...)
		case *east.Strikethrough:
			out = append(out, c.inlines(n, withMark(marks, ADFMark{Type: "strike"}))...)
		case *ast.Link:
			out = append(out, c.inlines(n, withMark(marks, linkMark(string(n.Destination))))...)
		case *ast.AutoLink:
			out = appendText(out, string(n.Label(c.src)), withMark(marks, linkMark(string(n.URL(c.src)))))
		case *ast.Image:
			dest := string(n.Destination)
			alt := c.plain(n)
			if alt == "" {
				alt = dest
			}
			out = appendText(out, alt, withMark(marks, linkMark(dest)))
		case *east.TaskCheckBox:
			box := "[ ] "
			if n.IsChecked {
				box = "[x] "
			}
			out = appendText(out, box, marks)
		case *ast.RawHTML:
		default:
			out = append(out, c.inlines(n, marks)...)
		}
	}
	return out
}

func (c adfConverter) lines(n ast.Node) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(c.src))
	}
	return sb.String()
}

// plain returns the text of every descendant, unformatted.
func (c adfConverter) plain(n ast.Node) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(c.src))
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}

func linkMark(href string) ADFMark {
	return ADFMark{Type: "link", Attrs: map[string]any{"href": href}}
}

func withMark(marks []ADFMark, m ADFMark) []ADFMark {
	out := make([]ADFMark, 0, len(marks)+1)
	out = append(out, marks...)
	return append(out, m)
}

// appendText adds a text node, merging it into the previous one when the
// marks match. ADF rejects empty text nodes.
func appendText(nodes []ADFNode, s string, marks []ADFMark) []ADFNode {
	if s == "" {
		return nodes
	}
	if n := len(nodes); n > 0 && nodes[n-1].Type == "text" && sameMarks(nodes[n-1].Marks, marks) {
		nodes[n-1].Text += s
		return nodes
	}
	var copied []ADFMark
	if len(marks) > 0 {
		copied = append(copied, marks...)
	}
	return append(nodes, ADFNode{Type: "text", Text: s, Marks: copied})
}

func sameMarks(a, b []ADFMark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type {
			return false
		}
		if a[i].Type == "link" && a[i].Attrs["href"] != b[i].Attrs["href"] {
			return false
		}
	}
	return true
}
