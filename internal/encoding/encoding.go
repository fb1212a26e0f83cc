package encoding

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is a fenced code block found in a markdown document.
type CodeBlock struct {
	Language string
	Content  string
}

// options represents configuration options for plain text decoding
type options struct {
	skipCode bool
	maxLen   int
}

// Option is a function that configures options
type Option func(*options)

// WithoutCode drops fenced and indented code blocks from the decoded text.
func WithoutCode() Option {
	return func(o *options) { o.skipCode = true }
}

// WithMaxLen truncates the decoded text to n runes.
func WithMaxLen(n int) Option {
	return func(o *options) { o.maxLen = n }
}

func parse(in []byte) ast.Node {
	return goldmark.New().Parser().Parse(text.NewReader(in))
}

// FencedCodeBlocks returns every fenced code block of the document in order.
func FencedCodeBlocks(in []byte) []CodeBlock {
	var blocks []CodeBlock
	_ = ast.Walk(parse(in), func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n, ok := node.(*ast.FencedCodeBlock); ok {
			blocks = append(blocks, CodeBlock{
				Language: strings.ToLower(string(n.Language(in))),
				Content:  decodeLines(n, in),
			})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return blocks
}

// PlainText renders markdown as whitespace-normalized plain text.
func PlainText(in []byte, opts ...Option) string {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	var b strings.Builder
	_ = ast.Walk(parse(in), func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := node.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if o.skipCode {
				return ast.WalkSkipChildren, nil
			}
			if entering {
				b.WriteString(decodeLines(n, in))
				b.WriteByte(' ')
			}
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if entering {
				b.Write(n.Segment.Value(in))
				if n.SoftLineBreak() || n.HardLineBreak() {
					b.WriteByte(' ')
				}
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem:
			if !entering {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	out := strings.Join(strings.Fields(b.String()), " ")
	if o.maxLen > 0 {
		if r := []rune(out); len(r) > o.maxLen {
			out = string(r[:o.maxLen])
		}
	}
	return out
}

// DecodeTextFromNode extracts text content from an AST node
func DecodeTextFromNode(node ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := n.(*ast.Text); ok {
				b.Write(t.Segment.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func decodeLines(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}
