package parser

import (
	"bytes"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/edrak/internal/models"
)

// Render writes page as Markdown: YAML frontmatter followed by one Markdown
// construct per block, separated by blank lines. Blocks must be in document
// order.
func Render(page models.Page, blocks []models.Block) []byte {
	var buf bytes.Buffer

	fm := frontmatter{
		Title:    page.Title,
		Emoji:    page.Emoji,
		Category: string(page.Category),
		Tags:     page.Tags,
	}
	if page.CreatedAt > 0 {
		fm.Created = time.UnixMilli(page.CreatedAt).UTC().Format(time.RFC3339)
	}
	if page.UpdatedAt > 0 {
		fm.Updated = time.UnixMilli(page.UpdatedAt).UTC().Format(time.RFC3339)
	}
	head, err := yaml.Marshal(fm)
	if err == nil {
		buf.WriteString("---\n")
		buf.Write(head)
		buf.WriteString("---\n\n")
	}

	for i, b := range blocks {
		if i > 0 {
			buf.WriteString("\n")
		}
		renderBlock(&buf, b)
	}
	return buf.Bytes()
}

func renderBlock(buf *bytes.Buffer, b models.Block) {
	props := models.BlockProps{}
	if b.Props != nil {
		props = *b.Props
	}

	switch b.Type {
	case models.BlockHeading1:
		buf.WriteString("# " + b.Content + "\n")
	case models.BlockHeading2:
		buf.WriteString("## " + b.Content + "\n")
	case models.BlockTodo:
		mark := " "
		if props.Checked != nil && *props.Checked {
			mark = "x"
		}
		buf.WriteString("- [" + mark + "] " + b.Content + "\n")
	case models.BlockBullet:
		buf.WriteString("- " + b.Content + "\n")
	case models.BlockQuote:
		buf.WriteString(quote(b.Content))
	case models.BlockCallout:
		buf.WriteString("> [!NOTE]\n")
		if b.Content != "" {
			buf.WriteString(quote(b.Content))
		}
	case models.BlockCode:
		lang := ""
		if props.Language != nil {
			lang = *props.Language
		}
		buf.WriteString("```" + lang + "\n")
		if b.Content != "" {
			buf.WriteString(b.Content + "\n")
		}
		buf.WriteString("```\n")
	case models.BlockImage:
		url := ""
		if props.URL != nil {
			url = *props.URL
		}
		buf.WriteString("![" + b.Content + "](" + url + ")\n")
	case models.BlockDivider:
		buf.WriteString("---\n")
	default:
		for _, line := range strings.Split(b.Content, "\n") {
			buf.WriteString(escapeLine(line) + "\n")
		}
	}
}

// blankLine stands in for an empty line of paragraph text, which Markdown
// would otherwise read as a paragraph break.
const blankLine = "&nbsp;"

// escapeLine makes a line of paragraph text read back as paragraph text:
// empty lines become blankLine, and lines that would open another construct
// get a leading backslash.
func escapeLine(line string) string {
	switch t := strings.TrimSpace(line); {
	case line == "":
		return blankLine
	case t == "" || t == blankLine || strings.HasPrefix(line, `\`) || startsBlock(line):
		return `\` + line
	}
	return line
}

func quote(text string) string {
	var sb strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			sb.WriteString(">\n")
			continue
		}
		sb.WriteString("> " + line + "\n")
	}
	return sb.String()
}
