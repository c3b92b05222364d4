// Package parser converts pages to and from Markdown with YAML frontmatter
// and extracts [[wikilinks]] from block text.
package parser

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/starford/edrak/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
	imageRe    = regexp.MustCompile(`^!\[(.*?)\]\((.*?)\)$`)
	todoRe     = regexp.MustCompile(`^[-*] \[([ xX])\] ?(.*)$`)
	calloutRe  = regexp.MustCompile(`^> ?\[!(\w+)\] ?(.*)$`)
)

// Draft is a page decoded from Markdown, before the store assigns ids.
type Draft struct {
	Title    string
	Emoji    string
	Category models.Category
	Tags     []string
	Blocks   []models.Block
}

type frontmatter struct {
	Title    string   `yaml:"title"`
	Emoji    string   `yaml:"emoji,omitempty"`
	Category string   `yaml:"category,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	Created  string   `yaml:"created,omitempty"`
	Updated  string   `yaml:"updated,omitempty"`
}

// Parse decodes a Markdown document into a draft page. Frontmatter is
// optional; without a title field the first "# " heading is used. Invalid
// YAML is treated as body text. Inline #tags outside code blocks are merged
// after the frontmatter tags.
func Parse(data []byte) (*Draft, error) {
	data = bytes.ToValidUTF8(data, []byte(string(utf8.RuneError)))
	fm, body := splitFrontmatter(data)
	blocks := parseBlocks(body)

	d := &Draft{Blocks: blocks, Tags: []string{}}
	if fm != nil {
		d.Title = fm.Title
		d.Emoji = fm.Emoji
		d.Tags = models.MergeTags(d.Tags, trimAll(fm.Tags))
		if c := models.Category(fm.Category); c.Valid() {
			d.Category = c
		}
	}
	for _, b := range blocks {
		if b.Type != models.BlockCode {
			d.Tags = models.MergeTags(d.Tags, ExtractTags(b.Content))
		}
	}
	if d.Title == "" {
		for _, b := range blocks {
			if b.Type == models.BlockHeading1 && b.Content != "" {
				d.Title = b.Content
				break
			}
		}
	}
	return d, nil
}

// splitFrontmatter separates YAML frontmatter (between leading ---
// delimiters) from the Markdown body. If no frontmatter is found the entire
// content is body.
func splitFrontmatter(data []byte) (*frontmatter, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim+"\n")) && !bytes.HasPrefix(trimmed, []byte(delim+"\r\n")) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm frontmatter
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return &fm, body
}

func parseBlocks(body string) []models.Block {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	var out []models.Block

	for i := 0; i < len(lines); {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			i++

		case strings.HasPrefix(trimmed, "```"):
			lang := strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			var code []string
			i++
			for i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), "```") {
				code = append(code, lines[i])
				i++
			}
			i++ // closing fence
			b := models.Block{Type: models.BlockCode, Content: strings.Join(code, "\n")}
			if lang != "" {
				b.Props = &models.BlockProps{Language: models.Ptr(lang)}
			}
			out = append(out, b)

		case trimmed == "---" || trimmed == "***":
			out = append(out, models.Block{Type: models.BlockDivider})
			i++

		case strings.HasPrefix(trimmed, "## "):
			out = append(out, models.Block{Type: models.BlockHeading2, Content: strings.TrimSpace(trimmed[3:])})
			i++

		case strings.HasPrefix(trimmed, "# "):
			out = append(out, models.Block{Type: models.BlockHeading1, Content: strings.TrimSpace(trimmed[2:])})
			i++

		case todoRe.MatchString(trimmed):
			m := todoRe.FindStringSubmatch(trimmed)
			out = append(out, models.Block{
				Type:    models.BlockTodo,
				Content: m[2],
				Props:   &models.BlockProps{Checked: models.Ptr(m[1] != " ")},
			})
			i++

		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			out = append(out, models.Block{Type: models.BlockBullet, Content: trimmed[2:]})
			i++

		case calloutRe.MatchString(trimmed):
			m := calloutRe.FindStringSubmatch(trimmed)
			text := []string{}
			if m[2] != "" {
				text = append(text, m[2])
			}
			i++
			for i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), ">") {
				text = append(text, unquote(lines[i]))
				i++
			}
			out = append(out, models.Block{Type: models.BlockCallout, Content: strings.Join(text, "\n")})

		case strings.HasPrefix(trimmed, ">"):
			var text []string
			for i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), ">") {
				text = append(text, unquote(lines[i]))
				i++
			}
			out = append(out, models.Block{Type: models.BlockQuote, Content: strings.Join(text, "\n")})

		case imageRe.MatchString(trimmed):
			m := imageRe.FindStringSubmatch(trimmed)
			out = append(out, models.Block{
				Type:    models.BlockImage,
				Content: m[1],
				Props:   &models.BlockProps{URL: models.Ptr(m[2])},
			})
			i++

		default:
			para := []string{line}
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) != "" && !startsBlock(lines[i]) {
				para = append(para, lines[i])
				i++
			}
			for j, l := range para {
				para[j] = unescapeLine(l)
			}
			out = append(out, models.Block{Type: models.BlockText, Content: strings.Join(para, "\n")})
		}
	}
	return out
}

// startsBlock reports whether line opens a construct other than a paragraph.
func startsBlock(line string) bool {
	t := strings.TrimSpace(line)
	for _, prefix := range []string{"```", "# ", "## ", "- ", "* ", ">"} {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return t == "---" || t == "***" || imageRe.MatchString(t)
}

func unescapeLine(line string) string {
	if strings.TrimSpace(line) == blankLine {
		return ""
	}
	return strings.TrimPrefix(line, `\`)
}

func unquote(line string) string {
	s := strings.TrimPrefix(strings.TrimSpace(line), ">")
	return strings.TrimPrefix(s, " ")
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ExtractLinks returns deduplicated wikilink targets, normalising aliases.
func ExtractLinks(text string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		// [[Target|Alias]] → Target.
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// ExtractTags returns the inline #tags found in text, in order of first
// appearance.
func ExtractTags(text string) []string {
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return models.MergeTags(nil, out)
}
