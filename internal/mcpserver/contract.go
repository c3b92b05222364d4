package mcpserver

// PageFormatURI is the resource URI of PageFormatContract.
const PageFormatURI = "edrak://page-format"

// PageFormatContract describes the Markdown dialect accepted by import_page
// and produced by read_page.
const PageFormatContract = `# Edrak Page Format

A page is a titled list of blocks. read_page returns it as Markdown and
import_page turns Markdown back into a new page.

## Frontmatter

` + "```" + `markdown
---
title: Human-readable title    # falls back to the first "# " heading
emoji: "🚀"                    # optional page icon
category: Projects             # Projects | Areas | Resources | Archives
tags:                          # optional YAML list
  - reading
---
` + "```" + `

An unknown category is ignored and the tool's fallback category is used.

## Blocks

One block per Markdown element, separated by blank lines:

| Markdown                      | Block type |
|-------------------------------|------------|
| plain paragraph               | text       |
| ` + "`# Heading`" + `                   | h1         |
| ` + "`## Heading`" + `                  | h2         |
| ` + "`- [ ] task`" + ` / ` + "`- [x] done`" + `    | todo       |
| ` + "`- item`" + `                      | bullet     |
| ` + "`> quote`" + `                     | quote      |
| ` + "`> [!NOTE]`" + ` then ` + "`> text`" + `     | callout    |
| fenced code with a language   | code       |
| ` + "`![caption](/attachments/x.png)`" + ` | image  |
| ` + "`---`" + `                         | divider    |

## Links and tags

- ` + "`[[Page title]]`" + ` links to the page with that title (case-insensitive).
  ` + "`[[Page title|alias]]`" + ` shows the alias.
- ` + "`#tag`" + ` inside text adds the tag to the page.

## Images

Use the add_image tool to store an image and append an image block. It
accepts http(s) URLs and base64 data URIs (png, jpg, gif, webp, svg).
`
