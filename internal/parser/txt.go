package parser

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/flipshelf/internal/models"
)

func (p *Parser) parseTXT(data []byte, book *models.ParsedBook) error {
	fm, body := splitFrontmatter(data)
	if t := metaString(fm, "title"); t != "" {
		book.Title = t
	}
	if a := metaString(fm, "author"); a != "" {
		book.Author = a
	}
	for k, v := range fm {
		book.Metadata[k] = v
	}
	book.Format = models.FormatTXT
	book.Pages = numberPages(Paginate(body, p.charsPerPage), 1, "")
	return nil
}

// splitFrontmatter separates a leading YAML block between --- lines from the
// text. Without a closing delimiter, or with invalid YAML, the whole input is
// body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}
