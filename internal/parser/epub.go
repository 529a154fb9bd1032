package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/starford/flipshelf/internal/models"
)

type epubContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type epubPackage struct {
	Metadata struct {
		Title     []string `xml:"title"`
		Creator   []string `xml:"creator"`
		Language  []string `xml:"language"`
		Publisher []string `xml:"publisher"`
		Date      []string `xml:"date"`
		Meta      []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest []struct {
		ID         string `xml:"id,attr"`
		Href       string `xml:"href,attr"`
		MediaType  string `xml:"media-type,attr"`
		Properties string `xml:"properties,attr"`
	} `xml:"manifest>item"`
	Spine []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

func (p *Parser) parseEPUB(ctx context.Context, data []byte, book *models.ParsedBook) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open container: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var container epubContainer
	if err := readXML(files, "META-INF/container.xml", &container); err != nil {
		return err
	}
	if len(container.Rootfiles) == 0 {
		return errors.New("container.xml lists no rootfile")
	}
	opfPath := container.Rootfiles[0].FullPath
	var pkg epubPackage
	if err := readXML(files, opfPath, &pkg); err != nil {
		return err
	}
	base := path.Dir(opfPath)

	md := pkg.Metadata
	if len(md.Title) > 0 && strings.TrimSpace(md.Title[0]) != "" {
		book.Title = strings.TrimSpace(md.Title[0])
	}
	if len(md.Creator) > 0 && strings.TrimSpace(md.Creator[0]) != "" {
		book.Author = strings.TrimSpace(md.Creator[0])
	}
	book.Metadata["title"] = book.Title
	book.Metadata["creator"] = book.Author
	for key, vals := range map[string][]string{"language": md.Language, "publisher": md.Publisher, "pubdate": md.Date} {
		if len(vals) > 0 {
			book.Metadata[key] = strings.TrimSpace(vals[0])
		}
	}

	hrefs := make(map[string]string, len(pkg.Manifest))
	coverID := ""
	for _, m := range md.Meta {
		if m.Name == "cover" {
			coverID = m.Content
		}
	}
	for _, item := range pkg.Manifest {
		hrefs[item.ID] = item.Href
		if strings.Contains(item.Properties, "cover-image") || (coverID == "" && item.ID == "cover-image") {
			coverID = item.ID
		}
	}
	for _, item := range pkg.Manifest {
		if item.ID == coverID && strings.HasPrefix(item.MediaType, "image/") {
			if raw, err := readFile(files, resolve(base, item.Href)); err == nil {
				cover := "data:" + item.MediaType + ";base64," + base64.StdEncoding.EncodeToString(raw)
				book.CoverImage = &cover
			}
		}
	}

	book.Format = models.FormatEPUB
	for _, ref := range pkg.Spine {
		if err := ctx.Err(); err != nil {
			return err
		}
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		raw, err := readFile(files, resolve(base, href))
		if err != nil {
			return err
		}
		text, err := htmlText(raw)
		if err != nil {
			return fmt.Errorf("chapter %s: %w", href, err)
		}
		book.Pages = append(book.Pages, numberPages(Paginate(text, p.charsPerPage), len(book.Pages)+1, href)...)
	}
	if len(book.Pages) == 0 {
		return errors.New("epub has no readable spine items")
	}
	return nil
}

func resolve(base, href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if base == "." {
		return path.Clean(href)
	}
	return path.Join(base, href)
}

func readFile(files map[string]*zip.File, name string) ([]byte, error) {
	f, ok := files[name]
	if !ok {
		return nil, fmt.Errorf("missing %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func readXML(files map[string]*zip.File, name string, v any) error {
	raw, err := readFile(files, name)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

var spaceRun = regexp.MustCompile(`\s+`)

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true, "article": true, "pre": true,
}

// htmlText returns the visible text of an XHTML chapter with block elements
// separated by blank lines, so Paginate can split on them.
func htmlText(raw []byte) (string, error) {
	z := html.NewTokenizer(bytes.NewReader(raw))
	var sb strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return strings.TrimSpace(collapseBlank(sb.String())), nil
			}
			return "", z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" || tag == "head" {
				skip++
			}
			if blockTags[tag] {
				sb.WriteString("\n\n")
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style" || tag == "head") && skip > 0 {
				skip--
			}
			if blockTags[tag] {
				sb.WriteString("\n\n")
			}
		case html.TextToken:
			if skip == 0 {
				sb.WriteString(spaceRun.ReplaceAllString(string(z.Text()), " "))
			}
		}
	}
}

func collapseBlank(s string) string {
	s = paragraphBreak.ReplaceAllString(s, "\n\n")
	lines := strings.Split(s, "\n\n")
	kept := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n\n")
}
