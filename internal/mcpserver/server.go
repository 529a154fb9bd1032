// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Flipshelf tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/flipshelf/internal/blobstore"
	"github.com/starford/flipshelf/internal/library"
	"github.com/starford/flipshelf/internal/models"
	"github.com/starford/flipshelf/internal/upload"
)

const guideURI = "flipshelf://library-guide"

// TextSearcher finds page text across the library.
type TextSearcher interface {
	SearchText(ctx context.Context, query string, limit int) ([]blobstore.TextHit, error)
}

// Server wraps the MCP server with Flipshelf tools.
type Server struct {
	mcp     *server.MCPServer
	lib     *library.Store
	uploads *upload.Pipeline
	text    TextSearcher
}

// New creates a new MCP server with all Flipshelf tools registered. text may
// be nil, in which case search covers metadata only.
func New(lib *library.Store, uploads *upload.Pipeline, text TextSearcher) *Server {
	s := &Server{lib: lib, uploads: uploads, text: text}

	s.mcp = server.NewMCPServer(
		"Flipshelf",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_books",
		mcp.WithDescription("List the books on the shelf in display order, without page content."),
	), s.listBooks)

	s.mcp.AddTool(mcp.NewTool("search_library",
		mcp.WithDescription("Case-insensitive search over titles, authors and group names, plus full-text search of page content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchLibrary)

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read the text of one page of a book."),
		mcp.WithString("book_id", mcp.Required(), mcp.Description("Book id")),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("1-based page number")),
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("list_groups",
		mcp.WithDescription("List groups with their member book ids."),
	), s.listGroups)

	s.mcp.AddTool(mcp.NewTool("create_group",
		mcp.WithDescription("Create a group from existing books. Read the library guide first via "+
			"the get_library_guide tool or the "+guideURI+" resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Group name")),
		mcp.WithArray("book_ids", mcp.Required(), mcp.WithStringItems(), mcp.Description("Member book ids in display order")),
	), s.createGroup)

	s.mcp.AddTool(mcp.NewTool("add_to_group",
		mcp.WithDescription("Add a book to an existing group."),
		mcp.WithString("group_id", mcp.Required(), mcp.Description("Group id")),
		mcp.WithString("book_id", mcp.Required(), mcp.Description("Book id")),
	), s.addToGroup)

	s.mcp.AddTool(mcp.NewTool("list_quotes",
		mcp.WithDescription("List saved quotes, optionally for one book."),
		mcp.WithString("book_id", mcp.Description("Optional book id filter")),
	), s.listQuotes)

	s.mcp.AddTool(mcp.NewTool("add_quote",
		mcp.WithDescription("Save a quote from a book."),
		mcp.WithString("book_id", mcp.Required(), mcp.Description("Book id")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Quoted text")),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("1-based page number")),
		mcp.WithString("note", mcp.Description("Optional note")),
	), s.addQuote)

	s.mcp.AddTool(mcp.NewTool("import_book",
		mcp.WithDescription("Import a PDF, EPUB or TXT file into the library from an http(s) URL or a base64 data URI."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:...;base64,... URI")),
		mcp.WithString("filename", mcp.Description("Optional file name; its stem becomes the title when the file has none")),
	), s.importBook)

	s.mcp.AddTool(mcp.NewTool("get_library_guide",
		mcp.WithDescription("Returns the Flipshelf library guide: entities, page numbering and group rules."),
	), s.getLibraryGuide)

	// Resource: library guide.
	s.mcp.AddResource(
		mcp.NewResource(guideURI, "Library Guide",
			mcp.WithResourceDescription("How books, groups, quotes and page numbers work in Flipshelf."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type bookInfo struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Author    string        `json:"author"`
	Format    models.Format `json:"format"`
	Pages     int           `json:"pages"`
	Bookmarks []int         `json:"bookmarks"`
}

func infoOf(books []models.Book) []bookInfo {
	out := make([]bookInfo, len(books))
	for i, b := range books {
		out[i] = bookInfo{ID: b.ID, Title: b.Title, Author: b.Author, Format: b.Format, Pages: b.PageCount(), Bookmarks: b.Bookmarks}
	}
	return out
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listBooks(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(infoOf(s.lib.Books())), nil
}

func (s *Server) searchLibrary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result := struct {
		Books []bookInfo          `json:"books"`
		Pages []blobstore.TextHit `json:"pages"`
	}{Books: infoOf(s.lib.SearchBooks(query)), Pages: []blobstore.TextHit{}}

	if s.text != nil {
		hits, err := s.text.SearchText(ctx, query, 20)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if hits != nil {
			result.Pages = hits
		}
	}
	return jsonResult(result), nil
}

func (s *Server) readPage(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("book_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := req.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	b, ok := s.lib.Book(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("book not found: %s", id)), nil
	}
	if page < 1 || page > len(b.Pages) {
		return mcp.NewToolResultError(fmt.Sprintf("page %d out of range 1..%d", page, len(b.Pages))), nil
	}
	p := b.Pages[page-1]
	if p.Text == "" && p.Image != "" {
		return mcp.NewToolResultText("(image-only page)"), nil
	}
	return mcp.NewToolResultText(p.Text), nil
}

func (s *Server) listGroups(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.lib.Groups()), nil
}

func (s *Server) createGroup(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids, err := req.RequireStringSlice("book_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var missing []string
	for _, id := range ids {
		if _, ok := s.lib.Book(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return mcp.NewToolResultError("unknown book ids: " + strings.Join(missing, ", ")), nil
	}
	return jsonResult(s.lib.CreateGroup(name, ids)), nil
}

func (s *Server) addToGroup(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	groupID, err := req.RequireString("group_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bookID, err := req.RequireString("book_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := s.lib.Group(groupID); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("group not found: %s", groupID)), nil
	}
	if _, ok := s.lib.Book(bookID); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("book not found: %s", bookID)), nil
	}
	if !s.lib.AddBookToGroup(groupID, bookID) {
		return mcp.NewToolResultText("already a member"), nil
	}
	g, _ := s.lib.Group(groupID)
	return jsonResult(g), nil
}

func (s *Server) listQuotes(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if id := req.GetString("book_id", ""); id != "" {
		return jsonResult(s.lib.QuotesForBook(id)), nil
	}
	return jsonResult(s.lib.Quotes()), nil
}

func (s *Server) addQuote(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bookID, err := req.RequireString("book_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := req.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if page < 1 {
		return mcp.NewToolResultError("page must be 1 or more"), nil
	}
	q := s.lib.AddQuote(library.QuoteInput{
		BookID: bookID,
		Text:   text,
		Page:   page,
		Note:   req.GetString("note", ""),
	})
	return jsonResult(q), nil
}

func (s *Server) getLibraryGuide(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LibraryGuide), nil
}

func (s *Server) readGuideResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     LibraryGuide,
		},
	}, nil
}
