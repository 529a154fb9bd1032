package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/flipshelf/internal/upload"
)

const (
	maxImportSize   = 50 << 20
	maxRedirects    = 5
	downloadTimeout = 60 * time.Second
)

var (
	extByMIME = map[string]string{
		upload.MIMEPDF:  ".pdf",
		upload.MIMEEPUB: ".epub",
		upload.MIMETXT:  ".txt",
	}

	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._ -]`)

	blockedHostnames = map[string]bool{
		"localhost":                true,
		"metadata.google.internal": true,
	}

	downloadClient = &http.Client{
		Timeout: downloadTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return guardHost(req.Context(), req.URL.Hostname())
		},
	}
)

// fetched is a document pulled from a URL or data URI before it enters the
// upload pipeline.
type fetched struct {
	data        []byte
	contentType string
	name        string // from the URL path, may be empty
}

type importResult struct {
	upload.Summary
	Message string   `json:"message,omitempty"`
	BookIDs []string `json:"bookIds"`
}

// importBook downloads or decodes one document and runs it through the
// upload pipeline, so dedupe and parsing match the HTTP upload path.
func (s *Server) importBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var doc fetched
	if strings.HasPrefix(rawURL, "data:") {
		doc, err = parseDataURI(rawURL)
	} else {
		doc, err = download(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(doc.data) > maxImportSize {
		return mcp.NewToolResultError(fmt.Sprintf("file too large: %d bytes (max %d)", len(doc.data), maxImportSize)), nil
	}

	f := upload.File{MIME: doc.contentType, Data: doc.data}
	f.MIME = upload.DetectMIME(f)
	if !upload.Supported(f.MIME) {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported content type: %s (allowed: pdf, epub, txt)", f.MIME)), nil
	}
	f.Name = importName(req.GetString("filename", ""), doc.name, extByMIME[f.MIME])

	sum, err := s.uploads.Process(ctx, []upload.File{f})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ids := make([]string, 0, len(sum.Added))
	for _, b := range sum.Added {
		ids = append(ids, b.ID)
	}
	out, _ := json.Marshal(importResult{Summary: sum, Message: sum.Message(), BookIDs: ids})
	return mcp.NewToolResultText(string(out)), nil
}

// parseDataURI decodes data:[<mediatype>][;param]*;base64,<payload>.
func parseDataURI(uri string) (fetched, error) {
	header, body, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return fetched{}, errors.New("data URI has no comma before the payload")
	}
	params := strings.Split(header, ";")
	if params[len(params)-1] != "base64" {
		return fetched{}, errors.New("data URI must be base64 encoded")
	}
	data, err := decodeBase64(body)
	if err != nil {
		return fetched{}, err
	}
	return fetched{data: data, contentType: params[0]}, nil
}

// decodeBase64 accepts padded and unpadded input in either alphabet.
func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding,
	} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, errors.New("data URI payload is not valid base64")
}

// download GETs an http(s) URL, refusing local and metadata hosts on the
// first hop and on every redirect.
func download(ctx context.Context, rawURL string) (fetched, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fetched{}, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fetched{}, fmt.Errorf("unsupported scheme %q: use http, https or a data URI", u.Scheme)
	}
	if err := guardHost(ctx, u.Hostname()); err != nil {
		return fetched{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fetched{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := downloadClient.Do(req)
	if err != nil {
		return fetched{}, fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fetched{}, fmt.Errorf("download %s: %s", u.Redacted(), resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImportSize+1))
	if err != nil {
		return fetched{}, fmt.Errorf("download body: %w", err)
	}
	if len(data) > maxImportSize {
		return fetched{}, fmt.Errorf("file too large: more than %d bytes", maxImportSize)
	}
	return fetched{
		data:        data,
		contentType: resp.Header.Get("Content-Type"),
		name:        nameFromPath(resp.Request.URL.Path),
	}, nil
}

// guardHost rejects hosts that resolve to loopback, link-local (cloud
// metadata lives there) or unspecified addresses.
func guardHost(ctx context.Context, host string) error {
	if blockedHostnames[strings.ToLower(host)] {
		return fmt.Errorf("blocked host %s", host)
	}
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			// The request reports the DNS failure itself.
			return nil
		}
		for _, a := range addrs {
			ips = append(ips, a.IP)
		}
	}
	for _, ip := range ips {
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("blocked host %s: %s is not reachable from imports", host, ip)
		}
	}
	return nil
}

// nameFromPath returns the unescaped last URL segment when it looks like a
// file name.
func nameFromPath(p string) string {
	base, err := url.PathUnescape(path.Base(p))
	if err != nil || !strings.Contains(base, ".") || base == "." || base == ".." {
		return ""
	}
	return base
}

// importName picks the stored name: the caller's, then the URL's, then a
// random one. Names without a supported extension get ext.
func importName(given, fromURL, ext string) string {
	name := given
	if name == "" {
		name = fromURL
	}
	if name != "" {
		name = unsafeNameChars.ReplaceAllString(filepath.Base(name), "_")
	}
	if strings.Trim(name, ". ") == "" {
		return uuid.NewString() + ext
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".epub", ".txt":
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}
