package mcpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/edrak/internal/models"
)

const maxImageSize = 10 << 20 // 10 MB

var mimeToExt = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

type imageResult struct {
	BlockID string `json:"blockId"`
	URL     string `json:"url"`
}

func (s *Server) addImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageID, err := req.RequireString("page_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := s.svc.Store().Page(pageID); !ok {
		return mcp.NewToolResultErrorf("page %q not found", pageID), nil
	}

	var (
		data []byte
		ext  string
	)
	if strings.HasPrefix(rawURL, "data:") {
		data, ext, err = decodeDataURI(rawURL)
	} else {
		data, ext, err = fetchImage(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := checkContent(data, ext); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	name := uuid.NewString() + ext
	dir := filepath.Join(s.dataDir, "attachments")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return s.toolError("add_image", err), nil
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return s.toolError("add_image", err), nil
	}

	url := "/attachments/" + name
	store := s.svc.Store()
	blockID, err := store.AddBlock(pageID, models.BlockImage, req.GetString("after", ""))
	if err != nil {
		return s.toolError("add_image", err), nil
	}
	patch := models.BlockPatch{Props: &models.BlockProps{URL: &url}}
	if caption := req.GetString("caption", ""); caption != "" {
		patch.Content = &caption
	}
	if err := store.UpdateBlock(blockID, patch); err != nil {
		return s.toolError("add_image", err), nil
	}

	out, _ := json.Marshal(imageResult{BlockID: blockID, URL: url})
	return mcp.NewToolResultText(string(out)), nil
}

// decodeDataURI parses a data:<mediatype>;base64,<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}
	ext := mimeToExt[strings.Split(mime, ";")[0]]
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported image type in data URI: %s", mime)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(encoded); err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) > maxImageSize {
		return nil, "", fmt.Errorf("image too large: %d bytes (max %d)", len(data), maxImageSize)
	}
	return data, ext, nil
}

// fetchImage downloads an image over http(s). Loopback and cloud metadata
// hosts are refused, including on redirects.
func fetchImage(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", req.URL.Scheme)
	}
	if err := checkBlockedHost(req.URL.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(r.URL.Hostname())
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, "", fmt.Errorf("image too large: exceeds %d bytes", maxImageSize)
	}

	ext := mimeToExt[strings.Split(resp.Header.Get("Content-Type"), ";")[0]]
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(req.URL.Path))
		if ext == ".jpeg" {
			ext = ".jpg"
		}
	}
	return data, ext, nil
}

// checkBlockedHost rejects loopback and cloud metadata addresses.
func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return nil //nolint:nilerr // DNS failures surface from the client
		}
		ip = ips[0]
	}
	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// checkContent verifies the bytes look like the claimed image type.
func checkContent(data []byte, ext string) error {
	if !imageExt(ext) {
		return fmt.Errorf("unsupported image type %q (allowed: png, jpg, gif, webp, svg)", ext)
	}
	if ext == ".svg" {
		head := data[:min(len(data), 1024)]
		if !bytes.Contains(head, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be an SVG image")
		}
		return nil
	}
	detected := http.DetectContentType(data)
	if got := mimeToExt[strings.Split(detected, ";")[0]]; got != ext {
		return fmt.Errorf("content does not match %s (detected: %s)", ext, detected)
	}
	return nil
}

func imageExt(ext string) bool {
	for _, e := range mimeToExt {
		if e == ext {
			return true
		}
	}
	return false
}
