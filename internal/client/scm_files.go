package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/wenwu/saas-platform/trialapp-service/internal/models"
)

const directoryMime = "inode/directory"

// FilesAPI browses the virtual file system of a site
type FilesAPI interface {
	List(ctx context.Context, path string) ([]models.FileEntry, error)
	Read(ctx context.Context, path string) ([]byte, error)
}

// FilesClient calls /api/vfs on the management endpoint
type FilesClient struct {
	scmClient
}

// NewFilesClient creates a virtual file system client bound to baseURL
func NewFilesClient(creds models.Credentials, baseURL string, httpClient *http.Client) *FilesClient {
	return &FilesClient{scmClient: newSCMClient("FilesClient", creds, baseURL, httpClient)}
}

// List returns the entries of a directory. Paths are relative to the root of
// the virtual file system, e.g. site/wwwroot or LogFiles.
func (c *FilesClient) List(ctx context.Context, path string) ([]models.FileEntry, error) {
	var entries []models.FileEntry
	if err := c.do(ctx, http.MethodGet, vfsPath(path, true), nil, &entries); err != nil {
		return nil, fmt.Errorf("list files %q: %w", path, err)
	}
	for i := range entries {
		entries[i].IsFolder = entries[i].Mime == directoryMime
	}
	return entries, nil
}

// Read returns the content of a file
func (c *FilesClient) Read(ctx context.Context, path string) ([]byte, error) {
	if strings.Trim(path, "/") == "" {
		return nil, fmt.Errorf("read file: %w", models.ErrInvalidPath)
	}
	content, err := c.raw(ctx, vfsPath(path, false))
	if err != nil {
		return nil, fmt.Errorf("read file %q: %w", path, err)
	}
	return content, nil
}

// vfsPath builds the /api/vfs path; directories need a trailing slash.
func vfsPath(path string, dir bool) string {
	p := strings.Trim(path, "/")
	if dir && p != "" {
		p += "/"
	}
	return "/api/vfs/" + p
}
