// Package attachments caches attachment blobs of retained messages on disk
// so deleted images stay viewable after the CDN link dies. Downloads are
// rate limited; failures are logged and never interrupt ingestion.
package attachments

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"msgvault/pkg/logger"
	"msgvault/pkg/models"
	"msgvault/pkg/store"
)

// Cache downloads and deletes attachment blobs keyed by attachment id.
type Cache struct {
	dir     string
	st      *store.Store
	client  *fasthttp.Client
	limiter *rate.Limiter
	enabled bool
}

// New returns a disk cache rooted at dir. When enabled is false, Cache and
// Delete become no-ops so callers need no conditional wiring.
func New(dir string, st *store.Store, enabled bool) *Cache {
	return &Cache{
		dir: dir,
		st:  st,
		client: &fasthttp.Client{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		// a burst of a few images is fine; bulk deletions must not stampede
		limiter: rate.NewLimiter(rate.Limit(4), 8),
		enabled: enabled,
	}
}

// Enabled reports whether blob caching is active.
func (c *Cache) Enabled() bool { return c != nil && c.enabled }

// Cache fetches every attachment of msg into the cache directory and
// records its metadata in the store.
func (c *Cache) Cache(msg *models.Message) {
	if !c.Enabled() || msg == nil || len(msg.Attachments) == 0 {
		return
	}
	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		logger.Error("attachment_dir_create_failed", "dir", c.dir, "error", err)
		return
	}
	for _, att := range msg.Attachments {
		if att.ID == "" {
			continue
		}
		if _, err := c.st.GetAttachmentMeta(att.ID); err == nil {
			continue // already cached
		}
		url := att.ProxyURL
		if url == "" {
			url = att.URL
		}
		if url == "" {
			continue
		}
		path := filepath.Join(c.dir, att.ID+filepath.Ext(att.Filename))
		if err := c.download(url, path); err != nil {
			logger.Warn("attachment_fetch_failed", "attachment", att.ID, "url", url, "error", err)
			continue
		}
		meta := &store.AttachmentMeta{Attachment: att, MessageID: msg.ID, Path: path}
		if err := c.st.SaveAttachmentMeta(meta); err != nil {
			logger.Error("attachment_meta_save_failed", "attachment", att.ID, "error", err)
			_ = os.Remove(path)
			continue
		}
		logger.Debug("attachment_cached", "attachment", att.ID, "path", path)
	}
}

// Delete removes cached blobs and metadata for every attachment of msg.
func (c *Cache) Delete(msg *models.Message) {
	if c == nil || msg == nil {
		return
	}
	for _, att := range msg.Attachments {
		meta, err := c.st.GetAttachmentMeta(att.ID)
		if err != nil {
			continue
		}
		if meta.Path != "" {
			if err := os.Remove(meta.Path); err != nil && !os.IsNotExist(err) {
				logger.Warn("attachment_blob_remove_failed", "attachment", att.ID, "error", err)
			}
		}
		if err := c.st.DeleteAttachmentMeta(att.ID); err != nil {
			logger.Error("attachment_meta_delete_failed", "attachment", att.ID, "error", err)
		}
	}
}

func (c *Cache) download(url, path string) error {
	if err := c.limiter.Wait(context.Background()); err != nil {
		return err
	}
	code, body, err := c.client.Get(nil, url)
	if err != nil {
		return err
	}
	if code != fasthttp.StatusOK {
		return fmt.Errorf("unexpected status %d", code)
	}
	return os.WriteFile(path, body, 0o600)
}
