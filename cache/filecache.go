package cache

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileCache implements Cache using filesystem storage
type FileCache struct {
	dir string
}

// NewFileCache creates a file-based cache rooted at dir, creating it if
// needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// Read implements Reader
func (fc *FileCache) Read(key string, maxAge time.Duration) (*Entry, bool) {
	data, err := os.ReadFile(filepath.Join(fc.dir, key))
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if maxAge > 0 && time.Since(entry.FetchedAt) > maxAge {
		return &entry, false // expired, caller may revalidate
	}
	return &entry, true
}

// Write implements Writer
func (fc *FileCache) Write(key string, entry *Entry) error {
	entry.FetchedAt = time.Now()
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	// write to a temp file then rename so readers never see a torn write
	path := filepath.Join(fc.dir, key)
	tmpPath := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// KeyFor implements KeyGenerator: path plus sorted params, sanitized for
// use as a filename, hashed when too long.
func (fc *FileCache) KeyFor(path string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := []string{strings.Trim(path, "/")}
	for _, k := range keys {
		parts = append(parts, k+"-"+params[k])
	}
	key := strings.Join(parts, "_")

	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "?", "_", "&", "_", "=", "_", " ", "_", ".", "_")
	key = replacer.Replace(key)

	if len(key) > 200 {
		return fmt.Sprintf("long_%x.json", md5.Sum([]byte(key)))
	}
	return key + ".json"
}
