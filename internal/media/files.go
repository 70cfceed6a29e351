package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"

	"rocket-transfer/internal/store"
)

// FileResolver resolves media descriptors against the _files table,
// downloading unseen assets into local storage.
type FileResolver struct {
	store       *store.Store
	storage     *LocalStorage
	publicHost  string
	maxFileSize int64
	client      *http.Client
}

func NewFileResolver(s *store.Store, storage *LocalStorage, publicHost string, maxFileSize int64) *FileResolver {
	return &FileResolver{
		store:       s,
		storage:     storage,
		publicHost:  publicHost,
		maxFileSize: maxFileSize,
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

// FindOrImportFile looks up a file by hash (falling back to name+url) and
// imports it from its source URL when absent. Returns (nil, nil) when the
// descriptor cannot be resolved.
func (r *FileResolver) FindOrImportFile(ctx context.Context, descriptor map[string]any, allowedTypes []string) (map[string]any, error) {
	name, _ := descriptor["name"].(string)
	hash, _ := descriptor["hash"].(string)
	url, _ := descriptor["url"].(string)
	if hash == "" && (name == "" || url == "") {
		return nil, fmt.Errorf("media descriptor needs a hash or a name and url")
	}

	existing, err := r.findExisting(ctx, hash, name, url)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if url == "" {
		return nil, nil
	}
	return r.importFile(ctx, descriptor, allowedTypes)
}

func (r *FileResolver) findExisting(ctx context.Context, hash, name, url string) (map[string]any, error) {
	pb := r.store.Dialect.NewParamBuilder()
	var sqlStr string
	if hash != "" {
		sqlStr = "SELECT id, name, hash, url, mime, caption, alternative_text FROM _files WHERE hash = " + pb.Add(hash)
	} else {
		sqlStr = "SELECT id, name, hash, url, mime, caption, alternative_text FROM _files WHERE name = " + pb.Add(name) + " AND url = " + pb.Add(url)
	}

	row, err := store.QueryRow(ctx, r.store.DB, sqlStr, pb.Params()...)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find file: %w", err)
	}
	return fileEntry(row), nil
}

func (r *FileResolver) importFile(ctx context.Context, descriptor map[string]any, allowedTypes []string) (map[string]any, error) {
	url, _ := descriptor["url"].(string)
	name, _ := descriptor["name"].(string)
	if name == "" {
		name = path.Base(url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	mime := resp.Header.Get("Content-Type")
	if !mimeAllowed(mime, allowedTypes) {
		log.Printf("WARN: rejecting %s: mime %s not allowed", url, mime)
		return nil, nil
	}

	var body io.Reader = resp.Body
	if r.maxFileSize > 0 {
		body = io.LimitReader(resp.Body, r.maxFileSize)
	}
	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	hash, _ := descriptor["hash"].(string)
	if hash == "" {
		sum := sha256.Sum256(content)
		hash = hex.EncodeToString(sum[:])
	}

	fileID := uuid.NewString()
	storagePath, err := r.storage.Save(ctx, fileID, name, content)
	if err != nil {
		return nil, fmt.Errorf("store file %s: %w", name, err)
	}

	caption, _ := descriptor["caption"].(string)
	alt, _ := descriptor["alternativeText"].(string)

	pb := r.store.Dialect.NewParamBuilder()
	sqlStr := fmt.Sprintf(
		"INSERT INTO _files (id, name, hash, url, mime, caption, alternative_text) VALUES (%s, %s, %s, %s, %s, %s, %s)",
		pb.Add(fileID), pb.Add(name), pb.Add(hash), pb.Add(storagePath), pb.Add(mime), pb.Add(caption), pb.Add(alt))
	if _, err := store.Exec(ctx, r.store.DB, sqlStr, pb.Params()...); err != nil {
		return nil, fmt.Errorf("insert file row: %w", err)
	}

	return map[string]any{
		"id":              fileID,
		"name":            name,
		"hash":            hash,
		"url":             storagePath,
		"mime":            mime,
		"caption":         caption,
		"alternativeText": alt,
	}, nil
}

func fileEntry(row map[string]any) map[string]any {
	return map[string]any{
		"id":              fmt.Sprintf("%v", row["id"]),
		"name":            row["name"],
		"hash":            row["hash"],
		"url":             row["url"],
		"mime":            row["mime"],
		"caption":         row["caption"],
		"alternativeText": row["alternative_text"],
	}
}

func mimeAllowed(mime string, allowedTypes []string) bool {
	if len(allowedTypes) == 0 {
		return true
	}
	for _, t := range allowedTypes {
		switch t {
		case "images":
			if len(mime) >= 6 && mime[:6] == "image/" {
				return true
			}
		case "videos":
			if len(mime) >= 6 && mime[:6] == "video/" {
				return true
			}
		case "audios":
			if len(mime) >= 6 && mime[:6] == "audio/" {
				return true
			}
		case "files":
			return true
		}
	}
	return false
}
