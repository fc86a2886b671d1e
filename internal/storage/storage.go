package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"docsum/internal/domain"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	_ "github.com/viant/afsc/gs" // Registers gs:// storage.
	_ "github.com/viant/afsc/s3" // Registers s3:// storage.
)

var ErrInvalidName = errors.New("invalid document name")

// Store keeps uploaded documents under a base URL. Any afs scheme works:
// local paths, file://, mem://, gs://, s3://.
type Store struct {
	fs      afs.Service
	baseURL string
}

func New(baseURL string) (*Store, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("storage URL is empty")
	}

	if url.Scheme(baseURL, "") == "" {
		abs, err := filepath.Abs(baseURL)
		if err != nil {
			return nil, fmt.Errorf("resolve storage path (path = %s): %w", baseURL, err)
		}
		baseURL = url.ToFileURL(abs)
	}

	return &Store{fs: afs.New(), baseURL: baseURL}, nil
}

func (s *Store) BaseURL() string {
	return s.baseURL
}

// CleanName reduces name to a bare file name so that stored documents can not
// escape the base URL.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)

	if name == "" || name == "." || name == ".." || name == "/" {
		return "", ErrInvalidName
	}

	return name, nil
}

func (s *Store) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return "", err
	}

	if err = s.fs.Upload(ctx, s.url(cleaned), file.DefaultFileOsMode, r); err != nil {
		return "", fmt.Errorf("upload document (name = %s): %w", cleaned, err)
	}

	return cleaned, nil
}

func (s *Store) SaveBytes(ctx context.Context, name string, data []byte) (string, error) {
	return s.Save(ctx, name, bytes.NewReader(data))
}

// Exists reports false for names that can not be stored.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return false, nil
	}

	exists, err := s.fs.Exists(ctx, s.url(cleaned))
	if err != nil {
		return false, fmt.Errorf("check document (name = %s): %w", cleaned, err)
	}

	return exists, nil
}

// Load returns the stored bytes of name, or a DocumentNotFound error.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	cleaned, err := CleanName(name)
	if err != nil {
		return nil, domain.DocumentNotFound(name, err)
	}

	exists, err := s.fs.Exists(ctx, s.url(cleaned))
	if err != nil {
		return nil, fmt.Errorf("check document (name = %s): %w", cleaned, err)
	}
	if !exists {
		return nil, domain.DocumentNotFound(cleaned, nil)
	}

	data, err := s.fs.DownloadWithURL(ctx, s.url(cleaned))
	if err != nil {
		return nil, fmt.Errorf("download document (name = %s): %w", cleaned, err)
	}

	return data, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	cleaned, err := CleanName(name)
	if err != nil {
		return err
	}

	if err = s.fs.Delete(ctx, s.url(cleaned)); err != nil {
		return fmt.Errorf("delete document (name = %s): %w", cleaned, err)
	}

	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.StoredDocument, error) {
	exists, err := s.fs.Exists(ctx, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("check storage (URL = %s): %w", s.baseURL, err)
	}
	if !exists {
		return nil, nil
	}

	objects, err := s.fs.List(ctx, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("list storage (URL = %s): %w", s.baseURL, err)
	}

	docs := make([]domain.StoredDocument, 0, len(objects))
	for _, object := range objects {
		if object.IsDir() {
			continue
		}

		docs = append(docs, domain.StoredDocument{
			Name:     object.Name(),
			Size:     object.Size(),
			Modified: object.ModTime(),
		})
	}

	return docs, nil
}

func (s *Store) url(name string) string {
	return url.Join(s.baseURL, name)
}
