// Package storage keeps uploaded avatar images, either in a local directory
// served by the app or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store saves named objects and hands back the URL they are served from.
type Store interface {
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	// Delete removes the object behind url. URLs the store did not issue are ignored.
	Delete(ctx context.Context, url string) error
}

var errInvalidName = errors.New("invalid object name")

// LocalStore writes objects to a directory served under urlPrefix.
type LocalStore struct {
	dir       string
	urlPrefix string
}

func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create avatar dir: %w", err)
	}
	return &LocalStore{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, name)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write avatar: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("move avatar: %w", err)
	}
	return s.urlPrefix + "/" + name, nil
}

func (s *LocalStore) Delete(ctx context.Context, url string) error {
	name, ok := nameFromURL(s.urlPrefix, url)
	if !ok {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func nameFromURL(prefix, url string) (string, bool) {
	name, found := strings.CutPrefix(url, prefix+"/")
	if !found || validName(name) != nil {
		return "", false
	}
	return name, true
}

func validName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return errInvalidName
	}
	return nil
}
