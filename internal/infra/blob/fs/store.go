// Package fs implements the blob store on a local directory.
//
// Each key maps to a file under the root. Content type, user metadata and the
// sha256 ETag live in a JSON sidecar named after the file plus ".meta". Files
// dropped under the root by other tools are served without a sidecar.
package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"worldtrip/internal/blob/core"
)

const (
	sidecarSuffix = ".meta"
	tempPrefix    = ".tmp-"
)

// Store implements core.Store on the filesystem.
type Store struct {
	root string
}

// New returns a store rooted at root, creating the directory when missing.
// An empty root means ./data.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./data"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("fs blob: create root: %w", err)
	}
	return &Store{root: root}, nil
}

// Driver reports core.DriverFilesystem.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root returns the directory backing the store.
func (s *Store) Root() string { return s.root }

// location is where a key lives on disk.
type location struct {
	key  string
	data string
	meta string
}

func (s *Store) locate(key string) (location, error) {
	switch {
	case strings.TrimSpace(key) == "":
		return location{}, errors.New("fs blob: empty key")
	case strings.HasPrefix(key, "/"):
		return location{}, fmt.Errorf("fs blob: absolute key %q", key)
	case strings.Contains(key, ".."):
		return location{}, fmt.Errorf("fs blob: key %q escapes root", key)
	case strings.HasSuffix(key, sidecarSuffix):
		return location{}, fmt.Errorf("fs blob: key %q uses reserved suffix", key)
	}
	data := filepath.Join(s.root, filepath.FromSlash(filepath.ToSlash(filepath.Clean(key))))
	return location{key: key, data: data, meta: data + sidecarSuffix}, nil
}

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (sc sidecar) info(key string) core.Info {
	return core.Info{
		Key:          key,
		Size:         sc.Size,
		ContentType:  sc.ContentType,
		ETag:         sc.ETag,
		Metadata:     maps.Clone(sc.Metadata),
		LastModified: sc.UpdatedAt,
	}
}

// Put replaces the blob at key. The body is written to a temp file in the
// target directory and renamed into place.
func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	loc, err := s.locate(key)
	if err != nil {
		return core.Info{}, err
	}
	size, sum, err := writeAtomic(loc.data, r)
	if err != nil {
		return core.Info{}, fmt.Errorf("fs blob %s: %w", key, err)
	}
	sc := sidecar{
		ContentType: opts.ContentType,
		Metadata:    maps.Clone(opts.Metadata),
		ETag:        sum,
		Size:        size,
		UpdatedAt:   time.Now().UTC(),
	}
	raw, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return core.Info{}, err
	}
	if err := os.WriteFile(loc.meta, raw, 0o600); err != nil {
		return core.Info{}, fmt.Errorf("fs blob %s: write sidecar: %w", key, err)
	}
	return sc.info(key), nil
}

func writeAtomic(path string, r io.Reader) (int64, string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, "", err
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return 0, "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, "", err
	}
	return size, hex.EncodeToString(hash.Sum(nil)), nil
}

// Get opens the blob at key. The caller closes the returned reader.
func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	loc, err := s.locate(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	f, err := os.Open(loc.data) // #nosec G304 -- key validated by locate
	if err != nil {
		return core.Info{}, nil, notFound(key, err)
	}
	info, err := stat(loc)
	if err != nil {
		_ = f.Close()
		return core.Info{}, nil, err
	}
	return info, f, nil
}

// Head describes the blob at key without opening it.
func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	loc, err := s.locate(key)
	if err != nil {
		return core.Info{}, err
	}
	return stat(loc)
}

// stat prefers the sidecar and falls back to the file itself.
func stat(loc location) (core.Info, error) {
	raw, err := os.ReadFile(loc.meta) // #nosec G304 -- derived from a validated key
	if err == nil {
		var sc sidecar
		if err := json.Unmarshal(raw, &sc); err != nil {
			return core.Info{}, fmt.Errorf("fs blob %s: decode sidecar: %w", loc.key, err)
		}
		return sc.info(loc.key), nil
	}
	if !errors.Is(err, iofs.ErrNotExist) {
		return core.Info{}, err
	}
	fi, err := os.Stat(loc.data)
	if err != nil {
		return core.Info{}, notFound(loc.key, err)
	}
	return core.Info{Key: loc.key, Size: fi.Size(), LastModified: fi.ModTime().UTC()}, nil
}

func notFound(key string, err error) error {
	if errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("blob %s: %w", key, core.ErrNotFound)
	}
	return err
}

// Delete removes the blob and its sidecar. It reports false for a missing key.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	loc, err := s.locate(key)
	if err != nil {
		return false, err
	}
	err = os.Remove(loc.data)
	if errors.Is(err, iofs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_ = os.Remove(loc.meta)
	return true, nil
}

// List walks the root and returns every blob whose key starts with prefix.
func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	var out []core.Info
	walk := func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() || strings.HasSuffix(name, sidecarSuffix) || strings.HasPrefix(name, tempPrefix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := stat(location{key: key, data: path, meta: path + sidecarSuffix})
		if err != nil {
			return err
		}
		out = append(out, info)
		return nil
	}
	if err := filepath.WalkDir(s.root, walk); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
