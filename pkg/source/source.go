// Package source resolves a source string into report files: a local file, a
// directory, a glob pattern or a gs://bucket/prefix location.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/charmbracelet/log"
	"google.golang.org/api/iterator"
)

const gcsScheme = "gs://"

var ErrNoFiles = errors.New("source matched no files")

// extensions lists the file types picked up from directories, globs and
// buckets. A file named explicitly is always read.
var extensions = []string{".html", ".htm", ".csv", ".xlsx", ".xls"}

type File struct {
	Name string
	Data []byte
}

// Supported reports whether name has an extension the parser can read.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

type Loader struct {
	logger *log.Logger
}

func NewLoader(logger *log.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load reads every file location points at. Local files come back sorted by
// name.
func (l *Loader) Load(ctx context.Context, location string) ([]File, error) {
	var (
		files []File
		err   error
	)
	switch {
	case strings.HasPrefix(location, gcsScheme):
		files, err = l.loadBucket(ctx, strings.TrimPrefix(location, gcsScheme))
	case strings.ContainsAny(location, "*?["):
		files, err = l.loadGlob(location)
	default:
		files, err = l.loadPath(location)
	}
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, location)
	}
	l.logger.Debug("loaded source", "source", location, "files", len(files))
	return files, nil
}

func (l *Loader) loadPath(p string) ([]File, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("error reading source: %w", err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("error reading file: %w", err)
		}
		return []File{{Name: p, Data: data}}, nil
	}

	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, fmt.Errorf("error reading directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !Supported(entry.Name()) {
			continue
		}
		names = append(names, filepath.Join(p, entry.Name()))
	}
	return l.readAll(names)
}

func (l *Loader) loadGlob(pattern string) ([]File, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	var names []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() || !Supported(m) {
			continue
		}
		names = append(names, m)
	}
	return l.readAll(names)
}

func (l *Loader) readAll(names []string) ([]File, error) {
	sort.Strings(names)
	files := make([]File, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("error reading file: %w", err)
		}
		files = append(files, File{Name: name, Data: data})
	}
	return files, nil
}

// splitBucket turns "bucket/some/prefix" into its bucket and object prefix.
func splitBucket(location string) (string, string) {
	bucket, prefix, _ := strings.Cut(location, "/")
	return bucket, prefix
}

func (l *Loader) loadBucket(ctx context.Context, location string) ([]File, error) {
	bucketName, prefix := splitBucket(location)
	if bucketName == "" {
		return nil, fmt.Errorf("missing bucket in %s%s", gcsScheme, location)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	bkt := client.Bucket(bucketName)
	it := bkt.Objects(ctx, &storage.Query{Prefix: prefix})
	var files []File
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list GCS objects: %w", err)
		}
		if strings.HasSuffix(attrs.Name, "/") || !Supported(attrs.Name) {
			continue
		}

		data, err := download(ctx, bkt.Object(attrs.Name))
		if err != nil {
			return nil, err
		}
		l.logger.Debug("downloaded object", "bucket", bucketName, "object", attrs.Name, "bytes", len(data))
		files = append(files, File{Name: path.Base(attrs.Name), Data: data})
	}
	return files, nil
}

func download(ctx context.Context, obj *storage.ObjectHandle) ([]byte, error) {
	r, err := obj.NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}
