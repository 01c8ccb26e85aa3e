package migrate

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Migration files are named <UTC timestamp>_<slug>.sql, e.g.
// 20260105090200_create_orders.sql.
const versionLayout = "20060102150405"

var (
	fileNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	slugRe     = regexp.MustCompile(`[^a-z0-9]+`)
)

var requiredMarkers = [][]byte{
	[]byte("-- +goose Up"),
	[]byte("-- +goose Down"),
}

const sqlSkeleton = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert %[1]s
-- +goose StatementEnd
`

// File is a parsed migration filename.
type File struct {
	Version int64
	Slug    string
	Name    string
}

func ParseFileName(name string) (File, error) {
	m := fileNameRe.FindStringSubmatch(name)
	if m == nil {
		return File{}, fmt.Errorf("migration %q: name must look like %s_slug.sql", name, versionLayout)
	}
	version, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return File{}, fmt.Errorf("migration %q: %w", name, err)
	}
	return File{Version: version, Slug: m[2], Name: name}, nil
}

func slugify(name string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// CreateSQLMigration writes an empty goose migration stamped with the current
// UTC time and returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	return createAt(dir, name, time.Now())
}

func createAt(dir, name string, now time.Time) (string, error) {
	slug := slugify(name)
	switch {
	case dir == "":
		return "", errors.New("dir is required")
	case slug == "":
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	target := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", now.UTC().Format(versionLayout), slug))
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("migration %s already exists", target)
	}
	if err != nil {
		return "", err
	}
	_, werr := fmt.Fprintf(f, sqlSkeleton, slug)
	if err := multierr.Append(werr, f.Close()); err != nil {
		return "", fmt.Errorf("write %s: %w", target, err)
	}
	return target, nil
}

// ValidateDir checks the migrations in an on-disk directory.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateFS checks naming, version uniqueness and that every file declares
// both goose directions. All problems are reported together.
func ValidateFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	owners := make(map[int64]string, len(entries))
	var errs error
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		file, err := ParseFileName(entry.Name())
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if prev, dup := owners[file.Version]; dup {
			errs = multierr.Append(errs, fmt.Errorf("version %d used by %s and %s", file.Version, prev, file.Name))
			continue
		}
		owners[file.Version] = file.Name

		body, err := fs.ReadFile(fsys, path.Join(dir, file.Name))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, marker := range requiredMarkers {
			if !bytes.Contains(body, marker) {
				errs = multierr.Append(errs, fmt.Errorf("migration %s is missing %q", file.Name, marker))
			}
		}
	}
	if errs == nil && len(owners) == 0 {
		return fmt.Errorf("no migrations found in %s", dir)
	}
	return errs
}
