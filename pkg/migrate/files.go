package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"
)

// DefaultRoot holds one sub-directory per dialect in Dialects.
const DefaultRoot = "pkg/migrate/migrations"

// Dialects are the migration directories that must carry identical versions.
var Dialects = []string{"postgres", "sqlite"}

var (
	slugRe     = regexp.MustCompile(`[^a-z0-9]+`)
	fileNameRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
)

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s (%[2]s)
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s (%[2]s)
-- +goose StatementEnd
`

// Create writes an empty goose migration with the same version into every
// dialect directory under root and returns the created paths.
func Create(root, name string, now time.Time) ([]string, error) {
	if root == "" {
		return nil, errors.New("root is required")
	}
	slug := slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("name %q has no usable characters", name)
	}

	file := fmt.Sprintf("%s_%s.sql", now.UTC().Format("20060102150405"), slug)
	paths := make([]string, 0, len(Dialects))
	for _, dialect := range Dialects {
		dir := filepath.Join(root, dialect)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %q: %w", dir, err)
		}
		full := filepath.Join(dir, file)
		if _, err := os.Stat(full); err == nil {
			return nil, fmt.Errorf("migration already exists: %s", full)
		}
		body := fmt.Sprintf(sqlTemplate, slug, dialect)
		if err := os.WriteFile(full, []byte(body), 0o644); err != nil {
			return nil, fmt.Errorf("write %q: %w", full, err)
		}
		paths = append(paths, full)
	}
	return paths, nil
}

// Validate checks file names and goose markers in every dialect directory
// under root and fails when the directories disagree on versions.
func Validate(root string) error {
	if root == "" {
		return errors.New("root is required")
	}
	var reference []string
	for i, dialect := range Dialects {
		versions, err := validateDir(filepath.Join(root, dialect))
		if err != nil {
			return err
		}
		if i == 0 {
			reference = versions
			continue
		}
		if !slices.Equal(reference, versions) {
			return fmt.Errorf("%s migrations %v do not match %s migrations %v", dialect, versions, Dialects[0], reference)
		}
	}
	return nil
}

func validateDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	versions := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := fileNameRe.FindStringSubmatch(name)
		if m == nil {
			return nil, fmt.Errorf("%s: invalid migration filename %q (want YYYYMMDDHHMMSS_name.sql)", dir, name)
		}
		if slices.Contains(versions, m[1]) {
			return nil, fmt.Errorf("%s: duplicate migration version %s", dir, m[1])
		}
		versions = append(versions, m[1])

		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", name, err)
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(b), marker) {
				return nil, fmt.Errorf("%s: migration %q missing %q", dir, name, marker)
			}
		}
	}
	slices.Sort(versions)
	return versions, nil
}

func slugify(name string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
}
