// Package migrations embeds the SQL schema so the migration script and the
// integration test harness apply exactly the same files.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

type Migration struct {
	Name string
	SQL  string
}

// Load returns the migrations for direction "up" (ascending) or "down" (descending).
func Load(direction string) ([]Migration, error) {
	if direction != "up" && direction != "down" {
		return nil, fmt.Errorf("unknown migration direction %q", direction)
	}

	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("read embedded migrations: %w", err)
	}

	suffix := fmt.Sprintf(".%s.sql", direction)
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), suffix) {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)
	if direction == "down" {
		for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
			names[i], names[j] = names[j], names[i]
		}
	}

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", name, err)
		}
		out = append(out, Migration{Name: name, SQL: string(content)})
	}

	return out, nil
}
