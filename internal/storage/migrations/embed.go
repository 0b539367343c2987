// Package migrations embeds and applies the SQL schema of every backend
// that is not managed by GORM auto-migration.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// PostgresFS embeds the PostgreSQL schema: lookup tables, swaps, derived
// tables and the vw_swap_obligations view.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse risk_history schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// script is one embedded migration file.
type script struct {
	name string
	body string
}

// scripts returns the non-empty .sql files of dir in lexical order.
func scripts(fsys fs.FS, dir string) ([]script, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	out := make([]script, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, script{name: name, body: string(data)})
	}
	return out, nil
}
