// Package seed runs an addon's SQL seed scripts (install.sql, testdata.sql).
//
// Seeds are best effort: a failing statement is logged and skipped, and the
// run never fails because of one. With no database configured the runner
// does nothing.
package seed

import (
	"bufio"
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danieljhkim/addonctl/internal/fsops"
	"github.com/danieljhkim/addonctl/internal/logging"
)

// Execer is the subset of *sql.DB the runner needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Result counts the outcome of a seed run.
type Result struct {
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
}

var (
	prefixPattern = regexp.MustCompile(`(?i)__PREFIX__`)
	insertPattern = regexp.MustCompile(`(?i)^INSERT\s+INTO\s+`)
)

// Runner executes seed files against a database.
type Runner struct {
	fs     fsops.FS
	db     Execer
	driver string
	prefix string
	logger zerolog.Logger
}

// NewRunner creates a Runner. A nil db disables seeding.
func NewRunner(fs fsops.FS, db Execer, driver, prefix string) *Runner {
	return &Runner{
		fs:     fs,
		db:     db,
		driver: driver,
		prefix: prefix,
		logger: logging.GetLogger("seed"),
	}
}

// Enabled reports whether a database is configured.
func (r *Runner) Enabled() bool {
	return r.db != nil
}

// RunFile executes every statement in the file at path. A missing file is
// not an error. Only a file that exists but cannot be read is reported.
func (r *Runner) RunFile(ctx context.Context, path string) (Result, error) {
	var res Result
	if r.db == nil {
		r.logger.Debug().Str("file", path).Msg("No database configured, skipping seed")
		return res, nil
	}

	data, err := r.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return res, nil
		}
		return res, fmt.Errorf("failed to read seed file: %w", err)
	}

	for _, stmt := range SplitStatements(data) {
		stmt = r.Rewrite(stmt)
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			res.Failed++
			r.logger.Warn().Err(err).Str("file", path).Str("statement", abbreviate(stmt)).Msg("Seed statement failed")
			continue
		}
		res.Executed++
	}

	r.logger.Info().Str("file", path).Int("executed", res.Executed).Int("failed", res.Failed).Msg("Seed file applied")
	return res, nil
}

// Rewrite substitutes the table prefix and turns plain inserts into the
// driver's duplicate-tolerant form.
func (r *Runner) Rewrite(stmt string) string {
	stmt = prefixPattern.ReplaceAllLiteralString(stmt, r.prefix)

	switch r.driver {
	case "sqlite":
		return insertPattern.ReplaceAllLiteralString(stmt, "INSERT OR IGNORE INTO ")
	case "mysql", "":
		return insertPattern.ReplaceAllLiteralString(stmt, "INSERT IGNORE INTO ")
	}
	return stmt
}

// SplitStatements splits a SQL script into statements. Statements end with
// a semicolon at the end of a line; blank lines and comment lines are
// dropped.
func SplitStatements(data []byte) []string {
	var (
		statements []string
		current    strings.Builder
		inComment  bool
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if inComment {
			if strings.HasSuffix(line, "*/") {
				inComment = false
			}
			continue
		}
		if line == "" || strings.HasPrefix(line, "--") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "/*") {
			if !strings.HasSuffix(line, "*/") {
				inComment = true
			}
			continue
		}

		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)

		if strings.HasSuffix(line, ";") {
			stmt := strings.TrimSpace(strings.TrimSuffix(current.String(), ";"))
			if stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}

	if rest := strings.TrimSpace(current.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}

func abbreviate(stmt string) string {
	stmt = strings.Join(strings.Fields(stmt), " ")
	if len(stmt) > 120 {
		return stmt[:117] + "..."
	}
	return stmt
}
