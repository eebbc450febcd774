package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecheck/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "sitecheck.db"

// timestampLayout stores UTC times with fixed-width nanoseconds so they
// sort lexicographically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryDB provides SQLite-based storage for run reports.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HistoryDB in the specified directory.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file. Concurrent processes wait
	// on the lock instead of failing with SQLITE_BUSY.
	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := dbPath + "?mode=" + mode + "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	-- Runs store complete reports as JSON
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		engine TEXT,
		locale TEXT,
		timestamp DATETIME NOT NULL,
		passed INTEGER NOT NULL,
		total_violations INTEGER NOT NULL,
		violation_counts TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_site ON runs(site);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);

	-- Page results hold one row per visited page of a run
	CREATE TABLE IF NOT EXISTS page_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		page TEXT NOT NULL,
		module INTEGER NOT NULL,
		status TEXT NOT NULL,
		violations INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		UNIQUE(run_id, page)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_page ON page_results(page);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a finished report and returns the ID of the new run.
func (hdb *HistoryDB) SaveRun(ctx context.Context, report *model.Report) (int64, error) {
	if report.Summary == nil {
		report.Summary = model.NewSummary(report)
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}
	countsJSON, _ := json.Marshal(report.Summary.Counts) //nolint:errcheck,errchkjson // map of ints; Marshal won't fail

	timestamp := report.DateStarted
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (site, output_dir, engine, locale, timestamp, passed, total_violations, violation_counts, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Site,
		report.OutputDir,
		report.Engine,
		report.Locale,
		timestamp.UTC().Format(timestampLayout),
		report.Passed(),
		report.Summary.TotalViolations,
		string(countsJSON),
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	for _, page := range report.Pages {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO page_results (run_id, page, module, status, violations, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		`,
			runID,
			page.Name,
			page.Module,
			string(page.Status),
			len(page.Violations),
			page.Duration.Milliseconds(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to save page %s: %w", page.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// decodeReport parses a stored report.
func decodeReport(reportJSON string) (*model.Report, error) {
	var report model.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// GetLatestRun retrieves the most recent report of a site.
// It returns nil when the site has no history.
func (hdb *HistoryDB) GetLatestRun(ctx context.Context, site string) (*model.Report, error) {
	query := `
	SELECT report_json FROM runs
	WHERE site = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, query, site).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return decodeReport(reportJSON)
}

// GetRunByID retrieves a report by its run ID.
// It returns nil when no run has that ID.
func (hdb *HistoryDB) GetRunByID(ctx context.Context, id int64) (*model.Report, error) {
	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return decodeReport(reportJSON)
}

// GetRunHistory retrieves every report of a site, newest first.
// Malformed reports are skipped.
func (hdb *HistoryDB) GetRunHistory(ctx context.Context, site string) ([]*model.Report, error) {
	query := `
	SELECT report_json FROM runs
	WHERE site = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query, site)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		report, err := decodeReport(reportJSON)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// RunMetadata contains summary information about a stored run.
// It is used for listing history without loading full reports.
type RunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Site is the base URL the run validated.
	Site string

	// OutputDir is the build output directory of the run.
	OutputDir string

	// Engine is the browser engine used.
	Engine string

	// Timestamp is when the run started.
	Timestamp time.Time

	// Passed is the verdict of the run.
	Passed bool

	// TotalViolations is the number of violations recorded.
	TotalViolations int

	// Counts maps violation kinds to their number.
	Counts map[string]int
}

// GetRunHistoryWithMetadata retrieves run metadata for a site, newest first.
func (hdb *HistoryDB) GetRunHistoryWithMetadata(ctx context.Context, site string) ([]RunMetadata, error) {
	query := `
	SELECT id, site, output_dir, engine, timestamp, passed, total_violations, violation_counts
	FROM runs
	WHERE site = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query, site)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var results []RunMetadata
	for rows.Next() {
		var (
			meta       RunMetadata
			engine     sql.NullString
			timestamp  string
			countsJSON sql.NullString
		)

		if err := rows.Scan(&meta.ID, &meta.Site, &meta.OutputDir, &engine, &timestamp,
			&meta.Passed, &meta.TotalViolations, &countsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}

		meta.Engine = engine.String
		meta.Timestamp = parseTimestamp(timestamp)
		meta.Counts = make(map[string]int)
		if countsJSON.Valid && countsJSON.String != "" {
			if err := json.Unmarshal([]byte(countsJSON.String), &meta.Counts); err != nil {
				meta.Counts = make(map[string]int)
			}
		}

		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListSites returns every site with stored runs.
func (hdb *HistoryDB) ListSites(ctx context.Context) ([]string, error) {
	rows, err := hdb.db.QueryContext(ctx, `SELECT DISTINCT site FROM runs ORDER BY site`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []string
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// PageRecord is the stored outcome of one page in one run.
type PageRecord struct {
	RunID      int64
	Timestamp  time.Time
	Page       string
	Module     bool
	Status     model.PageStatus
	Violations int
	Duration   time.Duration
}

// GetPageHistory returns the outcomes of one page of a site across runs,
// newest first.
func (hdb *HistoryDB) GetPageHistory(ctx context.Context, site, page string) ([]PageRecord, error) {
	query := `
	SELECT p.run_id, r.timestamp, p.page, p.module, p.status, p.violations, p.duration_ms
	FROM page_results p
	JOIN runs r ON r.id = p.run_id
	WHERE r.site = ? AND p.page = ?
	ORDER BY r.timestamp DESC, r.id DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query, site, page)
	if err != nil {
		return nil, fmt.Errorf("failed to get page history: %w", err)
	}
	defer rows.Close()

	var records []PageRecord
	for rows.Next() {
		var (
			rec        PageRecord
			timestamp  string
			status     string
			durationMS int64
		)
		if err := rows.Scan(&rec.RunID, &timestamp, &rec.Page, &rec.Module, &status,
			&rec.Violations, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan page record: %w", err)
		}
		rec.Timestamp = parseTimestamp(timestamp)
		rec.Status = model.PageStatus(status)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}

	return records, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
