package boarddb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"dominoes.run/internal/sim/catalogs"
	simenc "dominoes.run/internal/sim/encoding"
	"dominoes.run/internal/sim/world"
)

var ErrNotFound = errors.New("board not found")

// DB is the local board library. Boards are written synchronously; tick
// reports go through a buffered channel to a writer goroutine and are dropped
// when it falls behind, so the tick loop never waits on disk.
type DB struct {
	db *sql.DB

	ch   chan world.TickReport
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
	now    func() time.Time

	// runID keys this process's tick rows; tick numbers restart every run.
	runID string
}

// Board is a named, versioned save. Data is the tbit text encoding.
type Board struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Data      string    `json:"data"`
	Nodes     int       `json:"nodes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entries decodes the stored board.
func (b Board) Entries() ([]simenc.Entry, error) { return simenc.DecodeTbit(b.Data) }

func OpenSQLite(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	runID, err := uuid.NewV7()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &DB{
		db:    db,
		ch:    make(chan world.TickReport, 4096),
		now:   time.Now,
		runID: runID.String(),
	}
	if _, err := db.Exec(`INSERT INTO runs(id, started_at) VALUES(?, ?)`, s.runID, s.timestamp()); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	if err := dropUnkeyedTicks(db); err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS boards (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			version INTEGER NOT NULL,
			data TEXT NOT NULL,
			nodes INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_boards_created ON boards(created_at);`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			fired INTEGER NOT NULL,
			transitions INTEGER NOT NULL,
			misses INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY(run_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','2')`)
	return err
}

// dropUnkeyedTicks removes a schema 1 ticks table, which was keyed by tick
// alone. The rows are recoverable from the JSONL tick log.
func dropUnkeyedTicks(db *sql.DB) error {
	var tables, keyed int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='ticks'`).Scan(&tables); err != nil {
		return err
	}
	if tables == 0 {
		return nil
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('ticks') WHERE name='run_id'`).Scan(&keyed); err != nil {
		return err
	}
	if keyed > 0 {
		return nil
	}
	_, err := db.Exec(`DROP TABLE ticks`)
	return err
}

func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *DB) timestamp() string { return s.now().UTC().Format(time.RFC3339Nano) }

// UpsertCatalog records the catalog the boards were authored against.
func (s *DB) UpsertCatalog(cats *catalogs.Catalog) error {
	if s == nil || cats == nil {
		return nil
	}
	type typeRow struct {
		ID       int      `json:"id"`
		Name     string   `json:"name"`
		Variants []string `json:"variants"`
	}
	rows := make([]typeRow, 0, len(cats.Types))
	for _, t := range cats.Types {
		rows = append(rows, typeRow{ID: t.ID, Name: t.Name, Variants: t.Variants})
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`,
		"node_types", cats.Digest, string(b), s.timestamp())
	return err
}

// CreateBoard stores entries under a fresh id.
func (s *DB) CreateBoard(ctx context.Context, name string, entries []simenc.Entry) (Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Board{}, fmt.Errorf("board name required")
	}
	data, err := simenc.EncodeTbit(entries)
	if err != nil {
		return Board{}, err
	}
	now := s.timestamp()
	b := Board{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Name:    name,
		Version: 1,
		Data:    data,
		Nodes:   len(entries),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO boards(id,name,version,data,nodes,created_at,updated_at) VALUES(?,?,?,?,?,?,?)`,
		b.ID, b.Name, b.Version, b.Data, b.Nodes, now, now); err != nil {
		return Board{}, err
	}
	return s.GetBoard(ctx, b.ID)
}

// ImportBoard stores raw tbit text after checking that it decodes.
func (s *DB) ImportBoard(ctx context.Context, name, tbit string) (Board, error) {
	entries, err := simenc.DecodeTbit(tbit)
	if err != nil {
		return Board{}, err
	}
	return s.CreateBoard(ctx, name, entries)
}

func (s *DB) GetBoard(ctx context.Context, id string) (Board, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,name,version,data,nodes,created_at,updated_at FROM boards WHERE id=?`, id)
	b, err := scanBoard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Board{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return b, err
}

// ListBoards returns every board, newest first.
func (s *DB) ListBoards(ctx context.Context) ([]Board, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,name,version,data,nodes,created_at,updated_at FROM boards ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateBoard renames and/or replaces the data of a board. The version only
// increases when the data changes.
func (s *DB) UpdateBoard(ctx context.Context, id string, name *string, entries []simenc.Entry) (Board, error) {
	b, err := s.GetBoard(ctx, id)
	if err != nil {
		return Board{}, err
	}
	if name != nil && strings.TrimSpace(*name) != "" {
		b.Name = strings.TrimSpace(*name)
	}
	if entries != nil {
		data, err := simenc.EncodeTbit(entries)
		if err != nil {
			return Board{}, err
		}
		if data != b.Data {
			b.Data = data
			b.Nodes = len(entries)
			b.Version++
		}
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE boards SET name=?,version=?,data=?,nodes=?,updated_at=? WHERE id=?`,
		b.Name, b.Version, b.Data, b.Nodes, s.timestamp(), id); err != nil {
		return Board{}, err
	}
	return s.GetBoard(ctx, id)
}

func (s *DB) DeleteBoard(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM boards WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBoard(sc scanner) (Board, error) {
	var (
		b                Board
		created, updated string
	)
	if err := sc.Scan(&b.ID, &b.Name, &b.Version, &b.Data, &b.Nodes, &created, &updated); err != nil {
		return Board{}, err
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	b.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return b, nil
}

// WriteTick queues a tick report for indexing. Idle ticks are not recorded.
func (s *DB) WriteTick(rep world.TickReport) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	if len(rep.Fired) == 0 && len(rep.Transitions) == 0 {
		return nil
	}
	select {
	case s.ch <- rep:
	default:
		// Drop if the indexer falls behind; the JSONL tick log remains the source of truth.
	}
	return nil
}

// RunID identifies the ticks written through this handle.
func (s *DB) RunID() string { return s.runID }

// TickCount returns the number of indexed ticks across all runs.
func (s *DB) TickCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ticks`).Scan(&n)
	return n, err
}

// RunTicks returns the number of indexed ticks per run, keyed by run id.
func (s *DB) RunTicks(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT r.id, COUNT(t.tick) FROM runs r LEFT JOIN ticks t ON t.run_id = r.id GROUP BY r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func (s *DB) loop() {
	ctx := context.Background()
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(run_id,tick,digest,fired,transitions,misses,raw_json) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushTicker := time.NewTicker(250 * time.Millisecond)
	defer flushTicker.Stop()

	for {
		select {
		case rep, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			begin()
			if tx == nil || insertTick == nil {
				continue
			}
			raw, _ := json.Marshal(rep)
			_, _ = tx.Stmt(insertTick).Exec(s.runID, int64(rep.Tick), rep.Digest, len(rep.Fired), len(rep.Transitions), rep.Misses, string(raw))
			opCount++
			if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
		case <-flushTicker.C:
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
		}
	}
}
