package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/quillgraph/quill-cli/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/quillgraph/quill-cli/internal/core/domain"
	"github.com/quillgraph/quill-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Store is the SQLite-backed vector store. One store indexes one graph
// with one fixed embedding dimension; switching models requires a full
// rebuild into a fresh store.
type Store struct {
	db         *sql.DB
	path       string
	dimensions int

	now func() time.Time
}

// NewStore opens (or creates) the vector store for a graph at the given
// data directory. If dataDir is empty, defaults to ~/.quill/data.
func NewStore(dataDir, graph string, dimensions int) (*Store, error) {
	if graph == "" {
		return nil, fmt.Errorf("open store: %w: graph name is required", domain.ErrInvalidInput)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("open store: %w: dimensions must be positive", domain.ErrInvalidInput)
	}

	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".quill", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, graph+"_index.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:         db,
		path:       dbPath,
		dimensions: dimensions,
		now:        time.Now,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Dimensions returns the fixed vector dimension of this store.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// UpsertBlocks stores blocks and their vectors in one transaction. The
// transaction is the atomicity boundary: a failure anywhere rolls back
// every block in the call, so no block is ever visible with metadata but
// no vector or vice versa.
func (s *Store) UpsertBlocks(ctx context.Context, blocks []domain.Block, vectors [][]float32) error {
	if len(blocks) != len(vectors) {
		return fmt.Errorf("upsert blocks: %w: %d blocks, %d vectors",
			domain.ErrInvalidInput, len(blocks), len(vectors))
	}
	if len(blocks) == 0 {
		return nil
	}

	for i := range vectors {
		if len(vectors[i]) != s.dimensions {
			return fmt.Errorf("upsert block %s: %w: got %d, store holds %d",
				blocks[i].UID, domain.ErrDimensionMismatch, len(vectors[i]), s.dimensions)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	blockStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO blocks (uid, content, page_uid, page_title, parent_uid, parent_chain, edit_time, embedded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			content = excluded.content,
			page_uid = excluded.page_uid,
			page_title = excluded.page_title,
			parent_uid = excluded.parent_uid,
			parent_chain = excluded.parent_chain,
			edit_time = excluded.edit_time,
			embedded_at = excluded.embedded_at
	`)
	if err != nil {
		return fmt.Errorf("preparing block statement: %w", err)
	}
	defer blockStmt.Close()

	vectorStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (uid, embedding, dimensions)
		VALUES (?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			embedding = excluded.embedding,
			dimensions = excluded.dimensions
	`)
	if err != nil {
		return fmt.Errorf("preparing vector statement: %w", err)
	}
	defer vectorStmt.Close()

	embeddedAt := s.now().UnixMilli()

	for i := range blocks {
		chainJSON, err := marshalParentChain(blocks[i].ParentChain)
		if err != nil {
			return fmt.Errorf("marshalling parent chain: %w", err)
		}

		if _, err := blockStmt.ExecContext(ctx,
			blocks[i].UID, blocks[i].Content, blocks[i].PageUID, blocks[i].PageTitle,
			blocks[i].ParentUID, chainJSON, blocks[i].EditTime, embeddedAt); err != nil {
			return fmt.Errorf("saving block %s: %w", blocks[i].UID, err)
		}

		if _, err := vectorStmt.ExecContext(ctx,
			blocks[i].UID, float32SliceToBytes(vectors[i]), s.dimensions); err != nil {
			return fmt.Errorf("saving vector %s: %w", blocks[i].UID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetBlock retrieves block metadata by UID.
func (s *Store) GetBlock(ctx context.Context, uid string) (*domain.Block, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uid, content, page_uid, page_title, parent_uid, parent_chain, edit_time, embedded_at
		FROM blocks WHERE uid = ?
	`, uid)

	return scanBlock(row)
}

// Search performs brute-force KNN over all stored vectors.
// Hits come back in ascending distance order, ties broken by UID.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("search: %w: got %d, store holds %d",
			domain.ErrDimensionMismatch, len(query), s.dimensions)
	}
	if k <= 0 {
		return []driven.VectorHit{}, nil
	}

	rows, err := s.db.QueryContext(ctx, "SELECT uid, embedding FROM vectors")
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var uid string
		var blob []byte
		if err := rows.Scan(&uid, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}

		vector := bytesToFloat32Slice(blob)
		if len(vector) != len(query) {
			return nil, fmt.Errorf("vector %s: %w: stored %d, query %d",
				uid, domain.ErrDimensionMismatch, len(vector), len(query))
		}

		hits = append(hits, driven.VectorHit{UID: uid, Distance: squaredL2(query, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].UID < hits[j].UID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// AllUIDs returns the UIDs of every stored block.
func (s *Store) AllUIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT uid FROM blocks ORDER BY uid")
	if err != nil {
		return nil, fmt.Errorf("querying uids: %w", err)
	}
	defer rows.Close()

	var uids []string //nolint:prealloc // size unknown from query
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("scanning uid: %w", err)
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating uids: %w", err)
	}

	return uids, nil
}

// Counts returns the number of stored blocks and vectors.
func (s *Store) Counts(ctx context.Context) (blocks, vectors int, err error) {
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM blocks").Scan(&blocks); err != nil {
		return 0, 0, fmt.Errorf("counting blocks: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&vectors); err != nil {
		return 0, 0, fmt.Errorf("counting vectors: %w", err)
	}
	return blocks, vectors, nil
}

// GetSyncState reads a sync-state value.
func (s *Store) GetSyncState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM sync_state WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("scanning sync state: %w", err)
	}
	return value, nil
}

// SetSyncState writes a sync-state value.
func (s *Store) SetSyncState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("saving sync state: %w", err)
	}
	return nil
}

// Reset discards all blocks, vectors and sync state for a full rebuild.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"vectors", "blocks", "sync_state"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// marshalParentChain encodes the ancestor chain as JSON, NULL when empty.
func marshalParentChain(chain []string) (any, error) {
	if len(chain) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(chain)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// scanBlock scans a single block row.
func scanBlock(row *sql.Row) (*domain.Block, error) {
	var block domain.Block
	var pageUID, pageTitle, parentUID, chainJSON sql.NullString

	if err := row.Scan(&block.UID, &block.Content, &pageUID, &pageTitle,
		&parentUID, &chainJSON, &block.EditTime, &block.EmbeddedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning block: %w", err)
	}

	block.PageUID = pageUID.String
	block.PageTitle = pageTitle.String
	block.ParentUID = parentUID.String

	if chainJSON.Valid && chainJSON.String != "" {
		if err := json.Unmarshal([]byte(chainJSON.String), &block.ParentChain); err != nil {
			return nil, fmt.Errorf("unmarshaling parent chain: %w", err)
		}
	}

	return &block, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// squaredL2 computes the squared Euclidean distance between two vectors
// of equal length.
func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
