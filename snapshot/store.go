// Package snapshot persists a hologram.Memory to an embedded SQLite file and
// rebuilds it by replay. Registries are stored vector-for-vector; capsules
// are stored at the name level (role, symbol, weight) and reconstructed
// against the restored registries, so a loaded store answers queries exactly
// like the saved one.
package snapshot

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Harshitk-cp/holomem/hologram"
	"github.com/Harshitk-cp/holomem/hrr"
	"github.com/Harshitk-cp/holomem/symbol"
)

var (
	// ErrUnnamedBinding is returned when a capsule holds a raw-vector binding
	// with no registry name; such bindings cannot be replayed from names.
	ErrUnnamedBinding = errors.New("snapshot: capsule binding has no symbol name")

	// ErrEmptySnapshot is returned by Load when the database has never been
	// saved to. Callers treat it as "start fresh"; any other Load error means
	// the snapshot exists but cannot be read.
	ErrEmptySnapshot = errors.New("snapshot: no saved state")
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS registry (
	kind     TEXT NOT NULL,
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	vector   BLOB NOT NULL,
	PRIMARY KEY (kind, name)
);
CREATE TABLE IF NOT EXISTS capsules (
	position    INTEGER PRIMARY KEY,
	id          TEXT NOT NULL,
	importance  REAL NOT NULL,
	created_at  INTEGER NOT NULL,
	last_access INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS bindings (
	capsule_id TEXT NOT NULL,
	position   INTEGER NOT NULL,
	role       TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	weight     REAL NOT NULL
);
`

// Store is a SQLite-backed snapshot of one holographic memory.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the snapshot database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("snapshot: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Save replaces the snapshot contents with the current state of m. Capsules
// created from raw vectors rather than symbol names cannot be serialized and
// cause ErrUnnamedBinding.
func (s *Store) Save(m *hologram.Memory) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("snapshot: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, table := range []string{"meta", "registry", "capsules", "bindings"} {
		if _, err = tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("snapshot: clear %s: %w", table, err)
		}
	}
	if _, err = tx.Exec("INSERT INTO meta(key, value) VALUES('dimension', ?)",
		fmt.Sprintf("%d", m.Dimension())); err != nil {
		return fmt.Errorf("snapshot: save meta: %w", err)
	}

	if err = saveSpace(tx, "symbol", m.Symbols()); err != nil {
		return err
	}
	if err = saveSpace(tx, "role", m.Roles()); err != nil {
		return err
	}

	for pos, c := range m.Capsules() {
		_, err = tx.Exec(
			"INSERT INTO capsules(position, id, importance, created_at, last_access) VALUES(?,?,?,?,?)",
			pos, c.ID().String(), c.Importance(),
			c.CreatedAt().UnixNano(), c.LastAccessedAt().UnixNano())
		if err != nil {
			return fmt.Errorf("snapshot: save capsule %s: %w", c.ID(), err)
		}
		for bpos, role := range c.Roles() {
			info, _ := c.Binding(role)
			if info.Symbol == "" {
				return fmt.Errorf("%w: capsule %s role %q", ErrUnnamedBinding, c.ID(), role)
			}
			_, err = tx.Exec(
				"INSERT INTO bindings(capsule_id, position, role, symbol, weight) VALUES(?,?,?,?,?)",
				c.ID().String(), bpos, role, info.Symbol, info.Weight)
			if err != nil {
				return fmt.Errorf("snapshot: save binding %s/%s: %w", c.ID(), role, err)
			}
		}
	}

	return tx.Commit()
}

// Load rebuilds a memory from the snapshot. Registries are restored first,
// then capsules are replayed in insertion order. Additional store options
// (decay policy, logger, caches) may be supplied; dimension and registries
// come from the snapshot.
func (s *Store) Load(opts ...hologram.Option) (*hologram.Memory, error) {
	var dimStr string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = 'dimension'").Scan(&dimStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmptySnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read dimension: %w", err)
	}
	var dim int
	if _, err := fmt.Sscanf(dimStr, "%d", &dim); err != nil {
		return nil, fmt.Errorf("snapshot: parse dimension %q: %w", dimStr, err)
	}

	symbols := symbol.NewSpace(dim)
	if err := loadSpace(s.db, "symbol", symbols); err != nil {
		return nil, err
	}
	roles := symbol.NewSpace(dim)
	if err := loadSpace(s.db, "role", roles); err != nil {
		return nil, err
	}

	m, err := hologram.New(append(opts, hologram.WithSpaces(symbols, roles))...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: build store: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT id, importance, created_at, last_access FROM capsules ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("snapshot: read capsules: %w", err)
	}
	defer rows.Close()

	var restored []hologram.RestoredCapsule
	for rows.Next() {
		var (
			idStr                 string
			importance            float64
			createdNs, accessedNs int64
		)
		if err := rows.Scan(&idStr, &importance, &createdNs, &accessedNs); err != nil {
			return nil, fmt.Errorf("snapshot: scan capsule: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("snapshot: capsule id %q: %w", idStr, err)
		}
		restored = append(restored, hologram.RestoredCapsule{
			ID:             id,
			Importance:     importance,
			CreatedAt:      time.Unix(0, createdNs),
			LastAccessedAt: time.Unix(0, accessedNs),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot: read capsules: %w", err)
	}

	for i := range restored {
		bindings, err := s.loadBindings(restored[i].ID)
		if err != nil {
			return nil, err
		}
		restored[i].Bindings = bindings
		if _, err := m.RestoreCapsule(restored[i]); err != nil {
			return nil, fmt.Errorf("snapshot: replay capsule %s: %w", restored[i].ID, err)
		}
	}
	return m, nil
}

func (s *Store) loadBindings(capsuleID uuid.UUID) ([]hologram.RestoredBinding, error) {
	rows, err := s.db.Query(
		"SELECT role, symbol, weight FROM bindings WHERE capsule_id = ? ORDER BY position ASC",
		capsuleID.String())
	if err != nil {
		return nil, fmt.Errorf("snapshot: read bindings for %s: %w", capsuleID, err)
	}
	defer rows.Close()

	var out []hologram.RestoredBinding
	for rows.Next() {
		var b hologram.RestoredBinding
		if err := rows.Scan(&b.Role, &b.Symbol, &b.Weight); err != nil {
			return nil, fmt.Errorf("snapshot: scan binding: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func saveSpace(tx *sql.Tx, kind string, sp *symbol.Space) error {
	for pos, entry := range sp.Export() {
		_, err := tx.Exec(
			"INSERT INTO registry(kind, position, name, vector) VALUES(?,?,?,?)",
			kind, pos, entry.Name, encodeVector(entry.Vector))
		if err != nil {
			return fmt.Errorf("snapshot: save %s %q: %w", kind, entry.Name, err)
		}
	}
	return nil
}

func loadSpace(db *sql.DB, kind string, sp *symbol.Space) error {
	rows, err := db.Query(
		"SELECT name, vector FROM registry WHERE kind = ? ORDER BY position ASC", kind)
	if err != nil {
		return fmt.Errorf("snapshot: read %s registry: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name string
			blob []byte
		)
		if err := rows.Scan(&name, &blob); err != nil {
			return fmt.Errorf("snapshot: scan %s entry: %w", kind, err)
		}
		v, err := decodeVector(blob)
		if err != nil {
			return fmt.Errorf("snapshot: %s %q: %w", kind, name, err)
		}
		if err := sp.Restore(name, v); err != nil {
			return fmt.Errorf("snapshot: restore %s %q: %w", kind, name, err)
		}
	}
	return rows.Err()
}

func encodeVector(v hrr.Vector) []byte {
	out := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(x))
	}
	return out
}

func decodeVector(blob []byte) (hrr.Vector, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 8", len(blob))
	}
	v := make(hrr.Vector, len(blob)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	return v, nil
}
