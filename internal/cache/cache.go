// Package cache persists a Layout's index to an on-disk SQLite database and
// reloads it, so a caller can reopen an unchanged tree from the cache
// instead of walking and re-parsing it (spec.md §4.7). Grounded on
// internal/graph/sqlite_graph.go's "the DB is the index" model and
// internal/ingest/sqlite_writer.go's single-transaction bulk-insert style,
// using modernc.org/sqlite (the teacher's pure-Go driver) in place of the
// teacher's FUSE-serving read path.
package cache

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RoaringBitmap/roaring"
	_ "modernc.org/sqlite"

	"github.com/agentic-research/bidx/internal/entities"
	"github.com/agentic-research/bidx/internal/index"
	"github.com/agentic-research/bidx/internal/layout"
	"github.com/agentic-research/bidx/internal/schema"
)

const dbFile = "index.db"

const schemaDDL = `
CREATE TABLE roots (
	position INTEGER PRIMARY KEY,
	root TEXT NOT NULL
);
CREATE TABLE datasets (
	id INTEGER PRIMARY KEY,
	root TEXT NOT NULL,
	is_derivative INTEGER NOT NULL,
	pipeline_name TEXT NOT NULL,
	description TEXT NOT NULL,
	metadata_indexed INTEGER NOT NULL,
	valid_bitmap BLOB
);
CREATE TABLE files (
	dataset_id INTEGER NOT NULL,
	file_id INTEGER NOT NULL,
	path TEXT NOT NULL,
	class INTEGER NOT NULL,
	entities TEXT NOT NULL,
	metadata TEXT,
	PRIMARY KEY (dataset_id, file_id)
);
`

// CorruptError wraps any failure reading back a previously-written cache
// (unreadable SQLite file, schema mismatch, undecodable blob), distinct
// from "no cache here yet", which callers detect with Exists before ever
// calling Load (spec.md §6, §7 cache I/O failure).
type CorruptError struct {
	Dir string
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("cache at %s is corrupt: %v", e.Dir, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// entityPair is the on-disk representation of one ParsedEntities key/value,
// kept as an ordered array (not a JSON object) so discovery order survives
// the round trip (spec.md §8 property 7).
type entityPair struct {
	Name  string `json:"n"`
	Value string `json:"v"`
}

// Save writes l's full index to dir, replacing any existing cache there.
func Save(l *layout.Layout, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	dbPath := filepath.Join(dir, dbFile)
	_ = os.Remove(dbPath) // stale cache is fully rebuilt, never merged

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open cache db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("create cache schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin cache save: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // safe to ignore once committed

	rootStmt, err := tx.Prepare("INSERT INTO roots (position, root) VALUES (?, ?)")
	if err != nil {
		return err
	}
	for i, r := range l.Roots() {
		if _, err := rootStmt.Exec(i, r); err != nil {
			return fmt.Errorf("insert root %s: %w", r, err)
		}
	}
	_ = rootStmt.Close()

	dsStmt, err := tx.Prepare(`INSERT INTO datasets
		(id, root, is_derivative, pipeline_name, description, metadata_indexed, valid_bitmap)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	fileStmt, err := tx.Prepare(`INSERT INTO files
		(dataset_id, file_id, path, class, entities, metadata) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}

	datasets := allDatasets(l)
	for dsID, d := range datasets {
		desc, err := json.Marshal(d.Description)
		if err != nil {
			return fmt.Errorf("marshal dataset description: %w", err)
		}
		var bitmapBlob []byte
		if d.Valid != nil && !d.Valid.IsEmpty() {
			var buf bytes.Buffer
			if _, err := d.Valid.WriteTo(&buf); err != nil {
				return fmt.Errorf("serialize valid bitmap: %w", err)
			}
			bitmapBlob = buf.Bytes()
		}
		metaIndexed := 0
		if d.MetadataIndexed() {
			metaIndexed = 1
		}
		isDeriv := 0
		if d.IsDerivative {
			isDeriv = 1
		}
		if _, err := dsStmt.Exec(dsID, d.Root, isDeriv, d.PipelineName, string(desc), metaIndexed, bitmapBlob); err != nil {
			return fmt.Errorf("insert dataset %s: %w", d.Root, err)
		}

		for _, f := range d.Files() {
			pairs := make([]entityPair, 0, f.Entities.Len())
			for _, k := range f.Entities.Keys() {
				v, _ := f.Entities.Get(k)
				pairs = append(pairs, entityPair{Name: string(k), Value: v})
			}
			entJSON, err := json.Marshal(pairs)
			if err != nil {
				return fmt.Errorf("marshal entities for %s: %w", f.Path, err)
			}
			var metaJSON []byte
			if content, ok := d.MetadataFor(f.ID); ok {
				metaJSON, err = json.Marshal(content)
				if err != nil {
					return fmt.Errorf("marshal metadata for %s: %w", f.Path, err)
				}
			}
			if _, err := fileStmt.Exec(dsID, f.ID, f.Path, int(f.Class), string(entJSON), nullableString(metaJSON)); err != nil {
				return fmt.Errorf("insert file %s: %w", f.Path, err)
			}
		}
	}
	_ = dsStmt.Close()
	_ = fileStmt.Close()

	return tx.Commit()
}

// Load reconstructs a Layout from a cache previously written by Save. The
// caller is responsible for checking the cache directory exists (spec.md
// §4.7: a missing or reset_cache=true cache falls back to a fresh walk).
// Any failure reading back an existing cache is wrapped in *CorruptError.
func Load(dir string) (*layout.Layout, error) {
	l, err := load(dir)
	if err != nil {
		return nil, &CorruptError{Dir: dir, Err: err}
	}
	return l, nil
}

func load(dir string) (*layout.Layout, error) {
	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	defer func() { _ = db.Close() }()

	roots, err := loadRoots(db)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`SELECT id, root, is_derivative, pipeline_name, description, metadata_indexed, valid_bitmap
		FROM datasets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type row struct {
		id          int
		ds          *layout.Dataset
		hadMetadata bool
	}
	var loaded []row
	for rows.Next() {
		var (
			id, isDeriv, metaIndexed int
			root, pipelineName, desc string
			bitmapBlob               []byte
		)
		if err := rows.Scan(&id, &root, &isDeriv, &pipelineName, &desc, &metaIndexed, &bitmapBlob); err != nil {
			return nil, fmt.Errorf("scan dataset row: %w", err)
		}
		ds := layout.NewDataset(root)
		ds.IsDerivative = isDeriv != 0
		ds.PipelineName = pipelineName
		if err := json.Unmarshal([]byte(desc), &ds.Description); err != nil {
			return nil, fmt.Errorf("unmarshal description for %s: %w", root, err)
		}
		if len(bitmapBlob) > 0 {
			bm := roaring.New()
			if err := bm.UnmarshalBinary(bitmapBlob); err != nil {
				return nil, fmt.Errorf("unmarshal valid bitmap for %s: %w", root, err)
			}
			ds.Valid = bm
		}
		if metaIndexed != 0 {
			ds.MarkMetadataIndexed()
		}
		loaded = append(loaded, row{id: id, ds: ds, hadMetadata: metaIndexed != 0})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byID := make(map[int]*layout.Dataset, len(loaded))
	for _, r := range loaded {
		byID[r.id] = r.ds
	}

	fileRows, err := db.Query(`SELECT dataset_id, file_id, path, class, entities, metadata
		FROM files ORDER BY dataset_id, file_id`)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer func() { _ = fileRows.Close() }()

	for fileRows.Next() {
		var (
			dsID, fileID, class int
			path, entJSON       string
			metaJSON            sql.NullString
		)
		if err := fileRows.Scan(&dsID, &fileID, &path, &class, &entJSON, &metaJSON); err != nil {
			return nil, fmt.Errorf("scan file row: %w", err)
		}
		ds, ok := byID[dsID]
		if !ok {
			continue
		}
		var pairs []entityPair
		if err := json.Unmarshal([]byte(entJSON), &pairs); err != nil {
			return nil, fmt.Errorf("unmarshal entities for %s: %w", path, err)
		}
		ents := entities.New()
		for _, p := range pairs {
			ents.Set(schema.EntityName(p.Name), p.Value)
		}
		f := &index.File{ID: uint32(fileID), Path: path, Entities: ents, Class: index.Classification(class)}
		ds.AddFile(f)
		if metaJSON.Valid {
			var content map[string]any
			if err := json.Unmarshal([]byte(metaJSON.String), &content); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for %s: %w", path, err)
			}
			ds.SetMetadata(f.ID, content)
		}
	}
	if err := fileRows.Err(); err != nil {
		return nil, err
	}

	var primary *layout.Dataset
	var derivs []*layout.Dataset
	for _, r := range loaded {
		if !r.ds.IsDerivative && primary == nil {
			primary = r.ds
			continue
		}
		derivs = append(derivs, r.ds)
	}

	return layout.New(primary, derivs, roots), nil
}

// Exists reports whether a cache has already been written to dir.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, dbFile))
	return err == nil
}

// Reset removes any cache previously written to dir.
func Reset(dir string) error {
	err := os.Remove(filepath.Join(dir, dbFile))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func loadRoots(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT root FROM roots ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query roots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func allDatasets(l *layout.Layout) []*layout.Dataset {
	var out []*layout.Dataset
	if l.Primary() != nil {
		out = append(out, l.Primary())
	}
	out = append(out, l.Derivatives()...)
	return out
}

func nullableString(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
