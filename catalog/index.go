package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const createScenes = `CREATE TABLE IF NOT EXISTS scenes (
	id TEXT PRIMARY KEY,
	generation TEXT NOT NULL,
	collection TEXT NOT NULL,
	acquired BIGINT NOT NULL,
	xmin DOUBLE PRECISION NOT NULL,
	ymin DOUBLE PRECISION NOT NULL,
	xmax DOUBLE PRECISION NOT NULL,
	ymax DOUBLE PRECISION NOT NULL,
	crs TEXT NOT NULL,
	geotransform TEXT NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	cloud_cover DOUBLE PRECISION NOT NULL,
	manifest TEXT NOT NULL,
	bands TEXT NOT NULL
)`

const createScenesIndex = `CREATE INDEX IF NOT EXISTS scenes_generation_acquired ON scenes (generation, acquired)`

const upsertScene = `INSERT INTO scenes
	(id, generation, collection, acquired, xmin, ymin, xmax, ymax, crs, geotransform, width, height, cloud_cover, manifest, bands)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
	generation = excluded.generation,
	collection = excluded.collection,
	acquired = excluded.acquired,
	xmin = excluded.xmin, ymin = excluded.ymin, xmax = excluded.xmax, ymax = excluded.ymax,
	crs = excluded.crs,
	geotransform = excluded.geotransform,
	width = excluded.width, height = excluded.height,
	cloud_cover = excluded.cloud_cover,
	manifest = excluded.manifest,
	bands = excluded.bands`

const selectScenes = `SELECT id, generation, collection, acquired, xmin, ymin, xmax, ymax, crs, geotransform, width, height, cloud_cover, manifest, bands FROM scenes`

// IndexStore is the SQL scene index. The same schema serves SQLite
// and PostgreSQL.
type IndexStore struct {
	db     *sql.DB
	driver string
}

// OpenIndex opens the index behind driver ("sqlite" or "postgres")
// and creates its schema when missing.
func OpenIndex(ctx context.Context, driver, dsn string) (*IndexStore, error) {
	switch driver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s index: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	s := NewIndexStore(db, driver)
	if err := s.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewIndexStore(db *sql.DB, driver string) *IndexStore {
	return &IndexStore{db: db, driver: driver}
}

func (s *IndexStore) DB() *sql.DB {
	return s.db
}

func (s *IndexStore) Close() error {
	return s.db.Close()
}

func (s *IndexStore) Init(ctx context.Context) error {
	for _, stmt := range []string{createScenes, createScenesIndex} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating scene index: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into the $n form PostgreSQL expects.
func (s *IndexStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *IndexStore) Upsert(ctx context.Context, records ...*SceneRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(upsertScene))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if len(rec.BBox) != 4 {
			return fmt.Errorf("scene %s: bbox must have 4 values, got %v", rec.ID, rec.BBox)
		}
		gt, err := json.Marshal(rec.GeoTransform)
		if err != nil {
			return err
		}
		bands, err := json.Marshal(rec.Bands)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			rec.ID, rec.Generation, rec.Collection, rec.TimeStamp.UTC().UnixNano(),
			rec.BBox[0], rec.BBox[1], rec.BBox[2], rec.BBox[3],
			rec.CRS, string(gt), rec.Width, rec.Height, rec.CloudCover, rec.Manifest, string(bands),
		)
		if err != nil {
			return fmt.Errorf("indexing scene %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

// Query returns the matching scenes in acquisition order.
func (s *IndexStore) Query(ctx context.Context, q SceneQuery) ([]*SceneRecord, error) {
	var where []string
	var args []interface{}

	if len(q.Generation) > 0 {
		where = append(where, "generation = ?")
		args = append(args, q.Generation)
	}
	if !q.Start.IsZero() {
		where = append(where, "acquired >= ?")
		args = append(args, q.Start.UTC().UnixNano())
	}
	if !q.End.IsZero() {
		where = append(where, "acquired <= ?")
		args = append(args, q.End.UTC().UnixNano())
	}
	if len(q.BBox) == 4 {
		where = append(where, "xmin <= ?", "xmax >= ?", "ymin <= ?", "ymax >= ?")
		args = append(args, q.BBox[2], q.BBox[0], q.BBox[3], q.BBox[1])
	}

	query := selectScenes
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY acquired, id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying scene index: %w", err)
	}
	defer rows.Close()

	var records []*SceneRecord
	for rows.Next() {
		rec, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanScene(rows *sql.Rows) (*SceneRecord, error) {
	var rec SceneRecord
	var acquired int64
	var gt, bands string
	rec.BBox = make([]float64, 4)
	err := rows.Scan(&rec.ID, &rec.Generation, &rec.Collection, &acquired,
		&rec.BBox[0], &rec.BBox[1], &rec.BBox[2], &rec.BBox[3],
		&rec.CRS, &gt, &rec.Width, &rec.Height, &rec.CloudCover, &rec.Manifest, &bands)
	if err != nil {
		return nil, err
	}
	rec.TimeStamp = time.Unix(0, acquired).UTC()
	if err := json.Unmarshal([]byte(gt), &rec.GeoTransform); err != nil {
		return nil, fmt.Errorf("scene %s geotransform: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(bands), &rec.Bands); err != nil {
		return nil, fmt.Errorf("scene %s bands: %w", rec.ID, err)
	}
	return &rec, nil
}
