package tracking

import (
	"context"
	"database/sql"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go-ml.dev/pkg/zorros/zorros"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
	experiment_id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	artifact_location TEXT NOT NULL DEFAULT '',
	creation_time INTEGER
);
CREATE TABLE IF NOT EXISTS runs (
	run_uuid TEXT PRIMARY KEY,
	name TEXT,
	experiment_id INTEGER NOT NULL REFERENCES experiments(experiment_id),
	status TEXT NOT NULL,
	start_time INTEGER,
	end_time INTEGER,
	artifact_uri TEXT
);
CREATE TABLE IF NOT EXISTS tags (
	key TEXT NOT NULL,
	value TEXT,
	run_uuid TEXT NOT NULL REFERENCES runs(run_uuid),
	PRIMARY KEY (key, run_uuid)
);
CREATE TABLE IF NOT EXISTS params (
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	run_uuid TEXT NOT NULL REFERENCES runs(run_uuid),
	PRIMARY KEY (key, run_uuid)
);
CREATE TABLE IF NOT EXISTS metrics (
	key TEXT NOT NULL,
	value REAL NOT NULL,
	timestamp INTEGER NOT NULL,
	step INTEGER NOT NULL DEFAULT 0,
	run_uuid TEXT NOT NULL REFERENCES runs(run_uuid)
);
`

// sqlite:////abs/path.db is absolute, sqlite:///rel/path.db and sqlite://rel/path.db are relative
func sqlitePath(u *url.URL) string {
	p := strings.TrimPrefix(u.Path, "/")
	if u.Host != "" {
		p = u.Host + "/" + p
	}
	return filepath.FromSlash(p)
}

/*
Sqlite is a tracking store in a local sqlite database,
artifacts are kept in the mlartifacts directory next to the database file
*/
type Sqlite struct {
	db           *sql.DB
	root         string
	opts         Options
	experimentID int64
	location     string
}

/*
OpenSqlite opens or creates the store database
*/
func OpenSqlite(path string, opts Options) (*Sqlite, error) {
	if path == "" {
		return nil, zorros.Errorf("sqlite store needs a database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, zorros.Trace(err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, zorros.Trace(err)
	}
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, zorros.Wrapf(err, "failed to initialize sqlite store %v: %v", path, err.Error())
	}
	root, err := filepath.Abs(filepath.Join(filepath.Dir(path), "mlartifacts"))
	if err != nil {
		db.Close()
		return nil, zorros.Trace(err)
	}
	return &Sqlite{db: db, root: root, opts: opts}, nil
}

func (s *Sqlite) Close() error {
	return s.db.Close()
}

func (s *Sqlite) SetExperiment(ctx context.Context, name string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT experiment_id, artifact_location FROM experiments WHERE name = ?`, name)
	err := row.Scan(&s.experimentID, &s.location)
	if err == sql.ErrNoRows {
		r, e := s.db.ExecContext(ctx,
			`INSERT INTO experiments (name, creation_time) VALUES (?, ?)`, name, Timestamp(time.Now()))
		if e != nil {
			return "", zorros.Trace(e)
		}
		if s.experimentID, e = r.LastInsertId(); e != nil {
			return "", zorros.Trace(e)
		}
		s.location = filepath.Join(s.root, strconv.FormatInt(s.experimentID, 10))
		_, err = s.db.ExecContext(ctx,
			`UPDATE experiments SET artifact_location = ? WHERE experiment_id = ?`, s.location, s.experimentID)
	}
	if err != nil {
		return "", zorros.Trace(err)
	}
	return strconv.FormatInt(s.experimentID, 10), nil
}

func (s *Sqlite) StartRun(ctx context.Context, opts RunOptions) (Run, error) {
	if s.experimentID == 0 {
		if _, err := s.SetExperiment(ctx, "Default"); err != nil {
			return nil, err
		}
	}
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	r := &sqliteRun{s: s, id: id, artifactURI: filepath.Join(s.location, id, "artifacts")}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, zorros.Trace(err)
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_uuid, name, experiment_id, status, start_time, artifact_uri) VALUES (?, ?, ?, ?, ?, ?)`,
		id, opts.Name, s.experimentID, string(Running), Timestamp(time.Now()), r.artifactURI)
	if err != nil {
		return nil, zorros.Trace(err)
	}
	for k, v := range opts.Tags {
		if _, err = tx.ExecContext(ctx, `INSERT INTO tags (key, value, run_uuid) VALUES (?, ?, ?)`, k, v, id); err != nil {
			return nil, zorros.Trace(err)
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, zorros.Trace(err)
	}
	return r, nil
}

/*
RunData is a stored run
*/
type RunData struct {
	ID          string
	Name        string
	Status      Status
	ArtifactURI string
	Params      map[string]string
	Metrics     map[string]float64 // the latest value of every metric
	Tags        map[string]string
}

/*
GetRun reads stored run by id
*/
func (s *Sqlite) GetRun(ctx context.Context, id string) (*RunData, error) {
	rd := &RunData{
		ID:      id,
		Params:  map[string]string{},
		Metrics: map[string]float64{},
		Tags:    map[string]string{},
	}
	var name sql.NullString
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT name, status, artifact_uri FROM runs WHERE run_uuid = ?`, id).
		Scan(&name, &status, &rd.ArtifactURI)
	if err == sql.ErrNoRows {
		return nil, zorros.Errorf("run %v does not exist", id)
	}
	if err != nil {
		return nil, zorros.Trace(err)
	}
	rd.Name = name.String
	rd.Status = Status(status)
	if err = s.pairs(ctx, `SELECT key, value FROM params WHERE run_uuid = ?`, id, func(k string, v string) {
		rd.Params[k] = v
	}); err != nil {
		return nil, err
	}
	if err = s.pairs(ctx, `SELECT key, value FROM tags WHERE run_uuid = ?`, id, func(k string, v string) {
		rd.Tags[k] = v
	}); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM metrics WHERE run_uuid = ? ORDER BY timestamp, rowid`, id)
	if err != nil {
		return nil, zorros.Trace(err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v float64
		if err = rows.Scan(&k, &v); err != nil {
			return nil, zorros.Trace(err)
		}
		rd.Metrics[k] = v
	}
	if err = rows.Err(); err != nil {
		return nil, zorros.Trace(err)
	}
	return rd, nil
}

func (s *Sqlite) pairs(ctx context.Context, query, id string, f func(string, string)) error {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return zorros.Trace(err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v string
		if err = rows.Scan(&k, &v); err != nil {
			return zorros.Trace(err)
		}
		f(k, v)
	}
	if err = rows.Err(); err != nil {
		return zorros.Trace(err)
	}
	return nil
}

type sqliteRun struct {
	s           *Sqlite
	id          string
	artifactURI string
}

func (r *sqliteRun) ID() string          { return r.id }
func (r *sqliteRun) ArtifactURI() string { return r.artifactURI }

func (r *sqliteRun) LogParam(ctx context.Context, key, value string) error {
	_, err := r.s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO params (key, value, run_uuid) VALUES (?, ?, ?)`, key, value, r.id)
	if err != nil {
		return zorros.Trace(err)
	}
	return nil
}

func (r *sqliteRun) LogMetric(ctx context.Context, key string, value float64) error {
	_, err := r.s.db.ExecContext(ctx,
		`INSERT INTO metrics (key, value, timestamp, step, run_uuid) VALUES (?, ?, ?, 0, ?)`,
		key, value, Timestamp(time.Now()), r.id)
	if err != nil {
		return zorros.Trace(err)
	}
	return nil
}

func (r *sqliteRun) LogArtifact(ctx context.Context, localPath string) error {
	return LocalRepository(r.artifactURI).LogArtifact(ctx, localPath, "")
}

func (r *sqliteRun) End(ctx context.Context, status Status) error {
	_, err := r.s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, end_time = ? WHERE run_uuid = ?`, string(status), Timestamp(time.Now()), r.id)
	if err != nil {
		return zorros.Trace(err)
	}
	return nil
}
