package rescomp

import (
	"database/sql"
	"fmt"

	"github.com/bodgit/rescomp/pack"
	_ "github.com/mattn/go-sqlite3"
)

// SQLCache is a pack.Cache kept in an SQLite database so compression
// results survive between runs
type SQLCache struct {
	db *sql.DB
}

// NewSQLCache opens or creates the cache database file
func NewSQLCache(file string) (*SQLCache, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_journal_mode=WAL", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS pack (data TEXT NOT NULL, dict TEXT NOT NULL, scheme INTEGER NOT NULL, result INTEGER NOT NULL, packed BLOB, PRIMARY KEY(data, dict, scheme))"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLCache{
		db: db,
	}, nil
}

func hashKey(v uint64) string {
	return fmt.Sprintf("%016X", v)
}

// Get implements pack.Cache
func (c *SQLCache) Get(k pack.Key) (pack.Packed, bool, error) {
	var result int
	var packed []byte
	switch err := c.db.QueryRow("SELECT result, packed FROM pack WHERE data = ? AND dict = ? AND scheme = ?", hashKey(k.Data), hashKey(k.Dict), k.Scheme.Tag()).Scan(&result, &packed); err {
	case sql.ErrNoRows:
		return pack.Packed{}, false, nil
	case nil:
		return pack.Packed{Data: packed, Scheme: pack.Compression(result)}, true, nil
	default:
		return pack.Packed{}, false, err
	}
}

// Put implements pack.Cache. The data of an uncompressed result is not
// stored.
func (c *SQLCache) Put(k pack.Key, p pack.Packed) error {
	var packed []byte
	if p.Scheme != pack.None {
		packed = p.Data
	}
	if _, err := c.db.Exec("INSERT OR REPLACE INTO pack (data, dict, scheme, result, packed) VALUES (?, ?, ?, ?, ?)", hashKey(k.Data), hashKey(k.Dict), k.Scheme.Tag(), p.Scheme.Tag(), packed); err != nil {
		return err
	}
	return nil
}

// Len returns the number of cached results
func (c *SQLCache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM pack").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database
func (c *SQLCache) Close() error {
	return c.db.Close()
}
