// Package pkgindex keeps a ledger of fetched packages in BoltDB.
//
// The ledger records, per package coordinate, which repository served it,
// the URLs it came from, the files stored in its location and when it was
// fetched. It is informational: whether a package is usable is always
// decided by the files on disk, never by the index.
package pkgindex

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// FileName is the index file inside the package cache root
	FileName = "index.db"

	// bucketName is the BoltDB bucket name for package records
	bucketName = "packages"
)

// ErrNotFound is returned by Lookup for unknown coordinates
var ErrNotFound = errors.New("package not indexed")

// Record describes one fetched package
type Record struct {
	// Coordinate is namespace:name:version
	Coordinate string `json:"coordinate"`

	// Repository is the name of the repository that served the required files
	Repository string `json:"repository"`

	// URL is the artifact URL
	URL string `json:"url"`

	// Files are the file names written into the package location
	Files []string `json:"files"`

	// FetchedAt is when the download completed
	FetchedAt time.Time `json:"fetched_at"`
}

// Index manages package records using BoltDB
type Index struct {
	db   *bbolt.DB
	path string
}

// Open opens or creates the index inside cacheRoot
func Open(cacheRoot string) (*Index, error) {
	if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	path := filepath.Join(cacheRoot, FileName)
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open package index: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index bucket: %w", err)
	}

	return &Index{db: db, path: path}, nil
}

// Path returns the database file
func (i *Index) Path() string {
	return i.path
}

// Close closes the index database
func (i *Index) Close() error {
	if i.db != nil {
		return i.db.Close()
	}

	return nil
}

// Record stores r under its coordinate, replacing any previous record
func (i *Index) Record(r Record) error {
	if r.Coordinate == "" {
		return errors.New("record has no coordinate")
	}

	if r.FetchedAt.IsZero() {
		r.FetchedAt = time.Now()
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	err = i.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(r.Coordinate), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store record for %s: %w", r.Coordinate, err)
	}

	return nil
}

// Lookup returns the record for coordinate, or ErrNotFound
func (i *Index) Lookup(coordinate string) (Record, error) {
	var r Record

	err := i.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(coordinate))
		if data == nil {
			return fmt.Errorf("%s: %w", coordinate, ErrNotFound)
		}

		return json.Unmarshal(data, &r)
	})
	if err != nil {
		return Record{}, err
	}

	return r, nil
}

// List returns every record in key order
func (i *Index) List() ([]Record, error) {
	var records []Record

	err := i.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(_, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}

			records = append(records, r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return records, nil
}

// Stats returns the number of indexed packages
func (i *Index) Stats() (int, error) {
	var count int

	err := i.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Clear removes all records
func (i *Index) Clear() error {
	err := i.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}

		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	return nil
}
