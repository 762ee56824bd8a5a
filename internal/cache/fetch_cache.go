// Package cache stores per-repository fetch results so an interrupted fetch
// resumes without asking the host for repositories it already has.
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/models"
)

const bucketName = "repositories"

type entry struct {
	FetchedAt  time.Time         `json:"fetched_at"`
	Repository models.Repository `json:"repository"`
}

// FetchCache is a bbolt-backed repository cache with a TTL. A zero TTL
// keeps entries forever.
type FetchCache struct {
	db     *bolt.DB
	ttl    time.Duration
	logger *logrus.Entry
	now    func() time.Time
}

// Open opens or creates the cache file at path.
func Open(path string, ttl time.Duration, logger *logrus.Entry) (*FetchCache, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.FileSystemErrorf(err, "create cache directory for %s", path)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.StorageErrorf(err, "open fetch cache %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		db.Close()
		return nil, errors.StorageError(err, "create cache bucket")
	}
	return &FetchCache{db: db, ttl: ttl, logger: logger, now: time.Now}, nil
}

// Key identifies a repository across hosts.
func Key(platform models.Platform, org, repo string) string {
	return strings.Join([]string{string(platform), org, repo}, "/")
}

// Get returns the cached repository, false when absent or expired.
func (c *FetchCache) Get(key string) (*models.Repository, bool, error) {
	var e entry
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &e)
	})
	if err != nil {
		return nil, false, errors.StorageErrorf(err, "read cache entry %s", key)
	}
	if !found || c.expired(e) {
		return nil, false, nil
	}
	c.logger.WithField("key", key).Debug("fetch cache hit")
	return &e.Repository, true, nil
}

// Put stores repo under key, stamped with the current time.
func (c *FetchCache) Put(key string, repo models.Repository) error {
	data, err := json.Marshal(entry{FetchedAt: c.now(), Repository: repo})
	if err != nil {
		return errors.InternalErrorf("encode cache entry: %v", err)
	}
	if err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	}); err != nil {
		return errors.StorageErrorf(err, "write cache entry %s", key)
	}
	return nil
}

// Purge deletes expired entries and returns how many it removed.
func (c *FetchCache) Purge() (int, error) {
	removed := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		var stale [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var e entry
			if err := json.Unmarshal(v, &e); err != nil || c.expired(e) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, errors.StorageError(err, "purge fetch cache")
	}
	return removed, nil
}

func (c *FetchCache) expired(e entry) bool {
	return c.ttl > 0 && c.now().Sub(e.FetchedAt) > c.ttl
}

func (c *FetchCache) Close() error {
	return c.db.Close()
}
