// Package dlq remembers organizations whose fetch failed so a later run can
// retry just those.
package dlq

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/models"
	"github.com/rohankatakam/collabgraph/internal/storage"
)

// Entry is one failed organization or group.
type Entry struct {
	Platform     models.Platform `json:"platform"`
	Name         string          `json:"name"`
	ErrorMessage string          `json:"error_message"`
	RetryCount   int             `json:"retry_count"`
	LastRetryAt  *time.Time      `json:"last_retry_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Stats summarizes the queue for one platform.
type Stats struct {
	TotalEntries     int
	RetryableEntries int
	ExhaustedRetries int
}

// Queue is a dead letter queue persisted as a JSON file.
type Queue struct {
	mu      sync.Mutex
	path    string
	entries map[string]*Entry
	now     func() time.Time
	logger  *logrus.Entry
}

func entryKey(platform models.Platform, name string) string {
	return string(platform) + "/" + name
}

// Open loads the queue at path. A missing file is an empty queue.
func Open(path string, logger *logrus.Entry) (*Queue, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	q := &Queue{
		path:    path,
		entries: map[string]*Entry{},
		now:     time.Now,
		logger:  logger.WithField("component", "dlq"),
	}
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return q, nil
	}
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "read %s", path)
	}
	var list []*Entry
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, errors.InputErrorf(err, "invalid dead letter queue %s", path)
	}
	for _, e := range list {
		q.entries[entryKey(e.Platform, e.Name)] = e
	}
	return q, nil
}

// Enqueue records a failure. A name already queued has its retry count
// bumped instead.
func (q *Queue) Enqueue(platform models.Platform, name string, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now().UTC()
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if e, ok := q.entries[entryKey(platform, name)]; ok {
		e.RetryCount++
		e.ErrorMessage = msg
		e.UpdatedAt = now
		e.LastRetryAt = &now
	} else {
		q.entries[entryKey(platform, name)] = &Entry{
			Platform:     platform,
			Name:         name,
			ErrorMessage: msg,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}
	q.logger.WithFields(logrus.Fields{"platform": platform, "name": name, "error": msg}).
		Warn("organization enqueued to DLQ")
	return q.save()
}

// MarkResolved drops name after a successful fetch.
func (q *Queue) MarkResolved(platform models.Platform, name string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := entryKey(platform, name)
	if _, ok := q.entries[key]; !ok {
		return nil
	}
	delete(q.entries, key)
	q.logger.WithFields(logrus.Fields{"platform": platform, "name": name}).Info("organization resolved and removed from DLQ")
	return q.save()
}

// Pending returns the names still under maxRetries, oldest first.
func (q *Queue) Pending(platform models.Platform, maxRetries int) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []Entry
	for _, e := range q.entries {
		if e.Platform == platform && e.RetryCount < maxRetries {
			out = append(out, *e)
		}
	}
	sortEntries(out)
	return out
}

// Stats counts the entries for platform.
func (q *Queue) Stats(platform models.Platform, maxRetries int) Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var s Stats
	for _, e := range q.entries {
		if e.Platform != platform {
			continue
		}
		s.TotalEntries++
		if e.RetryCount < maxRetries {
			s.RetryableEntries++
		} else {
			s.ExhaustedRetries++
		}
	}
	return s
}

// PurgeOld removes entries created before olderThan ago.
func (q *Queue) PurgeOld(olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	cutoff := q.now().Add(-olderThan)
	n := 0
	for key, e := range q.entries {
		if e.CreatedAt.Before(cutoff) {
			delete(q.entries, key)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	q.logger.WithFields(logrus.Fields{"count": n, "older_than": olderThan.String()}).Info("purged old DLQ entries")
	return n, q.save()
}

func (q *Queue) save() error {
	list := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		list = append(list, *e)
	}
	sortEntries(list)
	return storage.WriteJSONFile(q.path, list)
}

func sortEntries(list []Entry) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return entryKey(list[i].Platform, list[i].Name) < entryKey(list[j].Platform, list[j].Name)
	})
}
