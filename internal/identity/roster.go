package identity

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/rohankatakam/collabgraph/internal/errors"
)

// AliasMap resolves any known alias of a person to their master id.
type AliasMap struct {
	aliases   map[string]string
	masters   sets.String
	Conflicts []AliasConflict
}

// AliasConflict records an alias claimed by two masters. The later roster
// line wins.
type AliasConflict struct {
	Alias    string
	Previous string
	Master   string
	Line     int
}

// MatchKey is the form aliases are compared in: trimmed, lowercased, with
// any '@' removed.
func MatchKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "@", "")
}

// NewAliasMap returns an empty map.
func NewAliasMap() *AliasMap {
	return &AliasMap{aliases: map[string]string{}, masters: sets.NewString()}
}

// Add registers master and its aliases. The master always resolves to itself.
func (m *AliasMap) Add(master string, aliases ...string) {
	m.add(0, master, aliases)
}

func (m *AliasMap) add(line int, master string, aliases []string) {
	m.masters.Insert(master)
	for _, part := range append([]string{master}, aliases...) {
		key := MatchKey(part)
		if key == "" {
			continue
		}
		if prev, ok := m.aliases[key]; ok && prev != master {
			m.Conflicts = append(m.Conflicts, AliasConflict{Alias: key, Previous: prev, Master: master, Line: line})
		}
		m.aliases[key] = master
	}
}

// Resolve returns the master id for a node id, false when the id is not on
// the roster.
func (m *AliasMap) Resolve(id string) (string, bool) {
	master, ok := m.aliases[MatchKey(id)]
	return master, ok
}

// Masters returns the master ids in sorted order.
func (m *AliasMap) Masters() []string {
	return m.masters.List()
}

// Len is the number of distinct aliases, masters included.
func (m *AliasMap) Len() int {
	return len(m.aliases)
}

// ParseRoster reads "master,alias1,alias2,..." lines. Blank columns are
// ignored, so the first non-empty column is the master; lines with no
// non-empty column are skipped.
func ParseRoster(r io.Reader) (*AliasMap, error) {
	m := NewAliasMap()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		var parts []string
		for _, p := range strings.Split(scanner.Text(), ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}
		m.add(lineNo, parts[0], parts[1:])
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.InputError(err, "failed to read roster")
	}
	return m, nil
}

// LoadRoster parses the roster file at path.
func LoadRoster(path string) (*AliasMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to open roster %s", path)
	}
	defer f.Close()

	m, err := ParseRoster(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
