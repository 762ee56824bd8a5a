package graph

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/collabgraph/internal/errors"
)

const (
	// DefaultCategory is assigned to contributors absent from every roster.
	DefaultCategory = "Community"
	// ManualSource is the source recorded on injected nodes.
	ManualSource = "Manual Injection"
	// ManualRepo is the shared repository recorded on added links.
	ManualRepo = "Manual Connection"
)

// DefaultCliqueGroups are the categories whose members are all connected.
var DefaultCliqueGroups = []string{"Coordination", "UI/UX", "Research", "Security", "Product"}

// ManualNode is a person with no repository activity, added by hand.
type ManualNode struct {
	ID    string `yaml:"id"`
	Img   string `yaml:"img"`
	Group string `yaml:"group"`
}

// EdgeRule connects From to each id in To and to every member of ToGroups.
type EdgeRule struct {
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	ToGroups []string `yaml:"to_groups"`
}

// AnnotationConfig drives the annotation stage. CategoriesFile and
// ManualNodesFile are CSV alternatives to the inline maps, resolved relative
// to the YAML file.
type AnnotationConfig struct {
	DefaultCategory  string              `yaml:"default_category"`
	Categories       map[string]string   `yaml:"categories"`
	CategoriesFile   string              `yaml:"categories_file"`
	GroupAliases     map[string]string   `yaml:"group_aliases"`
	ManualNodes      []ManualNode        `yaml:"manual_nodes"`
	ManualNodesFile  string              `yaml:"manual_nodes_file"`
	CliqueGroups     []string            `yaml:"clique_groups"`
	CliqueExtensions map[string][]string `yaml:"clique_extensions"`
	Edges            []EdgeRule          `yaml:"edges"`
}

// DefaultAnnotationConfig has no rosters, only the default category, the
// standard clique groups, Marketing folded into Product and "Dados" read as
// "Data".
func DefaultAnnotationConfig() *AnnotationConfig {
	return &AnnotationConfig{
		DefaultCategory:  DefaultCategory,
		Categories:       map[string]string{},
		GroupAliases:     map[string]string{"Dados": "Data"},
		CliqueGroups:     append([]string(nil), DefaultCliqueGroups...),
		CliqueExtensions: map[string][]string{"Product": {"Marketing"}},
	}
}

// LoadAnnotationConfig reads the YAML file at path and any CSV files it
// references. Unset fields keep their defaults.
func LoadAnnotationConfig(path string) (*AnnotationConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "failed to read annotation config %s", path)
	}
	cfg, err := ParseAnnotationConfig(raw)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	if cfg.CategoriesFile != "" {
		f, err := os.Open(resolve(base, cfg.CategoriesFile))
		if err != nil {
			return nil, errors.FileSystemErrorf(err, "failed to open categories file %s", cfg.CategoriesFile)
		}
		defer f.Close()
		cats, err := ParseCategories(f)
		if err != nil {
			return nil, err
		}
		for user, cat := range cats {
			if _, inline := cfg.Categories[user]; !inline {
				cfg.Categories[user] = cat
			}
		}
	}
	if cfg.ManualNodesFile != "" {
		f, err := os.Open(resolve(base, cfg.ManualNodesFile))
		if err != nil {
			return nil, errors.FileSystemErrorf(err, "failed to open manual nodes file %s", cfg.ManualNodesFile)
		}
		defer f.Close()
		nodes, err := ParseManualNodes(f)
		if err != nil {
			return nil, err
		}
		cfg.ManualNodes = append(cfg.ManualNodes, nodes...)
	}
	return cfg, nil
}

// ParseAnnotationConfig decodes YAML over the defaults.
func ParseAnnotationConfig(raw []byte) (*AnnotationConfig, error) {
	cfg := DefaultAnnotationConfig()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.ValidationErrorf("invalid annotation config: %v", err)
	}
	if cfg.DefaultCategory == "" {
		cfg.DefaultCategory = DefaultCategory
	}
	if cfg.Categories == nil {
		cfg.Categories = map[string]string{}
	}
	for i, n := range cfg.ManualNodes {
		if strings.TrimSpace(n.ID) == "" {
			return nil, errors.ValidationErrorf("manual node %d has no id", i)
		}
	}
	for i, e := range cfg.Edges {
		if strings.TrimSpace(e.From) == "" {
			return nil, errors.ValidationErrorf("edge rule %d has no from", i)
		}
	}
	return cfg, nil
}

// ParseCategories reads "user,Category" lines. Lines without exactly two
// columns are ignored.
func ParseCategories(r io.Reader) (map[string]string, error) {
	cats := map[string]string{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), ",")
		if len(parts) != 2 {
			continue
		}
		user, cat := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if user == "" || cat == "" {
			continue
		}
		cats[user] = cat
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.InputError(err, "failed to read categories")
	}
	return cats, nil
}

// ParseManualNodes reads "Name,Image,Group" lines. The image column may
// itself contain commas: everything between the first and last column is the
// image URL.
func ParseManualNodes(r io.Reader) ([]ManualNode, error) {
	var nodes []ManualNode
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 3 {
			continue
		}
		nodes = append(nodes, ManualNode{
			ID:    strings.TrimSpace(parts[0]),
			Img:   strings.TrimSpace(strings.Join(parts[1:len(parts)-1], ",")),
			Group: strings.TrimSpace(parts[len(parts)-1]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.InputError(err, "failed to read manual nodes")
	}
	return nodes, nil
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
