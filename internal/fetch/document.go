package fetch

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/collabgraph/internal/errors"
	"github.com/rohankatakam/collabgraph/internal/models"
	"github.com/rohankatakam/collabgraph/internal/storage"
)

// Source harvests one organization or group into a document.
type Source interface {
	Platform() models.Platform
	FetchOrganization(ctx context.Context, name string) (*models.OrgDocument, error)
}

// DocumentPath is where the document for name is written, e.g.
// data/gitlab_acme_platform.json for the group acme/platform.
func DocumentPath(dir string, platform models.Platform, name string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(name)
	return filepath.Join(dir, string(platform)+"_"+safe+".json")
}

// Result lists the documents one Run wrote.
type Result struct {
	Paths    []string
	Fetched  []string
	Failed   map[string]error
	Duration time.Duration
}

// Run fetches each name from src into dir. A failing organization is
// logged and recorded; the others are still written.
func Run(ctx context.Context, src Source, names []string, dir string, logger *logrus.Entry) (*Result, error) {
	start := time.Now()
	res := &Result{Failed: map[string]error{}}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		doc, err := src.FetchOrganization(ctx, name)
		if err != nil {
			logger.WithError(err).WithField("org", name).Error("fetch failed")
			res.Failed[name] = err
			continue
		}
		path := DocumentPath(dir, src.Platform(), name)
		if err := storage.WriteJSONFile(path, doc); err != nil {
			return res, err
		}
		logger.WithFields(logrus.Fields{
			"org":          name,
			"repositories": len(doc.Repositories),
			"path":         path,
		}).Info("wrote organization document")
		res.Paths = append(res.Paths, path)
		res.Fetched = append(res.Fetched, name)
	}
	res.Duration = time.Since(start)
	if len(res.Paths) == 0 && len(names) > 0 {
		return res, errors.ExternalErrorf(nil, "no %s organization could be fetched", src.Platform())
	}
	return res, nil
}
