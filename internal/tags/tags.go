// Package tags resolves job tag names to the worker types able to run them.
package tags

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zulandar/graderqueue/internal/apperr"
	"github.com/zulandar/graderqueue/internal/models"
	"gorm.io/gorm"
)

// Router reads the static tag and worker-type catalog.
type Router struct {
	db *gorm.DB
}

// NewRouter returns a Router backed by db.
func NewRouter(db *gorm.DB) *Router {
	return &Router{db: db}
}

// ParseNames splits a comma separated tag list, trimming blanks and duplicates.
func ParseNames(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// TagNamesToIDs returns the ids of the known tags among names. Unknown names
// are dropped.
func (r *Router) TagNamesToIDs(ctx context.Context, names []string) ([]uint, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Tag{}).
		Where("name IN ?", names).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("tags: lookup names: %w", err)
	}
	return ids, nil
}

// TagIDsToWorkerTypeIDs returns the worker types honoring every tag in tagIDs.
// An empty tag set yields an empty result, meaning any worker type.
func (r *Router) TagIDsToWorkerTypeIDs(ctx context.Context, tagIDs []uint) ([]uint, error) {
	tagIDs = uniq(tagIDs)
	if len(tagIDs) == 0 {
		return nil, nil
	}
	var typeIDs []uint
	err := r.db.WithContext(ctx).Model(&models.TypeTag{}).
		Where("tag_id IN ?", tagIDs).
		Group("type_id").
		Having("COUNT(DISTINCT tag_id) = ?", len(tagIDs)).
		Order("type_id").
		Pluck("type_id", &typeIDs).Error
	if err != nil {
		return nil, fmt.Errorf("tags: lookup worker types: %w", err)
	}
	return typeIDs, nil
}

// Resolve maps requested tag names, plus the submitter's forced tag if any,
// to eligible worker types. An empty result means the job is unrestricted.
func (r *Router) Resolve(ctx context.Context, names []string, forceTag *uint) ([]uint, error) {
	tagIDs, err := r.TagNamesToIDs(ctx, names)
	if err != nil {
		return nil, apperr.Storage("Could not resolve tags.", err)
	}
	if forceTag != nil {
		tagIDs = append(tagIDs, *forceTag)
	}
	typeIDs, err := r.TagIDsToWorkerTypeIDs(ctx, tagIDs)
	if err != nil {
		return nil, apperr.Storage("Could not resolve tags.", err)
	}
	if len(typeIDs) == 0 && len(tagIDs) > 0 {
		label := strings.Join(names, ",")
		if label == "" {
			label = "forced by this platform"
		}
		return nil, apperr.Routing(fmt.Sprintf("No server type can execute jobs with tags %s.", label))
	}
	return typeIDs, nil
}

func uniq(ids []uint) []uint {
	if len(ids) == 0 {
		return ids
	}
	out := append([]uint(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}
