package objectstore

import (
	"context"
	"fmt"
)

// ListBounded collects at most limit objects under prefix by walking pages.
// It never requests more than limit objects in total, regardless of how many
// exist. truncated reports whether the listing stopped before the end of
// the namespace.
func ListBounded(ctx context.Context, store Store, prefix string, limit int) (objects []Object, truncated bool, err error) {
	if limit <= 0 {
		return nil, false, fmt.Errorf("list limit must be positive, got %d", limit)
	}

	token := ""
	for len(objects) < limit {
		if err := ctx.Err(); err != nil {
			return objects, true, err
		}

		remaining := limit - len(objects)
		pageMax := DefaultPageSize
		if remaining < pageMax {
			pageMax = remaining
		}

		page, err := store.List(ctx, ListOptions{
			Prefix:     prefix,
			MaxKeys:    pageMax,
			StartAfter: token,
		})
		if err != nil {
			return objects, false, err
		}

		objects = append(objects, page.Objects...)
		if !page.Truncated {
			return objects, false, nil
		}
		token = page.NextToken
	}

	return objects, true, nil
}
