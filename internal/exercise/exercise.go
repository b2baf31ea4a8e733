// Package exercise builds the multiplication drill catalog and answers
// correctness queries.
package exercise

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/verte-zerg/tuimul/internal/model"
)

// ID formats the stable identifier for a factor pair.
func ID(a, b int) string {
	return fmt.Sprintf("%dx%d", a, b)
}

// ParseID decodes an exercise identifier back into its factors.
func ParseID(id string) (a, b int, err error) {
	left, right, ok := strings.Cut(id, "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid exercise id %q", id)
	}
	a, err = strconv.Atoi(left)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid exercise id %q: %w", id, err)
	}
	b, err = strconv.Atoi(right)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid exercise id %q: %w", id, err)
	}
	return a, b, nil
}

// GenerateForTables returns the full cross product of the selected tables,
// one exercise per ordered factor pair, in nested iteration order.
func GenerateForTables(tables []int) []model.Exercise {
	exercises := make([]model.Exercise, 0, len(tables)*len(tables))
	for _, a := range tables {
		for _, b := range tables {
			exercises = append(exercises, model.Exercise{ID: ID(a, b), A: a, B: b})
		}
	}
	return exercises
}

// CorrectAnswer returns the product of the exercise factors.
func CorrectAnswer(e model.Exercise) int {
	return e.A * e.B
}

// IsCorrect reports whether answer equals the exercise product.
func IsCorrect(e model.Exercise, answer int) bool {
	return CorrectAnswer(e) == answer
}

// FilterByIDs retains the exercises whose id is in ids, preserving the
// order of all.
func FilterByIDs(all []model.Exercise, ids []string) []model.Exercise {
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	filtered := make([]model.Exercise, 0, len(ids))
	for _, e := range all {
		if _, ok := idSet[e.ID]; ok {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// IDs returns the identifiers of the given exercises in order.
func IDs(exercises []model.Exercise) []string {
	ids := make([]string, len(exercises))
	for i, e := range exercises {
		ids[i] = e.ID
	}
	return ids
}
