package hierarchy

import (
	"fmt"
	"slices"

	"catalog-core/internal/domain"

	"github.com/google/uuid"
)

// descendantsOf returns the ids below id in breadth-first order, computed
// from an in-memory slice. Tests compare the engine against it.
func descendantsOf(categories []*domain.Category, id uuid.UUID) ([]uuid.UUID, error) {
	_, children := index(categories)
	visited := map[uuid.UUID]bool{id: true}
	var out []uuid.UUID
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range children[current] {
			if visited[child.ID] {
				return nil, fmt.Errorf("%w: category %s reached twice", domain.ErrHierarchyCorrupted, child.ID)
			}
			visited[child.ID] = true
			out = append(out, child.ID)
			queue = append(queue, child.ID)
		}
	}
	return out, nil
}

// ancestorsOf returns the ids above id, root first.
func ancestorsOf(categories []*domain.Category, id uuid.UUID) ([]uuid.UUID, error) {
	byID, _ := index(categories)
	current, ok := byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: category %s", domain.ErrNotFound, id)
	}
	visited := map[uuid.UUID]bool{id: true}
	var out []uuid.UUID
	for current.ParentCategoryID != nil {
		parentID := *current.ParentCategoryID
		if visited[parentID] {
			return nil, fmt.Errorf("%w: category %s is its own ancestor", domain.ErrHierarchyCorrupted, parentID)
		}
		visited[parentID] = true
		parent, ok := byID[parentID]
		if !ok {
			break
		}
		out = append(out, parentID)
		current = parent
	}
	slices.Reverse(out)
	return out, nil
}
