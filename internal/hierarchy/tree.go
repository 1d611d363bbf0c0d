// Package hierarchy answers structural questions about the category tree and
// moves categories without ever creating a cycle.
package hierarchy

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"catalog-core/internal/domain"

	"github.com/google/uuid"
)

// Node is a category with its ordered children.
type Node struct {
	Category *domain.Category `json:"category"`
	Children []*Node          `json:"children,omitempty"`
}

// compareSiblings orders by DisplayOrder, then case-insensitive name, then id.
func compareSiblings(a, b *domain.Category) int {
	if c := cmp.Compare(a.DisplayOrder, b.DisplayOrder); c != 0 {
		return c
	}
	if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
		return c
	}
	return strings.Compare(a.ID.String(), b.ID.String())
}

// index groups categories by parent id. Roots are under uuid.Nil.
func index(categories []*domain.Category) (map[uuid.UUID]*domain.Category, map[uuid.UUID][]*domain.Category) {
	byID := make(map[uuid.UUID]*domain.Category, len(categories))
	children := make(map[uuid.UUID][]*domain.Category)
	for _, c := range categories {
		byID[c.ID] = c
	}
	for _, c := range categories {
		parent := uuid.Nil
		if c.ParentCategoryID != nil {
			parent = *c.ParentCategoryID
		}
		children[parent] = append(children[parent], c)
	}
	for _, list := range children {
		slices.SortFunc(list, compareSiblings)
	}
	return byID, children
}

// BuildTree arranges categories into ordered trees. With a nil rootID the
// forest of main categories is returned; otherwise the single tree rooted at
// rootID. Categories whose parent is not in the input are left out. A cycle
// yields ErrHierarchyCorrupted; for the full forest that includes cycles no
// main category reaches.
func BuildTree(categories []*domain.Category, rootID *uuid.UUID) ([]*Node, error) {
	byID, children := index(categories)

	var roots []*domain.Category
	if rootID == nil {
		roots = children[uuid.Nil]
	} else {
		root, ok := byID[*rootID]
		if !ok {
			return nil, fmt.Errorf("%w: category %s", domain.ErrNotFound, *rootID)
		}
		roots = []*domain.Category{root}
	}

	visited := make(map[uuid.UUID]bool, len(categories))
	out := make([]*Node, 0, len(roots))
	var stack []*Node
	for _, r := range roots {
		n := &Node{Category: r}
		out = append(out, n)
		stack = append(stack, n)
	}

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		id := node.Category.ID
		if visited[id] {
			return nil, fmt.Errorf("%w: category %s reached twice", domain.ErrHierarchyCorrupted, id)
		}
		visited[id] = true
		for _, child := range children[id] {
			n := &Node{Category: child}
			node.Children = append(node.Children, n)
			stack = append(stack, n)
		}
	}
	if rootID == nil && len(visited) < len(categories) {
		if err := detached(byID, visited); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// detached checks the categories the forest walk did not reach. Each must
// lead up to a parent missing from the input; coming back to itself is a cycle.
func detached(byID map[uuid.UUID]*domain.Category, visited map[uuid.UUID]bool) error {
	settled := make(map[uuid.UUID]bool)
	for id := range byID {
		if visited[id] || settled[id] {
			continue
		}
		chain := map[uuid.UUID]bool{}
		for current := byID[id]; current != nil; {
			if chain[current.ID] {
				return fmt.Errorf("%w: category %s is its own ancestor", domain.ErrHierarchyCorrupted, current.ID)
			}
			if settled[current.ID] || visited[current.ID] || current.ParentCategoryID == nil {
				break
			}
			chain[current.ID] = true
			current = byID[*current.ParentCategoryID]
		}
		for c := range chain {
			settled[c] = true
		}
	}
	return nil
}
