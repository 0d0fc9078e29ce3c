package domain

import (
	"fmt"
	"sort"
)

// MenuNode is one entry of the navigation tree.
type MenuNode struct {
	ID                  string          `json:"id"`
	ParentID            string          `json:"parent_id,omitempty"`
	Title               string          `json:"title"`
	Icon                string          `json:"icon,omitempty"`
	Route               string          `json:"route,omitempty"`
	SortOrder           int             `json:"sort_order"`
	RequiredPermissions []PermissionKey `json:"required_permissions,omitempty"`
	Children            []MenuNode      `json:"children,omitempty"`
}

// BuildMenuTree assembles flat rows keyed by parent id into an ordered forest.
// Rows referencing an unknown parent, duplicate ids and cycles are rejected.
func BuildMenuTree(rows []MenuNode) ([]MenuNode, error) {
	byID := make(map[string]MenuNode, len(rows))
	children := make(map[string][]string, len(rows))
	var roots []string

	for _, row := range rows {
		if row.ID == "" {
			return nil, fmt.Errorf("%w: node without id", ErrInvalidMenuTree)
		}
		if _, dup := byID[row.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node %q", ErrInvalidMenuTree, row.ID)
		}
		row.Children = nil
		byID[row.ID] = row
	}
	for _, row := range rows {
		if row.ParentID == "" {
			roots = append(roots, row.ID)
			continue
		}
		if _, ok := byID[row.ParentID]; !ok {
			return nil, fmt.Errorf("%w: node %q references unknown parent %q", ErrInvalidMenuTree, row.ID, row.ParentID)
		}
		children[row.ParentID] = append(children[row.ParentID], row.ID)
	}

	less := func(ids []string) func(i, j int) bool {
		return func(i, j int) bool {
			a, b := byID[ids[i]], byID[ids[j]]
			if a.SortOrder != b.SortOrder {
				return a.SortOrder < b.SortOrder
			}
			return a.ID < b.ID
		}
	}

	visited := make(map[string]bool, len(rows))
	var build func(id string) MenuNode
	build = func(id string) MenuNode {
		visited[id] = true
		node := byID[id]
		kids := children[id]
		sort.SliceStable(kids, less(kids))
		for _, kid := range kids {
			node.Children = append(node.Children, build(kid))
		}
		return node
	}

	sort.SliceStable(roots, less(roots))
	forest := make([]MenuNode, 0, len(roots))
	for _, id := range roots {
		forest = append(forest, build(id))
	}

	// Anything unreachable from a root sits on a parent cycle.
	if len(visited) != len(byID) {
		for id := range byID {
			if !visited[id] {
				return nil, fmt.Errorf("%w: node %q is part of a cycle", ErrInvalidMenuTree, id)
			}
		}
	}
	return forest, nil
}
