// Package tree provides utilities for working with project file trees.
//
// A tree is the ordered slice of root nodes of a project. Paths are
// materialized: every node stores "/" + the names of its ancestors and itself.
package tree

import (
	"strings"

	"github.com/jmgilman/go/errors"

	"github.com/fruitsalade/projectfs/pkg/models"
)

// Separator joins path segments.
const Separator = "/"

// FindNode finds a node by its ID (depth-first).
func FindNode(roots []*models.FileNode, id string) (*models.FileNode, bool) {
	for _, n := range roots {
		if n.ID == id {
			return n, true
		}
		if found, ok := FindNode(n.Children, id); ok {
			return found, true
		}
	}
	return nil, false
}

// FindByPath resolves a materialized path.
func FindByPath(roots []*models.FileNode, path string) (*models.FileNode, bool) {
	for _, n := range roots {
		if n.Path == path {
			return n, true
		}
		if strings.HasPrefix(path, n.Path+Separator) {
			if found, ok := FindByPath(n.Children, path); ok {
				return found, true
			}
		}
	}
	return nil, false
}

// FindParent returns the folder holding id. A root node has no parent:
// the result is (nil, true).
func FindParent(roots []*models.FileNode, id string) (*models.FileNode, bool) {
	for _, n := range roots {
		if n.ID == id {
			return nil, true
		}
	}
	var walk func(parent *models.FileNode) (*models.FileNode, bool)
	walk = func(parent *models.FileNode) (*models.FileNode, bool) {
		for _, child := range parent.Children {
			if child.ID == id {
				return parent, true
			}
			if p, ok := walk(child); ok {
				return p, true
			}
		}
		return nil, false
	}
	for _, n := range roots {
		if p, ok := walk(n); ok {
			return p, true
		}
	}
	return nil, false
}

// RemoveNode detaches the node with the given id, together with its subtree.
// It returns the (possibly shortened) roots and false if id is absent.
func RemoveNode(roots []*models.FileNode, id string) ([]*models.FileNode, bool) {
	for i, n := range roots {
		if n.ID == id {
			return append(roots[:i:i], roots[i+1:]...), true
		}
	}
	for _, n := range roots {
		if children, ok := RemoveNode(n.Children, id); ok {
			n.Children = children
			return roots, true
		}
	}
	return roots, false
}

// ComputePath reconstructs the path of id by walking its ancestors.
func ComputePath(roots []*models.FileNode, id string) (string, bool) {
	names, ok := ancestry(roots, id, nil)
	if !ok {
		return "", false
	}
	return Separator + strings.Join(names, Separator), true
}

func ancestry(nodes []*models.FileNode, id string, prefix []string) ([]string, bool) {
	for _, n := range nodes {
		chain := append(prefix[:len(prefix):len(prefix)], n.Name)
		if n.ID == id {
			return chain, true
		}
		if found, ok := ancestry(n.Children, id, chain); ok {
			return found, true
		}
	}
	return nil, false
}

// BuildChildPath constructs a child path from parent + name.
func BuildChildPath(parentPath, name string) string {
	if parentPath == "" || parentPath == Separator {
		return Separator + name
	}
	return parentPath + Separator + name
}

// RefreshPaths recomputes Path and ParentID for every node in the tree.
func RefreshPaths(roots []*models.FileNode) {
	for _, n := range roots {
		n.ParentID = ""
		RefreshSubtree(n, "")
	}
}

// RefreshSubtree recomputes the path of node (under parentPath) and of all
// its descendants.
func RefreshSubtree(node *models.FileNode, parentPath string) {
	node.Path = BuildChildPath(parentPath, node.Name)
	for _, child := range node.Children {
		child.ParentID = node.ID
		RefreshSubtree(child, node.Path)
	}
}

// Insert places node under the folder parentID, or at the root when parentID
// is empty. The node's ParentID and path (and its subtree's) are set.
func Insert(roots []*models.FileNode, parentID string, node *models.FileNode) ([]*models.FileNode, error) {
	if parentID == "" {
		if hasName(roots, node.Name) {
			return roots, errors.Newf(errors.CodeAlreadyExists, "%q already exists at the project root", node.Name)
		}
		node.ParentID = ""
		RefreshSubtree(node, "")
		return append(roots, node), nil
	}

	parent, ok := FindNode(roots, parentID)
	if !ok {
		return roots, errors.Newf(errors.CodeNotFound, "parent %s not found", parentID)
	}
	if !parent.IsFolder() {
		return roots, errors.Newf(errors.CodeInvalidInput, "parent %s is not a folder", parentID)
	}
	if hasName(parent.Children, node.Name) {
		return roots, errors.Newf(errors.CodeAlreadyExists, "%q already exists in %s", node.Name, parent.Path)
	}
	node.ParentID = parent.ID
	RefreshSubtree(node, parent.Path)
	parent.Children = append(parent.Children, node)
	return roots, nil
}

// Siblings returns the slice that holds id (the roots or its parent's children).
func Siblings(roots []*models.FileNode, id string) ([]*models.FileNode, bool) {
	parent, ok := FindParent(roots, id)
	if !ok {
		return nil, false
	}
	if parent == nil {
		return roots, true
	}
	return parent.Children, true
}

func hasName(nodes []*models.FileNode, name string) bool {
	for _, n := range nodes {
		if n.Name == name {
			return true
		}
	}
	return false
}

// Walk visits every node depth-first, parents before children.
func Walk(roots []*models.FileNode, fn func(*models.FileNode)) {
	for _, n := range roots {
		fn(n)
		Walk(n.Children, fn)
	}
}

// CountNodes counts all nodes in a tree.
func CountNodes(roots []*models.FileNode) int {
	count := 0
	Walk(roots, func(*models.FileNode) { count++ })
	return count
}

// Flatten returns all nodes in a flat map keyed by ID.
func Flatten(roots []*models.FileNode) map[string]*models.FileNode {
	result := make(map[string]*models.FileNode)
	Walk(roots, func(n *models.FileNode) { result[n.ID] = n })
	return result
}

// DirtyFiles returns the files with IsDirty set.
func DirtyFiles(roots []*models.FileNode) []*models.FileNode {
	var dirty []*models.FileNode
	Walk(roots, func(n *models.FileNode) {
		if n.IsFile() && n.IsDirty {
			dirty = append(dirty, n)
		}
	})
	return dirty
}

// Validate checks the tree-wide invariants: known kinds, unique ids, paths
// consistent with ancestry and children only on folders.
func Validate(roots []*models.FileNode) error {
	seen := make(map[string]bool)
	var check func(nodes []*models.FileNode, parent *models.FileNode) error
	check = func(nodes []*models.FileNode, parent *models.FileNode) error {
		parentPath := ""
		parentID := ""
		if parent != nil {
			parentPath = parent.Path
			parentID = parent.ID
		}
		for _, n := range nodes {
			if err := n.Validate(); err != nil {
				return errors.Wrap(err, errors.CodeSchemaFailed, "invalid node")
			}
			if seen[n.ID] {
				return errors.Newf(errors.CodeSchemaFailed, "duplicate node id %s", n.ID)
			}
			seen[n.ID] = true
			if want := BuildChildPath(parentPath, n.Name); n.Path != want {
				return errors.Newf(errors.CodeSchemaFailed, "node %s has path %q, want %q", n.ID, n.Path, want)
			}
			if n.ParentID != parentID {
				return errors.Newf(errors.CodeSchemaFailed, "node %s has parent %q, want %q", n.ID, n.ParentID, parentID)
			}
			if err := check(n.Children, n); err != nil {
				return err
			}
		}
		return nil
	}
	return check(roots, nil)
}
