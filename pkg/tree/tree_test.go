package tree

import (
	"testing"

	"github.com/jmgilman/go/errors"

	"github.com/fruitsalade/projectfs/pkg/models"
)

// sample builds:
//
//	/A (folder) -> /A/B (folder) -> /A/B/C (file)
//	/readme.md (file)
func sample() []*models.FileNode {
	roots := []*models.FileNode{
		{ID: "a", Name: "A", Kind: models.KindFolder, Children: []*models.FileNode{
			{ID: "b", Name: "B", Kind: models.KindFolder, Children: []*models.FileNode{
				{ID: "c", Name: "C", Kind: models.KindFile, Content: "x"},
			}},
		}},
		{ID: "r", Name: "readme.md", Kind: models.KindFile},
	}
	RefreshPaths(roots)
	return roots
}

func TestFindNode(t *testing.T) {
	roots := sample()

	tests := []struct {
		id    string
		found bool
	}{
		{"a", true},
		{"b", true},
		{"c", true},
		{"r", true},
		{"nonexistent", false},
	}
	for _, tt := range tests {
		node, ok := FindNode(roots, tt.id)
		if ok != tt.found {
			t.Errorf("FindNode(%q) found=%v, want %v", tt.id, ok, tt.found)
		}
		if ok && node.ID != tt.id {
			t.Errorf("FindNode(%q).ID = %q", tt.id, node.ID)
		}
	}

	if _, ok := FindNode(nil, "a"); ok {
		t.Error("FindNode(nil, a) should not find anything")
	}
}

func TestComputePath(t *testing.T) {
	roots := sample()

	tests := []struct {
		id, want string
	}{
		{"a", "/A"},
		{"b", "/A/B"},
		{"c", "/A/B/C"},
		{"r", "/readme.md"},
	}
	for _, tt := range tests {
		got, ok := ComputePath(roots, tt.id)
		if !ok || got != tt.want {
			t.Errorf("ComputePath(%q) = %q, %v; want %q", tt.id, got, ok, tt.want)
		}
	}

	if _, ok := ComputePath(roots, "missing"); ok {
		t.Error("ComputePath(missing) should fail")
	}
}

func TestRemoveNode(t *testing.T) {
	roots := sample()

	roots, ok := RemoveNode(roots, "b")
	if !ok {
		t.Fatal("RemoveNode(b) returned false")
	}
	if _, found := FindNode(roots, "b"); found {
		t.Error("b still present after remove")
	}
	if _, found := FindNode(roots, "c"); found {
		t.Error("descendant c still present after removing b")
	}

	roots, ok = RemoveNode(roots, "r")
	if !ok || len(roots) != 1 {
		t.Fatalf("RemoveNode(root r) = %v, %d roots", ok, len(roots))
	}

	// Remove nonexistent: reported, tree untouched
	before := CountNodes(roots)
	roots, ok = RemoveNode(roots, "z")
	if ok {
		t.Error("RemoveNode(z) should return false")
	}
	if CountNodes(roots) != before {
		t.Error("remove nonexistent changed the tree")
	}
}

func TestInsert(t *testing.T) {
	roots := sample()

	node := &models.FileNode{ID: "d", Name: "D.py", Kind: models.KindFile}
	roots, err := Insert(roots, "b", node)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if node.Path != "/A/B/D.py" || node.ParentID != "b" {
		t.Errorf("inserted node path=%q parent=%q", node.Path, node.ParentID)
	}

	tests := []struct {
		name     string
		parentID string
		node     *models.FileNode
		code     errors.ErrorCode
	}{
		{"duplicate sibling", "b", &models.FileNode{ID: "e", Name: "C", Kind: models.KindFile}, errors.CodeAlreadyExists},
		{"duplicate root", "", &models.FileNode{ID: "f", Name: "A", Kind: models.KindFolder}, errors.CodeAlreadyExists},
		{"missing parent", "zzz", &models.FileNode{ID: "g", Name: "g", Kind: models.KindFile}, errors.CodeNotFound},
		{"file parent", "c", &models.FileNode{ID: "h", Name: "h", Kind: models.KindFile}, errors.CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Insert(roots, tt.parentID, tt.node)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
		})
	}

	roots, err = Insert(roots, "", &models.FileNode{ID: "top", Name: "top.txt", Kind: models.KindFile})
	if err != nil {
		t.Fatalf("Insert root: %v", err)
	}
	if len(roots) != 3 {
		t.Errorf("got %d roots, want 3", len(roots))
	}
	if err := Validate(roots); err != nil {
		t.Errorf("Validate after inserts: %v", err)
	}
}

func TestRefreshSubtreeCascadesRename(t *testing.T) {
	roots := sample()

	a, _ := FindNode(roots, "a")
	a.Name = "Renamed"
	RefreshSubtree(a, "")

	c, _ := FindNode(roots, "c")
	if c.Path != "/Renamed/B/C" {
		t.Errorf("descendant path = %q, want /Renamed/B/C", c.Path)
	}
	if err := Validate(roots); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestFindParent(t *testing.T) {
	roots := sample()

	p, ok := FindParent(roots, "c")
	if !ok || p.ID != "b" {
		t.Errorf("FindParent(c) = %v, %v", p, ok)
	}
	p, ok = FindParent(roots, "a")
	if !ok || p != nil {
		t.Errorf("FindParent(root) = %v, %v; want nil, true", p, ok)
	}
	if _, ok := FindParent(roots, "zzz"); ok {
		t.Error("FindParent(zzz) should fail")
	}
}

func TestFindByPath(t *testing.T) {
	roots := sample()

	for _, path := range []string{"/A", "/A/B", "/A/B/C", "/readme.md"} {
		node, ok := FindByPath(roots, path)
		if !ok || node.Path != path {
			t.Errorf("FindByPath(%q) failed", path)
		}
	}
	if _, ok := FindByPath(roots, "/A/nope"); ok {
		t.Error("FindByPath(/A/nope) should fail")
	}
}

func TestBuildChildPath(t *testing.T) {
	tests := []struct {
		parent, name, want string
	}{
		{"", "file.txt", "/file.txt"},
		{"/", "file.txt", "/file.txt"},
		{"/dir", "file.txt", "/dir/file.txt"},
		{"/a/b", "c", "/a/b/c"},
	}
	for _, tt := range tests {
		got := BuildChildPath(tt.parent, tt.name)
		if got != tt.want {
			t.Errorf("BuildChildPath(%q, %q) = %q, want %q", tt.parent, tt.name, got, tt.want)
		}
	}
}

func TestCountAndFlatten(t *testing.T) {
	roots := sample()
	if got := CountNodes(roots); got != 4 {
		t.Errorf("CountNodes = %d, want 4", got)
	}
	if got := CountNodes(nil); got != 0 {
		t.Errorf("CountNodes(nil) = %d, want 0", got)
	}

	flat := Flatten(roots)
	for _, id := range []string{"a", "b", "c", "r"} {
		if _, ok := flat[id]; !ok {
			t.Errorf("Flatten missing %q", id)
		}
	}
}

func TestDirtyFiles(t *testing.T) {
	roots := sample()
	c, _ := FindNode(roots, "c")
	c.IsDirty = true
	a, _ := FindNode(roots, "a")
	a.IsDirty = true // folders never count

	dirty := DirtyFiles(roots)
	if len(dirty) != 1 || dirty[0].ID != "c" {
		t.Errorf("DirtyFiles = %v", dirty)
	}
}

func TestValidate(t *testing.T) {
	roots := sample()
	if err := Validate(roots); err != nil {
		t.Fatalf("Validate(sample): %v", err)
	}

	c, _ := FindNode(roots, "c")
	c.Path = "/stale"
	if err := Validate(roots); err == nil {
		t.Error("Validate should reject a stale path")
	}

	roots = sample()
	roots = append(roots, &models.FileNode{ID: "a", Name: "dup", Kind: models.KindFile, Path: "/dup"})
	if err := Validate(roots); err == nil {
		t.Error("Validate should reject duplicate ids")
	}

	roots = sample()
	roots[1].Kind = "symlink"
	if err := Validate(roots); err == nil {
		t.Error("Validate should reject unknown kinds")
	}
}
