// Package models contains the data types shared by the project store, the sync
// engine and the remote endpoint.
package models

import (
	"fmt"
	"time"
)

// Kind tags a node as a file or a folder.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindFile, KindFolder:
		return true
	default:
		return false
	}
}

// FileNode represents a file or folder in a project tree.
//
// Content and Language are only meaningful for files; Children only for folders.
// ParentID is a lookup aid: the tree (the Children slices) owns the nodes.
type FileNode struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Kind         Kind        `json:"type"`
	Content      string      `json:"content,omitempty"`
	Language     string      `json:"language,omitempty"`
	IsDirty      bool        `json:"isDirty"`
	LastModified time.Time   `json:"lastModified"`
	ParentID     string      `json:"parentId,omitempty"`
	Path         string      `json:"path"`
	Children     []*FileNode `json:"children,omitempty"`
}

// IsFile returns true for file nodes.
func (n *FileNode) IsFile() bool { return n.Kind == KindFile }

// IsFolder returns true for folder nodes.
func (n *FileNode) IsFolder() bool { return n.Kind == KindFolder }

// Touch marks the node dirty and refreshes its modification time.
func (n *FileNode) Touch(now time.Time) {
	n.IsDirty = true
	n.LastModified = now
}

// Validate checks the per-node invariants (not the tree-wide ones).
func (n *FileNode) Validate() error {
	switch n.Kind {
	case KindFile:
		if len(n.Children) > 0 {
			return fmt.Errorf("file %s has children", n.ID)
		}
	case KindFolder:
		if n.Content != "" || n.Language != "" {
			return fmt.Errorf("folder %s has content", n.ID)
		}
	default:
		return fmt.Errorf("node %s has unknown kind %q", n.ID, n.Kind)
	}
	return nil
}

// Clone returns a deep copy of the node and its subtree.
func (n *FileNode) Clone() *FileNode {
	if n == nil {
		return nil
	}
	c := *n
	if n.Children != nil {
		c.Children = make([]*FileNode, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// SyncState is the outcome-oriented status of a project.
type SyncState string

const (
	SyncSynced  SyncState = "synced"
	SyncPending SyncState = "pending"
	SyncError   SyncState = "error"
	SyncOffline SyncState = "offline"
)

// ProjectFolder is the aggregate root for one project's workspace.
type ProjectFolder struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Files      []*FileNode `json:"files"`
	LastSync   *time.Time  `json:"lastSync,omitempty"`
	IsOnline   bool        `json:"isOnline"`
	SyncStatus SyncState   `json:"syncStatus"`
}

// Clone returns a deep copy of the project.
func (p *ProjectFolder) Clone() *ProjectFolder {
	if p == nil {
		return nil
	}
	c := *p
	if p.LastSync != nil {
		t := *p.LastSync
		c.LastSync = &t
	}
	if p.Files != nil {
		c.Files = make([]*FileNode, len(p.Files))
		for i, f := range p.Files {
			c.Files[i] = f.Clone()
		}
	}
	return &c
}

// SyncStatus is the process-wide view of synchronization, owned by the sync engine.
type SyncStatus struct {
	IsOnline       bool       `json:"isOnline"`
	LastSync       *time.Time `json:"lastSync,omitempty"`
	PendingChanges int        `json:"pendingChanges"`
	SyncInProgress bool       `json:"syncInProgress"`
	State          SyncState  `json:"syncStatus"`
	Error          string     `json:"error,omitempty"`
}

// HistoryState is the persisted form of a file's undo/redo stacks.
// Past is oldest first; Future is most-recent-undo first.
type HistoryState struct {
	Past    []string `json:"past"`
	Present string   `json:"present"`
	Future  []string `json:"future"`
}

// EditorSettings holds editor preferences and the recently opened projects.
type EditorSettings struct {
	Theme            string        `json:"theme"`
	FontSize         int           `json:"fontSize"`
	TabSize          int           `json:"tabSize"`
	WordWrap         bool          `json:"wordWrap"`
	AutoSave         bool          `json:"autoSave"`
	AutoSaveInterval time.Duration `json:"autoSaveInterval"`
	RecentProjects   []string      `json:"recentProjects"`
}

// DefaultEditorSettings returns the settings used when none are stored.
func DefaultEditorSettings() EditorSettings {
	return EditorSettings{
		Theme:            "dark",
		FontSize:         14,
		TabSize:          4,
		WordWrap:         true,
		AutoSave:         true,
		AutoSaveInterval: 30 * time.Second,
	}
}
