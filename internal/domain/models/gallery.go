package models

import "time"

type CollectionPath struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// Collection is a node of the collection tree. Works are attached with an
// explicit per-collection order.
type Collection struct {
	ID             uint             `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	ParentID       *uint            `json:"parent_id"`
	SortOrder      int              `json:"sort_order"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	WorkCount      int              `json:"work_count"`
	Path           []CollectionPath `json:"path,omitempty"`
	SubCollections []Collection     `json:"sub_collections,omitempty"`
}

// CollectionTree is the forest returned by /collections/tree.
type CollectionTree []Collection

// Find returns the node with the given id, or nil.
func (t CollectionTree) Find(id uint) *Collection {
	for i := range t {
		if t[i].ID == id {
			return &t[i]
		}
		if found := CollectionTree(t[i].SubCollections).Find(id); found != nil {
			return found
		}
	}
	return nil
}

// Remove drops the node and its subtree. It reports whether anything was removed.
func (t CollectionTree) Remove(id uint) (CollectionTree, bool) {
	out := make(CollectionTree, 0, len(t))
	removed := false
	for _, c := range t {
		if c.ID == id {
			removed = true
			continue
		}
		sub, ok := CollectionTree(c.SubCollections).Remove(id)
		if ok {
			removed = true
			c.SubCollections = sub
		}
		out = append(out, c)
	}
	return out, removed
}

// IsDescendant reports whether candidate sits somewhere below ancestor.
func (t CollectionTree) IsDescendant(ancestor, candidate uint) bool {
	node := t.Find(ancestor)
	if node == nil {
		return false
	}
	return CollectionTree(node.SubCollections).Find(candidate) != nil
}

// Walk visits nodes depth first with their depth.
func (t CollectionTree) Walk(fn func(c Collection, depth int)) {
	t.walk(fn, 0)
}

func (t CollectionTree) walk(fn func(c Collection, depth int), depth int) {
	for _, c := range t {
		fn(c, depth)
		CollectionTree(c.SubCollections).walk(fn, depth+1)
	}
}

// Siblings returns the ids of the children of parent (nil means roots) in order.
func (t CollectionTree) Siblings(parent *uint) []uint {
	nodes := []Collection(t)
	if parent != nil {
		p := t.Find(*parent)
		if p == nil {
			return nil
		}
		nodes = p.SubCollections
	}
	ids := make([]uint, 0, len(nodes))
	for _, c := range nodes {
		ids = append(ids, c.ID)
	}
	return ids
}
