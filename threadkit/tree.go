package threadkit

import (
	"slices"
)

// pure functions over an ordered forest of comment nodes.
// every function returns a new forest and leaves its input untouched,
// so cache snapshots can be compared by reference to detect change.
// the gateway seeds the forest and the realtime client mutates it through
// these same functions, so there is exactly one code path for
// "the tree changed".

// Build assembles a forest from the server's comment list.
// if any input node already carries children, the input is treated as
// pre-nested and only nodes without a parent id become roots. re-deriving
// nesting from parent ids in that case would double-nest.
// otherwise the input is flat: children are grouped under their parent,
// and an orphan whose parent is absent becomes a root rather than being
// dropped.
func Build(nodes []*CommentNode) []*CommentNode {
	nested := false
	for _, node := range nodes {
		if 0 < len(node.Children) {
			nested = true
			break
		}
	}

	if nested {
		forest := []*CommentNode{}
		for _, node := range nodes {
			if node.ParentId == "" {
				forest = append(forest, node.Clone())
			}
		}
		return forest
	}

	byId := map[string]*CommentNode{}
	for _, node := range nodes {
		out := node.Clone()
		out.Children = []*CommentNode{}
		byId[out.Id] = out
	}

	forest := []*CommentNode{}
	// input order is preserved at every level
	for _, node := range nodes {
		out := byId[node.Id]
		if node.ParentId != "" {
			if parent, ok := byId[node.ParentId]; ok {
				parent.Children = append(parent.Children, out)
				continue
			}
			// orphan. the parent was never delivered, keep it visible
		}
		forest = append(forest, out)
	}
	return forest
}

// Sort orders every level of the forest, recursively. the sort is stable,
// pinned nodes come first within a level regardless of order.
func Sort(forest []*CommentNode, order SortOrder) []*CommentNode {
	out := make([]*CommentNode, len(forest))
	for i, node := range forest {
		clone := *node
		clone.Children = Sort(node.Children, order)
		out[i] = &clone
	}

	slices.SortStableFunc(out, func(a *CommentNode, b *CommentNode) int {
		if a.Pinned != b.Pinned {
			if a.Pinned {
				return -1
			}
			return 1
		}
		return compareNodes(a, b, order)
	})
	return out
}

func compareNodes(a *CommentNode, b *CommentNode, order SortOrder) int {
	switch order {
	case SortNewestFirst:
		return compareInt64(b.CreatedAt, a.CreatedAt)
	case SortOldestFirst:
		return compareInt64(a.CreatedAt, b.CreatedAt)
	case SortControversial:
		ca := a.Controversy()
		cb := b.Controversy()
		if cb < ca {
			return -1
		} else if ca < cb {
			return 1
		}
		return 0
	default:
		// score, highest first
		return compareInt64(int64(b.Score()), int64(a.Score()))
	}
}

func compareInt64(a int64, b int64) int {
	if a < b {
		return -1
	} else if b < a {
		return 1
	}
	return 0
}

// Insert places a node into the forest and re-sorts.
// a node with a parent id attaches under that parent wherever it sits in
// the forest. when the parent is missing the insert is dropped, not an
// error. the parent may have been removed concurrently and the next full
// fetch reconciles.
// inserting an id that is already present is a no-op. the push channel
// may deliver the same frame more than once, and node ids are unique
// within one snapshot.
func Insert(forest []*CommentNode, node *CommentNode, order SortOrder) []*CommentNode {
	if FindNode(forest, node.Id) != nil {
		return cloneForest(forest)
	}

	out := node.Clone()
	out.Children = []*CommentNode{}

	if node.ParentId == "" {
		next := cloneForest(forest)
		next = append(next, out)
		return Sort(next, order)
	}

	next := cloneForest(forest)
	if parent := FindNode(next, node.ParentId); parent != nil {
		parent.Children = append(parent.Children, out)
		return Sort(next, order)
	}
	// parent not present, drop
	return next
}

// Remove excises the single node with the given id.
// children of a removed node are not re-parented. the server keeps them
// attached to the tombstone, so client-side promotion would diverge from
// the next fetch.
func Remove(forest []*CommentNode, id string) []*CommentNode {
	out := []*CommentNode{}
	for _, node := range forest {
		if node.Id == id {
			continue
		}
		clone := *node
		clone.Children = Remove(node.Children, id)
		out = append(out, &clone)
	}
	return out
}

// Patch merges partial fields onto the node with the given id, then
// re-sorts. a missing id leaves the forest unchanged apart from the clone.
func Patch(forest []*CommentNode, id string, patch *CommentPatch, order SortOrder) []*CommentNode {
	next := cloneForest(forest)
	node := FindNode(next, id)
	if node == nil {
		return next
	}
	if patch.Text != nil {
		node.Text = *patch.Text
	}
	if patch.Html != nil {
		node.Html = *patch.Html
	}
	if patch.ModifiedAt != nil {
		node.ModifiedAt = *patch.ModifiedAt
	}
	if patch.Upvotes != nil {
		node.Upvotes = *patch.Upvotes
	}
	if patch.Downvotes != nil {
		node.Downvotes = *patch.Downvotes
	}
	if patch.UpvoterIds != nil {
		node.UpvoterIds = *patch.UpvoterIds
	}
	if patch.DownvoterIds != nil {
		node.DownvoterIds = *patch.DownvoterIds
	}
	if patch.Pinned != nil {
		node.Pinned = *patch.Pinned
	}
	if patch.Status != nil {
		node.Status = *patch.Status
	}
	return Sort(next, order)
}

// FindNode returns the node with the given id, searching depth first.
// the returned pointer aliases into the forest.
func FindNode(forest []*CommentNode, id string) *CommentNode {
	for _, node := range forest {
		if node.Id == id {
			return node
		}
		if found := FindNode(node.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// Flatten returns a depth first pre-order traversal, parent before
// children. the returned nodes alias into the forest.
func Flatten(forest []*CommentNode) []*CommentNode {
	out := []*CommentNode{}
	for _, node := range forest {
		out = append(out, node)
		out = append(out, Flatten(node.Children)...)
	}
	return out
}

// Count returns the total node count including all descendants.
func Count(forest []*CommentNode) int {
	count := 0
	for _, node := range forest {
		count += 1 + Count(node.Children)
	}
	return count
}

func cloneForest(forest []*CommentNode) []*CommentNode {
	out := make([]*CommentNode, len(forest))
	for i, node := range forest {
		out[i] = node.Clone()
	}
	return out
}
