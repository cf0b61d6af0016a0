package threadkit

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestBuildFlat(t *testing.T) {
	forest := Build([]*CommentNode{
		{Id: "1"},
		{Id: "2", ParentId: "1"},
	})

	assert.Equal(t, 1, len(forest))
	assert.Equal(t, "1", forest[0].Id)
	assert.Equal(t, 1, len(forest[0].Children))
	assert.Equal(t, "2", forest[0].Children[0].Id)
}

func TestBuildFlatOrphan(t *testing.T) {
	// a referenced parent that was never delivered. the orphan stays
	// visible as a root instead of being dropped
	forest := Build([]*CommentNode{
		{Id: "1"},
		{Id: "2", ParentId: "missing"},
	})

	assert.Equal(t, 2, len(forest))
	assert.Equal(t, 2, Count(forest))
}

func TestBuildNested(t *testing.T) {
	// pre-nested input wins. nesting must not be re-derived from parent
	// ids, that would double-nest
	forest := Build([]*CommentNode{
		{
			Id: "1",
			Children: []*CommentNode{
				{Id: "2", ParentId: "1"},
			},
		},
		{Id: "2", ParentId: "1"},
	})

	assert.Equal(t, 1, len(forest))
	assert.Equal(t, "1", forest[0].Id)
	assert.Equal(t, 2, Count(forest))
}

func TestBuildFlattenRoundTrip(t *testing.T) {
	nodes := []*CommentNode{
		{Id: "a"},
		{Id: "b", ParentId: "a"},
		{Id: "c", ParentId: "a"},
		{Id: "d", ParentId: "c"},
		{Id: "e"},
		{Id: "f", ParentId: "ghost"},
	}

	flat := Flatten(Build(nodes))
	assert.Equal(t, len(nodes), len(flat))

	seen := map[string]int{}
	for _, node := range flat {
		seen[node.Id] += 1
	}
	for _, node := range nodes {
		assert.Equal(t, 1, seen[node.Id])
	}
}

func TestFlattenPreOrder(t *testing.T) {
	forest := Build([]*CommentNode{
		{Id: "a"},
		{Id: "b", ParentId: "a"},
		{Id: "c", ParentId: "b"},
		{Id: "d"},
	})

	flat := Flatten(forest)
	ids := []string{}
	for _, node := range flat {
		ids = append(ids, node.Id)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestSortByScore(t *testing.T) {
	forest := Build([]*CommentNode{
		{Id: "a", Upvotes: 2, Downvotes: 5},
		{Id: "b", Upvotes: 10, Downvotes: 0},
	})

	sorted := Sort(forest, SortByScore)
	assert.Equal(t, "b", sorted[0].Id)
	assert.Equal(t, "a", sorted[1].Id)
}

func TestSortVoterLists(t *testing.T) {
	// voter id lists win over raw counts when present
	forest := Build([]*CommentNode{
		{Id: "a", Upvotes: 100, UpvoterIds: []string{"u1"}},
		{Id: "b", UpvoterIds: []string{"u1", "u2", "u3"}},
	})

	sorted := Sort(forest, SortByScore)
	assert.Equal(t, "b", sorted[0].Id)
}

func TestSortRecursive(t *testing.T) {
	forest := Build([]*CommentNode{
		{Id: "root", Upvotes: 1},
		{Id: "old", ParentId: "root", CreatedAt: 100},
		{Id: "new", ParentId: "root", CreatedAt: 200},
	})

	sorted := Sort(forest, SortNewestFirst)
	children := sorted[0].Children
	assert.Equal(t, "new", children[0].Id)
	assert.Equal(t, "old", children[1].Id)

	sorted = Sort(forest, SortOldestFirst)
	children = sorted[0].Children
	assert.Equal(t, "old", children[0].Id)
	assert.Equal(t, "new", children[1].Id)
}

func TestSortControversial(t *testing.T) {
	forest := []*CommentNode{
		// 10 votes, even split. controversy 5
		{Id: "split", Upvotes: 5, Downvotes: 5},
		// 100 votes, lopsided. controversy 1
		{Id: "landslide", Upvotes: 99, Downvotes: 1},
		// no votes. controversy 0
		{Id: "quiet"},
	}

	sorted := Sort(forest, SortControversial)
	assert.Equal(t, "split", sorted[0].Id)
	assert.Equal(t, "landslide", sorted[1].Id)
	assert.Equal(t, "quiet", sorted[2].Id)
}

func TestSortIdempotent(t *testing.T) {
	forest := Build([]*CommentNode{
		{Id: "a", Upvotes: 1, CreatedAt: 3},
		{Id: "b", Upvotes: 5, CreatedAt: 1},
		{Id: "c", ParentId: "a", CreatedAt: 2},
		{Id: "d", ParentId: "a", CreatedAt: 4},
		{Id: "e", Upvotes: 5, CreatedAt: 2},
	})

	for _, order := range []SortOrder{SortByScore, SortNewestFirst, SortOldestFirst, SortControversial} {
		once := Sort(forest, order)
		twice := Sort(once, order)

		onceIds := []string{}
		for _, node := range Flatten(once) {
			onceIds = append(onceIds, node.Id)
		}
		twiceIds := []string{}
		for _, node := range Flatten(twice) {
			twiceIds = append(twiceIds, node.Id)
		}
		assert.Equal(t, onceIds, twiceIds)
	}
}

func TestSortPinnedFirst(t *testing.T) {
	forest := []*CommentNode{
		{Id: "top", Upvotes: 100},
		{Id: "pinned", Pinned: true},
	}

	sorted := Sort(forest, SortByScore)
	assert.Equal(t, "pinned", sorted[0].Id)
}

func TestSortStable(t *testing.T) {
	forest := []*CommentNode{
		{Id: "first", Upvotes: 3},
		{Id: "second", Upvotes: 3},
		{Id: "third", Upvotes: 3},
	}

	sorted := Sort(forest, SortByScore)
	assert.Equal(t, "first", sorted[0].Id)
	assert.Equal(t, "second", sorted[1].Id)
	assert.Equal(t, "third", sorted[2].Id)
}

func TestInsertRoot(t *testing.T) {
	forest := Build([]*CommentNode{
		{Id: "a", CreatedAt: 100},
	})

	next := Insert(forest, &CommentNode{Id: "b", CreatedAt: 200}, SortNewestFirst)
	assert.Equal(t, 2, len(next))
	assert.Equal(t, "b", next[0].Id)
	// input untouched
	assert.Equal(t, 1, len(forest))
}

func TestInsertNested(t *testing.T) {
	forest := Build([]*CommentNode{
		{Id: "a"},
		{Id: "b", ParentId: "a"},
	})

	next := Insert(forest, &CommentNode{Id: "c", ParentId: "b"}, SortByScore)
	assert.Equal(t, 3, Count(next))
	parent := FindNode(next, "b")
	assert.Equal(t, 1, len(parent.Children))
	assert.Equal(t, "c", parent.Children[0].Id)
}

func TestInsertMissingParent(t *testing.T) {
	// the parent may have been removed concurrently. best effort, drop
	forest := Build([]*CommentNode{
		{Id: "a"},
	})

	next := Insert(forest, &CommentNode{Id: "b", ParentId: "ghost"}, SortByScore)
	assert.Equal(t, Count(forest), Count(next))
}

func TestInsertExistingId(t *testing.T) {
	// the push channel can deliver the same frame twice. a repeat insert
	// must not create a second node with the same id
	forest := Build([]*CommentNode{
		{Id: "a"},
	})

	node := &CommentNode{Id: "b", ParentId: "a"}
	once := Insert(forest, node, SortByScore)
	twice := Insert(once, node, SortByScore)

	assert.Equal(t, 2, Count(once))
	assert.Equal(t, 2, Count(twice))

	seen := map[string]int{}
	for _, n := range Flatten(twice) {
		seen[n.Id] += 1
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, seen)

	// still unique after a remove round-trip
	assert.Equal(t, 1, Count(Remove(twice, "b")))
}

func TestInsertRemoveRoundTrip(t *testing.T) {
	forest := Build([]*CommentNode{
		{Id: "a", Upvotes: 2},
		{Id: "b", ParentId: "a", Upvotes: 7},
		{Id: "c", Upvotes: 5},
	})

	node := &CommentNode{Id: "x", ParentId: "a", Upvotes: 9}
	next := Remove(Insert(forest, node, SortByScore), "x")

	beforeIds := map[string]bool{}
	for _, n := range Flatten(forest) {
		beforeIds[n.Id] = true
	}
	afterIds := map[string]bool{}
	for _, n := range Flatten(next) {
		afterIds[n.Id] = true
	}
	assert.Equal(t, beforeIds, afterIds)
}

func TestRemoveKeepsChildrenUnlinked(t *testing.T) {
	// removing a parent excises only that node. children are not promoted,
	// mirroring the server's tombstone semantics
	forest := Build([]*CommentNode{
		{Id: "a"},
		{Id: "b", ParentId: "a"},
		{Id: "c", ParentId: "b"},
	})

	next := Remove(forest, "b")
	assert.Equal(t, 1, Count(next))
	assert.Equal(t, nil, FindNode(next, "c"))
}

func TestRemoveAbsentId(t *testing.T) {
	forest := Build([]*CommentNode{
		{Id: "a"},
	})

	next := Remove(forest, "ghost")
	assert.Equal(t, 1, Count(next))
}

func TestPatch(t *testing.T) {
	forest := Build([]*CommentNode{
		{Id: "a", Text: "hello", CreatedAt: 100},
		{Id: "b", ParentId: "a", Text: "reply", CreatedAt: 100},
	})

	text := "edited"
	modifiedAt := int64(200)
	next := Patch(forest, "b", &CommentPatch{
		Text:       &text,
		ModifiedAt: &modifiedAt,
	}, SortByScore)

	node := FindNode(next, "b")
	assert.Equal(t, "edited", node.Text)
	assert.Equal(t, true, node.Edited())
	// untouched fields survive the merge
	assert.Equal(t, int64(100), node.CreatedAt)
	// input untouched
	assert.Equal(t, "reply", FindNode(forest, "b").Text)
}

func TestPatchAbsentId(t *testing.T) {
	forest := Build([]*CommentNode{
		{Id: "a", Text: "hello"},
	})

	text := "edited"
	next := Patch(forest, "ghost", &CommentPatch{Text: &text}, SortByScore)
	assert.Equal(t, 1, Count(next))
	assert.Equal(t, "hello", FindNode(next, "a").Text)
}

func TestPatchResorts(t *testing.T) {
	forest := []*CommentNode{
		{Id: "a", Upvotes: 10},
		{Id: "b", Upvotes: 1},
	}

	upvotes := 50
	next := Patch(forest, "b", &CommentPatch{Upvotes: &upvotes}, SortByScore)
	assert.Equal(t, "b", next[0].Id)
}

func TestCount(t *testing.T) {
	assert.Equal(t, 0, Count([]*CommentNode{}))

	forest := Build([]*CommentNode{
		{Id: "a"},
		{Id: "b", ParentId: "a"},
		{Id: "c", ParentId: "b"},
		{Id: "d"},
	})
	assert.Equal(t, 4, Count(forest))
}
