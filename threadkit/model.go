package threadkit

// comment status values assigned by the server moderation pipeline
const (
	CommentStatusApproved = "approved"
	CommentStatusPending  = "pending"
	CommentStatusRejected = "rejected"
	CommentStatusDeleted  = "deleted"
)

type SortOrder string

const (
	SortByScore       SortOrder = "score"
	SortNewestFirst   SortOrder = "newest"
	SortOldestFirst   SortOrder = "oldest"
	SortControversial SortOrder = "controversial"
)

// CommentNode is one comment as the server returns it.
// votes appear either as raw counts or as voter id lists depending on the
// api revision. the voter lists win when present.
type CommentNode struct {
	Id           string         `json:"id"`
	AuthorId     string         `json:"author_id,omitempty"`
	AuthorName   string         `json:"author_name,omitempty"`
	AuthorAvatar string         `json:"author_avatar,omitempty"`
	Text         string         `json:"text"`
	Html         string         `json:"html,omitempty"`
	CreatedAt    int64          `json:"created_at"`
	ModifiedAt   int64          `json:"modified_at,omitempty"`
	ParentId     string         `json:"parent_id,omitempty"`
	Children     []*CommentNode `json:"children,omitempty"`
	Upvotes      int            `json:"upvotes,omitempty"`
	Downvotes    int            `json:"downvotes,omitempty"`
	UpvoterIds   []string       `json:"upvoter_ids,omitempty"`
	DownvoterIds []string       `json:"downvoter_ids,omitempty"`
	Pinned       bool           `json:"pinned,omitempty"`
	Status       string         `json:"status,omitempty"`
}

func (self *CommentNode) UpvoteCount() int {
	if self.UpvoterIds != nil {
		return len(self.UpvoterIds)
	}
	return self.Upvotes
}

func (self *CommentNode) DownvoteCount() int {
	if self.DownvoterIds != nil {
		return len(self.DownvoterIds)
	}
	return self.Downvotes
}

func (self *CommentNode) Score() int {
	return self.UpvoteCount() - self.DownvoteCount()
}

// Controversy trends toward the total vote count as the up/down split
// approaches even, and toward zero as one side dominates.
func (self *CommentNode) Controversy() float64 {
	up := self.UpvoteCount()
	down := self.DownvoteCount()
	total := up + down
	if total == 0 {
		return 0
	}
	minority := up
	if down < up {
		minority = down
	}
	return float64(total) * (float64(minority) / float64(total))
}

func (self *CommentNode) Edited() bool {
	return self.ModifiedAt != 0 && self.ModifiedAt != self.CreatedAt
}

// Clone copies the node and its entire subtree.
// the mutation functions in tree.go never alias input nodes into output
// forests, so callers can treat forests as immutable snapshots.
func (self *CommentNode) Clone() *CommentNode {
	out := *self
	if self.UpvoterIds != nil {
		out.UpvoterIds = append([]string{}, self.UpvoterIds...)
	}
	if self.DownvoterIds != nil {
		out.DownvoterIds = append([]string{}, self.DownvoterIds...)
	}
	if self.Children != nil {
		out.Children = make([]*CommentNode, len(self.Children))
		for i, child := range self.Children {
			out.Children[i] = child.Clone()
		}
	}
	return &out
}

// CommentPatch is a partial update merged onto a node by `Patch`.
// nil fields are left unchanged. children are never patched.
type CommentPatch struct {
	Text         *string   `json:"text,omitempty"`
	Html         *string   `json:"html,omitempty"`
	ModifiedAt   *int64    `json:"modified_at,omitempty"`
	Upvotes      *int      `json:"upvotes,omitempty"`
	Downvotes    *int      `json:"downvotes,omitempty"`
	UpvoterIds   *[]string `json:"upvoter_ids,omitempty"`
	DownvoterIds *[]string `json:"downvoter_ids,omitempty"`
	Pinned       *bool     `json:"pinned,omitempty"`
	Status       *string   `json:"status,omitempty"`
}
