package threadkit

import (
	"context"
	"sync"
)

type CommentEngineSettings struct {
	SortOrder SortOrder
	// InitialComments seeds the cache before the first fetch
	InitialComments []*CommentNode
}

func DefaultCommentEngineSettings() *CommentEngineSettings {
	return &CommentEngineSettings{
		SortOrder: SortByScore,
	}
}

// CacheState is the engine's view of the comment tree.
// it is replaced wholesale on every mutation, never edited in place, so a
// subscriber comparing old and new state by reference detects change
// cheaply. Error keeps the previous comments alongside it. stale data
// stays visible during a read failure rather than blanking the view.
type CacheState struct {
	Comments   []*CommentNode
	Loading    bool
	Error      *ApiError
	LastSyncId string
}

// CommentEngine ties the gateway, the tree cache, the realtime client,
// and the hub together. the gateway seeds the cache and the realtime
// client streams deltas into it through the same tree functions used for
// local edits.
type CommentEngine struct {
	ctx    context.Context
	cancel context.CancelFunc

	hub      *Hub
	api      *ThreadApi
	realtime *RealtimeClient

	mutex        sync.Mutex
	state        *CacheState
	order        SortOrder
	unsubscribes []func()
	destroyed    bool
}

func NewCommentEngineWithDefaults(ctx context.Context, api *ThreadApi) *CommentEngine {
	hub := NewHub()
	wsUrl := PushUrl(api.apiUrl, api.siteId, api.pageUrl, api.tokenAccessor())
	realtime := NewRealtimeClientWithDefaults(ctx, hub, wsUrl)
	return NewCommentEngine(ctx, hub, api, realtime, DefaultCommentEngineSettings())
}

// NewCommentEngine assembles an engine from explicit collaborators.
// realtime may be nil when the host does not want a push connection.
func NewCommentEngine(
	ctx context.Context,
	hub *Hub,
	api *ThreadApi,
	realtime *RealtimeClient,
	settings *CommentEngineSettings,
) *CommentEngine {
	cancelCtx, cancel := context.WithCancel(ctx)

	comments := []*CommentNode{}
	if settings.InitialComments != nil {
		comments = Sort(Build(settings.InitialComments), settings.SortOrder)
	}

	engine := &CommentEngine{
		ctx:      cancelCtx,
		cancel:   cancel,
		hub:      hub,
		api:      api,
		realtime: realtime,
		state: &CacheState{
			Comments: comments,
		},
		order: settings.SortOrder,
	}

	// pushed deltas flow through the same mutation functions as local
	// edits. exactly one code path for "the tree changed".
	engine.unsubscribes = []func(){
		hub.Subscribe(TopicCommentAdded, func(payload any) {
			if v, ok := payload.(*CommentAdded); ok && v.Comment != nil {
				engine.ApplyInsert(v.Comment)
			}
		}),
		hub.Subscribe(TopicCommentDeleted, func(payload any) {
			if v, ok := payload.(*CommentDeleted); ok {
				engine.ApplyRemove(v.Id)
			}
		}),
		hub.Subscribe(TopicCommentEdited, func(payload any) {
			if v, ok := payload.(*CommentEdited); ok {
				patch := &CommentPatch{
					Text: &v.Text,
				}
				if v.Html != "" {
					patch.Html = &v.Html
				}
				if v.ModifiedAt != 0 {
					patch.ModifiedAt = &v.ModifiedAt
				}
				engine.ApplyPatch(v.Id, patch)
			}
		}),
		hub.Subscribe(TopicCommentPinned, func(payload any) {
			if v, ok := payload.(*CommentPinned); ok {
				engine.ApplyPatch(v.Id, &CommentPatch{
					Pinned: &v.Pinned,
				})
			}
		}),
	}

	return engine
}

func (self *CommentEngine) Hub() *Hub {
	return self.hub
}

// Connect opens the push connection, if the engine has one.
func (self *CommentEngine) Connect() {
	if self.realtime != nil {
		self.realtime.Connect()
	}
}

// Load fetches the full comment list and replaces the cache.
// a failure keeps the previous comments and both populates State().Error
// and returns, so callers have a reactive and an imperative path.
func (self *CommentEngine) Load() error {
	self.mutex.Lock()
	next := &CacheState{
		Comments:   self.state.Comments,
		Loading:    true,
		LastSyncId: self.state.LastSyncId,
	}
	self.state = next
	self.mutex.Unlock()
	self.publishState()

	result, err := self.api.FetchCommentsSync()
	if err != nil {
		apiErr, ok := err.(*ApiError)
		if !ok {
			apiErr = NewNetworkError(err)
		}
		self.mutex.Lock()
		self.state = &CacheState{
			Comments:   self.state.Comments,
			Loading:    false,
			Error:      apiErr,
			LastSyncId: self.state.LastSyncId,
		}
		self.mutex.Unlock()
		self.publishState()
		return apiErr
	}

	self.mutex.Lock()
	self.state = &CacheState{
		Comments:   Sort(Build(result.Comments), self.order),
		Loading:    false,
		LastSyncId: result.SyncId,
	}
	self.mutex.Unlock()
	self.publishState()
	return nil
}

// Create posts a new comment and returns the server's canonical node.
// the cache is not touched. apply the returned node with ApplyInsert for
// pessimistic timing, or apply a provisional node first for optimistic.
func (self *CommentEngine) Create(text string, parentId string) (*CommentNode, error) {
	return self.api.CreateCommentSync(text, parentId)
}

func (self *CommentEngine) Delete(commentId string) error {
	_, err := self.api.DeleteCommentSync(commentId)
	return err
}

func (self *CommentEngine) Vote(commentId string, direction string) error {
	_, err := self.api.VoteCommentSync(commentId, direction)
	return err
}

func (self *CommentEngine) ApplyInsert(node *CommentNode) {
	self.mutex.Lock()
	self.state = &CacheState{
		Comments:   Insert(self.state.Comments, node, self.order),
		Loading:    self.state.Loading,
		Error:      self.state.Error,
		LastSyncId: self.state.LastSyncId,
	}
	self.mutex.Unlock()
	self.publishState()
}

func (self *CommentEngine) ApplyRemove(commentId string) {
	self.mutex.Lock()
	self.state = &CacheState{
		Comments:   Remove(self.state.Comments, commentId),
		Loading:    self.state.Loading,
		Error:      self.state.Error,
		LastSyncId: self.state.LastSyncId,
	}
	self.mutex.Unlock()
	self.publishState()
}

func (self *CommentEngine) ApplyPatch(commentId string, patch *CommentPatch) {
	self.mutex.Lock()
	self.state = &CacheState{
		Comments:   Patch(self.state.Comments, commentId, patch, self.order),
		Loading:    self.state.Loading,
		Error:      self.state.Error,
		LastSyncId: self.state.LastSyncId,
	}
	self.mutex.Unlock()
	self.publishState()
}

func (self *CommentEngine) SetSortOrder(order SortOrder) {
	self.mutex.Lock()
	self.order = order
	self.state = &CacheState{
		Comments:   Sort(self.state.Comments, order),
		Loading:    self.state.Loading,
		Error:      self.state.Error,
		LastSyncId: self.state.LastSyncId,
	}
	self.mutex.Unlock()
	self.publishState()
}

func (self *CommentEngine) SortOrder() SortOrder {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return self.order
}

// State returns a copy-out snapshot. the forest is cloned so external
// code cannot corrupt cache invariants by direct field assignment.
func (self *CommentEngine) State() CacheState {
	self.mutex.Lock()
	defer self.mutex.Unlock()
	return CacheState{
		Comments:   cloneForest(self.state.Comments),
		Loading:    self.state.Loading,
		Error:      self.state.Error,
		LastSyncId: self.state.LastSyncId,
	}
}

func (self *CommentEngine) Connection() ConnectionState {
	if self.realtime == nil {
		return ConnectionState{
			TypingUsers: map[string]string{},
		}
	}
	return self.realtime.State()
}

func (self *CommentEngine) SendTyping() {
	if self.realtime != nil {
		self.realtime.SendTyping()
	}
}

func (self *CommentEngine) publishState() {
	self.hub.Publish(TopicStateChange, self.State())
}

// Destroy tears the engine down. safe to call multiple times.
func (self *CommentEngine) Destroy() {
	self.mutex.Lock()
	if self.destroyed {
		self.mutex.Unlock()
		return
	}
	self.destroyed = true
	unsubscribes := self.unsubscribes
	self.unsubscribes = nil
	self.mutex.Unlock()

	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
	if self.realtime != nil {
		self.realtime.Disconnect()
	}
	self.hub.UnsubscribeAll()
	self.cancel()
}
