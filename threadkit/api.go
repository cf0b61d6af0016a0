package threadkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const defaultHttpTimeout = 60 * time.Second
const defaultHttpConnectTimeout = 5 * time.Second
const defaultHttpTlsTimeout = 5 * time.Second

func defaultClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

type apiCallback[R any] interface {
	Result(result R, err error)
}

// for internal use
type simpleApiCallback[R any] struct {
	callback func(result R, err error)
}

func NewApiCallback[R any](callback func(result R, err error)) apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: callback,
	}
}

func NewNoopApiCallback[R any]() apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: func(result R, err error) {},
	}
}

func (self *simpleApiCallback[R]) Result(result R, err error) {
	self.callback(result, err)
}

type ApiCallbackResult[R any] struct {
	Result R
	Error  error
}

func NewBlockingApiCallback[R any]() (apiCallback[R], chan ApiCallbackResult[R]) {
	c := make(chan ApiCallbackResult[R])
	apiCallback := NewApiCallback[R](func(result R, err error) {
		c <- ApiCallbackResult[R]{
			Result: result,
			Error:  err,
		}
	})
	return apiCallback, c
}

// ThreadApi wraps the comment server's http surface.
// it classifies every failure into the ApiError taxonomy and never
// retries. retry policy, if any, is the caller's responsibility.
type ThreadApi struct {
	ctx    context.Context
	cancel context.CancelFunc

	apiUrl    string
	siteId    string
	projectId string
	pageUrl   string

	tokenAccessor TokenAccessor

	httpClient *http.Client
}

func NewThreadApi(apiUrl string, siteId string, projectId string, pageUrl string) *ThreadApi {
	return NewThreadApiWithContext(context.Background(), apiUrl, siteId, projectId, pageUrl)
}

func NewThreadApiWithContext(ctx context.Context, apiUrl string, siteId string, projectId string, pageUrl string) *ThreadApi {
	cancelCtx, cancel := context.WithCancel(ctx)

	return &ThreadApi{
		ctx:           cancelCtx,
		cancel:        cancel,
		apiUrl:        apiUrl,
		siteId:        siteId,
		projectId:     projectId,
		pageUrl:       pageUrl,
		tokenAccessor: NoToken,
		httpClient:    defaultClient(),
	}
}

// this gets attached to api calls that need it
func (self *ThreadApi) SetTokenAccessor(tokenAccessor TokenAccessor) {
	self.tokenAccessor = tokenAccessor
}

func (self *ThreadApi) Close() {
	self.cancel()
}

type FetchCommentsCallback apiCallback[*FetchCommentsResult]

type FetchCommentsResult struct {
	Comments []*CommentNode `json:"comments"`
	SyncId   string         `json:"sync_id,omitempty"`
}

func (self *ThreadApi) FetchComments(callback FetchCommentsCallback) {
	go get(
		self,
		self.commentsUrl(),
		&FetchCommentsResult{},
		callback,
	)
}

func (self *ThreadApi) FetchCommentsSync() (*FetchCommentsResult, error) {
	return get(
		self,
		self.commentsUrl(),
		&FetchCommentsResult{},
		NewNoopApiCallback[*FetchCommentsResult](),
	)
}

type CreateCommentCallback apiCallback[*CommentNode]

type CreateCommentArgs struct {
	Url      string `json:"url"`
	Text     string `json:"text"`
	ParentId string `json:"parent_id,omitempty"`
}

// CreateComment returns the server's canonical node. the caller applies
// it to the cache via `Insert`, so optimistic timing stays a caller
// decision.
func (self *ThreadApi) CreateComment(text string, parentId string, callback CreateCommentCallback) {
	go post(
		self,
		fmt.Sprintf("%s/sites/%s/comments", self.apiUrl, self.siteId),
		&CreateCommentArgs{
			Url:      self.pageUrl,
			Text:     text,
			ParentId: parentId,
		},
		&CommentNode{},
		callback,
	)
}

func (self *ThreadApi) CreateCommentSync(text string, parentId string) (*CommentNode, error) {
	return post(
		self,
		fmt.Sprintf("%s/sites/%s/comments", self.apiUrl, self.siteId),
		&CreateCommentArgs{
			Url:      self.pageUrl,
			Text:     text,
			ParentId: parentId,
		},
		&CommentNode{},
		NewNoopApiCallback[*CommentNode](),
	)
}

type DeleteCommentCallback apiCallback[*DeleteCommentResult]

type DeleteCommentResult struct {
	Deleted bool `json:"deleted,omitempty"`
}

func (self *ThreadApi) DeleteComment(commentId string, callback DeleteCommentCallback) {
	go del(
		self,
		fmt.Sprintf("%s/comments/%s", self.apiUrl, commentId),
		&DeleteCommentResult{},
		callback,
	)
}

func (self *ThreadApi) DeleteCommentSync(commentId string) (*DeleteCommentResult, error) {
	return del(
		self,
		fmt.Sprintf("%s/comments/%s", self.apiUrl, commentId),
		&DeleteCommentResult{},
		NewNoopApiCallback[*DeleteCommentResult](),
	)
}

const (
	VoteUp   = "up"
	VoteDown = "down"
)

type VoteCommentCallback apiCallback[*VoteCommentResult]

type VoteCommentArgs struct {
	Type string `json:"type"`
}

type VoteCommentResult struct {
	Upvotes   int `json:"upvotes,omitempty"`
	Downvotes int `json:"downvotes,omitempty"`
}

func (self *ThreadApi) VoteComment(commentId string, direction string, callback VoteCommentCallback) {
	go post(
		self,
		fmt.Sprintf("%s/comments/%s/vote", self.apiUrl, commentId),
		&VoteCommentArgs{
			Type: direction,
		},
		&VoteCommentResult{},
		callback,
	)
}

func (self *ThreadApi) VoteCommentSync(commentId string, direction string) (*VoteCommentResult, error) {
	return post(
		self,
		fmt.Sprintf("%s/comments/%s/vote", self.apiUrl, commentId),
		&VoteCommentArgs{
			Type: direction,
		},
		&VoteCommentResult{},
		NewNoopApiCallback[*VoteCommentResult](),
	)
}

func (self *ThreadApi) commentsUrl() string {
	return fmt.Sprintf(
		"%s/sites/%s/comments?url=%s",
		self.apiUrl,
		self.siteId,
		url.QueryEscape(self.pageUrl),
	)
}

func get[R any](api *ThreadApi, requestUrl string, result R, callback apiCallback[R]) (R, error) {
	return request(api, "GET", requestUrl, nil, result, callback)
}

func post[R any](api *ThreadApi, requestUrl string, args any, result R, callback apiCallback[R]) (R, error) {
	return request(api, "POST", requestUrl, args, result, callback)
}

func del[R any](api *ThreadApi, requestUrl string, result R, callback apiCallback[R]) (R, error) {
	return request(api, "DELETE", requestUrl, nil, result, callback)
}

func request[R any](api *ThreadApi, method string, requestUrl string, args any, result R, callback apiCallback[R]) (R, error) {
	var requestBodyBytes []byte
	if args != nil {
		var err error
		requestBodyBytes, err = json.Marshal(args)
		if err != nil {
			var empty R
			callback.Result(empty, err)
			return empty, err
		}
	}

	req, err := http.NewRequestWithContext(api.ctx, method, requestUrl, bytes.NewReader(requestBodyBytes))
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("projectid", api.projectId)

	if token := api.tokenAccessor(); token != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	r, err := api.httpClient.Do(req)
	if err != nil {
		// request failed before a response was obtained
		var empty R
		apiErr := NewNetworkError(err)
		callback.Result(empty, apiErr)
		return empty, apiErr
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		var empty R
		apiErr := NewNetworkError(err)
		callback.Result(empty, apiErr)
		return empty, apiErr
	}

	if r.StatusCode < 200 || 300 <= r.StatusCode {
		var empty R
		apiErr := classifyStatus(r.StatusCode, responseBodyBytes)
		callback.Result(empty, apiErr)
		return empty, apiErr
	}

	if 0 < len(responseBodyBytes) {
		if err := json.Unmarshal(responseBodyBytes, &result); err != nil {
			var empty R
			apiErr := &ApiError{
				Kind:    ErrorKindUnknown,
				Message: fmt.Sprintf("malformed response body: %s", err),
				cause:   err,
			}
			callback.Result(empty, apiErr)
			return empty, apiErr
		}
	}

	callback.Result(result, nil)
	return result, nil
}
