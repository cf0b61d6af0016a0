package threadkit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestFetchComments(t *testing.T) {
	var gotPath string
	var gotProjectId string
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotProjectId = r.Header.Get("projectid")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(&FetchCommentsResult{
			Comments: []*CommentNode{
				{Id: "1"},
				{Id: "2", ParentId: "1"},
			},
			SyncId: "sync-7",
		})
	}))
	defer server.Close()

	api := NewThreadApi(server.URL, "site1", "pk_test", "https://example.com/post")
	api.SetTokenAccessor(func() string {
		return "token123"
	})
	defer api.Close()

	result, err := api.FetchCommentsSync()
	assert.Equal(t, nil, err)
	assert.Equal(t, "/sites/site1/comments", gotPath)
	assert.Equal(t, "pk_test", gotProjectId)
	assert.Equal(t, "Bearer token123", gotAuth)
	assert.Equal(t, 2, len(result.Comments))
	assert.Equal(t, "sync-7", result.SyncId)
}

func TestFetchCommentsNoToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(&FetchCommentsResult{})
	}))
	defer server.Close()

	api := NewThreadApi(server.URL, "site1", "pk_test", "https://example.com/post")
	defer api.Close()

	_, err := api.FetchCommentsSync()
	assert.Equal(t, nil, err)
	assert.Equal(t, "", gotAuth)
}

func TestCreateComment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		args := &CreateCommentArgs{}
		json.NewDecoder(r.Body).Decode(args)
		assert.Equal(t, "hello", args.Text)
		assert.Equal(t, "p1", args.ParentId)
		assert.Equal(t, "https://example.com/post", args.Url)
		json.NewEncoder(w).Encode(&CommentNode{
			Id:       "server-id",
			Text:     args.Text,
			ParentId: args.ParentId,
		})
	}))
	defer server.Close()

	api := NewThreadApi(server.URL, "site1", "pk_test", "https://example.com/post")
	defer api.Close()

	node, err := api.CreateCommentSync("hello", "p1")
	assert.Equal(t, nil, err)
	assert.Equal(t, "server-id", node.Id)
}

func TestDeleteComment(t *testing.T) {
	var gotMethod string
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	api := NewThreadApi(server.URL, "site1", "pk_test", "https://example.com/post")
	defer api.Close()

	_, err := api.DeleteCommentSync("c9")
	assert.Equal(t, nil, err)
	assert.Equal(t, "DELETE", gotMethod)
	assert.Equal(t, "/comments/c9", gotPath)
}

func TestVoteComment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/comments/c9/vote", r.URL.Path)
		args := &VoteCommentArgs{}
		json.NewDecoder(r.Body).Decode(args)
		assert.Equal(t, VoteUp, args.Type)
		json.NewEncoder(w).Encode(&VoteCommentResult{Upvotes: 3})
	}))
	defer server.Close()

	api := NewThreadApi(server.URL, "site1", "pk_test", "https://example.com/post")
	defer api.Close()

	result, err := api.VoteCommentSync("c9", VoteUp)
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, result.Upvotes)
}

func TestErrorClassification(t *testing.T) {
	type testCase struct {
		statusCode int
		body       string
		kind       ErrorKind
	}
	testCases := []testCase{
		{http.StatusNotFound, "not found", ErrorKindNotFound},
		{http.StatusUnauthorized, "bad token", ErrorKindUnauthorized},
		{http.StatusForbidden, "forbidden", ErrorKindUnauthorized},
		{http.StatusUnauthorized, `{"error":"invalid api key"}`, ErrorKindInvalidApiKey},
		{http.StatusForbidden, `{"message":"unknown project"}`, ErrorKindInvalidApiKey},
		{http.StatusTooManyRequests, "slow down", ErrorKindRateLimited},
		{http.StatusInternalServerError, "boom", ErrorKindUnknown},
		{http.StatusBadGateway, "<html>bad gateway</html>", ErrorKindUnknown},
	}

	for _, tc := range testCases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.statusCode)
			w.Write([]byte(tc.body))
		}))

		api := NewThreadApi(server.URL, "site1", "pk_test", "https://example.com/post")
		_, err := api.FetchCommentsSync()
		assert.NotEqual(t, nil, err)

		apiErr := &ApiError{}
		assert.Equal(t, true, errors.As(err, &apiErr))
		assert.Equal(t, tc.kind, apiErr.Kind)
		assert.Equal(t, tc.statusCode, apiErr.StatusCode)

		api.Close()
		server.Close()
	}
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	// a server that is no longer there
	server.Close()

	api := NewThreadApi(server.URL, "site1", "pk_test", "https://example.com/post")
	defer api.Close()

	_, err := api.FetchCommentsSync()
	apiErr := &ApiError{}
	assert.Equal(t, true, errors.As(err, &apiErr))
	assert.Equal(t, ErrorKindNetwork, apiErr.Kind)
}

func TestCallbackApi(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&FetchCommentsResult{
			Comments: []*CommentNode{{Id: "1"}},
		})
	}))
	defer server.Close()

	api := NewThreadApi(server.URL, "site1", "pk_test", "https://example.com/post")
	defer api.Close()

	callback, c := NewBlockingApiCallback[*FetchCommentsResult]()
	api.FetchComments(callback)
	result := <-c
	assert.Equal(t, nil, result.Error)
	assert.Equal(t, 1, len(result.Result.Comments))
}
