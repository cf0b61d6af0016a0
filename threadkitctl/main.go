package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/usethreadkit/threadkit-go/threadkit"
)

const ThreadKitCtlVersion = "0.0.1"

var Out *log.Logger
var Err *log.Logger

func init() {
	Out = log.New(os.Stdout, "", 0)
	Err = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)
}

func main() {
	usage := `ThreadKit control.

Usage:
    threadkitctl list --api_url=<api_url> --site=<site_id> --project=<project_id>
        --page=<page_url>
        [--jwt=<jwt>]
        [--sort=<order>]
    threadkitctl post --api_url=<api_url> --site=<site_id> --project=<project_id>
        --page=<page_url> --jwt=<jwt>
        [--parent=<parent_id>]
        <text>
    threadkitctl tail --api_url=<api_url> --site=<site_id> --project=<project_id>
        --page=<page_url>
        [--jwt=<jwt>]

Options:
    -h --help                Show this screen.
    --version                Show version.
    --api_url=<api_url>      Comment server base url.
    --site=<site_id>         Site id.
    --project=<project_id>   Public project api key.
    --page=<page_url>        Page url of the thread.
    --jwt=<jwt>              Bearer token for authenticated calls.
    --parent=<parent_id>     Reply to this comment.
    --sort=<order>           One of score, newest, oldest, controversial [default: score].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], ThreadKitCtlVersion)
	if err != nil {
		panic(err)
	}

	if list_, _ := opts.Bool("list"); list_ {
		list(opts)
	} else if post_, _ := opts.Bool("post"); post_ {
		post(opts)
	} else if tail_, _ := opts.Bool("tail"); tail_ {
		tail(opts)
	}
}

func newApi(opts docopt.Opts) *threadkit.ThreadApi {
	apiUrl, _ := opts.String("--api_url")
	siteId, _ := opts.String("--site")
	projectId, _ := opts.String("--project")
	pageUrl, _ := opts.String("--page")

	api := threadkit.NewThreadApi(apiUrl, siteId, projectId, pageUrl)
	if jwt, err := opts.String("--jwt"); err == nil && jwt != "" {
		api.SetTokenAccessor(func() string {
			return jwt
		})
	}
	return api
}

func list(opts docopt.Opts) {
	api := newApi(opts)
	defer api.Close()

	sortStr, _ := opts.String("--sort")
	order := threadkit.SortOrder(sortStr)

	result, err := api.FetchCommentsSync()
	if err != nil {
		Err.Printf("fetch error = %s", err)
		os.Exit(1)
	}

	forest := threadkit.Sort(threadkit.Build(result.Comments), order)
	Out.Printf("%d comments", threadkit.Count(forest))
	printForest(forest, 0)
}

func printForest(forest []*threadkit.CommentNode, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, node := range forest {
		createdAt := time.UnixMilli(node.CreatedAt).Format(time.RFC3339)
		Out.Printf(
			"%s[%s] %s (%s, score %d): %s",
			indent,
			node.Id,
			node.AuthorName,
			createdAt,
			node.Score(),
			node.Text,
		)
		printForest(node.Children, depth+1)
	}
}

func post(opts docopt.Opts) {
	api := newApi(opts)
	defer api.Close()

	text, _ := opts.String("<text>")
	parentId, _ := opts.String("--parent")

	node, err := api.CreateCommentSync(text, parentId)
	if err != nil {
		Err.Printf("post error = %s", err)
		os.Exit(1)
	}
	Out.Printf("created %s", node.Id)
}

func tail(opts docopt.Opts) {
	apiUrl, _ := opts.String("--api_url")
	siteId, _ := opts.String("--site")
	pageUrl, _ := opts.String("--page")
	jwt, _ := opts.String("--jwt")

	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := threadkit.NewHub()

	hub.Subscribe(threadkit.TopicConnection, func(payload any) {
		change := payload.(*threadkit.ConnectionChange)
		Out.Printf("connection connected=%t", change.Connected)
	})
	hub.Subscribe(threadkit.TopicCommentAdded, func(payload any) {
		event := payload.(*threadkit.CommentAdded)
		Out.Printf("added [%s] %s: %s", event.Comment.Id, event.Comment.AuthorName, event.Comment.Text)
	})
	hub.Subscribe(threadkit.TopicCommentDeleted, func(payload any) {
		event := payload.(*threadkit.CommentDeleted)
		Out.Printf("deleted [%s]", event.Id)
	})
	hub.Subscribe(threadkit.TopicCommentEdited, func(payload any) {
		event := payload.(*threadkit.CommentEdited)
		Out.Printf("edited [%s]: %s", event.Id, event.Text)
	})
	hub.Subscribe(threadkit.TopicCommentPinned, func(payload any) {
		event := payload.(*threadkit.CommentPinned)
		Out.Printf("pinned [%s] pinned=%t", event.Id, event.Pinned)
	})
	hub.Subscribe(threadkit.TopicUserBanned, func(payload any) {
		event := payload.(*threadkit.UserBanned)
		Out.Printf("banned user %s", event.UserId)
	})
	hub.Subscribe(threadkit.TopicPresence, func(payload any) {
		event := payload.(*threadkit.Presence)
		Out.Printf("presence %d", event.Count)
	})
	hub.Subscribe(threadkit.TopicTyping, func(payload any) {
		update := payload.(*threadkit.TypingUpdate)
		names := []string{}
		for _, user := range update.Users {
			names = append(names, user.UserName)
		}
		Out.Printf("typing [%s]", strings.Join(names, ", "))
	})

	wsUrl := threadkit.PushUrl(apiUrl, siteId, pageUrl, jwt)
	client := threadkit.NewRealtimeClientWithDefaults(cancelCtx, hub, wsUrl)
	defer client.Disconnect()
	client.Connect()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	fmt.Println()
}
