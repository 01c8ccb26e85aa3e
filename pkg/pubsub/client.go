// Package pubsub wraps the Pub/Sub v2 client with the topic and
// subscription names from config.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

const (
	kindTopic        = "topics"
	kindSubscription = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoSubscriptions   = errors.New("pubsub sales subscription names are required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

type Client struct {
	client  *pubsub.Client
	project string
	topics  []string
	subs    []string
}

// NewClient dials Pub/Sub and fails unless every publisher topic exists.
// Consumers check their subscriptions separately with EnsureSubscriptions.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errProjectIDRequired
	}
	raw, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: raw, project: project, topics: cfg.TopicList(), subs: cfg.SubscriptionList()}
	if err := c.Ping(ctx); err != nil {
		return nil, multierr.Append(err, raw.Close())
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "topics", strings.Join(c.topics, ",")), "pubsub client initialized")
	}
	return c, nil
}

// Ping checks every publisher topic.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.checkAll(ctx, kindTopic, c.topics, func(ctx context.Context, full string) error {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: full})
		return err
	})
}

// EnsureSubscriptions fails unless every analytics subscription exists.
func (c *Client) EnsureSubscriptions(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	if len(c.subs) == 0 {
		return errNoSubscriptions
	}
	return c.checkAll(ctx, kindSubscription, c.subs, func(ctx context.Context, full string) error {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: full})
		return err
	})
}

// checkAll looks every name up concurrently and reports all failures, not
// just the first, so one deploy fixes every missing resource.
func (c *Client) checkAll(ctx context.Context, kind string, names []string, get func(context.Context, string) error) error {
	var (
		mu     sync.Mutex
		failed error
	)
	group, groupCtx := errgroup.WithContext(ctx)
	for _, name := range names {
		group.Go(func() error {
			err := get(groupCtx, resourceName(c.project, kind, name))
			if err == nil {
				return nil
			}
			if status.Code(err) == codes.NotFound {
				err = fmt.Errorf("%s %q does not exist", strings.TrimSuffix(kind, "s"), name)
			} else {
				err = fmt.Errorf("checking %s %q: %w", strings.TrimSuffix(kind, "s"), name, err)
			}
			mu.Lock()
			failed = multierr.Append(failed, err)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return failed
}

// SalesSubscribers returns one subscriber per analytics subscription.
func (c *Client) SalesSubscribers() []*pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	out := make([]*pubsub.Subscriber, 0, len(c.subs))
	for _, name := range c.subs {
		out = append(out, c.client.Subscriber(resourceName(c.project, kindSubscription, name)))
	}
	return out
}

// Publisher returns a new handle; callers cache it and Stop it on shutdown.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := resourceName(c.project, kindTopic, topic)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands an id to projects/<p>/<kind>/<id>. Names that are
// already fully qualified pass through.
func resourceName(project, kind, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/"):
		return name
	case strings.TrimSpace(project) == "":
		return ""
	}
	return "projects/" + strings.TrimSpace(project) + "/" + kind + "/" + name
}
