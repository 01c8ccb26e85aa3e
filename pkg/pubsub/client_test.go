package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
)

func TestResourceName(t *testing.T) {
	cases := []struct {
		name    string
		project string
		kind    string
		input   string
		want    string
	}{
		{"short topic", "scent-prod", "topics", "5scent-order-events", "projects/scent-prod/topics/5scent-order-events"},
		{"full subscription passes through", "other", "subscriptions", "projects/p/subscriptions/s", "projects/p/subscriptions/s"},
		{"blank", "scent-prod", "topics", "  ", ""},
		{"no project", "", "topics", "t", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resourceName(tc.project, tc.kind, tc.input))
		})
	}
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	assert.Nil(t, c.Publisher("t"))
	assert.Nil(t, c.SalesSubscribers())
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, c.Close())
}

func TestCheckAllReportsEveryFailure(t *testing.T) {
	c := &Client{project: "scent-prod"}
	names := []string{"orders", "payments", "refunds"}

	err := c.checkAll(context.Background(), kindTopic, names, func(_ context.Context, full string) error {
		switch full {
		case "projects/scent-prod/topics/payments":
			return status.Error(codes.NotFound, "gone")
		case "projects/scent-prod/topics/refunds":
			return errors.New("deadline")
		}
		return nil
	})
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	assert.ErrorContains(t, err, `topic "payments" does not exist`)
	assert.ErrorContains(t, err, `checking topic "refunds": deadline`)

	ok := c.checkAll(context.Background(), kindSubscription, names, func(context.Context, string) error { return nil })
	assert.NoError(t, ok)
}

func TestEnsureSubscriptionsOnNilClient(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.EnsureSubscriptions(context.Background()), errNotInitialized)
}
