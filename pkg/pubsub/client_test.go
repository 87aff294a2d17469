package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResourceNames(t *testing.T) {
	c := &Client{projectID: "stockroom-dev"}

	require.Equal(t, "projects/stockroom-dev/topics/requests-changed", c.topicResourceName("requests-changed"))
	require.Equal(t, "projects/stockroom-dev/subscriptions/api-1", c.subscriptionResourceName(" api-1 "))
	require.Equal(t, "projects/other/topics/t", c.topicResourceName("projects/other/topics/t"))
	require.Empty(t, c.topicResourceName(""))

	// a topic path is not a subscription path
	require.Equal(t,
		"projects/stockroom-dev/subscriptions/projects/other/topics/t",
		c.subscriptionResourceName("projects/other/topics/t"),
	)
}

func TestResourceNamesRequireProject(t *testing.T) {
	c := &Client{}
	require.Empty(t, c.topicResourceName("requests-changed"))

	var nilClient *Client
	require.Empty(t, nilClient.subscriptionResourceName("api-1"))
	require.Nil(t, nilClient.FeedPublisher())
	require.Nil(t, nilClient.FeedSubscription())
	require.NoError(t, nilClient.Close())
	require.Error(t, nilClient.Ping(context.Background()))
}
