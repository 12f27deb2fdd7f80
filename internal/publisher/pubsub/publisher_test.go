package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type runNotice struct {
	RunID string `json:"run_id"`
}

func (n runNotice) Attributes() map[string]string {
	return map[string]string{"run_id": n.RunID}
}

func TestPublisherPublishesJSON(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.CreateTopic(ctx, "runs")
	require.NoError(t, err)

	pub := New(client)
	id, err := pub.Publish(ctx, "runs", runNotice{RunID: "run-1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, pub.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got runNotice
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	require.Equal(t, "run-1", got.RunID)
	require.Equal(t, "run-1", msgs[0].Attributes["run_id"])
}

func TestPublisherValidation(t *testing.T) {
	t.Parallel()

	var nilPub *Publisher
	_, err := nilPub.Publish(context.Background(), "t", nil)
	require.Error(t, err)
	require.NoError(t, nilPub.Close())

	_, err = Open(context.Background(), "")
	require.Error(t, err)
}
