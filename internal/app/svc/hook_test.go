package svc

import (
	"context"
	"testing"
	"time"

	"github.com/beldeveloper/release-promoter/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type fakeConn struct {
	method string
	args   interface{}
	reply  interface{}
	err    error
}

func (c *fakeConn) Invoke(ctx context.Context, method string, args, reply interface{}, opts ...grpc.CallOption) error {
	c.method = method
	c.args = args
	c.reply = reply
	return c.err
}

func (c *fakeConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errFailing("streams")
}

func TestHook_Notify(t *testing.T) {
	conn := &fakeConn{}
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	err := NewHook(conn).Notify(context.Background(), pkg.HookTransition{
		DeploymentID:      "rel-1",
		ServiceName:       "billing",
		Version:           "2.1.0",
		Environment:       "production",
		From:              "rolling_out",
		To:                "deployed",
		At:                at,
		RolloutPercentage: 100,
		RetryCount:        1,
	})
	require.NoError(t, err)

	assert.Equal(t, HookNotifyMethod, conn.method)
	assert.IsType(t, &emptypb.Empty{}, conn.reply)
	req, ok := conn.args.(*structpb.Struct)
	require.True(t, ok)
	fields := req.AsMap()
	assert.Equal(t, "rel-1", fields["deployment_id"])
	assert.Equal(t, "deployed", fields["to"])
	assert.Equal(t, "2024-03-01T12:00:00Z", fields["timestamp"])
	assert.Equal(t, float64(100), fields["rollout_percentage"])
	assert.Equal(t, float64(1), fields["retry_count"])
}

func TestHook_NotifyError(t *testing.T) {
	conn := &fakeConn{err: errFailing("hook")}
	err := NewHook(conn).Notify(context.Background(), pkg.HookTransition{DeploymentID: "rel-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook is down")
}

func TestNoopHook(t *testing.T) {
	assert.NoError(t, NoopHook{}.Notify(context.Background(), pkg.HookTransition{}))
}
