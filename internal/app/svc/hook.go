package svc

import (
	"context"
	"github.com/beldeveloper/release-promoter/pkg"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"time"
)

// HookNotifyMethod is the RPC served by the hook handler.
const HookNotifyMethod = "/hook.Hook/Notify"

// NewHook creates a new instance of the hook client.
func NewHook(conn grpc.ClientConnInterface) pkg.HookSvc {
	return Hook{conn: conn}
}

// Hook implements a hook client.
type Hook struct {
	conn grpc.ClientConnInterface
}

// Notify calls hook handler in order to announce the promotion state change.
func (s Hook) Notify(ctx context.Context, t pkg.HookTransition) error {
	req, err := structpb.NewStruct(map[string]interface{}{
		"deployment_id":      t.DeploymentID,
		"service_name":       t.ServiceName,
		"version":            t.Version,
		"environment":        t.Environment,
		"from":               t.From,
		"to":                 t.To,
		"timestamp":          t.At.UTC().Format(time.RFC3339Nano),
		"rollout_percentage": t.RolloutPercentage,
		"retry_count":        t.RetryCount,
	})
	if err != nil {
		return errors.Wrap(err, "svc.Hook.Notify.NewStruct")
	}
	err = s.conn.Invoke(ctx, HookNotifyMethod, req, &emptypb.Empty{})
	return errors.Wrapf(err, "svc.Hook.Notify.Invoke: promotion=%v, state=%v", t.DeploymentID, t.To)
}

// NoopHook is used when no hook handler is configured.
type NoopHook struct{}

// Notify does nothing.
func (NoopHook) Notify(context.Context, pkg.HookTransition) error {
	return nil
}
