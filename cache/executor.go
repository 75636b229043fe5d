package cache

import (
	"context"

	"github.com/rs/zerolog/log"
)

// OptimisticOp describes one rollback-protected mutation, parameterized over
// the snapshot type T and the server result type R.
//
// Sequencing: the snapshot is captured first, the optimistic patch is applied
// fully and synchronously, and only then does the server operation run. On a
// server failure the snapshot is restored before the error is returned, so
// exactly one of OnSuccess/OnError fires and the error is never swallowed.
//
// There is no isolation between concurrent operations: each captures its own
// snapshot, so a rollback restores everything to that operation's start,
// clobbering any patch another in-flight operation applied in between
// (last-rollback-wins). Callers that need overlapping mutations must
// sequence them.
type OptimisticOp[T, R any] struct {
	CaptureState     func() T
	Rollback         func(T)
	OptimisticUpdate func()
	ServerOperation  func(context.Context) (R, error)
	OnSuccess        func(R)
	OnError          func(error)
}

// ExecuteOptimistic runs the capture / apply / confirm-or-rollback protocol.
func ExecuteOptimistic[T, R any](ctx context.Context, op OptimisticOp[T, R]) (R, error) {
	snapshot := op.CaptureState()

	if op.OptimisticUpdate != nil {
		op.OptimisticUpdate()
		optimisticAppliesTotal.Inc()
	}

	result, err := op.ServerOperation(ctx)
	if err != nil {
		op.Rollback(snapshot)
		rollbacksTotal.Inc()
		log.Debug().Err(err).Msg("optimistic update rolled back")
		if op.OnError != nil {
			op.OnError(err)
		}
		var zero R
		return zero, err
	}

	if op.OnSuccess != nil {
		op.OnSuccess(result)
	}
	return result, nil
}
