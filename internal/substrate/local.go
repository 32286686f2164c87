package substrate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Local runs stage executors in-process. It is the default substrate for
// single-operator CLI runs and for tests.
type Local struct {
	reg *Registry

	// detachedTimeout bounds fire-and-forget invocations, which have no
	// caller left to enforce a deadline.
	detachedTimeout time.Duration
}

// NewLocal creates a local substrate over the given registry.
func NewLocal(reg *Registry, detachedTimeout time.Duration) *Local {
	if detachedTimeout <= 0 {
		detachedTimeout = 15 * time.Minute
	}
	return &Local{reg: reg, detachedTimeout: detachedTimeout}
}

func (l *Local) InvokeAndWait(ctx context.Context, stage string, payload any, timeout time.Duration) (*Result, error) {
	exec, ok := l.reg.Get(stage)
	if !ok {
		return nil, eris.Errorf("substrate: unknown stage %s", stage)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrapf(err, "substrate: marshal payload for %s", stage)
	}

	stageCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := exec(stageCtx, raw)
	if err != nil {
		// If the parent is gone this is not the stage's failure.
		if ctx.Err() != nil {
			return nil, eris.Wrapf(ctx.Err(), "substrate: %s aborted", stage)
		}
		zap.L().Warn("stage failed",
			zap.String("stage", stage),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return &Result{OK: false, Err: err.Error()}, nil
	}

	zap.L().Debug("stage completed",
		zap.String("stage", stage),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{OK: true, Output: out}, nil
}

func (l *Local) Invoke(ctx context.Context, stage string, payload any) (Handle, error) {
	if _, ok := l.reg.Get(stage); !ok {
		return Handle{}, eris.Errorf("substrate: unknown stage %s", stage)
	}
	if _, err := json.Marshal(payload); err != nil {
		return Handle{}, eris.Wrapf(err, "substrate: marshal payload for %s", stage)
	}

	h := Handle{ID: uuid.New().String()}

	// Detach from the caller's context so an HTTP response ending does not
	// kill the run.
	go func() {
		detached, cancel := context.WithTimeout(context.Background(), l.detachedTimeout)
		defer cancel()

		res, err := l.InvokeAndWait(detached, stage, payload, l.detachedTimeout)
		switch {
		case err != nil:
			zap.L().Error("detached stage aborted",
				zap.String("stage", stage),
				zap.String("invocation_id", h.ID),
				zap.Error(err),
			)
		case !res.OK:
			zap.L().Warn("detached stage failed",
				zap.String("stage", stage),
				zap.String("invocation_id", h.ID),
				zap.String("stage_error", res.Err),
			)
		default:
			zap.L().Info("detached stage completed",
				zap.String("stage", stage),
				zap.String("invocation_id", h.ID),
			)
		}
	}()

	return h, nil
}

func (l *Local) Close() {}
