package substrate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
	"go.uber.org/zap"
)

// StageWorkflowName is the registered name of the generic stage workflow.
const StageWorkflowName = "stage-workflow"

// StageRequest is the workflow input for one stage invocation.
type StageRequest struct {
	Stage   string          `json:"stage"`
	Payload json.RawMessage `json:"payload"`
	Timeout time.Duration   `json:"timeout"`
}

// TemporalConfig holds connection settings for the Temporal substrate.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// Temporal dispatches stage invocations as workflow executions on a task
// queue served by outreach workers.
type Temporal struct {
	c         client.Client
	taskQueue string
}

// DialTemporal connects to a Temporal frontend.
func DialTemporal(cfg TemporalConfig) (*Temporal, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
	})
	if err != nil {
		return nil, eris.Wrap(err, "substrate: dial temporal")
	}
	return &Temporal{c: c, taskQueue: cfg.TaskQueue}, nil
}

// TemporalClient exposes the underlying SDK client for worker construction.
func (t *Temporal) TemporalClient() client.Client {
	return t.c
}

// TaskQueue returns the queue this substrate dispatches to.
func (t *Temporal) TaskQueue() string {
	return t.taskQueue
}

func (t *Temporal) InvokeAndWait(ctx context.Context, stage string, payload any, timeout time.Duration) (*Result, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrapf(err, "substrate: marshal payload for %s", stage)
	}

	opts := client.StartWorkflowOptions{
		ID:        fmt.Sprintf("%s-%s", stage, uuid.New().String()),
		TaskQueue: t.taskQueue,
		// The workflow needs headroom beyond the stage budget for queueing
		// and worker pickup.
		WorkflowExecutionTimeout: timeout + 2*time.Minute,
	}

	run, err := t.c.ExecuteWorkflow(ctx, opts, StageWorkflowName, StageRequest{
		Stage:   stage,
		Payload: raw,
		Timeout: timeout,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "substrate: start %s workflow", stage)
	}

	var res Result
	if err := run.Get(ctx, &res); err != nil {
		return nil, eris.Wrapf(err, "substrate: await %s workflow", stage)
	}
	return &res, nil
}

func (t *Temporal) Invoke(ctx context.Context, stage string, payload any) (Handle, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Handle{}, eris.Wrapf(err, "substrate: marshal payload for %s", stage)
	}

	workflowID := fmt.Sprintf("%s-%s", stage, uuid.New().String())
	_, err = t.c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: t.taskQueue,
	}, StageWorkflowName, StageRequest{Stage: stage, Payload: raw})
	if err != nil {
		return Handle{}, eris.Wrapf(err, "substrate: start %s workflow", stage)
	}

	return Handle{ID: workflowID}, nil
}

func (t *Temporal) Close() {
	t.c.Close()
}

// StageActivities executes registered stage executors inside Temporal
// activities on the worker.
type StageActivities struct {
	reg *Registry
}

// ExecuteStage runs the stage executor for the request. Executor failures
// become a failed Result rather than an activity error, so Temporal does not
// retry model calls the pipeline treats as settled.
func (a *StageActivities) ExecuteStage(ctx context.Context, req StageRequest) (Result, error) {
	exec, ok := a.reg.Get(req.Stage)
	if !ok {
		return Result{}, eris.Errorf("substrate: unknown stage %s", req.Stage)
	}

	out, err := exec(ctx, req.Payload)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, eris.Wrapf(ctx.Err(), "substrate: %s aborted", req.Stage)
		}
		return Result{OK: false, Err: err.Error()}, nil
	}
	return Result{OK: true, Output: out}, nil
}

// StageWorkflow binds the per-stage time budget to a single activity
// execution. The budget expiring is the stage's own failure.
func StageWorkflow(ctx workflow.Context, req StageRequest) (Result, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var res Result
	if err := workflow.ExecuteActivity(ctx, "ExecuteStage", req).Get(ctx, &res); err != nil {
		return Result{OK: false, Err: err.Error()}, nil
	}
	return res, nil
}

// NewWorker builds a Temporal worker serving the stage workflow and its
// activity over the given registry. The caller runs it with w.Run.
func NewWorker(c client.Client, taskQueue string, reg *Registry) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(StageWorkflow, workflow.RegisterOptions{Name: StageWorkflowName})
	w.RegisterActivity((&StageActivities{reg: reg}).ExecuteStage)

	zap.L().Info("temporal worker configured",
		zap.String("task_queue", taskQueue),
		zap.Strings("stages", reg.Stages()),
	)
	return w
}
