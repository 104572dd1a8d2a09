package notify

import (
	"context"
	"fmt"
	"strings"

	"go.temporal.io/sdk/client"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/domain/uploads"
)

const DefaultMissingRoomWorkflow = "MissingRoomUploadedWorkflow"

// WorkflowStarter is the slice of the Temporal client the sink needs.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// TemporalSink starts the downstream reprocessing workflow. The workflow id
// is derived from the request and the upload time so a retried delivery of
// the same event does not start a second execution.
type TemporalSink struct {
	starter   WorkflowStarter
	taskQueue string
	workflow  string
}

func NewTemporalSink(starter WorkflowStarter, taskQueue, workflow string) *TemporalSink {
	if starter == nil {
		return nil
	}
	if strings.TrimSpace(workflow) == "" {
		workflow = DefaultMissingRoomWorkflow
	}
	return &TemporalSink{starter: starter, taskQueue: taskQueue, workflow: workflow}
}

func (t *TemporalSink) Name() string { return "temporal" }

func (t *TemporalSink) Send(ctx context.Context, ev uploads.UploadedEvent) error {
	opts := client.StartWorkflowOptions{
		ID:        WorkflowID(ev),
		TaskQueue: t.taskQueue,
	}
	_, err := t.starter.ExecuteWorkflow(ctx, opts, t.workflow, ev)
	if err != nil {
		return fmt.Errorf("start %s: %w", t.workflow, err)
	}
	return nil
}

func WorkflowID(ev uploads.UploadedEvent) string {
	return fmt.Sprintf("missing-room-%s-%d", ev.RequestID, ev.UploadedAt.UnixNano())
}
