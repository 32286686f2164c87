package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach-cli/internal/stage"
	"github.com/sells-group/outreach-cli/internal/substrate"
)

// RegisterPipeline exposes the whole run as its own substrate stage, so the
// API server and worker can submit a lead fire-and-forget.
func RegisterPipeline(reg *substrate.Registry, r *Runner) {
	reg.Register(stage.Pipeline, func(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
		var p stage.Payload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, eris.Wrap(err, "orchestrator: decode pipeline payload")
		}
		summary, err := r.Run(ctx, p.LeadID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(summary)
	})
}
