package streamcap

import (
	"context"
	"errors"

	"github.com/SamuelMarks/taskflow/internal/ctxlog"
)

// Run is the host-side capturing-task collaborator: it constructs a
// fresh Capturer, invokes body with it, applies the implicit-offload
// rule, and releases the Capturer and everything it owns before
// returning.
//
// Implicit-offload rule: if the body never offloaded, Run performs
// exactly one offload after the body returns; if the body offloaded
// explicitly at least once, Run performs none. The decision reads the
// capturer's offload state, not a count of calls.
func Run(ctx context.Context, cfg Config, body func(*Capturer) error) error {
	c, err := New(ctx, cfg)
	if err != nil {
		return err
	}

	err = run(ctx, c, body)
	return errors.Join(err, c.Release(ctx))
}

func run(ctx context.Context, c *Capturer, body func(*Capturer) error) error {
	if err := body(c); err != nil {
		return err
	}
	if c.state == notOffloaded {
		ctxlog.FromContext(ctx).Debug("Body did not offload, performing implicit offload.")
		return c.Offload(ctx)
	}
	return nil
}
