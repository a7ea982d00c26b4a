// Package chunk partitions artifact collections into bounded groups and fans
// per-group work out and back in without losing partial progress.
//
// Two deterministic, order-preserving policies are provided:
//   - ByType: fixed-size groups per artifact type (default 3 per group)
//   - Global: running-total groups across types (default 8 per group)
//
// Fanout runs a function per group, sequentially or with bounded
// parallelism, and returns outcomes indexed by group so callers aggregate
// successes in plan order and report failures individually.
//
// Example usage:
//
//	groups := chunk.ByType(state.Artifacts, 3)
//	outcomes := chunk.Fanout(ctx, groups, 1, func(ctx context.Context, g chunk.Group) (string, error) {
//	    return summarize(ctx, g)
//	})
//	parts := chunk.Successes(outcomes)
package chunk
