// Package trace records what the inference driver is doing.
//
// Tracers receive Events grouped into spans (Begin/End) at four scopes:
// driver (one run), pass (collect, each inference round, duplication),
// function and node (single parameter decisions and dup sites). The Level
// filters scopes: phase shows passes, detail adds functions, debug adds
// nodes.
//
// Implementations: Nop (default), StreamTracer (text or NDJSON to a writer),
// RingTracer (in-memory tail dumped on failure) and MultiTracer.
//
// Tracers travel through context:
//
//	ctx = trace.WithTracer(ctx, tr)
//	sp := trace.Begin(trace.FromContext(ctx), trace.ScopePass, "round#1", trace.CurrentSpan(ctx))
//	defer sp.End("")
package trace
