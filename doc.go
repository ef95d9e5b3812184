// Package asyncinject resolves named work units against a registry of
// dependencies. Each unit declares the names of the inputs it needs; the
// registry plans a dependency-respecting execution order, runs independent
// units concurrently (or strictly in sequence), and returns a map of names
// to produced values. Caller-supplied seed values take precedence over
// registered units of the same name, and every unit runs at most once per
// resolution.
//
// In sequential mode a unit occupies the executor for its full duration,
// so total wall-clock time is the sum of all unit latencies. This is the
// intended behaviour of that mode, not a defect.
package asyncinject
