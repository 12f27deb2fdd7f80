// Package progress carries crawl milestones (run start, node completions,
// checkpoints, run end) from the scheduler to pluggable sinks without ever
// blocking the crawl loop.
package progress
