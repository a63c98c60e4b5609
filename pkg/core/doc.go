// Package core provides a small, stable facade over Authent8's internal
// scan machinery for external integrations. It deliberately re-exports a
// narrow API surface so CI plugins and third-party tools can depend on a
// stable import path without exposing internal implementation packages.
//
// Example:
//
//	cfg := core.Config{Root: "."}
//	result, err := core.Scan(context.Background(), cfg)
//	if err != nil { /* handle */ }
//	_ = core.MarshalFindings(os.Stdout, result.Findings)
package core
