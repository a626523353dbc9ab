// Package taxonomy defines the static classification of every tool the
// server exposes: which permission category an operation belongs to, which
// datamarking domain its results fall into, and which argument values
// reclassify an otherwise-permitted call into a riskier category.
//
// The tables here are deliberately plain map literals so that a reviewer can
// audit the complete permission surface in one file. Adding a tool to the
// server without adding it here leaves the tool uncategorized, which the
// policy engine treats as allowed; the completeness test in this package
// exists to make that state impossible to ship unnoticed.
package taxonomy
