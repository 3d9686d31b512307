// Package compiler turns authored command definitions into the registry
// the matcher scores against.
//
// Definitions live in CUE files. Each command carries one or more
// structural templates written in a small pattern language (see
// ParseTemplate). Templates are parsed into ir.Template, an explicit
// literal/slot/optional/choice sequence, and only then rendered for the
// regexp engine, so the IR is the contract and the regexp is one driver.
//
// Validation runs before compilation and reports every problem with an
// E1xx code; CompileRegistry refuses a registry with any of them.
package compiler
