// Package compiler implements the out-of-scope JIT-compiler collaborator
// boundary (§4.2 "Compile", §9): a single function from (source,
// entry_name) to a function pointer. The core treats shader sources as
// opaque strings; compiler only defines the interface plus a reference
// implementation used by tests and the jsonloader-driven CLI.
package compiler

import (
	"github.com/ignis-render/ignis/params"
	"github.com/ignis-render/ignis/variant"
)

// StandardLibrary is concatenated ahead of every shader source unless the
// caller supplies an override, matching Runtime.Compile's "concatenating
// the standard library or an override" step.
var StandardLibrary = ""

// ShaderOutput pairs a compiled function pointer with its local parameter
// set, exactly variant.Slot's shape (§4.2: "The compiled function pointer
// plus its local parameter set form a ShaderOutput").
type ShaderOutput = variant.Slot

// Compiler turns shader source text into a callable function pointer. The
// real code-generation backend (LLVM/AnyDSL in the original system) has no
// Go-ecosystem analogue in this module's dependency pack; NagaCompiler
// below resolves it through a side-registered table instead.
type Compiler interface {
	// Prepare concatenates the standard library (or override) ahead of
	// src and returns the source ready for Compile.
	Prepare(src string, override string) string
	// Compile turns prepared source into a function pointer bound to
	// entryFn, plus the local parameter set to attach to it.
	Compile(prepared string, entryFn string, local *params.Set) (ShaderOutput, error)
}
