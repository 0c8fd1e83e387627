package compiler

import (
	"fmt"

	"github.com/ignis-render/ignis/params"
)

// RegistryCompiler is a naga-free Compiler used by unit tests: it skips
// WGSL validation and resolves entry points straight from a FuncRegistry.
// Grounded the same way as NagaCompiler but without the naga dependency,
// so package tests don't need a real WGSL source to exercise Compile.
type RegistryCompiler struct {
	Registry *FuncRegistry
}

func NewRegistryCompiler(registry *FuncRegistry) *RegistryCompiler {
	return &RegistryCompiler{Registry: registry}
}

func (c *RegistryCompiler) Prepare(src string, override string) string {
	header := StandardLibrary
	if override != "" {
		header = override
	}
	if header == "" {
		return src
	}
	return header + "\n" + src
}

func (c *RegistryCompiler) Compile(prepared string, entryFn string, local *params.Set) (ShaderOutput, error) {
	fn := c.Registry.Lookup(entryFn)
	if fn == nil {
		return ShaderOutput{}, fmt.Errorf("compiler: entry point %q not registered", entryFn)
	}
	return ShaderOutput{Exec: fn, Local: local}, nil
}
