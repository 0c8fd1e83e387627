package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignis-render/ignis/params"
	"github.com/ignis-render/ignis/variant"
)

func TestRegistryCompilerCompileResolvesEntryPoint(t *testing.T) {
	reg := NewFuncRegistry()
	called := false
	reg.Register("ray_gen_main", func(*variant.DriverSettings) int32 {
		called = true
		return 0
	})

	c := NewRegistryCompiler(reg)
	out, err := c.Compile(c.Prepare("body", ""), "ray_gen_main", params.New())
	require.NoError(t, err)
	require.NotNil(t, out.Exec)

	out.Exec(&variant.DriverSettings{})
	assert.True(t, called)
}

func TestRegistryCompilerMissingEntryPoint(t *testing.T) {
	c := NewRegistryCompiler(NewFuncRegistry())
	_, err := c.Compile("body", "missing", params.New())
	assert.Error(t, err)
}

func TestPrepareConcatenatesOverride(t *testing.T) {
	c := NewRegistryCompiler(NewFuncRegistry())
	prepared := c.Prepare("body", "override_header")
	assert.Contains(t, prepared, "override_header")
	assert.Contains(t, prepared, "body")
}
