package ir

import (
	"fmt"

	"jitc/internal/arena"
	"jitc/internal/host"
)

// StubAttrs are attached to runtime stub wrappers.
var StubAttrs = []string{"nounwind", "\"frame-pointer\"=\"all\""}

// BuildStubWrapper defines name as a function of type typ that forwards all
// arguments to the native routine at addr.
func BuildStubWrapper(m *Module, name string, addr uint64, typ host.FunctionType) (arena.Handle[Function], error) {
	if addr == 0 {
		return 0, fmt.Errorf("stub %s: null native address", name)
	}
	if typ.Variadic {
		return 0, fmt.Errorf("stub %s: variadic routines cannot be wrapped", name)
	}
	h, err := m.AddFunction(Function{
		Name:  name,
		Type:  typ,
		Attrs: append([]string(nil), StubAttrs...),
	})
	if err != nil {
		return 0, err
	}
	b := NewBuilder(m, h).Block("entry")
	target := b.IntToPtr(addr)
	args := make([]string, len(typ.Params))
	for i, p := range typ.Params {
		args[i] = p + " " + b.Param(i)
	}
	result := b.Call(typ.Ret, target, args, true)
	b.Ret(typ.Ret, result)
	return h, nil
}
