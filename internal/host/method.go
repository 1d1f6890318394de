package host

import (
	"fmt"
	"strings"
)

// InvocationEntryBCI is the entry offset of a normal (non-OSR) compilation.
const InvocationEntryBCI = -1

// MethodFlags describes properties of a method relevant to compilation.
type MethodFlags uint8

const (
	// MethodNative marks methods implemented outside of bytecode.
	MethodNative MethodFlags = 1 << iota
	// MethodAbstract marks methods without a body.
	MethodAbstract
	// MethodSynchronized marks methods that lock their receiver.
	MethodSynchronized
)

// Method describes a method handed to the compiler.
type Method struct {
	Holder    string // e.g. "java/lang/Math"
	Name      string
	Signature string // e.g. "(II)I"
	MaxLocals int
	MaxStack  int
	Bytecode  []byte
	Flags     MethodFlags
}

// QualifiedName returns holder.name plus the signature.
func (m *Method) QualifiedName() string {
	if m == nil {
		return "<nil>"
	}
	if m.Holder == "" {
		return m.Name + m.Signature
	}
	return m.Holder + "." + m.Name + m.Signature
}

// CodeSize returns the bytecode length.
func (m *Method) CodeSize() int {
	if m == nil {
		return 0
	}
	return len(m.Bytecode)
}

// Compilable reports whether the method has a body that can be compiled.
func (m *Method) Compilable() error {
	switch {
	case m == nil:
		return fmt.Errorf("missing method")
	case strings.TrimSpace(m.Name) == "":
		return fmt.Errorf("method has no name")
	case m.Flags&MethodAbstract != 0:
		return fmt.Errorf("cannot compile abstract method %s", m.QualifiedName())
	case m.Flags&MethodNative != 0:
		return fmt.Errorf("cannot compile native method %s", m.QualifiedName())
	}
	return nil
}

// FunctionType is the calling signature of a runtime stub.
type FunctionType struct {
	Ret      string
	Params   []string
	Variadic bool
}

// String renders the type in IR syntax, e.g. "i64 (ptr, i32)".
func (t FunctionType) String() string {
	ret := t.Ret
	if ret == "" {
		ret = "void"
	}
	params := strings.Join(t.Params, ", ")
	if t.Variadic {
		if params == "" {
			params = "..."
		} else {
			params += ", ..."
		}
	}
	return fmt.Sprintf("%s (%s)", ret, params)
}
