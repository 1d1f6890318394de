package compile

import "context"

// CompileMethod runs a method session from creation to Close.
func CompileMethod(ctx context.Context, req *MethodRequest) (*CompiledCode, error) {
	s, ctx, err := NewMethodSession(ctx, req)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Run(ctx)
}

// CompileStub runs a stub session from creation to Close.
func CompileStub(ctx context.Context, req *StubRequest) (*CompiledCode, error) {
	s, ctx, err := NewStubSession(ctx, req)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Run(ctx)
}
