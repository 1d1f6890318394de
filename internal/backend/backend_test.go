package backend

import "testing"

func TestTarget_Validate(t *testing.T) {
	tests := []struct {
		name    string
		target  Target
		wantErr bool
	}{
		{"ok", Target{Triple: "x86_64-unknown-linux-gnu", OptLevel: 2}, false},
		{"empty triple", Target{OptLevel: 1}, true},
		{"bad level", Target{Triple: "x", OptLevel: 4}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.target.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTarget_KeyDistinguishesOptLevel(t *testing.T) {
	a := Target{Triple: "x", OptLevel: 1}
	b := Target{Triple: "x", OptLevel: 2}
	if a.Key() == b.Key() {
		t.Fatal("keys must differ by opt level")
	}
}

func TestObject_Lookup(t *testing.T) {
	obj := &Object{Symbols: []Symbol{
		{Name: "ext", Defined: false},
		{Name: "main", Offset: 16, Defined: true},
	}}
	if s, ok := obj.Lookup("main"); !ok || s.Offset != 16 {
		t.Fatalf("Lookup(main) = %+v, %v", s, ok)
	}
	if _, ok := obj.Lookup("ext"); ok {
		t.Fatal("undefined symbols are not found")
	}
	var nilObj *Object
	if _, ok := nilObj.Lookup("main"); ok {
		t.Fatal("nil object has no symbols")
	}
}
