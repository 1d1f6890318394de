package llvmtool

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"io"

	"jitc/internal/backend"
)

// ReadObject transcribes an ELF64 relocatable object.
func ReadObject(path string) (*backend.Object, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	defer f.Close()
	return transcribe(f)
}

// ParseObject is ReadObject for in-memory data.
func ParseObject(data []byte) (*backend.Object, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse object: %w", err)
	}
	defer f.Close()
	return transcribe(f)
}

func transcribe(f *elf.File) (*backend.Object, error) {
	if f.Class != elf.ELFCLASS64 || f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("unsupported object format %v/%v", f.Class, f.Data)
	}
	obj := &backend.Object{Format: fmt.Sprintf("elf64-%s", machineName(f.Machine))}

	text := f.Section(".text")
	if text == nil {
		return nil, fmt.Errorf("object has no .text section")
	}
	code, err := text.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read .text: %w", err)
	}
	obj.Code = code

	syms, err := f.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, fmt.Errorf("failed to read symbols: %w", err)
	}
	textIndex := sectionIndex(f, text)
	for _, s := range syms {
		if s.Name == "" || elf.ST_TYPE(s.Info) == elf.STT_SECTION || elf.ST_TYPE(s.Info) == elf.STT_FILE {
			continue
		}
		obj.Symbols = append(obj.Symbols, backend.Symbol{
			Name:    s.Name,
			Offset:  s.Value,
			Size:    s.Size,
			Defined: s.Section == textIndex,
		})
	}

	if rela := f.Section(".rela.text"); rela != nil {
		relocs, err := readRela(rela, syms)
		if err != nil {
			return nil, err
		}
		obj.Relocations = relocs
	}
	if sm := f.Section(".llvm_stackmaps"); sm != nil {
		if obj.StackMaps, err = sm.Data(); err != nil {
			return nil, fmt.Errorf("failed to read stack maps: %w", err)
		}
	}
	obj.DebugInfo = f.Section(".debug_info") != nil
	return obj, nil
}

func sectionIndex(f *elf.File, target *elf.Section) elf.SectionIndex {
	for i, s := range f.Sections {
		if s == target {
			return elf.SectionIndex(i)
		}
	}
	return elf.SHN_UNDEF
}

func readRela(sec *elf.Section, syms []elf.Symbol) ([]backend.Relocation, error) {
	data, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read relocations: %w", err)
	}
	r := bytes.NewReader(data)
	var out []backend.Relocation
	for {
		var rela elf.Rela64
		if err := binary.Read(r, binary.LittleEndian, &rela); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, fmt.Errorf("malformed relocation entry: %w", err)
		}
		reloc := backend.Relocation{Offset: rela.Off, Type: elf.R_TYPE64(rela.Info), Addend: rela.Addend}
		// symbol index 0 is the null symbol, which debug/elf drops
		if idx := elf.R_SYM64(rela.Info); idx > 0 && int(idx) <= len(syms) {
			reloc.Symbol = syms[idx-1].Name
		}
		out = append(out, reloc)
	}
}

func machineName(m elf.Machine) string {
	switch m {
	case elf.EM_X86_64:
		return "x86-64"
	case elf.EM_AARCH64:
		return "aarch64"
	case elf.EM_RISCV:
		return "riscv"
	default:
		return m.String()
	}
}
