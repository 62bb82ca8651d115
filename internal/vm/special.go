package vm

import (
	"goawk-core/internal/bytecode"
	"goawk-core/internal/value"
)

// getSpecial implements the special-variable read side of spec.md
// §4.4's gateway, grounded on raff-goawk's getSpecial(index)
// dispatch-by-index pattern (other_examples/d4dea15d_raff-goawk).
func (vm *VM) getSpecial(s bytecode.Special) value.Scalar {
	switch s {
	case bytecode.SpecNF:
		return value.Num(float64(vm.nf()))
	case bytecode.SpecNR:
		return value.Num(float64(vm.nr))
	case bytecode.SpecFNR:
		return value.Num(float64(vm.fnr))
	case bytecode.SpecFS:
		return value.StrFromString(vm.fs)
	case bytecode.SpecRS:
		return value.StrFromString(vm.rs)
	case bytecode.SpecOFS:
		return value.StrFromString(vm.ofs)
	case bytecode.SpecORS:
		return value.StrFromString(vm.ors)
	case bytecode.SpecSUBSEP:
		return value.StrFromString(vm.subsep)
	case bytecode.SpecCONVFMT:
		return value.StrFromString(vm.convfmt)
	case bytecode.SpecOFMT:
		return value.StrFromString(vm.ofmt)
	case bytecode.SpecFILENAME:
		return value.StrFromString(vm.filename)
	case bytecode.SpecRSTART:
		return value.Num(float64(vm.rstart))
	case bytecode.SpecRLENGTH:
		return value.Num(float64(vm.rlength))
	case bytecode.SpecARGC:
		return value.Num(float64(vm.argc))
	}
	return value.Uninitialized()
}

func (vm *VM) nf() int {
	if vm.reader == nil {
		return 0
	}
	return vm.reader.NF()
}

// setSpecial implements the write side. FS/RS changes are queued by
// internal/record until the next record boundary (spec.md §4.4: "apply
// on the next record boundary"); everything else takes effect
// immediately.
func (vm *VM) setSpecial(s bytecode.Special, v value.Scalar) {
	switch s {
	case bytecode.SpecNF:
		if vm.reader != nil {
			vm.reader.SetNF(int(v.ToNumber()), vm.ofs)
		}
	case bytecode.SpecNR:
		vm.nr = int(v.ToNumber())
	case bytecode.SpecFNR:
		vm.fnr = int(v.ToNumber())
	case bytecode.SpecFS:
		vm.fs = v.ToStringUser(vm.convfmt)
		if vm.reader != nil {
			vm.reader.SetFS(vm.fs)
		}
	case bytecode.SpecRS:
		vm.rs = v.ToStringUser(vm.convfmt)
		if vm.reader != nil {
			vm.reader.SetRS(vm.rs)
		}
	case bytecode.SpecOFS:
		vm.ofs = v.ToStringUser(vm.convfmt)
	case bytecode.SpecORS:
		vm.ors = v.ToStringUser(vm.convfmt)
	case bytecode.SpecSUBSEP:
		vm.subsep = v.ToStringUser(vm.convfmt)
	case bytecode.SpecCONVFMT:
		vm.convfmt = v.ToStringUser(vm.convfmt)
	case bytecode.SpecOFMT:
		vm.ofmt = v.ToStringUser(vm.convfmt)
	case bytecode.SpecFILENAME:
		vm.filename = v.ToStringUser(vm.convfmt)
	case bytecode.SpecRSTART:
		vm.rstart = int(v.ToNumber())
	case bytecode.SpecRLENGTH:
		vm.rlength = int(v.ToNumber())
	case bytecode.SpecARGC:
		vm.argc = int(v.ToNumber())
	}
}
