package vm

import "goawk-core/internal/value"

// currentRecordText returns $0 as a plain string, for RegexConst's
// implicit `/re/` pattern match against the current record.
func (vm *VM) currentRecordText() (string, bool) {
	if vm.reader == nil {
		return "", false
	}
	return vm.reader.Record()
}

// getField implements $i (spec.md §4.5): $0 reflects the whole record,
// out-of-range fields read back as the uninitialized empty value.
func (vm *VM) getField(i int) value.Scalar {
	if vm.reader == nil {
		return value.Uninitialized()
	}
	if i == 0 {
		s, isNum := vm.reader.Record()
		return vm.wrapField(s, isNum)
	}
	s, isNum := vm.reader.Field(i)
	if !isNum && s == "" {
		return value.Uninitialized()
	}
	return vm.wrapField(s, isNum)
}

// setField implements $i = val, rebuilding $0 with the current OFS.
// Assigning $0 directly re-splits fields from val on next field access.
func (vm *VM) setField(i int, val value.Scalar) {
	if vm.reader == nil {
		return
	}
	s := val.ToStringUser(vm.convfmt)
	if i == 0 {
		vm.reader.SetRecord(s)
		return
	}
	vm.reader.SetField(i, s, vm.ofs)
}

func (vm *VM) wrapField(s string, isNum bool) value.Scalar {
	if isNum {
		return value.StrNumFromString(s)
	}
	return value.StrFromString(s)
}
