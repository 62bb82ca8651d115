package bytecode

import "fmt"

// ChunkKind tells Validate what height a chunk must reach at its
// terminal instruction, per spec.md §4.3's "+1 scalar / 0 array net
// function effect" and the Halt contract compiler.go's three emitters
// rely on: a function chunk never falls through to Halt (it always
// returns via Ret, compileFunction's trailing emitPushEmptyStr+Ret
// covers the fall-off-the-end case too), a pattern/range-end
// expression chunk reaches Halt with exactly the tested value on the
// scalar stack, and a BEGIN/END/rule-body statement chunk reaches Halt
// with both stacks back at the height they started at since every
// top-level ExprStmt pops its own pushed value.
type ChunkKind int

const (
	KindStmt ChunkKind = iota
	KindExpr
	KindFunction
)

type stackHeight struct {
	scalar int
	array  int
}

// ValidationError reports a stack-discipline violation Validate
// caught. Per spec.md §7.3 this is always a compiler bug: a correct
// compiler never emits a chunk whose scalar/array height depends on
// the path taken to reach a given instruction.
type ValidationError struct {
	Chunk string
	IP    int
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s (chunk %q, ip %d)", e.Msg, e.Chunk, e.IP)
}

// ValidateProgram validates every chunk spec.md §4.3 requires: BEGIN,
// END, every rule's pattern/range-end/body, and every function body.
func ValidateProgram(p *Program) error {
	if p.Begin != nil {
		if err := Validate(p.Begin, KindStmt, "BEGIN"); err != nil {
			return err
		}
	}
	if p.End != nil {
		if err := Validate(p.End, KindStmt, "END"); err != nil {
			return err
		}
	}
	for i, r := range p.Rules {
		if r.Pattern != nil {
			if err := Validate(r.Pattern, KindExpr, fmt.Sprintf("rule %d pattern", i)); err != nil {
				return err
			}
		}
		if r.RangeEnd != nil {
			if err := Validate(r.RangeEnd, KindExpr, fmt.Sprintf("rule %d range end", i)); err != nil {
				return err
			}
		}
		if r.Body != nil {
			if err := Validate(r.Body, KindStmt, fmt.Sprintf("rule %d body", i)); err != nil {
				return err
			}
		}
	}
	for _, fn := range p.Functions {
		if err := Validate(fn.Chunk, KindFunction, "function "+fn.Name); err != nil {
			return err
		}
	}
	return nil
}

// Validate walks every instruction of ch reachable from offset 0,
// tracking the scalar- and array-stack height at each offset relative
// to the chunk's entry (0, 0). Re-visiting an already-validated offset
// (a CFG join point, e.g. the target of a forward jump reached by both
// the taken and fallthrough paths) asserts the recorded height matches
// the height just computed, then prunes rather than re-walking —
// spec.md §4.3's "on re-visiting an instruction it asserts the
// recorded heights match the current heights and prunes" and §8.1's
// testable invariant that the heights are independent of path taken.
// name identifies ch in a returned *ValidationError.
func Validate(ch *Chunk, kind ChunkKind, name string) error {
	seen := make(map[int]stackHeight)
	type task struct {
		ip int
		h  stackHeight
	}
	queue := []task{{0, stackHeight{}}}

	fail := func(ip int, format string, args ...interface{}) error {
		return &ValidationError{Chunk: name, IP: ip, Msg: fmt.Sprintf(format, args...)}
	}

	for len(queue) > 0 {
		t := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		ip, h := t.ip, t.h

		for {
			if ip < 0 || ip >= len(ch.Code) {
				return fail(ip, "instruction pointer out of range")
			}
			if prev, ok := seen[ip]; ok {
				if prev != h {
					return fail(ip, "stack height depends on path taken (scalar %d/%d, array %d/%d)",
						prev.scalar, h.scalar, prev.array, h.array)
				}
				break
			}
			seen[ip] = h

			op := Op(ch.Code[ip])
			next, terminal, err := stepValidate(ch, ip, op, h, kind, fail)
			if err != nil {
				return err
			}
			if terminal {
				break
			}
			if len(next) == 0 {
				return fail(ip, "opcode %v has no successor and is not terminal", op)
			}
			for _, s := range next[1:] {
				queue = append(queue, task{s.ip, s.h})
			}
			ip, h = next[0].ip, next[0].h
		}
	}
	return nil
}

type successor struct {
	ip int
	h  stackHeight
}

// stepValidate decodes the instruction at ip, checks any
// kind-specific terminal-height contract, and returns its successor
// offset(s) with the height each one carries. terminal is true for an
// instruction that ends this chunk's execution (Ret, Halt, Exit,
// NextLine, NextFile) — none of those has a within-chunk successor.
func stepValidate(ch *Chunk, ip int, op Op, h stackHeight, kind ChunkKind, fail func(int, string, ...interface{}) error) ([]successor, bool, error) {
	arg := func(n int) int32 { return ch.Code[ip+1+n] }
	fallthroughLen := func(n int) int { return ip + 1 + n }

	single := func(scalarDelta, arrayDelta, length int) ([]successor, bool, error) {
		nh := stackHeight{h.scalar + scalarDelta, h.array + arrayDelta}
		if nh.scalar < 0 || nh.array < 0 {
			return nil, false, fail(ip, "opcode %v underflows the stack (scalar %d, array %d)", op, nh.scalar, nh.array)
		}
		return []successor{{ip + length, nh}}, false, nil
	}

	switch op {
	case Nop:
		return single(0, 0, 1)

	case NumConst, StrConst, RegexConst:
		return single(1, 0, fallthroughLen(1)-ip)
	case FloatZero, FloatOne, EmptyStr:
		return single(1, 0, 1)

	case Add, Sub, Mul, Div, Mod, Pow, Lt, Le, Gt, Ge, Eq, Ne, Matches, NotMatches:
		return single(-1, 0, 1)
	case Neg, Pos, Not, Bool:
		return single(0, 0, 1)
	case Concat:
		n := int(arg(0))
		return single(1-n, 0, fallthroughLen(1)-ip)

	case GSclGet, ArgSclGet:
		return single(1, 0, fallthroughLen(1)-ip)
	case GSclSet, ArgSclSet:
		return single(0, 0, fallthroughLen(1)-ip)

	case GArrGet, ArgArrGet:
		return single(0, 1, fallthroughLen(1)-ip)
	case ArrIndex:
		k := int(arg(0))
		return single(1-k, -1, fallthroughLen(1)-ip)
	case ArrAssign:
		k := int(arg(0))
		return single(-k, -1, fallthroughLen(1)-ip)
	case ArrIn:
		k := int(arg(0))
		return single(1-k, -1, fallthroughLen(1)-ip)
	case ArrDelete:
		k := int(arg(0))
		return single(-k, -1, fallthroughLen(1)-ip)

	case Column:
		return single(0, 0, 1)
	case ColumnAssign:
		return single(-1, 0, 1)

	case Pop:
		return single(-1, 0, 1)
	case Dup:
		return single(1, 0, 1)
	case Barrier, PopBarrier:
		// Runtime-only sentinel bookkeeping (vm.barrierTop); never
		// emitted by this compiler (DESIGN.md), no effect on the
		// statically-tracked scalar/array heights.
		return single(0, 0, 1)

	case Jump:
		delta := int(arg(0))
		target := fallthroughLen(1) + delta
		return []successor{{target, h}}, false, nil
	case JumpIfFalse, JumpIfTrue:
		delta := int(arg(0))
		nh := stackHeight{h.scalar - 1, h.array}
		if nh.scalar < 0 {
			return nil, false, fail(ip, "opcode %v underflows the scalar stack", op)
		}
		fall := fallthroughLen(1)
		return []successor{{fall, nh}, {fall + delta, nh}}, false, nil

	case Call:
		numScalar := int(arg(1))
		numArray := int(arg(2))
		return single(1-numScalar, -numArray, fallthroughLen(3)-ip)
	case Ret:
		if kind == KindFunction {
			if h.scalar != 1 || h.array != 0 {
				return nil, true, fail(ip, "function return reaches Ret with scalar height %d, array height %d (want 1, 0)", h.scalar, h.array)
			}
		}
		return nil, true, nil

	case NextLine, NextFile:
		return nil, true, nil
	case Exit:
		hasCode := arg(0)
		if hasCode != 0 && h.scalar < 1 {
			return nil, false, fail(ip, "Exit with a code underflows the scalar stack")
		}
		return nil, true, nil

	case ForInInit:
		if h.array < 1 {
			return nil, false, fail(ip, "ForInInit underflows the array stack")
		}
		return single(0, -1, 1)
	case ForInNext:
		exitDelta := int(arg(0))
		fall := fallthroughLen(1)
		cont := stackHeight{h.scalar + 1, h.array}
		exhausted := h
		return []successor{{fall, cont}, {fall + exitDelta, exhausted}}, false, nil

	case Print, Printf:
		n := int(arg(0))
		mode := int(arg(1))
		extra := 0
		if mode != 0 {
			extra = 1
		}
		return single(-(n + extra), 0, fallthroughLen(2)-ip)
	case GetLine:
		mode := int(arg(0))
		hasVar := arg(1) != 0
		delta := 0
		if mode != 0 {
			delta--
		}
		if hasVar {
			delta += 2
		} else {
			delta += 1
		}
		return single(delta, 0, fallthroughLen(2)-ip)

	case SclSpecialGet:
		return single(1, 0, fallthroughLen(1)-ip)
	case SclSpecialSet:
		return single(0, 0, fallthroughLen(1)-ip)

	case CallBuiltin:
		builtinOp := BuiltinOp(arg(0))
		numArgs := int(arg(1))
		scalarDelta, arrayDelta, err := builtinDelta(builtinOp, numArgs)
		if err != nil {
			return nil, false, fail(ip, "%s", err)
		}
		return single(scalarDelta, arrayDelta, fallthroughLen(2)-ip)

	case Halt:
		switch kind {
		case KindExpr:
			if h.scalar != 1 || h.array != 0 {
				return nil, true, fail(ip, "expression chunk reaches Halt with scalar height %d, array height %d (want 1, 0)", h.scalar, h.array)
			}
		case KindStmt:
			if h.scalar != 0 || h.array != 0 {
				return nil, true, fail(ip, "statement chunk reaches Halt with scalar height %d, array height %d (want 0, 0)", h.scalar, h.array)
			}
		}
		return nil, true, nil

	default:
		return nil, false, fail(ip, "unvalidated opcode %v", op)
	}
}

// builtinDelta reports CallBuiltin's net (scalar, array) stack effect
// for op called with numArgs, cross-referenced against every call.go
// emission site and the corresponding builtin.go runtime case. Most
// builtins have a fixed effect; BFflush's depends on numArgs (the
// optional target argument) and is computed from it directly.
func builtinDelta(op BuiltinOp, numArgs int) (int, int, error) {
	switch op {
	case BLength:
		return 1, 0, nil
	case BLengthArg:
		return 0, 0, nil
	case BLengthArr:
		return 1, -1, nil
	case BSubstr2:
		return -1, 0, nil
	case BSubstr3:
		return -2, 0, nil
	case BIndex:
		return -1, 0, nil
	case BSplit2:
		return 0, -1, nil
	case BSplit3:
		return -1, -1, nil
	case BSprintf:
		return 1 - numArgs, 0, nil
	case BSub, BGsub:
		// call.go always emits numArgs=3; the runtime always pops 3
		// and pushes 2 (count, newStr) regardless of the immediate.
		return -1, 0, nil
	case BMatch:
		return -1, 0, nil
	case BTolower, BToupper:
		return 0, 0, nil
	case BSin, BCos, BExp, BLog, BSqrt, BInt:
		return 0, 0, nil
	case BAtan2:
		return -1, 0, nil
	case BRand:
		return 1, 0, nil
	case BSrand:
		return 1, 0, nil
	case BSrandSeed:
		return 0, 0, nil
	case BSystem:
		return 0, 0, nil
	case BClose:
		return 0, 0, nil
	case BFflush:
		return 1 - numArgs, 0, nil
	case BFflushAll:
		// Never emitted (call.go always routes through BFflush); the
		// runtime case is an errors.Bug and should not be reachable.
		return 0, 0, fmt.Errorf("BFflushAll must never be emitted")
	default:
		return 0, 0, fmt.Errorf("unvalidated builtin %v", op)
	}
}
