// Package bytecode defines the in-memory instruction format of
// spec.md §6.3: each instruction is an opcode tag followed by zero or
// more int32 immediates, interpreted per opcode as a constant-pool
// index, global id, argument position, jump offset, or subscript
// arity. Op is int32 (not byte, as the teacher's original opcode type
// was) because jump offsets and constant indices in a real program
// can exceed 256.
package bytecode

import "fmt"

// Op identifies a single VM instruction.
type Op int32

const (
	Nop Op = iota

	// Literals
	NumConst // NumConst idx
	StrConst // StrConst idx
	FloatZero
	FloatOne
	EmptyStr
	RegexConst // RegexConst idx: push a match of $0 against Regexes[idx]

	// Arithmetic
	Add
	Sub
	Mul
	Div
	Mod
	Pow
	Neg
	Pos // unary +, numeric coercion

	// Comparison
	Lt
	Le
	Gt
	Ge
	Eq
	Ne

	// Match
	Matches    // Matches: pop regex-source string, pop subject -> bool
	NotMatches

	// Concat
	Concat // Concat n: pop n scalars, push concatenation

	// Logical
	Not
	Bool // coerce top of stack to 0/1 boolean numeric

	// Scalar access
	GSclGet   // GSclGet id
	GSclSet   // GSclSet id (value already on stack, left in place)
	ArgSclGet // ArgSclGet i
	ArgSclSet // ArgSclSet i

	// Array access. Scope-qualified: "G" operates on a global array
	// id, "Arg" on an array passed by reference into the current
	// frame. ArrIndex/ArrAssign/ArrIn/ArrDelete each take the array id
	// (already resolved to a global id by GArrGet/ArgArrGet's
	// immediate) plus a subscript arity k: k subscript scalars are on
	// the stack, joined with SUBSEP by the VM before the store lookup.
	GArrGet   // GArrGet id
	ArgArrGet // ArgArrGet i
	ArrIndex  // ArrIndex k
	ArrAssign // ArrAssign k (value pushed before the k subscripts)
	ArrIn     // ArrIn k
	ArrDelete // ArrDelete k (k==0 means delete the whole array)

	// Column (field) access
	Column       // Column: pop index, push $index
	ColumnAssign // ColumnAssign: pop index, pop value, assign $index, push value

	// Control flow
	Jump        // Jump delta
	JumpIfFalse // JumpIfFalse delta
	JumpIfTrue  // JumpIfTrue delta
	Call // Call funcIndex numScalarArgs numArrayArgs
	Ret         // Ret: pop one scalar, unwind the frame
	Pop         // discard top of scalar stack
	Dup         // duplicate top of scalar stack
	Barrier     // push a stack-height sentinel marking a call boundary
	PopBarrier  // pop and verify the sentinel

	NextLine // abandon the current record's action, advance to next record
	NextFile // abandon the current file, advance to next file
	Exit     // Exit hasCode: if hasCode!=0 a code is on the stack, else 0

	// ForInInit pops an array id off the array stack (pushed by a
	// preceding GArrGet/ArgArrGet) and pushes a new key-snapshot
	// iterator onto the VM's internal iterator stack; no immediate.
	ForInInit
	// ForInNext exitDelta: if the top iterator has a key left, pushes
	// it (as a string scalar) and falls through to the compiler's
	// emitted store+body+backjump; if exhausted, pops the iterator and
	// jumps forward by exitDelta to just past the loop.
	ForInNext

	// I/O
	Print   // Print n redirectMode: n args, then (if redirectMode!=None) a target string below them
	Printf  // Printf n redirectMode: args[0] is the format
	GetLine // GetLine mode hasVar: mode 0=main 1=file 2=pipe

	// Special variable gateway
	SclSpecialGet // SclSpecialGet specialId
	SclSpecialSet // SclSpecialSet specialId

	// Builtins
	CallBuiltin // CallBuiltin builtinOp numArgs

	Halt // marks the end of a chunk's instruction stream
)

var names = map[Op]string{
	Nop: "Nop", NumConst: "NumConst", StrConst: "StrConst", FloatZero: "FloatZero",
	FloatOne: "FloatOne", EmptyStr: "EmptyStr", RegexConst: "RegexConst",
	Add: "Add", Sub: "Sub", Mul: "Mul", Div: "Div", Mod: "Mod", Pow: "Pow", Neg: "Neg", Pos: "Pos",
	Lt: "Lt", Le: "Le", Gt: "Gt", Ge: "Ge", Eq: "Eq", Ne: "Ne",
	Matches: "Matches", NotMatches: "NotMatches", Concat: "Concat",
	Not: "Not", Bool: "Bool",
	GSclGet: "GSclGet", GSclSet: "GSclSet", ArgSclGet: "ArgSclGet", ArgSclSet: "ArgSclSet",
	GArrGet: "GArrGet", ArgArrGet: "ArgArrGet", ArrIndex: "ArrIndex", ArrAssign: "ArrAssign",
	ArrIn: "ArrIn", ArrDelete: "ArrDelete",
	Column: "Column", ColumnAssign: "ColumnAssign",
	Jump: "Jump", JumpIfFalse: "JumpIfFalse", JumpIfTrue: "JumpIfTrue",
	Call: "Call", Ret: "Ret", Pop: "Pop", Dup: "Dup", Barrier: "Barrier", PopBarrier: "PopBarrier",
	NextLine: "NextLine", NextFile: "NextFile", Exit: "Exit",
	ForInInit: "ForInInit", ForInNext: "ForInNext",
	Print: "Print", Printf: "Printf", GetLine: "GetLine",
	SclSpecialGet: "SclSpecialGet", SclSpecialSet: "SclSpecialSet",
	CallBuiltin: "CallBuiltin", Halt: "Halt",
}

func (op Op) String() string {
	if n, ok := names[op]; ok {
		return n
	}
	return fmt.Sprintf("Op(%d)", int32(op))
}

// BuiltinOp identifies a builtin function, the immediate of
// CallBuiltin.
type BuiltinOp int32

const (
	BLength BuiltinOp = iota
	BLengthArg
	BLengthArr
	BSubstr2
	BSubstr3
	BIndex
	BSplit2
	BSplit3
	BSprintf
	BSub
	BGsub
	BMatch
	BTolower
	BToupper
	BSin
	BCos
	BAtan2
	BExp
	BLog
	BSqrt
	BInt
	BRand
	BSrand
	BSrandSeed
	BSystem
	BClose
	BFflush
	BFflushAll
)

var builtinNames = map[BuiltinOp]string{
	BLength: "length()", BLengthArg: "length", BLengthArr: "length(array)", BSubstr2: "substr2", BSubstr3: "substr3",
	BIndex: "index", BSplit2: "split2", BSplit3: "split3", BSprintf: "sprintf",
	BSub: "sub", BGsub: "gsub", BMatch: "match", BTolower: "tolower", BToupper: "toupper",
	BSin: "sin", BCos: "cos", BAtan2: "atan2", BExp: "exp", BLog: "log", BSqrt: "sqrt",
	BInt: "int", BRand: "rand", BSrand: "srand", BSrandSeed: "srand(seed)", BSystem: "system",
	BClose: "close", BFflush: "fflush", BFflushAll: "fflush()",
}

func (op BuiltinOp) String() string {
	if n, ok := builtinNames[op]; ok {
		return n
	}
	return fmt.Sprintf("BuiltinOp(%d)", int32(op))
}

// Special identifies a well-known special variable, the immediate of
// SclSpecialGet/SclSpecialSet.
type Special int32

const (
	SpecNF Special = iota
	SpecNR
	SpecFNR
	SpecFS
	SpecRS
	SpecOFS
	SpecORS
	SpecSUBSEP
	SpecCONVFMT
	SpecOFMT
	SpecFILENAME
	SpecRSTART
	SpecRLENGTH
	SpecARGC
	NumSpecials
)

var specialNames = [NumSpecials]string{
	SpecNF: "NF", SpecNR: "NR", SpecFNR: "FNR", SpecFS: "FS", SpecRS: "RS",
	SpecOFS: "OFS", SpecORS: "ORS", SpecSUBSEP: "SUBSEP", SpecCONVFMT: "CONVFMT",
	SpecOFMT: "OFMT", SpecFILENAME: "FILENAME", SpecRSTART: "RSTART",
	SpecRLENGTH: "RLENGTH", SpecARGC: "ARGC",
}

// LookupSpecial returns the Special for a reserved variable name, if
// any.
func LookupSpecial(name string) (Special, bool) {
	for i, n := range specialNames {
		if n == name {
			return Special(i), true
		}
	}
	return 0, false
}

func (s Special) String() string {
	if s >= 0 && int(s) < len(specialNames) {
		return specialNames[s]
	}
	return fmt.Sprintf("Special(%d)", int32(s))
}
