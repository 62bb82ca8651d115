package record

import (
	"strings"
	"testing"

	"goawk-core/internal/regexcache"
)

func newTestReader(t *testing.T, input, rs, fs string) *Reader {
	t.Helper()
	cache, err := regexcache.New(16)
	if err != nil {
		t.Fatalf("regexcache.New: %v", err)
	}
	return New(strings.NewReader(input), "test", rs, fs, cache)
}

func TestNextRecordSplitsOnNewline(t *testing.T) {
	r := newTestReader(t, "1\n2\n3\n", "\n", " ")
	var got []string
	for {
		ok, err := r.NextRecord()
		if err != nil {
			t.Fatalf("NextRecord: %v", err)
		}
		if !ok {
			break
		}
		rec, _ := r.Record()
		got = append(got, rec)
	}
	want := []string{"1", "2", "3"}
	if len(got) != len(want) {
		t.Fatalf("got %v records, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEmptyFileZeroRecords(t *testing.T) {
	r := newTestReader(t, "", "\n", " ")
	ok, err := r.NextRecord()
	if err != nil {
		t.Fatalf("NextRecord: %v", err)
	}
	if ok {
		t.Fatalf("expected no records from an empty file")
	}
}

func TestFinalRecordWithoutTrailingSeparator(t *testing.T) {
	r := newTestReader(t, "a\nb", "\n", " ")
	var got []string
	for {
		ok, err := r.NextRecord()
		if err != nil {
			t.Fatalf("NextRecord: %v", err)
		}
		if !ok {
			break
		}
		rec, _ := r.Record()
		got = append(got, rec)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v, want [a b]", got)
	}
}

func TestWhitespaceFieldSplitting(t *testing.T) {
	r := newTestReader(t, "  a  b\tc \n", "\n", " ")
	ok, _ := r.NextRecord()
	if !ok {
		t.Fatalf("expected a record")
	}
	if n := r.NF(); n != 3 {
		t.Fatalf("NF = %d, want 3", n)
	}
	for i, want := range []string{"a", "b", "c"} {
		got, _ := r.Field(i + 1)
		if got != want {
			t.Errorf("field %d: got %q, want %q", i+1, got, want)
		}
	}
}

func TestLiteralByteFieldSplitting(t *testing.T) {
	r := newTestReader(t, "a,,c\n", "\n", ",")
	ok, _ := r.NextRecord()
	if !ok {
		t.Fatalf("expected a record")
	}
	if n := r.NF(); n != 3 {
		t.Fatalf("NF = %d, want 3 (empty field between consecutive separators)", n)
	}
	got, _ := r.Field(2)
	if got != "" {
		t.Errorf("field 2: got %q, want empty", got)
	}
}

func TestFieldOutOfRangeIsEmpty(t *testing.T) {
	r := newTestReader(t, "a b\n", "\n", " ")
	r.NextRecord()
	got, isNum := r.Field(5)
	if got != "" || isNum {
		t.Errorf("out-of-range field: got (%q, %v), want (\"\", false)", got, isNum)
	}
}

func TestSetFieldBeyondNFZeroFillsAndRebuilds(t *testing.T) {
	r := newTestReader(t, "a b\n", "\n", " ")
	r.NextRecord()
	r.SetField(4, "x", " ")
	if n := r.NF(); n != 4 {
		t.Fatalf("NF after SetField(4) = %d, want 4", n)
	}
	rec, _ := r.Record()
	if rec != "a b  x" {
		t.Fatalf("rebuilt $0 = %q, want %q", rec, "a b  x")
	}
}

func TestSetNFTruncates(t *testing.T) {
	r := newTestReader(t, "a b c d\n", "\n", " ")
	r.NextRecord()
	r.SetNF(2, " ")
	rec, _ := r.Record()
	if rec != "a b" {
		t.Fatalf("rebuilt $0 = %q, want %q", rec, "a b")
	}
}

func TestRSChangeTakesEffectNextRecord(t *testing.T) {
	// Scenario 3 from spec.md §8.4: NR==1 { RS="-" } { print NR, $0 }
	// against "a b c\n-ZZZ1-ZZZ2" yields records "a b c", "", "ZZZ1", "ZZZ2".
	r := newTestReader(t, "a b c\n-ZZZ1-ZZZ2", "\n", " ")
	ok, _ := r.NextRecord()
	if !ok {
		t.Fatalf("expected first record")
	}
	rec, _ := r.Record()
	if rec != "a b c" {
		t.Fatalf("first record = %q, want %q", rec, "a b c")
	}
	r.SetRS("-")

	var got []string
	for {
		ok, err := r.NextRecord()
		if err != nil {
			t.Fatalf("NextRecord: %v", err)
		}
		if !ok {
			break
		}
		rec, _ := r.Record()
		got = append(got, rec)
	}
	want := []string{"", "ZZZ1", "ZZZ2"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAllSeparatorBytesYieldEmptyFields(t *testing.T) {
	r := newTestReader(t, ",,,\n", "\n", ",")
	r.NextRecord()
	if n := r.NF(); n != 4 {
		t.Fatalf("NF = %d, want 4", n)
	}
	for i := 1; i <= 4; i++ {
		got, _ := r.Field(i)
		if got != "" {
			t.Errorf("field %d: got %q, want empty", i, got)
		}
	}
}

func TestAllWhitespaceRecordHasZeroFields(t *testing.T) {
	r := newTestReader(t, "   \n", "\n", " ")
	r.NextRecord()
	if n := r.NF(); n != 0 {
		t.Fatalf("NF = %d, want 0", n)
	}
}
