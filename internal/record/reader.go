// Package record implements the streaming record/field engine of
// spec.md §3.4/§4.5: a double-ended byte buffer (the "slop deque")
// backing one input file, lazy field splitting honoring FS's three
// forms (POSIX whitespace-run, literal byte, regex), and RS/FS changes
// that take effect only at the next record boundary.
package record

import (
	"io"

	"github.com/dustin/go-humanize"

	"goawk-core/internal/errors"
	"goawk-core/internal/regexcache"
)

const fillChunk = 64 * 1024

// maxRecordBytes bounds a single record's growth in the slop deque.
// Without RS ever matching (a missing trailing separator on a huge
// file, or a pathological RS regex), fill would otherwise grow buf
// without limit.
const maxRecordBytes = 512 * 1024 * 1024

// Reader streams records out of a single input file, splitting fields
// on demand.
type Reader struct {
	src  io.Reader
	path string
	eof  bool

	// The slop deque: buf[0:end] holds unread bytes. A record's content
	// always starts at offset 0; NextRecord drops the previous record's
	// bytes (content + separator) from the front before searching again.
	buf []byte
	end int

	rs        string
	nextRS    string
	pendingRS bool
	fs        string
	nextFS    string
	pendingFS bool

	cache *regexcache.Cache

	endOfRecord int // length of the current record's content
	consumed    int // endOfRecord + matched-separator length, dropped on next call

	fields      []string
	fieldsNum   []bool // per field, true iff it still looks like input (StrNum)
	fieldsValid bool
	recordOverride string
	hasOverride    bool
	overrideIsNum  bool
}

// New creates a reader over src (one open input file), with the given
// initial RS/FS and a shared regex cache for regex-form separators.
func New(src io.Reader, path, rs, fs string, cache *regexcache.Cache) *Reader {
	return &Reader{
		src:   src,
		path:  path,
		buf:   make([]byte, 0, fillChunk),
		rs:    rs,
		fs:    fs,
		cache: cache,
	}
}

// SetRS queues rs to take effect at the next record boundary (spec.md
// §4.4: "apply on the next record boundary").
func (r *Reader) SetRS(rs string) {
	r.nextRS = rs
	r.pendingRS = true
}

// SetFS queues fs to take effect at the next record (spec.md §4.4:
// "the current record's fields retain their split").
func (r *Reader) SetFS(fs string) {
	r.nextFS = fs
	r.pendingFS = true
}

// Close releases the underlying file handle, if it implements io.Closer.
func (r *Reader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NextRecord advances to the next record, per the try_next_record
// algorithm of spec.md §4.5. ok is false at end of file; err is non-nil
// only on an underlying read error.
func (r *Reader) NextRecord() (ok bool, err error) {
	if r.consumed > 0 {
		r.dropFront(r.consumed)
		r.consumed = 0
	}
	if r.pendingRS {
		r.rs = r.nextRS
		r.pendingRS = false
	}
	if r.pendingFS {
		r.fs = r.nextFS
		r.pendingFS = false
	}

	for {
		if r.rs == "" {
			k := 0
			for k < r.end && r.buf[k] == '\n' {
				k++
			}
			r.dropFront(k)
		}
		if idx, sepLen, found := r.findRS(); found {
			r.endOfRecord = idx
			r.consumed = idx + sepLen
			r.resetFields()
			return true, nil
		}
		if r.end > maxRecordBytes {
			return false, errors.NewIOError(
				"record exceeds maximum size ("+humanize.Bytes(uint64(r.end))+" > "+humanize.Bytes(maxRecordBytes)+")",
				r.path)
		}
		n, rerr := r.fill()
		if rerr != nil {
			return false, rerr
		}
		if n == 0 {
			if r.end > 0 {
				r.endOfRecord = r.end
				r.consumed = r.end
				r.resetFields()
				return true, nil
			}
			return false, nil
		}
	}
}

// dropFront discards the first n bytes of the deque, sliding the
// remainder to offset 0. This is the deque's only "consume" operation;
// it is reused across record boundaries without reallocating unless
// growth is later required by fill.
func (r *Reader) dropFront(n int) {
	if n >= r.end {
		r.end = 0
		return
	}
	copy(r.buf, r.buf[n:r.end])
	r.end -= n
}

// fill reads more bytes from src, growing buf if necessary, and reports
// how many bytes were appended (0 at EOF).
func (r *Reader) fill() (int, error) {
	if r.eof {
		return 0, nil
	}
	if cap(r.buf)-r.end < fillChunk {
		grown := make([]byte, r.end, r.end+fillChunk)
		copy(grown, r.buf[:r.end])
		r.buf = grown
	}
	r.buf = r.buf[:cap(r.buf)]
	n, err := r.src.Read(r.buf[r.end:])
	r.buf = r.buf[:r.end+n]
	if n == 0 {
		r.eof = true
	}
	if err == io.EOF {
		return n, nil
	}
	if err != nil {
		return n, err
	}
	return n, nil
}

// findRS searches buf[0:end] for the record separator, returning the
// index of its first byte and its matched length.
func (r *Reader) findRS() (idx, sepLen int, found bool) {
	hay := r.buf[:r.end]
	switch {
	case r.rs == "":
		return findParagraphSep(hay, r.eof)
	case len(r.rs) == 1:
		for i, b := range hay {
			if b == r.rs[0] {
				return i, 1, true
			}
		}
		return 0, 0, false
	default:
		re, err := r.cache.Get(r.rs)
		if err != nil {
			return 0, 0, false
		}
		start, length, ok := re.Find(hay)
		if !ok {
			return 0, 0, false
		}
		// Don't trust a match flush against the end of a still-growing
		// buffer: more input bytes could extend it.
		if start+length >= r.end && !r.eof {
			return 0, 0, false
		}
		return start, length, true
	}
}

// findParagraphSep implements RS=="" paragraph mode: records are
// separated by one or more blank lines. Leading blank lines are skipped
// entirely: NextRecord drops them before calling findRS.
func findParagraphSep(hay []byte, atEOF bool) (idx, sepLen int, found bool) {
	for i := 0; i+1 < len(hay); i++ {
		if hay[i] == '\n' && hay[i+1] == '\n' {
			j := i + 1
			for j < len(hay) && hay[j] == '\n' {
				j++
			}
			if j == len(hay) && !atEOF {
				return 0, 0, false // more newlines might follow
			}
			return i, j - i, true
		}
	}
	return 0, 0, false
}

func (r *Reader) resetFields() {
	r.fieldsValid = false
	r.hasOverride = false
}

// Record returns the current record's bytes ($0) and whether it should
// still be treated as input-derived (StrNum) rather than a
// program-constructed string.
func (r *Reader) Record() (string, bool) {
	if r.hasOverride {
		return r.recordOverride, r.overrideIsNum
	}
	return string(r.buf[:r.endOfRecord]), true
}

// SetRecord assigns $0 directly, re-splitting fields from the new value
// on next access.
func (r *Reader) SetRecord(s string) {
	r.recordOverride = s
	r.overrideIsNum = false
	r.hasOverride = true
	r.fieldsValid = false
}

// NF returns the number of fields in the current record, splitting
// lazily on first access.
func (r *Reader) NF() int {
	r.ensureFields()
	return len(r.fields)
}

// Field returns $i (i >= 1) and whether it should be treated as
// input-derived (StrNum). Out-of-range fields are the empty Str.
func (r *Reader) Field(i int) (string, bool) {
	r.ensureFields()
	if i < 1 || i > len(r.fields) {
		return "", false
	}
	return r.fields[i-1], r.fieldsNum[i-1]
}

// SetField assigns $i (i >= 1), zero-filling intermediate fields with
// "" per spec.md §8.3, then rebuilds $0 with ofs between fields.
func (r *Reader) SetField(i int, val string, ofs string) {
	r.ensureFields()
	for len(r.fields) < i {
		r.fields = append(r.fields, "")
		r.fieldsNum = append(r.fieldsNum, false)
	}
	r.fields[i-1] = val
	r.fieldsNum[i-1] = false
	r.rebuild(ofs)
}

// SetNF truncates or extends the field list to n fields, then rebuilds
// $0 with ofs.
func (r *Reader) SetNF(n int, ofs string) {
	r.ensureFields()
	for len(r.fields) > n {
		r.fields = r.fields[:len(r.fields)-1]
		r.fieldsNum = r.fieldsNum[:len(r.fieldsNum)-1]
	}
	for len(r.fields) < n {
		r.fields = append(r.fields, "")
		r.fieldsNum = append(r.fieldsNum, false)
	}
	r.rebuild(ofs)
}

func (r *Reader) rebuild(ofs string) {
	out := r.fields[0]
	for _, f := range r.fields[1:] {
		out += ofs + f
	}
	r.recordOverride = out
	r.overrideIsNum = false
	r.hasOverride = true
}

func (r *Reader) ensureFields() {
	if r.fieldsValid {
		return
	}
	rec, _ := r.Record()
	r.fields, r.fieldsNum = r.splitFields(rec)
	r.fieldsValid = true
}

func (r *Reader) splitFields(rec string) ([]string, []bool) {
	parts := SplitFields(rec, r.fs, r.cache)
	nums := make([]bool, len(parts))
	for i := range nums {
		nums[i] = true
	}
	return parts, nums
}

// SplitFields splits s on fs using the same three-way dispatch as a
// record's own field splitting (POSIX whitespace-run / literal byte /
// regex, plus the FS=="" character-splitting extension), exported for
// the split() builtin to reuse (spec.md §4.5's splitter is one
// collaborator shared by both record reading and split()).
func SplitFields(s, fs string, cache *regexcache.Cache) []string {
	switch {
	case fs == " ":
		return splitWhitespace(s)
	case fs == "":
		return splitChars(s)
	case len(fs) == 1:
		return splitByte(s, fs[0])
	default:
		return splitByRegexWith(s, fs, cache)
	}
}

// splitWhitespace implements the POSIX FS==" " rule: runs of spaces,
// tabs, and newlines act as one separator, and leading/trailing runs
// are ignored entirely (an all-whitespace record has zero fields).
func splitWhitespace(s string) []string {
	var out []string
	i, n := 0, len(s)
	for i < n {
		for i < n && isAWKSpace(s[i]) {
			i++
		}
		if i >= n {
			break
		}
		start := i
		for i < n && !isAWKSpace(s[i]) {
			i++
		}
		out = append(out, s[start:i])
	}
	return out
}

func isAWKSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' }

// splitByte splits on a single literal separator byte; empty spans
// between consecutive separators yield empty fields, per spec.md §4.5.
func splitByte(s string, sep byte) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// splitChars treats every byte as its own field (FS == "", a common
// awk extension for character-at-a-time processing).
func splitChars(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = s[i : i+1]
	}
	return out
}

// splitByRegexWith splits on a compiled multi-character FS pattern,
// advancing past each match in turn. Shared by record splitting and
// the split() builtin (SplitFields).
func splitByRegexWith(s, fs string, cache *regexcache.Cache) []string {
	if s == "" {
		return nil
	}
	re, err := cache.Get(fs)
	if err != nil {
		return []string{s}
	}
	var out []string
	rest := s
	offset := 0
	for {
		start, length, ok := re.Find([]byte(rest))
		if !ok || length == 0 {
			out = append(out, s[offset:])
			return out
		}
		out = append(out, rest[:start])
		rest = rest[start+length:]
		offset = len(s) - len(rest)
	}
}
