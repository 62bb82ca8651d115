package lexer

import "testing"

func scan(t *testing.T, src string) []Token {
	t.Helper()
	s := NewScanner("test.awk", src)
	toks, err := s.ScanTokens()
	if err != nil {
		t.Fatalf("ScanTokens(%q): %v", src, err)
	}
	return toks
}

func types(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, tk := range toks {
		out[i] = tk.Type
	}
	return out
}

func TestScanKeywordsAndPunctuation(t *testing.T) {
	toks := scan(t, `BEGIN { print "hi" }`)
	want := []TokenType{BEGIN, LBRACE, PRINT, STRING, RBRACE, EOF}
	got := types(toks)
	if len(got) != len(want) {
		t.Fatalf("token types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScanNumber(t *testing.T) {
	toks := scan(t, "3.5 1e10")
	if toks[0].Type != NUMBER || toks[0].Num != 3.5 {
		t.Errorf("token[0] = %+v, want NUMBER 3.5", toks[0])
	}
	if toks[1].Type != NUMBER || toks[1].Num != 1e10 {
		t.Errorf("token[1] = %+v, want NUMBER 1e10", toks[1])
	}
}

func TestScanStringEscape(t *testing.T) {
	toks := scan(t, `"a\tb\n"`)
	if toks[0].Type != STRING {
		t.Fatalf("token[0].Type = %v, want STRING", toks[0].Type)
	}
	if toks[0].Text != "a\tb\n" {
		t.Errorf("string literal text = %q, want %q", toks[0].Text, "a\tb\n")
	}
}

func TestScanEREAfterOperatorContext(t *testing.T) {
	toks := scan(t, `$0 ~ /a.*b/`)
	found := false
	for _, tk := range toks {
		if tk.Type == ERE {
			found = true
			if tk.Text != "a.*b" {
				t.Errorf("ERE text = %q, want %q", tk.Text, "a.*b")
			}
		}
	}
	if !found {
		t.Fatalf("no ERE token scanned from %v", types(toks))
	}
}

func TestFuncNameTokenOnNoSpaceCall(t *testing.T) {
	toks := scan(t, `foo()`)
	if toks[0].Type != FUNC_NAME {
		t.Errorf("token[0].Type = %v, want FUNC_NAME for a no-space call", toks[0].Type)
	}
}

func TestIdentVsFuncName(t *testing.T) {
	toks := scan(t, `foo ()`)
	if toks[0].Type != IDENT {
		t.Errorf("token[0].Type = %v, want IDENT when a space separates the identifier from '('", toks[0].Type)
	}
}
