package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "structural error",
			code:    "R101",
			wantMsg: "Listener already attached",
			wantCat: CategoryStructural,
		},
		{
			name:    "diff error",
			code:    "R201",
			wantMsg: "Trees are mounted on different roots",
			wantCat: CategoryDiff,
		},
		{
			name:    "backend error",
			code:    "R301",
			wantMsg: "Element no longer exists",
			wantCat: CategoryBackend,
		},
		{
			name:    "unknown error code",
			code:    "R999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryDocument, "node %q has no tag", "root")
	if err.Message != `node "root" has no tag` {
		t.Errorf("Message = %q, want %q", err.Message, `node "root" has no tag`)
	}
	if err.Category != CategoryDocument {
		t.Errorf("Category = %q, want %q", err.Category, CategoryDocument)
	}
}

func TestError_Error(t *testing.T) {
	err := New("R301")
	if got, want := err.Error(), "R301: Element no longer exists"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err = New("R302").WithDetail("set attribute").Wrap(fmt.Errorf("boom"))
	if got, want := err.Error(), "R302: Backend operation failed (set attribute): boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	plain := &Error{Message: "test error"}
	if plain.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", plain.Error(), "test error")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	sentinel := New("R103")
	err := fmt.Errorf("detach: %w", New("R103").WithDetail("click"))

	if !stderrors.Is(err, sentinel) {
		t.Error("errors.Is should match errors with the same code")
	}
	if stderrors.Is(err, New("R101")) {
		t.Error("errors.Is should not match a different code")
	}
	if stderrors.Is(err, &Error{Message: "no code"}) {
		t.Error("errors.Is should not match an uncoded target")
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := New("R302").Wrap(cause)
	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause should be reachable through errors.Is")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "R302") != nil {
		t.Error("FromError(nil) should return nil")
	}

	coded := New("R301")
	if got := FromError(coded, "R302"); got != coded {
		t.Error("FromError should return coded errors unchanged")
	}

	got := FromError(fmt.Errorf("io"), "R302")
	if got.Code != "R302" {
		t.Errorf("Code = %q, want R302", got.Code)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("outer: %w", New("R202"))); got != "R202" {
		t.Errorf("CodeOf = %q, want R202", got)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != "" {
		t.Errorf("CodeOf = %q, want empty", got)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("R303").WithDetail("change 3 failed").Wrap(fmt.Errorf("element gone"))
	out := err.Format()

	for _, want := range []string{"ERROR R303: ", "[backend]", "change 3 failed", "Caused by: element gone", "Hint: "} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q in:\n%s", want, out)
		}
	}

	if got := err.FormatCompact(); got != "R303: Mount is inconsistent after a failed render pass" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestPrint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Print(&buf, fmt.Errorf("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("Print() = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six seven", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q exceeds width", l)
		}
	}
	if strings.Join(lines, " ") != "one two three four five six seven" {
		t.Errorf("wrapText lost words: %v", lines)
	}
}
