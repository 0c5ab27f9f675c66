package report_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sarchlab/patchc/diag"
	"github.com/sarchlab/patchc/report"
	"github.com/sarchlab/patchc/schedule"
)

func TestGenerateOKReflectsCleanCompile(t *testing.T) {
	program := &schedule.CompiledProgram{}
	r := report.Generate("patch.yaml", nil, program)
	if !r.OK() {
		t.Fatal("expected OK() to be true for a diagnostic-free compile with a program")
	}
}

func TestGenerateOKIsFalseWithDiagnostics(t *testing.T) {
	diags := []diag.Diagnostic{diag.New(diag.KindType, diag.CodeTypeMismatch, "mismatch")}
	r := report.Generate("patch.yaml", diags, nil)
	if r.OK() {
		t.Fatal("expected OK() to be false when diagnostics are present")
	}
}

func TestWriteReportIncludesDiagnosticCodesAndSummary(t *testing.T) {
	diags := []diag.Diagnostic{diag.New(diag.KindType, diag.CodeTypeMismatch, "a mismatched b")}
	r := report.Generate("patch.yaml", diags, nil)

	var buf bytes.Buffer
	r.WriteReport(&buf)
	out := buf.String()

	if !strings.Contains(out, "patch.yaml") {
		t.Error("expected the report to name the source patch path")
	}
	if !strings.Contains(out, diag.CodeTypeMismatch) {
		t.Error("expected the report to include the diagnostic code")
	}
	if !strings.Contains(out, "compile failed") {
		t.Error("expected the summary to report a failed compile")
	}
}

func TestWriteReportSummarizesSuccessfulProgram(t *testing.T) {
	program := &schedule.CompiledProgram{SlotMeta: []schedule.SlotMeta{{Slot: 0}}}
	r := report.Generate("patch.yaml", nil, program)

	var buf bytes.Buffer
	r.WriteReport(&buf)
	out := buf.String()

	if !strings.Contains(out, "compile succeeded") {
		t.Error("expected the summary to report a successful compile")
	}
	if !strings.Contains(out, "slots:         1") {
		t.Error("expected the program section to report the slot count")
	}
}
