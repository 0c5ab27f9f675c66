// Package report turns a compile's outcome into a human-readable, sectioned
// report, grounded in the teacher's verify.VerificationReport (verify/report.go):
// a struct assembled from a run's results, rendered via WriteReport to an
// io.Writer rather than printed inline.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/patchc/diag"
	"github.com/sarchlab/patchc/schedule"
)

// CompileReport is the compile-time analog of the teacher's
// VerificationReport: one struct built from a finished compile (success or
// failure), one WriteReport method that renders it.
type CompileReport struct {
	PatchPath   string
	Diagnostics []diag.Diagnostic
	Program     *schedule.CompiledProgram
}

// Generate builds a CompileReport from a compile's outcome. program is nil
// when diags is non-empty (the pipeline stopped before scheduling).
func Generate(patchPath string, diags []diag.Diagnostic, program *schedule.CompiledProgram) *CompileReport {
	return &CompileReport{PatchPath: patchPath, Diagnostics: diags, Program: program}
}

// OK reports whether the compile produced a usable program.
func (r *CompileReport) OK() bool {
	return len(r.Diagnostics) == 0 && r.Program != nil
}

// WriteReport writes the formatted report to w.
func (r *CompileReport) WriteReport(w io.Writer) {
	sep := strings.Repeat("=", 60)
	dash := strings.Repeat("-", 60)

	fmt.Fprintln(w, sep)
	fmt.Fprintln(w, "PATCH COMPILE REPORT")
	fmt.Fprintln(w, sep)
	fmt.Fprintf(w, "\nSource: %s\n", r.PatchPath)

	fmt.Fprintln(w, "\n"+sep)
	fmt.Fprintln(w, "STAGE 1: DIAGNOSTICS")
	fmt.Fprintln(w, sep)
	if len(r.Diagnostics) == 0 {
		fmt.Fprintln(w, "no diagnostics")
	} else {
		byKind := map[diag.Kind][]diag.Diagnostic{}
		for _, d := range r.Diagnostics {
			byKind[d.Kind] = append(byKind[d.Kind], d)
		}
		for kind, ds := range byKind {
			fmt.Fprintf(w, "\n%s (%d):\n", kind, len(ds))
			fmt.Fprintln(w, dash)
			for _, d := range ds {
				fmt.Fprintf(w, "  [%s] %s\n", d.Code, d.Error())
			}
		}
	}

	fmt.Fprintln(w, "\n"+sep)
	fmt.Fprintln(w, "STAGE 2: COMPILED PROGRAM")
	fmt.Fprintln(w, sep)
	if r.Program == nil {
		fmt.Fprintln(w, "no program: compile stopped before scheduling")
	} else {
		fmt.Fprintf(w, "slots:         %d\n", len(r.Program.SlotMeta))
		fmt.Fprintf(w, "steps:         %d\n", len(r.Program.Steps))
		fmt.Fprintf(w, "stateSlots:    %d\n", len(r.Program.StateSlots))
		fmt.Fprintf(w, "renderGlobals: %d\n", len(r.Program.RenderGlobals))
		fmt.Fprintf(w, "instances:     %d\n", len(r.Program.Instances))
		fmt.Fprintf(w, "topologies:    %d\n", len(r.Program.Topologies))
	}

	fmt.Fprintln(w, "\n"+sep)
	fmt.Fprintln(w, "SUMMARY")
	fmt.Fprintln(w, sep)
	if r.OK() {
		fmt.Fprintln(w, "compile succeeded")
	} else {
		fmt.Fprintf(w, "compile failed: %d diagnostic(s)\n", len(r.Diagnostics))
	}
}
