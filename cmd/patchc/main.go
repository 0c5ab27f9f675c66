package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"runtime/pprof"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/patchc/compiler"
	"github.com/sarchlab/patchc/debugmap"
	"github.com/sarchlab/patchc/diag"
	"github.com/sarchlab/patchc/httpdebug"
	"github.com/sarchlab/patchc/patch"
	"github.com/sarchlab/patchc/report"
	"github.com/sarchlab/patchc/schedule"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "compile":
		runCompile(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: patchc compile [-cpuprofile file] [-debug-addr addr] [-report] <patch.yaml>")
	fmt.Fprintln(os.Stderr, "       patchc stats <patch.yaml>")
}

func runCompile(args []string) {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	cpuprofile := fs.String("cpuprofile", "", "write a CPU profile to this file")
	debugAddr := fs.String("debug-addr", "", "if set, serve the debug HTTP surface on this address")
	longReport := fs.Bool("report", false, "write the full sectioned compile report instead of the table summary")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		usage()
		os.Exit(1)
	}
	patchPath := fs.Arg(0)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "patchc: %v\n", err)
			os.Exit(1)
		}
		_ = pprof.StartCPUProfile(f)
		atexit.Register(func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		})
	}

	result, diags, err := compiler.CompileFile(patchPath, compiler.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "patchc: %v\n", err)
		atexit.Exit(1)
	}

	if *longReport {
		var program *schedule.CompiledProgram
		if result != nil {
			program = result.Program
		}
		report.Generate(patchPath, diags, program).WriteReport(os.Stdout)
		if len(diags) > 0 {
			atexit.Exit(1)
		}
	} else {
		if len(diags) > 0 {
			printDiagnostics(diags)
			atexit.Exit(1)
		}
		printReport(result)
	}

	if *debugAddr != "" {
		p, err := patch.LoadPatchFromYAML(patchPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "patchc: %v\n", err)
			atexit.Exit(1)
		}
		svc := debugmap.NewService()
		svc.Rebuild(p, result.DebugIndex)
		srv := httpdebug.NewServer(svc)
		listener := &http.Server{Addr: *debugAddr, Handler: srv}
		atexit.Register(func() { _ = listener.Close() })
		fmt.Printf("patchc: debug surface listening on %s\n", *debugAddr)
		if err := listener.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "patchc: debug server: %v\n", err)
		}
	}

	atexit.Exit(0)
}

func printDiagnostics(diags []diag.Diagnostic) {
	t := table.NewWriter()
	t.SetTitle("Diagnostics")
	t.AppendHeader(table.Row{"#", "message"})
	for i, d := range diags {
		t.AppendRow(table.Row{i, d.Error()})
	}
	fmt.Println(t.Render())
}

func printReport(result *compiler.Result) {
	slotTable := table.NewWriter()
	slotTable.SetTitle("Slots")
	slotTable.AppendHeader(table.Row{"slot", "storage", "offset"})
	for _, s := range result.Program.SlotMeta {
		slotTable.AppendRow(table.Row{s.Slot, s.Storage, s.Offset})
	}
	fmt.Println(slotTable.Render())
	fmt.Println()

	summary := table.NewWriter()
	summary.SetTitle("Summary")
	summary.AppendHeader(table.Row{"metric", "count"})
	summary.AppendRow(table.Row{"slots", len(result.Program.SlotMeta)})
	summary.AppendRow(table.Row{"steps", len(result.Program.Steps)})
	summary.AppendRow(table.Row{"stateSlots", len(result.Program.StateSlots)})
	summary.AppendRow(table.Row{"renderGlobals", len(result.Program.RenderGlobals)})
	summary.AppendRow(table.Row{"instances", len(result.Program.Instances)})
	summary.AppendRow(table.Row{"topologies", len(result.Program.Topologies)})
	fmt.Println(summary.Render())
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	pid := int32(os.Getpid())
	proc, err := process.NewProcess(pid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "patchc: %v\n", err)
		os.Exit(1)
	}

	_, diags, err := compiler.CompileFile(fs.Arg(0), compiler.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "patchc: %v\n", err)
		os.Exit(1)
	}
	if len(diags) > 0 {
		for _, d := range diags {
			fmt.Fprintln(os.Stderr, d.Error())
		}
		os.Exit(1)
	}

	rss := uint64(0)
	if mi, err := proc.MemoryInfo(); err == nil {
		rss = mi.RSS
	}
	cpuPct, _ := proc.CPUPercent()
	vm, _ := mem.VirtualMemory()

	t := table.NewWriter()
	t.SetTitle("Resource usage around compile")
	t.AppendHeader(table.Row{"metric", "value"})
	t.AppendRow(table.Row{"processRSS", rss})
	t.AppendRow(table.Row{"processCPUPercent", cpuPct})
	if vm != nil {
		t.AppendRow(table.Row{"hostMemUsedPercent", vm.UsedPercent})
	}
	fmt.Println(t.Render())
}
