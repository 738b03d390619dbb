// cmd/fun/main.go
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"fun/internal/compiler"
	"fun/internal/extmodule"
	"fun/internal/value"
	"fun/internal/vm"

	"github.com/mattn/go-isatty"
)

func main() {
	os.Exit(run())
}

// run holds everything main would otherwise do directly, so the testscript
// harness in main_test.go can invoke it in-process as a subprocess command
// instead of only through a built binary.
func run() int {
	file := flag.String("file", "", "path to a .fun source file to run")
	trace := flag.Bool("trace", false, "log one structured line per executed instruction to stderr")
	dumpGlobals := flag.Bool("dump-globals", false, "print the top-level global slots after the run completes")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: fun -file <path.fun> [-trace] [-dump-globals]")
		return 2
	}

	program, err := compiler.CompileFile(*file)
	if err != nil {
		log.Printf("compile error: %v", err)
		return 1
	}

	machine := vm.New()
	machine.Tracing = *trace
	machine.TraceColor = isatty.IsTerminal(os.Stderr.Fd())
	machine.SetBasePath(fileDir(*file))

	machine.Registry.Register("sql", extmodule.NewSQLModule())
	machine.Registry.Register("net", extmodule.NewNetModule())

	if runErr := machine.Run(program); runErr != nil {
		fmt.Fprintf(os.Stderr, "%v\n", runErr)
		return 1
	}

	for _, v := range machine.Output() {
		fmt.Println(value.FormatForPrint(v))
	}

	if *dumpGlobals {
		for slot, v := range machine.DumpGlobals() {
			fmt.Fprintf(os.Stderr, "global[%d] = %s\n", slot, v.ToString())
		}
	}

	return machine.ExitCode()
}

func fileDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
