package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/weiwenhao/cox"
)

const (
	exitOK          = 0
	exitUsage       = 64
	exitCompileFail = 65
	exitRuntimeFail = 70
	exitNoInput     = 74
)

type args struct {
	traceExecution *bool
	printCode      *bool
	gcStress       *bool
	gcLog          *bool
}

func readArgs() *args {
	a := &args{
		traceExecution: flag.Bool("trace-execution", false, "Log every instruction as it executes"),
		printCode:      flag.Bool("print-code", false, "Disassemble compiled chunks before running"),
		gcStress:       flag.Bool("gc-stress", false, "Collect garbage on every allocation"),
		gcLog:          flag.Bool("gc-log", false, "Log each collection cycle"),
	}
	flag.Parse()
	return a
}

func main() {
	a := readArgs()

	if flag.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "usage: cox [script]")
		os.Exit(exitUsage)
	}

	config := cox.NewConfig()
	config.SetBool("debug.trace_execution", *a.traceExecution)
	config.SetBool("debug.print_code", *a.printCode)
	config.SetBool("gc.stress", *a.gcStress)
	config.SetBool("gc.log", *a.gcLog)

	vm := cox.NewInterpreter(config)

	if flag.NArg() == 1 {
		os.Exit(runFile(vm, flag.Arg(0)))
	}
	os.Exit(repl(vm))
}

func runFile(vm *cox.VM, path string) int {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitNoInput
	}

	if err := vm.Interpret(string(source)); err != nil {
		return exitCodeFor(err)
	}
	return exitOK
}

func repl(vm *cox.VM) int {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		if err := vm.Interpret(scanner.Text()); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	return exitOK
}

func exitCodeFor(err error) int {
	var compileErrs cox.CompileErrors
	if errors.As(err, &compileErrs) {
		return exitCompileFail
	}
	return exitRuntimeFail
}
