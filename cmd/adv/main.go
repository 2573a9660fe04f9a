// cmd/adv/main.go
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	pkgerrors "github.com/pkg/errors"

	"adv/internal/classtable"
	"adv/internal/compiler"
	"adv/internal/gc"
	"adv/internal/loader"
	"adv/internal/parser"
	"adv/internal/stringifier"
	"adv/internal/vm"
)

const Version = "0.1.0"

// Sizing of the run: one preallocated activation array for every
// nested frame, and a live-set watermark for the collector.
const (
	stackSize = 8192
	heapSize  = 4096
)

// Command aliases mapping
var commandAliases = map[string]string{
	"r": "run",
	"m": "merge",
	"c": "check",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		os.Exit(1)
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "help", "--help", "-h":
		showUsage()
	case "version", "--version", "-v":
		fmt.Printf("adv %s (language target '%s')\n", Version, parser.CurrentVersion)
	case "run":
		fs := flag.NewFlagSet("run", flag.ExitOnError)
		stats := fs.Bool("stats", false, "print heap statistics after the run")
		fs.Parse(args[1:])
		if fs.NArg() != 1 {
			showUsage()
			os.Exit(1)
		}
		exitOn(runCommand(fs.Arg(0), *stats, os.Stdin, os.Stdout))
	case "merge":
		if len(args) != 2 {
			showUsage()
			os.Exit(1)
		}
		exitOn(mergeCommand(args[1], os.Stdout))
	case "check":
		if len(args) != 2 {
			showUsage()
			os.Exit(1)
		}
		exitOn(checkCommand(args[1], os.Stdout))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Fprint(os.Stderr, `Usage: adv <command> [arguments]

Commands:
  run [-stats] <file>   execute a program
  merge <file>          print the program with its imports inlined
  check <file>          parse and compile without running
  version               print version information
  help                  show this message
`)
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(path string, stats bool, stdin io.Reader, stdout io.Writer) error {
	metadata, classes, err := loader.Load(path)
	if err != nil {
		return err
	}
	table, err := classtable.Build(loader.WithBuiltins(classes))
	if err != nil {
		return err
	}
	compiled, err := compiler.Compile(table)
	if err != nil {
		return err
	}

	// The menu is only worth printing when a human is on the other
	// end; a piped selection works either way.
	interactive := false
	if f, ok := stdin.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd())
	}
	in := bufio.NewReader(stdin)
	entry, err := chooseEntrypoint(table, metadata.Entrypoints, in, stdout, interactive)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to find entrypoint")
	}

	// The entrypoint object is created first and pinned at slot 0, so
	// it is a GC root with a stable identity for the whole run.
	stack := make([]gc.Object, stackSize)
	g := gc.New(stack, heapSize)
	ctx := vm.NewRunCtx(g, table, compiled, entry)
	stack[0] = ctx.Entrypoint

	mainMethod := ctx.Classes[entry].Method("main")
	if mainMethod == nil {
		return pkgerrors.Errorf("the entrypoint class %s doesn't have a main method", vm.ClassName(ctx, ctx.Entrypoint))
	}

	ioManager := vm.NewIOManager(in, stdout)
	result, err := vm.Run(ctx, g, ioManager, stack, mainMethod)
	if err != nil {
		return pkgerrors.Wrap(err, "runtime error")
	}
	// A program's observable result is the class of the object main
	// returned; a null result stays silent.
	if !table.Null.Matches(result.Class) {
		fmt.Fprintln(stdout, vm.ClassName(ctx, result))
	}

	if stats {
		printStats(g.Stats())
	}
	return nil
}

func chooseEntrypoint(table *classtable.ClassTable, entrypoints []string, stdin *bufio.Reader, stdout io.Writer, interactive bool) (int, error) {
	switch len(entrypoints) {
	case 0:
		return 0, pkgerrors.New("no entrypoint defined")
	case 1:
		return table.GetClassID(entrypoints[0])
	default:
		if interactive {
			fmt.Fprintln(stdout, "Choose entrypoint:")
			for i, ep := range entrypoints {
				fmt.Fprintf(stdout, "%d) %s\n", i+1, ep)
			}
		}
		line, err := stdin.ReadString('\n')
		if err != nil && line == "" {
			return 0, pkgerrors.New("failed to read the entrypoint selection")
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			return 0, pkgerrors.New("the entrypoint selection is not a number")
		}
		if n < 1 || n > len(entrypoints) {
			return 0, pkgerrors.New("inputted number was not in range")
		}
		return table.GetClassID(entrypoints[n-1])
	}
}

func mergeCommand(path string, stdout io.Writer) error {
	metadata, classes, err := loader.Load(path)
	if err != nil {
		return err
	}
	metadata.Imports = nil
	fmt.Fprint(stdout, stringifier.Stringify(metadata, classes))
	return nil
}

func checkCommand(path string, stdout io.Writer) error {
	metadata, classes, err := loader.Load(path)
	if err != nil {
		return err
	}
	table, err := classtable.Build(loader.WithBuiltins(classes))
	if err != nil {
		return err
	}
	if _, err := compiler.Compile(table); err != nil {
		return err
	}
	for _, ep := range metadata.Entrypoints {
		if _, err := table.GetClassID(ep); err != nil {
			return pkgerrors.Wrap(err, "failed to find entrypoint")
		}
	}
	fmt.Fprintln(stdout, "ok")
	return nil
}

func printStats(s gc.Stats) {
	fmt.Fprintf(os.Stderr, "heap: %s allocations, %s zero-sized, %s collections\n",
		humanize.Comma(int64(s.Allocations)),
		humanize.Comma(int64(s.ZeroAllocations)),
		humanize.Comma(int64(s.Collections)))
}
