// Command pmflate compresses and decompresses gzip-compatible files using
// a restricted, dynamic-Huffman-only DEFLATE codec.
package main

import (
	"github.com/pschultz/pmflate"

	"rsc.io/getopt"

	"golang.org/x/term"

	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	// Flags

	force   = flag.Bool("force", false, "overwrite an existing output path")
	verbose = flag.Bool("verbose", false, "print a block-level trace to stderr")

	// State

	subcommand string
	inPath     string
	inFile     *os.File
	outPath    string
	outFile    *os.File
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  pmflate compress   [-f] [-v] <input_path> <output_path>\n")
	fmt.Fprintf(os.Stderr, "  pmflate decompress [-f] [-v] <input_path> <output_path>\n")
}

func doCompress() int {
	name := filepath.Base(inPath)
	if err := pmflate.Compress(outFile, inFile, name); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", inPath, err)
		return 7
	}
	return 0
}

func doDecompress() int {
	var trace io.Writer
	if *verbose {
		trace = os.Stderr
	}

	if err := pmflate.DecompressWithTrace(outFile, inFile, trace); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", inPath, err)
		if errors.Is(err, pmflate.ErrBadMagic) {
			return 8
		}
		return 9
	}
	return 0
}

func do() int {
	var (
		err  error
		code int
	)

	if len(flag.Args()) != 2 {
		usage()
		return 2
	}
	inPath, outPath = flag.Args()[0], flag.Args()[1]

	closeOutput := false
	defer func() {
		inFile.Close()
		if closeOutput {
			outFile.Close()
			if code != 0 {
				os.Remove(outPath)
			}
		}
	}()

	if _, err := os.Stat(inPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", inPath, err)
		return 1
	}
	inFile, err = os.Open(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", inPath, err)
		return 3
	}

	if subcommand == "compress" && outPath == "-" && term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintf(os.Stderr, "pmflate: I'm not writing compressed data to stdout\n")
		return 13
	}

	if outPath == "-" {
		outFile = os.Stdout
	} else {
		if _, err := os.Stat(outPath); !*force && err == nil {
			fmt.Fprintf(os.Stderr, "%s: already exists\n", outPath)
			return 11
		}
		outFile, err = os.Create(outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: create: %v\n", outPath, err)
			return 4
		}
		closeOutput = true
	}

	if subcommand == "compress" {
		code = doCompress()
	} else {
		code = doDecompress()
	}
	return code
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	subcommand = os.Args[1]
	if subcommand != "compress" && subcommand != "decompress" {
		usage()
		os.Exit(2)
	}

	getopt.Alias("f", "force")
	getopt.Alias("v", "verbose")

	// Work around https://github.com/rsc/getopt/issues/3
	if err := getopt.CommandLine.Parse(os.Args[2:]); err != nil {
		os.Exit(12)
	}

	os.Exit(do())
}
