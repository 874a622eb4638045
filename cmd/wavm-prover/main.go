// Command wavm-prover is the CLI entrypoint for the WAVM proving and
// Stylus execution substrate: activating (parsing, validating,
// instrumenting, and lowering) a user WASM program, and exercising the
// out-of-scope external collaborators (arbcompress, the namespace table,
// the preimage store) spec.md §6 names but leaves to the invoker.
//
// Grounded on _examples/wyf-ACCEPT-eth2030/pkg/cmd/eth2030/main.go's
// testable run(args []string) int entrypoint, rebuilt on top of
// github.com/urfave/cli/v2 for flag/subcommand parsing rather than the
// teacher's hand-rolled flag.FlagSet wrapper, per SPEC_FULL.md's domain
// stack.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/stepchain/wavm-prover/internal/arbcompress"
	"github.com/stepchain/wavm-prover/internal/nstable"
	"github.com/stepchain/wavm-prover/internal/preimage"
	"github.com/stepchain/wavm-prover/internal/wasmbin"
	"github.com/stepchain/wavm-prover/internal/wavm"
	"github.com/stepchain/wavm-prover/pkg/log"
)

// Build-time version info, overridable with ldflags, per the teacher's
// convention in pkg/cmd/eth2030/main.go.
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

// run is the actual entry point, returning an exit code. It accepts the
// full os.Args (urfave/cli/v2 expects argv[0] present) so it can be tested
// in isolation without touching the process's real argument list.
func run(args []string) int {
	app := newApp()
	if err := app.Run(args); err != nil {
		fmt.Fprintf(os.Stderr, "wavm-prover: %v\n", err)
		return 1
	}
	return 0
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "wavm-prover",
		Usage:   "activate, instrument, and inspect WASM replay/Stylus programs",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Commands: []*cli.Command{
			activateCommand(),
			compressCommand(),
			decompressCommand(),
			nstableCommand(),
			preimageCommand(),
		},
	}
}

func activateCommand() *cli.Command {
	return &cli.Command{
		Name:      "activate",
		Usage:     "parse, validate, instrument, and lower a user WASM program",
		ArgsUsage: "<wasm-file>",
		Flags: []cli.Flag{
			&cli.Uint64Flag{Name: "max-depth", Value: 4096, Usage: "stylus_stack_left budget"},
			&cli.Uint64Flag{Name: "heap-bound-pages", Value: 128, Usage: "maximum linear memory pages"},
		},
		Action: func(c *cli.Context) error {
			logger := log.Default().Module("activate")
			path := c.Args().First()
			if path == "" {
				return cli.Exit("activate requires a wasm file path", 2)
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			m, err := wasmbin.Parse(raw)
			if err != nil {
				return fmt.Errorf("parse: %w", err)
			}
			limits := wasmbin.DefaultUserLimits()
			limits.PageLimit = uint32(c.Uint64("heap-bound-pages"))
			if err := wasmbin.ValidateShared(m); err != nil {
				return fmt.Errorf("validate: %w", err)
			}
			if err := wasmbin.ValidateUserProgram(m, limits); err != nil {
				return fmt.Errorf("validate user program: %w", err)
			}
			if err := wasmbin.RequiredExports(m); err != nil {
				return fmt.Errorf("required exports: %w", err)
			}

			cfg := wavm.InstrumentConfig{
				HeapBoundPages:  uint32(c.Uint64("heap-bound-pages")),
				MaxDepth:        uint32(c.Uint64("max-depth")),
				StartExportName: "start",
			}
			pipeline := wavm.DefaultPipeline(false)
			costParams := wavm.ActivationCostParams{
				InitCostBase:          1000,
				InitCostPerByte:       3,
				CachedInitCostBase:    200,
				CachedInitCostPerByte: 1,
				AsmEstimatePerByte:    1,
			}
			compiled, err := wavm.Compile(m, pipeline, cfg, wavm.LowerOptions{}, costParams)
			if err != nil {
				return fmt.Errorf("compile: %w", err)
			}

			logger.Info("activated program",
				"functions", len(compiled.Functions),
				"footprint_pages", compiled.Data.FootprintPages,
				"asm_estimate_bytes", compiled.Data.AsmEstimateBytes,
			)
			fmt.Printf("functions:          %d\n", len(compiled.Functions))
			fmt.Printf("footprint pages:    %d\n", compiled.Data.FootprintPages)
			fmt.Printf("asm estimate bytes: %d\n", compiled.Data.AsmEstimateBytes)
			return nil
		},
	}
}

func compressCommand() *cli.Command {
	return &cli.Command{
		Name:      "compress",
		Usage:     "compress a file for preimage/return-data storage",
		ArgsUsage: "<in-file> <out-file>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return cli.Exit("compress requires <in-file> <out-file>", 2)
			}
			data, err := os.ReadFile(c.Args().Get(0))
			if err != nil {
				return err
			}
			out, err := arbcompress.Compress(data, arbcompress.LevelDefault)
			if err != nil {
				return err
			}
			return os.WriteFile(c.Args().Get(1), out, 0o644)
		},
	}
}

func decompressCommand() *cli.Command {
	return &cli.Command{
		Name:      "decompress",
		Usage:     "decompress a file previously written by compress",
		ArgsUsage: "<in-file> <out-file>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max-size", Value: 64 << 20, Usage: "maximum decompressed size"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return cli.Exit("decompress requires <in-file> <out-file>", 2)
			}
			data, err := os.ReadFile(c.Args().Get(0))
			if err != nil {
				return err
			}
			out, err := arbcompress.Decompress(data, c.Int("max-size"))
			if err != nil {
				return err
			}
			return os.WriteFile(c.Args().Get(1), out, 0o644)
		},
	}
}

func nstableCommand() *cli.Command {
	return &cli.Command{
		Name:      "nstable",
		Usage:     "list namespace ranges declared by a namespace table",
		ArgsUsage: "<table-file> <payload-file>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return cli.Exit("nstable requires <table-file> <payload-file>", 2)
			}
			table, err := os.ReadFile(c.Args().Get(0))
			if err != nil {
				return err
			}
			payload, err := os.ReadFile(c.Args().Get(1))
			if err != nil {
				return err
			}
			it, err := nstable.NewIterator(table, payload)
			if err != nil {
				return err
			}
			for {
				e, ok := it.Next(table)
				if !ok {
					break
				}
				fmt.Printf("namespace %d: [%d, %d)\n", e.ID, e.Start, e.End)
			}
			return nil
		},
	}
}

func preimageCommand() *cli.Command {
	return &cli.Command{
		Name:      "preimage",
		Usage:     "look up a preimage by its keccak256 hash in a preimage file",
		ArgsUsage: "<preimage-file> <hex-hash>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() < 2 {
				return cli.Exit("preimage requires <preimage-file> <hex-hash>", 2)
			}
			store, err := preimage.LoadFile(c.Args().Get(0))
			if err != nil {
				return err
			}
			raw, err := hex.DecodeString(c.Args().Get(1))
			if err != nil || len(raw) != 32 {
				return cli.Exit("hex-hash must be a 32-byte hex string", 2)
			}
			var hash [32]byte
			copy(hash[:], raw)
			payload, ok := store.Get(hash)
			if !ok {
				return cli.Exit("no preimage found for that hash", 1)
			}
			fmt.Printf("%s\n", hex.EncodeToString(payload))
			return nil
		},
	}
}
