package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/bundle"
	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/utils"
	registry "github.com/vybium/vybium-fact-registry/pkg/vybium-fact-registry"
)

var (
	// Global flags
	configPath string
	debug      bool

	config *registry.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "vybium-fact-registry",
	Short: "Register and query STARK verification facts",
	Long: `vybium-fact-registry commits Cairo memory pages and bootloader statements
as Keccak-256 facts compatible with the on-chain fact registry.

Storage, delegation and event publishing are configured with --config.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			config, err = registry.LoadConfig(configPath)
		} else {
			config = registry.DefaultConfig()
		}
		if err != nil {
			return err
		}
		logger, err = buildLogger(config.Log, debug)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Register the memory pages and statement of a verifier input",
	Long: `Reads an input.json verifier bundle, registers its regular page and
continuous pages in order and, when task metadata is present, the aggregate
statement fact. Prints the registered facts as JSON.`,
	Args: cobra.NoArgs,
	RunE: runSubmit,
}

var isValidCmd = &cobra.Command{
	Use:   "is-valid <fact>",
	Short: "Check whether a fact is registered",
	Args:  cobra.ExactArgs(1),
	RunE:  runIsValid,
}

var challengesCmd = &cobra.Command{
	Use:   "challenges",
	Short: "Derive the memory interaction elements z and alpha",
	Long: `Replays the verifier channel: seeds it with the public input hash, mixes
in the trace commitment and draws z and alpha. Either pass --input with a
verifier bundle or both --public-input-hash and --trace-commitment.`,
	Args: cobra.NoArgs,
	RunE: runChallenges,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	submitCmd.Flags().String("input", "", "verifier input bundle (input.json)")
	_ = submitCmd.MarkFlagRequired("input")

	challengesCmd.Flags().String("input", "", "verifier input bundle (input.json)")
	challengesCmd.Flags().String("public-input-hash", "", "0x-prefixed public input hash")
	challengesCmd.Flags().String("trace-commitment", "", "trace commitment, hex or decimal")

	rootCmd.AddCommand(submitCmd, isValidCmd, challengesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func buildLogger(cfg registry.LogConfig, debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

type pageOutput struct {
	Index    uint64        `json:"index"`
	Type     string        `json:"type"`
	PageHash registry.Fact `json:"page_hash"`
	Fact     registry.Fact `json:"fact"`
	Product  string        `json:"product"`
	Size     uint64        `json:"size"`
}

type submitOutput struct {
	Pages         []pageOutput    `json:"pages"`
	AggregateFact *registry.Fact  `json:"aggregate_fact,omitempty"`
	TaskFacts     []registry.Fact `json:"task_facts,omitempty"`
	CairoAuxInput []string        `json:"cairo_aux_input"`
}

func runSubmit(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	b, err := registry.LoadBundle(input)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	r, err := registry.New(ctx, config, registry.WithLogger(logger))
	if err != nil {
		return err
	}
	defer r.Close()

	res, err := r.RegisterBundle(ctx, b)
	if err != nil {
		logger.Error("bundle rejected", zap.String("input", input), zap.Error(err))
		return err
	}

	out := submitOutput{CairoAuxInput: hexList(res.CairoAuxInput)}
	for _, p := range res.Pages {
		out.Pages = append(out.Pages, pageOutput{
			Index:    p.Index,
			Type:     p.Type.String(),
			PageHash: p.PageHash,
			Fact:     p.Fact,
			Product:  fmt.Sprintf("0x%x", p.Product),
			Size:     p.Size,
		})
	}
	if res.Statement != nil {
		out.AggregateFact = &res.Statement.AggregateFact
		out.TaskFacts = res.Statement.TaskFacts
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

func runIsValid(cmd *cobra.Command, args []string) error {
	fact, err := registry.ParseFact(args[0])
	if err != nil {
		return err
	}
	r, err := registry.New(cmd.Context(), config, registry.WithLogger(logger))
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Fprintln(cmd.OutOrStdout(), r.IsValid(fact))
	return nil
}

func runChallenges(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	hashFlag, _ := cmd.Flags().GetString("public-input-hash")
	commitmentFlag, _ := cmd.Flags().GetString("trace-commitment")

	var (
		hash       registry.Fact
		commitment *big.Int
		err        error
	)
	switch {
	case input != "":
		b, err := registry.LoadBundle(input)
		if err != nil {
			return err
		}
		hash = registry.PublicInputHash(bundle.Ints(b.PublicInput))
		commitment = b.TraceCommitment()
	case hashFlag != "":
		if hash, err = registry.ParseFact(hashFlag); err != nil {
			return err
		}
		if commitmentFlag != "" {
			if commitment, err = utils.ParseInt(commitmentFlag); err != nil {
				return err
			}
			if commitment.BitLen() > 256 {
				return fmt.Errorf("trace commitment does not fit in 32 bytes")
			}
		}
	default:
		return fmt.Errorf("either --input or --public-input-hash is required")
	}

	z, alpha := registry.DeriveInteractionElements(hash, commitment)
	logger.Debug("interaction elements derived", zap.Stringer("public_input_hash", hash))
	return writeJSON(cmd.OutOrStdout(), map[string]string{
		"public_input_hash": hash.Hex(),
		"z":                 fmt.Sprintf("0x%x", z),
		"alpha":             fmt.Sprintf("0x%x", alpha),
	})
}

func hexList(xs []*big.Int) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		out[i] = fmt.Sprintf("0x%x", x)
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
