package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pingcap-incubator/tinystm/kv/bench"
	"github.com/pingcap-incubator/tinystm/kv/executor"
	"github.com/pingcap-incubator/tinystm/kv/stm"
	"github.com/pingcap-incubator/tinystm/kv/transaction/commands"
	"github.com/pingcap-incubator/tinystm/log"
	"github.com/spf13/cobra"
)

var (
	startArg       uint32
	endArg         uint32
	engineArg      string
	shardsArg      int
	backoffArg     time.Duration
	serializeArg   bool
	concurrencyArg int
	csvArg         string
	outputArg      string
	logLevelArg    string

	globalContext context.Context
	globalCancel  context.CancelFunc
)

func main() {
	globalContext, globalCancel = context.WithCancel(context.Background())

	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		sig := <-sc
		fmt.Printf("\nGot signal [%v] to exit.\n", sig)
		globalCancel()
		sig = <-sc
		fmt.Printf("\nGot signal [%v] again to exit.\n", sig)
		os.Exit(1)
	}()

	rootCmd := &cobra.Command{
		Use:   "tinystm-bench",
		Short: "Transfer benchmarks against an in-process tinystm memory",
	}
	flags := rootCmd.PersistentFlags()
	flags.Uint32Var(&startArg, "start", 1, "First allocated address")
	flags.Uint32Var(&endArg, "end", 100, "Last allocated address")
	flags.StringVar(&engineArg, "engine", stm.EngineSharded, "Store engine: sharded or btree")
	flags.IntVar(&shardsArg, "shards", 64, "Shard count of the sharded engine")
	flags.DurationVar(&backoffArg, "backoff", stm.DefaultBackoff, "Wait between conflicting attempts")
	flags.BoolVar(&serializeArg, "serialize", false, "Serialize commits touching the same keys")
	flags.IntVar(&concurrencyArg, "concurrency", 0, "Transactions in flight, 0 means all at once")
	flags.StringVar(&outputArg, "output", bench.OutputStyleTable, "Output style: plain, table or json")
	flags.StringVar(&logLevelArg, "loglevel", "warn", "Log level")

	rootCmd.AddCommand(
		newTransferCommand(),
		newChainCommand(),
		newQueryCommand(),
	)

	cobra.EnablePrefixMatching = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(rootCmd.UsageString())
		os.Exit(1)
	}
	globalCancel()
}

func newTransferCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "transfer",
		Short: "Every address transfers one unit to each lower address",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(bench.ReverseTransferPairs(startArg, endArg))
		},
	}
	m.Flags().StringVar(&csvArg, "csv", "", "Write per transaction timings to this file")
	return m
}

func newChainCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "chain",
		Short: "Every address transfers one unit to the address below it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(bench.ChainPairs(startArg, endArg))
		},
	}
	m.Flags().StringVar(&csvArg, "csv", "", "Write per transaction timings to this file")
	return m
}

func newQueryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "query",
		Short: "Allocate the addresses and print their values",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			values := bench.Query(env, startArg, endArg)
			rows := make([][]string, 0, len(values))
			for _, v := range values {
				value := "none"
				if v.Value != nil {
					value = v.Value.String()
				}
				rows = append(rows, []string{v.Addr, value, fmt.Sprintf("%d", v.Version)})
			}
			return bench.Render(os.Stdout, outputArg, []string{"Addr", "Value", "Version"}, rows)
		},
	}
}

func setup() (*commands.Env, error) {
	if err := log.InitLogger(logLevelArg, ""); err != nil {
		return nil, err
	}
	store, err := stm.NewStore(engineArg, shardsArg)
	if err != nil {
		return nil, err
	}
	opts := stm.DefaultOptions()
	opts.Backoff = backoffArg
	opts.SerializeCommits = serializeArg
	env := &commands.Env{
		Driver:   stm.NewDriver(store, opts),
		Executor: executor.NewBuiltinRegistry(),
		Alloc: commands.AllocRange{
			Start:       startArg,
			End:         endArg,
			Concurrency: concurrencyArg,
		},
	}
	if _, err := commands.Alloc(globalContext, env.Driver, env.Alloc); err != nil {
		return nil, err
	}
	return env, nil
}

func runTransfer(pairs []bench.Pair) error {
	env, err := setup()
	if err != nil {
		return err
	}
	recorder := bench.NewRecorder(csvArg != "")
	runner := bench.NewRunner(env, recorder, concurrencyArg)

	start := time.Now()
	failed, err := runner.Transfer(globalContext, pairs)
	fmt.Printf("Run finished, takes %s, txs=%d failed=%d\n", time.Since(start), len(pairs), failed)
	stats := env.Driver.Stats()
	fmt.Printf("commits=%d conflicts=%d errors=%d\n", stats.Commits, stats.Conflicts, stats.Errors)
	if renderErr := bench.Render(os.Stdout, outputArg, bench.SummaryHeaders, recorder.Summary()); renderErr != nil {
		return renderErr
	}
	if err != nil {
		return err
	}
	if csvArg != "" {
		f, err := os.Create(csvArg)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := recorder.WriteCSV(f); err != nil {
			return err
		}
	}
	return nil
}
