// Copyright © 2016 Nicholas Ng <nickng@projectfate.org>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nickng/dinephil/acquire"
	"github.com/nickng/dinephil/event"
	"github.com/nickng/dinephil/table"
	"github.com/nickng/dinephil/waitgraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a table of philosophers",
	Long: `Run a table of philosophers until the duration ends or interrupted.

Every lifecycle event is logged. The run stops with an error if a
philosopher faults, or if the watchdog sees no meal for a full window while
philosophers are waiting for forks (e.g. the naive policy deadlocked).`,
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogWriter()
		if err != nil {
			return err
		}
		defer l.Cleanup()
		tbl, err := newTable(event.NewLogger(l))
		if err != nil {
			return err
		}
		return runTable(cmd.Context(), tbl, l.Logger("dinephil: "), os.Stdout)
	},
}

func init() {
	tableFlags(runCmd.Flags())
	RootCmd.AddCommand(runCmd)
}

// tableFlags defines the flags configuring a table run.
func tableFlags(fs *pflag.FlagSet) {
	fs.IntP("philosophers", "n", 5, "Number of philosophers (and forks)")
	fs.Duration("think", 10*time.Millisecond, "Thinking time")
	fs.Duration("eat", 10*time.Millisecond, "Eating time")
	fs.String("policy", string(acquire.Backoff), fmt.Sprintf("Fork acquisition policy %v", acquire.Policies))
	fs.Duration("duration", 5*time.Second, "Run duration (0 runs until interrupted)")
	fs.Duration("watchdog", time.Second, "Report a stall after this long without a meal (0 disables)")
	fs.Duration("hesitate", 0, "Pause between taking the left and right fork (naive policy)")
	fs.Duration("backoff-initial", acquire.DefaultBackoffInitial, "Initial backoff interval (backoff policy)")
	fs.Duration("backoff-max", acquire.DefaultBackoffMax, "Maximum backoff interval (backoff policy)")
	fs.String("dot", "", "Write the wait-for graph in DOT format to this file on stall")
}

func newTable(sink event.Sink, opts ...table.Option) (*table.Table, error) {
	cfg := table.Config{
		Philosophers:   viper.GetInt("philosophers"),
		Think:          viper.GetDuration("think"),
		Eat:            viper.GetDuration("eat"),
		Policy:         acquire.Policy(viper.GetString("policy")),
		Hesitate:       viper.GetDuration("hesitate"),
		BackoffInitial: viper.GetDuration("backoff-initial"),
		BackoffMax:     viper.GetDuration("backoff-max"),
		Watchdog:       viper.GetDuration("watchdog"),
	}
	return table.New(cfg, append(opts, table.WithSink(sink))...)
}

// runTable runs tbl until the configured duration ends, SIGINT or SIGTERM.
// A summary is written to out.
func runTable(ctx context.Context, tbl *table.Table, logger *log.Logger, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := viper.GetDuration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	cfg := tbl.Config()
	logger.Printf("Seating %d philosophers, policy %s", cfg.Philosophers, tbl.Strategy())
	start := time.Now()
	err := tbl.Run(ctx)
	summary(out, tbl, time.Since(start))

	var stall *table.StallError
	if errors.As(err, &stall) {
		logger.Println(stall)
		if path := viper.GetString("dot"); path != "" {
			if werr := writeDot(path, stall.Graph); werr != nil {
				logger.Println(werr)
			} else {
				logger.Println("Wait-for graph written to", path)
			}
		}
	}
	return err
}

func writeDot(path string, g *waitgraph.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create dot file")
	}
	defer f.Close()
	if _, err := g.WriteTo(f); err != nil {
		return errors.Wrap(err, "write dot file")
	}
	return f.Close()
}

func summary(w io.Writer, tbl *table.Table, elapsed time.Duration) {
	snap := tbl.Snapshot()
	total := tbl.Meals()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(total) / elapsed.Seconds()
	}
	fmt.Fprintf(w, "%s meals in %s (%s meals/s)\n",
		humanize.Comma(int64(total)), elapsed.Round(time.Millisecond), humanize.FormatFloat("#,###.##", rate))
	for i, meals := range snap.Meals {
		fmt.Fprintf(w, "\tphilosopher %d\t%s meals\n", i, humanize.Comma(int64(meals)))
	}
}
