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
	"os"
	"os/signal"
	"syscall"

	"github.com/nickng/dinephil/event"
	"github.com/nickng/dinephil/metrics"
	"github.com/nickng/dinephil/webservice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// recentEvents is the number of events kept for the webservice.
const recentEvents = 256

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Run a table with an HTTP status webservice",
	Long: `Run a table with an HTTP status webservice.

The webservice shows the philosopher states (/ and /state), the wait-for
graph in DOT format (/waitgraph), recent events (/events) and Prometheus
metrics (/metrics). It keeps serving the final state of the table after the
run ends, until interrupted.`,
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	tableFlags(serveCmd.Flags())
	serveCmd.Flags().String("bind", "127.0.0.1", "Bind address. Defaults to 127.0.0.1.")
	serveCmd.Flags().String("port", "6060", "Listen port. Defaults to 6060.")
	RootCmd.AddCommand(serveCmd)
}

// serve starts the HTTP server and the table.
func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	l, err := newLogWriter()
	if err != nil {
		return err
	}
	defer l.Cleanup()
	logger := l.Logger("dinephil: ")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	rec := event.NewRecorder(recentEvents)
	m := metrics.New(reg, viper.GetString("policy"))
	tbl, err := newTable(event.Multi(event.NewLogger(l), rec, m))
	if err != nil {
		return err
	}

	server := webservice.NewServer(viper.GetString("bind"), viper.GetString("port"), &webservice.Status{
		Table:    tbl,
		Events:   rec,
		Gatherer: reg,
		Logger:   logger,
	})
	url, err := server.URL()
	if err != nil {
		return err
	}
	logger.Printf("Listening at %s", url)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	var runErr error
	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		runErr = runTable(ctx, tbl, logger, os.Stdout)
		<-ctx.Done()
		return server.Close()
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return runErr
}
