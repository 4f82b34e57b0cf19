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
	"fmt"
	"os"
	"path/filepath"

	"github.com/nickng/dinephil/acquire"
	"github.com/nickng/dinephil/model"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cfsmsCmd represents the cfsms command
var cfsmsCmd = &cobra.Command{
	Use:   "cfsms",
	Short: "Export the fork protocol as CFSMs",
	Long: `Export the fork protocol of a table as CFSMs

The output is written to <outdir>/<prefix>_cfsms and can be checked for
deadlocks with the GMC global graph synthesis tool.`,
	PreRunE: bindFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := writeCFSMs(viper.GetString("outdir"), viper.GetString("prefix"),
			viper.GetInt("philosophers"), viper.GetString("policy"))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "CFSMs written to %s\n", path)
		return nil
	},
}

func init() {
	cfsmsCmd.Flags().String("prefix", "output", "Output files prefix")
	cfsmsCmd.Flags().String("outdir", "third_party/gmc-synthesis/inputs", "Output directory for CFSMs")
	cfsmsCmd.Flags().IntP("philosophers", "n", 5, "Number of philosophers (and forks)")
	cfsmsCmd.Flags().String("policy", string(acquire.Backoff), fmt.Sprintf("Fork acquisition policy %v", acquire.Policies))

	RootCmd.AddCommand(cfsmsCmd)
}

func writeCFSMs(outdir, prefix string, n int, policy string) (string, error) {
	p, err := acquire.ParsePolicy(policy)
	if err != nil {
		return "", err
	}
	sys, err := model.New(n, p)
	if err != nil {
		return "", err
	}
	sys.PrintSummary(os.Stderr)

	if err := os.MkdirAll(outdir, 0750); err != nil {
		return "", errors.Wrap(err, "create output directory")
	}
	path := filepath.Join(outdir, fmt.Sprintf("%s_cfsms", prefix))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create CFSMs file")
	}
	defer f.Close()
	if _, err := sys.WriteTo(f); err != nil {
		return "", errors.Wrap(err, "write CFSMs")
	}
	return path, f.Close()
}
