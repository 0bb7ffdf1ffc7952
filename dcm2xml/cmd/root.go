// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GAOHunter/dcm4che/dcm2xml/options"
	"github.com/GAOHunter/dcm4che/logging"
	"github.com/GAOHunter/dcm4che/logging/logfields"
)

// Version is the version printed by --version. It is overridden at link time with
// -ldflags "-X github.com/GAOHunter/dcm4che/dcm2xml/cmd.Version=..."
var Version = "5.0.0"

const (
	description = "Convert <dicom-file> (or the standard input if <dicom-file> = '-') in XML " +
		"presentation and optionally apply XSLT stylesheet on it. Writes result to standard output."

	usageHint = "Try `dcm2xml --help' for more information."

	// exitFailure is the exit code of usage and conversion errors
	exitFailure = 2
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "dcm2xml")

// usageError is an invalid command line
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

// NewCmd returns the dcm2xml command reading standard input from stdin and writing the XML
// document to stdout. Configuration is read from flags and DCM2XML_* environment variables.
func NewCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	conf := &options.Config{}
	vp := viper.New()

	rootCmd := &cobra.Command{
		Use:                   "dcm2xml [<options>] <dicom-file>",
		Short:                 "Convert a DICOM file to XML",
		Long:                  description,
		Version:               Version,
		DisableFlagsInUseLine: true,
		SilenceErrors:         true,
		SilenceUsage:          true,
		Args: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) == 0:
				return &usageError{"Missing file operand"}
			case len(args) > 1:
				return &usageError{"Too many arguments"}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := vp.Unmarshal(conf); err != nil {
				return &usageError{err.Error()}
			}
			if err := conf.Validate(); err != nil {
				return &usageError{err.Error()}
			}
			if err := logging.SetupLogging(stderr, conf.LogLevel, conf.LogFormat); err != nil {
				return &usageError{err.Error()}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return NewConverter(conf, stdin, stdout).Convert(ctx, args[0])
		},
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err.Error()}
	})

	flags := rootCmd.Flags()
	conf.Flags(flags)
	// Use Viper for configuration so that we can parse both command line flags and environment variables
	vp.BindPFlags(flags)
	vp.SetEnvPrefix("dcm2xml")
	vp.AutomaticEnv()
	vp.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	return rootCmd
}

// Run executes the command with the arguments and returns the process exit code
func Run(rootCmd *cobra.Command, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	stderr := rootCmd.ErrOrStderr()
	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(stderr, "dcm2xml: %s\n%s\n", uerr.msg, usageHint)
		return exitFailure
	}

	fmt.Fprintf(stderr, "dcm2xml: %v\n", err)
	fmt.Fprintf(stderr, "%+v\n", err)
	log.WithError(err).Debug("Conversion failed")
	return exitFailure
}

// Execute runs dcm2xml with the process arguments and standard streams
func Execute() int {
	return Run(NewCmd(os.Stdin, os.Stdout, os.Stderr), os.Args[1:])
}
