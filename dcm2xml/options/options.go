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

package options

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/GAOHunter/dcm4che/bulkdata"
	"github.com/GAOHunter/dcm4che/logging"
	"github.com/GAOHunter/dcm4che/nativexml"
)

type Config struct {
	XSLT          string `mapstructure:"xslt"`
	Indent        bool   `mapstructure:"indent"`
	NoKeyword     bool   `mapstructure:"no-keyword"`
	NoBulkData    bool   `mapstructure:"no-bulkdata"`
	WithBulkData  bool   `mapstructure:"with-bulkdata"`
	BlkFileDir    string `mapstructure:"blk-file-dir"`
	BlkFilePrefix string `mapstructure:"blk-file-prefix"`
	BlkFileSuffix string `mapstructure:"blk-file-suffix"`
	CatBlkFiles   bool   `mapstructure:"cat-blk-files"`
	BlkSpec       string `mapstructure:"blk-spec"`
	Version       bool   `mapstructure:"version"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
}

var errBulkDataModes = errors.New("options -b/--with-bulkdata and -B/--no-bulkdata are mutually exclusive")

func (conf *Config) Flags(flags *pflag.FlagSet) {
	flags.StringVarP(&conf.XSLT, "xslt", "x", "", "apply specified XSLT stylesheet `xsl-file`")
	flags.BoolVarP(&conf.Indent, "indent", "I", false, "use additional whitespace in XML output, including the output of the XSLT stylesheet")
	flags.BoolVarP(&conf.NoKeyword, "no-keyword", "K", false, "do not include keyword attribute of DicomAttribute element in XML output")

	// Bulk data
	flags.BoolVarP(&conf.NoBulkData, "no-bulkdata", "B", false, "do not include bulkdata in XML output; by default, references to bulkdata are included.")
	flags.BoolVarP(&conf.WithBulkData, "with-bulkdata", "b", false, "include bulkdata directly in XML output; by default, only references to bulkdata are included.")
	flags.StringVarP(&conf.BlkFileDir, "blk-file-dir", "d", "", "`directory` where files with extracted bulkdata are stored if the DICOM object is read from standard input; if not specified, files are stored into the default temporary-file directory.")
	flags.StringVar(&conf.BlkFilePrefix, "blk-file-prefix", bulkdata.DefaultPrefix, "`prefix` for generating file names for extracted bulkdata")
	flags.StringVar(&conf.BlkFileSuffix, "blk-file-suffix", bulkdata.DefaultSuffix, "`suffix` for generating file names for extracted bulkdata")
	flags.BoolVarP(&conf.CatBlkFiles, "cat-blk-files", "c", false, "concatenate extracted bulkdata into one file.")
	flags.StringVarP(&conf.BlkSpec, "blk-spec", "X", "", "specify bulkdata attributes explicitly by XML presentation in `xml-file`.")

	flags.BoolVarP(&conf.Version, "version", "V", false, "output version information and exit")

	flags.StringVar(&conf.LogLevel, "log-level", logging.DefaultLogLevel.String(), "Log level: panic | fatal | error | warning | info | debug | trace")
	flags.StringVar(&conf.LogFormat, "log-format", string(logging.DefaultLogFormat), "Log format: text | json")
}

func (conf *Config) Validate() error {
	var acc error
	if conf.NoBulkData && conf.WithBulkData {
		acc = multierr.Append(acc, errBulkDataModes)
	}
	if _, err := logrus.ParseLevel(conf.LogLevel); err != nil {
		acc = multierr.Append(acc, err)
	}
	if _, err := logging.ParseLogFormat(conf.LogFormat); err != nil {
		acc = multierr.Append(acc, err)
	}
	return acc
}

// BulkDataMode returns how bulk data is written to the XML output
func (conf *Config) BulkDataMode() nativexml.BulkDataMode {
	switch {
	case conf.WithBulkData:
		return nativexml.Inline
	case conf.NoBulkData:
		return nativexml.Omit
	}
	return nativexml.Locate
}
