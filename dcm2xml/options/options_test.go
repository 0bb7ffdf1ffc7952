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
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/GAOHunter/dcm4che/nativexml"
)

func parse(t *testing.T, args ...string) *Config {
	t.Helper()

	conf := &Config{}
	flags := pflag.NewFlagSet("dcm2xml", pflag.ContinueOnError)
	conf.Flags(flags)
	require.NoError(t, flags.Parse(args))
	return conf
}

func TestFlags_Defaults(t *testing.T) {
	conf := parse(t)
	assert.Equal(t, &Config{
		BlkFilePrefix: "blk",
		BlkFileSuffix: ".tmp",
		LogLevel:      "warning",
		LogFormat:     "text",
	}, conf)
	assert.NoError(t, conf.Validate())
}

func TestFlags_Short(t *testing.T) {
	conf := parse(t, "-x", "a.xsl", "-I", "-K", "-b", "-d", "/blk", "-c", "-X", "spec.xml", "-V")
	assert.Equal(t, &Config{
		XSLT:          "a.xsl",
		Indent:        true,
		NoKeyword:     true,
		WithBulkData:  true,
		BlkFileDir:    "/blk",
		BlkFilePrefix: "blk",
		BlkFileSuffix: ".tmp",
		CatBlkFiles:   true,
		BlkSpec:       "spec.xml",
		Version:       true,
		LogLevel:      "warning",
		LogFormat:     "text",
	}, conf)
}

func TestFlags_Long(t *testing.T) {
	conf := parse(t, "--no-bulkdata", "--blk-file-prefix", "px", "--blk-file-suffix", ".raw", "--log-level", "debug", "--log-format", "json")
	assert.True(t, conf.NoBulkData)
	assert.Equal(t, "px", conf.BlkFilePrefix)
	assert.Equal(t, ".raw", conf.BlkFileSuffix)
	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, "json", conf.LogFormat)
}

func TestValidate(t *testing.T) {
	conf := parse(t, "-b", "-B", "--log-level", "loud", "--log-format", "xml")
	err := conf.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestBulkDataMode(t *testing.T) {
	tests := []struct {
		args []string
		want nativexml.BulkDataMode
	}{
		{nil, nativexml.Locate},
		{[]string{"-b"}, nativexml.Inline},
		{[]string{"-B"}, nativexml.Omit},
	}

	for _, tc := range tests {
		t.Run(tc.want.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, parse(t, tc.args...).BulkDataMode())
		})
	}
}
