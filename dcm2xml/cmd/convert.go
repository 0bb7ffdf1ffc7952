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
	"bufio"
	"bytes"
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/GAOHunter/dcm4che/bulkdata"
	"github.com/GAOHunter/dcm4che/dcm2xml/options"
	"github.com/GAOHunter/dcm4che/dicom"
	"github.com/GAOHunter/dcm4che/logging/logfields"
	"github.com/GAOHunter/dcm4che/nativexml"
	"github.com/GAOHunter/dcm4che/xslt"
)

// stdinName is the file operand selecting the standard input
const stdinName = "-"

// Converter converts one DICOM file to XML according to a Config
type Converter struct {
	conf   *options.Config
	stdin  io.Reader
	stdout io.Writer
}

// NewConverter returns a Converter reading "-" from stdin and writing to stdout
func NewConverter(conf *options.Config, stdin io.Reader, stdout io.Writer) *Converter {
	return &Converter{conf: conf, stdin: stdin, stdout: stdout}
}

// Convert writes the XML presentation of the DICOM file name to the standard output
func (c *Converter) Convert(ctx context.Context, name string) error {
	selector := bulkdata.Default()
	if c.conf.BlkSpec != "" {
		s, err := bulkdata.LoadSpec(c.conf.BlkSpec)
		if err != nil {
			return errors.Wrapf(err, "loading bulk data specification %s", c.conf.BlkSpec)
		}
		selector = s
	}

	var style *xslt.Stylesheet
	if c.conf.XSLT != "" {
		s, err := xslt.Load(c.conf.XSLT)
		if err != nil {
			return errors.Wrapf(err, "loading stylesheet %s", c.conf.XSLT)
		}
		defer s.Close()
		style = s
	}

	in, closeInput, err := c.open(name)
	if err != nil {
		return err
	}
	defer closeInput()

	iter, err := dicom.NewDataElementIterator(bufio.NewReader(in))
	if err != nil {
		return errors.Wrapf(err, "reading %s", name)
	}
	defer iter.Close()

	log.WithFields(logrus.Fields{
		logfields.File:           name,
		logfields.TransferSyntax: iter.TransferSyntaxUID(),
		logfields.Mode:           c.conf.BulkDataMode(),
	}).Debug("Converting DICOM file")

	locator, err := c.locator(name, iter.TransferSyntaxUID())
	if err != nil {
		return err
	}
	defer locator.Close()

	w := &nativexml.Writer{
		IncludeKeyword: !c.conf.NoKeyword,
		Indent:         c.conf.Indent && style == nil,
		BulkData:       c.conf.BulkDataMode(),
		Selector:       selector,
		Locator:        locator,
	}

	if style == nil {
		out := bufio.NewWriter(c.stdout)
		if err := w.Write(ctx, out, iter); err != nil {
			return errors.Wrapf(err, "converting %s", name)
		}
		return errors.Wrap(out.Flush(), "writing output")
	}

	var buf bytes.Buffer
	if err := w.Write(ctx, &buf, iter); err != nil {
		return errors.Wrapf(err, "converting %s", name)
	}
	log.WithField(logfields.XSLT, c.conf.XSLT).Debug("Applying stylesheet")
	result, err := style.Transform(buf.Bytes())
	if err != nil {
		return errors.Wrapf(err, "applying stylesheet %s", c.conf.XSLT)
	}
	if c.conf.Indent {
		if result, err = xslt.Indent(result); err != nil {
			return errors.Wrapf(err, "indenting output of stylesheet %s", c.conf.XSLT)
		}
	}
	_, err = c.stdout.Write(result)
	return errors.Wrap(err, "writing output")
}

func (c *Converter) open(name string) (io.Reader, func(), error) {
	if name == stdinName {
		return c.stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	return f, func() { f.Close() }, nil
}

// locator references bulk data in the input file when its offsets are file offsets. Standard
// input and deflated data sets are spooled to files.
func (c *Converter) locator(name, syntax string) (bulkdata.Locator, error) {
	if name != stdinName && syntax != dicom.DeflatedExplicitVRLittleEndianUID {
		l, err := bulkdata.SourceFile(name)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return l, nil
	}
	return &bulkdata.Spool{
		Dir:         c.conf.BlkFileDir,
		Prefix:      c.conf.BlkFilePrefix,
		Suffix:      c.conf.BlkFileSuffix,
		Concatenate: c.conf.CatBlkFiles,
	}, nil
}
