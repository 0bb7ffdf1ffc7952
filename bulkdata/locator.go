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

package bulkdata

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/GAOHunter/dcm4che/dicom"
	"github.com/GAOHunter/dcm4che/logging"
	"github.com/GAOHunter/dcm4che/logging/logfields"
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "bulkdata")

const (
	// DefaultPrefix is the file name prefix of spooled bulk data files
	DefaultPrefix = "blk"

	// DefaultSuffix is the file name suffix of spooled bulk data files
	DefaultSuffix = ".tmp"
)

// Reference locates bulk data bytes in a file
type Reference struct {
	// Path is the absolute path of the file
	Path   string
	Offset int64
	Length int64
}

// URI returns the reference as file URI carrying the offset and length as query parameters,
// e.g. file:///tmp/in.dcm?offset=1234&length=512
func (r *Reference) URI() string {
	u := url.URL{
		Scheme:   "file",
		Path:     filepath.ToSlash(r.Path),
		RawQuery: fmt.Sprintf("offset=%d&length=%d", r.Offset, r.Length),
	}
	return u.String()
}

// Locator references the bytes of bulk data read from a DICOM stream
type Locator interface {
	// Locate consumes r and returns the reference to its bytes. The reference is nil when r is
	// empty.
	Locate(r *dicom.BulkDataReader) (*Reference, error)

	// Close releases the files held by the Locator
	Close() error
}

// SourceFileLocator references bulk data at its position in the input file. It requires the
// offsets of the BulkDataReaders to be file offsets which does not hold for deflated data sets.
type SourceFileLocator struct {
	path string
}

// SourceFile returns a Locator referencing bulk data in the file at path
func SourceFile(path string) (*SourceFileLocator, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %v: %v", path, err)
	}
	return &SourceFileLocator{abs}, nil
}

// Locate returns the region of r in the source file
func (l *SourceFileLocator) Locate(r *dicom.BulkDataReader) (*Reference, error) {
	if r.Length == 0 {
		return nil, nil
	}
	return &Reference{Path: l.path, Offset: r.Offset, Length: r.Length}, nil
}

// Close is a no-op
func (l *SourceFileLocator) Close() error {
	return nil
}

// Spool copies bulk data to files named Prefix + random + Suffix in Dir. With Concatenate, all
// bulk data is appended to a single file. Spooled files are kept after Close.
type Spool struct {
	// Dir is the directory of the spooled files. The default temporary directory is used when empty
	Dir         string
	Prefix      string
	Suffix      string
	Concatenate bool

	cat       *os.File
	catOffset int64
}

// NewSpool returns a Spool writing to dir with the default prefix and suffix
func NewSpool(dir string) *Spool {
	return &Spool{Dir: dir, Prefix: DefaultPrefix, Suffix: DefaultSuffix}
}

// Locate copies r to a spool file and returns the reference to the copy
func (s *Spool) Locate(r *dicom.BulkDataReader) (*Reference, error) {
	if r.Length == 0 {
		return nil, r.Close()
	}

	if s.Concatenate {
		return s.append(r)
	}

	f, err := s.create()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n, err := copyAll(f, r)
	if err != nil {
		return nil, fmt.Errorf("spooling bulk data to %v: %v", f.Name(), err)
	}
	return &Reference{Path: f.Name(), Offset: 0, Length: n}, nil
}

func (s *Spool) append(r *dicom.BulkDataReader) (*Reference, error) {
	if s.cat == nil {
		f, err := s.create()
		if err != nil {
			return nil, err
		}
		s.cat = f
	}

	n, err := copyAll(s.cat, r)
	s.catOffset += n
	if err != nil {
		return nil, fmt.Errorf("spooling bulk data to %v: %v", s.cat.Name(), err)
	}
	return &Reference{Path: s.cat.Name(), Offset: s.catOffset - n, Length: n}, nil
}

// copyAll copies the bulk data of r to w and fails if r ends before its length
func copyAll(w io.Writer, r *dicom.BulkDataReader) (int64, error) {
	n, err := io.Copy(w, r)
	if err != nil {
		return n, err
	}
	if n != r.Length {
		return n, fmt.Errorf("got %v bytes, want %v: %v", n, r.Length, io.ErrUnexpectedEOF)
	}
	return n, nil
}

func (s *Spool) create() (*os.File, error) {
	dir := s.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving bulk data directory: %v", err)
	}

	f, err := os.CreateTemp(dir, s.Prefix+"*"+s.Suffix)
	if err != nil {
		return nil, fmt.Errorf("creating bulk data file: %v", err)
	}
	log.WithFields(logrus.Fields{
		logfields.File: f.Name(),
	}).Debug("Created bulk data file")
	return f, nil
}

// Close closes the file of concatenated bulk data
func (s *Spool) Close() error {
	if s.cat == nil {
		return nil
	}
	err := s.cat.Close()
	s.cat = nil
	s.catOffset = 0
	return err
}
