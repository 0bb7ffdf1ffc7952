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

package dicom

import (
	"encoding/binary"
	"fmt"
	"io"
)

// dcmWriter encodes the fixed size fields of a DICOM stream. Errors writing tags and delimiters
// name the tag being written.
type dcmWriter struct {
	w io.Writer
	// scratch holds one encoded tag or length
	scratch [4]byte
}

func newDcmWriter(w io.Writer) *dcmWriter {
	return &dcmWriter{w: w}
}

// Write passes p to the underlying writer so that values can be encoded with binary.Write.
func (dw *dcmWriter) Write(p []byte) (int, error) {
	return dw.w.Write(p)
}

// Tag writes the group number followed by the element number of tag.
func (dw *dcmWriter) Tag(order binary.ByteOrder, tag DataElementTag) error {
	order.PutUint16(dw.scratch[:2], tag.GroupNumber())
	order.PutUint16(dw.scratch[2:], tag.ElementNumber())
	if err := dw.Bytes(dw.scratch[:]); err != nil {
		return fmt.Errorf("writing tag %v: %v", tag, err)
	}
	return nil
}

// Delimiter writes an item or sequence delimitation item: the tag and a zero length.
func (dw *dcmWriter) Delimiter(order binary.ByteOrder, tag DataElementTag) error {
	if err := dw.Tag(order, tag); err != nil {
		return err
	}
	if err := dw.UInt32(order, 0); err != nil {
		return fmt.Errorf("writing zero length of %v: %v", tag, err)
	}
	return nil
}

func (dw *dcmWriter) UInt16(order binary.ByteOrder, v uint16) error {
	order.PutUint16(dw.scratch[:2], v)
	return dw.Bytes(dw.scratch[:2])
}

func (dw *dcmWriter) UInt32(order binary.ByteOrder, v uint32) error {
	order.PutUint32(dw.scratch[:], v)
	return dw.Bytes(dw.scratch[:])
}

// String writes s unpadded; callers pad values to an even length.
func (dw *dcmWriter) String(s string) error {
	_, err := io.WriteString(dw.w, s)
	return err
}

func (dw *dcmWriter) Bytes(b []byte) error {
	_, err := dw.w.Write(b)
	return err
}
