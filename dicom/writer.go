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
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// DataElementWriter writes DataElements one at a time
type DataElementWriter interface {
	WriteElement(element *DataElement) error

	// Close flushes any buffered bytes. It does not close the underlying io.Writer.
	Close() error
}

var errExpectedMetaHeader = errors.New("expected header to only contain file meta elements, " +
	"use DataSet.MetaElements to filter DataSet")

// NewDataElementWriter writes the DICOM preamble, signature, and meta header to w and returns a
// DataElementWriter that writes DataElements in the transfer syntax specified by the header.
// The FileMetaInformationGroupLength of the header is always recalculated.
func NewDataElementWriter(w io.Writer, header *DataSet) (DataElementWriter, error) {
	if !header.isMetaHeader() {
		return nil, errExpectedMetaHeader
	}

	syntax, err := header.transferSyntax()
	if err != nil {
		return nil, fmt.Errorf("getting transfer syntax from header: %v", err)
	}

	dw := newDcmWriter(w)
	if err := writeDicomSignature(dw); err != nil {
		return nil, err
	}

	meta := &DataSet{Elements: map[DataElementTag]*DataElement{}}
	for tag, element := range header.Elements {
		if tag == FileMetaInformationGroupLengthTag {
			continue
		}
		processed, err := processedElement(element, explicitVRLittleEndian)
		if err != nil {
			return nil, fmt.Errorf("processing %v: %v", tag, err)
		}
		meta.Elements[tag] = processed
	}
	meta.Elements[FileMetaInformationGroupLengthTag] = createMetaGroupLengthElement(meta)

	// meta elements are always written in the Explicit VR Little Endian syntax in ascending order
	if err := writeDataSet(dw, explicitVRLittleEndian, meta); err != nil {
		return nil, fmt.Errorf("writing meta header: %v", err)
	}

	if syntax.isDeflated() {
		fw, err := flate.NewWriter(w, flate.DefaultCompression)
		if err != nil {
			return nil, fmt.Errorf("creating deflate writer: %v", err)
		}
		return &dataElementWriter{newDcmWriter(fw), syntax, fw}, nil
	}

	return &dataElementWriter{dw, syntax, nil}, nil
}

type dataElementWriter struct {
	dw     *dcmWriter
	syntax transferSyntax
	closer io.Closer
}

func (dew *dataElementWriter) WriteElement(element *DataElement) error {
	return writeDataElement(dew.dw, dew.syntax, element)
}

func (dew *dataElementWriter) Close() error {
	if dew.closer == nil {
		return nil
	}
	return dew.closer.Close()
}

func writeDicomSignature(dw *dcmWriter) error {
	if err := dw.Bytes(make([]byte, 128)); err != nil {
		return fmt.Errorf("writing DICOM preamble: %v", err)
	}

	if err := dw.String("DICM"); err != nil {
		return fmt.Errorf("writing DICOM signature: %v", err)
	}

	return nil
}

// createMetaGroupLengthElement computes the File Meta Information Group Length, which excludes
// the group length element itself.
// http://dicom.nema.org/medical/dicom/current/output/html/part10.html#sect_7.1
func createMetaGroupLengthElement(meta *DataSet) *DataElement {
	size := uint32(0)
	for _, element := range meta.Elements {
		size += explicitVRLittleEndian.elementSize(element.VR, element.ValueLength)
	}

	return &DataElement{
		Tag:         FileMetaInformationGroupLengthTag,
		VR:          ULVR,
		ValueField:  []uint32{size},
		ValueLength: 4,
	}
}
