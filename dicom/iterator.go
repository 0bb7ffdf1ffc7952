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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// preambleSize is the size of the DICOM preamble plus the "DICM" signature
const preambleSize = 128 + 4

// DataElementIterator represents a sequence of DataElements in a DataSet
type DataElementIterator interface {
	// NextElement returns the next DataElement in the DataSet. If there is no next DataElement, the
	// error io.EOF is returned. In Addition, if any previously returned DataElements contained
	// iterable objects like SequenceIterator, BulkDataIterator, these iterators are emptied.
	NextElement() (*DataElement, error)

	// Close discards all remaining DataElements in the iterator
	Close() error

	// ByteOrder is the byte order of the binary values in the DataSet
	ByteOrder() binary.ByteOrder

	// TransferSyntaxUID is the UID of the transfer syntax the DataSet is encoded in
	TransferSyntaxUID() string

	// Length is the length of the DataSet in bytes, or UndefinedLength
	Length() uint32

	// Offset is the stream position following the element last returned by NextElement. Values
	// that are not streamed as iterators start at Offset minus their ValueLength.
	Offset() int64

	syntax() transferSyntax
}

// NewDataElementIterator reads the DICOM preamble, signature and File Meta Information of r and
// returns a DataElementIterator that yields the File Meta Elements followed by the elements of
// the main DataSet. For the deflated transfer syntax, the data set is inflated on the fly and the
// offsets reported by BulkDataReaders are relative to the inflated stream.
func NewDataElementIterator(r io.Reader) (DataElementIterator, error) {
	dr := newDcmReader(r)
	if err := readDicomSignature(dr); err != nil {
		return nil, err
	}

	metaHeaderBytes, err := bufferMetadataHeader(dr)
	if err != nil {
		return nil, fmt.Errorf("reading meta header: %v", err)
	}

	syntax, err := findSyntax(metaHeaderBytes)
	if err != nil {
		return nil, fmt.Errorf("finding transfer syntax: %v", err)
	}

	metaIter := newDataElementIterator(
		newDcmReaderAt(bytes.NewReader(metaHeaderBytes), preambleSize), explicitVRLittleEndian, uint32(len(metaHeaderBytes)))

	if syntax.isDeflated() {
		// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_A.5
		dr = newDcmReader(flate.NewReader(dr.cr))
	}

	return &dataElementIterator{dr, syntax, UndefinedLength, nil, false, metaIter, 0}, nil
}

func newDataElementIterator(r *dcmReader, syntax transferSyntax, length uint32) DataElementIterator {
	return &dataElementIterator{r, syntax, length, nil, false, emptyElementIterator{syntax}, 0}
}

type dataElementIterator struct {
	dr             *dcmReader
	transfer       transferSyntax
	length         uint32
	currentElement *DataElement
	empty          bool
	metaHeader     DataElementIterator
	offset         int64
}

func (it *dataElementIterator) NextElement() (*DataElement, error) {
	metaElem, err := it.metaHeader.NextElement()
	if err == io.EOF {
		return it.nextDataSetElement()
	}
	if err != nil {
		return nil, err
	}
	it.offset = it.metaHeader.Offset()
	return metaElem, nil
}

func (it *dataElementIterator) ByteOrder() binary.ByteOrder {
	return it.transfer.byteOrder()
}

func (it *dataElementIterator) TransferSyntaxUID() string {
	return it.transfer.uid()
}

func (it *dataElementIterator) Length() uint32 {
	return it.length
}

func (it *dataElementIterator) Offset() int64 {
	return it.offset
}

func (it *dataElementIterator) syntax() transferSyntax {
	return it.transfer
}

func (it *dataElementIterator) nextDataSetElement() (*DataElement, error) {
	if it.empty {
		return nil, io.EOF
	}
	if err := it.closeCurrent(); err != nil {
		return nil, fmt.Errorf("closing: %v", err)
	}

	element, err := readDataElement(it.dr, it.transfer)
	if err == io.EOF {
		it.empty = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("parsing element: %v", err)
	}

	it.currentElement = element
	it.offset = it.dr.Offset()

	return it.currentElement, nil
}

func (it *dataElementIterator) Close() error {
	// empty the iterator
	for _, err := it.NextElement(); err != io.EOF; _, err = it.NextElement() {
		if err != nil {
			return fmt.Errorf("unexpected error closing iterator: %v", err)
		}
	}
	return nil
}

func (it *dataElementIterator) closeCurrent() error {
	if it.currentElement == nil {
		return nil
	}

	if closer, ok := it.currentElement.ValueField.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

func readDicomSignature(r *dcmReader) error {
	if err := r.Skip(128); err != nil {
		return fmt.Errorf("skipping preamble: %v", err)
	}

	magic, err := r.String(4)
	if err != nil {
		return fmt.Errorf("reading DICOM signature: %v", err)
	}

	if magic != "DICM" {
		return fmt.Errorf("wrong DICOM signature: %q", magic)
	}

	return nil
}

func bufferMetadataHeader(dr *dcmReader) ([]byte, error) {
	firstElemBytes, err := dr.Bytes(4 /*tag*/ + 2 /*vr*/ + 2 /*len*/ + 4 /*UL=4bytes*/)
	if err != nil {
		return nil, fmt.Errorf("buffering bytes of FileMetaInformationGroupLength: %v", err)
	}
	firstElem, err := readDataElement(newDcmReader(bytes.NewReader(firstElemBytes)), explicitVRLittleEndian)
	if err != nil {
		return nil, fmt.Errorf("parsing FileMetaInformationGroupLength element: %v", err)
	}
	if firstElem.Tag != FileMetaInformationGroupLengthTag {
		return nil, fmt.Errorf("expected FileMetaInformationGroupLength as first element, got %v", firstElem.Tag)
	}
	if metaGroupLength, ok := firstElem.ValueField.([]uint32); ok {
		if len(metaGroupLength) != 1 {
			return nil, fmt.Errorf("expected 1 value for meta group lengths")
		}
		remainderBytes, err := dr.Bytes(int64(metaGroupLength[0]))
		if err != nil {
			return nil, fmt.Errorf("buffering the file meta elements: %v", err)
		}

		return append(firstElemBytes, remainderBytes...), nil
	}

	return nil, fmt.Errorf("wrong type for FileMetaInformationGroupLength. Got %T, want []uint32", firstElem.ValueField)
}

func findSyntax(metaHeaderBytes []byte) (transferSyntax, error) {
	metaIter := newDataElementIterator(newDcmReader(bytes.NewReader(metaHeaderBytes)), explicitVRLittleEndian, uint32(len(metaHeaderBytes)))

	for elem, err := metaIter.NextElement(); err != io.EOF; elem, err = metaIter.NextElement() {
		if err != nil {
			return nil, fmt.Errorf("reading meta element: %v", err)
		}
		if elem.Tag == TransferSyntaxUIDTag {
			return findSyntaxFromElement(elem)
		}
	}

	return nil, fmt.Errorf("transfer syntax not found")
}

func findSyntaxFromElement(element *DataElement) (transferSyntax, error) {
	ids, ok := element.ValueField.([]string)
	if !ok {
		return nil, fmt.Errorf("expected type []string for transfer syntax element")
	}
	if len(ids) != 1 {
		return nil, fmt.Errorf("expected 1 value length for transfer syntax")
	}

	return lookupTransferSyntax(ids[0]), nil
}

type emptyElementIterator struct {
	transfer transferSyntax
}

func (it emptyElementIterator) NextElement() (*DataElement, error) {
	return nil, io.EOF
}

func (it emptyElementIterator) ByteOrder() binary.ByteOrder {
	return it.transfer.byteOrder()
}

func (it emptyElementIterator) TransferSyntaxUID() string {
	return it.transfer.uid()
}

func (it emptyElementIterator) Length() uint32 {
	return 0
}

func (it emptyElementIterator) Offset() int64 {
	return 0
}

func (it emptyElementIterator) syntax() transferSyntax {
	return it.transfer
}

func (it emptyElementIterator) Close() error {
	return nil
}
