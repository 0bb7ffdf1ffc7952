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
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
)

// Construct writes the given *DataSet as a DICOM file to the given io.Writer. The output transfer
// syntax is taken from the required TransferSyntax DataElement (0002,0010). Elements missing a VR
// get the VR of the data dictionary and all lengths are recalculated. Sequences and sequence
// items are written with explicit lengths unless their length is UndefinedLength.
func Construct(w io.Writer, dataSet *DataSet) error {
	dew, err := NewDataElementWriter(w, dataSet.MetaElements())
	if err != nil {
		return err
	}

	for _, element := range dataSet.SortedElements() {
		if element.Tag.IsMetaElement() {
			continue
		}
		if err := dew.WriteElement(element); err != nil {
			return fmt.Errorf("writing %v: %v", element.Tag, err)
		}
	}

	return dew.Close()
}

func writeDataElement(dw *dcmWriter, syntax transferSyntax, element *DataElement) error {
	element, err := processedElement(element, syntax)
	if err != nil {
		return fmt.Errorf("processing element: %v", err)
	}

	if err := dw.Tag(syntax.byteOrder(), element.Tag); err != nil {
		return fmt.Errorf("writing tag: %v", err)
	}
	if err := syntax.writeVR(dw, element.VR); err != nil {
		return fmt.Errorf("writing VR: %v", err)
	}
	if err := syntax.writeValueLength(dw, element.VR, element.ValueLength); err != nil {
		return fmt.Errorf("writing length: %v", err)
	}
	if err := writeValue(dw, syntax, element); err != nil {
		return fmt.Errorf("writing value of %v: %v", element.Tag, err)
	}

	return nil
}

// EncodeValue returns the value field of an element holding a buffered value as it is encoded in
// a data set of the given byte order, padded to an even length
func EncodeValue(element *DataElement, order binary.ByteOrder) ([]byte, error) {
	if element.VR == nil || element.VR.kind == sequenceVR {
		return nil, fmt.Errorf("encoding value of %v: not a buffered value", element.Tag)
	}

	var syntax transferSyntax = explicitVRLittleEndian
	if order == binary.BigEndian {
		syntax = explicitVRBigEndian
	}

	var buff bytes.Buffer
	if err := writeValue(newDcmWriter(&buff), syntax, element); err != nil {
		return nil, fmt.Errorf("encoding value of %v: %v", element.Tag, err)
	}
	return buff.Bytes(), nil
}

// processedElement fills in a missing VR from the data dictionary and recalculates the value
// length of the element
func processedElement(element *DataElement, syntax transferSyntax) (*DataElement, error) {
	vr := element.VR
	if vr == nil {
		vr = element.Tag.DictionaryVR()
	}

	length, err := calculateValueLength(vr, element.ValueField, element.ValueLength, syntax)
	if err != nil {
		return nil, fmt.Errorf("calculating value length: %v", err)
	}

	return &DataElement{element.Tag, vr, element.ValueField, length}, nil
}

func calculateValueLength(vr *VR, valueField interface{}, valueLength uint32, syntax transferSyntax) (uint32, error) {
	if valueLength == UndefinedLength {
		return UndefinedLength, nil
	}

	numBytes := int64(0)

	switch v := valueField.(type) {
	case []string:
		for _, s := range v {
			numBytes += int64(len(s))
		}
		if len(v) > 0 { // requires "\" delimiter
			numBytes += int64(len(v)) - 1
		}
	case [][]byte:
		for _, fragment := range v {
			numBytes += int64(len(fragment))
		}
	case []int16:
		numBytes = int64(len(v)) * 2
	case []uint16:
		numBytes = int64(len(v)) * 2
	case []int32:
		numBytes = int64(len(v)) * 4
	case []uint32:
		numBytes = int64(len(v)) * 4
	case []int64:
		numBytes = int64(len(v)) * 8
	case []uint64:
		numBytes = int64(len(v)) * 8
	case []float32:
		numBytes = int64(len(v)) * 4
	case []float64:
		numBytes = int64(len(v)) * 8
	case *Sequence:
		if vr == UNVR {
			// sequences of unknown VR are always delimited
			return UndefinedLength, nil
		}
		return calculateSequenceLength(v, syntax)
	case *EncapsulatedFormatIterator:
		return UndefinedLength, nil
	case *oneShotIterator:
		numBytes = v.length
	case SequenceIterator:
		return 0, errors.New("writing sequence from SequenceIterator not supported yet")
	default:
		return 0, fmt.Errorf("unexpected ValueField type %T", valueField)
	}

	if numBytes >= math.MaxUint32 {
		return 0, fmt.Errorf("value of %v bytes is too long for an explicit length", numBytes)
	}

	if numBytes%2 != 0 {
		numBytes++
	}

	return uint32(numBytes), nil
}

func calculateSequenceLength(seq *Sequence, syntax transferSyntax) (uint32, error) {
	size := int64(0)
	for _, item := range seq.Items {
		itemLen, err := calculateDataSetLength(item, syntax)
		if err != nil {
			return 0, fmt.Errorf("calculating sequence item length: %v", err)
		}
		if itemLen == UndefinedLength {
			return UndefinedLength, nil
		}
		size += tagSize + 4 /*32 bit length*/ + int64(itemLen)
	}

	if size >= math.MaxUint32 {
		return UndefinedLength, nil
	}

	return uint32(size), nil
}

func calculateDataSetLength(item *DataSet, syntax transferSyntax) (uint32, error) {
	if item.Length == UndefinedLength {
		return UndefinedLength, nil
	}

	size := int64(0)
	for _, elem := range item.Elements {
		processed, err := processedElement(elem, syntax)
		if err != nil {
			return 0, fmt.Errorf("calculating data set element length: %v", err)
		}
		if processed.ValueLength == UndefinedLength {
			return UndefinedLength, nil
		}
		size += int64(syntax.elementSize(processed.VR, processed.ValueLength))
	}

	if size >= math.MaxUint32 {
		return UndefinedLength, nil
	}

	return uint32(size), nil
}

func writeValue(dw *dcmWriter, syntax transferSyntax, element *DataElement) error {
	switch element.VR.kind {
	case textVR:
		return writeText(dw, ' ', element.ValueField)
	case uniqueIdentifierVR:
		return writeText(dw, 0x00, element.ValueField)
	case numberBinaryVR:
		return writeNumberBinary(dw, syntax.byteOrder(), element.ValueField)
	case bulkDataVR:
		if seq, ok := element.ValueField.(*Sequence); ok && element.VR == UNVR {
			return writeSequence(dw, implicitVRLittleEndian, UndefinedLength, seq)
		}
		return writeBulkData(dw, syntax, element.ValueLength, element.ValueField)
	case sequenceVR:
		seq, ok := element.ValueField.(*Sequence)
		if !ok {
			return fmt.Errorf("unknown sequence type found: %T (expected *Sequence)", element.ValueField)
		}
		return writeSequence(dw, syntax, element.ValueLength, seq)
	case tagVR:
		return writeTags(dw, syntax.byteOrder(), element.ValueField)
	default:
		return fmt.Errorf("unknown vr kind found: %v", element.VR.kind)
	}
}

func writeText(dw *dcmWriter, paddingByte byte, v interface{}) error {
	strs, ok := v.([]string)
	if !ok {
		return fmt.Errorf("expected type []string got %T", v)
	}

	b := strings.Join(strs, "\\")
	if len(b)%2 != 0 {
		b += string(paddingByte)
	}

	return dw.String(b)
}

func writeNumberBinary(dw *dcmWriter, order binary.ByteOrder, v interface{}) error {
	switch v.(type) {
	case []int16, []uint16, []int32, []uint32, []int64, []uint64, []float32, []float64:
		return binary.Write(dw, order, v)
	default:
		return fmt.Errorf("unsupported binary number type: %T", v)
	}
}

func writeBulkData(dw *dcmWriter, syntax transferSyntax, length uint32, v interface{}) error {
	switch field := v.(type) {
	case BulkDataIterator:
		return field.write(dw, syntax)
	case [][]byte:
		idx := 0
		fragmentProvider := func() (io.Reader, error) {
			if idx >= len(field) {
				return nil, io.EOF
			}
			r := bytes.NewReader(field[idx])
			idx++
			return r, nil
		}
		if length == UndefinedLength {
			// undefined length binary values are always in the encapsulated format
			return writeEncapsulatedFormat(dw, fragmentProvider)
		}
		if err := writeByteFragments(dw, fragmentProvider); err != nil {
			return err
		}
		total := 0
		for _, fragment := range field {
			total += len(fragment)
		}
		if total%2 != 0 {
			return dw.Bytes([]byte{0})
		}
		return nil
	case []uint32, []uint64, []float32, []float64:
		return binary.Write(dw, syntax.byteOrder(), field)
	case []string:
		return writeText(dw, ' ', field)
	default:
		return fmt.Errorf("unknown bulk data type: %T", v)
	}
}

func writeSequence(dw *dcmWriter, syntax transferSyntax, length uint32, seq *Sequence) error {
	order := syntax.byteOrder()
	for _, item := range seq.Items {
		itemLength, err := calculateDataSetLength(item, syntax)
		if err != nil {
			return fmt.Errorf("calculating item length: %v", err)
		}
		if err := dw.Tag(order, ItemTag); err != nil {
			return fmt.Errorf("writing item tag: %v", err)
		}
		if err := dw.UInt32(order, itemLength); err != nil {
			return fmt.Errorf("writing item length: %v", err)
		}
		if err := writeDataSet(dw, syntax, item); err != nil {
			return fmt.Errorf("writing sequence item: %v", err)
		}
		if itemLength == UndefinedLength {
			if err := dw.Delimiter(order, ItemDelimitationItemTag); err != nil {
				return fmt.Errorf("writing item delimitation item: %v", err)
			}
		}
	}

	if length == UndefinedLength {
		if err := dw.Delimiter(order, SequenceDelimitationItemTag); err != nil {
			return fmt.Errorf("writing sequence delimitation item: %v", err)
		}
	}
	return nil
}

func writeTags(dw *dcmWriter, order binary.ByteOrder, valueField interface{}) error {
	tags, ok := valueField.([]uint32)
	if !ok {
		return fmt.Errorf("unexpected type for tag VR: %T (expected []uint32)", valueField)
	}
	for _, tag := range tags {
		if err := dw.Tag(order, DataElementTag(tag)); err != nil {
			return err
		}
	}
	return nil
}

func writeDataSet(dw *dcmWriter, syntax transferSyntax, ds *DataSet) error {
	for _, element := range ds.SortedElements() {
		if err := writeDataElement(dw, syntax, element); err != nil {
			return fmt.Errorf("writing data element: %v", err)
		}
	}
	return nil
}
