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
	"strings"
	"unicode"
)

func readDataElement(dr *dcmReader, syntax transferSyntax) (*DataElement, error) {
	tag, err := dr.Tag(syntax.byteOrder())
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("getting tag: %v", err)
	}

	if tag == ItemDelimitationItemTag {
		// handles the case when we are parsing a nested data set within a sequence with undefined
		// length. This code should never run for the top level data set
		length, err := dr.UInt32(syntax.byteOrder())
		if err != nil {
			return nil, fmt.Errorf("reading 32 bit length of item delimitation: %v", err)
		}
		if length != 0 {
			return nil, fmt.Errorf("wrong length for item delimiter. got %v, want %v", length, 0)
		}
		return nil, io.EOF
	}

	vr, err := syntax.readVR(dr, tag)
	if err != nil {
		return nil, fmt.Errorf("getting vr of %v: %v", tag, err)
	}

	length, err := syntax.readValueLength(dr, vr)
	if err != nil {
		return nil, fmt.Errorf("getting length of %v: %v", tag, err)
	}

	if vr == UNVR && length == UndefinedLength {
		// UN with undefined length is a sequence encoded in implicit VR little endian
		// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2.2
		seq, err := readSequence(dr, length, implicitVRLittleEndian)
		if err != nil {
			return nil, fmt.Errorf("parsing value of %v: %v", tag, err)
		}
		return &DataElement{tag, SQVR, seq, length}, nil
	}

	value, err := readValue(tag, dr, vr, length, syntax)
	if err != nil {
		return nil, fmt.Errorf("parsing value of %v: %v", tag, err)
	}

	return &DataElement{tag, vr, value, length}, nil
}

func readValue(tag DataElementTag, dr *dcmReader, vr *VR, length uint32, syntax transferSyntax) (interface{}, error) {
	switch vr.kind {
	case textVR:
		return readText(dr, length, vr, unicode.IsSpace)
	case numberBinaryVR:
		return readNumberBinary(dr, length, vr, syntax.byteOrder())
	case bulkDataVR:
		return readBulkData(dr, tag, length)
	case uniqueIdentifierVR:
		return readText(dr, length, vr, func(r rune) bool {
			return r == 0x00 || r == ' '
		})
	case sequenceVR:
		return readSequence(dr, length, syntax)
	case tagVR:
		return readTag(dr, syntax, length)
	default:
		return nil, fmt.Errorf("unknown vr type found: %v", vr.kind)
	}
}

func readTag(dr *dcmReader, syntax transferSyntax, length uint32) ([]uint32, error) {
	ret := make([]uint32, length/4) // 4 bytes per tag

	for i := range ret {
		t, err := dr.Tag(syntax.byteOrder())
		if err != nil {
			return nil, err
		}
		ret[i] = uint32(t)
	}
	return ret, dr.Skip(int64(length % 4))
}

func readText(dr *dcmReader, length uint32, vr *VR, isPadding func(rune) bool) ([]string, error) {
	if length == 0 {
		return []string{}, nil
	}
	if length == UndefinedLength {
		return nil, errors.New("undefined length is not allowed for text values")
	}

	valueField, err := dr.String(int64(length))
	if err != nil {
		return nil, fmt.Errorf("reading text field value: %v", err)
	}

	// ST, LT and UT hold a single value in which backslash is an ordinary character
	if vr == STVR || vr == LTVR {
		return []string{strings.TrimRightFunc(valueField, isPadding)}, nil
	}

	// deal with value multiplicity
	strs := strings.Split(valueField, "\\")
	for i, s := range strs {
		strs[i] = strings.TrimFunc(s, isPadding)
	}
	return strs, nil
}

func readNumberBinary(dr *dcmReader, length uint32, vr *VR, order binary.ByteOrder) (interface{}, error) {
	if length == UndefinedLength {
		return nil, fmt.Errorf("undefined length is not allowed for %v", vr)
	}

	var data interface{}
	var size uint32

	switch vr {
	case SSVR:
		data, size = make([]int16, length/2), 2
	case USVR:
		data, size = make([]uint16, length/2), 2
	case SLVR:
		data, size = make([]int32, length/4), 4
	case ULVR:
		data, size = make([]uint32, length/4), 4
	case SVVR:
		data, size = make([]int64, length/8), 8
	case UVVR:
		data, size = make([]uint64, length/8), 8
	case FLVR:
		data, size = make([]float32, length/4), 4
	case FDVR:
		data, size = make([]float64, length/8), 8
	default:
		return nil, fmt.Errorf("unknown vr: %v", vr)
	}

	// the whole value field is consumed even when its length is not a multiple of the VR size
	buff, err := dr.Bytes(int64(length))
	if err != nil {
		return nil, fmt.Errorf("reading binary number: %v", err)
	}
	if err := binary.Read(bytes.NewReader(buff[:length-length%size]), order, data); err != nil {
		return nil, fmt.Errorf("binary.Read(_, _, _) => %v", err)
	}

	return data, nil
}

func readBulkData(dr *dcmReader, tag DataElementTag, length uint32) (BulkDataIterator, error) {
	if length == UndefinedLength {
		if tag == PixelDataTag {
			// Specified in http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_A.4
			// (7FE0,0010) and undefined length means pixel data in encapsulated (compressed) format
			return newEncapsulatedFormatIterator(dr), nil
		}

		return nil, errors.New("syntax with undefined length in non-pixel data not supported")
	}

	// for native (uncompressed) formats, return regular bulk data stream
	return newOneShotIterator(limitCountReader(dr.cr, int64(length)), int64(length)), nil
}

func readSequence(dr *dcmReader, length uint32, syntax transferSyntax) (SequenceIterator, error) {
	return newSequenceIterator(dr, length, syntax)
}
