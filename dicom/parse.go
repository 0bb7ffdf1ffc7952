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
	"strings"
	"unicode"
)

// Parse parses a DICOM file represented as an io.Reader, returning the DataSet defined by applying
// options sequentially in the order given to DataElements in the file.
//
// By default, BulkDataIterators are buffered with BufferBulkData. This behaviour can be
// overridden by supplying a ParseOption that transforms DataElements with ValueField of type
// BulkDataIterator to a ValueField other than BulkDataIterator.
func Parse(r io.Reader, opts ...ParseOption) (*DataSet, error) {
	iter, err := NewDataElementIterator(r)
	if err != nil {
		return nil, fmt.Errorf("creating new data element iterator: %v", err)
	}
	defer iter.Close()

	return CollectDataElements(iter, opts...)
}

// CollectDataElements returns the DataSet defined by the elements in the DataElementIterator.
// The options will be applied in the order given. The DataElementIterator will be emptied.
func CollectDataElements(iter DataElementIterator, opts ...ParseOption) (*DataSet, error) {
	ds := &DataSet{map[DataElementTag]*DataElement{}, iter.Length()}

	for elem, err := iter.NextElement(); err != io.EOF; elem, err = iter.NextElement() {
		if err != nil {
			return nil, err
		}
		processed, err := processElement(elem, iter.ByteOrder(), opts...)
		if err != nil {
			return nil, fmt.Errorf("processing %v: %v", elem.Tag, err)
		}
		if processed != nil { // a nil element was filtered out by an option
			ds.Elements[elem.Tag] = processed
		}
	}
	return ds, nil
}

// CollectSequence returns the Sequence defined by the items in the SequenceIterator.
// The options will be applied in the order given. The SequenceIterator will be emptied.
func CollectSequence(iter SequenceIterator, opts ...ParseOption) (*Sequence, error) {
	seq := &Sequence{[]*DataSet{}}
	for item, err := iter.Next(); err != io.EOF; item, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		dataSet, err := CollectDataElements(item, opts...)
		if err != nil {
			return nil, err
		}
		seq.append(dataSet)
	}
	return seq, nil
}

// CollectFragments buffers every fragment of the BulkDataIterator into memory
func CollectFragments(iter BulkDataIterator) ([][]byte, error) {
	buff := make([][]byte, 0)
	for r, err := iter.Next(); err != io.EOF; r, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		fragment, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading fragment: %v", err)
		}
		buff = append(buff, fragment)
	}

	return buff, nil
}

// CollectFragmentReferences returns the location of every fragment of the BulkDataIterator without
// buffering the fragments.
func CollectFragmentReferences(iter BulkDataIterator) ([]BulkDataReference, error) {
	refs := make([]BulkDataReference, 0)
	for r, err := iter.Next(); err != io.EOF; r, err = iter.Next() {
		if err != nil {
			return nil, err
		}
		fragmentSize, err := io.Copy(io.Discard, r)
		if err != nil {
			return nil, err
		}

		refs = append(refs, BulkDataReference{ByteRegion{r.Offset, fragmentSize}})
	}

	return refs, nil
}

func processElement(element *DataElement, order binary.ByteOrder, opts ...ParseOption) (*DataElement, error) {
	if seqIter, ok := element.ValueField.(SequenceIterator); ok {
		// options are applied in post-order so that they see collected sequences rather than
		// iterators which are emptied once the next element is read
		seq, err := CollectSequence(seqIter, opts...)
		if err != nil {
			return nil, fmt.Errorf("collecting sequence: %v", err)
		}

		collected := &DataElement{element.Tag, element.VR, seq, element.ValueLength}
		return applyOptions(collected, order, opts...)
	}

	return applyOptions(element, order, opts...)
}

func applyOptions(element *DataElement, order binary.ByteOrder, opts ...ParseOption) (*DataElement, error) {
	var err error
	for i, opt := range opts {
		element, err = opt.transform(element)
		if err != nil {
			return nil, fmt.Errorf("applying option %v: %v", i, err)
		}
		if element == nil {
			return nil, nil
		}
	}

	if _, ok := element.ValueField.(BulkDataIterator); ok {
		// the iterator is emptied by the next call to NextElement so its bytes must be
		// collected now for the DataSet to be coherent
		return BufferBulkData(element, order)
	}

	return element, nil
}

// BufferBulkData returns a copy of element with its BulkDataIterator buffered into the type
// appropriate for the VR:
// [][]byte for OB, OW, UN (one entry per fragment)
// []uint32 for OL
// []uint64 for OV
// []float64 for OD
// []float32 for OF
// []string for UC, UR, UT
func BufferBulkData(element *DataElement, order binary.ByteOrder) (*DataElement, error) {
	iter, ok := element.ValueField.(BulkDataIterator)
	if !ok {
		return nil, fmt.Errorf("wrong type for element.ValueField: got %T, want BulkDataIterator", element.ValueField)
	}

	fragments, err := CollectFragments(iter)
	if err != nil {
		return nil, fmt.Errorf("buffering fragments: %v", err)
	}

	var valueField interface{}
	switch {
	case element.VR == OWVR || element.VR == OBVR || element.VR == UNVR:
		valueField = fragments
	case len(fragments) == 0:
		valueField, err = decodeFragment(nil, order, element.VR)
	case len(fragments) == 1:
		valueField, err = decodeFragment(fragments[0], order, element.VR)
	default:
		return nil, fmt.Errorf("more than 1 fragments found for single fragment type: got %v, want 0 or 1", len(fragments))
	}

	return &DataElement{element.Tag, element.VR, valueField, element.ValueLength}, err
}

func decodeFragment(buff []byte, order binary.ByteOrder, vr *VR) (interface{}, error) {
	// UC, UR, UT value representations are described in
	// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2
	var valueField interface{}
	switch vr {
	case UCVR:
		if len(buff) == 0 {
			return []string{}, nil
		}
		// UC may be padded with trailing spaces and uses "\" to delimit multiple values
		strs := strings.Split(string(buff), "\\")
		for i, s := range strs {
			strs[i] = strings.TrimRightFunc(s, unicode.IsSpace)
		}
		return strs, nil
	case URVR, UTVR:
		if len(buff) == 0 {
			return []string{}, nil
		}
		// trailing spaces are ignored and backslash is not a delimiter
		return []string{strings.TrimRightFunc(string(buff), unicode.IsSpace)}, nil
	case OLVR:
		valueField = make([]uint32, len(buff)/4)
	case OVVR:
		valueField = make([]uint64, len(buff)/8)
	case ODVR:
		valueField = make([]float64, len(buff)/8)
	case OFVR:
		valueField = make([]float32, len(buff)/4)
	default:
		return nil, fmt.Errorf("unexpected vr found: %v", vr)
	}

	if err := binary.Read(bytes.NewReader(buff), order, valueField); err != nil {
		return nil, fmt.Errorf("reading to buffer: %v", err)
	}

	return valueField, nil
}
