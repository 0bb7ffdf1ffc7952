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
	"reflect"
	"testing"
)

// Offsets of a file written by buildFile: the meta header of a file holding only the
// transfer syntax UID is 12 bytes of group length plus a 28 byte UI element for the
// Explicit VR Little Endian UID.
const explicitLEDataSetOffset = preambleSize + 12 + 28

func buildFile(t *testing.T, syntaxUID string, elements ...*DataElement) []byte {
	t.Helper()

	var buff bytes.Buffer
	header := NewDataSet(map[DataElementTag]interface{}{
		TransferSyntaxUIDTag: []string{syntaxUID},
	})
	dew, err := NewDataElementWriter(&buff, header)
	if err != nil {
		t.Fatalf("NewDataElementWriter: %v", err)
	}
	for _, elem := range elements {
		if err := dew.WriteElement(elem); err != nil {
			t.Fatalf("WriteElement(%v): %v", elem.Tag, err)
		}
	}
	if err := dew.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	return buff.Bytes()
}

func parseBytes(t *testing.T, data []byte, opts ...ParseOption) *DataSet {
	t.Helper()

	ds, err := Parse(bytes.NewReader(data), opts...)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return ds
}

func checkValue(t *testing.T, ds *DataSet, tag DataElementTag, want interface{}) {
	t.Helper()

	elem, ok := ds.Elements[tag]
	if !ok {
		t.Fatalf("element %v missing from data set", tag)
	}
	if !reflect.DeepEqual(elem.ValueField, want) {
		t.Fatalf("value of %v: got %v, want %v", tag, elem.ValueField, want)
	}
}

func dcmReaderFromBytes(data []byte) *dcmReader {
	return newDcmReader(bytes.NewBuffer(data))
}

func createSingletonSequence(elements ...*DataElement) *Sequence {
	ds := &DataSet{Elements: map[DataElementTag]*DataElement{}}
	for _, elem := range elements {
		ds.Elements[elem.Tag] = elem
	}
	return &Sequence{Items: []*DataSet{ds}}
}

func newElement(tag DataElementTag, value interface{}) *DataElement {
	return &DataElement{Tag: tag, ValueField: value}
}
