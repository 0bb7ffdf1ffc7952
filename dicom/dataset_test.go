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
	"reflect"
	"testing"
)

func TestDataElementTag_Predicates(t *testing.T) {
	tests := []struct {
		tag            DataElementTag
		meta           bool
		groupLength    bool
		private        bool
		privateCreator bool
	}{
		{FileMetaInformationGroupLengthTag, true, true, false, false},
		{TransferSyntaxUIDTag, true, false, false, false},
		{PatientNameTag, false, false, false, false},
		{0x00090010, false, false, true, true},
		{0x00091010, false, false, true, false},
		{0x00090000, false, true, true, false},
	}

	for _, tc := range tests {
		t.Run(tc.tag.String(), func(t *testing.T) {
			if got := tc.tag.IsMetaElement(); got != tc.meta {
				t.Errorf("IsMetaElement() = %v, want %v", got, tc.meta)
			}
			if got := tc.tag.IsGroupLength(); got != tc.groupLength {
				t.Errorf("IsGroupLength() = %v, want %v", got, tc.groupLength)
			}
			if got := tc.tag.IsPrivate(); got != tc.private {
				t.Errorf("IsPrivate() = %v, want %v", got, tc.private)
			}
			if got := tc.tag.IsPrivateCreator(); got != tc.privateCreator {
				t.Errorf("IsPrivateCreator() = %v, want %v", got, tc.privateCreator)
			}
		})
	}
}

func TestDataElementTag_PrivateCreatorTag(t *testing.T) {
	tests := []struct {
		tag    DataElementTag
		want   DataElementTag
		wantOK bool
	}{
		{0x00291010, 0x00290010, true},
		{0x0029FF01, 0x002900FF, true},
		{0x00290010, 0, false},
		{PatientNameTag, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.tag.String(), func(t *testing.T) {
			got, ok := tc.tag.PrivateCreatorTag()
			if got != tc.want || ok != tc.wantOK {
				t.Fatalf("got (%v, %v), want (%v, %v)", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestDataElementTag_Format(t *testing.T) {
	tag := DataElementTag(PixelDataTag)
	if got, want := tag.String(), "(7FE0,0010)"; got != want {
		t.Fatalf("String() = %v, want %v", got, want)
	}
	if got, want := tag.Hex(), "7FE00010"; got != want {
		t.Fatalf("Hex() = %v, want %v", got, want)
	}
}

func TestDataElement_IntValue(t *testing.T) {
	tests := []struct {
		name    string
		value   interface{}
		want    int64
		wantErr bool
	}{
		{"unsigned short", []uint16{7}, 7, false},
		{"signed long", []int32{-3}, -3, false},
		{"signed very long", []int64{-9}, -9, false},
		{"integer string", []string{" 42 "}, 42, false},
		{"empty", []uint16{}, 0, true},
		{"not a number", []string{"abc"}, 0, true},
		{"overflow", []uint64{1 << 63}, 0, true},
		{"wrong type", [][]byte{{1}}, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := newElement(InstanceNumberTag, tc.value).IntValue()
			if (err != nil) != tc.wantErr {
				t.Fatalf("got error %v, want error: %v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDataSet_SortedTagsAndMetaElements(t *testing.T) {
	ds := NewDataSet(map[DataElementTag]interface{}{
		PixelDataTag:         [][]byte{{0}},
		PatientNameTag:       []string{"x"},
		TransferSyntaxUIDTag: []string{ExplicitVRLittleEndianUID},
	})

	want := []DataElementTag{TransferSyntaxUIDTag, PatientNameTag, PixelDataTag}
	if got := ds.SortedTags(); !reflect.DeepEqual(got, want) {
		t.Fatalf("SortedTags() = %v, want %v", got, want)
	}
	if ds.isMetaHeader() {
		t.Fatal("data set with patient name is not a meta header")
	}

	meta := ds.MetaElements()
	if got := meta.SortedTags(); !reflect.DeepEqual(got, []DataElementTag{TransferSyntaxUIDTag}) {
		t.Fatalf("MetaElements() tags = %v", got)
	}
	if !meta.isMetaHeader() {
		t.Fatal("expected meta header")
	}
	if ds.Elements[PatientNameTag].VR != PNVR {
		t.Fatalf("got VR %v, want %v", ds.Elements[PatientNameTag].VR, PNVR)
	}
}
