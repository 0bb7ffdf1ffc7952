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
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DataElementTag is a unique identifier for a Data Element composed of an unordered pair
// of numbers called the group number and the element number as specified in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10.
//
// The least significant 16 bits is the element number. The most significant 16 bits is the group
// number.
type DataElementTag uint32

// GroupNumber returns the group number component of the DataElementTag
func (t DataElementTag) GroupNumber() uint16 {
	return uint16(t >> 16)
}

// ElementNumber returns the element number component of the DataElementTag
func (t DataElementTag) ElementNumber() uint16 {
	return uint16(t & 0xFFFF)
}

// IsMetaElement is true if and only if the Data Element is a file meta element
func (t DataElementTag) IsMetaElement() bool {
	return t.GroupNumber() == uint16(0x0002)
}

// IsGroupLength is true for group length elements (gggg,0000)
func (t DataElementTag) IsGroupLength() bool {
	return t.ElementNumber() == 0
}

// IsPrivate is true if the tag belongs to a private group (odd group number)
func (t DataElementTag) IsPrivate() bool {
	return t.GroupNumber()%2 == 1
}

// IsPrivateCreator is true if the tag reserves a block of a private group, i.e. (gggg,0010-00FF)
// with an odd gggg.
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.8.1
func (t DataElementTag) IsPrivateCreator() bool {
	return t.IsPrivate() && t.ElementNumber() >= 0x0010 && t.ElementNumber() <= 0x00FF
}

// PrivateCreatorTag returns the tag of the private creator element reserving the block of the
// private data element t. The second return value is false if t is not a private data element.
func (t DataElementTag) PrivateCreatorTag() (DataElementTag, bool) {
	if !t.IsPrivate() || t.ElementNumber() < 0x1000 {
		return 0, false
	}
	return DataElementTag(uint32(t.GroupNumber())<<16 | uint32(t.ElementNumber()>>8)), true
}

// Hex returns the tag as 8 upper case hexadecimal digits, e.g. 7FE00010
func (t DataElementTag) Hex() string {
	return fmt.Sprintf("%08X", uint32(t))
}

func (t DataElementTag) String() string {
	return fmt.Sprintf("(%04X,%04X)", t.GroupNumber(), t.ElementNumber())
}

// DataElement models a DICOM Data Element as defined in
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10
type DataElement struct {
	Tag DataElementTag

	// Value Representation
	VR *VR

	// ValueField represents the field within a Data Element that contains its value(s)
	// Can be any of of the following types:
	// []string,
	// [][]byte
	// []int16,
	// []uint16,
	// []int32,
	// []uint32,
	// []int64,
	// []uint64,
	// []float32,
	// []float64
	// []BulkDataReference
	// BulkDataIterator
	// SequenceIterator
	// *Sequence
	ValueField interface{}

	// ValueLength is equal to the length of the ValueField in bytes.
	// Can be equal to 0xFFFFFFFF to represent an undefined length:
	// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.1.1
	ValueLength uint32
}

func (e *DataElement) String() string {
	return e.string(0)
}

func (e *DataElement) string(indentLvl int) string {
	prefix := strings.Repeat(">", indentLvl)
	header := fmt.Sprintf("%s%v %v #%v ", prefix, e.Tag, e.VR.Name, e.ValueLength)
	if seq, ok := e.ValueField.(*Sequence); ok {
		return header + seq.string(indentLvl)
	}
	return header + fmt.Sprintf("%v", e.ValueField)
}

// IntValue returns the first value of the element as an int64. The element must hold a binary
// integer VR or an integer string.
func (e *DataElement) IntValue() (int64, error) {
	switch v := e.ValueField.(type) {
	case []int16:
		if len(v) > 0 {
			return int64(v[0]), nil
		}
	case []uint16:
		if len(v) > 0 {
			return int64(v[0]), nil
		}
	case []int32:
		if len(v) > 0 {
			return int64(v[0]), nil
		}
	case []uint32:
		if len(v) > 0 {
			return int64(v[0]), nil
		}
	case []int64:
		if len(v) > 0 {
			return v[0], nil
		}
	case []uint64:
		if len(v) > 0 {
			if v[0] > math.MaxInt64 {
				return 0, fmt.Errorf("value %v of element %v overflows int64", v[0], e.Tag)
			}
			return int64(v[0]), nil
		}
	case []string:
		if len(v) > 0 {
			return strconv.ParseInt(strings.TrimSpace(v[0]), 10, 64)
		}
	default:
		return 0, fmt.Errorf("value of type %T cannot be converted to an integer", e.ValueField)
	}
	return 0, fmt.Errorf("element %v has no value", e.Tag)
}

// StringValue returns the first value of the element, which must be a textual VR.
func (e *DataElement) StringValue() (string, error) {
	v, ok := e.ValueField.([]string)
	if !ok {
		return "", fmt.Errorf("value of type %T is not a string", e.ValueField)
	}
	if len(v) == 0 {
		return "", fmt.Errorf("element %v has no value", e.Tag)
	}
	return v[0], nil
}

// DataSet models a DICOM Data Set as defined
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_3.10
type DataSet struct {
	// Elements is a map of DataElement tags to *DataElement
	Elements map[DataElementTag]*DataElement

	// Length is the encoded length of the data set when it is a sequence item. It is equal to
	// UndefinedLength when the item is delimited.
	Length uint32
}

// NewDataSet creates a DataSet from a map of tags to value fields. The VR of every element is
// taken from the data dictionary.
func NewDataSet(values map[DataElementTag]interface{}) *DataSet {
	ds := &DataSet{Elements: map[DataElementTag]*DataElement{}}
	for tag, v := range values {
		ds.Elements[tag] = &DataElement{Tag: tag, VR: tag.DictionaryVR(), ValueField: v}
	}
	return ds
}

// SortedTags returns the tags of the data set in ascending order
func (ds *DataSet) SortedTags() []DataElementTag {
	tags := make([]DataElementTag, 0, len(ds.Elements))
	for tag := range ds.Elements {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// SortedElements returns the elements of the data set in ascending tag order
func (ds *DataSet) SortedElements() []*DataElement {
	elems := make([]*DataElement, 0, len(ds.Elements))
	for _, tag := range ds.SortedTags() {
		elems = append(elems, ds.Elements[tag])
	}
	return elems
}

// MetaElements returns a new DataSet holding only the file meta elements of ds
func (ds *DataSet) MetaElements() *DataSet {
	meta := &DataSet{Elements: map[DataElementTag]*DataElement{}}
	for tag, elem := range ds.Elements {
		if tag.IsMetaElement() {
			meta.Elements[tag] = elem
		}
	}
	return meta
}

func (ds *DataSet) isMetaHeader() bool {
	for tag := range ds.Elements {
		if !tag.IsMetaElement() {
			return false
		}
	}
	return true
}

func (ds *DataSet) transferSyntax() (transferSyntax, error) {
	elem, ok := ds.Elements[TransferSyntaxUIDTag]
	if !ok {
		return nil, fmt.Errorf("transfer syntax element is missing from data set")
	}
	uid, err := elem.StringValue()
	if err != nil {
		return nil, fmt.Errorf("transfer syntax element cannot be converted to string: %v", err)
	}
	return lookupTransferSyntax(uid), nil
}

func (ds *DataSet) String() string {
	return ds.string(0)
}

func (ds *DataSet) string(indentLvl int) string {
	lines := make([]string, 0, len(ds.Elements))
	for _, elem := range ds.SortedElements() {
		lines = append(lines, elem.string(indentLvl))
	}
	return strings.Join(lines, "\n")
}
