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

// Package bulkdata decides which data elements of a DICOM data set are bulk data and where the
// bytes of bulk data are referenced from.
package bulkdata

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/GAOHunter/dcm4che/dicom"
)

// Selector decides which data elements are bulk data at one nesting level of a data set. A nil
// Selector selects nothing.
type Selector struct {
	match func(*dicom.DataElement) bool

	// items holds the selectors of the items of sequences. When recursive is set the selector
	// applies at every level.
	items     map[dicom.DataElementTag]*Selector
	recursive bool
}

// Default returns the Selector applying dicom.DefaultBulkDataDefinition at every nesting level.
func Default() *Selector {
	return &Selector{match: dicom.DefaultBulkDataDefinition, recursive: true}
}

// IsBulkData is true if the element is bulk data at the level of the selector
func (s *Selector) IsBulkData(elem *dicom.DataElement) bool {
	if s == nil || s.match == nil {
		return false
	}
	return s.match(elem)
}

// Item returns the Selector for the items of the sequence with the given tag
func (s *Selector) Item(tag dicom.DataElementTag) *Selector {
	if s == nil || s.recursive {
		return s
	}
	return s.items[tag]
}

// nativeDicomModel is the subset of the Native DICOM Model used by bulk data specification files
type nativeDicomModel struct {
	XMLName    xml.Name        `xml:"NativeDicomModel"`
	Attributes []specAttribute `xml:"DicomAttribute"`
}

type specAttribute struct {
	Tag     string     `xml:"tag,attr"`
	Keyword string     `xml:"keyword,attr"`
	Items   []specItem `xml:"Item"`
}

type specItem struct {
	Attributes []specAttribute `xml:"DicomAttribute"`
}

func (a specAttribute) dataElementTag() (dicom.DataElementTag, error) {
	if a.Tag != "" {
		t, err := strconv.ParseUint(a.Tag, 16, 32)
		if err != nil || len(a.Tag) != 8 {
			return 0, fmt.Errorf("invalid tag %q: want 8 hexadecimal digits", a.Tag)
		}
		return dicom.DataElementTag(t), nil
	}
	if t, ok := dicom.LookupKeyword(a.Keyword); ok {
		return t, nil
	}
	return 0, fmt.Errorf("DicomAttribute without tag and with unknown keyword %q", a.Keyword)
}

// ReadSpec builds a Selector from a bulk data specification in Native DICOM Model XML. Every
// DicomAttribute listed is bulk data at its nesting level. The DicomAttribute elements within the
// Item elements of an attribute describe the items of that sequence.
func ReadSpec(r io.Reader) (*Selector, error) {
	var model nativeDicomModel
	if err := xml.NewDecoder(r).Decode(&model); err != nil {
		return nil, fmt.Errorf("decoding bulk data specification: %v", err)
	}
	return newSpecSelector(model.Attributes)
}

// LoadSpec builds a Selector from the bulk data specification file at path. See ReadSpec.
func LoadSpec(path string) (*Selector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ReadSpec(f)
	if err != nil {
		return nil, fmt.Errorf("%v: %v", path, err)
	}
	return s, nil
}

func newSpecSelector(attrs []specAttribute) (*Selector, error) {
	tags := make(map[dicom.DataElementTag]bool)
	nested := make(map[dicom.DataElementTag][]specAttribute)
	for _, attr := range attrs {
		tag, err := attr.dataElementTag()
		if err != nil {
			return nil, err
		}
		tags[tag] = true
		// all items of a sequence share one level
		for _, item := range attr.Items {
			nested[tag] = append(nested[tag], item.Attributes...)
		}
	}

	s := &Selector{
		match: func(elem *dicom.DataElement) bool {
			return tags[elem.Tag]
		},
		items: make(map[dicom.DataElementTag]*Selector, len(nested)),
	}
	for tag, itemAttrs := range nested {
		item, err := newSpecSelector(itemAttrs)
		if err != nil {
			return nil, fmt.Errorf("item of %v: %v", tag, err)
		}
		s.items[tag] = item
	}
	return s, nil
}
