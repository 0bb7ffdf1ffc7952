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
)

// Transform describes a transformation applied to a DataElement
type Transform func(*DataElement) (*DataElement, error)

// ParseOption configures the behavior of the Parse function.
type ParseOption struct {
	transform Transform
}

// WithTransform returns a ParseOption that applies the given transformation to each DataElement in
// the DICOM file in the order encountered. For DataElements that contain a sequence, the transform
// is applied to nested DataElements first (i.e. transform is called on DataElements in post-order).
// If the transform returns an error, Parse will stop parsing and return an error.
// If a nil DataElement is returned, this DataElement will be excluded from the DataSet returned
// from Parse.
func WithTransform(t Transform) ParseOption {
	return ParseOption{t}
}

// ReferenceBulkData ensures that all DataElements with ValueField of type BulkDataIterator are
// transformed to []BulkDataReference when isBulkData returns true and their default
// buffered types otherwise
func ReferenceBulkData(isBulkData func(*DataElement) bool) ParseOption {
	return WithTransform(func(element *DataElement) (*DataElement, error) {
		bulkIter, ok := element.ValueField.(BulkDataIterator)
		if !ok || !isBulkData(element) {
			return element, nil
		}
		refs, err := CollectFragmentReferences(bulkIter)
		if err != nil {
			return nil, fmt.Errorf("collecting fragment references: %v", err)
		}
		return &DataElement{element.Tag, element.VR, refs, element.ValueLength}, nil
	})
}

// DropGroupLengths will exclude all group length elements (gggg,0000) from the returned DataSet
var DropGroupLengths = WithTransform(func(element *DataElement) (*DataElement, error) {
	if element.Tag.IsGroupLength() {
		return nil, nil
	}
	return element, nil
})

// DropBasicOffsetTable will exclude the basic offset table fragment from pixel data encoded using
// the encapsulated (compressed) format. For more information on the offset table and encapsulated
// formats please see http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_A.4
var DropBasicOffsetTable = WithTransform(func(element *DataElement) (*DataElement, error) {
	if iter, ok := element.ValueField.(*EncapsulatedFormatIterator); ok && element.Tag == PixelDataTag {
		if _, err := iter.Next(); err != nil {
			return nil, fmt.Errorf("discarding offset table: %v", err)
		}
	}
	return element, nil
})

// DefaultBulkDataDefinition returns true if and only if the tag corresponds to a data element
// that contains large non-metadata fields such as pixel data, overlays, curves, audio or
// encapsulated documents.
func DefaultBulkDataDefinition(elem *DataElement) bool {
	switch elem.Tag.repeatingGroupBase() {
	case PixelDataProviderURLTag, AudioSampleDataTag, CurveDataTag, SpectroscopyDataTag,
		OverlayDataTag, EncapsulatedDocumentTag, FloatPixelDataTag, DoubleFloatPixelDataTag,
		PixelDataTag, WaveformDataTag:
		return true
	}
	return false
}
