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

package nativexml

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/GAOHunter/dcm4che/dicom"
	"github.com/GAOHunter/dcm4che/logging/logfields"
)

// Person name component groups and components in the order of their PN encoding.
// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_6.2.1
var (
	personNameGroups     = []string{"Alphabetic", "Ideographic", "Phonetic"}
	personNameComponents = []string{"FamilyName", "GivenName", "MiddleName", "NamePrefix", "NameSuffix"}
)

func (e *encoder) writePersonName(number int, name string) error {
	if strings.TrimSpace(name) == "" {
		return nil
	}

	start := xml.StartElement{Name: xml.Name{Local: "PersonName"}, Attr: []xml.Attr{numberAttr(number)}}
	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}
	for i, group := range strings.SplitN(name, "=", len(personNameGroups)) {
		if err := e.writePersonNameGroup(personNameGroups[i], group); err != nil {
			return err
		}
	}
	return e.enc.EncodeToken(start.End())
}

func (e *encoder) writePersonNameGroup(name, group string) error {
	if strings.TrimSpace(group) == "" {
		return nil
	}

	start := xml.StartElement{Name: xml.Name{Local: name}}
	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}
	for i, component := range strings.SplitN(group, "^", len(personNameComponents)) {
		component = strings.TrimSpace(component)
		if component == "" {
			continue
		}
		if err := e.textElement(personNameComponents[i], component); err != nil {
			return err
		}
	}
	return e.enc.EncodeToken(start.End())
}

// writeBulkData writes the value of an element streamed as BulkDataIterator. Elements not
// selected as bulk data are written inline, or as Value elements for the textual VRs.
func (e *encoder) writeBulkData(elem *dicom.DataElement, iter dicom.BulkDataIterator, dataSet dicom.DataElementIterator, lvl *level) error {
	mode := Inline
	if lvl.selector.IsBulkData(elem) {
		mode = e.BulkData
	} else if elem.VR == dicom.UCVR || elem.VR == dicom.URVR || elem.VR == dicom.UTVR {
		buffered, err := dicom.BufferBulkData(elem, dataSet.ByteOrder())
		if err != nil {
			return err
		}
		return e.writeStrings(elem.VR, buffered.ValueField.([]string), lvl)
	}

	if mode == Omit {
		return iter.Close()
	}

	if _, ok := iter.(*dicom.EncapsulatedFormatIterator); ok {
		return e.writeFragments(elem, iter, mode)
	}

	r, err := iter.Next()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	return e.writeBinary(elem, r, mode, wordSize(elem.VR, dataSet.ByteOrder()))
}

// isBuffered is true for elements whose value was decoded by the reader rather than streamed
func isBuffered(elem *dicom.DataElement) bool {
	switch elem.ValueField.(type) {
	case dicom.SequenceIterator, dicom.BulkDataIterator:
		return false
	}
	return elem.VR != dicom.SQVR
}

// writeSelectedValue writes a decoded value selected as bulk data. Inline values are encoded little
// endian, located values reference the value field of the data set.
func (e *encoder) writeSelectedValue(elem *dicom.DataElement, dataSet dicom.DataElementIterator) error {
	if e.BulkData == Omit || elem.ValueField == nil {
		return nil
	}

	order := dataSet.ByteOrder()
	if elem.Tag.IsMetaElement() || e.BulkData == Inline {
		order = binary.LittleEndian
	}
	value, err := dicom.EncodeValue(elem, order)
	if err != nil {
		return err
	}
	if len(value) == 0 {
		return nil
	}

	offset := dataSet.Offset() - int64(elem.ValueLength)
	r, err := dicom.NewBulkDataIterator(bytes.NewReader(value), offset, int64(len(value))).Next()
	if err != nil {
		return fmt.Errorf("reading encoded value: %v", err)
	}
	return e.writeBinary(elem, r, e.BulkData, 1)
}

// writeFragments writes the fragments of encapsulated pixel data. The first fragment is the Basic
// Offset Table.
func (e *encoder) writeFragments(elem *dicom.DataElement, iter dicom.BulkDataIterator, mode BulkDataMode) error {
	for n := 1; ; n++ {
		r, err := iter.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading fragment %d: %v", n, err)
		}

		start := xml.StartElement{Name: xml.Name{Local: "DataFragment"}, Attr: []xml.Attr{numberAttr(n)}}
		if err := e.enc.EncodeToken(start); err != nil {
			return err
		}
		// fragments are always encoded little endian
		if err := e.writeBinary(elem, r, mode, 1); err != nil {
			return fmt.Errorf("fragment %d: %v", n, err)
		}
		if err := e.enc.EncodeToken(start.End()); err != nil {
			return err
		}
	}
}

func (e *encoder) writeBinary(elem *dicom.DataElement, r *dicom.BulkDataReader, mode BulkDataMode, swap int) error {
	if mode == Inline {
		return e.writeInlineBinary(r, swap)
	}

	ref, err := e.Locator.Locate(r)
	if err != nil {
		return fmt.Errorf("locating bulk data: %v", err)
	}
	if ref == nil {
		return nil
	}

	uri := ref.URI()
	log.WithFields(logrus.Fields{
		logfields.Tag: elem.Tag,
		logfields.URI: uri,
	}).Debug("Referencing bulk data")

	start := xml.StartElement{Name: xml.Name{Local: "BulkData"}, Attr: []xml.Attr{attr("uri", uri)}}
	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}
	return e.enc.EncodeToken(start.End())
}

// writeInlineBinary streams the bytes of r base64 encoded. Words of swap bytes are reversed to
// produce little endian data.
func (e *encoder) writeInlineBinary(r *dicom.BulkDataReader, swap int) error {
	if r.Length == 0 {
		return nil
	}

	start := xml.StartElement{Name: xml.Name{Local: "InlineBinary"}}
	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}
	if err := e.enc.Flush(); err != nil {
		return err
	}

	b64 := base64.NewEncoder(base64.StdEncoding, e.out)
	var n int64
	if swap > 1 {
		buff, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("reading binary value: %v", err)
		}
		swapBytes(buff, swap)
		if _, err := b64.Write(buff); err != nil {
			return err
		}
		n = int64(len(buff))
	} else {
		var err error
		if n, err = io.Copy(b64, r); err != nil {
			return fmt.Errorf("encoding binary value: %v", err)
		}
	}
	if n != r.Length {
		return fmt.Errorf("binary value: got %v bytes, want %v: %v", n, r.Length, io.ErrUnexpectedEOF)
	}
	if err := b64.Close(); err != nil {
		return err
	}

	return e.enc.EncodeToken(start.End())
}

// wordSize returns the number of bytes to reverse in a value of vr to convert it from order to
// little endian, or 1 when no conversion is needed.
func wordSize(vr *dicom.VR, order binary.ByteOrder) int {
	if order != binary.BigEndian {
		return 1
	}
	switch vr {
	case dicom.OWVR:
		return 2
	case dicom.OLVR, dicom.OFVR:
		return 4
	case dicom.ODVR, dicom.OVVR:
		return 8
	}
	return 1
}

func swapBytes(buff []byte, size int) {
	for i := 0; i+size <= len(buff); i += size {
		word := buff[i : i+size]
		for l, r := 0, size-1; l < r; l, r = l+1, r-1 {
			word[l], word[r] = word[r], word[l]
		}
	}
}
