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
	"context"
	"encoding/xml"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GAOHunter/dcm4che/dicom"
)

// The types below decode the output of Writer for comparisons.

type nativeModel struct {
	XMLName    xml.Name    `xml:"NativeDicomModel"`
	Space      string      `xml:"http://www.w3.org/XML/1998/namespace space,attr"`
	Attributes []attribute `xml:"DicomAttribute"`
}

type attribute struct {
	Keyword        string       `xml:"keyword,attr"`
	Tag            string       `xml:"tag,attr"`
	PrivateCreator string       `xml:"privateCreator,attr"`
	VR             string       `xml:"vr,attr"`
	Values         []value      `xml:"Value"`
	PersonNames    []personName `xml:"PersonName"`
	Items          []item       `xml:"Item"`
	InlineBinary   string       `xml:"InlineBinary"`
	BulkData       *bulkData    `xml:"BulkData"`
	Fragments      []fragment   `xml:"DataFragment"`
}

type value struct {
	Number int    `xml:"number,attr"`
	Text   string `xml:",chardata"`
}

type personName struct {
	Number      int              `xml:"number,attr"`
	Alphabetic  *personNameGroup `xml:"Alphabetic"`
	Ideographic *personNameGroup `xml:"Ideographic"`
	Phonetic    *personNameGroup `xml:"Phonetic"`
}

type personNameGroup struct {
	FamilyName string
	GivenName  string
	MiddleName string
	NamePrefix string
	NameSuffix string
}

type item struct {
	Number     int         `xml:"number,attr"`
	Attributes []attribute `xml:"DicomAttribute"`
}

type bulkData struct {
	URI string `xml:"uri,attr"`
}

type fragment struct {
	Number       int       `xml:"number,attr"`
	InlineBinary string    `xml:"InlineBinary"`
	BulkData     *bulkData `xml:"BulkData"`
}

func dicomFile(t *testing.T, syntaxUID string, elements ...*dicom.DataElement) []byte {
	t.Helper()

	var buff bytes.Buffer
	header := dicom.NewDataSet(map[dicom.DataElementTag]interface{}{
		dicom.TransferSyntaxUIDTag: []string{syntaxUID},
	})
	dew, err := dicom.NewDataElementWriter(&buff, header)
	require.NoError(t, err)
	for _, elem := range elements {
		require.NoError(t, dew.WriteElement(elem), "writing %v", elem.Tag)
	}
	require.NoError(t, dew.Close())
	return buff.Bytes()
}

func convert(t *testing.T, w *Writer, data []byte) []byte {
	t.Helper()

	iter, err := dicom.NewDataElementIterator(bytes.NewReader(data))
	require.NoError(t, err)
	defer iter.Close()

	var out bytes.Buffer
	require.NoError(t, w.Write(context.Background(), &out, iter))
	return out.Bytes()
}

func decode(t *testing.T, doc []byte) nativeModel {
	t.Helper()

	var model nativeModel
	require.NoError(t, xml.Unmarshal(doc, &model), "output:\n%s", doc)
	return model
}

// dataSetAttributes drops the file meta information attributes
func dataSetAttributes(model nativeModel) []attribute {
	var attrs []attribute
	for _, a := range model.Attributes {
		if a.Tag[:4] != "0002" {
			attrs = append(attrs, a)
		}
	}
	return attrs
}

func inlineWriter() *Writer {
	w := NewWriter(nil)
	w.BulkData = Inline
	return w
}

func elem(tag dicom.DataElementTag, vr *dicom.VR, value interface{}) *dicom.DataElement {
	return &dicom.DataElement{Tag: tag, VR: vr, ValueField: value}
}
