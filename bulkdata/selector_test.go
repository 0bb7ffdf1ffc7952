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

package bulkdata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GAOHunter/dcm4che/dicom"
)

const blkSpec = `<?xml version="1.0" encoding="UTF-8"?>
<NativeDicomModel>
  <DicomAttribute tag="00281201" vr="OW"/>
  <DicomAttribute keyword="WaveformData"/>
  <DicomAttribute tag="54000100" vr="SQ">
    <Item number="1">
      <DicomAttribute tag="54001010" vr="OW"/>
    </Item>
    <Item number="2">
      <DicomAttribute tag="00281202" vr="OW"/>
    </Item>
  </DicomAttribute>
</NativeDicomModel>
`

func elem(tag dicom.DataElementTag) *dicom.DataElement {
	return &dicom.DataElement{Tag: tag, VR: tag.DictionaryVR()}
}

func TestDefault(t *testing.T) {
	s := Default()
	assert.True(t, s.IsBulkData(elem(dicom.PixelDataTag)))
	assert.True(t, s.IsBulkData(elem(0x60023000)))
	assert.False(t, s.IsBulkData(elem(dicom.PatientNameTag)))

	item := s.Item(dicom.WaveformSequenceTag)
	assert.True(t, item.IsBulkData(elem(dicom.WaveformDataTag)))
}

func TestReadSpec(t *testing.T) {
	s, err := ReadSpec(strings.NewReader(blkSpec))
	require.NoError(t, err)

	assert.True(t, s.IsBulkData(elem(0x00281201)))
	assert.True(t, s.IsBulkData(elem(dicom.WaveformDataTag)))
	assert.False(t, s.IsBulkData(elem(dicom.PixelDataTag)))
	assert.False(t, s.IsBulkData(elem(0x00281202)))

	item := s.Item(dicom.WaveformSequenceTag)
	require.NotNil(t, item)
	assert.True(t, item.IsBulkData(elem(dicom.WaveformDataTag)))
	assert.True(t, item.IsBulkData(elem(0x00281202)))
	assert.False(t, item.IsBulkData(elem(0x00281201)))

	assert.Nil(t, s.Item(dicom.ReferencedImageSequenceTag))
	assert.False(t, s.Item(dicom.ReferencedImageSequenceTag).IsBulkData(elem(dicom.PixelDataTag)))
}

func TestReadSpec_Empty(t *testing.T) {
	s, err := ReadSpec(strings.NewReader(`<NativeDicomModel/>`))
	require.NoError(t, err)
	assert.False(t, s.IsBulkData(elem(dicom.PixelDataTag)))
}

func TestReadSpec_Errors(t *testing.T) {
	tests := []struct {
		name string
		spec string
	}{
		{"not xml", "DICM"},
		{"wrong root", `<Dataset><DicomAttribute tag="7FE00010"/></Dataset>`},
		{"bad tag", `<NativeDicomModel><DicomAttribute tag="7FE0001"/></NativeDicomModel>`},
		{"unknown keyword", `<NativeDicomModel><DicomAttribute keyword="Pixels"/></NativeDicomModel>`},
		{
			"bad nested tag",
			`<NativeDicomModel><DicomAttribute tag="54000100"><Item><DicomAttribute tag="xyz"/></Item></DicomAttribute></NativeDicomModel>`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadSpec(strings.NewReader(tc.spec))
			assert.Error(t, err)
		})
	}
}

func TestLoadSpec(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blk.xml")
	require.NoError(t, os.WriteFile(path, []byte(blkSpec), 0o600))

	s, err := LoadSpec(path)
	require.NoError(t, err)
	assert.True(t, s.IsBulkData(elem(0x00281201)))

	_, err = LoadSpec(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}
