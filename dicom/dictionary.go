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
	"strings"

	"github.com/grailbio/go-dicom/dicomtag"
)

// Tags of the DICOM data dictionary referenced by this package and its users.
// http://dicom.nema.org/medical/dicom/current/output/html/part06.html#chapter_6
//
// Repeating group tags such as (50xx,3000) are stored with the x's set to '0'.
const (
	FileMetaInformationGroupLengthTag = 0x00020000
	FileMetaInformationVersionTag     = 0x00020001
	MediaStorageSOPClassUIDTag        = 0x00020002
	MediaStorageSOPInstanceUIDTag     = 0x00020003
	TransferSyntaxUIDTag              = 0x00020010
	ImplementationClassUIDTag         = 0x00020012
	ImplementationVersionNameTag      = 0x00020013
	SourceApplicationEntityTitleTag   = 0x00020016
	PrivateInformationCreatorUIDTag   = 0x00020100
	PrivateInformationTag             = 0x00020102

	SpecificCharacterSetTag     = 0x00080005
	ImageTypeTag                = 0x00080008
	SOPClassUIDTag              = 0x00080016
	SOPInstanceUIDTag           = 0x00080018
	StudyDateTag                = 0x00080020
	StudyTimeTag                = 0x00080030
	AccessionNumberTag          = 0x00080050
	ModalityTag                 = 0x00080060
	ReferringPhysicianNameTag   = 0x00080090
	StudyDescriptionTag         = 0x00081030
	ReferencedStudySequenceTag  = 0x00081110
	ReferencedImageSequenceTag  = 0x00081140
	ReferencedSOPClassUIDTag    = 0x00081150
	ReferencedSOPInstanceUIDTag = 0x00081155

	PatientNameTag      = 0x00100010
	PatientIDTag        = 0x00100020
	PatientBirthDateTag = 0x00100030
	PatientSexTag       = 0x00100040

	TargetUIDTag = 0x00182042

	StudyInstanceUIDTag  = 0x0020000D
	SeriesInstanceUIDTag = 0x0020000E
	InstanceNumberTag    = 0x00200013

	SamplesPerPixelTag           = 0x00280002
	PhotometricInterpretationTag = 0x00280004
	NumberOfFramesTag            = 0x00280008
	FrameIncrementPointerTag     = 0x00280009
	RowsTag                      = 0x00280010
	ColumnsTag                   = 0x00280011
	PixelSpacingTag              = 0x00280030
	BitsAllocatedTag             = 0x00280100
	BitsStoredTag                = 0x00280101
	HighBitTag                   = 0x00280102
	PixelRepresentationTag       = 0x00280103
	GrayLookupTableDataTag       = 0x00281200
	PixelDataProviderURLTag      = 0x00287FE0

	EncapsulatedDocumentTag = 0x00420011

	MACParametersSequenceTag = 0x4FFE0001
	CurveDataTag             = 0x50003000
	AudioSampleDataTag       = 0x5000200C
	WaveformSequenceTag      = 0x54000100
	WaveformDataTag          = 0x54001010
	SpectroscopyDataTag      = 0x56000020
	OverlayDataTag           = 0x60003000
	FloatPixelDataTag        = 0x7FE00008
	DoubleFloatPixelDataTag  = 0x7FE00009
	PixelDataTag             = 0x7FE00010

	DataSetTrailingPaddingTag = 0xFFFCFFFC

	// Item, Item Delimitation Item and Sequence Delimitation Item do not have a VR.
	// http://dicom.nema.org/medical/dicom/current/output/html/part05.html#sect_7.5
	ItemTag                     = 0xFFFEE000
	ItemDelimitationItemTag     = 0xFFFEE00D
	SequenceDelimitationItemTag = 0xFFFEE0DD
)

type dictionaryEntry struct {
	vr      *VR
	keyword string
}

// lookupDictionary finds the tag in the PS3.6 data dictionary, falling back to the first group of
// repeating groups
func lookupDictionary(t DataElementTag) (dictionaryEntry, bool) {
	if entry, ok := findDictionaryEntry(t); ok {
		return entry, true
	}
	if base := t.repeatingGroupBase(); base != t {
		return findDictionaryEntry(base)
	}
	return dictionaryEntry{}, false
}

func findDictionaryEntry(t DataElementTag) (dictionaryEntry, bool) {
	info, err := dicomtag.Find(dicomtag.Tag{Group: t.GroupNumber(), Element: t.ElementNumber()})
	if err != nil || info.Name == genericGroupLength {
		return dictionaryEntry{}, false
	}
	vr, ok := implicitVR(info.VR)
	if !ok {
		return dictionaryEntry{}, false
	}
	return dictionaryEntry{vr, info.Name}, true
}

// genericGroupLength is the name the dictionary gives to group lengths missing from it
const genericGroupLength = "GenericGroupLength"

// implicitVR picks the VR used for implicit VR encoding from a dictionary VR such as "US or SS"
// or "OB or OW". OW wins when listed, otherwise the first alternative.
func implicitVR(dictVR string) (*VR, bool) {
	var first *VR
	for _, name := range strings.FieldsFunc(dictVR, isVRSeparator) {
		switch name {
		case "or":
			continue
		case "xs":
			name = "US"
		case "ox":
			name = "OW"
		}
		vr, err := LookupVR(name)
		if err != nil {
			continue
		}
		if vr == OWVR {
			return vr, true
		}
		if first == nil {
			first = vr
		}
	}
	return first, first != nil
}

func isVRSeparator(r rune) bool {
	return r == ' ' || r == ',' || r == '/' || r == '|'
}

// repeatingGroupBase maps curve (50xx) and overlay (60xx) tags to the tag of their first group.
// Other tags are returned unchanged.
func (t DataElementTag) repeatingGroupBase() DataElementTag {
	group := t.GroupNumber()
	if group%2 == 0 && (group&0xFF00 == 0x5000 || group&0xFF00 == 0x6000) {
		return t & 0xFF00FFFF
	}
	return t
}

// DictionaryVR returns the VR of the tag as listed in the DICOM data dictionary. Group length
// elements are UL, private creator elements are LO and tags missing from the dictionary are UN.
func (t DataElementTag) DictionaryVR() *VR {
	switch {
	case t.IsGroupLength():
		return ULVR
	case t.IsPrivateCreator():
		return LOVR
	case t.IsPrivate():
		return UNVR
	}
	if entry, ok := lookupDictionary(t); ok {
		return entry.vr
	}
	return UNVR
}

// Keyword returns the keyword of the tag in the DICOM data dictionary, or the empty string for
// private and unknown tags.
func (t DataElementTag) Keyword() string {
	if t.IsPrivate() {
		return ""
	}
	entry, _ := lookupDictionary(t)
	return entry.keyword
}

// LookupKeyword returns the tag of a keyword of the DICOM data dictionary
func LookupKeyword(keyword string) (DataElementTag, bool) {
	if keyword == "" || keyword == genericGroupLength {
		return 0, false
	}
	info, err := dicomtag.FindByName(keyword)
	if err != nil {
		return 0, false
	}
	return DataElementTag(uint32(info.Tag.Group)<<16 | uint32(info.Tag.Element)), true
}
