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

// Package logfields defines common logging fields which are used across packages
package logfields

const (
	// LogSubsys is the field denoting the subsystem when logging
	LogSubsys = "subsys"

	// File is the path of an input or output file
	File = "file"

	// Tag is a DICOM data element tag
	Tag = "tag"

	// VR is a DICOM value representation
	VR = "vr"

	// TransferSyntax is the transfer syntax UID of a DICOM data set
	TransferSyntax = "transferSyntax"

	// URI is a bulk data locator
	URI = "uri"

	// Offset is a byte offset in a file
	Offset = "offset"

	// Length is a length in bytes
	Length = "length"

	// XSLT is the path of an XSLT stylesheet
	XSLT = "xslt"

	// Mode is the bulk data handling mode
	Mode = "mode"
)
