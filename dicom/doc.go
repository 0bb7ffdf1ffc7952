// Package dicom provides functions and data structures for reading the DICOM file format.
// The package provides a high level and low level API. The high level API consists of functions
// such as Parse and Construct which operate on DICOM Data Elements buffered into memory as a
// DataSet. The low level API consists of streaming interfaces like the DataElementIterator and
// the DataElementWriter which do not require buffering and operate on DataElements one at a time.
//
// The Parse function and the DataElementIterator represent the ValueField of DataElements
// differently. The Parse function by default buffers VRs of potentially enormous size
// (SQ, OX, UN, UT, UR, UC) into memory. In contrast, the DataElementIterator does not buffer these
// VRs and instead represents them as streaming interfaces which report the byte offset of their
// values. This is what allows large pixel data to be referenced rather than copied.
//
// The Implicit VR Little Endian, Explicit VR Little Endian, Explicit VR Big Endian and Deflated
// Explicit VR Little Endian transfer syntaxes are supported. Any other transfer syntax is read as
// Explicit VR Little Endian with encapsulated pixel data.
package dicom
