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

// Package nativexml writes DICOM data sets in the Native DICOM Model XML format described in
// http://dicom.nema.org/medical/dicom/current/output/html/part19.html#chapter_A
package nativexml

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/GAOHunter/dcm4che/bulkdata"
	"github.com/GAOHunter/dcm4che/dicom"
	"github.com/GAOHunter/dcm4che/logging"
	"github.com/GAOHunter/dcm4che/logging/logfields"
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "nativexml")

// xmlNamespace is bound to the reserved "xml" prefix
const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// BulkDataMode selects how bulk data appears in the XML output
type BulkDataMode int

const (
	// Locate writes a BulkData element referencing the bytes through a bulkdata.Locator
	Locate BulkDataMode = iota

	// Inline writes the bytes base64 encoded in an InlineBinary element
	Inline

	// Omit leaves bulk data attributes without a value
	Omit
)

func (m BulkDataMode) String() string {
	switch m {
	case Locate:
		return "locate"
	case Inline:
		return "inline"
	case Omit:
		return "omit"
	}
	return fmt.Sprintf("BulkDataMode(%d)", int(m))
}

// Writer converts a stream of DataElements to Native DICOM Model XML
type Writer struct {
	// IncludeKeyword adds the keyword attribute to DicomAttribute elements of known tags
	IncludeKeyword bool

	// Indent puts every element on its own indented line
	Indent bool

	BulkData BulkDataMode

	// Selector decides which elements are bulk data. A nil Selector selects nothing
	Selector *bulkdata.Selector

	// Locator references bulk data in Locate mode
	Locator bulkdata.Locator
}

// NewWriter returns a Writer including keywords and referencing the bulk data of
// dicom.DefaultBulkDataDefinition through the locator.
func NewWriter(locator bulkdata.Locator) *Writer {
	return &Writer{
		IncludeKeyword: true,
		BulkData:       Locate,
		Selector:       bulkdata.Default(),
		Locator:        locator,
	}
}

// Write writes the XML document of the data set of iter to out. The context is checked before
// every data element.
func (w *Writer) Write(ctx context.Context, out io.Writer, iter dicom.DataElementIterator) error {
	if w.BulkData == Locate && w.Locator == nil {
		return errors.New("locating bulk data requires a bulkdata.Locator")
	}

	if _, err := io.WriteString(out, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(out)
	if w.Indent {
		enc.Indent("", "  ")
	}
	e := &encoder{Writer: w, enc: enc, out: out}

	root := xml.StartElement{
		Name: xml.Name{Local: "NativeDicomModel"},
		Attr: []xml.Attr{{Name: xml.Name{Space: xmlNamespace, Local: "space"}, Value: "preserve"}},
	}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	if err := e.writeDataSet(ctx, iter, newLevel(w.Selector, dicom.DefaultCharacterRepertoire)); err != nil {
		return err
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	if w.Indent {
		_, err := io.WriteString(out, "\n")
		return err
	}
	return nil
}

// level is the state of one data set: the top level one or a sequence item
type level struct {
	selector *bulkdata.Selector
	charset  encoding.Encoding

	// creators maps private creator tags to their values
	creators map[dicom.DataElementTag]string
}

func newLevel(selector *bulkdata.Selector, charset encoding.Encoding) *level {
	return &level{selector, charset, make(map[dicom.DataElementTag]string)}
}

// observe records the character set and private creators declared by elem
func (l *level) observe(elem *dicom.DataElement) {
	values, ok := elem.ValueField.([]string)
	if !ok {
		return
	}

	switch {
	case elem.Tag == dicom.SpecificCharacterSetTag:
		cs, err := dicom.CharacterSet(values)
		if err != nil {
			log.WithError(err).Warn("Ignoring Specific Character Set, keeping the previous one")
			return
		}
		l.charset = cs
	case elem.Tag.IsPrivateCreator() && len(values) > 0:
		l.creators[elem.Tag] = strings.TrimSpace(l.decode(elem.VR, values[0]))
	}
}

// decode converts a value of a VR affected by the Specific Character Set to UTF-8
func (l *level) decode(vr *dicom.VR, s string) string {
	switch vr {
	case dicom.SHVR, dicom.LOVR, dicom.STVR, dicom.LTVR, dicom.PNVR, dicom.UCVR, dicom.UTVR:
	default:
		return s
	}

	decoded, err := l.charset.NewDecoder().String(s)
	if err != nil {
		log.WithError(err).Debug("Keeping undecodable text value")
		return s
	}
	return decoded
}

// decodeValues decodes the values of vr as one string before splitting them, since multi-byte
// characters may contain the backslash byte
func (l *level) decodeValues(vr *dicom.VR, values []string) []string {
	switch vr {
	case dicom.SHVR, dicom.LOVR, dicom.PNVR, dicom.UCVR:
	default:
		decoded := make([]string, len(values))
		for i, v := range values {
			decoded[i] = l.decode(vr, v)
		}
		return decoded
	}

	if len(values) == 0 {
		return values
	}
	decoded := strings.Split(l.decode(vr, strings.Join(values, "\\")), "\\")
	for i, v := range decoded {
		decoded[i] = strings.Trim(v, " ")
	}
	return decoded
}

type encoder struct {
	*Writer

	enc *xml.Encoder

	// out is the writer of enc. Base64 data is streamed to it after flushing enc.
	out io.Writer
}

func (e *encoder) writeDataSet(ctx context.Context, iter dicom.DataElementIterator, lvl *level) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		elem, err := iter.NextElement()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading data element: %w", err)
		}

		if elem.Tag.IsGroupLength() {
			continue
		}
		lvl.observe(elem)

		if err := e.writeAttribute(ctx, elem, iter, lvl); err != nil {
			return fmt.Errorf("writing %v: %w", elem.Tag, err)
		}
	}
}

func (e *encoder) writeAttribute(ctx context.Context, elem *dicom.DataElement, iter dicom.DataElementIterator, lvl *level) error {
	start := xml.StartElement{Name: xml.Name{Local: "DicomAttribute"}}
	if e.IncludeKeyword {
		if keyword := elem.Tag.Keyword(); keyword != "" {
			start.Attr = append(start.Attr, attr("keyword", keyword))
		}
	}
	start.Attr = append(start.Attr, attr("tag", elem.Tag.Hex()))
	if creatorTag, ok := elem.Tag.PrivateCreatorTag(); ok {
		if creator, ok := lvl.creators[creatorTag]; ok {
			start.Attr = append(start.Attr, attr("privateCreator", creator))
		}
	}
	start.Attr = append(start.Attr, attr("vr", elem.VR.Name))

	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}
	if err := e.writeValue(ctx, elem, iter, lvl); err != nil {
		return err
	}
	return e.enc.EncodeToken(start.End())
}

func (e *encoder) writeValue(ctx context.Context, elem *dicom.DataElement, iter dicom.DataElementIterator, lvl *level) error {
	if isBuffered(elem) && lvl.selector.IsBulkData(elem) {
		return e.writeSelectedValue(elem, iter)
	}

	switch v := elem.ValueField.(type) {
	case nil:
		return nil
	case []string:
		return e.writeStrings(elem.VR, v, lvl)
	case []uint32:
		if elem.VR == dicom.ATVR {
			return e.writeValues(len(v), func(i int) string {
				return dicom.DataElementTag(v[i]).Hex()
			})
		}
		return e.writeValues(len(v), func(i int) string {
			return strconv.FormatUint(uint64(v[i]), 10)
		})
	case []int16:
		return e.writeValues(len(v), func(i int) string {
			return strconv.FormatInt(int64(v[i]), 10)
		})
	case []uint16:
		return e.writeValues(len(v), func(i int) string {
			return strconv.FormatUint(uint64(v[i]), 10)
		})
	case []int32:
		return e.writeValues(len(v), func(i int) string {
			return strconv.FormatInt(int64(v[i]), 10)
		})
	case []int64:
		return e.writeValues(len(v), func(i int) string {
			return strconv.FormatInt(v[i], 10)
		})
	case []uint64:
		return e.writeValues(len(v), func(i int) string {
			return strconv.FormatUint(v[i], 10)
		})
	case []float32:
		return e.writeValues(len(v), func(i int) string {
			return strconv.FormatFloat(float64(v[i]), 'g', -1, 32)
		})
	case []float64:
		return e.writeValues(len(v), func(i int) string {
			return strconv.FormatFloat(v[i], 'g', -1, 64)
		})
	case dicom.SequenceIterator:
		return e.writeItems(ctx, elem.Tag, v, lvl)
	case dicom.BulkDataIterator:
		return e.writeBulkData(elem, v, iter, lvl)
	default:
		return fmt.Errorf("unsupported value type %T", elem.ValueField)
	}
}

func (e *encoder) writeStrings(vr *dicom.VR, values []string, lvl *level) error {
	values = lvl.decodeValues(vr, values)
	if vr == dicom.PNVR {
		for i, v := range values {
			if err := e.writePersonName(i+1, v); err != nil {
				return err
			}
		}
		return nil
	}
	return e.writeValues(len(values), func(i int) string {
		return values[i]
	})
}

// writeValues writes n Value elements numbered from 1. Empty values keep their number but are
// not written.
func (e *encoder) writeValues(n int, value func(int) string) error {
	for i := 0; i < n; i++ {
		s := value(i)
		if s == "" {
			continue
		}
		if err := e.textElement("Value", s, numberAttr(i+1)); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) writeItems(ctx context.Context, tag dicom.DataElementTag, seq dicom.SequenceIterator, lvl *level) error {
	selector := lvl.selector.Item(tag)
	for n := 1; ; n++ {
		item, err := seq.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading item %d: %w", n, err)
		}

		start := xml.StartElement{Name: xml.Name{Local: "Item"}, Attr: []xml.Attr{numberAttr(n)}}
		if err := e.enc.EncodeToken(start); err != nil {
			return err
		}
		// items inherit the character set of the enclosing data set
		if err := e.writeDataSet(ctx, item, newLevel(selector, lvl.charset)); err != nil {
			return fmt.Errorf("item %d: %w", n, err)
		}
		if err := e.enc.EncodeToken(start.End()); err != nil {
			return err
		}
	}
}

func (e *encoder) textElement(name, text string, attrs ...xml.Attr) error {
	start := xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs}
	if err := e.enc.EncodeToken(start); err != nil {
		return err
	}
	if err := e.enc.EncodeToken(xml.CharData(text)); err != nil {
		return err
	}
	return e.enc.EncodeToken(start.End())
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func numberAttr(n int) xml.Attr {
	return attr("number", strconv.Itoa(n))
}
