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

// Package xslt applies XSLT 1.0 stylesheets to XML documents.
package xslt

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	ratago "github.com/jbowtie/ratago/xslt"
	"github.com/moovweb/gokogiri"
	"github.com/moovweb/gokogiri/xml"
)

// Stylesheet is a compiled XSLT stylesheet. It holds native libxml2 documents, call Close to free
// them.
type Stylesheet struct {
	doc   *xml.XmlDocument
	style *ratago.Stylesheet
}

// Load parses and compiles the stylesheet at path. Relative xsl:import and xsl:include hrefs are
// resolved against path.
func Load(path string) (*Stylesheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := gokogiri.ParseXml(data)
	if err != nil {
		return nil, fmt.Errorf("parsing stylesheet %v: %v", path, err)
	}

	style := ratago.ParseStylesheet(doc, path)
	if style == nil {
		doc.Free()
		return nil, fmt.Errorf("compiling stylesheet %v", path)
	}
	return &Stylesheet{doc, style}, nil
}

// Transform applies the stylesheet to the XML document and returns the result document
func (s *Stylesheet) Transform(document []byte) ([]byte, error) {
	if s.style == nil {
		return nil, errors.New("transform with a closed stylesheet")
	}

	doc, err := gokogiri.ParseXml(document)
	if err != nil {
		return nil, fmt.Errorf("parsing document: %v", err)
	}
	defer doc.Free()

	return []byte(s.style.Process(doc)), nil
}

// Close frees the stylesheet
func (s *Stylesheet) Close() {
	if s.doc != nil {
		s.doc.Free()
	}
	s.doc = nil
	s.style = nil
}

// Indent re-serialises an XML document with every element on its own line indented by two spaces.
// Whitespace-only text is dropped. Documents that are not XML, like the output of text stylesheets,
// are returned unchanged.
func Indent(document []byte) ([]byte, error) {
	if !bytes.HasPrefix(bytes.TrimSpace(document), []byte("<")) {
		return document, nil
	}

	var out bytes.Buffer
	dec := xml.NewDecoder(bytes.NewReader(document))
	enc := xml.NewEncoder(&out)
	enc.Indent("", "  ")
	for first := true; ; first = false {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("indenting document: %v", err)
		}

		switch t := tok.(type) {
		case xml.ProcInst:
			if first && t.Target == "xml" {
				fmt.Fprintf(&out, "<?xml %s?>\n", t.Inst)
				continue
			}
		case xml.CharData:
			if len(bytes.TrimSpace(t)) == 0 {
				continue
			}
		case xml.StartElement:
			tok = prefixedStart(t)
		case xml.EndElement:
			tok = xml.EndElement{Name: prefixedName(t.Name)}
		}
		if err := enc.EncodeToken(xml.CopyToken(tok)); err != nil {
			return nil, fmt.Errorf("indenting document: %v", err)
		}
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// prefixedName keeps the raw prefix of a name so that the encoder writes it unchanged
func prefixedName(name xml.Name) xml.Name {
	if name.Space == "" {
		return name
	}
	return xml.Name{Local: name.Space + ":" + name.Local}
}

func prefixedStart(start xml.StartElement) xml.StartElement {
	attrs := make([]xml.Attr, len(start.Attr))
	for i, a := range start.Attr {
		attrs[i] = xml.Attr{Name: prefixedName(a.Name), Value: a.Value}
	}
	return xml.StartElement{Name: prefixedName(start.Name), Attr: attrs}
}
