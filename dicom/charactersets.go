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
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DefaultCharacterRepertoire decodes text when a data set has no Specific Character Set. The
// default repertoire is ASCII; Windows-1252 is a superset that tolerates Latin-1 bytes written by
// non-conformant producers.
var DefaultCharacterRepertoire encoding.Encoding = charmap.Windows1252

// lookupLabelByTerm is a mapping of specific character set defined terms to golang charset labels.
// See link below for list of character set defined terms.
// http://dicom.nema.org/medical/dicom/current/output/chtml/part02/sect_D.6.2.html
var lookupLabelByTerm = map[string]string{
	"ISO_IR 6":   "us-ascii",
	"ISO_IR 100": "iso-ir-100",
	"ISO_IR 101": "iso-ir-101",
	"ISO_IR 109": "iso-ir-109",
	"ISO_IR 110": "iso-ir-110",
	"ISO_IR 144": "iso-ir-144",
	"ISO_IR 127": "iso-ir-127",
	"ISO_IR 126": "iso-ir-126",
	"ISO_IR 138": "iso-ir-138",
	"ISO_IR 148": "iso-ir-148",
	"ISO_IR 13":  "shift-jis",
	"ISO_IR 166": "tis-620",
	"ISO_IR 192": "utf-8",
	"GB18030":    "gb18030",
	"GBK":        "gbk",
	"ISO 2022 IR 6":   "us-ascii",
	"ISO 2022 IR 100": "iso-ir-100",
	"ISO 2022 IR 101": "iso-ir-101",
	"ISO 2022 IR 109": "iso-ir-109",
	"ISO 2022 IR 110": "iso-ir-110",
	"ISO 2022 IR 144": "iso-ir-144",
	"ISO 2022 IR 127": "iso-ir-127",
	"ISO 2022 IR 126": "iso-ir-126",
	"ISO 2022 IR 138": "iso-ir-138",
	"ISO 2022 IR 148": "iso-ir-148",
	"ISO 2022 IR 13":  "shift-jis",
	"ISO 2022 IR 166": "tis-620",
	"ISO 2022 IR 87":  "iso-2022-jp",
	"ISO 2022 IR 159": "iso-2022-jp",
	"ISO 2022 IR 149": "euc-kr",
	"ISO 2022 IR 58":  "gb2312",
}

// designation is an escape sequence invoking a character set into G0 or G1
type designation struct {
	escape string
	g1     bool
	label  string
}

// designationsByTerm lists the escape sequences of the ISO 2022 defined terms.
// http://dicom.nema.org/medical/dicom/current/output/chtml/part03/sect_C.12.html#sect_C.12.1.1.2
var designationsByTerm = map[string][]designation{
	"ISO 2022 IR 6":   {{"\x1b(B", false, "us-ascii"}},
	"ISO 2022 IR 100": {{"\x1b-A", true, "iso-ir-100"}},
	"ISO 2022 IR 101": {{"\x1b-B", true, "iso-ir-101"}},
	"ISO 2022 IR 109": {{"\x1b-C", true, "iso-ir-109"}},
	"ISO 2022 IR 110": {{"\x1b-D", true, "iso-ir-110"}},
	"ISO 2022 IR 144": {{"\x1b-L", true, "iso-ir-144"}},
	"ISO 2022 IR 127": {{"\x1b-G", true, "iso-ir-127"}},
	"ISO 2022 IR 126": {{"\x1b-F", true, "iso-ir-126"}},
	"ISO 2022 IR 138": {{"\x1b-H", true, "iso-ir-138"}},
	"ISO 2022 IR 148": {{"\x1b-M", true, "iso-ir-148"}},
	"ISO 2022 IR 166": {{"\x1b-T", true, "tis-620"}},
	"ISO 2022 IR 13":  {{"\x1b)I", true, "shift-jis"}, {"\x1b(J", false, "us-ascii"}},
	"ISO 2022 IR 87":  {{"\x1b$B", false, "iso-2022-jp"}},
	"ISO 2022 IR 159": {{"\x1b$(D", false, "iso-2022-jp"}},
	"ISO 2022 IR 149": {{"\x1b$)C", true, "euc-kr"}},
	"ISO 2022 IR 58":  {{"\x1b$)A", true, "gb2312"}},
}

func lookupEncoding(term string) (encoding.Encoding, error) {
	label, ok := lookupLabelByTerm[term]
	if !ok {
		return nil, fmt.Errorf("specific character set defined term not found: %v", term)
	}
	return encodingByLabel(label)
}

func encodingByLabel(label string) (encoding.Encoding, error) {
	coding, _ := charset.Lookup(label)
	if coding == nil {
		return nil, fmt.Errorf("missing encoding for label %q", label)
	}
	return coding, nil
}

// CharacterSet returns the encoding of the values of a Specific Character Set (0008,0005)
// element. Several ISO 2022 terms enable code extensions: the first term is in effect at the
// start of a value and escape sequences switch to the character sets of the other terms. Other
// multi-valued element values fall back to the last non-ASCII term.
func CharacterSet(terms []string) (encoding.Encoding, error) {
	if len(terms) > 1 && isCodeExtensions(terms) {
		c, err := newCodeExtensions(terms)
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	var chosen string
	for i, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		if i > 0 && (term == "ISO 2022 IR 6" || term == "ISO_IR 6") {
			continue
		}
		chosen = term
	}
	if chosen == "" {
		return DefaultCharacterRepertoire, nil
	}
	return lookupEncoding(chosen)
}

func isCodeExtensions(terms []string) bool {
	for i, term := range terms {
		term = strings.TrimSpace(term)
		if i == 0 && term == "" {
			continue
		}
		if _, ok := designationsByTerm[term]; !ok {
			return false
		}
	}
	return true
}

const escapeByte = 0x1b

// codeElement decodes the bytes of a run in G0 (7 bit) or G1 (8 bit)
type codeElement struct {
	enc encoding.Encoding
	// designator is prepended to runs of decoders tracking the escape state themselves
	designator string
}

func (e codeElement) decode(run []byte) ([]byte, error) {
	if e.designator != "" {
		run = append([]byte(e.designator), run...)
	}
	return e.enc.NewDecoder().Bytes(run)
}

// codeExtensions is an encoding switching between character sets with ISO 2022 escape
// sequences. Designations hold until the next escape sequence within a value.
type codeExtensions struct {
	initial      [2]codeElement
	designations map[string]invocation
}

// invocation is the code element an escape sequence invokes into G0 (0) or G1 (1)
type invocation struct {
	g    int
	elem codeElement
}

func newCodeExtensions(terms []string) (*codeExtensions, error) {
	ascii, err := encodingByLabel("us-ascii")
	if err != nil {
		return nil, err
	}
	c := &codeExtensions{
		initial: [2]codeElement{{enc: ascii}, {enc: DefaultCharacterRepertoire}},
		designations: make(map[string]invocation),
	}

	for i, term := range terms {
		for _, d := range designationsByTerm[strings.TrimSpace(term)] {
			enc, err := encodingByLabel(d.label)
			if err != nil {
				return nil, err
			}
			elem := codeElement{enc: enc}
			if d.label == "iso-2022-jp" {
				elem.designator = d.escape
			}
			g := 0
			if d.g1 {
				g = 1
			}
			if i == 0 {
				c.initial[g] = elem
			}
			c.designations[d.escape] = invocation{g, elem}
		}
	}
	return c, nil
}

// NewDecoder returns a decoder of text using the code extensions
func (c *codeExtensions) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: codeExtensionsDecoder{c}}
}

// NewEncoder returns an encoder to the initial G0 character set
func (c *codeExtensions) NewEncoder() *encoding.Encoder {
	return c.initial[0].enc.NewEncoder()
}

func (c *codeExtensions) decode(src []byte) ([]byte, error) {
	state := c.initial
	var out []byte
	for len(src) > 0 {
		if src[0] == escapeByte {
			if n, ok := c.designate(&state, src); ok {
				src = src[n:]
				continue
			}
		}

		// a run ends at the next escape sequence or where the code element changes
		g1 := src[0] >= 0x80
		n := 1
		for n < len(src) && src[n] != escapeByte && (src[n] >= 0x80) == g1 {
			n++
		}
		g := 0
		if g1 {
			g = 1
		}
		decoded, err := state[g].decode(src[:n])
		if err != nil {
			return nil, fmt.Errorf("decoding code extension: %v", err)
		}
		out = append(out, decoded...)
		src = src[n:]
	}
	return out, nil
}

// designate applies the escape sequence at the start of src and returns its length
func (c *codeExtensions) designate(state *[2]codeElement, src []byte) (int, bool) {
	for escape, d := range c.designations {
		if bytes.HasPrefix(src, []byte(escape)) {
			state[d.g] = d.elem
			return len(escape), true
		}
	}
	return 0, false
}

// codeExtensionsDecoder decodes a whole value at once since escape sequences change the
// meaning of all following bytes
type codeExtensionsDecoder struct {
	c *codeExtensions
}

func (d codeExtensionsDecoder) Reset() {}

func (d codeExtensionsDecoder) Transform(dst, src []byte, atEOF bool) (int, int, error) {
	if !atEOF {
		return 0, 0, transform.ErrShortSrc
	}
	decoded, err := d.c.decode(src)
	if err != nil {
		return 0, 0, err
	}
	if len(decoded) > len(dst) {
		return 0, 0, transform.ErrShortDst
	}
	return copy(dst, decoded), len(src), nil
}
