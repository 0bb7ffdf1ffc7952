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
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Sequence models a DICOM sequence
type Sequence struct {
	Items []*DataSet
}

func (seq *Sequence) String() string {
	return seq.string(0)
}

func (seq *Sequence) string(indentLvl int) string {
	lines := make([]string, 0, len(seq.Items))
	for _, item := range seq.Items {
		lines = append(lines, item.string(indentLvl+1))
	}
	return "\n" + strings.Join(lines, "\n")
}

func (seq *Sequence) append(dataSet *DataSet) {
	seq.Items = append(seq.Items, dataSet)
}

// SequenceIterator is an iterator over a DICOM Sequence of Items in the order in which they appear
// in the DICOM file.
type SequenceIterator interface {
	// Next returns the next item in the DICOM Sequence of Items. If there is no next item, the error
	// io.EOF is returned. In addition, any previously returned iterators from Next are emptied.
	Next() (DataElementIterator, error)

	// Close discards all remaining items in the iterator. In addition, any previously returned
	// iterators from calls to Next are emptied.
	Close() error
}

func newSequenceIterator(dr *dcmReader, length uint32, syntax transferSyntax) (SequenceIterator, error) {
	if length == UndefinedLength {
		return &delimitedSequenceIterator{dr: dr, syntax: syntax}, nil
	}
	return &boundedSequenceIterator{dr: dr.Limit(int64(length)), syntax: syntax}, nil
}

// boundedSequenceIterator reads the items of a sequence of explicit length. The reader is limited
// to the sequence, so running out of input ends the sequence.
type boundedSequenceIterator struct {
	dr     *dcmReader
	syntax transferSyntax
	item   DataElementIterator
}

func (it *boundedSequenceIterator) Next() (DataElementIterator, error) {
	if err := skipItem(it.item); err != nil {
		return nil, err
	}

	tag, err := readItemTag(it.dr, it.syntax.byteOrder())
	if err != nil {
		return nil, err
	}
	if tag == SequenceDelimitationItemTag {
		return nil, fmt.Errorf("sequence delimitation item %v in a sequence of explicit length", tag)
	}

	it.item, err = newItemIterator(it.dr, it.syntax)
	return it.item, err
}

func (it *boundedSequenceIterator) Close() error {
	return drainSequence(it)
}

// delimitedSequenceIterator reads the items of a sequence of undefined length up to its sequence
// delimitation item. Once the delimiter is read, done keeps Next from reading past the sequence.
type delimitedSequenceIterator struct {
	dr     *dcmReader
	syntax transferSyntax
	item   DataElementIterator
	done   bool
}

func (it *delimitedSequenceIterator) Next() (DataElementIterator, error) {
	if it.done {
		return nil, io.EOF
	}
	if err := skipItem(it.item); err != nil {
		return nil, err
	}

	tag, err := readItemTag(it.dr, it.syntax.byteOrder())
	if err == io.EOF {
		return nil, fmt.Errorf("input ended before the sequence delimitation item")
	}
	if err != nil {
		return nil, err
	}
	if tag == SequenceDelimitationItemTag {
		return nil, it.finish()
	}

	it.item, err = newItemIterator(it.dr, it.syntax)
	return it.item, err
}

// finish consumes the length of the sequence delimitation item and returns io.EOF
func (it *delimitedSequenceIterator) finish() error {
	length, err := it.dr.UInt32(it.syntax.byteOrder())
	if err != nil {
		return fmt.Errorf("reading length of sequence delimitation item: %v", err)
	}
	if length != 0 {
		return fmt.Errorf("sequence delimitation item has length %d, want 0", length)
	}
	it.done = true
	return io.EOF
}

func (it *delimitedSequenceIterator) Close() error {
	return drainSequence(it)
}

// skipItem discards the rest of the previously returned item, if any
func skipItem(item DataElementIterator) error {
	if item == nil {
		return nil
	}
	if err := item.Close(); err != nil {
		return fmt.Errorf("skipping sequence item: %v", err)
	}
	return nil
}

// readItemTag reads the tag opening an item or delimiting the sequence. io.EOF is returned
// unwrapped when the input ends before the tag.
func readItemTag(dr *dcmReader, order binary.ByteOrder) (DataElementTag, error) {
	tag, err := dr.Tag(order)
	if err == io.EOF {
		return tag, io.EOF
	}
	if err != nil {
		return tag, fmt.Errorf("reading item tag: %v", err)
	}
	if tag != ItemTag && tag != SequenceDelimitationItemTag {
		return tag, fmt.Errorf("found %v in a sequence, want item %v or sequence delimitation item %v",
			tag, DataElementTag(ItemTag), DataElementTag(SequenceDelimitationItemTag))
	}
	return tag, nil
}

// newItemIterator reads the item length and iterates the elements of the item. Items of
// undefined length end at their item delimitation item.
func newItemIterator(dr *dcmReader, syntax transferSyntax) (DataElementIterator, error) {
	length, err := dr.UInt32(syntax.byteOrder())
	if err != nil {
		return nil, fmt.Errorf("reading item length: %v", err)
	}
	if length == UndefinedLength {
		return newDataElementIterator(dr, syntax, length), nil
	}
	return newDataElementIterator(dr.Limit(int64(length)), syntax, length), nil
}

func drainSequence(iter SequenceIterator) error {
	for {
		_, err := iter.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
