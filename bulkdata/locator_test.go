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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GAOHunter/dcm4che/dicom"
)

func bulkDataReader(t *testing.T, data []byte, offset int64) *dicom.BulkDataReader {
	t.Helper()

	r, err := dicom.NewBulkDataIterator(bytes.NewReader(data), offset, int64(len(data))).Next()
	require.NoError(t, err)
	return r
}

func TestReference_URI(t *testing.T) {
	tests := []struct {
		ref  Reference
		want string
	}{
		{Reference{"/tmp/in.dcm", 1234, 512}, "file:///tmp/in.dcm?offset=1234&length=512"},
		{Reference{"/tmp/my file.dcm", 0, 2}, "file:///tmp/my%20file.dcm?offset=0&length=2"},
	}

	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.ref.URI())
		})
	}
}

func TestSourceFile(t *testing.T) {
	l, err := SourceFile("in.dcm")
	require.NoError(t, err)
	defer l.Close()

	ref, err := l.Locate(bulkDataReader(t, []byte{1, 2, 3, 4}, 300))
	require.NoError(t, err)
	require.NotNil(t, ref)

	assert.True(t, filepath.IsAbs(ref.Path))
	assert.Equal(t, "in.dcm", filepath.Base(ref.Path))
	assert.Equal(t, int64(300), ref.Offset)
	assert.Equal(t, int64(4), ref.Length)
}

func TestLocate_Empty(t *testing.T) {
	dir := t.TempDir()
	src, err := SourceFile("in.dcm")
	require.NoError(t, err)

	for _, l := range []Locator{src, NewSpool(dir)} {
		ref, err := l.Locate(bulkDataReader(t, nil, 10))
		require.NoError(t, err)
		assert.Nil(t, ref)
		require.NoError(t, l.Close())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSpool(t *testing.T) {
	dir := t.TempDir()
	s := &Spool{Dir: dir, Prefix: "px", Suffix: ".bin"}
	defer s.Close()

	first, err := s.Locate(bulkDataReader(t, []byte{1, 2, 3}, 500))
	require.NoError(t, err)
	second, err := s.Locate(bulkDataReader(t, []byte{4, 5}, 600))
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	for _, ref := range []*Reference{first, second} {
		assert.Equal(t, dir, filepath.Dir(ref.Path))
		assert.True(t, strings.HasPrefix(filepath.Base(ref.Path), "px"))
		assert.True(t, strings.HasSuffix(ref.Path, ".bin"))
		assert.Equal(t, int64(0), ref.Offset)
	}

	data, err := os.ReadFile(second.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, data)
	assert.Equal(t, int64(2), second.Length)
}

func TestSpool_Concatenate(t *testing.T) {
	dir := t.TempDir()
	s := NewSpool(dir)
	s.Concatenate = true

	first, err := s.Locate(bulkDataReader(t, []byte{1, 2, 3}, 500))
	require.NoError(t, err)
	second, err := s.Locate(bulkDataReader(t, []byte{4, 5}, 600))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, first.Path, second.Path)
	assert.True(t, strings.HasPrefix(filepath.Base(first.Path), DefaultPrefix))
	assert.True(t, strings.HasSuffix(first.Path, DefaultSuffix))
	assert.Equal(t, Reference{first.Path, 0, 3}, *first)
	assert.Equal(t, Reference{first.Path, 3, 2}, *second)

	data, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, data)
}

func TestSpool_MissingDir(t *testing.T) {
	s := NewSpool(filepath.Join(t.TempDir(), "missing"))
	_, err := s.Locate(bulkDataReader(t, []byte{1}, 0))
	assert.Error(t, err)
}
