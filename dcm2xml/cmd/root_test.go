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

package cmd

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GAOHunter/dcm4che/dicom"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, stdin io.Reader, args ...string) result {
	t.Helper()

	if stdin == nil {
		stdin = strings.NewReader("")
	}
	var stdout, stderr bytes.Buffer
	code := Run(NewCmd(stdin, &stdout, &stderr), args)
	return result{code, stdout.String(), stderr.String()}
}

// testFile returns an Explicit VR Little Endian file with a patient name and 4 bytes of pixel data
func testFile(t *testing.T) []byte {
	t.Helper()
	return testFileWithSyntax(t, dicom.ExplicitVRLittleEndianUID)
}

func testFileWithSyntax(t *testing.T, syntaxUID string) []byte {
	t.Helper()

	var buff bytes.Buffer
	header := dicom.NewDataSet(map[dicom.DataElementTag]interface{}{
		dicom.TransferSyntaxUIDTag: []string{syntaxUID},
	})
	dew, err := dicom.NewDataElementWriter(&buff, header)
	require.NoError(t, err)
	require.NoError(t, dew.WriteElement(&dicom.DataElement{
		Tag: dicom.PatientNameTag, VR: dicom.PNVR, ValueField: []string{"Doe^John"},
	}))
	require.NoError(t, dew.WriteElement(&dicom.DataElement{
		Tag: dicom.PixelDataTag, VR: dicom.OWVR, ValueField: [][]byte{{1, 2, 3, 4}},
	}))
	require.NoError(t, dew.Close())
	return buff.Bytes()
}

func writeTestFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "in.dcm")
	require.NoError(t, os.WriteFile(path, testFile(t), 0o600))
	return path
}

func TestRun_UsageErrors(t *testing.T) {
	path := writeTestFile(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing operand", nil, "dcm2xml: Missing file operand\n"},
		{"too many arguments", []string{path, path}, "dcm2xml: Too many arguments\n"},
		{"unknown flag", []string{"--bogus", path}, "unknown flag: --bogus"},
		{"bulk data modes", []string{"-b", "-B", path}, "mutually exclusive"},
		{"log level", []string{"--log-level", "loud", path}, "loud"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := run(t, nil, tc.args...)
			assert.Equal(t, exitFailure, got.code)
			assert.Empty(t, got.stdout)
			assert.Contains(t, got.stderr, tc.want)
			assert.True(t, strings.HasSuffix(got.stderr, usageHint+"\n"), "stderr: %q", got.stderr)
		})
	}
}

func TestRun_Version(t *testing.T) {
	got := run(t, nil, "-V")
	assert.Equal(t, 0, got.code)
	assert.Equal(t, "dcm2xml "+Version+"\n", got.stdout)
}

func TestRun_Help(t *testing.T) {
	got := run(t, nil, "--help")
	assert.Equal(t, 0, got.code)
	assert.Contains(t, got.stdout, "dcm2xml [<options>] <dicom-file>")
	assert.Contains(t, got.stdout, "standard input if <dicom-file> = '-'")
	assert.Contains(t, got.stdout, "--blk-file-dir directory")
	assert.Contains(t, got.stdout, "--xslt xsl-file")
}

func TestRun_File(t *testing.T) {
	path := writeTestFile(t)
	abs, err := filepath.Abs(path)
	require.NoError(t, err)

	got := run(t, nil, path)
	require.Equal(t, 0, got.code, got.stderr)
	assert.True(t, strings.HasPrefix(got.stdout, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, got.stdout, `<NativeDicomModel xml:space="preserve">`)
	assert.Contains(t, got.stdout, `<DicomAttribute keyword="PatientName" tag="00100010" vr="PN">`)
	assert.Contains(t, got.stdout, `<FamilyName>Doe</FamilyName>`)
	assert.Contains(t, got.stdout, `<BulkData uri="file://`+filepath.ToSlash(abs)+`?offset=`)
	assert.Contains(t, got.stdout, `&amp;length=4"`)
	assert.NotContains(t, got.stdout, "InlineBinary")
}

func TestRun_Stdin(t *testing.T) {
	dir := t.TempDir()
	got := run(t, bytes.NewReader(testFile(t)),
		"-d", dir, "--blk-file-prefix", "px", "--blk-file-suffix", ".raw", "-")
	require.Equal(t, 0, got.code, got.stderr)

	files, err := filepath.Glob(filepath.Join(dir, "px*.raw"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
	assert.Contains(t, got.stdout, `<BulkData uri="file://`+filepath.ToSlash(files[0])+`?offset=0&amp;length=4"`)
}

func TestRun_StdinConcatenate(t *testing.T) {
	dir := t.TempDir()
	got := run(t, bytes.NewReader(testFile(t)), "-c", "--blk-file-dir", dir, "-")
	require.Equal(t, 0, got.code, got.stderr)

	files, err := filepath.Glob(filepath.Join(dir, "blk*.tmp"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, got.stdout, "?offset=0&amp;length=4")
}

func TestRun_DeflatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deflated.dcm")
	require.NoError(t, os.WriteFile(path, testFileWithSyntax(t, dicom.DeflatedExplicitVRLittleEndianUID), 0o600))

	blkDir := t.TempDir()
	got := run(t, nil, "-d", blkDir, path)
	require.Equal(t, 0, got.code, got.stderr)

	files, err := filepath.Glob(filepath.Join(blkDir, "blk*.tmp"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, got.stdout, `<BulkData uri="file://`+filepath.ToSlash(files[0])+`?offset=0&amp;length=4"`)
	assert.NotContains(t, got.stdout, "deflated.dcm")
}

func TestRun_Options(t *testing.T) {
	path := writeTestFile(t)
	spec := filepath.Join(t.TempDir(), "spec.xml")
	require.NoError(t, os.WriteFile(spec, []byte("<NativeDicomModel/>"), 0o600))

	tests := []struct {
		name        string
		args        []string
		contains    []string
		notContains []string
	}{
		{
			name:        "with bulk data",
			args:        []string{"-b"},
			contains:    []string{"<InlineBinary>AQIDBA==</InlineBinary>"},
			notContains: []string{"<BulkData"},
		},
		{
			name:        "no bulk data",
			args:        []string{"--no-bulkdata"},
			contains:    []string{`tag="7FE00010" vr="OW"`},
			notContains: []string{"<BulkData", "InlineBinary"},
		},
		{
			name:        "no keyword",
			args:        []string{"-K"},
			contains:    []string{`<DicomAttribute tag="00100010" vr="PN">`},
			notContains: []string{"keyword="},
		},
		{
			name:     "indent",
			args:     []string{"-I"},
			contains: []string{"\n  <DicomAttribute keyword=\"PatientName\""},
		},
		{
			name:        "bulk data spec",
			args:        []string{"-X", spec},
			contains:    []string{"<InlineBinary>AQIDBA==</InlineBinary>"},
			notContains: []string{"<BulkData"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := run(t, nil, append(tc.args, path)...)
			require.Equal(t, 0, got.code, got.stderr)
			for _, s := range tc.contains {
				assert.Contains(t, got.stdout, s)
			}
			for _, s := range tc.notContains {
				assert.NotContains(t, got.stdout, s)
			}
		})
	}
}

func TestRun_Environment(t *testing.T) {
	t.Setenv("DCM2XML_NO_KEYWORD", "true")
	t.Setenv("DCM2XML_WITH_BULKDATA", "true")

	got := run(t, nil, writeTestFile(t))
	require.Equal(t, 0, got.code, got.stderr)
	assert.NotContains(t, got.stdout, "keyword=")
	assert.Contains(t, got.stdout, "<InlineBinary>AQIDBA==</InlineBinary>")
}

func TestRun_XSLT(t *testing.T) {
	style := filepath.Join(t.TempDir(), "name.xsl")
	require.NoError(t, os.WriteFile(style, []byte(`<?xml version="1.0" encoding="UTF-8"?>
<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:template match="/">
    <name><xsl:value-of select="NativeDicomModel/DicomAttribute[@keyword='PatientName']/PersonName/Alphabetic/GivenName"/></name>
  </xsl:template>
</xsl:stylesheet>
`), 0o600))

	got := run(t, nil, "-x", style, writeTestFile(t))
	require.Equal(t, 0, got.code, got.stderr)
	assert.Contains(t, got.stdout, "<name>John</name>")
	assert.NotContains(t, got.stdout, "NativeDicomModel")
}

func TestRun_XSLTIndent(t *testing.T) {
	style := filepath.Join(t.TempDir(), "patient.xsl")
	require.NoError(t, os.WriteFile(style, []byte(`<?xml version="1.0" encoding="UTF-8"?>
<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:template match="/">
    <patient><name><xsl:value-of select="NativeDicomModel/DicomAttribute[@keyword='PatientName']/PersonName/Alphabetic/FamilyName"/></name></patient>
  </xsl:template>
</xsl:stylesheet>
`), 0o600))
	path := writeTestFile(t)

	got := run(t, nil, "-x", style, path)
	require.Equal(t, 0, got.code, got.stderr)
	assert.Contains(t, got.stdout, "<patient><name>Doe</name></patient>")

	got = run(t, nil, "-I", "-x", style, path)
	require.Equal(t, 0, got.code, got.stderr)
	assert.Contains(t, got.stdout, "<patient>\n  <name>Doe</name>\n</patient>\n")
}

func TestRun_ProcessingErrors(t *testing.T) {
	dir := t.TempDir()
	notDicom := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(notDicom, []byte("hello"), 0o600))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{filepath.Join(dir, "missing.dcm")}, "no such file"},
		{"not dicom", []string{notDicom}, "reading " + notDicom},
		{"missing spec", []string{"-X", filepath.Join(dir, "missing.xml"), notDicom}, "loading bulk data specification"},
		{"missing stylesheet", []string{"-x", filepath.Join(dir, "missing.xsl"), notDicom}, "loading stylesheet"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := run(t, nil, tc.args...)
			assert.Equal(t, exitFailure, got.code)
			assert.Empty(t, got.stdout)
			assert.True(t, strings.HasPrefix(got.stderr, "dcm2xml: "), "stderr: %q", got.stderr)
			assert.Contains(t, got.stderr, tc.want)
			assert.NotContains(t, got.stderr, usageHint)
		})
	}
}

func TestRun_DebugLog(t *testing.T) {
	got := run(t, nil, "--log-level", "debug", "--log-format", "json", writeTestFile(t))
	require.Equal(t, 0, got.code, got.stderr)
	assert.Contains(t, got.stderr, `"msg":"Converting DICOM file"`)
	assert.Contains(t, got.stderr, `"subsys":"dcm2xml"`)
	assert.Contains(t, got.stderr, `"transferSyntax":"`+dicom.ExplicitVRLittleEndianUID+`"`)
}
