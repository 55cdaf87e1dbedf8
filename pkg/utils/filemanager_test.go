package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDiscoverInputFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b_usage.csv"), "x")
	touch(t, filepath.Join(dir, "a_usage.XLSX"), "x")
	touch(t, filepath.Join(dir, "~$a_usage.xlsx"), "lock")
	touch(t, filepath.Join(dir, "notes.txt"), "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0755))

	fm := NewFileManager(dir, "", "")
	files, err := fm.DiscoverInputFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a_usage.XLSX"),
		filepath.Join(dir, "b_usage.csv"),
	}, files)

	_, err = NewFileManager(filepath.Join(dir, "missing"), "", "").DiscoverInputFiles()
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	root := t.TempDir()
	fm := NewFileManager(filepath.Join(root, "in"), filepath.Join(root, "out"), "")
	require.NoError(t, fm.EnsureDirectories())
	assert.DirExists(t, filepath.Join(root, "in"))
	assert.DirExists(t, filepath.Join(root, "out"))
}

func TestArchiveInputFile(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "in")
	archive := filepath.Join(root, "archive")
	require.NoError(t, os.Mkdir(in, 0755))

	fm := NewFileManager(in, "", archive)
	fm.Now = func() time.Time { return time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC) }

	src := filepath.Join(in, "usage.csv")
	touch(t, src, "first")
	dst, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archive, "usage.csv"), dst)
	assert.NoFileExists(t, src)

	// Same name again: the earlier archive is kept.
	touch(t, src, "second")
	dst, err = fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archive, "usage_20261019_083000.csv"), dst)

	data, err := os.ReadFile(filepath.Join(archive, "usage.csv"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestArchiveInputFile_TimestampSubdirs(t *testing.T) {
	root := t.TempDir()
	fm := NewFileManager(root, "", filepath.Join(root, "archive"))
	fm.UseTimestampSubdirs = true
	fm.Now = func() time.Time { return time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC) }

	src := filepath.Join(root, "usage.xlsx")
	touch(t, src, "x")
	dst, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "archive", "2026", "03", "05", "usage.xlsx"), dst)
}

func TestGenerateOutputFileName(t *testing.T) {
	now := time.Date(2026, 10, 19, 14, 30, 22, 0, time.UTC)

	tests := []struct {
		name   string
		format string
		params map[string]string
		want   string
	}{
		{"default format", "consolidated_billing_{date}.xlsx", nil, "consolidated_billing_2026-10-19.xlsx"},
		{"extension added", "billing_{timestamp}", nil, "billing_20261019_143022.xlsx"},
		{"run id and original", "{original}_{uuid}.XLSX", map[string]string{"uuid": "abc", "original": "usage"}, "usage_abc.XLSX"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GenerateOutputFileName(tt.format, now, tt.params))
		})
	}

	random := GenerateOutputFileName("{uuid}", now, nil)
	assert.Len(t, strings.TrimSuffix(random, ".xlsx"), 36)
}

func TestWriteSummaryLog(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	path, err := WriteSummaryLog(ProcessingSummary{
		StartTime:    start,
		EndTime:      start.Add(2 * time.Second),
		TotalFiles:   2,
		Written:      1,
		Gated:        1,
		TotalRecords: 40,
		Files: []FileSummary{
			{InputFile: "a.csv", Status: "written", OutputFile: "out.xlsx", Records: 30, Reconciled: true},
			{InputFile: "b.csv", Status: "gated", Records: 10, Unmapped: 3},
		},
	}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "processing_summary_20261019_090002.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Reports Written:  1")
	assert.Contains(t, text, "Awaiting Mapping: 1")
	assert.Contains(t, text, "Unmapped:     3")
	assert.Contains(t, text, "Duration:       2s")
}

func TestWriteErrorLog(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	path, err := WriteErrorLog(nil, dir, now)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = WriteErrorLog([]ErrorLogEntry{
		{Timestamp: now, FileName: "a.csv", ErrorType: "parse_warning", ErrorMessage: "defaulted", RowNumber: 4, FieldName: "Calls Total", FieldValue: "n/a"},
	}, dir, now)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Row Number: 4")
	assert.Contains(t, string(data), "Value:      n/a")
}
