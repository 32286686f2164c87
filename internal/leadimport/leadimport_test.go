package leadimport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leads.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFileCSVWithHeader(t *testing.T) {
	path := writeTempCSV(t, "name,linkedin_url\nAlice,https://linkedin.com/in/alice-smith/\nBob,https://linkedin.com/in/bob-jones/\n")

	refs, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://linkedin.com/in/alice-smith/",
		"https://linkedin.com/in/bob-jones/",
	}, refs)
}

func TestReadFileCSVHeaderless(t *testing.T) {
	path := writeTempCSV(t, "https://linkedin.com/in/alice-smith/\nhttps://linkedin.com/in/bob-jones/\n")

	refs, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestReadFileDeduplicates(t *testing.T) {
	path := writeTempCSV(t, "linkedin_url\nhttps://linkedin.com/in/alice-smith/\n\nhttps://linkedin.com/in/alice-smith/\n")

	refs, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://linkedin.com/in/alice-smith/"}, refs)
}

func TestReadFileXLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	require.NoError(t, err)
	header := sheet.AddRow()
	header.AddCell().Value = "name"
	header.AddCell().Value = "Profile URL"
	row := sheet.AddRow()
	row.AddCell().Value = "Alice"
	row.AddCell().Value = "https://linkedin.com/in/alice-smith/"

	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, f.Save(path))

	refs, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://linkedin.com/in/alice-smith/"}, refs)
}

func TestReadFileUnsupportedType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leads.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := ReadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestReadFileNoProfiles(t *testing.T) {
	path := writeTempCSV(t, "name,company\nAlice,Acme\n")

	_, err := ReadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no profile column")
}
