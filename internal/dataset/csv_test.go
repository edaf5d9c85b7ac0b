package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmlab/boxrdd/internal/model"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", IndexFile)

	rows := []model.IndexRow{
		{
			ReleaseID:      "rl100",
			Title:          "Example Movie",
			TotalGross:     model.Int64Ptr(50_000_000),
			MaxTheaters:    model.Int64Ptr(1000),
			ReleaseDateRaw: "Jun 14",
			Year:           2022,
			Distributor:    "Example Pictures",
			ReleaseURL:     "https://www.boxofficemojo.com/release/rl100/",
		},
		{ReleaseID: "rl200", Title: "No Numbers Yet", Year: 2023},
	}
	require.NoError(t, Write(path, rows))

	got, err := Read[model.IndexRow](path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rows[0], got[0])
	// Nil pointers survive the trip as nil.
	assert.Nil(t, got[1].TotalGross)
	assert.Nil(t, got[1].MaxTheaters)
}

func TestWrite_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")

	rows := []model.BudgetRow{
		{Title: "Example Movie", ReleaseYear: model.IntPtr(2022), Budget: model.Int64Ptr(20_000_000), TitleNormalized: "example movie"},
		{Title: "Another", TitleNormalized: "another"},
	}
	require.NoError(t, Write(a, rows))
	require.NoError(t, Write(b, rows))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.csv")
	assert.False(t, Exists(path))
	require.NoError(t, os.WriteFile(path, []byte{}, 0o644))
	assert.False(t, Exists(path))
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n"), 0o644))
	assert.True(t, Exists(path))
}
