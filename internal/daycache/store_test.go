package daycache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foreversister/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "cache"), nil)
}

func TestStore_WriteRead(t *testing.T) {
	s := newTestStore(t)

	items := []types.CacheItem{
		{
			Kind:       types.SegmentGeneral,
			Salutation: types.SalutationBrother,
			Recipients: []string{"a@test.com", "b@test.com"},
			Subject:    "中秋节快乐！",
			Text:       "亲爱的哥哥，见字如面。",
			ImagePath:  "cache/general_哥哥_2025-09-01.png",
		},
		{
			Kind:       types.SegmentBirthday,
			Salutation: types.SalutationSister,
			Cohort:     "1995",
			Recipients: []string{"c@test.com"},
			Subject:    "生日快乐！",
			Text:       "祝你三十岁生日快乐。",
		},
	}

	require.NoError(t, s.Write("2025-09-01", items))
	assert.True(t, s.Exists("2025-09-01"))

	doc, err := s.Read("2025-09-01")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "2025-09-01", doc.Date)
	require.Len(t, doc.Items, 2)
	assert.Equal(t, items[0], doc.Items[0])
	assert.Equal(t, items[1], doc.Items[1])
}

func TestStore_ReadMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Read("2025-01-01")
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.False(t, s.Exists("2025-01-01"))
}

func TestStore_WriteOverwritesWhole(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Write("2025-09-01", []types.CacheItem{{Subject: "第一版"}}))
	require.NoError(t, s.Write("2025-09-01", []types.CacheItem{{Subject: "第二版"}, {Subject: "另一段"}}))

	doc, err := s.Read("2025-09-01")
	require.NoError(t, err)
	require.Len(t, doc.Items, 2)
	assert.Equal(t, "第二版", doc.Items[0].Subject)
}

func TestStore_CorruptDocumentIsAnError(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "2025-09-01.json"), []byte("{not json"), 0o644))

	_, err := s.Read("2025-09-01")
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeInternalCache, appErr.Code)
}

func TestStore_ImageRoundTrip(t *testing.T) {
	s := newTestStore(t)

	path, err := s.WriteImage("general_哥哥_2025-09-01.png", []byte{0x89, 'P', 'N', 'G'})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir(), "general_哥哥_2025-09-01.png"), path)

	data, err := s.ReadImage(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
}

func TestStore_SentMarker(t *testing.T) {
	s := newTestStore(t)

	assert.False(t, s.WasSent("2025-09-01"))
	require.NoError(t, s.MarkSent("2025-09-01"))
	assert.True(t, s.WasSent("2025-09-01"))

	// The marker is per-date.
	assert.False(t, s.WasSent("2025-09-02"))
}
