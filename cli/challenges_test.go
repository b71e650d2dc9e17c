package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "challenges.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadChallengeSeed(t *testing.T) {
	path := writeSeed(t, `
- title: Romantasy Month
  target_value: 1500
  target_unit: pages
  start_date: 2026-11-01T00:00:00Z
  end_date: 2026-11-30T23:59:59Z
  reward_points: 300
  difficulty: hard
  genres: [Romance, Fantasy]
  is_featured: true
  booktok_themed: true
- title: Three Quick Reads
  target_value: 3
  target_unit: books
  start_date: 2026-11-01T00:00:00Z
  end_date: 2026-11-15T00:00:00Z
  difficulty: easy
`)
	inputs, err := loadChallengeSeed(path)
	require.NoError(t, err)
	require.Len(t, inputs, 2)

	assert.Equal(t, "Romantasy Month", inputs[0].Title)
	assert.Equal(t, 1500, inputs[0].TargetValue)
	assert.Equal(t, []string{"Romance", "Fantasy"}, inputs[0].Genres)
	assert.True(t, inputs[0].IsFeatured)
	assert.Equal(t, 30, inputs[0].EndDate.Day())
	assert.Equal(t, "books", inputs[1].TargetUnit)
}

func TestLoadChallengeSeed_Invalid(t *testing.T) {
	path := writeSeed(t, `
- title: Backwards
  target_value: 10
  target_unit: pages
  start_date: 2026-11-10T00:00:00Z
  end_date: 2026-11-01T00:00:00Z
  difficulty: easy
`)
	_, err := loadChallengeSeed(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `challenge 1 ("Backwards")`)

	_, err = loadChallengeSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
