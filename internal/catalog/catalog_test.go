package catalog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	return []Record{
		{URL: "https://img.example.com/red-car.jpg", Title: "Red sports car", Category: "cars", Tags: []string{"vehicle", "red"}},
		{URL: "https://img.example.com/panda.jpg", Title: "Giant panda eating bamboo", Category: "pandas"},
		{URL: "https://img.example.com/jersey.png", Title: "Home kit", Category: "manchester_united_jersey"},
	}
}

func TestCatalog_SearchByTitleCategoryAndTags(t *testing.T) {
	c, err := Open("")
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()
	require.NoError(t, c.Add(ctx, sampleRecords()))

	got, err := c.Search(ctx, "panda", 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "https://img.example.com/panda.jpg", got[0])

	got, err = c.Search(ctx, "vehicle", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example.com/red-car.jpg"}, got)

	got, err = c.Search(ctx, "manchester united", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example.com/jersey.png"}, got)
}

func TestCatalog_FuzzyFallback(t *testing.T) {
	c, err := Open("")
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()
	require.NoError(t, c.Add(ctx, sampleRecords()))

	got, err := c.Search(ctx, "bambo", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example.com/panda.jpg"}, got)

	got, err = c.Search(ctx, "zebra", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCatalog_MaxResults(t *testing.T) {
	c, err := Open("")
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	var records []Record
	for _, n := range []string{"a", "b", "c", "d"} {
		records = append(records, Record{URL: "https://img.example.com/" + n + ".jpg", Title: "burger " + n})
	}
	require.NoError(t, c.Add(ctx, records))

	got, err := c.Search(ctx, "burger", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestCatalog_AddRejectsEmptyURL(t *testing.T) {
	c, err := Open("")
	require.NoError(t, err)
	defer c.Close()
	assert.Error(t, c.Add(context.Background(), []Record{{Title: "no url"}}))
}

func TestCatalog_ImportAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.bleve")
	ctx := context.Background()

	c, err := Open(path)
	require.NoError(t, err)
	input := strings.Join([]string{
		`{"url":"https://img.example.com/1.jpg","title":"orange fruit"}`,
		``,
		`{"url":"https://img.example.com/2.jpg","title":"blue jeans","tags":["denim"]}`,
	}, "\n")
	n, err := c.Import(ctx, strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()
	count, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	got, err := c.Search(ctx, "denim", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example.com/2.jpg"}, got)

	require.NoError(t, c.Delete(ctx, "https://img.example.com/2.jpg"))
	got, err = c.Search(ctx, "denim", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCatalog_ImportRejectsBadLine(t *testing.T) {
	c, err := Open("")
	require.NoError(t, err)
	defer c.Close()
	_, err = c.Import(context.Background(), strings.NewReader("{not json}\n"))
	assert.Error(t, err)
}
