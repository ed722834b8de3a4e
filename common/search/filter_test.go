package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandihub/archive/common/models"
)

func testAssets() []*models.Asset {
	return []*models.Asset{
		{Path: "sub-01/a.nwb", Size: 100, Metadata: models.Metadata{"encodingFormat": "application/x-nwb"}},
		{Path: "sub-01/b.json", Size: 5, Metadata: models.Metadata{"encodingFormat": "application/json"}},
		{Path: "sub-02/c.nwb", Size: 200, Metadata: models.Metadata{"encodingFormat": "application/x-nwb"}},
	}
}

func TestMatchOnPathAndSize(t *testing.T) {
	f := NewFilter()
	assets := testAssets()

	ok, err := f.Match(`path.startsWith("sub-01/")`, assets[0])
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.Match(`size > 150`, assets[0])
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.Match(`metadata.encodingFormat == "application/json"`, assets[1])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApplyPreservesOrder(t *testing.T) {
	f := NewFilter()
	assets := testAssets()

	matched, err := f.Apply(`metadata.encodingFormat == "application/x-nwb"`, assets)
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, "sub-01/a.nwb", matched[0].Path)
	assert.Equal(t, "sub-02/c.nwb", matched[1].Path)
}

func TestApplyEmptyExpressionMatchesAll(t *testing.T) {
	f := NewFilter()
	assets := testAssets()

	matched, err := f.Apply("", assets)
	require.NoError(t, err)
	assert.Len(t, matched, len(assets))
}

func TestMatchRejectsBadExpressions(t *testing.T) {
	f := NewFilter()
	asset := testAssets()[0]

	_, err := f.Match(`path.startsWith(`, asset)
	assert.ErrorContains(t, err, "filter compilation error")

	_, err = f.Match(`size + 1`, asset)
	assert.ErrorContains(t, err, "did not return boolean")
}

func TestProgramCacheReuse(t *testing.T) {
	f := NewFilter()
	assets := testAssets()

	_, err := f.Apply(`size > 50`, assets)
	require.NoError(t, err)
	assert.Equal(t, 1, f.CacheSize())

	_, err = f.Apply(`size > 50`, assets)
	require.NoError(t, err)
	assert.Equal(t, 1, f.CacheSize())
}
