package stac

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redglacier/core/core/fileaccess"
)

const testBucket = "glacier-data"

func makeTestCatalog(t *testing.T, fs fileaccess.FileAccess) {
	root := catalogDoc{
		ID: "shadows",
		Links: []Link{
			{Rel: "child", Href: "sentinel-2"},
		},
	}
	require.NoError(t, fs.WriteJSON(testBucket, "catalog/catalog.json", root))

	child := catalogDoc{
		ID: "sentinel-2",
		Links: []Link{
			{Rel: "item", Href: "scene-1/scene-1.json"},
			{Rel: "item", Href: "scene-2/scene-2.json"},
		},
	}
	require.NoError(t, fs.WriteJSON(testBucket, "catalog/sentinel-2/catalog.json", child))

	scene1 := itemDoc{
		Type: "Feature",
		ID:   "scene-1",
		Properties: itemProperties{
			Datetime: "2021-03-01T21:11:42Z",
		},
		Links: []Link{
			{Rel: "item-L1C", Href: "scenes/l1c/scene-1.json"},
		},
		Assets: map[string]Asset{},
	}
	require.NoError(t, fs.WriteJSON(testBucket, "catalog/sentinel-2/scene-1/scene-1.json", scene1))

	scene2 := scene1
	scene2.ID = "scene-2"
	scene2.Links = []Link{}
	require.NoError(t, fs.WriteJSON(testBucket, "catalog/sentinel-2/scene-2/scene-2.json", scene2))

	l1c := itemDoc{
		Type:       "Feature",
		ID:         "scene-1-l1c",
		Properties: itemProperties{Datetime: "2021-03-01T21:11:42Z"},
		Assets: map[string]Asset{
			"B04": {Href: "scenes/l1c/B04.tif"},
		},
	}
	require.NoError(t, fs.WriteJSON(testBucket, "scenes/l1c/scene-1.json", l1c))
}

func TestLoadCatalog(t *testing.T) {
	fs := fileaccess.MakeMemoryAccess()
	makeTestCatalog(t, fs)

	catalog, err := LoadCatalog(fs, testBucket, "catalog")
	require.NoError(t, err)
	assert.Equal(t, "shadows", catalog.ID)

	items := catalog.Items()
	require.Len(t, items, 2)

	item, ok := catalog.Item("scene-1")
	require.True(t, ok)
	assert.Equal(t, time.Date(2021, 3, 1, 21, 11, 42, 0, time.UTC), item.Datetime)

	_, ok = catalog.Item("scene-99")
	assert.False(t, ok)

	child, ok := catalog.Child("sentinel-2")
	require.True(t, ok)
	assert.Len(t, child.Items(), 2)
}

func TestLoadCatalogAcceptsCatalogJSONPath(t *testing.T) {
	fs := fileaccess.MakeMemoryAccess()
	makeTestCatalog(t, fs)

	catalog, err := LoadCatalog(fs, testBucket, "catalog/catalog.json")
	require.NoError(t, err)
	assert.Equal(t, "shadows", catalog.ID)
}

func TestLinkedItem(t *testing.T) {
	fs := fileaccess.MakeMemoryAccess()
	makeTestCatalog(t, fs)

	catalog, err := LoadCatalog(fs, testBucket, "catalog")
	require.NoError(t, err)

	item, _ := catalog.Item("scene-1")
	linked, err := catalog.LoadLinkedItem(item, "item-L1C")
	require.NoError(t, err)
	assert.Equal(t, "scene-1-l1c", linked.ID)
	assert.Equal(t, "scenes/l1c/B04.tif", linked.Assets["B04"].Href)

	// A missing link has to surface as the typed error so the
	// orchestrator can attribute the failure
	item2, _ := catalog.Item("scene-2")
	_, err = catalog.LoadLinkedItem(item2, "item-L1C")
	var missingErr MissingLinkError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, "scene-2", missingErr.ItemID)
	assert.Equal(t, "item-L1C", missingErr.Rel)
}

func TestSaveItemRoundTrip(t *testing.T) {
	fs := fileaccess.MakeMemoryAccess()
	makeTestCatalog(t, fs)

	catalog, err := LoadCatalog(fs, testBucket, "catalog")
	require.NoError(t, err)

	item, _ := catalog.Item("scene-1")
	item.Assets["shadow"] = Asset{Href: "catalog/sentinel-2/scene-1/shadow.tif", Title: "shadow"}
	require.NoError(t, catalog.SaveItem(item))

	reloaded, err := LoadCatalog(fs, testBucket, "catalog")
	require.NoError(t, err)
	reloadedItem, ok := reloaded.Item("scene-1")
	require.True(t, ok)
	assert.Equal(t, "catalog/sentinel-2/scene-1/shadow.tif", reloadedItem.Assets["shadow"].Href)
}

func TestHasAssets(t *testing.T) {
	item := &Item{Assets: map[string]Asset{"shadow": {}, "albedo": {}}}
	assert.True(t, item.HasAssets([]string{"shadow", "albedo"}))
	assert.False(t, item.HasAssets([]string{"shadow", "classification"}))
	assert.True(t, item.HasAssets(nil))
}

func TestAssetDirectory(t *testing.T) {
	fs := fileaccess.MakeMemoryAccess()
	makeTestCatalog(t, fs)
	require.NoError(t, fs.WriteObject(testBucket, "scenes/l1c/B04.tif", []byte{1, 2, 3}))

	catalog, err := LoadCatalog(fs, testBucket, "catalog")
	require.NoError(t, err)

	dir := &AssetDirectory{FS: fs, Bucket: testBucket, Catalog: catalog}

	_, err = dir.Resolve("scene-1", "B04")
	assert.Error(t, err) // asset lives on the linked L1C item, not scene-1

	localDir := t.TempDir()
	localPath, err := dir.Fetch("scenes/l1c/B04.tif", localDir)
	require.NoError(t, err)

	require.NoError(t, dir.Put(localPath, "catalog/sentinel-2/scene-1/B04-copy.tif"))
	data, err := fs.ReadObject(testBucket, "catalog/sentinel-2/scene-1/B04-copy.tif")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
}
