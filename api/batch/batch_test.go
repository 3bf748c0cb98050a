package batch

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redglacier/core/api/config"
	"github.com/redglacier/core/api/preprocess"
	"github.com/redglacier/core/core/fileaccess"
	"github.com/redglacier/core/core/logger"
	"github.com/redglacier/core/core/raster"
	"github.com/redglacier/core/core/stac"
)

const testBucket = "glacier-data"

// stubRunner - counts pipeline invocations and fails the scenes it is
// told to, returning a full asset set otherwise
type stubRunner struct {
	mu       sync.Mutex
	calls    int
	workDirs []string
	fail     map[string]error
}

func (r *stubRunner) ProcessScene(item *stac.Item, workDir string) (map[string]string, error) {
	r.mu.Lock()
	r.calls++
	r.workDirs = append(r.workDirs, workDir)
	r.mu.Unlock()

	if err, ok := r.fail[item.ID]; ok {
		return nil, err
	}

	assets := map[string]string{}
	for _, key := range preprocess.ExpectedAssetKeys() {
		assets[key] = fmt.Sprintf("red-glacier/%v/%v.tif", item.ID, key)
	}
	return assets, nil
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func seedCatalog(t *testing.T, fs fileaccess.FileAccess, sceneCount int) {
	itemLinks := []map[string]string{}
	for i := 1; i <= sceneCount; i++ {
		id := fmt.Sprintf("scene-%d", i)
		itemLinks = append(itemLinks, map[string]string{"rel": "item", "href": id + "/" + id + ".json"})
	}

	require.NoError(t, fs.WriteJSON(testBucket, "red-glacier/catalog.json", map[string]interface{}{
		"id":    "shadows",
		"links": []map[string]string{{"rel": "child", "href": "sentinel-2"}},
	}))
	require.NoError(t, fs.WriteJSON(testBucket, "red-glacier/sentinel-2/catalog.json", map[string]interface{}{
		"id":    "sentinel-2",
		"links": itemLinks,
	}))

	for i := 1; i <= sceneCount; i++ {
		id := fmt.Sprintf("scene-%d", i)
		require.NoError(t, fs.WriteJSON(testBucket, "red-glacier/sentinel-2/"+id+"/"+id+".json", map[string]interface{}{
			"type":       "Feature",
			"id":         id,
			"properties": map[string]string{"datetime": "2021-03-01T21:11:42Z"},
			"links":      []map[string]string{},
			"assets":     map[string]interface{}{},
		}))
	}
}

func makeOrchestrator(t *testing.T, fs fileaccess.FileAccess, runner PipelineRunner, workers int) *Orchestrator {
	catalog, err := stac.LoadCatalog(fs, testBucket, "red-glacier")
	require.NoError(t, err)

	return &Orchestrator{
		Cfg: config.PipelineConfig{
			CatalogBucket: testBucket,
			CatalogRoot:   "red-glacier",
			CollectionID:  "sentinel-2",
			MaxWorkers:    workers,
			WorkRoot:      t.TempDir(),
		},
		Runner:  runner,
		Catalog: catalog,
		Log:     &logger.NullLogger{},
	}
}

func TestRunRecordsFailuresWithoutAbortingSiblings(t *testing.T) {
	fs := fileaccess.MakeMemoryAccess()
	seedCatalog(t, fs, 5)

	runner := &stubRunner{
		fail: map[string]error{
			"scene-3": raster.EmptyRegionError{Axis: "x", BBox: raster.BBox{MinX: 9000, MaxX: 9100}},
		},
	}
	orchestrator := makeOrchestrator(t, fs, runner, 3)

	summary, err := orchestrator.RunCollection()
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Done)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	assert.Contains(t, summary.Failures["scene-3"], "selects no samples")
	assert.Equal(t, 5, runner.callCount())

	// the persisted catalog holds assets for exactly the successful scenes
	reloaded, err := stac.LoadCatalog(fs, testBucket, "red-glacier")
	require.NoError(t, err)
	for _, id := range []string{"scene-1", "scene-2", "scene-4", "scene-5"} {
		item, ok := reloaded.Item(id)
		require.True(t, ok)
		assert.True(t, item.HasAssets(preprocess.ExpectedAssetKeys()), "scene %v should be complete", id)
	}
	failed, ok := reloaded.Item("scene-3")
	require.True(t, ok)
	assert.Empty(t, failed.Assets)

	// worker scratch dirs are cleaned up whatever the outcome
	for _, dir := range runner.workDirs {
		_, statErr := os.Stat(dir)
		assert.True(t, os.IsNotExist(statErr), "work dir %v should be removed", dir)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	fs := fileaccess.MakeMemoryAccess()
	seedCatalog(t, fs, 5)

	first := &stubRunner{}
	summary, err := makeOrchestrator(t, fs, first, 2).RunCollection()
	require.NoError(t, err)
	require.Equal(t, 5, summary.Done)

	// every scene is complete now: a re-run must not invoke the pipeline
	second := &stubRunner{}
	summary, err = makeOrchestrator(t, fs, second, 2).RunCollection()
	require.NoError(t, err)

	assert.Equal(t, 0, second.callCount())
	assert.Equal(t, 5, summary.Skipped)
	assert.Equal(t, 0, summary.Done)
	assert.Equal(t, 0, summary.Failed)
}

func TestRunCollectionUnknownCollection(t *testing.T) {
	fs := fileaccess.MakeMemoryAccess()
	seedCatalog(t, fs, 1)

	orchestrator := makeOrchestrator(t, fs, &stubRunner{}, 1)
	orchestrator.Cfg.CollectionID = "landsat-8"

	_, err := orchestrator.RunCollection()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no collection")
}
