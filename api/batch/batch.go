// Batch orchestration of the per-scene preprocessing pipeline: a
// bounded worker pool fans the pipeline out over every scene in a
// catalog subset, results flow back over a channel and only the
// orchestrating goroutine touches the catalog. One catalog write per
// completed scene, so partial progress survives a crash and re-runs
// skip what is already done.
package batch

import (
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/redglacier/core/api/config"
	"github.com/redglacier/core/api/preprocess"
	"github.com/redglacier/core/core/logger"
	"github.com/redglacier/core/core/stac"
)

// PipelineRunner - what the orchestrator needs from the per-scene
// pipeline
type PipelineRunner interface {
	ProcessScene(item *stac.Item, workDir string) (map[string]string, error)
}

// SceneResult - the immutable outcome a worker hands back. Exactly one
// of Assets and Err is set.
type SceneResult struct {
	ItemID string
	Assets map[string]string
	Err    error
}

// Summary - outcome counts of one batch run, with per-scene failure
// reasons
type Summary struct {
	Done    int
	Failed  int
	Skipped int

	Failures map[string]string
}

// Orchestrator - runs the pipeline over many scenes with at most
// MaxWorkers in flight
type Orchestrator struct {
	Cfg     config.PipelineConfig
	Runner  PipelineRunner
	Catalog *stac.Catalog
	Log     logger.ILogger
}

// RunCollection - runs over every item of the configured collection,
// or the whole catalog when no collection is configured
func (o *Orchestrator) RunCollection() (*Summary, error) {
	source := o.Catalog
	if len(o.Cfg.CollectionID) > 0 {
		child, ok := o.Catalog.Child(o.Cfg.CollectionID)
		if !ok {
			return nil, fmt.Errorf("catalog %v has no collection %v", o.Catalog.ID, o.Cfg.CollectionID)
		}
		source = child
	}
	return o.Run(source.Items())
}

// Run - processes the given scenes. Scenes already carrying the full
// output asset set are skipped without invoking the pipeline, making
// re-runs idempotent at scene granularity. A scene failure never
// aborts its siblings; it is recorded and the run continues.
func (o *Orchestrator) Run(items []*stac.Item) (*Summary, error) {
	summary := &Summary{Failures: map[string]string{}}
	expected := preprocess.ExpectedAssetKeys()

	pending := []*stac.Item{}
	for _, item := range items {
		if item.HasAssets(expected) {
			o.Log.Debugf("Scene %v already complete, skipping", item.ID)
			summary.Skipped++
			continue
		}
		pending = append(pending, item)
	}
	o.Log.Infof("Batch run: %v scenes pending, %v already complete, %v workers", len(pending), summary.Skipped, o.Cfg.MaxWorkers)

	results := make(chan SceneResult)

	var group errgroup.Group
	group.SetLimit(o.Cfg.MaxWorkers)
	go func() {
		for _, item := range pending {
			item := item
			group.Go(func() error {
				results <- o.runScene(item)
				return nil
			})
		}
		group.Wait()
		close(results)
	}()

	// Sole consumer: merges each result into the catalog and persists
	// the scene's item before taking the next. No other goroutine
	// mutates catalog state.
	for result := range results {
		if result.Err != nil {
			o.Log.Errorf("Scene %v failed: %v", result.ItemID, result.Err)
			summary.Failed++
			summary.Failures[result.ItemID] = result.Err.Error()
			continue
		}

		if err := o.recordScene(result); err != nil {
			o.Log.Errorf("Scene %v processed but could not be recorded: %v", result.ItemID, err)
			summary.Failed++
			summary.Failures[result.ItemID] = err.Error()
			continue
		}
		summary.Done++
	}

	o.Log.Infof("Batch run finished: %v done, %v failed, %v skipped", summary.Done, summary.Failed, summary.Skipped)
	return summary, nil
}

// runScene - one worker invocation: private temp dir, pipeline call,
// cleanup regardless of outcome
func (o *Orchestrator) runScene(item *stac.Item) SceneResult {
	workDir, err := os.MkdirTemp(o.Cfg.WorkRoot, "redglacier-"+item.ID+"-")
	if err != nil {
		return SceneResult{ItemID: item.ID, Err: fmt.Errorf("failed to create work dir for scene %v: %v", item.ID, err)}
	}
	defer os.RemoveAll(workDir)

	assets, err := o.Runner.ProcessScene(item, workDir)
	return SceneResult{ItemID: item.ID, Assets: assets, Err: err}
}

// recordScene - merges a successful result into the catalog item and
// persists that one item
func (o *Orchestrator) recordScene(result SceneResult) error {
	item, ok := o.Catalog.Item(result.ItemID)
	if !ok {
		return fmt.Errorf("scene %v vanished from the catalog", result.ItemID)
	}

	for role, href := range result.Assets {
		item.Assets[role] = stac.Asset{
			Href:  href,
			Title: preprocess.AssetTitle(role),
		}
	}
	return o.Catalog.SaveItem(item)
}
