package preprocess

import (
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/redglacier/core/api/config"
	"github.com/redglacier/core/core/logger"
	"github.com/redglacier/core/core/raster"
	"github.com/redglacier/core/core/stac"
	"github.com/redglacier/core/core/utils"
)

// Output asset roles attached to a scene item
const (
	AssetShadow           = "shadow"
	AssetAlbedo           = "albedo"
	AssetShadowArtificial = "shadow_artificial"
	AssetShadeArtificial  = "shade_artificial"
	AssetStableMask       = "stable_mask"
	AssetClassification   = "classification"
	AssetConnectivity     = "connectivity"
)

// Cross-item link rels carried by scene items
const (
	LinkSourceL1C = "item-L1C"
	LinkSourceL2A = "item-L2A"
)

// Input asset keys on the linked source items
const (
	bandKeyBlue  = "B02"
	bandKeyGreen = "B03"
	bandKeyRed   = "B04"
	bandKeyNir   = "B08"
	assetKeySCL  = "SCL"
)

// ExpectedAssetKeys - the full output asset set of a processed scene.
// An item carrying all of these is complete and skipped on re-runs.
func ExpectedAssetKeys() []string {
	return []string{
		AssetShadow,
		AssetAlbedo,
		AssetShadowArtificial,
		AssetShadeArtificial,
		AssetStableMask,
		AssetClassification,
		AssetConnectivity,
	}
}

// Pipeline - processes one scene end to end: stage inputs, homogenize,
// derive shadow images, co-register, classify, publish
type Pipeline struct {
	Cfg    config.PipelineConfig
	Caps   Capabilities
	Assets *stac.AssetDirectory
	Log    logger.ILogger
}

// ProcessScene - runs the full per-scene pipeline in workDir and
// uploads the outputs. Returns the asset role to remote href map. The
// map is only returned once every output has materialized, so a
// failure part way leaves nothing attached to the scene.
func (p *Pipeline) ProcessScene(item *stac.Item, workDir string) (map[string]string, error) {
	p.Log.Infof("Processing scene %v", item.ID)

	sourceL1C, err := p.Assets.Catalog.LoadLinkedItem(item, LinkSourceL1C)
	if err != nil {
		return nil, err
	}

	// The L2A companion carries the scene classification. Scenes
	// without one are processed with an elevation-only stability mask.
	var sourceL2A *stac.Item
	sourceL2A, err = p.Assets.Catalog.LoadLinkedItem(item, LinkSourceL2A)
	if err != nil {
		missing := stac.MissingLinkError{}
		if !errors.As(err, &missing) {
			return nil, err
		}
		p.Log.Infof("Scene %v has no L2A companion, continuing without cloud screening", item.ID)
		sourceL2A = nil
	}

	blue, err := p.stageRaster(sourceL1C, bandKeyBlue, workDir)
	if err != nil {
		return nil, err
	}
	green, err := p.stageRaster(sourceL1C, bandKeyGreen, workDir)
	if err != nil {
		return nil, err
	}
	red, err := p.stageRaster(sourceL1C, bandKeyRed, workDir)
	if err != nil {
		return nil, err
	}
	nir, err := p.stageRaster(sourceL1C, bandKeyNir, workDir)
	if err != nil {
		return nil, err
	}

	demPath, err := p.Assets.Fetch(p.Cfg.DEMPath, workDir)
	if err != nil {
		return nil, err
	}
	dem, err := raster.ReadGeoTIFFFile(demPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode DEM %v", p.Cfg.DEMPath)
	}

	var sceneClass *raster.Raster
	if sourceL2A != nil {
		sceneClass, err = p.stageRaster(sourceL2A, assetKeySCL, workDir)
		if err != nil {
			return nil, err
		}
	}

	scene, window, err := Homogenize(blue, green, red, nir, dem, sceneClass, p.Cfg.BBox(), p.Caps.Calibrate)
	if err != nil {
		return nil, err
	}
	p.Log.Debugf("Scene %v homogenized to %vx%v", item.ID, scene.DEM.Rows, scene.DEM.Cols)

	sunAz, sunZn, viewAz, viewZn, err := p.Caps.Angles.AngleGrids(sourceL1C, dem)
	if err != nil {
		return nil, err
	}
	angles := CropAngleGrids(sunAz, sunZn, viewAz, viewZn, window)

	images := ComputeShadowImages(scene, angles, p.Caps.Transform, p.Caps.Illum)

	shadow, albedo, offset, err := CoRegister(images, scene, angles, p.Caps.Matcher, p.Cfg.WindowSize, p.Cfg.SlopeThresholdDeg)
	if err != nil {
		return nil, err
	}
	p.Log.Infof("Scene %v co-registration offset: dx=%.3f dy=%.3f", item.ID, offset.DX, offset.DY)

	classification := Classify(shadow, albedo, images.ShadowArtificial, scene.StableMask, p.Caps.Segmenter, p.Cfg.Iterations)
	connectivity := ShadowImageToList(classification, angles.MeanSunAzimuth, angles.MeanSunZenith)

	return p.publish(item, workDir, scene, images, shadow, albedo, classification, connectivity)
}

// stageRaster - fetches one asset of an item into the work dir and
// decodes it
func (p *Pipeline) stageRaster(item *stac.Item, assetKey string, workDir string) (*raster.Raster, error) {
	href, err := p.Assets.ResolveFrom(item, assetKey)
	if err != nil {
		return nil, err
	}
	localPath, err := p.Assets.Fetch(href, workDir)
	if err != nil {
		return nil, err
	}
	r, err := raster.ReadGeoTIFFFile(localPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode asset %v of item %v", assetKey, item.ID)
	}
	return r, nil
}

// publish - writes every output to the work dir, then uploads them all
// and returns the asset role to href map
func (p *Pipeline) publish(item *stac.Item, workDir string, scene *SceneRasters, images *ShadowImages, shadow, albedo, classification *raster.Raster, connectivity string) (map[string]string, error) {
	stableRaster := scene.DEM.NewLike()
	for i, ok := range scene.StableMask {
		if ok {
			stableRaster.Data[i] = 1
		}
	}

	type output struct {
		role    string
		file    string
		r       *raster.Raster
		integer bool
	}
	outputs := []output{
		{AssetShadow, "shadow.tif", shadow, false},
		{AssetAlbedo, "albedo.tif", albedo, false},
		{AssetShadowArtificial, "shadow_artificial.tif", images.ShadowArtificial, true},
		{AssetShadeArtificial, "shade_artificial.tif", images.ShadeArtificial, false},
		{AssetStableMask, "stable_mask.tif", stableRaster, true},
		{AssetClassification, "classification.tif", classification, true},
	}

	localPaths := map[string]string{}
	for _, out := range outputs {
		localPath := filepath.Join(workDir, out.file)
		if err := raster.WriteGeoTIFFFile(localPath, out.r, out.integer); err != nil {
			return nil, errors.Wrapf(err, "failed to write %v for scene %v", out.file, item.ID)
		}
		localPaths[out.role] = localPath
	}

	connPath := filepath.Join(workDir, "conn.txt")
	if err := os.WriteFile(connPath, []byte(connectivity), 0666); err != nil {
		return nil, errors.Wrapf(err, "failed to write conn.txt for scene %v", item.ID)
	}
	localPaths[AssetConnectivity] = connPath

	assets := map[string]string{}
	for _, role := range utils.GetSortedMapKeys(localPaths) {
		localPath := localPaths[role]
		remotePath := path.Join(p.Assets.Catalog.RootDir(), item.ID, filepath.Base(localPath))
		if err := p.Assets.Put(localPath, remotePath); err != nil {
			return nil, err
		}
		assets[role] = remotePath
	}

	p.Log.Infof("Scene %v published %v assets", item.ID, len(assets))
	return assets, nil
}

// AssetTitle - display title for an output asset role
func AssetTitle(role string) string {
	titles := map[string]string{
		AssetShadow:           "Shadow enhanced image",
		AssetAlbedo:           "Albedo image",
		AssetShadowArtificial: "Artificial cast shadow",
		AssetShadeArtificial:  "Artificial shading",
		AssetStableMask:       "Stable terrain mask",
		AssetClassification:   "Shadow classification",
		AssetConnectivity:     "Cast shadow connectivity",
	}
	if title, ok := titles[role]; ok {
		return title
	}
	return role
}
