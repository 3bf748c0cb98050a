// Licensed to NASA JPL under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. NASA JPL licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Pipeline configuration as read from JSON, with env var overrides and
// the processing defaults defined here
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/redglacier/core/core/raster"
	"github.com/redglacier/core/core/utils"
)

// Shadow transforms the pipeline can run with
var knownShadowTransforms = []string{"shade-removal"}

// Processing defaults, applied wherever the config leaves a value unset
const (
	DefaultWindowSize        = 16
	DefaultShadeRemovalAngle = 138.0
	DefaultSlopeThresholdDeg = 20.0
	DefaultIterations        = 30
	DefaultMaxWorkers        = 1
	DefaultReflectanceScale  = 10000.0
)

// PipelineConfig combines config JSON values and env vars
type PipelineConfig struct {
	// Where the STAC catalog and scene assets live. CatalogBucket is an
	// S3 bucket name, or a local directory when running without AWS.
	CatalogBucket string
	CatalogRoot   string

	// Collection of scene items to process, as named by a child link of
	// the root catalog
	CollectionID string

	// Elevation model covering the region of interest, as a path within
	// CatalogBucket
	DEMPath string

	// Region of interest in map coordinates of the scene grid
	BBoxMinX float64
	BBoxMinY float64
	BBoxMaxX float64
	BBoxMaxY float64

	// Co-registration parameters
	WindowSize        int
	SlopeThresholdDeg float64

	// Shadow transform
	ShadowTransform   string // only "shade-removal" is built in
	ShadeRemovalAngle float64

	// Classification refinement
	Iterations int

	// Fixed sun/view angles, used when granule metadata is absent.
	// Angles are degrees; zenith 0 is straight up.
	FixedSunAzimuth  float64
	FixedSunZenith   float64
	FixedViewAzimuth float64
	FixedViewZenith  float64

	// Batch settings
	MaxWorkers int
	WorkRoot   string // scratch space for staged scene assets, default os temp

	// DN to reflectance divisor for the calibrator
	ReflectanceScale float64

	EnvironmentName string
	LogLevel        string
}

func NewConfigFromFile(configFilePath string) (PipelineConfig, error) {
	var cfg PipelineConfig

	customConfig, err := os.ReadFile(configFilePath)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file at %s", configFilePath)
	}
	return buildConfig(customConfig)
}

func buildConfig(configJson []byte) (PipelineConfig, error) {
	var cfg PipelineConfig

	err := json.Unmarshal(configJson, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse custom config: %v", err)
	}

	// Override Config with any values explicitly set in Env Vars (REDGLACIER_CONFIG_*)
	reflection := reflect.ValueOf(&cfg).Elem()
	for i := 0; i < reflection.NumField(); i++ {
		fieldName := reflection.Type().Field(i).Name
		field := reflection.Field(i)
		if val, present := os.LookupEnv(fmt.Sprintf("REDGLACIER_CONFIG_%s", fieldName)); present {
			switch field.Kind() {
			case reflect.String:
				field.SetString(val)
			case reflect.Int:
				i, err := strconv.Atoi(val)
				if err != nil {
					fmt.Printf("Could not cast value REDGLACIER_CONFIG_%s=%s to Int", fieldName, val)
					continue
				}
				field.SetInt(int64(i))
			case reflect.Float64:
				f, err := strconv.ParseFloat(val, 64)
				if err != nil {
					fmt.Printf("Could not cast value REDGLACIER_CONFIG_%s=%s to Float", fieldName, val)
					continue
				}
				field.SetFloat(f)
			}
		}
	}

	applyDefaults(&cfg)
	return cfg, cfg.Validate()
}

func applyDefaults(cfg *PipelineConfig) {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.ShadeRemovalAngle == 0 {
		cfg.ShadeRemovalAngle = DefaultShadeRemovalAngle
	}
	if cfg.SlopeThresholdDeg <= 0 {
		cfg.SlopeThresholdDeg = DefaultSlopeThresholdDeg
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.ReflectanceScale <= 0 {
		cfg.ReflectanceScale = DefaultReflectanceScale
	}
	if len(cfg.ShadowTransform) <= 0 {
		cfg.ShadowTransform = "shade-removal"
	}
	if len(cfg.WorkRoot) <= 0 {
		cfg.WorkRoot = os.TempDir()
	}
}

// BBox - the configured region of interest
func (cfg PipelineConfig) BBox() raster.BBox {
	return raster.BBox{
		MinX: cfg.BBoxMinX,
		MinY: cfg.BBoxMinY,
		MaxX: cfg.BBoxMaxX,
		MaxY: cfg.BBoxMaxY,
	}
}

func (cfg PipelineConfig) Validate() error {
	missing := []string{}
	if len(cfg.CatalogBucket) <= 0 {
		missing = append(missing, "CatalogBucket")
	}
	if len(cfg.DEMPath) <= 0 {
		missing = append(missing, "DEMPath")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config missing required values: %s", strings.Join(missing, ", "))
	}

	if cfg.BBoxMinX >= cfg.BBoxMaxX || cfg.BBoxMinY >= cfg.BBoxMaxY {
		return fmt.Errorf("config bounding box is empty: (%v,%v)-(%v,%v)", cfg.BBoxMinX, cfg.BBoxMinY, cfg.BBoxMaxX, cfg.BBoxMaxY)
	}
	if !utils.StringInSlice(cfg.ShadowTransform, knownShadowTransforms) {
		return fmt.Errorf("unknown shadow transform: %v", cfg.ShadowTransform)
	}
	return nil
}
