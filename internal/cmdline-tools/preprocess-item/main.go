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

package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/redglacier/core/api/config"
	"github.com/redglacier/core/api/preprocess"
	"github.com/redglacier/core/core/awsutil"
	"github.com/redglacier/core/core/fileaccess"
	"github.com/redglacier/core/core/logger"
	"github.com/redglacier/core/core/stac"
)

func main() {
	fmt.Println("====================================")
	fmt.Println("=  RedGlacier scene preprocessor   =")
	fmt.Println("====================================")

	var argConfigPath = flag.String("config", "", "Path to the json run configuration")
	var argSceneID = flag.String("scene", "", "Catalog item id of the scene to process")
	var argStore = flag.String("store", "s3", "Where the catalog lives: s3, local")

	flag.Parse()

	if len(*argConfigPath) <= 0 {
		log.Fatalln("No config file specified")
	}
	if len(*argSceneID) <= 0 {
		log.Fatalln("No scene id specified")
	}

	cfg, err := config.NewConfigFromFile(*argConfigPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ilog := makeLogger(cfg)
	fs := makeFileAccess(*argStore)

	catalog, err := stac.LoadCatalog(fs, cfg.CatalogBucket, cfg.CatalogRoot)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	item, ok := catalog.Item(*argSceneID)
	if !ok {
		log.Fatalf("Scene %v not found in catalog %v", *argSceneID, catalog.ID)
	}

	if item.HasAssets(preprocess.ExpectedAssetKeys()) {
		ilog.Infof("Scene %v already carries all output assets, nothing to do", item.ID)
		return
	}

	pipeline := &preprocess.Pipeline{
		Cfg:    cfg,
		Caps:   preprocess.DefaultCapabilities(cfg),
		Assets: &stac.AssetDirectory{FS: fs, Bucket: cfg.CatalogBucket, Catalog: catalog},
		Log:    ilog,
	}

	workDir, err := os.MkdirTemp(cfg.WorkRoot, "redglacier-"+item.ID+"-")
	if err != nil {
		log.Fatalf("Failed to create work dir: %v", err)
	}
	defer os.RemoveAll(workDir)

	assets, err := pipeline.ProcessScene(item, workDir)
	if err != nil {
		log.Fatalf("Scene %v failed: %v", item.ID, err)
	}

	for role, href := range assets {
		item.Assets[role] = stac.Asset{Href: href, Title: preprocess.AssetTitle(role)}
	}
	if err = catalog.SaveItem(item); err != nil {
		log.Fatalf("Scene %v processed but item could not be saved: %v", item.ID, err)
	}

	ilog.Infof("Scene %v done, %v assets attached", item.ID, len(assets))
}

func makeLogger(cfg config.PipelineConfig) logger.ILogger {
	ilog := &logger.StdOutLogger{}
	if len(cfg.LogLevel) > 0 {
		level, err := logger.GetLogLevel(cfg.LogLevel)
		if err != nil {
			log.Fatalf("%v", err)
		}
		ilog.SetLogLevel(level)
	}
	return ilog
}

func makeFileAccess(store string) fileaccess.FileAccess {
	if store == "local" {
		return &fileaccess.FSAccess{}
	}

	sess, err := awsutil.GetSession()
	if err != nil {
		log.Fatalf("AWS GetSession failed: %v", err)
	}
	svc, err := awsutil.GetS3(sess)
	if err != nil {
		log.Fatalf("AWS GetS3 failed: %v", err)
	}
	return fileaccess.MakeS3Access(svc)
}
