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

	"github.com/redglacier/core/api/batch"
	"github.com/redglacier/core/api/config"
	"github.com/redglacier/core/api/preprocess"
	"github.com/redglacier/core/core/awsutil"
	"github.com/redglacier/core/core/fileaccess"
	"github.com/redglacier/core/core/logger"
	"github.com/redglacier/core/core/stac"
	"github.com/redglacier/core/core/utils"
)

func main() {
	fmt.Println("====================================")
	fmt.Println("=  RedGlacier batch preprocessor   =")
	fmt.Println("====================================")

	var argConfigPath = flag.String("config", "", "Path to the json run configuration")
	var argStore = flag.String("store", "s3", "Where the catalog lives: s3, local")

	flag.Parse()

	if len(*argConfigPath) <= 0 {
		log.Fatalln("No config file specified")
	}

	cfg, err := config.NewConfigFromFile(*argConfigPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ilog := &logger.StdOutLogger{}
	if len(cfg.LogLevel) > 0 {
		level, err := logger.GetLogLevel(cfg.LogLevel)
		if err != nil {
			log.Fatalf("%v", err)
		}
		ilog.SetLogLevel(level)
	}

	var fs fileaccess.FileAccess
	if *argStore == "local" {
		fs = &fileaccess.FSAccess{}
	} else {
		sess, err := awsutil.GetSession()
		if err != nil {
			log.Fatalf("AWS GetSession failed: %v", err)
		}
		svc, err := awsutil.GetS3(sess)
		if err != nil {
			log.Fatalf("AWS GetS3 failed: %v", err)
		}
		fs = fileaccess.MakeS3Access(svc)
	}

	catalog, err := stac.LoadCatalog(fs, cfg.CatalogBucket, cfg.CatalogRoot)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	orchestrator := &batch.Orchestrator{
		Cfg: cfg,
		Runner: &preprocess.Pipeline{
			Cfg:    cfg,
			Caps:   preprocess.DefaultCapabilities(cfg),
			Assets: &stac.AssetDirectory{FS: fs, Bucket: cfg.CatalogBucket, Catalog: catalog},
			Log:    ilog,
		},
		Catalog: catalog,
		Log:     ilog,
	}

	summary, err := orchestrator.RunCollection()
	if err != nil {
		log.Fatalf("Batch run failed: %v", err)
	}

	fmt.Printf("Batch run complete: %v done, %v failed, %v skipped\n", summary.Done, summary.Failed, summary.Skipped)
	for _, sceneID := range utils.GetSortedMapKeys(summary.Failures) {
		fmt.Printf("  FAILED %v: %v\n", sceneID, summary.Failures[sceneID])
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
