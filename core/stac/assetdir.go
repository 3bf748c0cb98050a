package stac

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/redglacier/core/core/fileaccess"
)

// AssetDirectory - the key to URL asset directory the pipeline talks
// to. It only resolves asset hrefs and moves files between the object
// store and a worker's local directory; it never interprets the catalog
// schema beyond item id and asset key.
type AssetDirectory struct {
	FS      fileaccess.FileAccess
	Bucket  string
	Catalog *Catalog
}

// Resolve - bucket-relative href of an asset attached to an item
func (d *AssetDirectory) Resolve(itemID string, assetKey string) (string, error) {
	item, ok := d.Catalog.Item(itemID)
	if !ok {
		return "", fmt.Errorf("item %v not found in catalog %v", itemID, d.Catalog.ID)
	}
	asset, ok := item.Assets[assetKey]
	if !ok {
		return "", fmt.Errorf("item %v has no asset %v", itemID, assetKey)
	}
	return asset.Href, nil
}

// Fetch - copies a remote asset into localDir, returning the local path
func (d *AssetDirectory) Fetch(href string, localDir string) (string, error) {
	data, err := d.FS.ReadObject(d.Bucket, href)
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch %v", href)
	}

	localPath := filepath.Join(localDir, fileaccess.MakeValidObjectName(path.Base(href)))
	err = os.WriteFile(localPath, data, 0666)
	if err != nil {
		return "", errors.Wrapf(err, "failed to stage %v", href)
	}
	return localPath, nil
}

// Put - uploads a local file to a bucket-relative remote path
func (d *AssetDirectory) Put(localPath string, remotePath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read %v for upload", localPath)
	}
	return errors.Wrapf(d.FS.WriteObject(d.Bucket, remotePath, data), "failed to upload %v", remotePath)
}

// ResolveFrom - href of an asset on an already loaded item, for items
// reached through cross-item links rather than catalog membership
func (d *AssetDirectory) ResolveFrom(item *Item, assetKey string) (string, error) {
	asset, ok := item.Assets[assetKey]
	if !ok {
		return "", fmt.Errorf("item %v has no asset %v", item.ID, assetKey)
	}
	return asset.Href, nil
}
