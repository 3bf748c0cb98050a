package stac

import (
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/redglacier/core/core/fileaccess"
)

const catalogFileName = "catalog.json"

// Catalog - a loaded catalog (or sub-catalog) with its items. All IO
// goes through the fileaccess interface so the same code serves a
// bucket-backed catalog and a local test fixture.
type Catalog struct {
	ID          string
	Description string

	fs       fileaccess.FileAccess
	bucket   string
	rootDir  string // bucket-relative directory holding catalog.json
	links    []Link
	items    []*Item
	children []*Catalog
}

// LoadCatalog - reads the catalog document and every linked item and
// child catalog. rootPath may point at the directory or at catalog.json
// itself.
func LoadCatalog(fs fileaccess.FileAccess, bucket string, rootPath string) (*Catalog, error) {
	rootDir := rootPath
	if strings.HasSuffix(rootPath, catalogFileName) {
		rootDir = path.Dir(rootPath)
	}

	doc := catalogDoc{}
	docPath := path.Join(rootDir, catalogFileName)
	err := fs.ReadJSON(bucket, docPath, &doc, false)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read catalog %v", docPath)
	}

	result := &Catalog{
		ID:          doc.ID,
		Description: doc.Description,
		fs:          fs,
		bucket:      bucket,
		rootDir:     rootDir,
		links:       doc.Links,
	}

	for _, link := range doc.Links {
		href := path.Join(rootDir, link.Href)
		switch link.Rel {
		case "item":
			item, err := loadItem(fs, bucket, href)
			if err != nil {
				return nil, err
			}
			result.items = append(result.items, item)
		case "child":
			child, err := LoadCatalog(fs, bucket, href)
			if err != nil {
				return nil, err
			}
			result.children = append(result.children, child)
		}
	}

	return result, nil
}

func loadItem(fs fileaccess.FileAccess, bucket string, itemPath string) (*Item, error) {
	doc := itemDoc{}
	err := fs.ReadJSON(bucket, itemPath, &doc, false)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read item %v", itemPath)
	}
	return docToItem(doc, itemPath)
}

// Items - all items of this catalog and its children
func (c *Catalog) Items() []*Item {
	result := append([]*Item{}, c.items...)
	for _, child := range c.children {
		result = append(result, child.Items()...)
	}
	return result
}

// Item - recursive lookup by id
func (c *Catalog) Item(id string) (*Item, bool) {
	for _, item := range c.items {
		if item.ID == id {
			return item, true
		}
	}
	for _, child := range c.children {
		if item, ok := child.Item(id); ok {
			return item, true
		}
	}
	return nil, false
}

// Child - direct sub-catalog by id
func (c *Catalog) Child(id string) (*Catalog, bool) {
	for _, child := range c.children {
		if child.ID == id {
			return child, true
		}
	}
	return nil, false
}

// Bucket - the object store bucket this catalog lives in
func (c *Catalog) Bucket() string {
	return c.bucket
}

// RootDir - bucket-relative directory of this catalog's document
func (c *Catalog) RootDir() string {
	return c.rootDir
}

// AddItem - registers a new item document under the catalog root and
// links it from the catalog. Used by ingest tooling and tests.
func (c *Catalog) AddItem(item *Item) {
	item.selfPath = path.Join(c.rootDir, item.ID, item.ID+".json")
	c.items = append(c.items, item)
	c.links = append(c.links, Link{Rel: "item", Href: path.Join(item.ID, item.ID+".json")})
}

// SaveItem - persists one item document. This is the unit of durable
// progress for the batch orchestrator: one scene, one write.
func (c *Catalog) SaveItem(item *Item) error {
	if len(item.selfPath) <= 0 {
		return fmt.Errorf("item %v has no storage path", item.ID)
	}
	return c.fs.WriteJSON(c.bucket, item.selfPath, itemToDoc(item))
}

// Save - persists the catalog document itself (links only; items are
// saved individually)
func (c *Catalog) Save() error {
	doc := catalogDoc{ID: c.ID, Description: c.Description, Links: c.links}
	err := c.fs.WriteJSON(c.bucket, path.Join(c.rootDir, catalogFileName), doc)
	if err != nil {
		return err
	}
	for _, child := range c.children {
		if err = child.Save(); err != nil {
			return err
		}
	}
	return nil
}

// LoadLinkedItem - resolves a cross-item link (e.g. "item-L1C") and
// loads the item it points at. The href is bucket-relative.
func (c *Catalog) LoadLinkedItem(item *Item, rel string) (*Item, error) {
	href, err := item.LinkHref(rel)
	if err != nil {
		return nil, err
	}
	return loadItem(c.fs, c.bucket, href)
}
