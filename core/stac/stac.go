// Minimal STAC-shaped catalog model. The pipeline only ever treats the
// catalog as a key/value record: item id, acquisition datetime, links
// between items, and an assets map of role name to href. Anything else
// a real catalog carries is passed through untouched by storing the
// items as documents and rewriting only what we changed.
package stac

import (
	"fmt"
	"time"
)

// Asset - a role name to href mapping attached to an item
type Asset struct {
	Href       string            `json:"href"`
	Title      string            `json:"title,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Link - a typed reference to another catalog object. Hrefs of item and
// child links are relative to the directory of the document carrying
// them; cross-item links (item-L1C, item-L2A) are bucket-relative.
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// Item - one scene of the catalog
type Item struct {
	ID       string
	Datetime time.Time
	Links    []Link
	Assets   map[string]Asset

	// bucket-relative path of the item document, kept so the item can
	// be saved back where it came from
	selfPath string
}

// MissingLinkError - a required cross-item link (e.g. the source scene
// or its L2A companion) is absent. Fatal for the scene.
type MissingLinkError struct {
	ItemID string
	Rel    string
}

func (e MissingLinkError) Error() string {
	return fmt.Sprintf("item %v has no link with rel=%v", e.ItemID, e.Rel)
}

// LinkHref - href of the first link with the given rel
func (i *Item) LinkHref(rel string) (string, error) {
	for _, link := range i.Links {
		if link.Rel == rel {
			return link.Href, nil
		}
	}
	return "", MissingLinkError{ItemID: i.ID, Rel: rel}
}

// HasAssets - true when the item already carries every one of the given
// asset keys. Used for the idempotent skip of completed scenes.
func (i *Item) HasAssets(keys []string) bool {
	for _, key := range keys {
		if _, ok := i.Assets[key]; !ok {
			return false
		}
	}
	return true
}

// SelfPath - bucket-relative path of the item document
func (i *Item) SelfPath() string {
	return i.selfPath
}

// JSON document forms. Items keep the STAC feature layout so catalogs
// written by other tooling stay readable.

type itemDoc struct {
	Type       string           `json:"type"`
	ID         string           `json:"id"`
	Properties itemProperties   `json:"properties"`
	Links      []Link           `json:"links"`
	Assets     map[string]Asset `json:"assets"`
}

type itemProperties struct {
	Datetime string `json:"datetime"`
}

type catalogDoc struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Links       []Link `json:"links"`
}

func itemToDoc(item *Item) itemDoc {
	assets := item.Assets
	if assets == nil {
		assets = map[string]Asset{}
	}
	links := item.Links
	if links == nil {
		links = []Link{}
	}
	return itemDoc{
		Type:       "Feature",
		ID:         item.ID,
		Properties: itemProperties{Datetime: item.Datetime.UTC().Format(time.RFC3339)},
		Links:      links,
		Assets:     assets,
	}
}

func docToItem(doc itemDoc, selfPath string) (*Item, error) {
	datetime, err := time.Parse(time.RFC3339, doc.Properties.Datetime)
	if err != nil {
		return nil, fmt.Errorf("item %v has bad datetime %v: %v", doc.ID, doc.Properties.Datetime, err)
	}

	assets := doc.Assets
	if assets == nil {
		assets = map[string]Asset{}
	}

	return &Item{
		ID:       doc.ID,
		Datetime: datetime,
		Links:    doc.Links,
		Assets:   assets,
		selfPath: selfPath,
	}, nil
}
