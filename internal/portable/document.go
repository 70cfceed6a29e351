// Package portable defines the version-3 wire format exchanged between
// export and import: a store-independent JSON tree in which relations are
// identifier values, components are inlined, and media is described by URL
// and hash.
package portable

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the only wire-format version this engine reads and writes.
const Version = 3

// DefaultLocale keys non-localized entries in a LocaleMap.
const DefaultLocale = "default"

// Document is the top-level wire shape: {version: 3, data: {contentType: [entries]}}.
type Document struct {
	Version int                `json:"version"`
	Data    map[string][]Entry `json:"data"`
}

// Entry holds the draft and published variants of one logical entity.
// A draft locale appears only when it differs from the published one.
type Entry struct {
	Draft     LocaleMap `json:"draft,omitempty"`
	Published LocaleMap `json:"published,omitempty"`
}

// LocaleMap maps a locale (or "default") to a flattened plain object.
type LocaleMap map[string]map[string]any

// NewDocument returns an empty version-3 document.
func NewDocument() *Document {
	return &Document{Version: Version, Data: map[string][]Entry{}}
}

// Parse decodes raw bytes and rejects anything that is not a version-3
// document. The version check happens before any store access on import.
func Parse(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("malformed portable document: %w", err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("unsupported portable document version %d (want %d)", doc.Version, Version)
	}
	if doc.Data == nil {
		doc.Data = map[string][]Entry{}
	}
	return &doc, nil
}

// Serialize encodes the document as tab-indented JSON, the exact shape
// consumers of export output agree on.
func Serialize(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "\t")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("serialize portable document: %w", err)
	}
	return buf.Bytes(), nil
}

// Versions returns the status→LocaleMap pairs present on an entry,
// published first so dependencies created from published data win.
func (e Entry) Versions() []VersionedLocaleMap {
	var out []VersionedLocaleMap
	if len(e.Published) > 0 {
		out = append(out, VersionedLocaleMap{Status: "published", Locales: e.Published})
	}
	if len(e.Draft) > 0 {
		out = append(out, VersionedLocaleMap{Status: "draft", Locales: e.Draft})
	}
	return out
}

// VersionedLocaleMap pairs a status with its per-locale objects.
type VersionedLocaleMap struct {
	Status  string
	Locales LocaleMap
}
