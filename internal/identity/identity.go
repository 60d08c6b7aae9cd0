// Package identity resolves stable identifiers for the notebooks and cells a
// widget is placed from.
//
// Notebook and cell objects live outside the store. All the store needs is
// a way to read a stable id off them, minting and attaching one the first
// time an object is seen. That contract is Resolver.
package identity

// Metadata keys under which minted ids are attached.
const (
	NotebookIDKey = "dashboard_notebook_id"
	CellIDKey     = "dashboard_cell_id"
)

// Tagged is anything that can carry string metadata, such as a notebook
// document or one of its cells.
type Tagged interface {
	Tag(key string) (string, bool)
	SetTag(key, value string)
}

// Resolver maps live notebook and cell objects to stable ids.
type Resolver interface {
	NotebookID(nb Tagged) string
	CellID(cell Tagged) string
}

// MetadataResolver reads ids from object metadata and mints a new one when
// the object has none. A minted id is written back, so the same object
// resolves to the same id from then on.
type MetadataResolver struct {
	gen Generator
}

// NewMetadataResolver returns a resolver minting ids with gen.
// A nil gen defaults to UUIDv7Generator.
func NewMetadataResolver(gen Generator) *MetadataResolver {
	if gen == nil {
		gen = UUIDv7Generator{}
	}
	return &MetadataResolver{gen: gen}
}

// NotebookID returns the notebook's id, minting one if needed.
func (r *MetadataResolver) NotebookID(nb Tagged) string {
	return r.ensure(nb, NotebookIDKey)
}

// CellID returns the cell's id, minting one if needed.
func (r *MetadataResolver) CellID(cell Tagged) string {
	return r.ensure(cell, CellIDKey)
}

func (r *MetadataResolver) ensure(obj Tagged, key string) string {
	if obj == nil {
		return ""
	}
	if id, ok := obj.Tag(key); ok && id != "" {
		return id
	}
	id := r.gen.Generate()
	obj.SetTag(key, id)
	return id
}

// Metadata is a plain map implementation of Tagged.
type Metadata map[string]string

// Tag implements Tagged.
func (m Metadata) Tag(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// SetTag implements Tagged.
func (m Metadata) SetTag(key, value string) {
	m[key] = value
}
