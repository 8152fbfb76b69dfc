// Package model defines the content tree assembled by the chef.
//
// The tree mirrors the import format of the downstream content repository:
// a single channel node at the root, topic nodes for subjects and age bands,
// and HTML5 app nodes for individual lessons. Nodes carry the metadata the
// importer needs (title, author, license, language, thumbnail) plus the path
// of the packaged lesson archive.
//
// The package also defines the taxonomy records produced by crawling
// (subjects, age bands, lesson references) that the pipeline turns into
// tree nodes.
package model
