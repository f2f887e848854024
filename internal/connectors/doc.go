// Package connectors builds document sources. Each subpackage knows how to
// fetch documents from one source type (github, filesystem); this package
// turns a user supplied target into the right one.
package connectors
