/*
Package index implements the bulk loader and index provisioner: the two
components that talk to the Elasticsearch-compatible search index service.
*/
package index

// Document is anything the loader can submit as a bulk upsert.
type Document interface {
	// DocumentID is the value used as the bulk header's "_id" field.
	DocumentID() string
}
