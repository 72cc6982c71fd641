// Package ingest builds indexable documents from canonical listings and
// runs them through the batch indexing pipeline: validate, build, embed,
// and store.
package ingest

import (
	"strings"

	"github.com/google/uuid"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
)

// DocName derives the document name from a source file name: the trailing
// extension is stripped and underscores become spaces.
func DocName(sourceName string) string {
	name := sourceName
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		name = name[:idx]
	}
	return strings.ReplaceAll(name, "_", " ")
}

// BuildDocuments maps listings into documents. Metadata is copied verbatim
// with defensive defaults, and each document receives a freshly generated
// random id. Ids are unique within the batch by entropy alone; uniqueness
// is never checked against previously indexed batches.
func BuildDocuments(listings []domain.Listing, sourceName string) []domain.Document {
	docName := DocName(sourceName)
	docs := make([]domain.Document, len(listings))
	for i, l := range listings {
		docs[i] = domain.Document{
			ID:       uuid.NewString(),
			Content:  l.Body,
			Metadata: domain.MetadataFrom(l, docName),
		}
	}
	return docs
}
