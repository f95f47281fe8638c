// Package rag defines the collaborator contracts of the retrieval pipeline:
// embedding, filtered vector search and grounded generation.
//
// Implementations live under repositories (vector indexes) and services
// (embedding and generation clients). Every index must apply the access
// predicate before ranking; candidates that fail it are never returned.
package rag
