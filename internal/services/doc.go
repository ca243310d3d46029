// Package services contains the remote collaborators of the sync layer:
// the document backend client and the identity service.
//
// The coordinator only sees the [Remote] capability interface; the HTTP
// client, status-code classification, and token plumbing live here. The
// backend is a document-oriented database addressed by (collection,
// document ID) supporting partial-document updates; identity is an
// OAuth2 service issuing a (uid, display name, email) triple.
package services
