// Package models defines domain entities and sync-core types for the stepsync library.
//
// The package contains two categories of types:
//
// 1. Domain DTOs: payloads the sync layer moves but does not interpret
//   - [Figure] : A dance figure referenced by favorites
//   - [Favorite] : A user's saved figure with mastery and last-opened tracking
//   - [Choreography] : An ordered sequence of named movements
//   - [Movement] : A single step within a choreography
//
// 2. Sync-core types: the records the cache, queue and monitor operate on
//   - [SyncOperation] : A pending remote write with retry bookkeeping
//   - [OperationKind] : The closed enumeration of replayable operations
//   - [NetworkQualitySnapshot] : The monitor's current connectivity classification
//
// The sync core only relies on ID/UserID correlation; domain document
// shapes are opaque to it.
package models
