// Package services implements the core application logic for Quill.
//
// Services implement the driving ports and depend only on domain types
// and driven port interfaces. The two services are:
//
//   - SyncCoordinator: reconciles the vector index with the source graph
//   - SearchRanker: embeds queries, retrieves neighbours and ranks results
package services
