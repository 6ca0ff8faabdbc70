// Package cmd contains the SafeBid binaries.
//
//   - auctiond: the auction service
//   - bidctl: operator and bidder CLI
package cmd
