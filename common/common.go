// Package common holds package-wide constants shared by the SafeBid binaries.
package common

// PackageName identifies this module in logs and metrics.
const PackageName = "github.com/RobertxMiller/SafeBid"

// Version is overridden at build time via -ldflags.
var Version = "dev"
