// Package logging provides field extractors for domain objects that more
// than one service logs, so the same event carries the same keys everywhere.
package logging

import (
	"github.com/dustin/go-humanize"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/sirupsen/logrus"
)

// BundleEventFields extracts a standard set of fields from a BundleEvent
// into a logrus.Fields struct which can be passed to log.WithFields.
func BundleEventFields(ev *types.BundleEvent) logrus.Fields {
	executions := 0
	if ev.Bundle != nil {
		executions = len(ev.Bundle.Executions)
	}
	return logrus.Fields{
		"nonce":      ev.Nonce,
		"cid":        ev.CID,
		"executions": executions,
		"gzipSize":   humanize.Bytes(uint64(len(ev.Gzip))),
	}
}
