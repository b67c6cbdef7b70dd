package db

import "github.com/latticelabs/lattice/proposer/db/iface"

// ReadOnlyStore exposes the store's read only functions.
type ReadOnlyStore = iface.ReadOnlyStore

// WriteAccessStore exposes the store's writing functions.
type WriteAccessStore = iface.WriteAccessStore

// Store defines the full storage surface of the proposer node. Prefer a
// more restrictive interface in this package where possible.
type Store = iface.Store
