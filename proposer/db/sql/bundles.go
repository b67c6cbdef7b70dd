package sql

import (
	"context"
	gosql "database/sql"

	"github.com/latticelabs/lattice/proposer/db/iface"
	"github.com/latticelabs/lattice/proposer/types"
	"github.com/pkg/errors"
)

// NextBundleNonce returns max persisted nonce + 1, or 0 for an empty store.
// The proposer is the single writer, so no lock is needed between the read
// and the eventual insert; the nonce uniqueness constraint backstops it.
func (s *Store) NextBundleNonce(ctx context.Context) (uint64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(nonce) + 1, 0) FROM bundles`).Scan(&next)
	return uint64(next), errors.Wrap(err, "could not compute next bundle nonce")
}

// Bundle returns a published bundle by nonce. Published rows are immutable
// so hits are served from an LRU cache.
func (s *Store) Bundle(ctx context.Context, nonce uint64) (*types.StoredBundle, error) {
	if cached, ok := s.bundleCache.Get(nonce); ok {
		return cached.(*types.StoredBundle), nil
	}
	b := &types.StoredBundle{}
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT nonce, body, proposer, signature, cid, created_at FROM bundles WHERE nonce = $1`,
		int64(nonce)).Scan(&n, &b.Body, &b.Proposer, &b.Signature, &b.CID, &b.CreatedAt)
	if err == gosql.ErrNoRows {
		return nil, errors.Wrapf(iface.ErrNotFound, "bundle %d", nonce)
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not read bundle")
	}
	b.Nonce = uint64(n)
	s.bundleCache.Add(nonce, b)
	return b, nil
}

// Bundles returns up to limit bundles newest-first, optionally only those
// with a nonce strictly below before.
func (s *Store) Bundles(ctx context.Context, limit int, before *uint64) ([]*types.StoredBundle, error) {
	var cursor gosql.NullInt64
	if before != nil {
		cursor = gosql.NullInt64{Int64: int64(*before), Valid: true}
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT nonce, body, proposer, signature, cid, created_at FROM bundles
		 WHERE ($2::bigint IS NULL OR nonce < $2) ORDER BY nonce DESC LIMIT $1`,
		limit, cursor)
	if err != nil {
		return nil, errors.Wrap(err, "could not list bundles")
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.WithError(err).Error("Could not close bundle rows")
		}
	}()
	var out []*types.StoredBundle
	for rows.Next() {
		b := &types.StoredBundle{}
		var n int64
		if err := rows.Scan(&n, &b.Body, &b.Proposer, &b.Signature, &b.CID, &b.CreatedAt); err != nil {
			return nil, err
		}
		b.Nonce = uint64(n)
		out = append(out, b)
	}
	return out, rows.Err()
}

// CID returns the content id anchored for a bundle nonce.
func (s *Store) CID(ctx context.Context, nonce uint64) (string, error) {
	var cid string
	err := s.db.QueryRowContext(ctx,
		`SELECT cid FROM cids WHERE nonce = $1`, int64(nonce)).Scan(&cid)
	if err == gosql.ErrNoRows {
		return "", errors.Wrapf(iface.ErrNotFound, "cid for bundle %d", nonce)
	}
	return cid, errors.Wrap(err, "could not read cid")
}
