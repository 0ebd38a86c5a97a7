// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package oracle

import (
	"context"

	"go.uber.org/zap"
)

// LocalSigner signs submissions with a fixed local identity. Submit may
// be nil, in which case submissions are logged and dropped; this keeps a
// single-process deployment working without a consensus backend.
type LocalSigner struct {
	log      *zap.Logger
	identity string
	submit   func(ctx context.Context, price uint64) error
}

// NewLocalSigner creates a signer for identity. An empty identity makes
// AvailableIdentity report false.
func NewLocalSigner(log *zap.Logger, identity string, submit func(ctx context.Context, price uint64) error) *LocalSigner {
	return &LocalSigner{log: log, identity: identity, submit: submit}
}

// AvailableIdentity reports the configured identity.
func (signer *LocalSigner) AvailableIdentity() (string, bool) {
	return signer.identity, signer.identity != ""
}

// SubmitPrice submits the price observation through the configured
// callback.
func (signer *LocalSigner) SubmitPrice(ctx context.Context, price uint64) error {
	if signer.submit == nil {
		signer.log.Debug("price submission dropped, no backend configured",
			zap.String("identity", signer.identity),
			zap.Uint64("price", price))
		return nil
	}
	return signer.submit(ctx, price)
}
