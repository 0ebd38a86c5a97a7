// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package registry

import (
	"context"

	"go.uber.org/zap"

	"filebank.io/filebank/bank"
	"filebank.io/filebank/bank/events"
	"filebank.io/filebank/internal/checked"
)

// AuthorizeUser registers user for gateway-delegated operations,
// reserving collateral on the user's balance. Repeated authorization
// adds to the existing collateral.
func (service *Service) AuthorizeUser(ctx context.Context, operator, user bank.Account, collateral uint64, random uint32) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	if err := service.pay.Reserve(ctx, user, collateral); err != nil {
		return err
	}

	info, _, err := service.getUserInfo(ctx, user)
	if err != nil {
		return err
	}
	total, ok := checked.Add64(info.Collateral, collateral)
	if !ok {
		return bank.ErrOverflow.New("collateral")
	}
	info.Collateral = total
	if err := service.putUserInfo(ctx, user, info); err != nil {
		return err
	}

	service.log.Info("user authorized",
		zap.String("operator", string(operator)),
		zap.String("user", string(user)),
		zap.Uint64("collateral", collateral))
	service.events.Publish(ctx, events.UserAuthorized{Account: user, Collateral: collateral, Random: random})
	return nil
}

// UploadFor performs an upload on behalf of a registered user. The
// gateway performing the work is paid the configured deposit out of the
// user's reserved collateral.
func (service *Service) UploadFor(ctx context.Context, gateway, user bank.Account, meta Metadata) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	if err := service.requireUser(ctx, user); err != nil {
		return err
	}
	if err := service.upload(ctx, user, meta); err != nil {
		return err
	}
	if err := service.payGateway(ctx, gateway, user); err != nil {
		return err
	}
	service.events.Publish(ctx, events.FileUploaded{Account: user, FileID: meta.FileID})
	return nil
}

// DeleteFor performs a delete on behalf of a registered user. The
// gateway performing the work is paid the configured deposit out of the
// user's reserved collateral.
func (service *Service) DeleteFor(ctx context.Context, gateway, user bank.Account, fileid bank.FileID) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.mu.Lock()
	defer service.mu.Unlock()

	if err := service.requireUser(ctx, user); err != nil {
		return err
	}
	if err := service.delete(ctx, user, fileid); err != nil {
		return err
	}
	if err := service.payGateway(ctx, gateway, user); err != nil {
		return err
	}
	service.events.Publish(ctx, events.FileDeleted{Account: user, FileID: fileid})
	return nil
}

func (service *Service) requireUser(ctx context.Context, user bank.Account) error {
	_, found, err := service.getUserInfo(ctx, user)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotUser.New("account %q", user)
	}
	return nil
}

func (service *Service) payGateway(ctx context.Context, gateway, user bank.Account) error {
	deposit := service.config.GatewayDeposit
	if err := service.pay.Unreserve(ctx, user, deposit); err != nil {
		return err
	}
	if err := service.pay.Transfer(ctx, user, gateway, deposit); err != nil {
		return err
	}

	info, _, err := service.getUserInfo(ctx, user)
	if err != nil {
		return err
	}
	if deposit > info.Collateral {
		deposit = info.Collateral
	}
	info.Collateral -= deposit
	return service.putUserInfo(ctx, user, info)
}
