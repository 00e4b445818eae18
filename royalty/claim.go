package royalty

import (
	"context"
	"fmt"
	"strings"

	"github.com/bitfsorg/royalties-go/gateway"
	"github.com/bitfsorg/royalties-go/metrics"
	"github.com/bitfsorg/royalties-go/record"
)

// Claim marks the record with the given id as claimed.
//
// Ownership is not enforced: any connected account may claim any record,
// and claiming an already claimed record rewrites it. Both cases are
// logged as warnings.
func (s *Service) Claim(ctx context.Context, id string) (*Result, error) {
	if s.cfg.Session.Account() == "" {
		return nil, ErrWalletNotConnected
	}

	ticket := s.cfg.Lifecycle.Begin(metrics.OpClaim, MsgClaiming)
	start := s.cfg.Clock.Now()

	res, err := s.claim(ctx, id)
	s.observe(metrics.OpClaim, start, err)
	if err != nil {
		msg := MsgClaimFailed + describe(err)
		if gateway.IsUserRejected(err) {
			msg = MsgRejected
		}
		s.log.Error("royalty: claim failed", "id", id, "error", err)
		s.cfg.Lifecycle.Fail(ticket, msg)
		return nil, err
	}

	s.cfg.Lifecycle.Succeed(ticket, MsgClaimed)
	s.log.Info("royalty: royalty claimed", "id", id, "txid", res.TxID)
	s.reload(ctx)
	return res, nil
}

func (s *Service) claim(ctx context.Context, id string) (*Result, error) {
	gw, account, err := s.signerGateway()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRecordNotFound)
	}

	blob, err := gw.GetData(ctx, record.Key(id))
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	if current, err := record.Decode(id, blob); err == nil {
		if !strings.EqualFold(current.Contributor, account) {
			s.log.Warn("royalty: claiming a record contributed by another account", "id", id, "contributor", current.Contributor, "account", account)
		}
		if current.Status == record.StatusClaimed {
			s.log.Warn("royalty: record already claimed, rewriting", "id", id)
		}
	}

	updated, err := record.MarkClaimed(blob)
	if err != nil {
		return nil, err
	}
	tx, err := gw.SetData(ctx, record.Key(id), updated)
	if err != nil {
		return nil, err
	}

	return &Result{
		TxID:     tx.Hash,
		RecordID: id,
		Message:  MsgClaimed,
	}, nil
}
