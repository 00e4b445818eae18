package royalty

import (
	"context"
	"fmt"

	"github.com/bitfsorg/royalties-go/gateway"
	"github.com/bitfsorg/royalties-go/metrics"
	"github.com/bitfsorg/royalties-go/record"
)

// Contribute seals data, writes it as a new pending record and appends its
// id to the key index.
//
// The two writes are not atomic. If the index write fails after the record
// write succeeded, the record stays on chain but unlisted; Reconcile finds
// it. Concurrent contributions may overwrite each other's index append.
func (s *Service) Contribute(ctx context.Context, data string) (*Result, error) {
	if s.cfg.Session.Account() == "" {
		return nil, ErrWalletNotConnected
	}
	if data == "" {
		return nil, ErrEmptyContribution
	}

	ticket := s.cfg.Lifecycle.Begin(metrics.OpContribute, MsgEncrypting)
	start := s.cfg.Clock.Now()

	res, err := s.contribute(ctx, data)
	s.observe(metrics.OpContribute, start, err)
	if err != nil {
		msg := MsgSubmitFailed + describe(err)
		if gateway.IsUserRejected(err) {
			msg = MsgRejected
		}
		s.log.Error("royalty: contribution failed", "error", err)
		s.cfg.Lifecycle.Fail(ticket, msg)
		return nil, err
	}

	s.cfg.Lifecycle.Succeed(ticket, MsgContributed)
	s.log.Info("royalty: contribution submitted", "id", res.RecordID, "txid", res.TxID)
	s.reload(ctx)
	return res, nil
}

func (s *Service) contribute(ctx context.Context, data string) (*Result, error) {
	gw, account, err := s.signerGateway()
	if err != nil {
		return nil, err
	}

	sealed, err := s.cfg.Cipher.Seal([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("seal contribution: %w", err)
	}

	now := s.cfg.Clock.Now()
	id := record.NewID(now)
	blob, err := record.Encode(record.New(id, sealed, account, now.Unix()))
	if err != nil {
		return nil, err
	}

	if _, err := gw.SetData(ctx, record.Key(id), blob); err != nil {
		return nil, err
	}

	ids, err := s.readIndex(ctx, gw)
	if err != nil {
		s.log.Warn("royalty: record written but not indexed", "id", id, "error", err)
		return nil, err
	}
	ids = append(ids, id)
	indexBlob, err := record.EncodeIndex(ids)
	if err != nil {
		return nil, err
	}

	tx, err := gw.SetData(ctx, record.IndexKey, indexBlob)
	if err != nil {
		s.log.Warn("royalty: record written but not indexed", "id", id, "error", err)
		return nil, err
	}

	return &Result{
		TxID:     tx.Hash,
		RecordID: id,
		Message:  MsgContributed,
	}, nil
}

// readIndex fetches the key index. A fetch failure is returned; a
// malformed index is logged and treated as empty.
func (s *Service) readIndex(ctx context.Context, r gateway.Reader) ([]string, error) {
	blob, err := r.GetData(ctx, record.IndexKey)
	if err != nil {
		return nil, err
	}
	ids, err := record.DecodeIndex(blob)
	if err != nil {
		s.log.Error("royalty: error parsing keys, starting a new index", "error", err)
		return nil, nil
	}
	return ids, nil
}
