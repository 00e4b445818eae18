package royalty

import (
	"context"
	"fmt"

	"github.com/bitfsorg/royalties-go/gateway"
	"github.com/bitfsorg/royalties-go/metrics"
	"github.com/bitfsorg/royalties-go/record"
)

// ReconcileReport compares stored record keys with the key index.
type ReconcileReport struct {
	Indexed  int      `json:"indexed"`
	Stored   int      `json:"stored"`
	Orphans  []string `json:"orphans"`  // stored but not indexed
	Dangling []string `json:"dangling"` // indexed but not stored
	Repaired bool     `json:"repaired"`
	TxID     string   `json:"txid,omitempty"`
}

// Reconcile finds records left out of the key index, typically by a
// contribution whose index write failed. With repair set and a connected
// wallet, the orphans are appended to the index. Only backends that can
// list keys (gateway.Lister) support it.
func (s *Service) Reconcile(ctx context.Context, repair bool) (*ReconcileReport, error) {
	reader := s.cfg.Connector.ReadOnly()
	lister, ok := reader.(gateway.Lister)
	if !ok {
		return nil, ErrListingUnsupported
	}

	keys, err := lister.Keys(ctx, record.KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("royalty: list keys: %w", err)
	}
	ids, err := s.readIndex(ctx, reader)
	if err != nil {
		return nil, fmt.Errorf("royalty: read index: %w", err)
	}

	report := diffIndex(ids, keys)
	s.log.Info("royalty: reconcile", "indexed", report.Indexed, "stored", report.Stored, "orphans", len(report.Orphans), "dangling", len(report.Dangling))
	if !repair || len(report.Orphans) == 0 {
		return report, nil
	}

	if s.cfg.Session.Account() == "" {
		return report, ErrWalletNotConnected
	}

	ticket := s.cfg.Lifecycle.Begin(metrics.OpReconcile, MsgRepairing)
	start := s.cfg.Clock.Now()

	txid, err := s.repairIndex(ctx)
	s.observe(metrics.OpReconcile, start, err)
	if err != nil {
		msg := MsgRepairFailed + describe(err)
		if gateway.IsUserRejected(err) {
			msg = MsgRejected
		}
		s.cfg.Lifecycle.Fail(ticket, msg)
		return report, err
	}

	report.Repaired = true
	report.TxID = txid
	s.cfg.Lifecycle.Succeed(ticket, MsgRepaired)
	s.reload(ctx)
	return report, nil
}

// repairIndex re-reads both sides through the signer-bound gateway so the
// write is based on the latest index.
func (s *Service) repairIndex(ctx context.Context) (string, error) {
	gw, _, err := s.signerGateway()
	if err != nil {
		return "", err
	}
	lister, ok := gw.(gateway.Lister)
	if !ok {
		return "", ErrListingUnsupported
	}
	keys, err := lister.Keys(ctx, record.KeyPrefix)
	if err != nil {
		return "", err
	}
	ids, err := s.readIndex(ctx, gw)
	if err != nil {
		return "", err
	}

	report := diffIndex(ids, keys)
	if len(report.Orphans) == 0 {
		return "", nil
	}
	blob, err := record.EncodeIndex(append(ids, report.Orphans...))
	if err != nil {
		return "", err
	}
	tx, err := gw.SetData(ctx, record.IndexKey, blob)
	if err != nil {
		return "", err
	}
	s.log.Info("royalty: key index repaired", "added", len(report.Orphans), "txid", tx.Hash)
	return tx.Hash, nil
}

func diffIndex(ids, keys []string) *ReconcileReport {
	indexed := make(map[string]bool, len(ids))
	for _, id := range ids {
		indexed[id] = true
	}
	stored := make(map[string]bool, len(keys))
	report := &ReconcileReport{Indexed: len(ids), Orphans: []string{}, Dangling: []string{}}
	for _, k := range keys {
		id, ok := record.IDFromKey(k)
		if !ok {
			continue
		}
		stored[id] = true
		report.Stored++
		if !indexed[id] {
			report.Orphans = append(report.Orphans, id)
		}
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !stored[id] && !seen[id] {
			report.Dangling = append(report.Dangling, id)
		}
		seen[id] = true
	}
	return report
}
