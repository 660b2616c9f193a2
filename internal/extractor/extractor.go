// Package extractor turns raw transaction payloads into net token balance
// change events.
package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"token-sentinel/internal/domain"
)

// ErrMalformedPayload is returned when a payload cannot be decoded or lacks
// required fields. Callers log and skip the payload.
var ErrMalformedPayload = errors.New("malformed transaction payload")

// Extraction is the parsed result of one transaction payload.
type Extraction struct {
	Signature string
	BlockTime int64 // ms
	Events    []domain.StreamEvent
}

type rawPayload struct {
	Signature   string          `json:"signature"`
	BlockTime   *int64          `json:"blockTime"`
	Meta        *rawMeta        `json:"meta"`
	Transaction json.RawMessage `json:"transaction"`
}

type rawTransaction struct {
	Signatures []string `json:"signatures"`
	BlockTime  *int64   `json:"blockTime"`
	Meta       *rawMeta `json:"meta"`
}

type rawMeta struct {
	Err               json.RawMessage   `json:"err"`
	PreTokenBalances  []rawTokenBalance `json:"preTokenBalances"`
	PostTokenBalances []rawTokenBalance `json:"postTokenBalances"`
}

type rawTokenBalance struct {
	AccountIndex  int    `json:"accountIndex"`
	Mint          string `json:"mint"`
	Owner         string `json:"owner"`
	UITokenAmount struct {
		Amount string `json:"amount"`
	} `json:"uiTokenAmount"`
}

// Extract parses one transaction payload and returns the aggregated non-zero
// balance deltas per (owner, mint). Failed transactions yield an Extraction
// with no events. Balance entries without an owner are skipped.
func Extract(data []byte) (*Extraction, error) {
	var p rawPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	signature := p.Signature
	blockTime := p.BlockTime
	meta := p.Meta

	// Some providers nest signatures and meta under "transaction".
	if len(p.Transaction) > 0 {
		var tx rawTransaction
		if err := json.Unmarshal(p.Transaction, &tx); err == nil {
			if signature == "" && len(tx.Signatures) > 0 {
				signature = tx.Signatures[0]
			}
			if blockTime == nil {
				blockTime = tx.BlockTime
			}
			if meta == nil {
				meta = tx.Meta
			}
		}
	}

	if signature == "" {
		return nil, fmt.Errorf("%w: missing signature", ErrMalformedPayload)
	}
	if blockTime == nil {
		return nil, fmt.Errorf("%w: missing blockTime", ErrMalformedPayload)
	}

	out := &Extraction{
		Signature: signature,
		BlockTime: *blockTime * 1000,
	}

	if meta == nil {
		return nil, fmt.Errorf("%w: missing meta", ErrMalformedPayload)
	}

	// Failed transactions carry a non-null meta.err and produce no events.
	if isTransactionFailed(meta.Err) {
		return out, nil
	}

	type balanceKey struct {
		owner string
		mint  string
	}

	pre := make(map[balanceKey]uint64)
	post := make(map[balanceKey]uint64)

	accumulate := func(dst map[balanceKey]uint64, entries []rawTokenBalance) {
		for _, e := range entries {
			if e.Owner == "" || e.Mint == "" {
				continue
			}
			amount, err := strconv.ParseUint(e.UITokenAmount.Amount, 10, 64)
			if err != nil {
				continue
			}
			dst[balanceKey{e.Owner, e.Mint}] += amount
		}
	}
	accumulate(pre, meta.PreTokenBalances)
	accumulate(post, meta.PostTokenBalances)

	keys := make(map[balanceKey]struct{}, len(pre)+len(post))
	for k := range pre {
		keys[k] = struct{}{}
	}
	for k := range post {
		keys[k] = struct{}{}
	}

	for k := range keys {
		delta := signedDelta(pre[k], post[k])
		if delta == 0 {
			continue
		}
		out.Events = append(out.Events, domain.StreamEvent{
			Signature:  signature,
			Wallet:     k.owner,
			Mint:       k.mint,
			RawDelta:   delta,
			ObservedAt: out.BlockTime,
		})
	}

	return out, nil
}

// isTransactionFailed reports whether meta.err is present and non-null.
func isTransactionFailed(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	return string(raw) != "null"
}

// signedDelta computes post - pre without intermediate overflow.
func signedDelta(pre, post uint64) int64 {
	if post >= pre {
		return int64(post - pre)
	}
	return -int64(pre - post)
}
