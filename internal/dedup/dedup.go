// Package dedup asks an external duplicate-detection service to flag transactions
// already present in the ledger.
package dedup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cleared-dev/stmtimport/internal/logger"
	"github.com/cleared-dev/stmtimport/internal/model"
)

// Detector annotates a batch with isDuplicate/duplicateNote.
// A nil slice with a nil error means the service returned no transactions array.
type Detector interface {
	Check(ctx context.Context, txns []model.Transaction, kind model.Kind) ([]model.Transaction, error)
}

// Client posts batches to an HTTP duplicate-detection service:
//
//	POST {url} {"transactions":[...],"type":"spending"}  ->  {"transactions":[...]}
type Client struct {
	url        string
	token      string
	httpClient *http.Client
}

// NewClient creates a duplicate-detection client. token, when set, is sent as a bearer credential.
func NewClient(url, token string, timeout time.Duration) *Client {
	return &Client{url: url, token: token, httpClient: &http.Client{Timeout: timeout}}
}

type checkRequest struct {
	Transactions []model.Transaction `json:"transactions"`
	Type         model.Kind          `json:"type"`
}

type checkResponse struct {
	Transactions []json.RawMessage `json:"transactions"`
}

// Check implements Detector.
func (c *Client) Check(ctx context.Context, txns []model.Transaction, kind model.Kind) ([]model.Transaction, error) {
	if txns == nil {
		txns = []model.Transaction{}
	}
	body, err := json.Marshal(checkRequest{Transactions: txns, Type: kind})
	if err != nil {
		return nil, fmt.Errorf("encoding duplicate check: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building duplicate check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling duplicate service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("duplicate service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding duplicate check response: %w", err)
	}
	if out.Transactions == nil {
		return nil, nil
	}

	result := make([]model.Transaction, 0, len(out.Transactions))
	for i, raw := range out.Transactions {
		tx, err := model.UnmarshalTransaction(raw, kind)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		result = append(result, tx)
	}
	return result, nil
}

// Reconciler merges duplicate verdicts into a batch, failing open.
type Reconciler struct {
	detector Detector
}

// NewReconciler creates a Reconciler.
func NewReconciler(d Detector) *Reconciler {
	return &Reconciler{detector: d}
}

// Reconcile submits the whole batch in one request. When the detector fails,
// every transaction comes back marked not-duplicate; when it omits the
// transactions array, the input comes back unchanged.
func (r *Reconciler) Reconcile(ctx context.Context, txns []model.Transaction, kind model.Kind) []model.Transaction {
	log := logger.FromContext(ctx)

	checked, err := r.detector.Check(ctx, txns, kind)
	if err != nil {
		log.Warn().Err(err).Int("transactions", len(txns)).Msg("duplicate check unavailable, treating all as new")
		for i := range txns {
			no := false
			txns[i].IsDuplicate = &no
			txns[i].DuplicateNote = nil
		}
		return txns
	}
	if checked == nil {
		log.Warn().Msg("duplicate service returned no transactions, keeping batch unannotated")
		return txns
	}

	dups := 0
	for _, tx := range checked {
		if tx.Duplicate() {
			dups++
		}
	}
	log.Debug().Int("duplicates", dups).Int("transactions", len(checked)).Msg("duplicate check complete")
	return checked
}

// DeriveSelection sets Selected = !Duplicate on every transaction.
func DeriveSelection(txns []model.Transaction) {
	for i := range txns {
		txns[i].Selected = !txns[i].Duplicate()
	}
}
