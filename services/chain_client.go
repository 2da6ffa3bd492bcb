package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"algofomo-backend/utils"
)

// ChainClient is the port to the payment chain. VerifyTransaction gates bet
// acceptance; SubmitPayout disburses winnings in microAlgos. Both may be slow
// and may fail; settlement treats any error as retry-later.
type ChainClient interface {
	VerifyTransaction(ctx context.Context, txID, sender, receiver string, amount float64) (bool, error)
	SubmitPayout(ctx context.Context, receiver string, microAlgos int64, note string) (string, error)
}

// MockChainClient accepts every well-formed transaction and fabricates payout
// transaction IDs. Used when CHAIN_MODE=mock (local dev, staging demos).
type MockChainClient struct{}

func NewMockChainClient() *MockChainClient { return &MockChainClient{} }

func (m *MockChainClient) VerifyTransaction(ctx context.Context, txID, sender, receiver string, amount float64) (bool, error) {
	if txID == "" || sender == "" || receiver == "" || amount <= 0 {
		log.Printf("[MockChain] rejecting verification with missing parameters (tx=%q)", txID)
		return false, nil
	}
	log.Printf("[MockChain] verified tx %s: %s -> %s amount %.6f", txID, sender, receiver, amount)
	return true, nil
}

func (m *MockChainClient) SubmitPayout(ctx context.Context, receiver string, microAlgos int64, note string) (string, error) {
	txID := "MOCK_TX_" + time.Now().UTC().Format("20060102150405.000000")
	log.Printf("[MockChain] payout %d microAlgos -> %s (%s), tx %s", microAlgos, receiver, note, txID)
	return txID, nil
}

// PayoutServiceClient talks to the external signer service that holds the hot
// wallet. The service owns transaction idempotency; we only relay success or
// failure.
type PayoutServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewPayoutServiceClient(baseURL, token string) *PayoutServiceClient {
	return &PayoutServiceClient{
		BaseURL: baseURL,
		Token:   token,
		Client:  utils.HTTPClient,
	}
}

type verifyTransactionRequest struct {
	TxID           string  `json:"tx_id"`
	ExpectedSender string  `json:"expected_sender"`
	ExpectedTo     string  `json:"expected_receiver"`
	ExpectedAmount float64 `json:"expected_amount"`
}

type verifyTransactionResponse struct {
	Valid bool `json:"valid"`
}

func (c *PayoutServiceClient) VerifyTransaction(ctx context.Context, txID, sender, receiver string, amount float64) (bool, error) {
	var out verifyTransactionResponse
	err := c.post(ctx, "/v1/transactions/verify", verifyTransactionRequest{
		TxID:           txID,
		ExpectedSender: sender,
		ExpectedTo:     receiver,
		ExpectedAmount: amount,
	}, &out)
	if err != nil {
		return false, err
	}
	return out.Valid, nil
}

type submitPayoutRequest struct {
	Receiver        string `json:"receiver_address"`
	AmountMicroAlgo int64  `json:"amount_microalgos"`
	Note            string `json:"note,omitempty"`
}

type submitPayoutResponse struct {
	TxID string `json:"tx_id"`
}

func (c *PayoutServiceClient) SubmitPayout(ctx context.Context, receiver string, microAlgos int64, note string) (string, error) {
	var out submitPayoutResponse
	err := c.post(ctx, "/v1/payouts", submitPayoutRequest{
		Receiver:        receiver,
		AmountMicroAlgo: microAlgos,
		Note:            note,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.TxID == "" {
		return "", fmt.Errorf("payout service returned empty tx_id for %s", receiver)
	}
	return out.TxID, nil
}

func (c *PayoutServiceClient) post(ctx context.Context, path string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("payout service call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		log.Printf("PayoutService %s returned %d: %s", path, resp.StatusCode, string(respBody))
		return fmt.Errorf("payout service %s returned status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode payout service response: %w", err)
	}
	return nil
}
