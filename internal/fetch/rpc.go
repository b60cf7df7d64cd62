package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/sui-wrapped/internal/model"
)

const programmableTransaction = "ProgrammableTransaction"

// RPCClient talks to a Sui fullnode over JSON-RPC 2.0.
type RPCClient struct {
	url    string
	client *retryablehttp.Client
	nextID atomic.Uint64
}

// NewRPCClient creates a JSON-RPC client for the given fullnode endpoint.
func NewRPCClient(url string, retryMax int, timeout time.Duration) *RPCClient {
	return &RPCClient{
		url:    url,
		client: newRetryClient(retryMax, timeout),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC round trip and decodes result into out.
func (c *RPCClient) call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("error encoding %s request: %w", method, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logrus.Debugf("Calling %s on %s", method, c.url)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s failed: status %d, body: %s", method, resp.StatusCode, string(msg))
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("error decoding %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: %w", method, envelope.Error)
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return fmt.Errorf("%s returned no result", method)
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("error decoding %s result: %w", method, err)
	}
	return nil
}

type txBlock struct {
	Digest      string `json:"digest"`
	TimestampMs string `json:"timestampMs"`
	Checkpoint  string `json:"checkpoint"`
	Transaction *struct {
		Data struct {
			Transaction struct {
				Kind         string `json:"kind"`
				Transactions []struct {
					MoveCall *struct {
						Package  string `json:"package"`
						Module   string `json:"module"`
						Function string `json:"function"`
					} `json:"MoveCall"`
				} `json:"transactions"`
			} `json:"transaction"`
		} `json:"data"`
	} `json:"transaction"`
	Effects *struct {
		Status struct {
			Status string `json:"status"`
		} `json:"status"`
		GasUsed struct {
			ComputationCost string `json:"computationCost"`
			StorageCost     string `json:"storageCost"`
			StorageRebate   string `json:"storageRebate"`
		} `json:"gasUsed"`
	} `json:"effects"`
}

type txBlockPage struct {
	Data        []txBlock `json:"data"`
	NextCursor  *string   `json:"nextCursor"`
	HasNextPage bool      `json:"hasNextPage"`
}

// QueryTransactions calls suix_queryTransactionBlocks filtered by sender.
func (c *RPCClient) QueryTransactions(ctx context.Context, q TransactionQuery) (TransactionPage, error) {
	query := map[string]interface{}{
		"filter": map[string]string{"FromAddress": q.Address},
		"options": map[string]bool{
			"showInput":   q.WithDetails,
			"showEffects": q.WithDetails,
		},
	}

	var page txBlockPage
	err := c.call(ctx, "suix_queryTransactionBlocks", &page,
		query, optionalCursor(q.Cursor), q.Limit, q.Order == OrderDescending)
	if err != nil {
		return TransactionPage{}, err
	}

	out := TransactionPage{
		Data:        make([]model.TransactionRecord, 0, len(page.Data)),
		HasNextPage: page.HasNextPage,
	}
	if page.NextCursor != nil {
		out.NextCursor = *page.NextCursor
	}
	for _, block := range page.Data {
		record, err := block.record()
		if err != nil {
			return TransactionPage{}, err
		}
		out.Data = append(out.Data, record)
	}
	return out, nil
}

// record converts a decoded block into a TransactionRecord.
func (b txBlock) record() (model.TransactionRecord, error) {
	rec := model.TransactionRecord{
		Digest: b.Digest,
		Kind:   "unknown",
	}

	var err error
	if rec.TimestampMs, err = parseInt64(b.TimestampMs); err != nil {
		return rec, fmt.Errorf("transaction %s: bad timestampMs: %w", b.Digest, err)
	}
	checkpoint, err := parseInt64(b.Checkpoint)
	if err != nil || checkpoint < 0 {
		return rec, fmt.Errorf("transaction %s: bad checkpoint %q", b.Digest, b.Checkpoint)
	}
	rec.Checkpoint = uint64(checkpoint)

	if b.Effects != nil {
		rec.Success = b.Effects.Status.Status == "success"
		gas := b.Effects.GasUsed
		if rec.GasUsed.ComputationCost, err = parseBig(gas.ComputationCost); err != nil {
			return rec, fmt.Errorf("transaction %s: bad computationCost: %w", b.Digest, err)
		}
		if rec.GasUsed.StorageCost, err = parseBig(gas.StorageCost); err != nil {
			return rec, fmt.Errorf("transaction %s: bad storageCost: %w", b.Digest, err)
		}
		if rec.GasUsed.StorageRebate, err = parseBig(gas.StorageRebate); err != nil {
			return rec, fmt.Errorf("transaction %s: bad storageRebate: %w", b.Digest, err)
		}
	}

	if b.Transaction != nil {
		inner := b.Transaction.Data.Transaction
		if inner.Kind != "" {
			rec.Kind = inner.Kind
		}
		if inner.Kind == programmableTransaction {
			for _, cmd := range inner.Transactions {
				if cmd.MoveCall == nil {
					continue
				}
				rec.MoveCalls = append(rec.MoveCalls, model.MoveCall{
					Package:  cmd.MoveCall.Package,
					Module:   cmd.MoveCall.Module,
					Function: cmd.MoveCall.Function,
				})
			}
		}
	}
	return rec, nil
}

type objectResponse struct {
	Data *struct {
		ObjectID string `json:"objectId"`
		Type     string `json:"type"`
		Display  *struct {
			Data map[string]interface{} `json:"data"`
		} `json:"display"`
	} `json:"data"`
}

type objectPage struct {
	Data        []objectResponse `json:"data"`
	NextCursor  *string          `json:"nextCursor"`
	HasNextPage bool             `json:"hasNextPage"`
}

// OwnedObjects calls suix_getOwnedObjects with type and display data.
func (c *RPCClient) OwnedObjects(ctx context.Context, address, cursor string, limit int) (ObjectPage, error) {
	query := map[string]interface{}{
		"options": map[string]bool{
			"showType":    true,
			"showDisplay": true,
		},
	}

	var page objectPage
	if err := c.call(ctx, "suix_getOwnedObjects", &page, address, query, optionalCursor(cursor), limit); err != nil {
		return ObjectPage{}, err
	}

	out := ObjectPage{
		Data:        make([]OwnedObject, 0, len(page.Data)),
		HasNextPage: page.HasNextPage,
	}
	if page.NextCursor != nil {
		out.NextCursor = *page.NextCursor
	}
	for _, obj := range page.Data {
		if obj.Data == nil {
			continue
		}
		item := OwnedObject{ObjectID: obj.Data.ObjectID, Type: obj.Data.Type}
		if obj.Data.Display != nil && len(obj.Data.Display.Data) > 0 {
			item.Display = make(map[string]string, len(obj.Data.Display.Data))
			for k, v := range obj.Data.Display.Data {
				if s, ok := v.(string); ok {
					item.Display[k] = s
				}
			}
		}
		out.Data = append(out.Data, item)
	}
	return out, nil
}

// Balance calls suix_getBalance.
func (c *RPCClient) Balance(ctx context.Context, address, coinType string) (*big.Int, error) {
	var result struct {
		TotalBalance string `json:"totalBalance"`
	}
	if err := c.call(ctx, "suix_getBalance", &result, address, coinType); err != nil {
		return nil, err
	}
	balance, err := parseBig(result.TotalBalance)
	if err != nil {
		return nil, fmt.Errorf("bad totalBalance: %w", err)
	}
	return balance, nil
}

func optionalCursor(cursor string) interface{} {
	if cursor == "" {
		return nil
	}
	return cursor
}

func parseInt64(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// parseBig parses a decimal string; empty means zero.
func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not an integer: %q", s)
	}
	return v, nil
}
