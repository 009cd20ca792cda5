package oracle

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

var ErrNoHandles = errors.New("decryption request without handles")

// Decryptor resolves a ciphertext handle to its cleartext. It stands in for
// the key management service behind the gateway.
type Decryptor interface {
	Decrypt(ctx context.Context, handle common.Hash) (uint64, error)
}

// Fulfiller is the callback target for completed decryptions.
type Fulfiller interface {
	Fulfill(ctx context.Context, requestID *uint256.Int, cleartexts []byte, signatures [][]byte) error
}

// GatewayConfig holds gateway settings.
type GatewayConfig struct {
	// Signers sign every decryption result.
	Signers []*ecdsa.PrivateKey
	// Requeue decides whether a failed delivery is kept for the next Process
	// call. Nil drops every failed delivery.
	Requeue func(error) bool
}

type request struct {
	id      *uint256.Int
	handles []common.Hash
}

// Gateway queues decryption requests and delivers signed results
// asynchronously. Request ids are a monotonic counter starting at 1.
type Gateway struct {
	mu        sync.Mutex
	next      *uint256.Int
	queue     []request
	decryptor Decryptor
	cfg       GatewayConfig
	logger    *zap.Logger
}

// NewGateway builds a gateway.
func NewGateway(decryptor Decryptor, cfg GatewayConfig, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		next:      uint256.NewInt(1),
		decryptor: decryptor,
		cfg:       cfg,
		logger:    logger,
	}
}

// SignerAddresses returns the addresses of the configured signing keys.
func (g *Gateway) SignerAddresses() []common.Address {
	out := make([]common.Address, 0, len(g.cfg.Signers))
	for _, key := range g.cfg.Signers {
		out = append(out, crypto.PubkeyToAddress(key.PublicKey))
	}
	return out
}

// PeekRequestID returns the id the next RequestDecryption call will assign.
func (g *Gateway) PeekRequestID() *uint256.Int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next.Clone()
}

// RequestDecryption queues handles for decryption and returns the request id.
func (g *Gateway) RequestDecryption(ctx context.Context, handles []common.Hash) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(handles) == 0 {
		return nil, ErrNoHandles
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.next.Clone()
	g.next.AddUint64(g.next, 1)
	g.queue = append(g.queue, request{id: id, handles: append([]common.Hash(nil), handles...)})
	g.logger.Debug("decryption requested", zap.String("request_id", id.Dec()), zap.Int("handles", len(handles)))
	return id.Clone(), nil
}

// Pending returns the number of queued requests.
func (g *Gateway) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// Process delivers every queued request to f and returns how many were
// delivered successfully. The queue lock is not held while f runs.
func (g *Gateway) Process(ctx context.Context, f Fulfiller) (int, error) {
	g.mu.Lock()
	batch := g.queue
	g.queue = nil
	g.mu.Unlock()

	delivered := 0
	var requeue []request
	for i, req := range batch {
		if err := ctx.Err(); err != nil {
			requeue = append(requeue, batch[i:]...)
			g.restore(requeue)
			return delivered, err
		}
		cleartexts, signatures, err := g.sign(ctx, req)
		if err != nil {
			g.logger.Warn("decryption failed", zap.String("request_id", req.id.Dec()), zap.Error(err))
			requeue = append(requeue, req)
			continue
		}
		if err := f.Fulfill(ctx, req.id.Clone(), cleartexts, signatures); err != nil {
			g.logger.Info("fulfillment failed", zap.String("request_id", req.id.Dec()), zap.Error(err))
			if g.cfg.Requeue != nil && g.cfg.Requeue(err) {
				requeue = append(requeue, req)
			}
			continue
		}
		delivered++
	}
	g.restore(requeue)
	return delivered, nil
}

// Run calls Process every interval until ctx is done.
func (g *Gateway) Run(ctx context.Context, f Fulfiller, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := g.Process(ctx, f); err != nil {
				return err
			}
		}
	}
}

func (g *Gateway) restore(reqs []request) {
	if len(reqs) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queue = append(reqs, g.queue...)
}

func (g *Gateway) sign(ctx context.Context, req request) ([]byte, [][]byte, error) {
	values := make([]uint64, len(req.handles))
	for i, h := range req.handles {
		v, err := g.decryptor.Decrypt(ctx, h)
		if err != nil {
			return nil, nil, fmt.Errorf("decrypt %s: %w", h.Hex(), err)
		}
		values[i] = v
	}
	cleartexts, err := EncodeCleartexts(values)
	if err != nil {
		return nil, nil, err
	}
	digest := Digest(req.id, req.handles, cleartexts)
	signatures := make([][]byte, 0, len(g.cfg.Signers))
	for _, key := range g.cfg.Signers {
		sig, err := crypto.Sign(digest.Bytes(), key)
		if err != nil {
			return nil, nil, fmt.Errorf("sign: %w", err)
		}
		signatures = append(signatures, sig)
	}
	return cleartexts, signatures, nil
}
