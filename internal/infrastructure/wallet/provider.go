package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/metrics"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	jsoniter "github.com/json-iterator/go"
)

var eventJSON = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals

// RPCProvider is a wallet reached over JSON-RPC. Events are delivered from native
// subscriptions when the transport supports them and from polling otherwise.
type RPCProvider struct {
	kind         entity.WalletKind
	client       *rpc.Client
	logger       port.Logger
	metrics      port.Metrics
	pollInterval time.Duration

	mu          sync.Mutex
	handlers    map[entity.ProviderEvent]map[uint64]func(json.RawMessage)
	nextID      uint64
	stopWatcher context.CancelFunc
	closed      bool
}

// NewRPCProvider wraps client as the wallet of the given kind.
func NewRPCProvider(kind entity.WalletKind, client *rpc.Client, pollInterval time.Duration, logger port.Logger, recorder port.Metrics) *RPCProvider {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if pollInterval <= 0 {
		pollInterval = 1500 * time.Millisecond
	}
	return &RPCProvider{
		kind:         kind,
		client:       client,
		logger:       logger.With("wallet", kind.String()),
		metrics:      recorder,
		pollInterval: pollInterval,
		handlers:     make(map[entity.ProviderEvent]map[uint64]func(json.RawMessage)),
	}
}

// Kind returns the wallet kind.
func (p *RPCProvider) Kind() entity.WalletKind {
	return p.kind
}

// Request performs a single JSON-RPC call. Provider errors are returned unwrapped so
// their code and data stay inspectable.
func (p *RPCProvider) Request(ctx context.Context, result any, method string, params ...any) error {
	err := p.client.CallContext(ctx, result, method, params...)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			outcome = "rejected"
		}
		p.logger.Debug("Wallet request failed", "method", method, "error", err)
	}
	p.metrics.IncWalletRequest(method, outcome)
	return err
}

// Subscribe registers handler for event. The first registration starts the event watcher,
// the last unsubscribe stops it.
func (p *RPCProvider) Subscribe(event entity.ProviderEvent, handler func(json.RawMessage)) func() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return func() {}
	}
	p.nextID++
	id := p.nextID
	if p.handlers[event] == nil {
		p.handlers[event] = make(map[uint64]func(json.RawMessage))
	}
	p.handlers[event][id] = handler
	if p.stopWatcher == nil {
		ctx, cancel := context.WithCancel(context.Background())
		p.stopWatcher = cancel
		go p.watch(ctx)
	}
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { p.unsubscribe(event, id) })
	}
}

func (p *RPCProvider) unsubscribe(event entity.ProviderEvent, id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.handlers[event], id)
	if len(p.handlers[event]) == 0 {
		delete(p.handlers, event)
	}
	if len(p.handlers) == 0 && p.stopWatcher != nil {
		p.stopWatcher()
		p.stopWatcher = nil
	}
}

// emit calls the handlers of event outside the lock.
func (p *RPCProvider) emit(event entity.ProviderEvent, payload json.RawMessage) {
	p.mu.Lock()
	handlers := make([]func(json.RawMessage), 0, len(p.handlers[event]))
	for _, h := range p.handlers[event] {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(payload)
	}
}

func (p *RPCProvider) watch(ctx context.Context) {
	if p.watchNative(ctx) {
		return
	}
	p.logger.Debug("Wallet transport has no notifications, polling for events", "interval", p.pollInterval)
	p.poll(ctx)
}

// watchNative follows eth_subscribe notifications. It returns true when ctx ended the watch,
// false when the transport cannot deliver notifications.
func (p *RPCProvider) watchNative(ctx context.Context) bool {
	accountsCh := make(chan json.RawMessage, 8)
	accountsSub, err := p.client.EthSubscribe(ctx, accountsCh, entity.EventAccountsChanged.String())
	if err != nil {
		if !errors.Is(err, rpc.ErrNotificationsUnsupported) {
			p.logger.Debug("accountsChanged subscription unavailable", "error", err)
		}
		return false
	}
	defer accountsSub.Unsubscribe()

	chainCh := make(chan json.RawMessage, 8)
	chainSub, err := p.client.EthSubscribe(ctx, chainCh, entity.EventChainChanged.String())
	if err != nil {
		p.logger.Debug("chainChanged subscription unavailable", "error", err)
		return false
	}
	defer chainSub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return true
		case payload := <-accountsCh:
			p.emit(entity.EventAccountsChanged, payload)
		case payload := <-chainCh:
			p.emit(entity.EventChainChanged, payload)
		case err := <-accountsSub.Err():
			p.logger.Warn("accountsChanged subscription ended", "error", err)
			return ctx.Err() != nil
		case err := <-chainSub.Err():
			p.logger.Warn("chainChanged subscription ended", "error", err)
			return ctx.Err() != nil
		}
	}
}

func (p *RPCProvider) poll(ctx context.Context) {
	accounts, chainID, _ := p.snapshot(ctx)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		nextAccounts, nextChain, err := p.snapshot(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Debug("Wallet poll failed", "error", err)
			}
			continue
		}
		if !slices.Equal(accounts, nextAccounts) {
			accounts = nextAccounts
			if payload, err := eventJSON.Marshal(nextAccounts); err == nil {
				p.emit(entity.EventAccountsChanged, payload)
			}
		}
		if nextChain != chainID {
			chainID = nextChain
			if payload, err := eventJSON.Marshal(hexutil.Uint64(nextChain)); err == nil {
				p.emit(entity.EventChainChanged, payload)
			}
		}
	}
}

func (p *RPCProvider) snapshot(ctx context.Context) ([]string, uint64, error) {
	var accounts []string
	var chainID hexutil.Uint64
	batch := []rpc.BatchElem{
		{Method: "eth_accounts", Result: &accounts},
		{Method: "eth_chainId", Result: &chainID},
	}
	if err := p.client.BatchCallContext(ctx, batch); err != nil {
		return nil, 0, err
	}
	for _, elem := range batch {
		if elem.Error != nil {
			return nil, 0, elem.Error
		}
	}
	if accounts == nil {
		accounts = []string{}
	}
	return accounts, uint64(chainID), nil
}

// Close stops the event watcher and the underlying connection.
func (p *RPCProvider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.stopWatcher != nil {
		p.stopWatcher()
		p.stopWatcher = nil
	}
	p.handlers = make(map[entity.ProviderEvent]map[uint64]func(json.RawMessage))
	p.mu.Unlock()

	p.client.Close()
}

var _ port.WalletProvider = (*RPCProvider)(nil)
