package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const eventRequeryTimeout = 5 * time.Second

// SessionService implements port.WalletSessionManager. It is the only writer of the wallet session;
// everything else reads snapshots or registers observers.
type SessionService struct {
	wallets  port.WalletProviderRegistry
	networks port.NetworkRegistry
	switcher port.NetworkSwitcher
	profiles port.ProfileRepository
	logger   port.Logger

	mu       sync.RWMutex
	session  entity.WalletSession
	provider port.WalletProvider
	unbind   []func()

	obsMu      sync.Mutex
	nextObsID  uint64
	accountObs map[uint64]func([]string)
	chainObs   map[uint64]func()
	sessionObs map[uint64]func(entity.WalletSession)
}

// NewSessionService creates a disconnected session manager.
func NewSessionService(
	wallets port.WalletProviderRegistry,
	networks port.NetworkRegistry,
	switcher port.NetworkSwitcher,
	profiles port.ProfileRepository,
	logger port.Logger,
) *SessionService {
	return &SessionService{
		wallets:    wallets,
		networks:   networks,
		switcher:   switcher,
		profiles:   profiles,
		logger:     logger.With("component", "wallet_session"),
		accountObs: make(map[uint64]func([]string)),
		chainObs:   make(map[uint64]func()),
		sessionObs: make(map[uint64]func(entity.WalletSession)),
	}
}

// Connect authorizes an account with the wallet of kind and makes sure it sits on a supported network.
func (s *SessionService) Connect(ctx context.Context, kind entity.WalletKind) (string, error) {
	const op = "connect"

	provider, err := s.wallets.Lookup(ctx, kind)
	if err != nil {
		if entity.KindOf(err) == entity.KindUnknown {
			err = entity.NewError(entity.KindProviderNotFound, op, kind.DisplayName()+" not installed", err)
		}
		return "", err
	}

	// Passive check first: an already authorized account must not trigger a prompt.
	var accounts []string
	if err := provider.Request(ctx, &accounts, "eth_accounts"); err != nil {
		return "", classify(op, err)
	}

	if account, ok := s.alreadyConnected(provider, accounts); ok {
		if chainID, err := s.readChainID(ctx, provider); err == nil {
			s.updateChain(chainID)
		}
		s.logger.Debug("Wallet already connected", "wallet", kind.String())
		return account, nil
	}

	s.transition(func(sess *entity.WalletSession) {
		*sess = entity.WalletSession{State: entity.Connecting, WalletKind: kind, Wallet: kind.String()}
	})

	account, chainID, err := s.authorize(ctx, provider, accounts)
	if err != nil {
		s.logger.Warn("Wallet connection failed", "wallet", kind.String(), "error", err)
		s.reset()
		return "", err
	}

	s.bind(provider)
	s.transition(func(sess *entity.WalletSession) {
		*sess = entity.WalletSession{
			Account:    account,
			ChainID:    chainID,
			State:      entity.Connected,
			WalletKind: kind,
			Wallet:     kind.String(),
		}
	})
	s.logger.Info("Wallet connected", "wallet", kind.String(), "account", account, "chainId", chainID)

	if s.profiles != nil {
		if err := s.profiles.UpsertProfile(ctx, strings.ToLower(account)); err != nil {
			s.logger.Warn("Failed to upsert profile", "account", account, "error", err)
		}
	}
	return account, nil
}

func (s *SessionService) alreadyConnected(provider port.WalletProvider, accounts []string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider != provider || !s.session.IsConnected() || len(accounts) == 0 {
		return "", false
	}
	if !strings.EqualFold(accounts[0], s.session.Account) {
		return "", false
	}
	return accounts[0], true
}

// authorize returns the authorized account and a supported chain id.
func (s *SessionService) authorize(ctx context.Context, provider port.WalletProvider, accounts []string) (string, uint64, error) {
	const op = "connect"

	if len(accounts) == 0 {
		if err := provider.Request(ctx, &accounts, "eth_requestAccounts"); err != nil {
			return "", 0, classify(op, err)
		}
		if len(accounts) == 0 {
			return "", 0, entity.NewError(entity.KindUserRejected, op, "no account authorized", nil)
		}
	}
	account := accounts[0]

	chainID, err := s.readChainID(ctx, provider)
	if err != nil {
		return "", 0, classify(op, err)
	}
	if _, ok := s.networks.GetNetwork(chainID); ok {
		return account, chainID, nil
	}

	target := s.networks.DefaultNetwork()
	s.logger.Info("Wallet is on an unsupported chain, switching", "chainId", chainID, "target", target.Name)
	if err := s.switcher.SwitchNetwork(ctx, provider, target.ChainID); err != nil {
		return "", 0, err
	}
	if chainID, err = s.readChainID(ctx, provider); err != nil {
		return "", 0, classify(op, err)
	}
	return account, chainID, nil
}

func (s *SessionService) readChainID(ctx context.Context, provider port.WalletProvider) (uint64, error) {
	var chainID hexutil.Uint64
	if err := provider.Request(ctx, &chainID, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(chainID), nil
}

// bind subscribes to the events of provider, dropping any previous binding.
func (s *SessionService) bind(provider port.WalletProvider) {
	unbindAccounts := provider.Subscribe(entity.EventAccountsChanged, s.handleAccountsChanged)
	unbindChain := provider.Subscribe(entity.EventChainChanged, s.handleChainChanged)

	s.mu.Lock()
	previous := s.unbind
	s.provider = provider
	s.unbind = []func(){unbindAccounts, unbindChain}
	s.mu.Unlock()

	for _, fn := range previous {
		fn()
	}
}

func (s *SessionService) handleAccountsChanged(payload json.RawMessage) {
	var accounts []string
	if err := jsonAPI.Unmarshal(payload, &accounts); err != nil {
		s.logger.Warn("Malformed accountsChanged payload", "error", err)
		return
	}

	if len(accounts) == 0 {
		s.logger.Info("Wallet reported no accounts, disconnecting")
		s.reset()
	} else {
		s.transition(func(sess *entity.WalletSession) {
			if sess.State == entity.Connected {
				sess.Account = accounts[0]
			}
		})
	}
	s.notifyAccounts(accounts)
}

func (s *SessionService) handleChainChanged(payload json.RawMessage) {
	provider, ok := s.ActiveProvider()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventRequeryTimeout)
	defer cancel()

	chainID, err := s.readChainID(ctx, provider)
	if err != nil {
		var hinted hexutil.Uint64
		if jsonAPI.Unmarshal(payload, &hinted) != nil {
			s.logger.Warn("Failed to re-read chain id after chainChanged", "error", err)
			s.notifyChain()
			return
		}
		chainID = uint64(hinted)
	}
	s.updateChain(chainID)
	s.notifyChain()
}

func (s *SessionService) updateChain(chainID uint64) {
	s.transition(func(sess *entity.WalletSession) {
		if sess.State == entity.Connected {
			sess.ChainID = chainID
		}
	})
}

// transition applies fn under the write lock and notifies session observers when the snapshot changed.
func (s *SessionService) transition(fn func(*entity.WalletSession)) {
	s.mu.Lock()
	before := s.session
	fn(&s.session)
	after := s.session
	s.mu.Unlock()

	if before != after {
		s.notifySession(after)
	}
}

func (s *SessionService) reset() {
	s.mu.Lock()
	previous := s.unbind
	s.unbind = nil
	s.provider = nil
	before := s.session
	s.session = entity.WalletSession{State: entity.Disconnected}
	s.mu.Unlock()

	for _, fn := range previous {
		fn()
	}
	if before != s.Session() {
		s.notifySession(s.Session())
	}
}

// Disconnect clears the local session. Wallets cannot be disconnected programmatically.
func (s *SessionService) Disconnect() {
	s.mu.RLock()
	idle := s.session.State == entity.Disconnected && s.provider == nil
	s.mu.RUnlock()
	if idle {
		return
	}
	s.reset()
	s.logger.Info("Wallet session cleared")
}

// SwitchNetwork moves the connected wallet to chainID.
func (s *SessionService) SwitchNetwork(ctx context.Context, chainID uint64) error {
	if _, ok := s.networks.GetNetwork(chainID); !ok {
		return s.switcher.SwitchNetwork(ctx, nil, chainID)
	}
	provider, ok := s.ActiveProvider()
	if !ok {
		return validationError("switch_network", "Please connect your wallet first")
	}
	if err := s.switcher.SwitchNetwork(ctx, provider, chainID); err != nil {
		return err
	}
	if current, err := s.readChainID(ctx, provider); err == nil {
		s.updateChain(current)
	}
	return nil
}

// Session returns a snapshot of the session.
func (s *SessionService) Session() entity.WalletSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// ActiveProvider returns the provider of a connected session.
func (s *SessionService) ActiveProvider() (port.WalletProvider, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil || s.session.State != entity.Connected {
		return nil, false
	}
	return s.provider, true
}

// CurrentAccount asks the wallet for its authorized account without prompting.
func (s *SessionService) CurrentAccount(ctx context.Context) (string, bool) {
	provider, ok := s.ActiveProvider()
	if !ok {
		return "", false
	}
	var accounts []string
	if err := provider.Request(ctx, &accounts, "eth_accounts"); err != nil {
		s.logger.Debug("eth_accounts failed", "error", err)
		return "", false
	}
	if len(accounts) == 0 {
		s.reset()
		return "", false
	}
	s.transition(func(sess *entity.WalletSession) { sess.Account = accounts[0] })
	return accounts[0], true
}

// CurrentChainID asks the wallet for its active chain.
func (s *SessionService) CurrentChainID(ctx context.Context) (uint64, bool) {
	provider, ok := s.ActiveProvider()
	if !ok {
		return 0, false
	}
	chainID, err := s.readChainID(ctx, provider)
	if err != nil {
		s.logger.Debug("eth_chainId failed", "error", err)
		return 0, false
	}
	s.updateChain(chainID)
	return chainID, true
}

func (s *SessionService) register(add func(id uint64)) func() {
	s.obsMu.Lock()
	s.nextObsID++
	id := s.nextObsID
	add(id)
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			delete(s.accountObs, id)
			delete(s.chainObs, id)
			delete(s.sessionObs, id)
			s.obsMu.Unlock()
		})
	}
}

// OnAccountsChanged registers cb for account changes. An empty list means the wallet disconnected.
func (s *SessionService) OnAccountsChanged(cb func(accounts []string)) func() {
	return s.register(func(id uint64) { s.accountObs[id] = cb })
}

// OnChainChanged registers cb for chain changes. Callers re-query the chain id.
func (s *SessionService) OnChainChanged(cb func()) func() {
	return s.register(func(id uint64) { s.chainObs[id] = cb })
}

// OnSessionChanged registers cb for every change of the session snapshot.
func (s *SessionService) OnSessionChanged(cb func(entity.WalletSession)) func() {
	return s.register(func(id uint64) { s.sessionObs[id] = cb })
}

func (s *SessionService) notifyAccounts(accounts []string) {
	s.obsMu.Lock()
	cbs := make([]func([]string), 0, len(s.accountObs))
	for _, cb := range s.accountObs {
		cbs = append(cbs, cb)
	}
	s.obsMu.Unlock()
	for _, cb := range cbs {
		cb(append([]string(nil), accounts...))
	}
}

func (s *SessionService) notifyChain() {
	s.obsMu.Lock()
	cbs := make([]func(), 0, len(s.chainObs))
	for _, cb := range s.chainObs {
		cbs = append(cbs, cb)
	}
	s.obsMu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

func (s *SessionService) notifySession(snapshot entity.WalletSession) {
	s.obsMu.Lock()
	cbs := make([]func(entity.WalletSession), 0, len(s.sessionObs))
	for _, cb := range s.sessionObs {
		cbs = append(cbs, cb)
	}
	s.obsMu.Unlock()
	for _, cb := range cbs {
		cb(snapshot)
	}
}

var _ port.WalletSessionManager = (*SessionService)(nil)
