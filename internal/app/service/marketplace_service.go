package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/app/saga"
	"sakura_marketplace/internal/domain/entity"
	"sakura_marketplace/internal/infrastructure/configloader"
	"sakura_marketplace/internal/infrastructure/contracts"
	"sakura_marketplace/internal/infrastructure/metrics"
	"sakura_marketplace/internal/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const (
	intentRetention    = 30 * time.Minute
	msgConnectWallet   = "Please connect your wallet first"
	msgListingInactive = "Listing is no longer active"
)

// MarketplaceDeps groups the collaborators of MarketplaceServiceImpl.
type MarketplaceDeps struct {
	Session    port.SessionReader
	Networks   port.NetworkRegistry
	Clients    port.BlockchainClientProvider
	Store      port.MarketStore
	Storage    port.ObjectStorage
	Prober     port.URLProber
	Codec      *contracts.Codec
	Reconciler port.ReconciliationQueue
	ReadModel  port.ReadModelService
	Metrics    port.Metrics
	Logger     port.Logger
}

// MarketplaceServiceImpl implements port.MarketplaceService. Every operation runs one saga.
type MarketplaceServiceImpl struct {
	MarketplaceDeps
	cfg      configloader.WorkflowConfig
	buckets  configloader.SupabaseConfig
	tx       *txSender
	validate *validator.Validate
	group    singleflight.Group
	intents  *cache.Cache

	mintSaga        *saga.Saga[mintState]
	listSaga        *saga.Saga[listState]
	buySaga         *saga.Saga[buyState]
	makeOfferSaga   *saga.Saga[makeOfferState]
	acceptOfferSaga *saga.Saga[acceptOfferState]
	cancelOfferSaga *saga.Saga[cancelOfferState]
}

// NewMarketplaceService wires the six marketplace sagas.
func NewMarketplaceService(deps MarketplaceDeps, cfg *configloader.Config) *MarketplaceServiceImpl {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	deps.Logger = deps.Logger.With("component", "marketplace")

	s := &MarketplaceServiceImpl{
		MarketplaceDeps: deps,
		cfg:             cfg.Workflow,
		buckets:         cfg.Supabase,
		tx: &txSender{
			logger:              deps.Logger,
			fallbackGasLimit:    cfg.Workflow.FallbackGasLimit,
			confirmationTimeout: time.Duration(cfg.Workflow.ConfirmationTimeoutSeconds) * time.Second,
			pollInterval:        time.Duration(cfg.Workflow.ReceiptPollIntervalMillis) * time.Millisecond,
		},
		validate: newValidator(),
		intents:  cache.New(intentRetention, 2*intentRetention),
	}

	s.mintSaga = s.buildMintSaga()
	s.listSaga = s.buildListSaga()
	s.buySaga = s.buildBuySaga()
	s.makeOfferSaga = s.buildMakeOfferSaga()
	s.acceptOfferSaga = s.buildAcceptOfferSaga()
	s.cancelOfferSaga = s.buildCancelOfferSaga()
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(fld.Name)
		}
		return name
	})
	return v
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid input. Please check the form and try again."
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must be a decimal number", fe.Field())
	case "eth_addr":
		return fmt.Sprintf("%s must be a valid wallet address", fe.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func (s *MarketplaceServiceImpl) validateRequest(op string, req any) error {
	if err := s.validate.Struct(req); err != nil {
		return validationError(op, validationMessage(err))
	}
	return nil
}

// flow is the part of saga state shared by every workflow.
type flow struct {
	tc      txContext
	network entity.NetworkDefinition
	account string
	hashes  []string
}

func (f *flow) recordHash(h common.Hash) {
	f.hashes = append(f.hashes, h.Hex())
}

func (f *flow) lastHash() string {
	if len(f.hashes) == 0 {
		return ""
	}
	return f.hashes[len(f.hashes)-1]
}

func (f *flow) describe(intent *entity.TransactionIntent) {
	if f.account != "" {
		intent.Account = f.account
	}
	if f.tc.chainID != 0 {
		intent.ChainID = f.tc.chainID
	}
	intent.TxHashes = append([]string(nil), f.hashes...)
}

func (f *flow) result(intentID string, warnings []string) entity.WorkflowResult {
	return entity.WorkflowResult{
		IntentID:    intentID,
		ChainID:     f.tc.chainID,
		TxHash:      f.lastHash(),
		ExplorerURL: f.network.ExplorerTxURL(f.lastHash()),
		Warnings:    warnings,
	}
}

// checkSession re-reads account and chain from the wallet; cached session values are never trusted here.
func (s *MarketplaceServiceImpl) checkSession(ctx context.Context, f *flow) error {
	const op = "check_session"

	provider, ok := s.Session.ActiveProvider()
	if !ok {
		return validationError(op, msgConnectWallet)
	}
	account, ok := s.Session.CurrentAccount(ctx)
	if !ok {
		return validationError(op, msgConnectWallet)
	}
	chainID, ok := s.Session.CurrentChainID(ctx)
	if !ok {
		return entity.NewError(entity.KindRPC, op, "could not read the wallet network", nil)
	}
	def, ok := s.Networks.GetNetwork(chainID)
	if !ok {
		return entity.NewError(entity.KindUnsupportedNetwork, op,
			fmt.Sprintf("Chain %d is not supported. Please switch to a supported network.", chainID), nil)
	}
	client, err := s.Clients.GetClient(def)
	if err != nil {
		return classify(op, err)
	}

	f.tc = txContext{provider: provider, client: client, account: common.HexToAddress(account), chainID: chainID}
	f.network = def
	f.account = utils.NormalizeAddress(account)
	return nil
}

func (s *MarketplaceServiceImpl) submit(ctx context.Context, f *flow, call contracts.ContractCall, hash *common.Hash) error {
	h, err := s.tx.send(ctx, f.tc, call)
	if err != nil {
		return err
	}
	*hash = h
	f.recordHash(h)
	return nil
}

func (s *MarketplaceServiceImpl) confirm(ctx context.Context, f *flow, method string, hash common.Hash, receipt **types.Receipt) error {
	r, err := s.tx.wait(ctx, f.tc, method, hash)
	if err != nil {
		return err
	}
	*receipt = r
	return nil
}

// newWorkflow creates a saga with the shared observers and reconciliation hook attached.
func newWorkflow[S any](s *MarketplaceServiceImpl, name string, base func(*S) *flow) *saga.Saga[S] {
	return saga.New[S](name, classify, s.Logger).
		WithIntentDetails(func(st *S, intent *entity.TransactionIntent) { base(st).describe(intent) }).
		OnStatus(s.trackIntent).
		DeferSoftFailures(func(description string, retry func(context.Context) error) {
			if s.Reconciler != nil {
				s.Reconciler.Enqueue(description, retry)
			}
		})
}

func (s *MarketplaceServiceImpl) storeRetries() (int, time.Duration) {
	return s.cfg.StoreWriteRetries, time.Duration(s.cfg.StoreRetryDelayMillis) * time.Millisecond
}

func (s *MarketplaceServiceImpl) trackIntent(intent entity.TransactionIntent) {
	s.intents.Set(intent.ID, intent, cache.DefaultExpiration)
	s.Logger.Debug("Intent status changed", "intent_id", intent.ID, "kind", intent.Kind.String(), "status", intent.Status.String())
}

// Intent returns a recently run intent by id.
func (s *MarketplaceServiceImpl) Intent(id string) (entity.TransactionIntent, bool) {
	v, ok := s.intents.Get(id)
	if !ok {
		return entity.TransactionIntent{}, false
	}
	intent, ok := v.(entity.TransactionIntent)
	return intent, ok
}

func runWorkflow[S any](ctx context.Context, s *MarketplaceServiceImpl, sg *saga.Saga[S], kind entity.IntentKind, st *S) (saga.Outcome, error) {
	session := s.Session.Session()
	intent := entity.TransactionIntent{
		ID:      uuid.NewString(),
		Kind:    kind,
		Account: utils.NormalizeAddress(session.Account),
		ChainID: session.ChainID,
	}

	start := time.Now()
	out, err := sg.Run(ctx, intent, st)
	outcome := "ok"
	if err != nil {
		outcome = entity.KindOf(err).String()
	}
	s.Metrics.ObserveWorkflow(kind.String(), outcome, time.Since(start))
	return out, err
}

// dedupe collapses identical concurrent requests; later callers receive the first caller's result.
func dedupe[T any](s *MarketplaceServiceImpl, key string, fn func() (*T, error)) (*T, error) {
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return fn()
	})
	if shared {
		s.Logger.Debug("Collapsed duplicate workflow request", "key", key)
	}
	if err != nil {
		return nil, err
	}
	res, _ := v.(*T)
	return res, nil
}

func (s *MarketplaceServiceImpl) dedupKey(kind entity.IntentKind, parts ...any) string {
	account := utils.NormalizeAddress(s.Session.Session().Account)
	return fmt.Sprintf("%s|%s|%v", kind, account, parts)
}

func (s *MarketplaceServiceImpl) invalidate(tables ...string) {
	if s.ReadModel != nil {
		s.ReadModel.Invalidate(tables...)
	}
}

// notify stores a notification for the profile owning wallet. Missing profiles are skipped.
func (s *MarketplaceServiceImpl) notify(ctx context.Context, wallet string, n entity.NotificationRecord) error {
	profile, err := s.Store.FindProfileByWallet(ctx, utils.NormalizeAddress(wallet))
	if errors.Is(err, entity.ErrRecordNotFound) {
		s.Logger.Debug("No profile for notification recipient", "wallet", wallet)
		return nil
	}
	if err != nil {
		return err
	}
	n.ProfileID = profile.ID
	return s.Store.InsertNotification(ctx, n)
}

var (
	_ port.MarketplaceService = (*MarketplaceServiceImpl)(nil)
	_ port.IntentTracker      = (*MarketplaceServiceImpl)(nil)
)
