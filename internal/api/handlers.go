package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/waapdemo/sui-demo-backend/internal/onchain"
	"github.com/waapdemo/sui-demo-backend/internal/session"
	"github.com/waapdemo/sui-demo-backend/internal/verify"
	"github.com/waapdemo/sui-demo-backend/internal/waap"
	"github.com/waapdemo/sui-demo-backend/internal/wallet"
)

const maxBodyBytes = 1 << 20

// MetricsInterface defines the interface for metrics recording
type MetricsInterface interface {
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
	RecordWalletOperation(ctx context.Context, feature, outcome string)
}

// SessionService is the connection state the handlers act on.
type SessionService interface {
	Wallets() []wallet.Wallet
	Connect(ctx context.Context, name string) (*wallet.Account, error)
	Disconnect(ctx context.Context) error
	Current() (wallet.Wallet, wallet.Account, error)
	Status(ctx context.Context) session.WalletStatus
	Networks() []session.Network
	Network() session.Network
	SelectNetwork(ctx context.Context, name string) error
	SwitchNetwork(ctx context.Context, chain wallet.Chain) error
}

// ChainService reads and builds against the Sui networks.
type ChainService interface {
	Balances(ctx context.Context, network, address string) ([]onchain.Balance, error)
	Faucet(ctx context.Context, network, address string) error
	BuildDemoTransaction(ctx context.Context, network string, kind onchain.DemoKind, sender string) ([]byte, error)
}

// WalletSource resolves the process's own WaaP instance.
type WalletSource interface {
	Current() (*waap.Wallet, error)
}

// ReadinessChecker reports whether a backing service is reachable.
type ReadinessChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	session SessionService
	chain   ChainService
	waap    WalletSource
	ready   ReadinessChecker
	ws      http.HandlerFunc
	sse     http.HandlerFunc
	logger  *zap.SugaredLogger
	metrics MetricsInterface
}

func NewHandler(
	sessionSvc SessionService,
	chainSvc ChainService,
	waapHandle WalletSource,
	ready ReadinessChecker,
	wsHandler http.HandlerFunc,
	sseHandler http.HandlerFunc,
	logger *zap.SugaredLogger,
	metrics MetricsInterface,
) *Handler {
	return &Handler{
		session: sessionSvc,
		chain:   chainSvc,
		waap:    waapHandle,
		ready:   ready,
		ws:      wsHandler,
		sse:     sseHandler,
		logger:  logger,
		metrics: metrics,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready.Ping(ctx); err != nil {
			h.writeError(w, http.StatusServiceUnavailable, "NOT_READY", err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.ws(w, r)
}

func (h *Handler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.sse(w, r)
}

func (h *Handler) ListWallets(w http.ResponseWriter, r *http.Request) {
	wallets := h.session.Wallets()
	out := make([]WalletDTO, 0, len(wallets))
	for _, wl := range wallets {
		out = append(out, WalletDTO{
			Name:     wl.Name(),
			Version:  wl.Version(),
			Icon:     wl.Icon(),
			Chains:   wl.Chains(),
			Features: wl.Features(),
			Accounts: len(wl.Accounts()),
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}
	if req.Wallet == "" {
		req.Wallet = waap.Name
	}

	acct, err := h.session.Connect(r.Context(), req.Wallet)
	h.recordOperation(r.Context(), wallet.FeatureConnect, err)
	if err != nil {
		h.writeWalletError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ConnectResponse{
		Account: toAccountDTO(*acct),
		Status:  h.session.Status(r.Context()),
	})
}

func toAccountDTO(a wallet.Account) AccountDTO {
	return AccountDTO{
		Address:   a.Address,
		PublicKey: hex.EncodeToString(a.PublicKey),
		Chains:    a.Chains,
		Features:  a.Features,
		Label:     a.Label,
	}
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	err := h.session.Disconnect(r.Context())
	h.recordOperation(r.Context(), wallet.FeatureDisconnect, err)
	if err != nil {
		h.writeWalletError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.session.Status(r.Context()))
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.session.Status(r.Context()))
}

func (h *Handler) ListNetworks(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, NetworksResponse{
		Networks: h.session.Networks(),
		Current:  h.session.Network().Name,
	})
}

func (h *Handler) SelectNetwork(w http.ResponseWriter, r *http.Request) {
	var req SelectNetworkRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if err := h.session.SelectNetwork(r.Context(), req.Network); err != nil {
		h.writeWalletError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.session.Status(r.Context()))
}

// SwitchNetwork asks the connected wallet to change chain.
func (h *Handler) SwitchNetwork(w http.ResponseWriter, r *http.Request) {
	var req SwitchChainRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	err := h.session.SwitchNetwork(r.Context(), req.Chain)
	h.recordOperation(r.Context(), wallet.FeatureSwitchChain, err)
	if err != nil {
		h.writeWalletError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.session.Status(r.Context()))
}

func (h *Handler) recordOperation(ctx context.Context, feature wallet.Feature, err error) {
	if h.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		_, outcome = classify(err)
	}
	h.metrics.RecordWalletOperation(ctx, string(feature), outcome)
}

// classify maps domain errors onto an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrWalletNotFound):
		return http.StatusNotFound, "WALLET_NOT_FOUND"
	case errors.Is(err, waap.ErrNotInitialized):
		return http.StatusServiceUnavailable, "NOT_INITIALIZED"
	case errors.Is(err, wallet.ErrNotConnected):
		return http.StatusConflict, "NOT_CONNECTED"
	case errors.Is(err, session.ErrNoAuthorizedAccount):
		return http.StatusUnauthorized, "NOT_AUTHORIZED"
	case errors.Is(err, session.ErrSwitchNotSupported), errors.Is(err, wallet.ErrFeatureNotSupported):
		return http.StatusBadRequest, "FEATURE_NOT_SUPPORTED"
	case errors.Is(err, session.ErrSwitchInProgress):
		return http.StatusConflict, "SWITCH_IN_PROGRESS"
	case errors.Is(err, session.ErrUnknownNetwork), errors.Is(err, wallet.ErrUnknownChain),
		errors.Is(err, onchain.ErrUnknownNetwork):
		return http.StatusBadRequest, "UNKNOWN_NETWORK"
	case errors.Is(err, wallet.ErrUserRejected):
		return http.StatusForbidden, "USER_REJECTED"
	case errors.Is(err, wallet.ErrAccountMismatch):
		return http.StatusForbidden, "ACCOUNT_MISMATCH"
	case errors.Is(err, waap.ErrNoEmail):
		return http.StatusNotFound, "NO_EMAIL"
	case errors.Is(err, onchain.ErrNotEnoughCoins):
		return http.StatusUnprocessableEntity, "NOT_ENOUGH_COINS"
	case errors.Is(err, onchain.ErrInvalidAddress):
		return http.StatusBadRequest, "INVALID_ADDRESS"
	case errors.Is(err, onchain.ErrNoFaucet):
		return http.StatusBadRequest, "NO_FAUCET"
	case errors.Is(err, verify.ErrZkLoginRequiresOnChain):
		return http.StatusUnprocessableEntity, "ZKLOGIN_UNSUPPORTED"
	case errors.Is(err, verify.ErrUnsupportedScheme):
		return http.StatusBadRequest, "UNSUPPORTED_SCHEME"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// userMessages holds the wording the demo UI shows as is.
var userMessages = []struct {
	target  error
	message string
}{
	{session.ErrWalletNotFound, "Wallet not found. Please wait for initialization."},
	{session.ErrSwitchNotSupported, "Network switching is not supported by this wallet"},
}

func userMessage(err error) string {
	for _, m := range userMessages {
		if errors.Is(err, m.target) {
			return m.message
		}
	}
	return err.Error()
}

func (h *Handler) writeWalletError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	h.writeError(w, status, code, userMessage(err))
}

func decodeBody(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		h.logger.Errorw("API error", "code", code, "message", message, "status", status)
	} else {
		h.logger.Debugw("API error", "code", code, "message", message, "status", status)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Code:    code,
		Message: message,
	})
}
