package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// targetAddress falls back to the connected account when explicit is empty.
func (h *Handler) targetAddress(explicit string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit, nil
	}
	_, acct, err := h.session.Current()
	if err != nil {
		return "", err
	}
	return acct.Address, nil
}

// GetBalances returns balances on the selected network for ?address= or the
// connected account.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	address, err := h.targetAddress(r.URL.Query().Get("address"))
	if err != nil {
		h.writeWalletError(w, err)
		return
	}
	network := h.session.Network().Name

	balances, err := h.chain.Balances(r.Context(), network, address)
	if err != nil {
		h.writeChainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BalancesResponse{
		Network:  network,
		Address:  address,
		Balances: balances,
	})
}

func (h *Handler) RequestFaucet(w http.ResponseWriter, r *http.Request) {
	var req FaucetRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}
	address, err := h.targetAddress(req.Address)
	if err != nil {
		h.writeWalletError(w, err)
		return
	}
	network := h.session.Network().Name

	if err := h.chain.Faucet(r.Context(), network, address); err != nil {
		h.writeChainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, FaucetResponse{Network: network, Address: address, Status: "requested"})
}

// writeChainError reports RPC failures as a bad gateway unless the error is
// one of the known domain errors.
func (h *Handler) writeChainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if code == "INTERNAL_ERROR" && !isContextError(err) {
		status, code = http.StatusBadGateway, "CHAIN_ERROR"
	}
	h.writeError(w, status, code, err.Error())
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
