package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/waapdemo/sui-demo-backend/internal/onchain"
	"github.com/waapdemo/sui-demo-backend/internal/suikeys"
	"github.com/waapdemo/sui-demo-backend/internal/verify"
	"github.com/waapdemo/sui-demo-backend/internal/waap"
	"github.com/waapdemo/sui-demo-backend/internal/wallet"
)

// feature returns the connected wallet's implementation of f.
func feature[T any](wl wallet.Wallet, f wallet.Feature) (T, error) {
	impl, ok := wl.(T)
	if !ok || !wallet.Supports(wl, f) {
		var zero T
		return zero, fmt.Errorf("%w: %s", wallet.ErrFeatureNotSupported, f)
	}
	return impl, nil
}

func messageBytes(message, encoding string) ([]byte, error) {
	switch encoding {
	case "", "utf8", "utf-8":
		return []byte(message), nil
	case "base64":
		b, err := base64.StdEncoding.DecodeString(message)
		if err != nil {
			return nil, fmt.Errorf("message is not valid base64: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown message encoding %q", encoding)
}

func (h *Handler) SignMessage(w http.ResponseWriter, r *http.Request) {
	var req SignMessageRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	msg, err := messageBytes(req.Message, req.Encoding)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	out, acct, err := h.signMessage(r.Context(), msg)
	h.recordOperation(r.Context(), wallet.FeatureSignPersonalMessage, err)
	if err != nil {
		h.writeWalletError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SignMessageResponse{
		Bytes:     out.Bytes,
		Signature: out.Signature,
		Address:   acct.Address,
	})
}

func (h *Handler) signMessage(ctx context.Context, msg []byte) (*wallet.SignedPersonalMessage, wallet.Account, error) {
	wl, acct, err := h.session.Current()
	if err != nil {
		return nil, acct, err
	}
	signer, err := feature[wallet.PersonalMessageSigner](wl, wallet.FeatureSignPersonalMessage)
	if err != nil {
		return nil, acct, err
	}
	out, err := signer.SignPersonalMessage(ctx, wallet.SignPersonalMessageInput{
		Message: msg,
		Account: acct,
		Chain:   h.session.Network().Chain(),
	})
	return out, acct, err
}

// VerifyMessage checks a personal message signature. Verification failures are
// reported in the body, not as HTTP errors.
func (h *Handler) VerifyMessage(w http.ResponseWriter, r *http.Request) {
	var req VerifyMessageRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	msg, err := messageBytes(req.Message, req.Encoding)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	signer, err := verify.PersonalMessage(msg, req.Signature)
	h.writeVerifyResult(w, signer, err, req.Address)
}

func (h *Handler) VerifyTransaction(w http.ResponseWriter, r *http.Request) {
	var req VerifyTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	txBytes, err := base64.StdEncoding.DecodeString(req.Bytes)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "transaction bytes are not valid base64")
		return
	}
	signer, err := verify.Transaction(txBytes, req.Signature)
	h.writeVerifyResult(w, signer, err, req.Address)
}

// writeVerifyResult checks the signer against address, or against the
// connected account when address is empty.
func (h *Handler) writeVerifyResult(w http.ResponseWriter, signer *verify.Signer, err error, address string) {
	if err != nil {
		if isVerificationFailure(err) {
			h.writeJSON(w, http.StatusOK, VerifyResponse{Valid: false, Reason: err.Error()})
			return
		}
		h.writeWalletError(w, err)
		return
	}

	resp := VerifyResponse{Valid: true, Address: signer.Address, Scheme: signer.Scheme.String()}
	if address == "" {
		if _, acct, err := h.session.Current(); err == nil {
			address = acct.Address
		}
	}
	if address != "" {
		if err := verify.ForAddress(signer, address); err != nil {
			resp.Valid = false
			resp.Reason = err.Error()
		}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func isVerificationFailure(err error) bool {
	return errors.Is(err, verify.ErrInvalidSignature) ||
		errors.Is(err, verify.ErrZkLoginRequiresOnChain) ||
		errors.Is(err, verify.ErrUnsupportedScheme) ||
		errors.Is(err, suikeys.ErrMalformedSignature)
}

func (h *Handler) parseKind(r *http.Request, allowed ...onchain.DemoKind) (onchain.DemoKind, error) {
	var req TransactionRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			return "", err
		}
	}
	kind, err := onchain.ParseDemoKind(req.Kind)
	if err != nil {
		return "", err
	}
	for _, k := range allowed {
		if k == kind {
			return kind, nil
		}
	}
	return "", fmt.Errorf("transaction kind %q is not allowed here", kind)
}

// buildForCurrent builds a demo transaction for the connected account on the
// selected network.
func (h *Handler) buildForCurrent(ctx context.Context, kind onchain.DemoKind) (wallet.Wallet, wallet.SignTransactionInput, error) {
	wl, acct, err := h.session.Current()
	if err != nil {
		return nil, wallet.SignTransactionInput{}, err
	}
	network := h.session.Network()
	txBytes, err := h.chain.BuildDemoTransaction(ctx, network.Name, kind, acct.Address)
	if err != nil {
		return nil, wallet.SignTransactionInput{}, err
	}
	return wl, wallet.SignTransactionInput{
		Transaction: txBytes,
		Account:     acct,
		Chain:       network.Chain(),
	}, nil
}

func (h *Handler) SignTransaction(w http.ResponseWriter, r *http.Request) {
	kind, err := h.parseKind(r, onchain.DemoSimple, onchain.DemoMulti)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	out, err := h.signTransaction(r.Context(), kind)
	h.recordOperation(r.Context(), wallet.FeatureSignTransaction, err)
	if err != nil {
		h.writeWalletError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SignTransactionResponse{Kind: kind, Bytes: out.Bytes, Signature: out.Signature})
}

func (h *Handler) signTransaction(ctx context.Context, kind onchain.DemoKind) (*wallet.SignedTransaction, error) {
	wl, in, err := h.buildForCurrent(ctx, kind)
	if err != nil {
		return nil, err
	}
	signer, err := feature[wallet.TransactionSigner](wl, wallet.FeatureSignTransaction)
	if err != nil {
		return nil, err
	}
	return signer.SignTransaction(ctx, in)
}

func (h *Handler) ExecuteTransaction(w http.ResponseWriter, r *http.Request) {
	kind, err := h.parseKind(r, onchain.DemoSimple, onchain.DemoMulti)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	out, err := h.executeTransaction(r.Context(), kind)
	h.recordOperation(r.Context(), wallet.FeatureSignAndExecuteTransaction, err)
	if err != nil {
		h.writeWalletError(w, err)
		return
	}
	h.logger.Infow("Transaction executed", "kind", kind, "digest", out.Digest, "status", out.Status)
	h.writeJSON(w, http.StatusOK, ExecuteTransactionResponse{
		Kind:      kind,
		Digest:    out.Digest,
		Status:    out.Status,
		Bytes:     out.Bytes,
		Signature: out.Signature,
	})
}

func (h *Handler) executeTransaction(ctx context.Context, kind onchain.DemoKind) (*wallet.ExecutedTransaction, error) {
	wl, in, err := h.buildForCurrent(ctx, kind)
	if err != nil {
		return nil, err
	}
	exec, err := feature[wallet.TransactionExecutor](wl, wallet.FeatureSignAndExecuteTransaction)
	if err != nil {
		return nil, err
	}
	return exec.SignAndExecuteTransaction(ctx, in)
}

func (h *Handler) SignTransactionBlock(w http.ResponseWriter, r *http.Request) {
	out, err := h.signLegacyBlock(r.Context())
	h.recordOperation(r.Context(), wallet.FeatureSignTransactionBlock, err)
	if err != nil {
		h.writeWalletError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SignTransactionResponse{
		Kind:      onchain.DemoLegacy,
		Bytes:     out.TransactionBlockBytes,
		Signature: out.Signature,
	})
}

func (h *Handler) signLegacyBlock(ctx context.Context) (*wallet.SignedTransactionBlock, error) {
	wl, in, err := h.buildForCurrent(ctx, onchain.DemoLegacy)
	if err != nil {
		return nil, err
	}
	signer, err := feature[wallet.LegacyBlockSigner](wl, wallet.FeatureSignTransactionBlock)
	if err != nil {
		return nil, err
	}
	return signer.SignTransactionBlock(ctx, in)
}

func (h *Handler) ExecuteTransactionBlock(w http.ResponseWriter, r *http.Request) {
	out, err := h.executeLegacyBlock(r.Context())
	h.recordOperation(r.Context(), wallet.FeatureSignAndExecuteTransactionBlock, err)
	if err != nil {
		h.writeWalletError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ExecuteTransactionResponse{
		Kind:   onchain.DemoLegacy,
		Digest: out.Digest,
		Status: out.Status,
	})
}

func (h *Handler) executeLegacyBlock(ctx context.Context) (*wallet.ExecutedTransactionBlock, error) {
	wl, in, err := h.buildForCurrent(ctx, onchain.DemoLegacy)
	if err != nil {
		return nil, err
	}
	exec, err := feature[wallet.LegacyBlockExecutor](wl, wallet.FeatureSignAndExecuteTransactionBlock)
	if err != nil {
		return nil, err
	}
	return exec.SignAndExecuteTransactionBlock(ctx, in)
}

// RequestEmail asks the process's WaaP instance for the account email,
// whichever wallet the session currently holds.
func (h *Handler) RequestEmail(w http.ResponseWriter, r *http.Request) {
	email, err := h.requestEmail(r.Context())
	h.recordOperation(r.Context(), wallet.FeatureRequestEmail, err)
	if err != nil {
		h.writeWalletError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, EmailResponse{Email: email})
}

func (h *Handler) requestEmail(ctx context.Context) (string, error) {
	if h.waap == nil {
		return "", waap.ErrNotInitialized
	}
	instance, err := h.waap.Current()
	if err != nil {
		return "", err
	}
	return instance.RequestEmail(ctx)
}
