package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/better-wallet/smart-account/internal/app"
	"github.com/better-wallet/smart-account/internal/logger"
	"github.com/better-wallet/smart-account/internal/validation"
	apperrors "github.com/better-wallet/smart-account/pkg/errors"
	"github.com/better-wallet/smart-account/pkg/types"
)

// InfoResponse describes the deployment clients sign against.
type InfoResponse struct {
	ChainID   uint64        `json:"chainId"`
	Addresses app.Addresses `json:"addresses"`
}

// DeployAccountResponse is returned after a successful deployment.
type DeployAccountResponse struct {
	Account common.Address `json:"account"`
	Receipt *types.Receipt `json:"receipt"`
}

// OperationHashRequest asks for the hash an owner must sign.
type OperationHashRequest struct {
	Transaction types.Transaction `json:"transaction"`
}

// HashResponse carries an EIP-712 hash.
type HashResponse struct {
	Hash common.Hash `json:"hash"`
}

// SubmitOperationRequest is a signed operation for the account in the path.
type SubmitOperationRequest struct {
	Transaction types.Transaction `json:"transaction"`
	Validator   common.Address    `json:"validator"`
	Signature   hexutil.Bytes     `json:"signature"`
	HookData    []hexutil.Bytes   `json:"hookData,omitempty"`
}

// ListReceiptsResponse lists receipts newest first.
type ListReceiptsResponse struct {
	Data []*types.Receipt `json:"data"`
}

// StartRecoveryRequest starts a cloud recovery (Signature) or a social
// recovery (Guardians).
type StartRecoveryRequest struct {
	Data      types.RecoveryData   `json:"data"`
	Signature hexutil.Bytes        `json:"signature,omitempty"`
	Guardians []types.GuardianData `json:"guardians,omitempty"`
}

// ExecuteRecoveryRequest names the account whose recovery to finish.
type ExecuteRecoveryRequest struct {
	Account common.Address `json:"account"`
}

// RecoveryStatusResponse is the recovery state of one account.
type RecoveryStatusResponse struct {
	types.RecoveryStatus
	Guardian *common.Address             `json:"guardian,omitempty"`
	Config   *types.SocialRecoveryConfig `json:"config,omitempty"`
}

// errorResponse is an AppError, with the receipt of the reverted call when one exists.
type errorResponse struct {
	*apperrors.AppError
	Receipt *types.Receipt `json:"receipt,omitempty"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, InfoResponse{ChainID: s.accounts.ChainID(), Addresses: s.accounts.Addresses()})
}

func (s *Server) handleDeployAccount(w http.ResponseWriter, r *http.Request) {
	var req app.DeployRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := validation.ValidateDeploy(req.Owner, req.InitialCall); err != nil {
		s.writeFailure(w, r, nil, err)
		return
	}

	receipt, err := s.accounts.DeployAccount(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, receipt, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, DeployAccountResponse{Account: receipt.Account, Receipt: receipt})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	view, err := s.accounts.GetAccount(r.Context(), addr)
	if err != nil {
		s.writeFailure(w, r, nil, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleOperationHash(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	var req OperationHashRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := validation.ValidateTransaction(req.Transaction); err != nil {
		s.writeFailure(w, r, nil, err)
		return
	}
	hash, err := s.accounts.OperationHash(addr, req.Transaction)
	if err != nil {
		s.writeFailure(w, r, nil, err)
		return
	}
	s.writeJSON(w, http.StatusOK, HashResponse{Hash: hash})
}

func (s *Server) handleSubmitOperation(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	var req SubmitOperationRequest
	if !s.decode(w, r, &req) {
		return
	}

	op := &types.Operation{
		Account:     addr,
		Transaction: req.Transaction,
		Validator:   req.Validator,
		Signature:   req.Signature,
		HookData:    req.HookData,
	}
	if err := validation.ValidateOperation(op); err != nil {
		s.writeFailure(w, r, nil, err)
		return
	}

	receipt, err := s.accounts.SubmitOperation(r.Context(), op)
	if err != nil {
		s.writeFailure(w, r, receipt, err)
		return
	}
	s.writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, apperrors.NewWithDetail(apperrors.ErrCodeInvalidInput, "Invalid limit", raw, http.StatusBadRequest))
			return
		}
		limit = n
	}
	receipts, err := s.accounts.ListReceipts(r.Context(), addr, limit)
	if err != nil {
		s.writeFailure(w, r, nil, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ListReceiptsResponse{Data: receipts})
}

func (s *Server) handleRecoveryHash(w http.ResponseWriter, r *http.Request) {
	var data types.RecoveryData
	if !s.decode(w, r, &data) {
		return
	}
	if err := validation.ValidateRecoveryData(data); err != nil {
		s.writeFailure(w, r, nil, err)
		return
	}
	hash, err := s.accounts.RecoveryHash(app.RecoveryKind(r.PathValue("kind")), data)
	if err != nil {
		s.writeFailure(w, r, nil, err)
		return
	}
	s.writeJSON(w, http.StatusOK, HashResponse{Hash: hash})
}

func (s *Server) handleStartRecovery(w http.ResponseWriter, r *http.Request) {
	var req StartRecoveryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := validation.ValidateRecoveryData(req.Data); err != nil {
		s.writeFailure(w, r, nil, err)
		return
	}

	var (
		receipt *types.Receipt
		err     error
	)
	switch kind := app.RecoveryKind(r.PathValue("kind")); kind {
	case app.RecoveryCloud:
		receipt, err = s.accounts.StartCloudRecovery(r.Context(), req.Data, req.Signature)
	case app.RecoverySocial:
		if err = validation.ValidateGuardianApprovals(req.Guardians); err == nil {
			receipt, err = s.accounts.StartSocialRecovery(r.Context(), req.Data, req.Guardians)
		}
	default:
		err = apperrors.NotFound(apperrors.ReasonNotExists, "recovery module "+string(kind))
	}
	if err != nil {
		s.writeFailure(w, r, receipt, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, receipt)
}

func (s *Server) handleExecuteRecovery(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRecoveryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Account == (common.Address{}) {
		s.writeError(w, apperrors.InvalidInput(apperrors.ReasonZeroAddress, "account is required"))
		return
	}
	receipt, err := s.accounts.ExecuteRecovery(r.Context(), app.RecoveryKind(r.PathValue("kind")), req.Account)
	if err != nil {
		s.writeFailure(w, r, receipt, err)
		return
	}
	s.writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) handleRecoveryStatus(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.pathAddress(w, r)
	if !ok {
		return
	}
	kind := app.RecoveryKind(r.PathValue("kind"))
	status, err := s.accounts.RecoveryStatus(r.Context(), kind, addr)
	if err != nil {
		s.writeFailure(w, r, nil, err)
		return
	}

	resp := RecoveryStatusResponse{RecoveryStatus: status}
	switch kind {
	case app.RecoveryCloud:
		guardian := s.accounts.CloudGuardian(addr)
		resp.Guardian = &guardian
	case app.RecoverySocial:
		cfg, err := s.accounts.SocialConfig(r.Context(), addr)
		if err != nil {
			s.writeFailure(w, r, nil, err)
			return
		}
		resp.Config = &cfg
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// pathAddress parses the {addr} path value.
func (s *Server) pathAddress(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr, err := validation.ParseAddress(r.PathValue("addr"))
	if err != nil {
		s.writeFailure(w, r, nil, err)
		return common.Address{}, false
	}
	return addr, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, apperrors.NewWithDetail(
			apperrors.ErrCodeInvalidInput,
			"Invalid request body",
			err.Error(),
			http.StatusBadRequest,
		))
		return false
	}
	return true
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, err *apperrors.AppError) {
	s.writeJSON(w, err.StatusCode, errorResponse{AppError: err})
}

// writeFailure maps err to an AppError response, attaching receipt if the
// call got far enough to produce one.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, receipt *types.Receipt, err error) {
	appErr, ok := apperrors.IsAppError(err)
	if !ok {
		logger.Error(r.Context(), "unexpected error", "error", err)
		appErr = apperrors.Internal("")
	}
	s.writeJSON(w, appErr.StatusCode, errorResponse{AppError: appErr, Receipt: receipt})
}
