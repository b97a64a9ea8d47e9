package rpc

import (
	"encoding/hex"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"salestore/core/types"
	"salestore/native/bank"
	"salestore/native/sale"
	"salestore/observability/metrics"
)

// --- store ---

type storeView struct {
	MaxCap      uint64 `json:"maxCap"`
	MinCap      uint64 `json:"minCap"`
	FirstFee    uint64 `json:"firstFee"`
	SecondFee   uint64 `json:"secondFee"`
	TotalSold   string `json:"totalSold"`
	ActiveEpoch int16  `json:"activeEpoch"`
	Status      uint8  `json:"status"`
}

func (s *Server) handleGetStore(w http.ResponseWriter, r *http.Request) {
	var view *storeView
	err := s.view(func(kvState *sale.KVState, _ *bank.Ledger) error {
		store, ok, err := kvState.StoreGet()
		if err != nil {
			return err
		}
		if !ok {
			return sale.ErrStoreNotFound
		}
		view = &storeView{
			MaxCap:      store.MaxCap,
			MinCap:      store.MinCap,
			FirstFee:    store.FirstFee,
			SecondFee:   store.SecondFee,
			TotalSold:   store.TotalSold.String(),
			ActiveEpoch: store.ActiveEpoch,
			Status:      uint8(store.Status),
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleInitStore(w http.ResponseWriter, r *http.Request) {
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.InitStore(caller)
	})
}

func (s *Server) handleSetStoreCap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxCap uint64 `json:"maxCap"`
		MinCap uint64 `json:"minCap"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.SetStoreCap(caller, req.MaxCap, req.MinCap)
	})
}

func (s *Server) handleSetStoreFee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstFee  uint64 `json:"firstFee"`
		SecondFee uint64 `json:"secondFee"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.SetStoreFee(caller, req.FirstFee, req.SecondFee)
	})
}

func (s *Server) handleEnableStore(w http.ResponseWriter, r *http.Request) {
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.EnableStore(caller)
	})
}

func (s *Server) handleDisableStore(w http.ResponseWriter, r *http.Request) {
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.DisableStore(caller)
	})
}

// --- epochs ---

type epochView struct {
	ID          int16  `json:"id"`
	Price       uint64 `json:"price"`
	TotalSupply string `json:"totalSupply"`
	TotalSold   string `json:"totalSold"`
	Status      uint8  `json:"status"`
}

func epochIDParam(r *http.Request) (int16, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 16)
	if err != nil {
		return 0, false
	}
	return int16(id), true
}

func (s *Server) handleGetEpoch(w http.ResponseWriter, r *http.Request) {
	id, ok := epochIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid epoch id", Code: "BAD_REQUEST"})
		return
	}
	var view *epochView
	err := s.view(func(kvState *sale.KVState, _ *bank.Ledger) error {
		epoch, ok, err := kvState.EpochGet(id)
		if err != nil {
			return err
		}
		if !ok {
			return sale.ErrEpochNotFound
		}
		view = &epochView{
			ID:          epoch.ID,
			Price:       epoch.Price,
			TotalSupply: epoch.TotalSupply.String(),
			TotalSold:   epoch.TotalSold.String(),
			Status:      uint8(epoch.Status),
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleInitEpoch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          int16  `json:"id"`
		Price       uint64 `json:"price"`
		TotalSupply string `json:"totalSupply"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}
	supply, ok := new(big.Int).SetString(req.TotalSupply, 10)
	if !ok || supply.Sign() < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid totalSupply", Code: "BAD_REQUEST"})
		return
	}
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.InitEpoch(caller, req.ID, req.Price, supply)
	})
}

func (s *Server) handleSetEpochPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := epochIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid epoch id", Code: "BAD_REQUEST"})
		return
	}
	var req struct {
		Price uint64 `json:"price"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.SetEpochPrice(caller, id, req.Price)
	})
}

func (s *Server) handleSetEpochSupply(w http.ResponseWriter, r *http.Request) {
	id, ok := epochIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid epoch id", Code: "BAD_REQUEST"})
		return
	}
	var req struct {
		TotalSupply string `json:"totalSupply"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}
	supply, ok := new(big.Int).SetString(req.TotalSupply, 10)
	if !ok || supply.Sign() < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid totalSupply", Code: "BAD_REQUEST"})
		return
	}
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.SetEpochSupply(caller, id, supply)
	})
}

func (s *Server) handleEnableEpoch(w http.ResponseWriter, r *http.Request) {
	id, ok := epochIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid epoch id", Code: "BAD_REQUEST"})
		return
	}
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.EnableEpoch(caller, id)
	})
}

func (s *Server) handleDisableEpoch(w http.ResponseWriter, r *http.Request) {
	id, ok := epochIDParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid epoch id", Code: "BAD_REQUEST"})
		return
	}
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.DisableEpoch(caller, id)
	})
}

// --- promoters ---

type promoterView struct {
	FirstFee     uint64 `json:"firstFee"`
	SecondFee    uint64 `json:"secondFee"`
	NativeAmount string `json:"nativeAmount"`
	USDCAmount   string `json:"usdcAmount"`
	USDTAmount   string `json:"usdtAmount"`
	AssetAmount  string `json:"assetAmount"`
	Enabled      bool   `json:"enabled"`
	Escrow       string `json:"escrow"`
}

func (s *Server) handleGetPromoter(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(chi.URLParam(r, "address"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid promoter address", Code: "BAD_REQUEST"})
		return
	}
	var view *promoterView
	err := s.view(func(kvState *sale.KVState, _ *bank.Ledger) error {
		promoter, ok, err := kvState.PromoterGet(addr)
		if err != nil {
			return err
		}
		if !ok {
			return sale.ErrPromoterNotFound
		}
		escrow := sale.EscrowAddress(addr)
		view = &promoterView{
			FirstFee:     promoter.FirstFee,
			SecondFee:    promoter.SecondFee,
			NativeAmount: promoter.NativeAmount.String(),
			USDCAmount:   promoter.USDCAmount.String(),
			USDTAmount:   promoter.USDTAmount.String(),
			AssetAmount:  promoter.AssetAmount.String(),
			Enabled:      promoter.Enabled,
			Escrow:       hex.EncodeToString(escrow[:]),
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleInitPromoter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address   string `json:"address"`
		FirstFee  uint64 `json:"firstFee"`
		SecondFee uint64 `json:"secondFee"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}
	addr, ok := parseAddressParam(req.Address)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid promoter address", Code: "BAD_REQUEST"})
		return
	}
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.InitPromoter(caller, addr, req.FirstFee, req.SecondFee)
	})
}

func (s *Server) handleSetPromoterFee(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(chi.URLParam(r, "address"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid promoter address", Code: "BAD_REQUEST"})
		return
	}
	var req struct {
		FirstFee  uint64 `json:"firstFee"`
		SecondFee uint64 `json:"secondFee"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.SetPromoterFee(caller, addr, req.FirstFee, req.SecondFee)
	})
}

func (s *Server) handleEnablePromoter(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(chi.URLParam(r, "address"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid promoter address", Code: "BAD_REQUEST"})
		return
	}
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.EnablePromoter(caller, addr)
	})
}

func (s *Server) handleDisablePromoter(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(chi.URLParam(r, "address"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid promoter address", Code: "BAD_REQUEST"})
		return
	}
	s.adminOp(w, r, func(engine *sale.Engine, caller [20]byte) error {
		return engine.DisablePromoter(caller, addr)
	})
}

// --- deposits ---

func (s *Server) handleDepositNative(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Promoter string `json:"promoter"`
		Epoch    int16  `json:"epoch"`
		Amount   uint64 `json:"amount"`
		FeedID   string `json:"feedId"`
		Treasury string `json:"treasury"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}
	promoter, ok := parseAddressParam(req.Promoter)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid promoter address", Code: "BAD_REQUEST"})
		return
	}
	treasury, ok := parseAddressParam(req.Treasury)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid treasury address", Code: "BAD_REQUEST"})
		return
	}
	err = s.execute(func(engine *sale.Engine, _ *bank.Ledger) error {
		return engine.DepositNative(caller, promoter, req.Epoch, req.Amount, req.FeedID, treasury)
	})
	if err != nil {
		_, code := classify(err)
		metrics.Sale().ObserveDepositRejected(code)
		s.writeError(w, err)
		return
	}
	metrics.Sale().ObserveDeposit(sale.AssetNative)
	s.recordEpochSold(req.Epoch)
	s.log.Info("deposit settled", "asset", sale.AssetNative, "epoch", req.Epoch, "amount", req.Amount)
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

func (s *Server) handleDepositStable(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Asset    string `json:"asset"`
		Promoter string `json:"promoter"`
		Epoch    int16  `json:"epoch"`
		Amount   uint64 `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}
	promoter, ok := parseAddressParam(req.Promoter)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid promoter address", Code: "BAD_REQUEST"})
		return
	}
	asset, err := sale.NormalizeStableAsset(req.Asset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	err = s.execute(func(engine *sale.Engine, _ *bank.Ledger) error {
		return engine.DepositStable(asset, caller, promoter, req.Epoch, req.Amount)
	})
	if err != nil {
		_, code := classify(err)
		metrics.Sale().ObserveDepositRejected(code)
		s.writeError(w, err)
		return
	}
	metrics.Sale().ObserveDeposit(asset)
	s.recordEpochSold(req.Epoch)
	s.log.Info("deposit settled", "asset", asset, "epoch", req.Epoch, "amount", req.Amount)
	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

// recordEpochSold refreshes the sold-units gauge after a settled deposit.
func (s *Server) recordEpochSold(epochID int16) {
	_ = s.view(func(kvState *sale.KVState, _ *bank.Ledger) error {
		epoch, ok, err := kvState.EpochGet(epochID)
		if err != nil || !ok {
			return err
		}
		metrics.Sale().SetEpochSold(strconv.FormatInt(int64(epochID), 10), epoch.TotalSold)
		return nil
	})
}

// --- withdrawals ---

func (s *Server) handleWithdrawNative(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	err = s.execute(func(engine *sale.Engine, _ *bank.Ledger) error {
		return engine.WithdrawNative(caller)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.Sale().ObserveWithdrawal(sale.AssetNative)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWithdrawStable(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Asset string `json:"asset"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}
	asset, err := sale.NormalizeStableAsset(req.Asset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	err = s.execute(func(engine *sale.Engine, _ *bank.Ledger) error {
		return engine.WithdrawStable(asset, caller)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.Sale().ObserveWithdrawal(asset)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- bank ---

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, err := callerAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.gate.Authorize(caller); err != nil {
		s.writeError(w, err)
		return
	}
	var req struct {
		Address string `json:"address"`
		Asset   string `json:"asset"`
		Amount  string `json:"amount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "BAD_REQUEST"})
		return
	}
	addr, ok := parseAddressParam(req.Address)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid address", Code: "BAD_REQUEST"})
		return
	}
	asset, err := sale.NormalizeAsset(req.Asset)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() < 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid amount", Code: "BAD_REQUEST"})
		return
	}
	err = s.execute(func(_ *sale.Engine, ledger *bank.Ledger) error {
		return ledger.Mint(addr, asset, amount)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(chi.URLParam(r, "address"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid address", Code: "BAD_REQUEST"})
		return
	}
	asset, err := sale.NormalizeAsset(chi.URLParam(r, "asset"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var balance *big.Int
	err = s.view(func(_ *sale.KVState, ledger *bank.Ledger) error {
		value, err := ledger.Balance(addr, asset)
		if err != nil {
			return err
		}
		balance = value
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

// --- events ---

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	recent := s.recorder.Recent()
	out := make([]*types.Event, 0, len(recent))
	for _, evt := range recent {
		carrier, ok := evt.(interface{ Event() *types.Event })
		if !ok {
			continue
		}
		out = append(out, carrier.Event())
	}
	writeJSON(w, http.StatusOK, out)
}

// adminOp runs a gated configuration mutation for the request caller.
func (s *Server) adminOp(w http.ResponseWriter, r *http.Request, op func(engine *sale.Engine, caller [20]byte) error) {
	caller, err := callerAddress(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	err = s.execute(func(engine *sale.Engine, _ *bank.Ledger) error {
		return op(engine, caller)
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
