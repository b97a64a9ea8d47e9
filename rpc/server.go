package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"salestore/core/events"
	"salestore/native/bank"
	"salestore/native/sale"
	"salestore/state"
)

// Server exposes the sale engine over HTTP. Every mutating request runs in
// its own state transaction: the engine operation either commits fully or
// leaves no trace.
type Server struct {
	log      *slog.Logger
	mgr      *state.Manager
	params   sale.Params
	gate     *sale.AdminGate
	oracle   *sale.OracleAdapter
	recorder *events.Recorder
	limiter  *ipLimiter
}

// Options carries the collaborators wired into a server.
type Options struct {
	Log              *slog.Logger
	Manager          *state.Manager
	Params           sale.Params
	Gate             *sale.AdminGate
	Oracle           *sale.OracleAdapter
	Recorder         *events.Recorder
	DepositPerMinute int
}

// NewServer constructs a server from the supplied options.
func NewServer(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = events.NewRecorder(0)
	}
	perMinute := opts.DepositPerMinute
	if perMinute <= 0 {
		perMinute = 120
	}
	return &Server{
		log:      log,
		mgr:      opts.Manager,
		params:   opts.Params,
		gate:     opts.Gate,
		oracle:   opts.Oracle,
		recorder: recorder,
		limiter:  newIPLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/store", s.handleGetStore)
		v1.Post("/store/init", s.handleInitStore)
		v1.Post("/store/cap", s.handleSetStoreCap)
		v1.Post("/store/fee", s.handleSetStoreFee)
		v1.Post("/store/enable", s.handleEnableStore)
		v1.Post("/store/disable", s.handleDisableStore)

		v1.Post("/epochs", s.handleInitEpoch)
		v1.Get("/epochs/{id}", s.handleGetEpoch)
		v1.Post("/epochs/{id}/price", s.handleSetEpochPrice)
		v1.Post("/epochs/{id}/supply", s.handleSetEpochSupply)
		v1.Post("/epochs/{id}/enable", s.handleEnableEpoch)
		v1.Post("/epochs/{id}/disable", s.handleDisableEpoch)

		v1.Post("/promoters", s.handleInitPromoter)
		v1.Get("/promoters/{address}", s.handleGetPromoter)
		v1.Post("/promoters/{address}/fee", s.handleSetPromoterFee)
		v1.Post("/promoters/{address}/enable", s.handleEnablePromoter)
		v1.Post("/promoters/{address}/disable", s.handleDisablePromoter)

		v1.Group(func(deposits chi.Router) {
			deposits.Use(s.rateLimit)
			deposits.Post("/deposits/native", s.handleDepositNative)
			deposits.Post("/deposits/stable", s.handleDepositStable)
		})

		v1.Post("/withdrawals/native", s.handleWithdrawNative)
		v1.Post("/withdrawals/stable", s.handleWithdrawStable)

		v1.Post("/bank/mint", s.handleMint)
		v1.Get("/bank/{address}/{asset}", s.handleBalance)

		v1.Get("/events", s.handleEvents)
	})

	return r
}

// execute runs op inside a fresh state transaction, committing only when the
// operation succeeds. Events emitted by the operation reach the recorder
// only after the commit lands.
func (s *Server) execute(op func(engine *sale.Engine, ledger *bank.Ledger) error) error {
	txn := s.mgr.Begin()
	buffer := &bufferEmitter{}
	kvState := sale.NewKVState(txn)
	ledger := bank.NewLedger(txn)
	engine := sale.NewEngine(s.params)
	engine.SetState(kvState)
	engine.SetGate(s.gate)
	engine.SetOracle(s.oracle)
	engine.SetBank(ledger)
	engine.SetEmitter(buffer)
	if err := op(engine, ledger); err != nil {
		txn.Abort()
		return err
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	buffer.flush(s.recorder)
	return nil
}

// view runs op against a read-only snapshot of state.
func (s *Server) view(op func(kvState *sale.KVState, ledger *bank.Ledger) error) error {
	txn := s.mgr.Begin()
	defer txn.Abort()
	return op(sale.NewKVState(txn), bank.NewLedger(txn))
}

// bufferEmitter holds events until the surrounding transaction commits.
type bufferEmitter struct {
	buffered []events.Event
}

func (b *bufferEmitter) Emit(evt events.Event) {
	b.buffered = append(b.buffered, evt)
}

func (b *bufferEmitter) flush(target events.Emitter) {
	for _, evt := range b.buffered {
		target.Emit(evt)
	}
	b.buffered = nil
}

// --- request plumbing ---

const callerHeader = "X-Caller-Address"

var errMissingCaller = errors.New("rpc: missing or invalid caller address")

func callerAddress(r *http.Request) ([20]byte, error) {
	raw := r.Header.Get(callerHeader)
	if !ethcommon.IsHexAddress(raw) {
		return [20]byte{}, errMissingCaller
	}
	return [20]byte(ethcommon.HexToAddress(raw)), nil
}

func parseAddressParam(value string) ([20]byte, bool) {
	if !ethcommon.IsHexAddress(value) {
		return [20]byte{}, false
	}
	return [20]byte(ethcommon.HexToAddress(value)), true
}

func decodeBody(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

// classify maps engine errors onto the transport taxonomy.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, sale.ErrUnauthorized):
		return http.StatusForbidden, "AUTHORIZATION"
	case errors.Is(err, sale.ErrStoreNotFound),
		errors.Is(err, sale.ErrEpochNotFound),
		errors.Is(err, sale.ErrPromoterNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, sale.ErrStoreEnabled),
		errors.Is(err, sale.ErrStoreNotEnabled),
		errors.Is(err, sale.ErrEpochEnabled),
		errors.Is(err, sale.ErrEpochNotEnabled),
		errors.Is(err, sale.ErrInactiveEpoch):
		return http.StatusConflict, "LIFECYCLE_VIOLATION"
	case errors.Is(err, sale.ErrCapOrder),
		errors.Is(err, sale.ErrFeeTooLarge),
		errors.Is(err, sale.ErrStoreExists),
		errors.Is(err, sale.ErrEpochExists),
		errors.Is(err, sale.ErrPromoterExists),
		errors.Is(err, sale.ErrUnsupportedAsset),
		errors.Is(err, sale.ErrInvalidAmount),
		errors.Is(err, errMissingCaller):
		return http.StatusBadRequest, "CONFIGURATION_INVALID"
	case errors.Is(err, sale.ErrMaxCapExceeded),
		errors.Is(err, sale.ErrMinCapNotReached),
		errors.Is(err, sale.ErrSupplyExceeded),
		errors.Is(err, sale.ErrAmountOverflow):
		return http.StatusUnprocessableEntity, "CAPACITY_EXCEEDED"
	case errors.Is(err, sale.ErrWrongPriceFeed):
		return http.StatusBadRequest, "ORACLE_INVALID"
	case errors.Is(err, sale.ErrPriceStale):
		return http.StatusServiceUnavailable, "ORACLE_INVALID"
	case errors.Is(err, sale.ErrWrongTreasury):
		return http.StatusBadRequest, "DESTINATION_INVALID"
	case errors.Is(err, sale.ErrPromoterNoFunds):
		return http.StatusConflict, "NO_FUNDS"
	case errors.Is(err, bank.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "NO_FUNDS"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// --- per-client rate limiting ---

type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPLimiter(limit rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{limiters: make(map[string]*rate.Limiter), limit: limit, burst: burst}
}

func (l *ipLimiter) allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiter.allow(host) {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded", Code: "RATE_LIMITED"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
