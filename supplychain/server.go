package supplychain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	pathHealth       = "/health"
	pathProductCount = "/products/count"
	pathProduct      = "/products/{id:[0-9]+}"
)

var (
	errServerAlreadyRunning = errors.New("server already running")
	errInvalidProductID     = errors.New("invalid product id")
)

// ProductReader is the read side of Client.
type ProductReader interface {
	GetProduct(ctx context.Context, id uint64) (*Product, error)
	ProductCount(ctx context.Context) (uint64, error)
	CheckConnection(ctx context.Context) (*ConnectionStatus, error)
}

// Server exposes the contract's products as JSON.
type Server struct {
	listenAddr string
	log        *logrus.Entry
	reader     ProductReader

	mu  sync.Mutex
	srv *http.Server
}

func NewServer(log *logrus.Entry, listenAddr string, reader ProductReader) (*Server, error) {
	return &Server{
		listenAddr: listenAddr,
		log:        log,
		reader:     reader,
	}, nil
}

// StartHTTPServer blocks serving requests until Shutdown is called.
func (s *Server) StartHTTPServer() error {
	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errServerAlreadyRunning
	}
	s.srv = &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.getRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) getRouter() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleRoot)
	r.HandleFunc(pathHealth, s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc(pathProductCount, s.handleProductCount).Methods(http.MethodGet)
	r.HandleFunc(pathProduct, s.handleGetProduct).Methods(http.MethodGet)

	r.Use(mux.CORSMethodMiddleware(r))
	loggedRouter := httplogger.LoggingMiddlewareLogrus(s.log, r)
	return loggedRouter
}

func (s *Server) handleRoot(w http.ResponseWriter, req *http.Request) {
	s.writeJSON(w, http.StatusOK, rootResp{Endpoints: []string{pathHealth, pathProductCount, pathProduct}})
}

func (s *Server) handleHealth(w http.ResponseWriter, req *http.Request) {
	status, err := s.reader.CheckConnection(req.Context())
	if err != nil {
		s.log.WithError(err).Warn("connection check failed")
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	s.writeJSON(w, http.StatusOK, healthResp{
		Connected:   true,
		ChainID:     status.ChainID.String(),
		BlockNumber: status.BlockNumber,
		Account:     status.Account.Hex(),
		Balance:     status.BalanceEther(),
	})
}

func (s *Server) handleProductCount(w http.ResponseWriter, req *http.Request) {
	count, err := s.reader.ProductCount(req.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, countResp{Count: count})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, req *http.Request) {
	log := s.log.WithField("method", "getProduct")

	id, err := strconv.ParseUint(mux.Vars(req)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidProductID)
		return
	}

	product, err := s.reader.GetProduct(req.Context(), id)
	if err != nil {
		log.WithError(err).WithField("id", id).Warn("failed to get product")
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newProductResp(product))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).WithField("status", status).Error("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResp{Status: status, Error: err.Error()})
}

type errorResp struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

type rootResp struct {
	Endpoints []string `json:"endpoints"`
}

type healthResp struct {
	Connected   bool   `json:"connected"`
	ChainID     string `json:"chainId"`
	BlockNumber uint64 `json:"blockNumber"`
	Account     string `json:"account"`
	Balance     string `json:"balance"`
}

type countResp struct {
	Count uint64 `json:"count"`
}

type productResp struct {
	ID            uint64 `json:"id"`
	Name          string `json:"name"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	ScheduledDays uint64 `json:"scheduledDays"`
	OrderTotal    string `json:"orderTotal"`
	AddedBy       string `json:"addedBy"`
}

func newProductResp(p *Product) productResp {
	orderTotal := "0"
	if p.OrderTotal != nil {
		orderTotal = p.OrderTotal.ToBig().String()
	}
	return productResp{
		ID:            p.ID,
		Name:          p.Name,
		Origin:        p.Origin,
		Destination:   p.Destination,
		ScheduledDays: p.ScheduledDays,
		OrderTotal:    orderTotal,
		AddedBy:       p.AddedBy.Hex(),
	}
}
