package server

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pingcap-incubator/tinystm/kv/transaction/commands"
	"github.com/pingcap-incubator/tinystm/log"
	"github.com/pingcap/errors"
	"github.com/unrolled/render"
)

// respondCommand runs cmd and writes its response with status ok, or the error.
func respondCommand(rd *render.Render, w http.ResponseWriter, r *http.Request, env *commands.Env, cmd commands.Command, ok int) {
	resp, err := commands.RunCommand(r.Context(), cmd, env)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Cause(err) == commands.ErrScanUnsupported {
			status = http.StatusNotImplemented
		}
		rd.JSON(w, status, err.Error())
		return
	}
	rd.JSON(w, ok, resp)
}

type txnHandler struct {
	env *commands.Env
	rd  *render.Render
}

func newTxnHandler(env *commands.Env, rd *render.Render) *txnHandler {
	return &txnHandler{
		env: env,
		rd:  rd,
	}
}

// Submit runs the posted TxBody. A transaction which fails is still a 200, with status false in the result.
func (h *txnHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var body commands.TxBody
	if err := readJSONRespondError(h.rd, w, r.Body, &body); err != nil {
		log.Warnf("bad transaction request err=%v", err)
		return
	}
	respondCommand(h.rd, w, r, h.env, &commands.SubmitTx{TxBody: body}, http.StatusOK)
}

type valueHandler struct {
	env *commands.Env
	rd  *render.Render
}

func newValueHandler(env *commands.Env, rd *render.Render) *valueHandler {
	return &valueHandler{
		env: env,
		rd:  rd,
	}
}

func (h *valueHandler) Get(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	resp, err := commands.RunCommand(r.Context(), &commands.GetValueAt{Addr: addr}, h.env)
	if err != nil {
		h.rd.JSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	value := resp.(commands.ValueAt)
	if value.Value == nil {
		h.rd.JSON(w, http.StatusNotFound, value)
		return
	}
	h.rd.JSON(w, http.StatusOK, value)
}

// Scan lists values in address order, starting at the `start` query parameter. A `limit` above
// commands.MaxScanLimit is rejected.
func (h *valueHandler) Scan(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	cmd := &commands.Scan{Start: query.Get("start")}
	if limit := query.Get("limit"); len(limit) > 0 {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 || n > commands.MaxScanLimit {
			h.rd.JSON(w, http.StatusBadRequest, "invalid limit")
			return
		}
		cmd.Limit = n
	}
	respondCommand(h.rd, w, r, h.env, cmd, http.StatusOK)
}

type allocHandler struct {
	env *commands.Env
	rd  *render.Render
}

func newAllocHandler(env *commands.Env, rd *render.Render) *allocHandler {
	return &allocHandler{
		env: env,
		rd:  rd,
	}
}

func (h *allocHandler) Reallocate(w http.ResponseWriter, r *http.Request) {
	respondCommand(h.rd, w, r, h.env, &commands.ReallocateMemory{}, http.StatusOK)
}

type statusHandler struct {
	env *commands.Env
	rd  *render.Render
}

func newStatusHandler(env *commands.Env, rd *render.Render) *statusHandler {
	return &statusHandler{
		env: env,
		rd:  rd,
	}
}

func (h *statusHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondCommand(h.rd, w, r, h.env, &commands.GetStatus{}, http.StatusOK)
}

type logHandler struct {
	rd *render.Render
}

func newLogHandler(rd *render.Render) *logHandler {
	return &logHandler{
		rd: rd,
	}
}

// Handle sets the log level to the posted JSON string.
func (h *logHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var level string
	if err := readJSONRespondError(h.rd, w, r.Body, &level); err != nil {
		return
	}
	log.SetLevelByString(level)
	h.rd.JSON(w, http.StatusOK, log.GetLevel())
}
