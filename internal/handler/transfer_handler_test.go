package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transfer-core/internal/handler"
	"transfer-core/internal/model"
	"transfer-core/internal/server"
	"transfer-core/internal/service/state"
	"transfer-core/pkg/errno"
	"transfer-core/pkg/monitor"
)

type stubService struct {
	st        *state.Store
	connect   error
	submit    error
	refresh   error
	submitted int
}

func newStub() *stubService {
	return &stubService{st: state.NewStore()}
}

func (s *stubService) State() *state.Store { return s.st }

func (s *stubService) ConnectWallet(context.Context) error {
	if s.connect != nil {
		return s.connect
	}
	return s.st.Update(func(snap *state.Snapshot) error {
		snap.Account = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
		snap.Phase = state.PhaseConnected
		return nil
	})
}

func (s *stubService) SubmitAsync(_ context.Context, overrides map[string]string) error {
	if s.submit != nil {
		return s.submit
	}
	err := s.st.Update(func(snap *state.Snapshot) error {
		if !snap.Phase.Stable() {
			return errno.New("submit", errno.ErrBusy, "phase %s", snap.Phase)
		}
		for name, value := range overrides {
			form, ok := snap.Form.WithField(name, value)
			if !ok {
				return errno.New("submit", errno.ErrInvalidInput, "unknown form field %q", name)
			}
			snap.Form = form
		}
		snap.Phase = state.PhaseSubmitting
		return nil
	})
	if err == nil {
		s.submitted++
	}
	return err
}

func (s *stubService) Refresh(context.Context) error { return s.refresh }

func (s *stubService) UpdateFormField(name, value string) error {
	return s.st.Update(func(snap *state.Snapshot) error {
		form, ok := snap.Form.WithField(name, value)
		if !ok {
			return errno.New("updateFormField", errno.ErrInvalidInput, "unknown form field %q", name)
		}
		snap.Form = form
		return nil
	})
}

func (s *stubService) ResetForm() {
	_ = s.st.Update(func(snap *state.Snapshot) error {
		snap.Form = model.FormState{}
		return nil
	})
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func setup(t *testing.T, svc *stubService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	return server.NewHTTPRouter(handler.NewTransferHandler(svc), monitor.NewHTTPMetrics(reg), reg)
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealthAndMetrics(t *testing.T) {
	r := setup(t, newStub())

	w, env := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Code)

	w, _ = do(t, r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestGetState(t *testing.T) {
	r := setup(t, newStub())

	w, env := do(t, r, http.MethodGet, "/api/v1/state", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap state.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, state.PhaseIdle, snap.Phase)
	assert.NotNil(t, snap.Transactions)
}

func TestConnectWallet(t *testing.T) {
	svc := newStub()
	r := setup(t, svc)

	_, env := do(t, r, http.MethodPost, "/api/v1/wallet/connect", "")
	assert.Equal(t, 0, env.Code)
	var snap state.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, state.PhaseConnected, snap.Phase)

	svc.connect = errno.New("connectWallet", errno.ErrProviderMissing, "no wallet")
	w, env := do(t, r, http.MethodPost, "/api/v1/wallet/connect", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, errno.ErrProviderMissing.Code, env.Code)
}

func TestUpdateAndResetForm(t *testing.T) {
	svc := newStub()
	r := setup(t, svc)

	_, env := do(t, r, http.MethodPut, "/api/v1/form", `{"name":"amount","value":"0.5"}`)
	require.Equal(t, 0, env.Code)
	assert.Equal(t, "0.5", svc.st.Snapshot().Form.Amount)

	_, env = do(t, r, http.MethodPut, "/api/v1/form", `{"name":"gas","value":"1"}`)
	assert.Equal(t, errno.ErrBind.Code, env.Code)

	_, env = do(t, r, http.MethodDelete, "/api/v1/form", "")
	require.Equal(t, 0, env.Code)
	assert.Empty(t, svc.st.Snapshot().Form.Amount)
}

func TestSubmit(t *testing.T) {
	svc := newStub()
	r := setup(t, svc)

	w, env := do(t, r, http.MethodPost, "/api/v1/transactions", `{"addressTo":"0x70997970C51812dc3A010C7d01b50e0d17dc79C8","amount":"0.01"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, 1, svc.submitted)

	form := svc.st.Snapshot().Form
	assert.Equal(t, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8", form.Receiver)
	assert.Equal(t, "0.01", form.Amount)
}

func TestSubmitRejectsBadAmount(t *testing.T) {
	svc := newStub()
	r := setup(t, svc)

	_, env := do(t, r, http.MethodPost, "/api/v1/transactions", `{"amount":"-3"}`)
	assert.Equal(t, errno.ErrBind.Code, env.Code)
	assert.Zero(t, svc.submitted)
}

func TestSubmitBusy(t *testing.T) {
	svc := newStub()
	svc.submit = errno.New("submit", errno.ErrBusy, "phase submitting")
	r := setup(t, svc)

	w, env := do(t, r, http.MethodPost, "/api/v1/transactions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, errno.ErrBusy.Code, env.Code)
}

func TestSubmitBusyKeepsForm(t *testing.T) {
	svc := newStub()
	require.NoError(t, svc.st.Update(func(snap *state.Snapshot) error {
		snap.Phase = state.PhaseAwaitingConfirmation
		snap.Form.Amount = "0.01"
		return nil
	}))
	before := svc.st.Snapshot()
	r := setup(t, svc)

	_, env := do(t, r, http.MethodPost, "/api/v1/transactions", `{"amount":"9","keyword":"late"}`)
	assert.Equal(t, errno.ErrBusy.Code, env.Code)

	after := svc.st.Snapshot()
	assert.Equal(t, before.Form, after.Form)
	assert.Equal(t, before.Version, after.Version)
	assert.Zero(t, svc.submitted)
}

func TestRefresh(t *testing.T) {
	svc := newStub()
	r := setup(t, svc)

	_, env := do(t, r, http.MethodPost, "/api/v1/transactions/refresh", "")
	assert.Equal(t, 0, env.Code)

	svc.refresh = errno.New("refresh", errno.ErrChainRejected, "node down")
	_, env = do(t, r, http.MethodPost, "/api/v1/transactions/refresh", "")
	assert.Equal(t, errno.ErrChainRejected.Code, env.Code)
}

func TestStreamStateSendsInitialSnapshot(t *testing.T) {
	r := setup(t, newStub())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/state/stream", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "event:state")
	assert.Contains(t, w.Body.String(), `"phase":"idle"`)
}
