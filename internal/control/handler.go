package control

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/pquerna/otp/totp"
)

// OTPHeader carries the operator's TOTP code.
const OTPHeader = "X-Control-OTP"

// Halter is the manual halt switch toggled by /control/halt and /control/resume.
type Halter interface {
	Halt()
	Resume()
}

// Handler serves the operator control routes.
type Handler struct {
	cmds      *Channel
	lifecycle *Lifecycle
	halter    Halter
	otpSecret string
	now       func() time.Time

	// OnCommand is called after each accepted request (optional).
	OnCommand func(name string)
}

// NewHandler builds the control surface. An empty otpSecret disables the
// TOTP check. halter may be nil, in which case halt/resume return 501.
func NewHandler(cmds *Channel, lc *Lifecycle, halter Halter, otpSecret string) *Handler {
	return &Handler{
		cmds:      cmds,
		lifecycle: lc,
		halter:    halter,
		otpSecret: otpSecret,
		now:       time.Now,
	}
}

// Register mounts the routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /control/stop", h.guard("stop", func() int {
		h.cmds.Send(CmdStop)
		h.lifecycle.Stop()
		return http.StatusAccepted
	}))
	mux.HandleFunc("POST /control/force-buy", h.guard("force-buy", func() int {
		return h.enqueue(CmdForceBuy)
	}))
	mux.HandleFunc("POST /control/force-sell", h.guard("force-sell", func() int {
		return h.enqueue(CmdForceSell)
	}))
	mux.HandleFunc("POST /control/halt", h.guard("halt", func() int {
		if h.halter == nil {
			return http.StatusNotImplemented
		}
		h.halter.Halt()
		return http.StatusOK
	}))
	mux.HandleFunc("POST /control/resume", h.guard("resume", func() int {
		if h.halter == nil {
			return http.StatusNotImplemented
		}
		h.halter.Resume()
		return http.StatusOK
	}))
}

func (h *Handler) enqueue(cmd Command) int {
	if !h.cmds.Send(cmd) {
		return http.StatusServiceUnavailable
	}
	return http.StatusAccepted
}

func (h *Handler) guard(name string, fn func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.otpSecret != "" {
			code := r.Header.Get(OTPHeader)
			if code == "" || !h.validateAt(code) {
				log.Printf("[control] rejected %s: invalid otp from %s", name, r.RemoteAddr)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid otp"})
				return
			}
		}
		status := fn()
		if status < 300 {
			log.Printf("[control] accepted %s from %s", name, r.RemoteAddr)
			if h.OnCommand != nil {
				h.OnCommand(name)
			}
		}
		writeJSON(w, status, map[string]string{"command": name, "status": http.StatusText(status)})
	}
}

// validateAt accepts the current 30s step and one step either side.
func (h *Handler) validateAt(code string) bool {
	ok, err := totp.ValidateCustom(code, h.otpSecret, h.now(), totp.ValidateOpts{
		Period: 30,
		Skew:   1,
		Digits: 6,
	})
	return err == nil && ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
