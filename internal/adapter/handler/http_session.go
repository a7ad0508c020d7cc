package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/core/service"
	"github.com/rl1809/pizzeria/internal/core/wizard"
)

func (h *HTTPHandler) sessionRoutes(r chi.Router) {
	r.Post("/", h.CreateSession)
	r.Route("/{sid}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)

		r.Post("/size", h.SelectSize)
		r.Post("/flavors/{flavorID}/toggle", h.step(func(s *wizard.Session, r *http.Request) bool {
			return s.ToggleFlavor(chi.URLParam(r, "flavorID"))
		}))
		r.Post("/flavors/confirm", h.step(func(s *wizard.Session, _ *http.Request) bool { return s.ConfirmFlavors() }))
		r.Post("/combos", h.step(func(s *wizard.Session, _ *http.Request) bool { return s.OpenCombos() }))
		r.Post("/combos/{comboID}", h.step(func(s *wizard.Session, r *http.Request) bool {
			return s.SelectCombo(chi.URLParam(r, "comboID"))
		}))
		r.Post("/sweet/size", h.SelectSweetSize)
		r.Post("/sweet/flavors/{flavorID}/toggle", h.step(func(s *wizard.Session, r *http.Request) bool {
			return s.ToggleSweetFlavor(chi.URLParam(r, "flavorID"))
		}))
		r.Post("/sweet/confirm", h.step(func(s *wizard.Session, _ *http.Request) bool { return s.ConfirmSweetFlavors() }))
		r.Post("/sweet/skip", h.step(func(s *wizard.Session, _ *http.Request) bool { return s.SkipSweet() }))
		r.Post("/customize", h.Customize)
		r.Post("/skip-to-drinks", h.step(func(s *wizard.Session, _ *http.Request) bool { return s.SkipToDrinks() }))
		r.Post("/drinks", h.ConfirmDrinks)
		r.Post("/delivery", h.SelectDelivery)
		r.Post("/go-to-delivery", h.step(func(s *wizard.Session, _ *http.Request) bool { return s.GoToDelivery() }))
		r.Post("/checkout", h.FillCheckout)
		r.Post("/back", h.step(func(s *wizard.Session, _ *http.Request) bool { return s.Back() }))
		r.Post("/submit", h.Submit)
		r.Delete("/cart/{index}", h.step(func(s *wizard.Session, r *http.Request) bool {
			i, ok := pathIndex(r, "index")
			return ok && s.RemoveCartItem(i)
		}))
	})
}

type stepRejected struct {
	Error   string      `json:"error"`
	Session wizard.View `json:"session"`
}

// run applies op to the session and writes the resulting view. A rejected
// operation leaves the session unchanged and answers 409 with its view.
func (h *HTTPHandler) run(w http.ResponseWriter, r *http.Request, op func(*wizard.Session) bool) {
	var (
		view wizard.View
		ok   bool
	)
	err := h.sessions.With(chi.URLParam(r, "sid"), func(s *wizard.Session) error {
		ok = op(s)
		view = s.View()
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusConflict, stepRejected{Error: "operation not allowed at step " + string(view.Step), Session: view})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) step(op func(*wizard.Session, *http.Request) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.run(w, r, func(s *wizard.Session) bool { return op(s, r) })
	}
}

func (h *HTTPHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.sessions.Create(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *HTTPHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, func(*wizard.Session) bool { return true })
}

func (h *HTTPHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(chi.URLParam(r, "sid"))
	w.WriteHeader(http.StatusNoContent)
}

type sizeRequest struct {
	Size  domain.Size `json:"size"`
	Label string      `json:"label"`
}

func (h *HTTPHandler) SelectSize(w http.ResponseWriter, r *http.Request) {
	var req sizeRequest
	if !decode(w, r, &req) {
		return
	}
	h.run(w, r, func(s *wizard.Session) bool { return s.SelectSize(req.Size, req.Label) })
}

func (h *HTTPHandler) SelectSweetSize(w http.ResponseWriter, r *http.Request) {
	var req sizeRequest
	if !decode(w, r, &req) {
		return
	}
	h.run(w, r, func(s *wizard.Session) bool { return s.SelectSweetSize(req.Size, req.Label) })
}

func (h *HTTPHandler) Customize(w http.ResponseWriter, r *http.Request) {
	var c domain.Customization
	if !decode(w, r, &c) {
		return
	}
	h.run(w, r, func(s *wizard.Session) bool { return s.ConfirmCustomization(c) })
}

type drinksRequest struct {
	Selections []wizard.DrinkSelection `json:"selections"`
}

func (h *HTTPHandler) ConfirmDrinks(w http.ResponseWriter, r *http.Request) {
	var req drinksRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	h.run(w, r, func(s *wizard.Session) bool { return s.ConfirmDrinks(req.Selections...) })
}

type deliveryRequest struct {
	DeliveryType domain.DeliveryType `json:"deliveryType"`
}

func (h *HTTPHandler) SelectDelivery(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if !decode(w, r, &req) {
		return
	}
	h.run(w, r, func(s *wizard.Session) bool { return s.SelectDeliveryType(req.DeliveryType) })
}

type checkoutRequest struct {
	Name          *string              `json:"name"`
	Phone         *string              `json:"phone"`
	Address       *string              `json:"address"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	CashChange    string               `json:"cashChange"`
}

// FillCheckout updates the checkout form. Absent fields are left as they
// are; cashChange is a decimal amount such as "50" or "50,00".
func (h *HTTPHandler) FillCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decode(w, r, &req) {
		return
	}
	if req.PaymentMethod != "" {
		if _, ok := domain.ParsePaymentMethod(string(req.PaymentMethod)); !ok {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid paymentMethod"})
			return
		}
	}
	var cash *domain.Money
	if strings.TrimSpace(req.CashChange) != "" {
		m, err := domain.ParseMoney(req.CashChange)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid cashChange"})
			return
		}
		cash = &m
	}

	h.run(w, r, func(s *wizard.Session) bool {
		if s.Step() != wizard.StepCheckout {
			return false
		}
		view := s.View()
		name, phone := view.Customer.Name, view.Customer.Phone
		if req.Name != nil {
			name = *req.Name
		}
		if req.Phone != nil {
			phone = *req.Phone
		}
		ok := s.SetCustomer(name, phone)
		if req.Address != nil {
			ok = s.SetAddress(*req.Address) && ok
		}
		if req.PaymentMethod != "" {
			ok = s.SetPaymentMethod(req.PaymentMethod) && ok
		}
		if cash != nil {
			ok = s.SetCashChange(cash) && ok
		}
		return ok
	})
}

func (h *HTTPHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)
	guestID := r.Header.Get(headerGuestID)
	order, err := service.Checkout(r.Context(), h.sessions, h.orders,
		chi.URLParam(r, "sid"), r.Header.Get(headerRequestID), userID, guestID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}
