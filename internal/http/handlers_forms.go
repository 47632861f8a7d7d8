package http

import (
	"errors"
	"net/http"

	"moneymanager/internal/core"
	"moneymanager/internal/form"
	applog "moneymanager/internal/log"
)

const (
	formExpiredMessage    = "This form has expired, please open it again"
	submitInFlightMessage = "This transaction is already being saved"
)

// lookupForm resolves the path token to its controller, answering 410 when
// the token is forged, expired or already closed.
func (s *Server) lookupForm(w http.ResponseWriter, r *http.Request) (*form.Controller, string, bool) {
	token := r.PathValue("token")
	c, err := s.forms.Get(token)
	if err != nil {
		if !errors.Is(err, form.ErrFormNotFound) && !errors.Is(err, form.ErrInvalidToken) {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Form lookup failed", applog.FieldError, err)
		}
		GoneError(formExpiredMessage).Write(w)
		return nil, token, false
	}
	return c, token, true
}

// apply sets the posted values. Edit forms keep their type, so a posted
// type is ignored there.
func apply(c *form.Controller, values map[string]string) error {
	if c.Mode() == form.ModeEdit {
		delete(values, form.FieldType)
	}
	return c.Apply(values)
}

// handleFormFields applies changed inputs and re-renders the form. A type
// switch resets dependent fields, so the whole form is swapped.
func (s *Server) handleFormFields(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, token, ok := s.lookupForm(w, r)
	if !ok {
		return
	}
	values, err := FormFields(r)
	if err != nil {
		BadRequestError("Malformed form data").Write(w)
		return
	}
	s.ensureAccounts(ctx, c)

	switch err := apply(c, values); {
	case err == nil:
	case errors.Is(err, form.ErrFormClosed):
		GoneError(formExpiredMessage).Write(w)
		return
	case errors.Is(err, core.ErrInvalidType):
		BadRequestError("Unknown transaction type").Write(w)
		return
	default:
		applog.FromContext(ctx).WarnContext(ctx, "Form field rejected",
			applog.FieldFormToken, token, applog.FieldError, err)
		BadRequestError("Unknown form field").Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "form", c.View())
}

// handleFormSubmit applies the posted values and submits. Validation and
// backend failures re-render the form with what the user typed.
func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, token, ok := s.lookupForm(w, r)
	if !ok {
		return
	}
	// a repeated click must not touch the state being saved
	if c.InFlight() {
		ConflictError(submitInFlightMessage).Write(w)
		return
	}
	values, err := FormFields(r)
	if err != nil {
		BadRequestError("Malformed form data").Write(w)
		return
	}
	s.ensureAccounts(ctx, c)
	if err := apply(c, values); err != nil {
		if errors.Is(err, form.ErrFormClosed) {
			GoneError(formExpiredMessage).Write(w)
			return
		}
		BadRequestError("Invalid form data").Write(w)
		return
	}

	tx, err := c.Submit(ctx)
	var verr *core.ValidationError
	switch {
	case err == nil:
		s.forms.Close(token)
		view := c.View()
		resp := NewHTMXResponse().
			TriggerTransactionSaved(tx.ID, tx.Type, view.Mode.String()).
			TriggerSuccessNotification(form.SavedNotice)
		s.renderTo(w, r, resp, "form", view)

	case errors.Is(err, form.ErrSubmitInFlight):
		ConflictError(submitInFlightMessage).Write(w)

	case errors.Is(err, form.ErrFormClosed):
		// closed while the request was in flight; the result is discarded
		GoneError(formExpiredMessage).Write(w)

	case errors.As(err, &verr):
		s.render(w, r, http.StatusUnprocessableEntity, "form", c.View())

	case errors.Is(err, core.ErrNotEditable):
		s.render(w, r, http.StatusOK, "form", c.View())

	default:
		s.metrics.failed.Add(1)
		view := c.View()
		resp := NewHTMXResponse().TriggerErrorNotification(view.Notice)
		s.renderTo(w, r, resp, "form", view)
	}
}

// handleFormClose discards the form. Closing an unknown form is not an error.
func (s *Server) handleFormClose(w http.ResponseWriter, r *http.Request) {
	s.forms.Close(r.PathValue("token"))
	NewHTMXResponse().TriggerFormClosed().Write(w)
}
