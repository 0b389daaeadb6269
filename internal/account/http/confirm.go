package http

import (
	"net/http"

	"github.com/keyhavenhq/accountd/internal/account/rpcerr"
	"github.com/keyhavenhq/accountd/internal/account/service"
	"github.com/keyhavenhq/accountd/pkg/httpx"
)

// confirmResponse is the body served to the browser following the mailed
// confirmation link.
type confirmResponse struct {
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// ConfirmHandler finalizes a registration from the emailed link:
// GET /confirm/register?email=<e>&token=<t>.
func ConfirmHandler(registration *service.RegistrationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		token := r.URL.Query().Get("token")
		if email == "" || token == "" {
			missing := "email"
			if email != "" {
				missing = "token"
			}
			httpx.WriteJSON(w, http.StatusBadRequest, confirmResponse{
				Message: "missing parameter",
				Error:   map[string]any{"parameter": missing},
			})
			return
		}

		result, err := registration.ConfirmRegister(r.Context(), email, token)
		if err != nil {
			// Unknown user, wrong token and already-confirmed all land here
			// with the same 404; the page cannot be used to probe accounts.
			status := http.StatusNotFound
			rpcErr, ok := rpcerr.From(err)
			if !ok {
				status = http.StatusInternalServerError
				rpcErr = rpcerr.Internal()
			}
			httpx.WriteJSON(w, status, confirmResponse{
				Message: rpcErr.Message,
				Error:   rpcErr.Data,
			})
			return
		}

		httpx.WriteJSON(w, http.StatusOK, confirmResponse{
			Message: "registration confirmed",
			Result:  result,
		})
	}
}
