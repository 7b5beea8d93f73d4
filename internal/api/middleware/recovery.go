package middleware

import (
	"log/slog"
	"net/http"

	"github.com/wjz20050714-stack/JIFEN/internal/api/apierr"
	"github.com/wjz20050714-stack/JIFEN/internal/middleware"
)

// Recovery creates panic recovery middleware that answers with a JSON 500
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		apierr.WriteError(w, apierr.NewInternalError())
	})
}
