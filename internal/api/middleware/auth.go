package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"signaltrader/pkg/crypto"
)

// PasswordAuth защищает эндпоинт паролем через HTTP Basic Auth
//
// passwordHash - bcrypt-хеш из STATUS_PASSWORD_HASH; пустой хеш
// отключает авторизацию (локальное развертывание). Имя пользователя
// не проверяется, значим только пароль.
func PasswordAuth(passwordHash string, log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if passwordHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			_, password, ok := r.BasicAuth()
			if !ok || !crypto.CheckPasswordMatch(password, passwordHash) {
				log.Warn("unauthorized status request", zap.String("remote", r.RemoteAddr))
				w.Header().Set("WWW-Authenticate", `Basic realm="signaltrader"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
