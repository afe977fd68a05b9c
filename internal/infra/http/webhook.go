package http

import (
	"crypto/hmac"
	"net/http"
)

// SecretTokenHeader: заголовок, в котором Telegram передаёт секрет вебхука.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookSecretMiddleware отклоняет запросы без правильного секрета. Пустой секрет выключает проверку.
func WebhookSecretMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(SecretTokenHeader)
			if !hmac.Equal([]byte(got), []byte(secret)) {
				http.Error(w, "секрет недействителен", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
