package handler

import (
	"log"
	"net/http"

	"nimbusdrive/internal/auth"
	"nimbusdrive/internal/repository"
)

// AccountProvisioner создает или обновляет запись аккаунта при каждом
// аутентифицированном запросе. Аккаунты живут во внешнем сервисе, токен
// приносит их проекцию. Без записи аккаунта нельзя резолвить гранты по
// email, поэтому проекция поддерживается здесь.
//
// Запрос без валидного токена пропускается дальше: хендлеры сами отвечают
// 401 там, где авторизация обязательна.
func AccountProvisioner(verifier *auth.Verifier, accountRepo *repository.AccountRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := verifier.VerifyRequest(r)
			if err == nil {
				if err := accountRepo.EnsureExists(r.Context(), identity.ID, identity.Email, identity.Username); err != nil {
					log.Printf("[AccountProvisioner] Failed to provision account %s: %v", identity.ID, err)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
