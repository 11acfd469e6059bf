package domain

import "time"

// Account — известный системе аккаунт. Регистрация и аутентификация живут
// во внешнем сервисе, здесь только то, что нужно для резолва grantee по email.
type Account struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Username  string    `json:"username" db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
