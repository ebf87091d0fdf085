// Package validation содержит функции валидации входных данных.
package validation

import "strings"

// IsValidEmail выполняет простую структурную проверку адреса электронной почты.
func IsValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}

	local, domain := email[:at], email[at+1:]
	if strings.ContainsAny(local, " \t") {
		return false
	}

	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}

	return !strings.ContainsAny(domain, " \t")
}
