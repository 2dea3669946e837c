//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

// passwordHashCost is the bcrypt floor under the race detector
func passwordHashCost() int {
	return bcrypt.MinCost
}
