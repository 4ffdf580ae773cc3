package mockapi

import (
	"crypto/rand"
	"crypto/subtle"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	hashTime    uint32 = 1
	hashMemory  uint32 = 8 * 1024
	hashThreads uint8  = 1
	hashKeyLen  uint32 = 32
	saltLen            = 16
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "dispatch-desk"

type User struct {
	ID        int
	Email     string
	Role      int
	FirstName string
	LastName  string

	salt []byte
	hash []byte
}

func newUser(id int, email string, role int, first, last, password string) User {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		panic(err)
	}
	return User{
		ID:        id,
		Email:     email,
		Role:      role,
		FirstName: first,
		LastName:  last,
		salt:      salt,
		hash:      argon2.IDKey([]byte(password), salt, hashTime, hashMemory, hashThreads, hashKeyLen),
	}
}

func (u User) checkPassword(password string) bool {
	got := argon2.IDKey([]byte(password), u.salt, hashTime, hashMemory, hashThreads, hashKeyLen)
	return subtle.ConstantTimeCompare(got, u.hash) == 1
}

// SeedUsers returns a super-admin, an admin and a customer account; only
// the first two are admitted by the console.
func SeedUsers() []User {
	return []User{
		newUser(1, "super@dispatchdesk.test", 1, "Sam", "Reyes", SeedPassword),
		newUser(2, "admin@dispatchdesk.test", 2, "Alex", "Lim", SeedPassword),
		newUser(3, "customer@dispatchdesk.test", 3, "Casey", "Tan", SeedPassword),
	}
}

func findUser(users []User, email string) (User, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range users {
		if u.Email == email {
			return u, true
		}
	}
	return User{}, false
}
