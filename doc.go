// Package auth implements the authentication core of the Caribe Vibes booking
// backend: account registration, credential verification, signed token
// issuance, token validation and refresh.
//
// Collaborators:
//   - CredentialStore persists accounts and roles. The repository package
//     provides a bun backed SQL store and an in-memory store.
//   - PasswordHasher produces and verifies salted one-way hashes. Bcrypt is the
//     default; argon2id hashes are verified transparently.
//   - TokenCodec signs and decodes HMAC JWTs. Expiry is judged by the Auther
//     against its clock so tests can move time forward.
//
// Auther ties them together and returns typed errors (ErrValidation,
// ErrConflict, ErrInvalidCredentials, ErrInvalidToken, ErrNotFound,
// ErrConfiguration) that the HTTP layer maps to status codes.
//
// Activity sinks:
//   - ActivitySink receives register, login and refresh events. Sinks run
//     best-effort (errors are logged) so metrics or audit forwarding never
//     block authentication.
package auth
