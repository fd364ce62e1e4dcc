// Package password implements the one-way password hashing collaborator.
//
// # Output format
//
// Argon2id hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Bcrypt hashes use the standard $2b$ modular format. [Chain] verifies either
// and hashes with its primary, so stored bcrypt digests keep working while new
// ones are produced with Argon2id.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, confirmation match) is enforced by the Engine. Nothing here stores
// or logs plaintext.
package password
