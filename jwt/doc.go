// Package jwt signs and verifies the short-lived access tokens handed out
// after login and refresh. Only the claim set {sub, iat, exp, iss, aud, scope}
// is assembled here; key handling is delegated to golang-jwt.
package jwt
