// Package security summarizes the security posture of an engine
// configuration, for operators reviewing a deployment.
package security
