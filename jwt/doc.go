// Package jwt issues and verifies the access tokens exchanged with the housing API.
//
// [Manager] signs and strictly verifies tokens (used by the in-process API stub).
// [Inspect] decodes claims without verification so the client can report token expiry;
// its result must never be used for authorization.
package jwt
