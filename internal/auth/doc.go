// Package auth issues and validates bearer tokens for the control API.
//
// Tokens are HS256 JWTs carrying a role. Two roles exist:
//
//	viewer    read status, groups and scenes; receive events
//	operator  everything a viewer can do plus control rotation,
//	          edit groups and switch scenes
//
// There is no user store. Tokens are minted offline with the
// `scenerotator token` command from the shared secret in config.
package auth
