// Package secret resolves references to credential material.
//
// Credential-bearing configuration values may hold a reference instead of the
// secret itself:
//   - Full value:  secretref:file:client-secret
//   - Inline use:  Bearer secretref:map:api-key
//
// A Resolver maps each reference to a registered Provider by name. Resolvers
// are built explicitly; nothing is read from the process environment.
package secret
