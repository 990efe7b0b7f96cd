// Package crypto provides the encryption engine for cruxvault.
//
// Value encryption uses AES-256-GCM with:
//   - 32-byte master key resolved through a provider chain
//   - 12-byte random nonce per encryption call, never reused for a key
//   - Authenticated encryption prevents tampering
//
// The master key is resolved in priority order (ResolveKey):
//   - OS keychain provider
//   - CRUXVAULT_MASTER_KEY environment variable (base64)
//   - CRUXVAULT_PASSPHRASE environment variable (PBKDF2-HMAC-SHA256,
//     32-byte stored salt, 210,000 iterations)
//   - freshly generated key, persisted through the first provider
//     that accepts it
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call Encryptor.Destroy() when done with encryption operations
package crypto
