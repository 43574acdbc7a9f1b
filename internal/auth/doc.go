// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package auth provides the credential-verification and session core.
//
// # Domain Types
//
//   - UserRecord - username, per-user salt and keyed password hash
//   - SessionContext - an issued session token bound to a username
//   - PasswordPolicy - complexity rules a new password must satisfy
//
// # Services
//
// Service composes a CredentialStore, a SessionStore and a Hasher into the
// operations the web layer needs: Authenticate, CreateSession,
// DestroySession, CheckSession and ChangePassword. Provisioning helpers
// (Register, RemoveUser, ListUsers) serve the admin CLI.
//
// The core never touches HTTP. It returns SessionContext values and the
// caller decides how the token is transported.
package auth
