// SPDX-FileCopyrightText: Copyright 2025 OmniHub Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the runtime configuration snapshot from the system
// config store and caches it with a short TTL.
package config

// Application modes stored under KeyAppMode.
const (
	ModeUnconfigured = "unconfigured"
	ModeLocal        = "local"
	ModeWorkOS       = "workos"
)

// SystemConfig keys. All durable configuration lives in the store; the
// process environment is only consulted while bootstrapping a fresh store.
const (
	KeyAppMode          = "app_mode"
	KeyHost             = "host"
	KeyPort             = "port"
	KeyDatabasePath     = "database_path"
	KeyChannelDir       = "channel_dir"
	KeyAllowedOrigins   = "allowed_origins"
	KeyHSTSEnabled      = "hsts_enabled"
	KeyCSPReportURI     = "csp_report_uri"
	KeySuperAdminEmails = "super_admin_emails"
	KeyEncryptionSalt   = "encryption_salt"
	KeySetupCompleted   = "setup_completed"

	// Local mode
	KeyLocalAPIKey     = "local_api_key" // secret
	KeyLocalAdminEmail = "local_admin_email"

	// WorkOS / SSO mode
	KeyWorkOSClientID       = "workos_client_id"
	KeyWorkOSAPIKey         = "workos_api_key"         // secret
	KeyWorkOSCookiePassword = "workos_cookie_password" // secret
	KeyWorkOSIssuerURL      = "workos_issuer_url"

	// OAuth client credentials used by tool OAuth flows.
	KeyOAuthClientID     = "oauth_client_id"
	KeyOAuthClientSecret = "oauth_client_secret" // secret
)

// Defaults applied when the store carries no explicit value.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8700
	DefaultListenTimeout  = 30.0 // seconds, channel listen default
	DefaultMaxHistorySize = 100
	DefaultMaxQueueSize   = 1000
)
