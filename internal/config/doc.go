// Package config loads the biblio client configuration from
// ~/.config/biblio/config.toml.
//
// A missing file is not an error: every field has a default, and empty or
// zero values in the file fall back to those defaults. Paths may start with
// ~ and are returned absolute.
//
//	api_url          = "https://localhost:7263/api"
//	request_timeout  = 10        # seconds
//	session_path     = "~/.config/biblio/session.toml"
//	log_file         = "~/.local/state/biblio/biblio.log"
//	log_level        = "info"
//	loan_days        = 7
//	default_location = "Reception"
//	refresh_seconds  = 30        # dashboard poll
//	insecure_tls     = false     # accept the backend's self-signed certificate
package config
