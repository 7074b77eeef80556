package app

import (
	"fmt"
	"os"

	"inboxd/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.EffectiveConfigResult) error {
	// DB path must be present
	if p := eff.DBPath; p == "" {
		return fmt.Errorf("database path is empty: set --db flag, INBOXD_DB_PATH env, or server.db_path in config")
	}

	// TLS cert/key presence check if one is set
	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	// dispatch policy sanity: the deferred path must be reachable below the
	// participant cap, otherwise every large send is rejected outright
	d := eff.Config.Dispatch
	if d.ImmediateRecipientLimit < 0 || d.MaxParticipants < 0 {
		return fmt.Errorf("dispatch limits must not be negative")
	}
	if d.ImmediateRecipientLimit > 0 && d.MaxParticipants > 0 && d.ImmediateRecipientLimit > d.MaxParticipants {
		return fmt.Errorf("dispatch.immediate_recipient_limit exceeds dispatch.max_participants")
	}

	// auto-reply cron is validated again at scheduler start; checking here
	// keeps a typo from surfacing only after the server is already up
	if ar := eff.Config.AutoReply; ar.Enabled && ar.BatchSize < 0 {
		return fmt.Errorf("autoreply.batch_size must not be negative")
	}

	return nil
}
