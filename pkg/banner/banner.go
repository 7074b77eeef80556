package banner

import (
	"fmt"

	"inboxd/pkg/config"
)

const banner = `
██╗███╗   ██╗██████╗  ██████╗ ██╗  ██╗██████╗
██║████╗  ██║██╔══██╗██╔═══██╗╚██╗██╔╝██╔══██╗
██║██╔██╗ ██║██████╔╝██║   ██║ ╚███╔╝ ██║  ██║
██║██║╚██╗██║██╔══██╗██║   ██║ ██╔██╗ ██║  ██║
██║██║ ╚████║██████╔╝╚██████╔╝██╔╝ ██╗██████╔╝
╚═╝╚═╝  ╚═══╝╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚═════╝
`

func Print(addr, dbPath, sources, version string) {
	// Deprecated: previous signature printed explicit fields. Newer callers
	// pass an effective config so we can display runtime info (dispatch
	// policy, config sources) centrally.
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/conversations - Start a conversation (JSON: recipients, body, context)")
	fmt.Println("POST /v1/conversations/<id>/messages - Add a message to a conversation")
	fmt.Println("GET  /v1/conversations/<id>/messages?limit=<n> - List messages (JSON response)")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/conversations' -d '{\"recipients\":[\"u2\"],\"body\":\"hello\"}'\n", addr)
	fmt.Printf("curl 'http://localhost%s/v1/conversations/c1/messages?limit=10'\n", addr)
	fmt.Println("\n== Production? =================================================")
	fmt.Println("Set a proper storage path (--db)")
	fmt.Println("Add API key or authentication for production use")
}

// PrintWithEff prints the banner using an EffectiveConfigResult which
// provides richer context (config, addr, dbpath, source).
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	var addr = eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	var dbPath = eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Server.DBPath
	}
	var src = eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config: %s\n", src)

	fmt.Println("\n== Examples ===================================================")
	fmt.Println("curl -X POST 'http://<host>:<port>/v1/conversations' -d '{\"recipients\":[\"u2\"],\"body\":\"hello\"}'")
	fmt.Println("curl 'http://<host>:<port>/v1/conversations/c1/messages?limit=10'")
	fmt.Println("\n== Production? =================================================")
	// API keys
	be := 0
	fe := 0
	ak := 0
	if eff.Config != nil {
		be = len(eff.Config.Security.APIKeys.Backend)
		fe = len(eff.Config.Security.APIKeys.Frontend)
		ak = len(eff.Config.Security.APIKeys.Admin)
	}
	if be > 0 {
		fmt.Printf("- Backend API keys: OK (%d)\n", be)
	} else {
		fmt.Println("- Backend API keys: MISSING (required for backend services)")
	}
	if fe > 0 {
		fmt.Printf("- Frontend API keys: OK (%d)\n", fe)
	} else {
		fmt.Println("- Frontend API keys: MISSING (required for client access)")
	}
	if ak > 0 {
		fmt.Printf("- Admin API keys: OK (%d)\n", ak)
	} else {
		fmt.Println("- Admin API keys: MISSING (required for admin tooling)")
	}

	// TLS
	tlsOK := false
	if eff.Config != nil && eff.Config.Server.TLS.CertFile != "" && eff.Config.Server.TLS.KeyFile != "" {
		tlsOK = true
	}
	if tlsOK {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}

	// DB path
	if eff.DBPath != "" {
		fmt.Printf("- DB Path: %s\n", eff.DBPath)
	} else {
		fmt.Println("- DB Path: not set (use --db or INBOXD_DB_PATH)")
	}

	// Dispatch policy
	if eff.Config != nil {
		d := eff.Config.Dispatch
		fmt.Printf("- Dispatch: immediate<=%d participants<=%d queue=%d workers=%d\n",
			d.ImmediateLimit(), d.ParticipantCap(), d.Queue.Capacity, d.Queue.Workers)
	}

	// Auto-reply sweeper
	arEnabled := false
	arInfo := ""
	if eff.Config != nil {
		arEnabled = eff.Config.AutoReply.Enabled
		if arEnabled && eff.Config.AutoReply.Cron != "" {
			arInfo = "cron=" + eff.Config.AutoReply.Cron
		}
	}
	if arEnabled {
		if arInfo != "" {
			fmt.Printf("- Auto-reply: enabled (%s)\n", arInfo)
		} else {
			fmt.Println("- Auto-reply: enabled")
		}
	} else {
		fmt.Println("- Auto-reply: disabled")
	}

	fmt.Println("\nRead the config docs for key and policy setup: docs/configs/README.md")

	fmt.Println("\n== Logs: =================================================")
}
