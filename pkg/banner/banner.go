package banner

import (
	"fmt"

	"msgvault/pkg/config"
)

const banner = `
███╗   ███╗███████╗ ██████╗ ██╗   ██╗ █████╗ ██╗   ██╗██╗  ████████╗
████╗ ████║██╔════╝██╔════╝ ██║   ██║██╔══██╗██║   ██║██║  ╚══██╔══╝
██╔████╔██║███████╗██║  ███╗██║   ██║███████║██║   ██║██║     ██║
██║╚██╔╝██║╚════██║██║   ██║╚██╗ ██╔╝██╔══██║██║   ██║██║     ██║
██║ ╚═╝ ██║███████║╚██████╔╝ ╚████╔╝ ██║  ██║╚██████╔╝███████╗██║
╚═╝     ╚═╝╚══════╝ ╚═════╝   ╚═══╝  ╚═╝  ╚═╝ ╚═════╝ ╚══════╝╚═╝
`

// Print shows the effective runtime setup at startup.
func Print(cfg *config.Config, addr, dbPath, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}

	if cfg == nil {
		return
	}
	if cfg.Policy.MessageLimit > 0 {
		fmt.Printf("Message limit: %d\n", cfg.Policy.MessageLimit)
	} else {
		fmt.Println("Message limit: unlimited")
	}
	if cfg.Storage.SaveAttachments {
		fmt.Printf("Attachments: cached (%s)\n", cfg.Storage.AttachmentDir)
	} else {
		fmt.Println("Attachments: not cached")
	}
	if cfg.Retention.Enabled {
		cron := cfg.Retention.Cron
		if cron == "" {
			cron = "0 * * * *"
		}
		fmt.Printf("Retention sweep: enabled (cron=%s)\n", cron)
	} else {
		fmt.Println("Retention sweep: disabled")
	}

	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST   /v1/events/{create|update|delete|delete-bulk}")
	fmt.Println("POST   /v1/reconcile")
	fmt.Println("GET    /v1/logs?tab=<deleted|edited|ghost-pinged>&q=<query>&limit=<n>")
	fmt.Println("GET    /v1/logs/{id}          DELETE /v1/logs/{id}")
	fmt.Println("DELETE /v1/logs               (clear everything)")
	fmt.Println("GET    /v1/logs/export        POST   /v1/logs/import")
	fmt.Println("GET    /v1/settings           PUT    /v1/settings")
	fmt.Println("GET    /metrics               GET    /healthz")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl 'http://%s/v1/logs?tab=deleted&q=channel:123456789012345678&limit=50'\n", addr)
	fmt.Printf("curl -X PUT 'http://%s/v1/settings' -d '{\"ignore_bots\":true,\"message_limit\":200}'\n", addr)
}
