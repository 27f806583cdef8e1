// Package config provides 12-factor configuration for the sync engine.
//
// Configuration is loaded from environment variables with sensible defaults.
// A YAML or TOML file can be layered on top with LoadFile.
//
// Configuration Sections:
//   - API: platform REST endpoint, app id, timeouts, retries, rate limit
//   - Push: WebSocket endpoint and reconnect backoff
//   - Cache: snapshot directory, compression, save debounce
//   - Inventory: page sizes and fallback fetch concurrency
//   - Auth: tokens and user id handed over by the host app
//   - Logging: log level and output format
//   - Server: inspector HTTP server
//
// Example Usage:
//
//	cfg, err := config.LoadFile("vatomsync.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.BaseURL, cfg.Cache.SaveDelay)
//
// Environment Variables:
//   - VATOM_API_URL, VATOM_APP_ID, VATOM_API_TIMEOUT, VATOM_API_RETRY_MAX
//   - VATOM_PUSH_URL, VATOM_PUSH_ENABLED
//   - VATOM_CACHE_DIR, VATOM_CACHE_COMPRESSION, VATOM_CACHE_SAVE_DELAY
//   - VATOM_INVENTORY_PAGE_CEILING, VATOM_INVENTORY_INITIAL_PAGES, ...
//   - VATOM_ACCESS_TOKEN, VATOM_REFRESH_TOKEN, VATOM_USER_ID
//   - LOG_LEVEL, LOG_DEV, INSPECTOR_ADDR, INSPECTOR_ENABLED
package config
