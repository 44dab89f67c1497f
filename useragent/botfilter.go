package useragent

import "zgo.at/isbot"

// IsBot reports whether ua matches a known bot/crawler pattern. It is
// used by the ingestion orchestrator's step 5 (spec §4.11) to silently
// drop bot traffic when filter_bots is enabled.
func IsBot(ua string) bool {
	return isbot.Is(ua)
}
